package usecase

// PasswordHasher 密碼雜湊 (Auth 元件提供)
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// TokenIssuer 簽發與解析存取權杖 (Auth 元件提供)
type TokenIssuer interface {
	Issue(accountID string) (string, error)
	// Resolve 解析權杖並回傳帳戶 ID，失敗回傳 domain.ErrUnauthorized
	Resolve(token string) (string, error)
}

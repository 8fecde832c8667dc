package domain

// Account 帳戶
//
// ID 為外部提供的身分證號 (CPF)，核心只把它當作不透明的唯一鍵。
// CredentialHash 由 Auth 元件產生，帳務引擎永遠不會讀取或比對。
// Balance 是引擎唯一可以變動的欄位，任何時刻都必須 >= 0。
type Account struct {
	ID             string `json:"id"`
	Owner          string `json:"owner"`
	CredentialHash string `json:"-"`
	Balance        int64  `json:"balance"`
}

// NewAccount 建立一個餘額為 0 的新帳戶
func NewAccount(id, owner, credentialHash string) *Account {
	return &Account{
		ID:             id,
		Owner:          owner,
		CredentialHash: credentialHash,
	}
}

// Apply 套用餘額變動 (delta 可為負數)
//
// 參數:
//
//	delta: 餘額變動量
//
// 回傳:
//
//	int64: 變動後的餘額
//	error: 變動後餘額為負時回傳 ErrWouldUnderflow，且不做任何修改
//
// 注意: Apply 本身不是 thread-safe，呼叫端必須持有該帳戶的鎖。
func (a *Account) Apply(delta int64) (int64, error) {
	next := a.Balance + delta
	// 溢位也視為失敗
	if (delta > 0 && next < a.Balance) || (delta < 0 && next > a.Balance) {
		return a.Balance, ErrInvalidAmount
	}
	if next < 0 {
		return a.Balance, ErrWouldUnderflow
	}
	a.Balance = next
	return next, nil
}

// Clone 回傳值拷貝，避免外部直接改寫內部狀態
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}

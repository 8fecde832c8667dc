package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// BcryptHasher 使用 bcrypt 產生 credential hash
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher cost 不合法時使用 bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

var _ usecase.PasswordHasher = (*BcryptHasher)(nil)

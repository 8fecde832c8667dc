package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// dummyHash 帳戶不存在時仍比對一次，避免用回應時間判斷帳號是否存在
const dummyHash = "$2a$10$7zFqzDbD3RrlkMTczbXG9OWZ0FLOXjIxXzSZ.QZxkVXjXcx7QZQiC"

// CoreUseCase 是核心業務邏輯層
type CoreUseCase struct {
	store  AccountStore
	ledger *LedgerEngine
	hasher PasswordHasher
	tokens TokenIssuer
	logger *zap.Logger
}

func NewCoreUseCase(store AccountStore, ledger *LedgerEngine, hasher PasswordHasher, tokens TokenIssuer, logger *zap.Logger) *CoreUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoreUseCase{
		store:  store,
		ledger: ledger,
		hasher: hasher,
		tokens: tokens,
		logger: logger.Named("core"),
	}
}

// Register 註冊新帳戶，初始餘額為 0
func (c *CoreUseCase) Register(ctx context.Context, id, owner, password string) (*domain.Account, error) {
	hash, err := c.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc, err := c.store.Create(ctx, id, owner, hash)
	if err != nil {
		return nil, err
	}
	c.logger.Info("account registered", zap.String("account", id))
	return acc, nil
}

// Login 驗證帳密並簽發權杖
func (c *CoreUseCase) Login(ctx context.Context, id, password string) (string, error) {
	acc, err := c.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			return "", err
		}
		_ = c.hasher.Compare(dummyHash, password)
		return "", domain.ErrUnauthorized
	}
	if !c.hasher.Compare(acc.CredentialHash, password) {
		c.logger.Info("login rejected", zap.String("account", id))
		return "", domain.ErrUnauthorized
	}
	return c.tokens.Issue(id)
}

// Authenticate 由權杖解析出目前操作的帳戶 ID
func (c *CoreUseCase) Authenticate(token string) (string, error) {
	return c.tokens.Resolve(token)
}

// Deposit 存款
func (c *CoreUseCase) Deposit(ctx context.Context, accountID string, amount int64) (int64, error) {
	return c.ledger.Deposit(ctx, accountID, amount)
}

// Transfer 由 actingID (目前登入帳戶) 轉帳給 destinationID
func (c *CoreUseCase) Transfer(ctx context.Context, actingID, destinationID string, amount int64) (*domain.Transfer, error) {
	return c.ledger.Transfer(ctx, actingID, destinationID, amount)
}

// GetAccountBalance 取得帳戶餘額
func (c *CoreUseCase) GetAccountBalance(ctx context.Context, accountID string) (int64, error) {
	return c.ledger.Balance(ctx, accountID)
}

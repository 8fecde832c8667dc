package mysql

import (
	"context"
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

// mysqlDuplicateEntry ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID             string `gorm:"primaryKey;size:32"`
	Owner          string `gorm:"size:255;not null"`
	CredentialHash string `gorm:"size:255;not null"`
	Balance        int64  `gorm:"not null"`
	CreatedAt      int64  `gorm:"autoCreateTime:milli"` // 自動寫入時間
	UpdatedAt      int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

func (a *sqlAccount) toDomain() *domain.Account {
	return &domain.Account{
		ID:             a.ID,
		Owner:          a.Owner,
		CredentialHash: a.CredentialHash,
		Balance:        a.Balance,
	}
}

// Store 以 MySQL 實作 AccountStore
//
// AdjustBalance 使用悲觀鎖 (SELECT ... FOR UPDATE)，同一帳戶的變動在資料庫層序列化。
type Store struct {
	client *mysql.Client
}

func NewStore(client *mysql.Client) *Store {
	return &Store{client: client}
}

// Migrate 建立/更新 accounts 表
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.client.DB().WithContext(ctx).AutoMigrate(&sqlAccount{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	var row sqlAccount
	err := s.client.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row.toDomain(), nil
}

func (s *Store) Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error) {
	row := sqlAccount{
		ID:             id,
		Owner:          owner,
		CredentialHash: credentialHash,
	}
	// 主鍵保證存在檢查與寫入是原子的
	if err := s.client.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toDomain(), nil
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	var balance int64
	err := s.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 取得鎖定帳號 悲觀鎖
		var row sqlAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&row).Error; err != nil {
			return err
		}

		acc := row.toDomain()
		next, err := acc.Apply(delta)
		if err != nil {
			return err
		}

		if err := tx.Model(&sqlAccount{}).
			Where("id = ?", id).
			UpdateColumn("balance", next).Error; err != nil {
			return err
		}
		balance = next
		return nil
	})
	if err != nil {
		return 0, translate(err)
	}
	return balance, nil
}

// translate 把 gorm / driver 錯誤轉成 domain 錯誤
func translate(err error) error {
	var mysqlErr *mysqldriver.MySQLError
	switch {
	case errors.Is(err, domain.ErrWouldUnderflow),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.ErrAccountNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.ErrAccountAlreadyExists
	case errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry:
		return domain.ErrAccountAlreadyExists
	default:
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
}

var _ usecase.AccountStore = (*Store)(nil)

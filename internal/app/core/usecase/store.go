package usecase

import (
	"context"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// AccountStore 是帳戶儲存層的介面 (Driven Port)
//
// 所有實作都必須保證:
//   - Create 的存在檢查與寫入是原子的
//   - AdjustBalance 對同一個帳戶是可線性化的 (不會遺失更新)
//   - AdjustBalance 在結果為負數時回傳 domain.ErrWouldUnderflow 且不做任何修改
//   - 其他後端錯誤包裝成 domain.ErrStorageUnavailable
type AccountStore interface {
	// Get 取得帳戶快照，不存在回傳 domain.ErrAccountNotFound
	Get(ctx context.Context, id string) (*domain.Account, error)
	// Create 建立餘額為 0 的帳戶，已存在回傳 domain.ErrAccountAlreadyExists
	Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error)
	// AdjustBalance 原子地執行 balance += delta 並回傳新餘額
	AdjustBalance(ctx context.Context, id string, delta int64) (int64, error)
}

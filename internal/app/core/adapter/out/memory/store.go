package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

// entry 單一帳戶與它自己的鎖
type entry struct {
	mu      sync.Mutex
	account domain.Account
}

// Store 是以 per-key Mutex 實現的記憶體帳戶儲存
//
// 結構:
//
//	mu: 只保護 accounts map 本身 (新增帳戶)
//	accounts: 帳戶 ID → entry，每個 entry 各自有鎖，不同帳戶的操作互不阻塞
//	wal: Write-Ahead Log 實例 (可為 nil，代表不持久化)
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*entry
	wal      *wal.Log
}

// NewStore 建立一個新的 Store 實例，並從 WAL 恢復狀態
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 代表純記憶體
//
// 回傳:
//
//	*Store: Store 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewStore(w *wal.Log) (*Store, error) {
	recovered := make(map[string]*domain.Account)
	if _, err := replayWAL(w, recovered); err != nil {
		return nil, err
	}
	s := &Store{
		accounts: make(map[string]*entry, len(recovered)),
		wal:      w,
	}
	for id, acc := range recovered {
		s.accounts[id] = &entry{account: *acc}
	}
	return s, nil
}

// Get 取得帳戶快照
func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account.Clone(), nil
}

// Create 建立帳戶，存在檢查與寫入都在 map 的寫鎖內完成
func (s *Store) Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	if err := writeWAL(s.wal, walRecord{Op: walOpCreate, ID: id, Owner: owner, CredentialHash: credentialHash}); err != nil {
		return nil, err
	}
	acc := domain.NewAccount(id, owner, credentialHash)
	s.accounts[id] = &entry{account: *acc}
	return acc.Clone(), nil
}

// AdjustBalance 在帳戶自己的鎖內完成 檢查 → 寫 WAL → 套用
func (s *Store) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e, ok := s.lookup(id)
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	// 先在副本上試算，失敗則不寫 WAL
	next := e.account
	balance, err := next.Apply(delta)
	if err != nil {
		return balance, err
	}
	if err := writeWAL(s.wal, walRecord{Op: walOpAdjust, ID: id, Delta: delta}); err != nil {
		return e.account.Balance, err
	}
	e.account = next
	return balance, nil
}

// Len 目前帳戶數量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.accounts[id]
	return e, ok
}

var _ usecase.AccountStore = (*Store)(nil)

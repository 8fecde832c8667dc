package memory

import (
	"context"
	"sync"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

const defaultQueueSize = 1000

type commandKind uint8

const (
	commandGet commandKind = iota + 1
	commandCreate
	commandAdjust
)

type commandResult struct {
	account *domain.Account
	balance int64
	err     error
}

// command 包裝成 channel 請求，讓呼叫端可以等待結果
type command struct {
	kind           commandKind
	id             string
	owner          string
	credentialHash string
	delta          int64
	result         chan commandResult // buffer 1，loop 永遠不會被卡住
}

// SequencedStore 是 LMAX 風格的帳戶儲存
//
// 所有讀寫都放上同一條輸送帶，由單一 goroutine 依序執行，
// 因此 accounts map 不需要任何鎖。
type SequencedStore struct {
	accounts map[string]*domain.Account
	// Write-Ahead Logging
	wal *wal.Log
	// 輸送帶 負責接收指令
	commands chan *command
	// loop 結束後關閉
	done chan struct{}
	// Pool 減少 GC 壓力
	pool sync.Pool
}

// NewSequencedStore 建立一個新的 SequencedStore 實例
//
// 參數:
//
//	w: Write-Ahead Log 實例，nil 代表純記憶體
//	queueSize: 輸送帶容量，<= 0 時使用預設值
//
// 回傳:
//
//	*SequencedStore: 尚未啟動的實例，需呼叫 Start
//	error: 初始化錯誤
func NewSequencedStore(w *wal.Log, queueSize int) (*SequencedStore, error) {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	s := &SequencedStore{
		accounts: make(map[string]*domain.Account),
		wal:      w,
		commands: make(chan *command, queueSize),
		done:     make(chan struct{}),
		pool: sync.Pool{
			New: func() any {
				return &command{result: make(chan commandResult, 1)}
			},
		},
	}
	// 在啟動前先恢復資料
	if _, err := replayWAL(w, s.accounts); err != nil {
		return nil, err
	}
	return s, nil
}

// Start 啟動核心迴圈 (非同步)，ctx 取消時會把剩下的指令處理完再結束
func (s *SequencedStore) Start(ctx context.Context) {
	go s.run(ctx)
}

// Done 迴圈結束後關閉
func (s *SequencedStore) Done() <-chan struct{} {
	return s.done
}

func (s *SequencedStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	res, err := s.submit(ctx, commandGet, func(c *command) { c.id = id })
	if err != nil {
		return nil, err
	}
	return res.account, res.err
}

func (s *SequencedStore) Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error) {
	res, err := s.submit(ctx, commandCreate, func(c *command) {
		c.id = id
		c.owner = owner
		c.credentialHash = credentialHash
	})
	if err != nil {
		return nil, err
	}
	return res.account, res.err
}

func (s *SequencedStore) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	res, err := s.submit(ctx, commandAdjust, func(c *command) {
		c.id = id
		c.delta = delta
	})
	if err != nil {
		return 0, err
	}
	return res.balance, res.err
}

// submit 放入輸送帶並等待結果
// PostCommand(等待) -> Channel -> Run Loop -> WAL -> Map Update -> Result Channel -> submit(收到結果)
//
// ctx 只在指令進入輸送帶之前有效。一旦送出，loop 必定會執行它，
// 此時回報取消會讓呼叫端以為沒有異動，所以只等結果或 loop 結束。
func (s *SequencedStore) submit(ctx context.Context, kind commandKind, fill func(*command)) (commandResult, error) {
	select {
	case <-s.done:
		return commandResult{}, domain.ErrStorageUnavailable
	default:
	}
	if err := ctx.Err(); err != nil {
		return commandResult{}, err
	}

	cmd := s.pool.Get().(*command)
	*cmd = command{kind: kind, result: cmd.result}
	fill(cmd)

	select {
	case s.commands <- cmd:
	case <-s.done:
		s.pool.Put(cmd)
		return commandResult{}, domain.ErrStorageUnavailable
	case <-ctx.Done():
		s.pool.Put(cmd)
		return commandResult{}, ctx.Err()
	}

	select {
	case res := <-cmd.result:
		s.pool.Put(cmd)
		return res, nil
	case <-s.done:
		// loop 結束前會 drain，已送出的指令結果一定在 channel 裡
		select {
		case res := <-cmd.result:
			s.pool.Put(cmd)
			return res, nil
		default:
			return commandResult{}, domain.ErrStorageUnavailable
		}
	}
}

func (s *SequencedStore) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的指令處理完
			s.drain()
			return
		case cmd := <-s.commands:
			s.process(cmd)
		}
	}
}

func (s *SequencedStore) drain() {
	for {
		select {
		case cmd := <-s.commands:
			s.process(cmd)
		default:
			return
		}
	}
}

// process 處理單筆指令並回傳結果
func (s *SequencedStore) process(cmd *command) {
	var res commandResult
	switch cmd.kind {
	case commandGet:
		if acc, ok := s.accounts[cmd.id]; ok {
			res.account = acc.Clone()
		} else {
			res.err = domain.ErrAccountNotFound
		}
	case commandCreate:
		res.account, res.err = s.create(cmd)
	case commandAdjust:
		res.balance, res.err = s.adjust(cmd)
	}
	cmd.result <- res
}

func (s *SequencedStore) create(cmd *command) (*domain.Account, error) {
	if _, ok := s.accounts[cmd.id]; ok {
		return nil, domain.ErrAccountAlreadyExists
	}
	rec := walRecord{Op: walOpCreate, ID: cmd.id, Owner: cmd.owner, CredentialHash: cmd.credentialHash}
	if err := writeWAL(s.wal, rec); err != nil {
		return nil, err
	}
	acc := domain.NewAccount(cmd.id, cmd.owner, cmd.credentialHash)
	s.accounts[cmd.id] = acc
	return acc.Clone(), nil
}

func (s *SequencedStore) adjust(cmd *command) (int64, error) {
	acc, ok := s.accounts[cmd.id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	next := *acc
	balance, err := next.Apply(cmd.delta)
	if err != nil {
		return balance, err
	}
	if err := writeWAL(s.wal, walRecord{Op: walOpAdjust, ID: cmd.id, Delta: cmd.delta}); err != nil {
		return acc.Balance, err
	}
	*acc = next
	return balance, nil
}

var _ usecase.AccountStore = (*SequencedStore)(nil)

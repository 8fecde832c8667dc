package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

func newEngine(t *testing.T, accounts ...string) (*usecase.LedgerEngine, *memory.Store) {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	return seedEngine(t, store, accounts...), store
}

func seedEngine(t *testing.T, store usecase.AccountStore, accounts ...string) *usecase.LedgerEngine {
	t.Helper()
	for _, id := range accounts {
		_, err := store.Create(context.Background(), id, "owner-"+id, "hash")
		require.NoError(t, err)
	}
	return usecase.NewLedgerEngine(store, zaptest.NewLogger(t))
}

// backends 兩種記憶體儲存都必須滿足相同的帳務性質
var backends = []struct {
	name string
	open func(t *testing.T) usecase.AccountStore
}{
	{"memory", func(t *testing.T) usecase.AccountStore {
		s, err := memory.NewStore(nil)
		require.NoError(t, err)
		return s
	}},
	{"sequenced", func(t *testing.T) usecase.AccountStore {
		s, err := memory.NewSequencedStore(nil, 64)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		s.Start(ctx)
		t.Cleanup(func() {
			cancel()
			<-s.Done()
		})
		return s
	}},
}

func balanceOf(t *testing.T, e *usecase.LedgerEngine, id string) int64 {
	t.Helper()
	bal, err := e.Balance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

func TestLedger_Scenario(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			store := bk.open(t)
			engine := seedEngine(t, store, "A")

			bal, err := engine.Deposit(ctx, "A", 500)
			require.NoError(t, err)
			assert.Equal(t, int64(500), bal)

			_, err = store.Create(ctx, "B", "owner-B", "hash")
			require.NoError(t, err)
			assert.Equal(t, int64(0), balanceOf(t, engine, "B"))

			tr, err := engine.Transfer(ctx, "A", "B", 300)
			require.NoError(t, err)
			assert.Equal(t, domain.TransferStateCompleted, tr.State)
			assert.Equal(t, int64(200), balanceOf(t, engine, "A"))
			assert.Equal(t, int64(300), balanceOf(t, engine, "B"))

			tr, err = engine.Transfer(ctx, "A", "B", 1000)
			assert.ErrorIs(t, err, domain.ErrInsufficientCredit)
			assert.Nil(t, tr)
			assert.Equal(t, int64(200), balanceOf(t, engine, "A"))
			assert.Equal(t, int64(300), balanceOf(t, engine, "B"))
		})
	}
}

func TestLedger_DepositInvalid(t *testing.T) {
	engine, _ := newEngine(t, "A")
	for _, amount := range []int64{0, -1, -500} {
		_, err := engine.Deposit(context.Background(), "A", amount)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount=%d", amount)
	}
	assert.Equal(t, int64(0), balanceOf(t, engine, "A"))

	_, err := engine.Deposit(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLedger_TransferValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t, "A", "B")
	_, err := engine.Deposit(ctx, "A", 50)
	require.NoError(t, err)

	tests := []struct {
		name    string
		from    string
		to      string
		amount  int64
		wantErr error
	}{
		{name: "zero amount", from: "A", to: "B", amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", from: "A", to: "B", amount: -5, wantErr: domain.ErrInvalidAmount},
		{name: "self transfer", from: "A", to: "A", amount: 10, wantErr: domain.ErrInvalidRequest},
		{name: "missing destination", from: "A", to: "nonexistent", amount: 10, wantErr: domain.ErrDestinationNotFound},
		{name: "missing source", from: "ghost", to: "B", amount: 10, wantErr: domain.ErrSourceNotFound},
		{name: "overdraft", from: "A", to: "B", amount: 100, wantErr: domain.ErrInsufficientCredit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Transfer(ctx, tt.from, tt.to, tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int64(50), balanceOf(t, engine, "A"))
			assert.Equal(t, int64(0), balanceOf(t, engine, "B"))
		})
	}
}

func TestLedger_ConcurrentDeposits(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			engine := seedEngine(t, bk.open(t), "A")
			const n = 1000

			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					_, err := engine.Deposit(context.Background(), "A", 1)
					assert.NoError(t, err)
				}()
			}
			wg.Wait()
			assert.Equal(t, int64(n), balanceOf(t, engine, "A"))
		})
	}
}

func TestLedger_ConcurrentTransfersConserveCredit(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			ctx := context.Background()
			engine := seedEngine(t, bk.open(t), "A", "B", "C")
			for _, id := range []string{"A", "B", "C"} {
				_, err := engine.Deposit(ctx, id, 100)
				require.NoError(t, err)
			}

			pairs := [][2]string{{"A", "B"}, {"B", "C"}, {"C", "A"}, {"B", "A"}, {"A", "C"}, {"C", "B"}}
			var wg sync.WaitGroup
			for i := 0; i < 600; i++ {
				p := pairs[i%len(pairs)]
				wg.Add(1)
				go func(amount int64) {
					defer wg.Done()
					_, err := engine.Transfer(ctx, p[0], p[1], amount)
					if err != nil {
						assert.ErrorIs(t, err, domain.ErrInsufficientCredit)
					}
				}(int64(i%7 + 1))
			}
			wg.Wait()

			total := int64(0)
			for _, id := range []string{"A", "B", "C"} {
				bal := balanceOf(t, engine, id)
				assert.GreaterOrEqual(t, bal, int64(0))
				total += bal
			}
			assert.Equal(t, int64(300), total)
		})
	}
}

// 扣款成功後請求被取消，入帳仍要完成
func TestLedger_CreditSurvivesCancelAfterDebit(t *testing.T) {
	for _, bk := range backends {
		t.Run(bk.name, func(t *testing.T) {
			store := bk.open(t)
			seedEngine(t, store, "A", "B")
			_, err := store.AdjustBalance(context.Background(), "A", 100)
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			engine := usecase.NewLedgerEngine(&cancelOnDebit{AccountStore: store, source: "A", cancel: cancel}, nil)

			tr, err := engine.Transfer(ctx, "A", "B", 30)
			require.NoError(t, err)
			assert.Equal(t, domain.TransferStateCompleted, tr.State)
			assert.Equal(t, int64(70), balanceOf(t, engine, "A"))
			assert.Equal(t, int64(30), balanceOf(t, engine, "B"))
		})
	}
}

// cancelOnDebit 扣款成功後立刻取消請求的 ctx
type cancelOnDebit struct {
	usecase.AccountStore
	source string
	cancel context.CancelFunc
}

func (c *cancelOnDebit) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	bal, err := c.AccountStore.AdjustBalance(ctx, id, delta)
	if id == c.source && delta < 0 {
		c.cancel()
	}
	return bal, err
}

// flakyStore 讓指定帳戶的入帳失敗，用來測試回沖
type flakyStore struct {
	usecase.AccountStore
	failCreditTo   string
	failRefunds    int32 // 回沖前幾次失敗
	refundAttempts atomic.Int32
	refundTo       string
}

func (f *flakyStore) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	if id == f.failCreditTo && delta > 0 {
		return 0, domain.ErrStorageUnavailable
	}
	if id == f.refundTo && delta > 0 {
		if f.refundAttempts.Add(1) <= f.failRefunds {
			return 0, domain.ErrStorageUnavailable
		}
	}
	return f.AccountStore.AdjustBalance(ctx, id, delta)
}

func TestLedger_TransferCompensatesFailedCredit(t *testing.T) {
	ctx := context.Background()
	_, store := newEngine(t, "A", "B")
	_, err := store.AdjustBalance(ctx, "A", 100)
	require.NoError(t, err)

	flaky := &flakyStore{AccountStore: store, failCreditTo: "B", refundTo: "A", failRefunds: 2}
	engine := usecase.NewLedgerEngine(flaky, zap.NewNop(), usecase.WithCompensationPolicy(5, time.Microsecond))

	tr, err := engine.Transfer(ctx, "A", "B", 40)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	require.NotNil(t, tr)
	assert.Equal(t, domain.TransferStateFailed, tr.State)
	assert.Equal(t, int32(3), flaky.refundAttempts.Load())

	// 總額回到原本的狀態
	a, err := store.Get(ctx, "A")
	require.NoError(t, err)
	b, err := store.Get(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
	assert.Equal(t, int64(0), b.Balance)
}

func TestLedger_CompensationExhausted(t *testing.T) {
	ctx := context.Background()
	_, store := newEngine(t, "A", "B")
	_, err := store.AdjustBalance(ctx, "A", 100)
	require.NoError(t, err)

	flaky := &flakyStore{AccountStore: store, failCreditTo: "B", refundTo: "A", failRefunds: 100}
	engine := usecase.NewLedgerEngine(flaky, nil, usecase.WithCompensationPolicy(3, time.Microsecond))

	tr, err := engine.Transfer(ctx, "A", "B", 40)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)
	require.NotNil(t, tr)
	assert.Equal(t, domain.TransferStateFailed, tr.State)
	assert.Equal(t, int32(3), flaky.refundAttempts.Load())
}

func TestLedger_CompensationSurvivesCancelledRequest(t *testing.T) {
	_, store := newEngine(t, "A", "B")
	_, err := store.AdjustBalance(context.Background(), "A", 100)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancelling := &cancelOnCredit{AccountStore: store, target: "B", cancel: cancel}
	engine := usecase.NewLedgerEngine(cancelling, nil)

	_, err = engine.Transfer(ctx, "A", "B", 30)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	a, err := store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, int64(100), a.Balance)
}

// cancelOnCredit 在入帳時取消請求的 ctx，並讓入帳失敗
type cancelOnCredit struct {
	usecase.AccountStore
	target string
	cancel context.CancelFunc
}

func (c *cancelOnCredit) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	if id == c.target {
		c.cancel()
		return 0, errors.New("connection reset")
	}
	return c.AccountStore.AdjustBalance(ctx, id, delta)
}

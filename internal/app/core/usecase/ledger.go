package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/backoff"
)

const (
	defaultCompensationRetries = 5
	defaultCompensationBackoff = 10 * time.Millisecond
)

// LedgerEngine 帳務引擎，唯一可以變動餘額的元件
//
// 轉帳採用 扣款 → 入帳 → (失敗時) 回沖 的流程，
// 任何時間點都不會同時持有兩個帳戶的鎖，所以沒有鎖順序造成的死鎖問題。
type LedgerEngine struct {
	store  AccountStore
	logger *zap.Logger

	compensationRetries int
	compensationBackoff time.Duration
}

// LedgerOption 定義 LedgerEngine 的配置選項函數
type LedgerOption func(*LedgerEngine)

// WithCompensationPolicy 設定回沖的重試次數與退避基準時間
func WithCompensationPolicy(retries int, base time.Duration) LedgerOption {
	return func(e *LedgerEngine) {
		if retries > 0 {
			e.compensationRetries = retries
		}
		if base > 0 {
			e.compensationBackoff = base
		}
	}
}

// NewLedgerEngine 建立帳務引擎
func NewLedgerEngine(store AccountStore, logger *zap.Logger, opts ...LedgerOption) *LedgerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &LedgerEngine{
		store:               store,
		logger:              logger.Named("ledger"),
		compensationRetries: defaultCompensationRetries,
		compensationBackoff: defaultCompensationBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deposit 存款，唯一會增加系統總額度的操作
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//	amount: 存款金額，必須 > 0
//
// 回傳:
//
//	int64: 存款後的餘額
//	error: domain.ErrInvalidAmount / domain.ErrAccountNotFound / 儲存層錯誤
func (e *LedgerEngine) Deposit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	balance, err := e.store.AdjustBalance(ctx, accountID, amount)
	if err != nil {
		return 0, fmt.Errorf("deposit: %w", err)
	}
	e.logger.Debug("deposit applied",
		zap.String("account", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance", balance),
	)
	return balance, nil
}

// Transfer 轉帳
//
// 參數:
//
//	ctx: 上下文
//	sourceID: 轉出帳戶 (由呼叫端確保等於目前登入的帳戶)
//	destinationID: 轉入帳戶
//	amount: 金額，必須 > 0
//
// 回傳:
//
//	*domain.Transfer: 轉帳回執 (Completed 或 Failed)，驗證失敗時為 nil
//	error: domain.ErrInvalidAmount / domain.ErrInvalidRequest / domain.ErrDestinationNotFound /
//	       domain.ErrSourceNotFound / domain.ErrInsufficientCredit / domain.ErrTransferFailed
func (e *LedgerEngine) Transfer(ctx context.Context, sourceID, destinationID string, amount int64) (*domain.Transfer, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if sourceID == destinationID {
		return nil, fmt.Errorf("%w: source and destination are the same account", domain.ErrInvalidRequest)
	}

	// 1. 先確認轉入帳戶存在，避免先扣款再回沖
	if _, err := e.store.Get(ctx, destinationID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrDestinationNotFound
		}
		return nil, fmt.Errorf("resolve destination: %w", err)
	}

	tr := domain.NewTransfer(sourceID, destinationID, amount)
	log := e.logger.With(
		zap.Stringer("transfer_id", tr.ID),
		zap.String("from", sourceID),
		zap.String("to", destinationID),
		zap.Int64("amount", amount),
	)

	// 2. 扣款
	e.transition(log, tr, domain.TransferStateDebitPending)
	if _, err := e.store.AdjustBalance(ctx, sourceID, -amount); err != nil {
		switch {
		case errors.Is(err, domain.ErrAccountNotFound):
			return nil, domain.ErrSourceNotFound
		case errors.Is(err, domain.ErrWouldUnderflow):
			return nil, domain.ErrInsufficientCredit
		default:
			return nil, fmt.Errorf("debit source: %w", err)
		}
	}
	e.transition(log, tr, domain.TransferStateDebited)

	// 3. 入帳
	// 扣款已成立，之後的步驟不再受請求取消影響，否則會變成半套的轉帳
	e.transition(log, tr, domain.TransferStateCreditPending)
	_, creditErr := e.store.AdjustBalance(context.WithoutCancel(ctx), destinationID, amount)
	if creditErr == nil {
		e.transition(log, tr, domain.TransferStateCompleted)
		return tr, nil
	}

	// 4. 入帳失敗，回沖扣款
	log.Warn("credit destination failed, compensating", zap.Error(creditErr))
	e.transition(log, tr, domain.TransferStateCompensating)
	compErr := e.compensate(ctx, tr)
	e.transition(log, tr, domain.TransferStateFailed)
	if compErr != nil {
		log.Error("compensation exhausted retry budget, source left debited", zap.Error(compErr))
		return tr, errors.Join(
			fmt.Errorf("%w: %w", domain.ErrTransferFailed, creditErr),
			fmt.Errorf("compensation: %w", compErr),
		)
	}
	return tr, fmt.Errorf("%w: %w", domain.ErrTransferFailed, creditErr)
}

// Balance 查詢帳戶餘額
func (e *LedgerEngine) Balance(ctx context.Context, accountID string) (int64, error) {
	acc, err := e.store.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// compensate 回沖轉出帳戶的扣款
// 使用 WithoutCancel，請求被取消也必須把錢還回去
func (e *LedgerEngine) compensate(ctx context.Context, tr *domain.Transfer) error {
	ctx = context.WithoutCancel(ctx)
	return backoff.Retry(ctx, e.compensationRetries, e.compensationBackoff, func(ctx context.Context) error {
		_, err := e.store.AdjustBalance(ctx, tr.From, tr.Amount)
		return err
	})
}

func (e *LedgerEngine) transition(log *zap.Logger, tr *domain.Transfer, next domain.TransferState) {
	log.Debug("transfer state",
		zap.Stringer("from_state", tr.State),
		zap.Stringer("to_state", next),
	)
	tr.State = next
}

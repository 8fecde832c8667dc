package memory

import (
	"encoding/json"
	"fmt"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

type walOp string

const (
	walOpCreate walOp = "create"
	walOpAdjust walOp = "adjust"
)

// walRecord 寫入 WAL 的單筆變動
type walRecord struct {
	Op             walOp  `json:"op"`
	ID             string `json:"id"`
	Owner          string `json:"owner,omitempty"`
	CredentialHash string `json:"credential_hash,omitempty"`
	Delta          int64  `json:"delta,omitempty"`
}

// replayWAL 從 WAL 重建帳戶狀態 (單執行緒，只在建構時呼叫)
func replayWAL(w *wal.Log, accounts map[string]*domain.Account) (int, error) {
	if w == nil {
		return 0, nil
	}
	count := 0
	err := w.Replay(func(seq uint64, data json.RawMessage) error {
		var rec walRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("wal seq %d: %w", seq, err)
		}
		count++
		switch rec.Op {
		case walOpCreate:
			if _, ok := accounts[rec.ID]; ok {
				return fmt.Errorf("wal seq %d: %w: %s", seq, domain.ErrAccountAlreadyExists, rec.ID)
			}
			accounts[rec.ID] = domain.NewAccount(rec.ID, rec.Owner, rec.CredentialHash)
		case walOpAdjust:
			acc, ok := accounts[rec.ID]
			if !ok {
				return fmt.Errorf("wal seq %d: %w: %s", seq, domain.ErrAccountNotFound, rec.ID)
			}
			if _, err := acc.Apply(rec.Delta); err != nil {
				return fmt.Errorf("wal seq %d: %w", seq, err)
			}
		default:
			return fmt.Errorf("wal seq %d: unknown op %q", seq, rec.Op)
		}
		return nil
	})
	return count, err
}

func writeWAL(w *wal.Log, rec walRecord) error {
	if w == nil {
		return nil
	}
	if _, err := w.Append(rec); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

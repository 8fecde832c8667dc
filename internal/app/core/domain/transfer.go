package domain

import "github.com/google/uuid"

// TransferState 轉帳狀態機
//
//	Validated → DebitPending → Debited → CreditPending → Completed
//	                              └──→ Compensating → Failed
//
// 對外只會看到 Validated、Completed、Failed。
type TransferState uint8

const (
	TransferStateValidated TransferState = iota + 1
	TransferStateDebitPending
	TransferStateDebited
	TransferStateCreditPending
	TransferStateCompleted
	TransferStateCompensating
	TransferStateFailed
)

var transferStateNames = map[TransferState]string{
	TransferStateValidated:     "validated",
	TransferStateDebitPending:  "debit_pending",
	TransferStateDebited:       "debited",
	TransferStateCreditPending: "credit_pending",
	TransferStateCompleted:     "completed",
	TransferStateCompensating:  "compensating",
	TransferStateFailed:        "failed",
}

func (s TransferState) String() string {
	if name, ok := transferStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal 是否為終止狀態
func (s TransferState) Terminal() bool {
	return s == TransferStateCompleted || s == TransferStateFailed
}

// Transfer 轉帳回執
type Transfer struct {
	ID     uuid.UUID     `json:"id"`
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount int64         `json:"amount"`
	State  TransferState `json:"-"`
}

// NewTransfer 建立一筆處於 Validated 狀態的轉帳
func NewTransfer(from, to string, amount int64) *Transfer {
	return &Transfer{
		ID:     uuid.New(),
		From:   from,
		To:     to,
		Amount: amount,
		State:  TransferStateValidated,
	}
}

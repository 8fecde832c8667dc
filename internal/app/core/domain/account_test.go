package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Apply(t *testing.T) {
	acc := NewAccount("12345678901", "Alice", "hash")
	require.Equal(t, int64(0), acc.Balance)

	bal, err := acc.Apply(500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal)

	bal, err = acc.Apply(-200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), bal)

	// 扣到負數要被拒絕，餘額不變
	bal, err = acc.Apply(-301)
	assert.ErrorIs(t, err, ErrWouldUnderflow)
	assert.Equal(t, int64(300), bal)
	assert.Equal(t, int64(300), acc.Balance)

	bal, err = acc.Apply(-300)
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestAccount_ApplyOverflow(t *testing.T) {
	acc := &Account{ID: "1", Balance: math.MaxInt64 - 1}
	_, err := acc.Apply(2)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int64(math.MaxInt64-1), acc.Balance)
}

func TestAccount_Clone(t *testing.T) {
	acc := NewAccount("1", "Bob", "hash")
	cp := acc.Clone()
	cp.Balance = 99
	assert.Equal(t, int64(0), acc.Balance)
}

func TestErrors_NotFoundFamily(t *testing.T) {
	assert.ErrorIs(t, ErrSourceNotFound, ErrAccountNotFound)
	assert.ErrorIs(t, ErrDestinationNotFound, ErrAccountNotFound)
	assert.NotErrorIs(t, ErrSourceNotFound, ErrDestinationNotFound)
}

func TestTransferState(t *testing.T) {
	tr := NewTransfer("a", "b", 10)
	assert.Equal(t, TransferStateValidated, tr.State)
	assert.NotEqual(t, [16]byte{}, [16]byte(tr.ID))

	assert.Equal(t, "completed", TransferStateCompleted.String())
	assert.Equal(t, "unknown", TransferState(0).String())
	assert.True(t, TransferStateFailed.Terminal())
	assert.True(t, TransferStateCompleted.Terminal())
	assert.False(t, TransferStateDebited.Terminal())
}

package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{domain.ErrInvalidAmount, codes.InvalidArgument},
		{domain.ErrInvalidRequest, codes.InvalidArgument},
		{domain.ErrInsufficientCredit, codes.FailedPrecondition},
		{domain.ErrUnauthorized, codes.Unauthenticated},
		{domain.ErrDestinationNotFound, codes.NotFound},
		{domain.ErrAccountAlreadyExists, codes.AlreadyExists},
		{domain.ErrStorageUnavailable, codes.Unavailable},
		{fmt.Errorf("%w: %w", domain.ErrTransferFailed, domain.ErrAccountNotFound), codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

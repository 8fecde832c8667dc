package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/auth"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	grpcpool "github.com/JoeShih716/go-credit-ledger/pkg/grpc"
)

const (
	alice    = "11111111111"
	bob      = "22222222222"
	password = "Str0ng!Pass"
)

type testEnv struct {
	core   *usecase.CoreUseCase
	client *LedgerServiceClient
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	store, err := memory.NewStore(nil)
	require.NoError(t, err)
	tokens, err := auth.NewJWTIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	engine := usecase.NewLedgerEngine(store, logger)
	core := usecase.NewCoreUseCase(store, engine, auth.NewBcryptHasher(bcrypt.MinCost), tokens, logger)

	srv := NewGrpcServer(core, logger)
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(srv.ServerOptions()...)
	RegisterLedgerServiceServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	pool := grpcpool.NewPool(grpcpool.WithDialOptions(
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	))
	t.Cleanup(func() { _ = pool.Close() })
	conn, err := pool.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)

	return &testEnv{core: core, client: NewLedgerServiceClient(conn)}
}

// authed 註冊並登入帳戶，回傳帶有權杖的 context
func (e *testEnv) authed(t *testing.T, cpf string) context.Context {
	t.Helper()
	ctx := context.Background()
	_, err := e.core.Register(ctx, cpf, "Holder "+cpf, password)
	require.NoError(t, err)
	token, err := e.core.Login(ctx, cpf, password)
	require.NoError(t, err)
	return metadata.AppendToOutgoingContext(ctx, metadataAuthorization, "Bearer "+token)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGrpc_DepositTransferBalance(t *testing.T) {
	env := setup(t)
	aliceCtx := env.authed(t, alice)
	bobCtx := env.authed(t, bob)

	resp, err := env.client.Deposit(aliceCtx, mustStruct(t, map[string]any{"quantity": 500}))
	require.NoError(t, err)
	assert.Equal(t, alice, resp.GetFields()["cpf"].GetStringValue())
	assert.Equal(t, float64(500), resp.GetFields()["credit"].GetNumberValue())

	resp, err = env.client.Transfer(aliceCtx, mustStruct(t, map[string]any{"cpf": bob, "quantity": 300}))
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.GetFields()["state"].GetStringValue())
	assert.NotEmpty(t, resp.GetFields()["id"].GetStringValue())

	_, err = env.client.Transfer(aliceCtx, mustStruct(t, map[string]any{"cpf": bob, "quantity": 1000}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	resp, err = env.client.GetBalance(aliceCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(200), resp.GetFields()["credit"].GetNumberValue())

	resp, err = env.client.GetBalance(bobCtx, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(300), resp.GetFields()["credit"].GetNumberValue())
}

func TestGrpc_Unauthenticated(t *testing.T) {
	env := setup(t)

	_, err := env.client.GetBalance(context.Background(), nil)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), metadataAuthorization, "not-a-token")
	_, err = env.client.Deposit(ctx, mustStruct(t, map[string]any{"quantity": 1}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGrpc_ErrorCodes(t *testing.T) {
	env := setup(t)
	ctx := env.authed(t, alice)

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"missing quantity", func() error {
			_, err := env.client.Deposit(ctx, mustStruct(t, map[string]any{}))
			return err
		}, codes.InvalidArgument},
		{"fractional quantity", func() error {
			_, err := env.client.Deposit(ctx, mustStruct(t, map[string]any{"quantity": 1.5}))
			return err
		}, codes.InvalidArgument},
		{"negative quantity", func() error {
			_, err := env.client.Deposit(ctx, mustStruct(t, map[string]any{"quantity": -3}))
			return err
		}, codes.InvalidArgument},
		{"deposit to missing account", func() error {
			_, err := env.client.Deposit(ctx, mustStruct(t, map[string]any{"cpf": bob, "quantity": 1}))
			return err
		}, codes.NotFound},
		{"transfer without destination", func() error {
			_, err := env.client.Transfer(ctx, mustStruct(t, map[string]any{"quantity": 1}))
			return err
		}, codes.InvalidArgument},
		{"transfer to missing account", func() error {
			_, err := env.client.Transfer(ctx, mustStruct(t, map[string]any{"cpf": bob, "quantity": 1}))
			return err
		}, codes.NotFound},
		{"transfer to self", func() error {
			_, err := env.client.Transfer(ctx, mustStruct(t, map[string]any{"cpf": alice, "quantity": 1}))
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(tt.call()))
		})
	}
}

package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

const metadataAuthorization = "authorization"

type accountKey struct{}

type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *zap.Logger
}

func NewGrpcServer(core *usecase.CoreUseCase, logger *zap.Logger) *GrpcServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrpcServer{
		core:   core,
		logger: logger.Named("grpc"),
	}
}

// ServerOptions 回傳這個服務需要的攔截器 (記錄 + 驗證)
func (s *GrpcServer) ServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.logInterceptor, s.authInterceptor),
	}
}

func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	quantity, err := quantityField(req)
	if err != nil {
		return nil, err
	}
	target := stringField(req, "cpf")
	if target == "" {
		target = actingAccount(ctx)
	}

	credit, err := s.core.Deposit(ctx, target, quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"cpf":    target,
		"credit": credit,
	})
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	quantity, err := quantityField(req)
	if err != nil {
		return nil, err
	}
	destination := stringField(req, "cpf")
	if destination == "" {
		return nil, status.Error(codes.InvalidArgument, "cpf is required")
	}

	tr, err := s.core.Transfer(ctx, actingAccount(ctx), destination, quantity)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"id":     tr.ID.String(),
		"from":   tr.From,
		"to":     tr.To,
		"amount": tr.Amount,
		"state":  tr.State.String(),
	})
}

func (s *GrpcServer) GetBalance(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id := actingAccount(ctx)
	credit, err := s.core.GetAccountBalance(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"cpf":    id,
		"credit": credit,
	})
}

// authInterceptor 從 metadata 的 authorization 取出權杖並解析出目前帳戶
// 只攔截本服務的方法，reflection 等其他服務不需驗證
func (s *GrpcServer) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
		return handler(ctx, req)
	}
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(metadataAuthorization)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil, status.Error(codes.Unauthenticated, "missing authorization token")
	}
	token := strings.TrimSpace(values[0])
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, "Bearer") {
		token = strings.TrimSpace(rest)
	}
	accountID, err := s.core.Authenticate(token)
	if err != nil {
		return nil, toStatus(err)
	}
	return handler(context.WithValue(ctx, accountKey{}, accountID), req)
}

func (s *GrpcServer) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", info.FullMethod),
		zap.Stringer("code", code),
		zap.Duration("elapsed", time.Since(start)),
	}
	switch code {
	case codes.OK:
		s.logger.Debug("rpc", fields...)
	case codes.Internal, codes.Unavailable, codes.Unknown:
		s.logger.Error("rpc", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("rpc", append(fields, zap.Error(err))...)
	}
	return resp, err
}

func actingAccount(ctx context.Context) string {
	id, _ := ctx.Value(accountKey{}).(string)
	return id
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

// quantityField structpb 的數字都是 float64，需是正整數且在 int64 範圍內
func quantityField(req *structpb.Struct) (int64, error) {
	v, ok := req.GetFields()["quantity"]
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "quantity is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, status.Error(codes.InvalidArgument, "quantity must be a number")
	}
	q := n.NumberValue
	if q != math.Trunc(q) || q <= 0 || q >= math.MaxInt64 {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("quantity must be a positive integer, got %v", q))
	}
	return int64(q), nil
}

// toStatus 將 domain 錯誤轉成 gRPC status
func toStatus(err error) error {
	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrStorageUnavailable):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientCredit):
		code = codes.FailedPrecondition
	case errors.Is(err, domain.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, domain.ErrAccountNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

var _ LedgerServiceServer = (*GrpcServer)(nil)

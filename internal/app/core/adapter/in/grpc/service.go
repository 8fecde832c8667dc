package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "ledger.v1.LedgerService"

	MethodDeposit    = "/" + ServiceName + "/Deposit"
	MethodTransfer   = "/" + ServiceName + "/Transfer"
	MethodGetBalance = "/" + ServiceName + "/GetBalance"
)

// LedgerServiceServer 所有方法的訊息都是 structpb.Struct
//
//	Deposit:    {cpf?, quantity} → {cpf, credit}
//	Transfer:   {cpf, quantity}  → {id, from, to, amount, state}
//	GetBalance: {}               → {cpf, credit}
type LedgerServiceServer interface {
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LedgerServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// LedgerServiceDesc 手動註冊的服務描述
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Deposit",
			Handler: unaryHandler(MethodDeposit, func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.Deposit(ctx, req)
			}),
		},
		{
			MethodName: "Transfer",
			Handler: unaryHandler(MethodTransfer, func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.Transfer(ctx, req)
			}),
		},
		{
			MethodName: "GetBalance",
			Handler: unaryHandler(MethodGetBalance, func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetBalance(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer 將實作註冊到 gRPC server
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}

// LedgerServiceClient 客戶端 stub
type LedgerServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewLedgerServiceClient(cc grpc.ClientConnInterface) *LedgerServiceClient {
	return &LedgerServiceClient{cc: cc}
}

func (c *LedgerServiceClient) Deposit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodDeposit, in, opts...)
}

func (c *LedgerServiceClient) Transfer(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodTransfer, in, opts...)
}

func (c *LedgerServiceClient) GetBalance(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetBalance, in, opts...)
}

func (c *LedgerServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

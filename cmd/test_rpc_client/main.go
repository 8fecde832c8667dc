package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
	grpcpool "github.com/JoeShih716/go-credit-ledger/pkg/grpc"
)

// 壓測用的 gRPC client：對同一個帳戶大量存款或轉帳，最後輸出 TPS
func main() {
	var (
		addr        = flag.String("addr", "localhost:50051", "gRPC server address")
		token       = flag.String("token", os.Getenv("LEDGER_TOKEN"), "token returned by POST /login")
		mode        = flag.String("mode", "deposit", "deposit or transfer")
		to          = flag.String("to", "", "destination cpf (transfer mode)")
		amount      = flag.Int64("amount", 1, "quantity per request")
		total       = flag.Int("n", 100000, "total requests")
		concurrency = flag.Int("c", 1000, "concurrent requests")
		timeout     = flag.Duration("timeout", 120*time.Second, "overall timeout")
	)
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if *token == "" {
		log.Fatal("missing -token")
	}
	if *mode == "transfer" && *to == "" {
		log.Fatal("transfer mode needs -to")
	}

	// 每個請求帶上 x-request-id 方便在 server log 追蹤
	pool := grpcpool.NewPool(grpcpool.WithInterceptor(func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", uuid.NewString())
		return invoker(ctx, method, req, reply, cc, opts...)
	}))
	defer func() { _ = pool.Close() }()

	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatal("create connection", zap.Error(err))
	}
	client := grpc_adapter.NewLedgerServiceClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+*token)

	payload := map[string]any{"quantity": *amount}
	if *mode == "transfer" {
		payload["cpf"] = *to
	}
	req, err := structpb.NewStruct(payload)
	if err != nil {
		log.Fatal("build request", zap.Error(err))
	}

	call := client.Deposit
	if *mode == "transfer" {
		call = client.Transfer
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
		sem    = make(chan struct{}, *concurrency)
	)
	wg.Add(*total)
	start := time.Now()
	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, err := call(ctx, req); err != nil {
				failed.Add(1)
				if idx%10000 == 0 {
					log.Warn("request failed", zap.Int("idx", idx), zap.Stringer("code", status.Code(err)), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	log.Info("done",
		zap.Int("requests", *total),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(*total)/elapsed.Seconds()))

	balance, err := client.GetBalance(ctx, nil)
	if err != nil {
		log.Fatal("get balance", zap.Error(err))
	}
	log.Info("final balance", zap.Any("balance", balance.AsMap()))
}

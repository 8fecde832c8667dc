package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/in/http"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/auth"
	memory_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/memory"
	mongo_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/mongo"
	mysql_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/mysql"
	redis_adapter "github.com/JoeShih716/go-credit-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-credit-ledger/internal/config"
	"github.com/JoeShih716/go-credit-ledger/pkg/logger"
	"github.com/JoeShih716/go-credit-ledger/pkg/mongo"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
	"github.com/JoeShih716/go-credit-ledger/pkg/redis"
	"github.com/JoeShih716/go-credit-ledger/pkg/wal"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. 載入設定
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳戶儲存 (Driven Adapter)
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("account store ready", zap.String("driver", cfg.Store.Driver))

	// 3. 初始化 UseCase
	tokens, err := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	engine := usecase.NewLedgerEngine(store, log,
		usecase.WithCompensationPolicy(cfg.Ledger.CompensationRetries, cfg.Ledger.CompensationBackoff))
	core := usecase.NewCoreUseCase(store, engine, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens, log)

	// 4. 初始化 Driving Adapters
	grpcServer := grpc_adapter.NewGrpcServer(core, log)
	s := grpc.NewServer(grpcServer.ServerOptions()...)
	grpc_adapter.RegisterLedgerServiceServer(s, grpcServer)
	if cfg.GRPC.Reflection {
		reflection.Register(s)
	}

	app := http_adapter.NewApp(http_adapter.NewHandler(core, log), http_adapter.Config{
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	})

	// 5. 啟動
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	serveErr := make(chan error, 2)
	go func() {
		log.Info("starting gRPC server", zap.String("addr", cfg.GRPC.Addr))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		log.Info("starting HTTP server", zap.String("addr", cfg.HTTP.Addr))
		if err := app.Listen(cfg.HTTP.Addr); err != nil {
			serveErr <- fmt.Errorf("http serve: %w", err)
		}
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serveErr:
		log.Error("server failed", zap.Error(err))
	}

	if shutdownErr := app.ShutdownWithTimeout(shutdownTimeout); shutdownErr != nil {
		log.Warn("http shutdown", zap.Error(shutdownErr))
	}
	s.GracefulStop()
	log.Info("server exited")
	return err
}

// openStore 依 store.driver 建立 AccountStore，回傳的 close 負責釋放底層資源
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (usecase.AccountStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory, config.DriverSequenced:
		var w *wal.Log
		if cfg.Store.WALPath != "" {
			var err error
			if w, err = wal.Open(cfg.Store.WALPath); err != nil {
				return nil, nil, fmt.Errorf("open wal: %w", err)
			}
			log.Info("wal opened",
				zap.String("path", w.Path()),
				zap.Uint64("last_seq", w.LastSeq()),
				zap.Int64("bytes", w.Size()),
			)
		}
		closeWAL := func() {
			if w != nil {
				_ = w.Close()
			}
		}

		if cfg.Store.Driver == config.DriverMemory {
			store, err := memory_adapter.NewStore(w)
			if err != nil {
				closeWAL()
				return nil, nil, fmt.Errorf("init memory store: %w", err)
			}
			log.Info("memory store loaded", zap.Int("accounts", store.Len()))
			return store, closeWAL, nil
		}

		store, err := memory_adapter.NewSequencedStore(w, cfg.Store.QueueSize)
		if err != nil {
			closeWAL()
			return nil, nil, fmt.Errorf("init sequenced store: %w", err)
		}
		runCtx, cancel := context.WithCancel(context.Background())
		store.Start(runCtx)
		return store, func() {
			cancel()
			<-store.Done()
			closeWAL()
		}, nil

	case config.DriverMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		store := mysql_adapter.NewStore(client)
		if err := store.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		return store, func() { _ = client.Close() }, nil

	case config.DriverRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return redis_adapter.NewStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil

	case config.DriverMongo:
		client, err := mongo.NewClient(ctx, cfg.Mongo, log)
		if err != nil {
			return nil, nil, err
		}
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		return mongo_adapter.NewStore(coll), func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

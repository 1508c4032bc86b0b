package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gopkg.in/yaml.v3"

	grpc_adapter "github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/in/grpc"
	memory_adapter "github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/out/mysql"
	redis_adapter "github.com/JoeShih716/snackbar-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/snackbar-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/snackbar-ledger/pkg/logger"
	"github.com/JoeShih716/snackbar-ledger/pkg/mysql"
	"github.com/JoeShih716/snackbar-ledger/pkg/redis"
	"github.com/JoeShih716/snackbar-ledger/pkg/wal"
)

// 儲存層種類
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

const defaultConfigPath = "config/config.yaml"

type LedgerConfig struct {
	Store         string        `yaml:"store"`
	WALPath       string        `yaml:"walPath"`
	LockTimeout   time.Duration `yaml:"lockTimeout"`
	NotifyTimeout time.Duration `yaml:"notifyTimeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type Config struct {
	Ledger LedgerConfig  `yaml:"ledger"`
	GRPC   GRPCConfig    `yaml:"grpc"`
	Log    logger.Config `yaml:"log"`
	MySQL  mysql.Config  `yaml:"mysql"`
	Redis  redis.Config  `yaml:"redis"`
}

func main() {
	// 1. 載入設定
	cfg, err := loadConfig(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("ledger core exited with error", zap.Error(err))
	}
}

func run(cfg Config, log *zap.Logger) error {
	// 收到訊號時取消: 啟動中的連線重試與執行中的伺服器都會停下
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳本 (Driven Adapter)
	ledger, closeLedger, err := newLedger(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger()

	// 3. 提交後的通知通道
	opts := []usecase.Option{
		usecase.WithLogger(log.Named("core")),
		usecase.WithNotifyTimeout(cfg.Ledger.NotifyTimeout),
	}
	if cfg.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, usecase.WithPublishers(redis_adapter.NewPublisher(client, cfg.Redis.ChannelPrefix)))
	}
	broker := memory_adapter.NewBroker(0)
	defer broker.Close()
	opts = append(opts, usecase.WithPublishers(broker))
	go logEvents(broker, log.Named("events"))

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(ledger, opts...)

	// 5. 初始化 gRPC Adapter (Driving Adapter)
	grpcServer := grpc_adapter.NewGrpcServer(coreUseCase, log.Named("grpc"))

	// 6. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GRPC.Addr, err)
	}

	s := grpc.NewServer(grpc.UnaryInterceptor(grpc_adapter.LoggingInterceptor(log.Named("grpc"))))
	grpc_adapter.RegisterLedgerServiceServer(s, grpcServer)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus(grpc_adapter.ServiceName, healthpb.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr), zap.String("store", cfg.Ledger.Store))
		serveErr <- s.Serve(lis)
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server failed: %w", err)
		}
	}

	healthServer.Shutdown()
	s.GracefulStop()

	// 等待尚未送出的通知
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ledger.NotifyTimeout)
	defer cancel()
	if err := coreUseCase.Close(shutdownCtx); err != nil {
		log.Warn("pending notifications dropped", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}

// newLedger 依設定建立帳本，回傳的 close 函式負責釋放底層資源
func newLedger(ctx context.Context, cfg Config, log *zap.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Store {
	case StoreMySQL:
		dbClient, err := mysql.NewClient(ctx, cfg.MySQL, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to mysql", zap.String("host", cfg.MySQL.Host), zap.String("db", cfg.MySQL.DBName))

		ledger := mysql_adapter.NewMySQLLedger(dbClient.DB(), mysql_adapter.WithIsolation(cfg.MySQL.IsolationLevel()))
		if err := ledger.Migrate(ctx); err != nil {
			_ = dbClient.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return ledger, func() { _ = dbClient.Close() }, nil

	case StoreMemory:
		// 初始化 WAL
		if dir := filepath.Dir(cfg.Ledger.WALPath); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, nil, fmt.Errorf("failed to create wal dir: %w", err)
			}
		}
		walFile, err := wal.NewWAL(cfg.Ledger.WALPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init wal: %w", err)
		}
		start := time.Now()
		ledger, err := memory_adapter.NewMutexLedger(walFile, memory_adapter.WithLockTimeout(cfg.Ledger.LockTimeout))
		if err != nil {
			_ = walFile.Close()
			return nil, nil, fmt.Errorf("failed to recover from wal: %w", err)
		}
		log.Info("memory ledger recovered", zap.String("wal", walFile.Path()), zap.Duration("elapsed", time.Since(start)))
		return ledger, func() { _ = walFile.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("invalid ledger store %q", cfg.Ledger.Store)
	}
}

// logEvents 本機訂閱者：把提交事件記在 debug log
func logEvents(broker *memory_adapter.Broker, log *zap.Logger) {
	events, cancel := broker.Subscribe()
	defer cancel()
	for event := range events {
		log.Debug("event",
			zap.String("id", event.ID.String()),
			zap.String("type", string(event.Type)),
			zap.Int64("account_id", event.AccountID),
			zap.Int64("transaction_id", event.TransactionID),
		)
	}
}

func configPath() string {
	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

func loadConfig(path string) (Config, error) {
	cfgData, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyDefaults 補全預設配置 (如果 yaml 沒寫)
func applyDefaults(cfg *Config) {
	if cfg.Ledger.Store == "" {
		cfg.Ledger.Store = StoreMemory
	}
	if cfg.Ledger.WALPath == "" {
		cfg.Ledger.WALPath = "wal.log"
	}
	if cfg.Ledger.LockTimeout == 0 {
		cfg.Ledger.LockTimeout = memory_adapter.DefaultLockTimeout
	}
	if cfg.Ledger.NotifyTimeout == 0 {
		cfg.Ledger.NotifyTimeout = usecase.DefaultNotifyTimeout
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}

	if cfg.MySQL.Port == 0 {
		cfg.MySQL.Port = 3306
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 100
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 10
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.MySQL.LockWaitTimeout == 0 {
		cfg.MySQL.LockWaitTimeout = 30 * time.Second
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"IntentFlow-Chain/internal/api"
	"IntentFlow-Chain/internal/config"
	"IntentFlow-Chain/internal/intent"
	"IntentFlow-Chain/internal/run"
	"IntentFlow-Chain/internal/signer"
	"IntentFlow-Chain/internal/web3/provider"
	"IntentFlow-Chain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
)

// main 是 IntentFlow 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runDaemon(ctx); err != nil {
		log.Fatalf("intentflowd 运行失败: %v", err)
	}
}

func runDaemon(ctx context.Context) error {
	configPath := os.Getenv("INTENTFLOW_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "intentflow.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	signerStore, err := createSignerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if signerStore != nil {
			_ = signerStore.Close()
		}
	}()

	runQueue, err := createRunQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if runQueue != nil {
			if err := runQueue.Close(); err != nil {
				log.Printf("关闭执行队列失败: %v", err)
			}
		}
	}()

	chainRegistry, err := provider.NewRegistry(ctx, cfg.Web3)
	if err != nil {
		return err
	}
	defer chainRegistry.Close()

	web3Client, err := chainRegistry.DefaultClient()
	if err != nil {
		return err
	}

	router, ok := chainRegistry.Router(chainRegistry.DefaultChain())
	if !ok {
		raw := strings.TrimSpace(cfg.Intent.Router)
		if raw == "" {
			return errors.New("未配置意图路由合约地址")
		}
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("意图路由合约地址无效: %s", raw)
		}
		router = common.HexToAddress(raw)
	}

	orchestrator := intent.New(signerStore, web3Client, router,
		intent.WithPollInterval(cfg.Intent.PollInterval()),
		intent.WithConfirmTimeout(cfg.Intent.ConfirmTimeout()),
	)

	runStore := run.NewMemoryStore()
	defer func() {
		_ = runStore.Close()
	}()

	runService := run.NewService(runStore, runQueue)
	processor := run.NewProcessor(orchestrator, runStore, runQueue,
		run.WithWorkerCount(cfg.RunQueue.Worker),
		run.WithProcessorLogger(slog.Default()),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("执行处理器异常退出: %v", err)
		}
	}()

	server := api.NewServer(cfg.Server.Address, orchestrator, runService)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func createSignerStore(ctx context.Context, cfg *config.Config) (signer.Store, error) {
	switch cfg.Signers.Driver {
	case "", "memory":
		return signer.NewMemoryStore(cfg.Signers.Seeds)
	case "mysql":
		return signer.NewSQLStore(ctx, signer.MySQLConfig{
			DSN:             cfg.Signers.DSN,
			MaxOpenConns:    cfg.Signers.MaxOpenConns,
			MaxIdleConns:    cfg.Signers.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Signers.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Signers.ConnMaxIdleTimeSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("未知的签名者存储驱动: %s", cfg.Signers.Driver)
	}
}

func createRunQueue(cfg *config.Config) (run.Queue, error) {
	switch cfg.RunQueue.Driver {
	case "", "memory":
		return run.NewMemoryQueue(1024), nil
	case "redis":
		return run.NewRedisQueue(run.RedisQueueConfig{
			Address:   cfg.RunQueue.Redis.Address,
			Password:  cfg.RunQueue.Redis.Password,
			DB:        cfg.RunQueue.Redis.DB,
			Queue:     cfg.RunQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.RunQueue.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return run.NewRabbitMQQueue(run.RabbitMQConfig{
			URL:        cfg.RunQueue.RabbitMQ.URL,
			Queue:      cfg.RunQueue.RabbitMQ.Queue,
			Prefetch:   cfg.RunQueue.RabbitMQ.Prefetch,
			Durable:    cfg.RunQueue.RabbitMQ.Durable,
			AutoDelete: cfg.RunQueue.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.RunQueue.Driver)
	}
}

// cmd/server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custody-service/internal/cache"
	"custody-service/internal/chains"
	"custody-service/internal/chains/nodit"
	"custody-service/internal/chains/oneinch"
	"custody-service/internal/chains/registry"
	"custody-service/internal/config"
	"custody-service/internal/events"
	"custody-service/internal/handler"
	"custody-service/internal/repository"
	"custody-service/internal/router"
	"custody-service/internal/security"
	"custody-service/internal/server"
	"custody-service/internal/token"
	"custody-service/internal/usecase"
	"custody-service/internal/worker"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Key vault ---
	vault, err := security.LoadVault(security.KeySource{
		EnvValue: cfg.Security.EncryptionKey,
		EnvName:  "WALLET_ENCRYPTION_KEY",
		FilePath: cfg.Security.KeyFile,
	}, logger)
	if err != nil {
		logger.Fatal("failed to load encryption key", zap.Error(err))
	}

	signingKey := []byte(cfg.Security.IntentSigningKey)
	if len(signingKey) == 0 {
		signingKey = vault.DeriveKey("intent-token")
	}
	signer, err := token.NewSigner(signingKey)
	if err != nil {
		logger.Fatal("invalid intent signing key", zap.Error(err))
	}

	// --- Database ---
	pool, err := config.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("failed to apply schema", zap.Error(err))
		}
	}

	walletRepo := repository.NewWalletRepository(pool, logger)

	var intentRepo repository.IntentRepository
	if cfg.Intent.Store == "memory" {
		logger.Warn("Using in-memory intent store; pending intents are lost on restart")
		intentRepo = repository.NewMemoryIntentRepository()
	} else {
		intentRepo = repository.NewIntentRepository(pool, logger)
	}

	// --- Chains ---
	reg := registry.NewDefaultRegistry()
	clients, err := chains.Dial(ctx, reg, cfg.Chains.AlchemyAPIKey, cfg.Chains.RPCOverrides, logger)
	if err != nil {
		logger.Fatal("failed to initialize chains", zap.Error(err))
	}

	var provider chains.BalanceProvider
	if cfg.Chains.NoditAPIKey != "" {
		provider = nodit.NewClient(cfg.Chains.NoditBaseURL, cfg.Chains.NoditAPIKey, logger)
		logger.Info("Using Nodit balance provider")
	} else {
		logger.Info("NODIT_API_KEY not set, reading balances over RPC")
	}
	swaps := oneinch.NewClient(cfg.Chains.OneInchBaseURL, cfg.Chains.OneInchAPIKey, logger)

	adapter := chains.NewAdapter(reg, clients, provider, swaps, chains.Options{
		Slippage: cfg.Swap.Slippage,
		Deadline: cfg.Swap.Deadline,
	}, logger)

	// --- Usecases ---
	walletUC := usecase.NewWalletUsecase(walletRepo, vault.Encryption, logger)
	balanceUC := usecase.NewBalanceUsecase(walletUC, adapter, reg, logger)
	intentUC := usecase.NewIntentUsecase(walletUC, adapter, intentRepo, signer, reg, usecase.IntentConfig{
		TTL:              cfg.Intent.TTL,
		DefaultBuyAmount: cfg.Swap.DefaultBuyAmount,
		Slippage:         cfg.Swap.Slippage,
		SwapDeadline:     cfg.Swap.Deadline,
		LockTTL:          cfg.Intent.LockTTL,
	}, logger)

	if rdb := config.NewRedis(ctx, cfg.Redis, logger); rdb != nil {
		defer rdb.Close()
		c := cache.New(rdb, logger)
		intentUC.WithLocker(c).
			WithLimiter(cache.NewQuoteLimiter(c, cfg.Intent.QuoteRateWindow, cfg.Intent.QuoteRateLimit))
	}
	if writer := config.NewKafkaWriter(cfg.Kafka, logger); writer != nil {
		defer writer.Close()
		intentUC.WithPublisher(events.NewPublisher(writer, logger))
	}

	// --- HTTP ---
	r := router.New(router.Handlers{
		Wallet:  handler.NewWalletHandler(walletUC, logger),
		Balance: handler.NewBalanceHandler(balanceUC, logger),
		Intent:  handler.NewIntentHandler(intentUC, logger),
	}, cfg.HTTP.AllowedOrigins, logger)
	srv := server.New(cfg.HTTP.Addr, r, cfg.HTTP.WriteTimeout, logger)

	// --- Worker ---
	sweeper := worker.NewIntentSweeper(intentUC, cfg.Intent.SweepInterval, logger)
	go sweeper.Start(ctx)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe()
	}()

	logger.Info("custody service started",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("key_origin", string(vault.Origin)),
		zap.String("key_version", vault.GetVersion()),
		zap.Strings("chains", reg.List()))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	sweeper.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	logger.Info("custody service stopped")
}

func newLogger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if os.Getenv("APP_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/balanceledger/internal/adapter/http"
	"github.com/iho/balanceledger/internal/adapter/http/handler"
	"github.com/iho/balanceledger/internal/adapter/http/middleware"
	memoryRepo "github.com/iho/balanceledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/balanceledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/balanceledger/internal/adapter/repository/redis"
	"github.com/iho/balanceledger/internal/infrastructure/config"
	"github.com/iho/balanceledger/internal/infrastructure/logger"
	"github.com/iho/balanceledger/internal/infrastructure/metrics"
	"github.com/iho/balanceledger/internal/infrastructure/postgres"
	"github.com/iho/balanceledger/internal/infrastructure/redis"
	"github.com/iho/balanceledger/internal/usecase"
)

const (
	connectRetryWindow  = 30 * time.Second
	rateLimitSweepEvery = time.Minute
	rateLimitMaxIdle    = 10 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, log); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.ConnectWithRetry(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	}, connectRetryWindow, log)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	checks := map[string]handler.Pinger{"postgres": pool}

	// Connect to Redis
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("connected to redis")

		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache, err := newBalanceCache(cfg, redisClient)
	if err != nil {
		return err
	}
	log.Info().Str("backend", cfg.CacheBackend).Dur("ttl", cfg.CacheTTL).Int("max_entries", cfg.CacheMaxEntries).Msg("balance cache ready")

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool, cfg.LockTimeout)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	historyRepo := postgresRepo.NewHistoryRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()

	// Initialize use cases
	coordinator := usecase.NewTransactionCoordinator(txManager, accountRepo, historyRepo).
		WithTimeout(cfg.TransactionTimeout)
	balanceUC := usecase.NewBalanceUseCase(coordinator, accountRepo, cache, m, log)
	accountUC := usecase.NewAccountUseCase(accountRepo, idGen)
	historyUC := usecase.NewHistoryUseCase(accountRepo, historyRepo)
	reconciliationUC := usecase.NewReconciliationUseCase(txManager, accountRepo, historyRepo, cache, m, log).
		WithTimeout(cfg.TransactionTimeout)

	var retrier usecase.Retrier
	if cfg.MutationRetries > 0 {
		retrier = postgresRepo.NewRetrier(cfg.MutationRetries, log)
	}

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:        handler.NewAccountHandler(accountUC),
		BalanceHandler:        handler.NewBalanceHandler(balanceUC, retrier),
		HistoryHandler:        handler.NewHistoryHandler(historyUC),
		ReconciliationHandler: handler.NewReconciliationHandler(reconciliationUC),
		HealthHandler:         handler.NewHealthHandler(checks),
		IdempotencyTTL:        cfg.IdempotencyTTL,
		Metrics:               m,
		Gatherer:              reg,
		CORSAllowedOrigins:    cfg.CORSAllowedOrigins,
		Logger:                log,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}
	if cfg.RateLimitRPS > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).OnLimit(m.RateLimitHits.Inc)
		go rl.RunCleanup(ctx, rateLimitSweepEvery, rateLimitMaxIdle)
		routerCfg.RateLimiter = rl
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// newBalanceCache builds the configured cache backend.
func newBalanceCache(cfg *config.Config, client *goredis.Client) (usecase.BalanceCache, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		if client == nil {
			return nil, errors.New("redis cache backend requires REDIS_URL")
		}
		return redisRepo.NewBalanceCache(client, cfg.CacheTTL, cfg.CacheMaxEntries), nil
	case config.CacheBackendMemory:
		return memoryRepo.NewBalanceCache(cfg.CacheMaxEntries, cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

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

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"log/slog"

	"github.com/FrknKoseoglu/phintech-core/libs/health"
	"github.com/FrknKoseoglu/phintech-core/libs/httpmiddleware"
	"github.com/FrknKoseoglu/phintech-core/libs/kafka"
	"github.com/FrknKoseoglu/phintech-core/libs/logging"
	"github.com/FrknKoseoglu/phintech-core/libs/metrics"
	"github.com/FrknKoseoglu/phintech-core/libs/trace"

	"github.com/FrknKoseoglu/phintech-core/internal/config"
	"github.com/FrknKoseoglu/phintech-core/internal/engine"
	"github.com/FrknKoseoglu/phintech-core/internal/handlers"
	"github.com/FrknKoseoglu/phintech-core/internal/pricing"
	"github.com/FrknKoseoglu/phintech-core/internal/service"
	"github.com/FrknKoseoglu/phintech-core/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("PHIN_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)

	shutdownTracer, err := trace.InitTracer(cfg.ServiceName, cfg.Env)
	if err != nil {
		logger.Error("tracer init failed", "error", err)
	} else {
		defer func() {
			_ = shutdownTracer(context.Background())
		}()
	}

	if cfg.Env == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(registry)

	ready := health.NewManager(true)

	pool, err := connectDB(cfg)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := storage.NewPostgres(pool, logger)

	providers := []pricing.Provider{
		pricing.NewCryptoProvider(cfg.Market.CryptoBaseURL, 5*time.Second),
	}
	if cfg.Market.QuotesBaseURL != "" {
		providers = append(providers, pricing.NewMarketProvider(cfg.Market.QuotesBaseURL, 5*time.Second))
	}
	oracle := pricing.NewOracle(providers, logger, pricing.NewMetrics(registry),
		pricing.WithFallback(pricing.DefaultFallback()),
		pricing.WithFreshFor(cfg.Market.FreshFor),
	)

	settler := engine.NewSettler(store)

	var sweepLock *engine.SweepLock
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The lock is advisory; sweeps stay correct without it.
			logger.Warn("redis unavailable, sweep lock disabled", "error", err)
			_ = redisClient.Close()
			redisClient = nil
		} else {
			sweepLock = engine.NewSweepLock(redisClient, cfg.Sweep.LockTTL)
			defer redisClient.Close()
		}
	}

	var publisher kafka.Publisher
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers, logger, kafka.NewProducerMetrics(registry))
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer
	}

	eng := engine.New(store, oracle, settler, sweepLock, publisher, engine.Config{
		OracleTimeout: cfg.Sweep.OracleTimeout,
		SettleTimeout: cfg.Sweep.SettleTimeout,
		Concurrency:   cfg.Sweep.Concurrency,
		EventsTopic:   cfg.Kafka.OrdersTopic,
		FallbackRate:  decimal.NewFromFloat(cfg.Sweep.FallbackRate),
	}, logger, engine.NewMetrics(registry))

	svc := service.New(store, oracle, settler, logger, service.NewMetrics(registry),
		decimal.NewFromFloat(cfg.Wallet.OpeningBalanceTRY),
		decimal.NewFromFloat(cfg.Sweep.FallbackRate),
	)

	handler := &handlers.Handler{
		Accounts:    svc,
		Orders:      svc,
		Wallet:      svc,
		Market:      svc,
		Portfolio:   svc,
		Sweeper:     eng,
		Logger:      logger,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		TokenTTL:    cfg.Auth.TokenTTL,
		SweepSecret: cfg.Sweep.Secret,
	}

	router := gin.New()
	router.Use(httpmiddleware.RequestID())
	router.Use(httpmiddleware.Logger(logger))
	router.Use(httpmiddleware.Recovery(logger))
	router.Use(trace.Middleware(cfg.ServiceName))

	router.GET("/healthz", health.LivenessHandler)
	router.GET("/readyz", health.ReadinessHandler(ready))
	router.GET(cfg.MetricsPath, gin.WrapH(metrics.Handler(registry)))

	handler.Register(router)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	defer stopSweeps()
	if cfg.Sweep.Interval > 0 {
		go runScheduledSweeps(sweepCtx, eng, cfg.Sweep.Interval, logger)
	}

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("phintech-core starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(server, ready, stopSweeps, logger)
}

func connectDB(cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func runScheduledSweeps(ctx context.Context, eng *engine.Engine, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := eng.Sweep(ctx); err != nil && !errors.Is(err, engine.ErrSweepInProgress) {
				logger.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}

func waitForShutdown(server *http.Server, ready *health.Manager, stopSweeps func(), logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ready.SetNotReady("shutting down")
	stopSweeps()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutdown started")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("shutdown complete")
}

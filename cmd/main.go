package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"cerberus/internal/adapters/config"
	"cerberus/internal/adapters/errors/noop"
	"cerberus/internal/adapters/errors/sentry"
	"cerberus/internal/adapters/kafka"
	"cerberus/internal/adapters/liquidity"
	"cerberus/internal/adapters/postgres"
	"cerberus/internal/adapters/redis"
	"cerberus/internal/adapters/settlement"
	"cerberus/internal/adapters/signer"
	"cerberus/internal/adapters/telegram"
	"cerberus/internal/alert"
	"cerberus/internal/api"
	healthapi "cerberus/internal/api/health"
	"cerberus/internal/api/status"
	"cerberus/internal/metrics"
	pgrepo "cerberus/internal/repository/postgres"
	redisrepo "cerberus/internal/repository/redis"
	"cerberus/internal/services/breaker"
	"cerberus/internal/services/exposure"
	healthsvc "cerberus/internal/services/health"
	liquidationsvc "cerberus/internal/services/liquidation"
	"cerberus/internal/workers"
	"cerberus/pkg/errors"
	"cerberus/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, version, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Databases
	pgClient, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	loanRepo := pgrepo.NewLoanRepository(pgClient.DB())
	recordRepo := pgrepo.NewLiquidationRepository(pgClient.DB())
	riskRepo := pgrepo.NewRiskRepository(pgClient.DB())
	healthRepo := pgrepo.NewHealthRepository(pgClient.DB())
	tokenRepo := pgrepo.NewTokenRepository(pgClient.DB())
	lockStore := redisrepo.NewLockStore(redisClient.Client())

	// Event publishing (optional)
	var producer alert.Producer
	var kafkaProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		kafkaProducer = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		producer = kafkaProducer
		defer kafkaProducer.Close()
		log.Info("Kafka producer initialized", "brokers", cfg.Kafka.Brokers)
	}

	// Operator alert channel (optional)
	var notifier alert.Notifier
	if cfg.Telegram.Enabled {
		tg, err := telegram.NewNotifier(telegram.Config{
			Token:  cfg.Telegram.BotToken,
			ChatID: cfg.Telegram.ChatID,
		}, log)
		if err != nil {
			log.Warnf("Failed to initialize Telegram notifier: %v", err)
		} else {
			notifier = tg
			log.Info("Telegram alert notifier initialized")
		}
	}

	alerts := alert.New(riskRepo, producer, notifier, errorTracker)

	// External boundaries
	settler := settlement.NewClient(cfg.Settlement.ExecutorURL, cfg.Settlement.Timeout, log)
	liquidityReader := liquidity.NewReader(cfg.Liquidity.IndexerURL, cfg.Liquidity.Timeout, log)
	identity := signer.NewResolver(cfg.Signer.KeypairPath, log)

	// Services
	instanceID := uuid.New()
	log.Info("Liquidator instance id assigned", "instance_id", instanceID)

	metrics.Register()

	breakerSvc := breaker.New(riskRepo, recordRepo, breaker.Limits{
		Loss1hLamports:  cfg.Liquidator.Loss1hLimit,
		Loss24hLamports: cfg.Liquidator.Loss24hLimit,
		Count1h:         cfg.Liquidator.Count1hLimit,
	}, alerts, producer)

	exposureSvc := exposure.New(loanRepo, tokenRepo, liquidityReader, exposure.Bands{
		WatchBps:    cfg.Exposure.WatchBps,
		WarningBps:  cfg.Exposure.WarningBps,
		CriticalBps: cfg.Exposure.CriticalBps,
	}, alerts)

	healthService := healthsvc.New(healthRepo, recordRepo, instanceID, healthsvc.Policy{
		CycleInterval:         cfg.Liquidator.ScanInterval,
		FailureAlertThreshold: cfg.Liquidator.FailureAlertThreshold,
		StalenessMultiple:     cfg.Liquidator.StalenessMultiple,
	})

	coordinator := liquidationsvc.NewCoordinator(
		instanceID,
		liquidationsvc.Config{
			LockTTL:          cfg.Liquidator.LockTTL,
			InterLoanDelay:   cfg.Liquidator.InterLoanDelay,
			AutoBlacklistBps: cfg.Liquidator.AutoBlacklistBps,
		},
		loanRepo,
		recordRepo,
		tokenRepo,
		lockStore,
		breakerSvc,
		settler,
		identity,
		liquidityReader,
		producer,
		alerts,
	)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(workers.NewLiquidationWorker(coordinator, healthService, cfg.Liquidator.ScanInterval, true))
	scheduler.RegisterWorker(workers.NewExposureWorker(exposureSvc, cfg.Exposure.RefreshInterval, true))

	// HTTP API
	healthHandler := healthapi.New(log, pgClient.DB(), redisClient.Client(), cfg.App.Name, version)
	statusHandler := status.New(breakerSvc, exposureSvc, healthService, recordRepo, riskRepo, tokenRepo)
	server := api.NewServer(api.ServerConfig{
		ListenAddr:  cfg.HTTP.ListenAddr,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, healthHandler, statusHandler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, scheduler, server, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	scheduler *workers.Scheduler,
	server *api.Server,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler shutdown: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}

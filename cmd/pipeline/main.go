package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/adapters/config"
	"github.com/lumenpulse/pulse-analytics/internal/adapters/database"
	"github.com/lumenpulse/pulse-analytics/internal/adapters/horizon"
	metricsAdapter "github.com/lumenpulse/pulse-analytics/internal/adapters/metrics"
	redisAdapter "github.com/lumenpulse/pulse-analytics/internal/adapters/redis"
	"github.com/lumenpulse/pulse-analytics/internal/adapters/scorer"
	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/internal/anomaly"
	"github.com/lumenpulse/pulse-analytics/internal/articles"
	"github.com/lumenpulse/pulse-analytics/internal/enrichment"
	"github.com/lumenpulse/pulse-analytics/internal/health"
	"github.com/lumenpulse/pulse-analytics/internal/snapshot"
	"github.com/lumenpulse/pulse-analytics/internal/trends"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/metrics"
	"github.com/lumenpulse/pulse-analytics/pkg/worker"
	_ "github.com/lib/pq"
)

func main() {
	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("analytics pipeline starting...",
		zap.String("scorer", cfg.Scorer.BaseURL),
		zap.Strings("assets", cfg.Horizon.Assets),
	)

	// Initialize database
	db, err := initDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Initialize Redis (optional: date locks + trend cache)
	redisClient := initRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Initialize ClickHouse telemetry (optional)
	telemetry := initTelemetry(cfg)
	if telemetry != nil {
		defer telemetry.Close()
	}

	// Repositories
	articleRepo := articles.NewRepository(db.DB())
	snapshotRepo := snapshot.NewRepository(db.DB())
	engine := aggregation.NewEngine(articleRepo)

	// Snapshot generation reads its day windows through the aggregation layer
	var lockFor func(time.Time) snapshot.DateLock
	if redisClient != nil {
		lockFor = func(date time.Time) snapshot.DateLock {
			return redisClient.NewSnapshotLock(date)
		}
	}
	generator := snapshot.NewGenerator(engine, snapshotRepo, lockFor, telemetry)

	// Trend calculation over the stored global series
	var trendCache trends.Cache
	if redisClient != nil {
		trendCache = redisClient
	}
	trendCalc := trends.NewCalculator(snapshotRepo, trendCache, 30)

	// On-chain ingestion
	horizonClient := horizon.NewClient(cfg.Horizon.BaseURL, cfg.Horizon.Timeout)
	refresher := horizon.NewRefresher(horizonClient, articleRepo, cfg.Horizon.Assets)

	// Background workers
	workers := worker.NewWorkerGroup(ctx)
	workers.Add(enrichment.NewScheduler(articleRepo, scorer.NewClient(&cfg.Scorer), telemetry), cfg.Enrichment.Interval)
	workers.Add(horizon.NewWorker(refresher), time.Hour)
	workers.Add(snapshot.NewWorker(generator), cfg.Snapshot.Interval)
	workers.Add(trends.NewWorker(trendCalc), cfg.Snapshot.Interval)
	workers.Add(anomaly.NewWorker(articleRepo, anomaly.NewDetector(0, 0)), 15*time.Minute)
	workers.Add(aggregation.NewWorker(engine), time.Hour)

	// Health probes
	healthServer := health.NewServer(cfg.Health.Port, db, redisClient, workers.Names)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	workers.Start()
	healthServer.SetReady(true)

	// Keep service running
	<-ctx.Done()
	logger.Info("shutting down gracefully...")

	healthServer.SetReady(false)
	workers.Stop(30 * time.Second)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Stop(shutdownCtx); err != nil {
		logger.Warn("health server shutdown error", zap.Error(err))
	}

	return nil
}

// initDatabase initializes database connection with sqlx
func initDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	migrationsPath := "./migrations"
	if err := database.RunMigrations(db.Conn(), migrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("database connection established (sqlx)",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Name),
	)

	return db, nil
}

// initRedis initializes the optional Redis client. The pipeline degrades to
// lock-free, cache-free operation when Redis is unavailable.
func initRedis(cfg *config.Config) *redisAdapter.Client {
	if !cfg.Redis.Enabled {
		logger.Info("redis disabled, snapshot locks and trend cache off")
		return nil
	}

	client, err := redisAdapter.New(&cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, continuing without locks and cache",
			zap.Error(err),
		)
		return nil
	}
	return client
}

// initTelemetry initializes the optional ClickHouse run-telemetry sink
func initTelemetry(cfg *config.Config) *metrics.BufferedMetrics {
	if !cfg.ClickHouse.Enabled {
		logger.Info("clickhouse telemetry disabled")
		return nil
	}

	chDB, err := database.NewClickHouse(cfg.ClickHouse.GetDSN())
	if err != nil {
		logger.Warn("clickhouse unavailable, run telemetry off", zap.Error(err))
		return nil
	}

	writer := metricsAdapter.NewWriter(metricsAdapter.NewClickHouseRepository(chDB.DB()))
	return metrics.NewBufferedMetrics(metrics.BufferConfig{
		Writer:        writer,
		BatchSize:     100,
		FlushInterval: 10 * time.Second,
	})
}

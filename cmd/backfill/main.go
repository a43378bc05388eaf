package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/adapters/config"
	"github.com/lumenpulse/pulse-analytics/internal/adapters/database"
	"github.com/lumenpulse/pulse-analytics/internal/adapters/horizon"
	redisAdapter "github.com/lumenpulse/pulse-analytics/internal/adapters/redis"
	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/internal/articles"
	"github.com/lumenpulse/pulse-analytics/internal/backfill"
	"github.com/lumenpulse/pulse-analytics/internal/snapshot"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	_ "github.com/lib/pq"
)

func main() {
	// Parse flags
	var (
		days    = flag.Int("days", 0, "Number of days to backfill (required)")
		dryRun  = flag.Bool("dry-run", false, "Print planned operations without executing them")
		verbose = flag.Bool("verbose", false, "Enable verbose logging output")
	)
	flag.BoolVar(verbose, "v", false, "Enable verbose logging output (shorthand)")

	flag.Parse()

	if *days <= 0 {
		fmt.Fprintln(os.Stderr, "Error: --days is required and must be positive")
		flag.Usage()
		os.Exit(1)
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}
	if err := logger.Init(logLevel, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nBackfill interrupted, stopping after current window...")
		cancel()
	}()

	opts := backfill.Options{
		Days:    *days,
		DryRun:  *dryRun,
		Verbose: *verbose,
	}

	summary, err := run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printSummary(summary)

	// Window failures are reported in the summary, not through the exit
	// code; only setup and validation problems exit non-zero
	os.Exit(0)
}

func run(ctx context.Context, opts backfill.Options) (*backfill.Summary, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Dry-run plans windows without touching storage or the network
	if opts.DryRun {
		driver := backfill.NewDriver(nil, nil, nil, 0)
		summary, _, err := driver.Run(ctx, opts)
		return summary, err
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), "./migrations"); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	articleRepo := articles.NewRepository(db.DB())
	snapshotRepo := snapshot.NewRepository(db.DB())

	// Date locks keep a concurrent scheduled run from interleaving with the
	// backfill; without Redis the atomic upsert still keeps rows consistent
	var lockFor func(time.Time) snapshot.DateLock
	if cfg.Redis.Enabled {
		if redisClient, err := redisAdapter.New(&cfg.Redis); err != nil {
			logger.Warn("redis unavailable, backfilling without date locks", zap.Error(err))
		} else {
			defer redisClient.Close()
			lockFor = func(date time.Time) snapshot.DateLock {
				return redisClient.NewSnapshotLock(date)
			}
		}
	}

	generator := snapshot.NewGenerator(aggregation.NewEngine(articleRepo), snapshotRepo, lockFor, nil)

	horizonClient := horizon.NewClient(cfg.Horizon.BaseURL, cfg.Horizon.Timeout)
	refresher := horizon.NewRefresher(horizonClient, articleRepo, cfg.Horizon.Assets)

	driver := backfill.NewDriver(generator, refresher, articleRepo, cfg.Backfill.WindowDelay)
	summary, _, err := driver.Run(ctx, opts)
	return summary, err
}

func printSummary(summary *backfill.Summary) {
	fmt.Println()
	fmt.Println("============================================================")
	fmt.Println("BACKFILL SUMMARY")
	fmt.Println("============================================================")
	fmt.Printf("Total Periods Processed: %d\n", summary.TotalPeriods)
	if summary.DryRun {
		fmt.Println("Mode: DRY RUN - no data was processed")
		return
	}
	fmt.Printf("Successful: %d\n", summary.Successful)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Printf("Success Rate: %.1f%%\n", summary.SuccessRate)
	fmt.Printf("Total Articles: %d\n", summary.TotalArticles)
	fmt.Printf("Total Volume: %s\n", summary.TotalVolume.StringFixed(2))
	fmt.Printf("Duration: %s\n", summary.Duration.Round(time.Millisecond))
}

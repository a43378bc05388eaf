package horizon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/aggregation"
	"github.com/lumenpulse/pulse-analytics/internal/backfill"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// SignalStore persists fetched volume signals
type SignalStore interface {
	UpsertSignals(ctx context.Context, signals []models.Signal) (int, error)
}

// Refresher pulls trade volume for the configured assets and stores it as
// on-chain signals. One asset's fetch failure does not block the others.
type Refresher struct {
	client *Client
	store  SignalStore
	assets []string
}

// NewRefresher creates new on-chain ingestion refresher
func NewRefresher(client *Client, store SignalStore, assets []string) *Refresher {
	return &Refresher{
		client: client,
		store:  store,
		assets: assets,
	}
}

// Refresh fetches and upserts volume signals for [from, to). Returns an
// error only when every asset failed.
func (r *Refresher) Refresh(ctx context.Context, from, to time.Time) (backfill.RefreshResult, error) {
	result := backfill.RefreshResult{TotalVolume: decimal.Zero}
	failed := 0

	for _, asset := range r.assets {
		signals, err := r.client.FetchVolumeSignals(ctx, asset, from, to)
		if err != nil {
			logger.Warn("failed to fetch asset volume",
				zap.String("asset", asset),
				zap.Error(err),
			)
			failed++
			continue
		}

		upserted, err := r.store.UpsertSignals(ctx, signals)
		if err != nil {
			logger.Warn("failed to store asset volume signals",
				zap.String("asset", asset),
				zap.Error(err),
			)
			failed++
			continue
		}

		result.SignalsUpserted += upserted
		for i := range signals {
			if volume := aggregation.ParseNullableDecimal(signals[i].Volume); volume != nil {
				result.TotalVolume = result.TotalVolume.Add(*volume)
			}
		}
	}

	if len(r.assets) > 0 && failed == len(r.assets) {
		return result, fmt.Errorf("all %d assets failed to refresh", failed)
	}

	return result, nil
}

// Worker periodically refreshes the trailing 24 hours of on-chain volume
type Worker struct {
	refresher *Refresher
}

// NewWorker creates new on-chain refresh worker
func NewWorker(refresher *Refresher) *Worker {
	return &Worker{refresher: refresher}
}

// Name returns worker name
func (w *Worker) Name() string {
	return "onchain_refresh"
}

// Run refreshes the last 24 hours
func (w *Worker) Run(ctx context.Context) error {
	now := time.Now().UTC()

	result, err := w.refresher.Refresh(ctx, now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}

	logger.Info("on-chain volume refreshed",
		zap.Int("signals", result.SignalsUpserted),
		zap.String("volume", result.TotalVolume.String()),
	)
	return nil
}

package articles

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// UnscoredBatchLimit caps how many unscored articles a single query (and
// therefore a single enrichment run) may return.
const UnscoredBatchLimit = 100

// Repository handles database operations for articles and on-chain signals
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new articles repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindUnscored returns articles without a sentiment score, newest first,
// capped at UnscoredBatchLimit
func (r *Repository) FindUnscored(ctx context.Context) ([]models.Article, error) {
	query := `
		SELECT id, title, url, source, published_at, sentiment_score, created_at, updated_at
		FROM articles
		WHERE sentiment_score IS NULL
		ORDER BY published_at DESC
		LIMIT $1
	`

	articles := make([]models.Article, 0)
	if err := r.db.SelectContext(ctx, &articles, query, UnscoredBatchLimit); err != nil {
		return nil, fmt.Errorf("failed to query unscored articles: %w", err)
	}

	return articles, nil
}

// UpdateSentiment writes a sentiment score for an article. Scores only
// transition absent to present; an already scored article is left untouched.
func (r *Repository) UpdateSentiment(ctx context.Context, id string, score float64) error {
	query := `
		UPDATE articles
		SET sentiment_score = $2, updated_at = NOW()
		WHERE id = $1 AND sentiment_score IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, id, score); err != nil {
		return fmt.Errorf("failed to update sentiment for article %s: %w", id, err)
	}

	return nil
}

// FindBySentimentRange returns scored articles with min <= score <= max,
// newest first. Unscored articles are excluded for every range.
func (r *Repository) FindBySentimentRange(ctx context.Context, min, max float64) ([]models.Article, error) {
	query := `
		SELECT id, title, url, source, published_at, sentiment_score, created_at, updated_at
		FROM articles
		WHERE sentiment_score IS NOT NULL
		  AND sentiment_score >= $1
		  AND sentiment_score <= $2
		ORDER BY published_at DESC
	`

	articles := make([]models.Article, 0)
	if err := r.db.SelectContext(ctx, &articles, query, min, max); err != nil {
		return nil, fmt.Errorf("failed to query articles by sentiment range: %w", err)
	}

	return articles, nil
}

// ScoredSourceStats returns per-source average and count over scored
// articles only. Sources with no scored article produce no row.
func (r *Repository) ScoredSourceStats(ctx context.Context) ([]models.SourceSentiment, error) {
	query := `
		SELECT source, AVG(sentiment_score) AS average_sentiment, COUNT(*) AS article_count
		FROM articles
		WHERE sentiment_score IS NOT NULL
		GROUP BY source
	`

	bySource := make([]models.SourceSentiment, 0)
	if err := r.db.SelectContext(ctx, &bySource, query); err != nil {
		return nil, fmt.Errorf("failed to compute per-source sentiment: %w", err)
	}

	return bySource, nil
}

// SignalsForDay returns every signal observed within [dayStart, dayEnd):
// articles as global sentiment-only signals plus per-asset on-chain rows.
// Volume is selected as text so the aggregation layer owns numeric parsing.
func (r *Repository) SignalsForDay(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Signal, error) {
	query := `
		SELECT NULL AS asset_symbol,
		       source,
		       sentiment_score,
		       NULL AS volume,
		       published_at AS observed_at
		FROM articles
		WHERE published_at >= $1 AND published_at < $2
		UNION ALL
		SELECT asset_symbol,
		       source,
		       sentiment_score,
		       volume::text AS volume,
		       observed_at
		FROM onchain_signals
		WHERE observed_at >= $1 AND observed_at < $2
	`

	signals := make([]models.Signal, 0)
	if err := r.db.SelectContext(ctx, &signals, query, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("failed to query signals for day: %w", err)
	}

	return signals, nil
}

// UpsertSignals stores on-chain signals from an ingestion refresh. Invalid
// records are skipped and one row's write failure does not block the rest;
// the count of stored rows is returned. Rows are written outside a
// transaction on purpose: a failed statement would abort a shared
// transaction and take the surviving rows down with it.
func (r *Repository) UpsertSignals(ctx context.Context, signals []models.Signal) (int, error) {
	if len(signals) == 0 {
		return 0, nil
	}

	stmt, err := r.db.PrepareContext(ctx, `
		INSERT INTO onchain_signals (asset_symbol, source, sentiment_score, volume, observed_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (asset_symbol, source, observed_at) DO UPDATE SET
			sentiment_score = EXCLUDED.sentiment_score,
			volume = EXCLUDED.volume
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	saved := 0
	var lastErr error
	for i := range signals {
		sig := &signals[i]
		if err := sig.Validate(); err != nil {
			continue
		}
		if sig.AssetSymbol == nil {
			continue
		}

		if _, err := stmt.ExecContext(ctx,
			sig.AssetSymbol,
			sig.Source,
			sig.SentimentScore,
			sig.Volume,
			sig.ObservedAt,
		); err != nil {
			lastErr = err
			continue
		}
		saved++
	}

	if saved == 0 && lastErr != nil {
		return 0, fmt.Errorf("failed to store signals: %w", lastErr)
	}

	return saved, nil
}

// CountArticlesInWindow returns how many articles were published in a window
func (r *Repository) CountArticlesInWindow(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM articles WHERE published_at >= $1 AND published_at < $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles in window: %w", err)
	}
	return count, nil
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// Article represents a single ingested news article.
// SentimentScore is nil until the enrichment scheduler has scored it;
// once present it is never overwritten.
type Article struct {
	ID             string     `json:"id" db:"id"`
	Title          string     `json:"title" db:"title"`
	URL            string     `json:"url" db:"url"`
	Source         string     `json:"source" db:"source"`
	PublishedAt    time.Time  `json:"published_at" db:"published_at"`
	SentimentScore *float64   `json:"sentiment_score,omitempty" db:"sentiment_score"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Scored reports whether the article already carries a sentiment score
func (a *Article) Scored() bool {
	return a.SentimentScore != nil
}

// Validate checks required fields on an ingested article
func (a *Article) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("article id is required")
	}
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("article title is required")
	}
	if a.URL == "" {
		return fmt.Errorf("article url is required")
	}
	if a.PublishedAt.IsZero() {
		return fmt.Errorf("article published_at is required")
	}
	if a.SentimentScore != nil && (*a.SentimentScore < -1 || *a.SentimentScore > 1) {
		return fmt.Errorf("sentiment score %.4f out of range [-1, 1]", *a.SentimentScore)
	}
	return nil
}

// SourceSentiment is the per-source slice of a sentiment summary
type SourceSentiment struct {
	Source           string  `json:"source" db:"source"`
	AverageSentiment float64 `json:"average_sentiment" db:"average_sentiment"`
	ArticleCount     int     `json:"article_count" db:"article_count"`
}

// SentimentSummary aggregates sentiment over all scored articles.
// Computed on demand, never persisted.
type SentimentSummary struct {
	AverageSentiment float64           `json:"average_sentiment"`
	TotalArticles    int               `json:"total_articles"`
	BySource         []SourceSentiment `json:"by_source"`
}

// MarketMood buckets the overall average into a human-readable label
func (s *SentimentSummary) MarketMood() string {
	if s.AverageSentiment > 0.2 {
		return "bullish"
	} else if s.AverageSentiment < -0.2 {
		return "bearish"
	}
	return "neutral"
}

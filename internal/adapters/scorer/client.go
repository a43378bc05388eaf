package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenpulse/pulse-analytics/internal/adapters/config"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

// Client calls the external sentiment scoring service.
//
// The contract is deliberately one-sided: Score never returns an error.
// Network failures, timeouts, non-2xx responses and malformed payloads all
// degrade to "no score" so callers stay healthy regardless of upstream state.
type Client struct {
	baseURL string
	client  *http.Client
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Sentiment float64 `json:"sentiment"`
}

// NewClient creates new scorer client with bounded timeout and redirects
func NewClient(cfg *config.ScorerConfig) *Client {
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 3
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Score analyzes text and returns a sentiment score in [-1, 1].
// The second return value is false when no score is available.
func (c *Client) Score(ctx context.Context, text string) (float64, bool) {
	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		logger.Warn("scorer request encoding failed", zap.Error(err))
		return 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		logger.Warn("scorer request creation failed", zap.Error(err))
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")
	// Correlates our warn logs with the scoring service's own logs
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn("scorer request failed", zap.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("scorer returned non-2xx status",
			zap.Int("status", resp.StatusCode),
		)
		return 0, false
	}

	var result analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		logger.Warn("scorer response decoding failed", zap.Error(err))
		return 0, false
	}

	if result.Sentiment < -1 || result.Sentiment > 1 {
		logger.Warn("scorer returned out-of-range sentiment",
			zap.Float64("sentiment", result.Sentiment),
		)
		return 0, false
	}

	return result.Sentiment, true
}

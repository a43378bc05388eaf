package horizon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumenpulse/pulse-analytics/pkg/models"
)

// USDC issuer on the Stellar network, the counter asset for native (XLM)
// trade aggregations
const usdcIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"

// Hourly buckets; Horizon only accepts a fixed set of resolutions
const tradeResolutionMs = 3600000

// Client fetches per-asset traded volume from a Stellar Horizon server.
// Volume figures stay textual end to end so the storage layer's
// absent-vs-zero distinction survives the trip.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates new Horizon client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type tradeAggregationsResponse struct {
	Embedded struct {
		Records []struct {
			Timestamp  string `json:"timestamp"` // epoch millis
			TradeCount string `json:"trade_count"`
			BaseVolume string `json:"base_volume"`
			Avg        string `json:"avg"`
		} `json:"records"`
	} `json:"_embedded"`
}

// FetchVolumeSignals fetches hourly trade-aggregation buckets for one asset
// within [from, to) and converts them to volume signals. Assets are either
// "XLM" (native) or "CODE:ISSUER"; "USDC" alone resolves to the well-known
// issuer.
func (c *Client) FetchVolumeSignals(ctx context.Context, asset string, from, to time.Time) ([]models.Signal, error) {
	params := url.Values{}
	params.Set("start_time", strconv.FormatInt(from.UnixMilli(), 10))
	params.Set("end_time", strconv.FormatInt(to.UnixMilli(), 10))
	params.Set("resolution", strconv.Itoa(tradeResolutionMs))
	params.Set("limit", "200")
	params.Set("order", "asc")

	code, issuer := splitAsset(asset)
	if code == "XLM" {
		params.Set("base_asset_type", "native")
		params.Set("counter_asset_type", "credit_alphanum4")
		params.Set("counter_asset_code", "USDC")
		params.Set("counter_asset_issuer", usdcIssuer)
	} else {
		if issuer == "" {
			return nil, fmt.Errorf("asset %s requires an issuer (use CODE:ISSUER)", code)
		}
		assetType := "credit_alphanum4"
		if len(code) > 4 {
			assetType = "credit_alphanum12"
		}
		params.Set("base_asset_type", assetType)
		params.Set("base_asset_code", code)
		params.Set("base_asset_issuer", issuer)
		params.Set("counter_asset_type", "native")
	}

	reqURL := fmt.Sprintf("%s/trade_aggregations?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("horizon API error %d: %s", resp.StatusCode, string(body))
	}

	var result tradeAggregationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	signals := make([]models.Signal, 0, len(result.Embedded.Records))
	for _, record := range result.Embedded.Records {
		millis, err := strconv.ParseInt(record.Timestamp, 10, 64)
		if err != nil {
			continue
		}

		symbol := code
		volume := record.BaseVolume
		signals = append(signals, models.Signal{
			AssetSymbol: &symbol,
			Source:      "horizon",
			Volume:      &volume,
			ObservedAt:  time.UnixMilli(millis).UTC(),
		})
	}

	return signals, nil
}

// splitAsset splits "CODE:ISSUER" into its parts; bare "USDC" gets the
// well-known issuer
func splitAsset(asset string) (string, string) {
	code, issuer, found := strings.Cut(asset, ":")
	if !found && code == "USDC" {
		return code, usdcIssuer
	}
	return code, issuer
}

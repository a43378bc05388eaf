package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenpulse/pulse-analytics/internal/adapters/config"
	"github.com/lumenpulse/pulse-analytics/pkg/logger"
)

func init() {
	_ = logger.Init("error", "")
}

func newTestClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(&config.ScorerConfig{
		BaseURL:      baseURL,
		Timeout:      timeout,
		MaxRedirects: 3,
	})
}

func TestClient_Score(t *testing.T) {
	tests := []struct {
		name      string
		sentiment float64
	}{
		{"positive", 0.73},
		{"negative", -0.42},
		{"neutral", 0},
		{"lower boundary", -1},
		{"upper boundary", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/analyze" {
					t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				var req struct {
					Text string `json:"text"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
					t.Errorf("bad request body: %v", err)
				}
				fmt.Fprintf(w, `{"sentiment": %v}`, tt.sentiment)
			}))
			defer srv.Close()

			score, ok := newTestClient(srv.URL, time.Second).Score(context.Background(), "Bitcoin rally continues")
			if !ok {
				t.Fatal("expected score to be available")
			}
			if score != tt.sentiment {
				t.Errorf("expected score %v, got %v", tt.sentiment, score)
			}
		})
	}
}

func TestClient_Score_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"sentiment": "very good"}`)
			},
		},
		{
			name: "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {
			},
		},
		{
			name: "out of range sentiment",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"sentiment": 3.5}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			if _, ok := newTestClient(srv.URL, time.Second).Score(context.Background(), "some headline"); ok {
				t.Error("expected score to be unavailable")
			}
		})
	}
}

func TestClient_Score_ConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	if _, ok := newTestClient(addr, time.Second).Score(context.Background(), "anything"); ok {
		t.Error("expected score to be unavailable on connection refusal")
	}
}

func TestClient_Score_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"sentiment": 0.5}`)
	}))
	defer srv.Close()

	if _, ok := newTestClient(srv.URL, 20*time.Millisecond).Score(context.Background(), "slow upstream"); ok {
		t.Error("expected score to be unavailable on timeout")
	}
}

func TestClient_Score_RedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Redirect forever
		http.Redirect(w, r, srv.URL+r.URL.Path, http.StatusTemporaryRedirect)
	}))
	defer srv.Close()

	if _, ok := newTestClient(srv.URL, time.Second).Score(context.Background(), "redirect loop"); ok {
		t.Error("expected score to be unavailable after redirect limit")
	}
}

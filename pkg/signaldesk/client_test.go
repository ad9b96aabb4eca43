package signaldesk

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/api/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:8080/api" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}

	if got := NewClient("").BaseURL(); got != DefaultBaseURL {
		t.Errorf("empty base URL = %q, want %q", got, DefaultBaseURL)
	}
}

// recorder captures the last request a test server saw.
type recorder struct {
	method, path, query, contentType string
	body                             []byte
}

func newServer(t *testing.T, rec *recorder, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.EscapedPath()
		rec.query = r.URL.RawQuery
		rec.contentType = r.Header.Get("Content-Type")
		rec.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL+"/api", srv.Client())
}

func TestEndpoints(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantQuery  string
	}{
		{"health", func(c *Client) error { _, err := c.Health(ctx); return err }, "GET", "/api/health", ""},
		{"status", func(c *Client) error { _, err := c.Status(ctx); return err }, "GET", "/api/status", ""},
		{"summary", func(c *Client) error { _, err := c.MarketSummary(ctx); return err }, "GET", "/api/market/summary", ""},
		{"polymarket", func(c *Client) error { _, err := c.Venue(ctx, VenuePolymarket, false); return err }, "GET", "/api/market/polymarket", ""},
		{"polymarket-hot", func(c *Client) error { _, err := c.Venue(ctx, VenuePolymarket, true); return err }, "GET", "/api/market/polymarket/hot", ""},
		{"pumpfun", func(c *Client) error { _, err := c.Venue(ctx, VenuePumpfun, false); return err }, "GET", "/api/market/pumpfun", ""},
		{"pumpfun-hot", func(c *Client) error { _, err := c.Venue(ctx, VenuePumpfun, true); return err }, "GET", "/api/market/pumpfun/hot", ""},
		{"token", func(c *Client) error { _, err := c.Token(ctx, "Mint/1"); return err }, "GET", "/api/market/pumpfun/token/Mint%2F1", ""},
		{"signals", func(c *Client) error { _, err := c.Signals(ctx, 50); return err }, "GET", "/api/signals", "limit=50"},
		{"tweets", func(c *Client) error { _, err := c.Tweets(ctx, TweetQuery{Limit: 20, Real: true}); return err }, "GET", "/api/tweets", "limit=20&real=true"},
		{"tweets-user", func(c *Client) error {
			_, err := c.Tweets(ctx, TweetQuery{Limit: 10, Real: true, Username: "SignalsZara"})
			return err
		}, "GET", "/api/tweets", "limit=10&real=true&username=SignalsZara"},
		{"clear", func(c *Client) error { return c.ClearChat(ctx, "session_abc") }, "DELETE", "/api/chat/session_abc", ""},
		{"trigger", func(c *Client) error { _, err := c.TriggerUpdate(ctx); return err }, "POST", "/api/admin/trigger-update", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			c := newServer(t, rec, http.StatusOK, `{}`)
			if err := tt.call(c); err != nil {
				t.Fatalf("call returned error: %v", err)
			}
			if rec.method != tt.wantMethod {
				t.Errorf("method = %s, want %s", rec.method, tt.wantMethod)
			}
			if rec.path != tt.wantPath {
				t.Errorf("path = %s, want %s", rec.path, tt.wantPath)
			}
			if rec.query != tt.wantQuery {
				t.Errorf("query = %q, want %q", rec.query, tt.wantQuery)
			}
			if rec.contentType != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", rec.contentType)
			}
		})
	}
}

func TestChatRoundTrip(t *testing.T) {
	rec := &recorder{}
	c := newServer(t, rec, http.StatusOK, `{"message":"whales are buying"}`)

	reply, err := c.Chat(context.Background(), "what's moving?", "session_1")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "whales are buying" {
		t.Errorf("reply = %q", reply)
	}
	if rec.method != http.MethodPost || rec.path != "/api/chat" {
		t.Errorf("request = %s %s, want POST /api/chat", rec.method, rec.path)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.body, &body); err != nil {
		t.Fatalf("request body not JSON: %v", err)
	}
	if body["message"] != "what's moving?" || body["sessionId"] != "session_1" {
		t.Errorf("request body = %v", body)
	}
}

func TestSignalsDecoding(t *testing.T) {
	rec := &recorder{}
	c := newServer(t, rec, http.StatusOK, `[{"type":"whale","symbol":"X"},null,"junk",{"symbol":"Y"}]`)

	signals, err := c.Signals(context.Background(), 20)
	if err != nil {
		t.Fatalf("Signals: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("len(signals) = %d, want 2", len(signals))
	}
	if signals[0].Type != "whale" || signals[1].Fields["symbol"] != "Y" {
		t.Errorf("unexpected signals: %+v", signals)
	}
}

func TestHistoryNonArrayIsEmpty(t *testing.T) {
	rec := &recorder{}
	c := newServer(t, rec, http.StatusOK, `{"error":"not ready"}`)

	tweets, err := c.Tweets(context.Background(), TweetQuery{Limit: 20, Real: true})
	if err != nil {
		t.Fatalf("Tweets: %v", err)
	}
	if len(tweets) != 0 {
		t.Errorf("len(tweets) = %d, want 0", len(tweets))
	}
}

func TestAPIError(t *testing.T) {
	rec := &recorder{}
	c := newServer(t, rec, http.StatusServiceUnavailable, `{"error":"down"}`)

	_, err := c.MarketSummary(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Path != "/market/summary" || apiErr.Method != http.MethodGet {
		t.Errorf("APIError = %+v", apiErr)
	}
	if got := err.Error(); got != "HTTP 503: Service Unavailable" {
		t.Errorf("Error() = %q", got)
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewClientWithHTTP(srv.URL, srv.Client())
	srv.Close()

	_, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure reported as APIError: %v", err)
	}
	if !strings.Contains(err.Error(), "GET /health") {
		t.Errorf("error %q does not name the request", err)
	}
}

func TestEmptyBodyIsNotAnError(t *testing.T) {
	rec := &recorder{}
	c := newServer(t, rec, http.StatusNoContent, ``)

	if err := c.ClearChat(context.Background(), "s"); err != nil {
		t.Fatalf("ClearChat with 204: %v", err)
	}
	summary, err := c.MarketSummary(context.Background())
	if err != nil {
		t.Fatalf("MarketSummary with empty body: %v", err)
	}
	if !summary.IsZero() {
		t.Error("empty body should leave the zero summary")
	}
}

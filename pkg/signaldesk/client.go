// Package signaldesk is a Go SDK for the signal backend's HTTP API.
//
// Every method issues exactly one request and either decodes the response
// body or fails. There is no retry, caching, or request coalescing; callers
// decide whether a failure is fatal.
package signaldesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"signaldesk/internal/domain"
)

// DefaultBaseURL is the local-development API root.
const DefaultBaseURL = "http://localhost:3001/api"

// Venue selects a market data source on the backend.
type Venue string

const (
	VenuePolymarket Venue = "polymarket"
	VenuePumpfun    Venue = "pumpfun"
)

// Client provides a Go SDK for interacting with the signal backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with a 30 second request timeout.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTP creates a client that sends requests through hc.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError is returned for any non-2xx response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// ---------------------------------------------------------------------------
// Health & status
// ---------------------------------------------------------------------------

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// MarketSummary calls GET /market/summary.
func (c *Client) MarketSummary(ctx context.Context) (domain.MarketSummary, error) {
	var out domain.MarketSummary
	err := c.do(ctx, http.MethodGet, "/market/summary", nil, &out)
	return out, err
}

// Venue calls GET /market/{venue}, or /market/{venue}/hot when hot is set.
// The body shape is venue specific and returned undecoded.
func (c *Client) Venue(ctx context.Context, venue Venue, hot bool) (json.RawMessage, error) {
	path := "/market/" + url.PathEscape(string(venue))
	if hot {
		path += "/hot"
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// Token calls GET /market/pumpfun/token/{id}.
func (c *Client) Token(ctx context.Context, id string) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/market/pumpfun/token/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ---------------------------------------------------------------------------
// Signals & tweets
// ---------------------------------------------------------------------------

// Signals calls GET /signals?limit=N. A body that is not a JSON array
// yields an empty list, and elements that are not objects are skipped.
func (c *Client) Signals(ctx context.Context, limit int) ([]domain.Signal, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/signals?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[domain.Signal](raw), nil
}

// TweetQuery holds the parameters of GET /tweets.
type TweetQuery struct {
	Limit    int
	Real     bool
	Username string // optional
}

// Tweets calls GET /tweets. A body that is not a JSON array yields an
// empty list.
func (c *Client) Tweets(ctx context.Context, query TweetQuery) ([]domain.Tweet, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(query.Limit))
	q.Set("real", strconv.FormatBool(query.Real))
	if query.Username != "" {
		q.Set("username", query.Username)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/tweets?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[domain.Tweet](raw), nil
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Message string `json:"message"`
}

// Chat sends one user turn and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, message, sessionID string) (string, error) {
	var out chatResponse
	err := c.do(ctx, http.MethodPost, "/chat", chatRequest{Message: message, SessionID: sessionID}, &out)
	return out.Message, err
}

// ClearChat asks the backend to forget the given session.
func (c *Client) ClearChat(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/"+url.PathEscape(sessionID), nil, nil)
}

// ---------------------------------------------------------------------------
// Admin
// ---------------------------------------------------------------------------

// TriggerUpdate calls POST /admin/trigger-update.
func (c *Client) TriggerUpdate(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodPost, "/admin/trigger-update", nil, &out)
	return out, err
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// do issues one request. body, when non-nil, is sent as JSON. out, when
// non-nil, receives the decoded response; an empty body leaves it untouched.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encoding body: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding body: %w", method, path, err)
	}
	return nil
}

// decodeList decodes the elements of a JSON array, skipping any element
// that is not a valid record. Any other JSON value yields an empty list.
func decodeList[T any](raw json.RawMessage) []T {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

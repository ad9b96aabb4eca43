package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"signaldesk/internal/domain"
	"signaldesk/internal/live"
	"signaldesk/pkg/signaldesk"
)

type fakeAPI struct {
	mu         sync.Mutex
	signals    []domain.Signal
	tweets     []domain.Tweet
	summary    domain.MarketSummary
	signalsErr error
	tweetsErr  error
	summaryErr error

	signalLimit int
	tweetQuery  signaldesk.TweetQuery
	summaryHits int
}

func (f *fakeAPI) Signals(ctx context.Context, limit int) ([]domain.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signalLimit = limit
	return f.signals, f.signalsErr
}

func (f *fakeAPI) Tweets(ctx context.Context, q signaldesk.TweetQuery) ([]domain.Tweet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tweetQuery = q
	return f.tweets, f.tweetsErr
}

func (f *fakeAPI) MarketSummary(ctx context.Context) (domain.MarketSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaryHits++
	return f.summary, f.summaryErr
}

func (f *fakeAPI) setSummary(m domain.MarketSummary, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary, f.summaryErr = m, err
}

// fakeChannel records lifecycle calls and checks the model was seeded
// before Connect.
type fakeChannel struct {
	mu              sync.Mutex
	model           *live.FeedModel
	connects        int
	closes          int
	seededAtConnect bool
}

func (c *fakeChannel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	n, _ := c.model.Counts()
	c.seededAtConnect = n > 0
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeChannel) counts() (connects, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects, c.closes
}

func summaryOf(v string) domain.MarketSummary {
	return domain.MarketSummary{Fields: map[string]any{"v": v}}
}

func newTestEngine(api *fakeAPI, opts Options) (*Engine, *live.FeedModel, *fakeChannel) {
	model := live.NewFeedModel(0, 0)
	ch := &fakeChannel{model: model}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(api, model, ch, opts, log), model, ch
}

func TestNewAppliesDefaults(t *testing.T) {
	e, _, _ := newTestEngine(&fakeAPI{}, Options{})
	if e.opts != DefaultOptions() {
		t.Errorf("opts = %+v, want %+v", e.opts, DefaultOptions())
	}
}

func TestBootstrapSeedsAllFeeds(t *testing.T) {
	api := &fakeAPI{
		signals: []domain.Signal{domain.NewSignal(map[string]any{"type": "whale"})},
		tweets:  []domain.Tweet{domain.NewTweet(map[string]any{"tweetId": "1"})},
		summary: summaryOf("a"),
	}
	e, model, _ := newTestEngine(api, Options{})

	e.Bootstrap(context.Background())

	snap := model.Snapshot()
	if len(snap.Signals) != 1 || len(snap.Tweets) != 1 || snap.Summary.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}
	if api.signalLimit != 50 {
		t.Errorf("signal limit = %d, want 50", api.signalLimit)
	}
	if api.tweetQuery != (signaldesk.TweetQuery{Limit: 20, Real: true}) {
		t.Errorf("tweet query = %+v", api.tweetQuery)
	}
}

func TestBootstrapToleratesFailures(t *testing.T) {
	api := &fakeAPI{
		signalsErr: errors.New("boom"),
		tweets:     []domain.Tweet{domain.NewTweet(map[string]any{"tweetId": "1"})},
		summaryErr: errors.New("boom"),
	}
	e, model, _ := newTestEngine(api, Options{})

	e.Bootstrap(context.Background())

	snap := model.Snapshot()
	if len(snap.Signals) != 0 {
		t.Errorf("signals = %d, want 0", len(snap.Signals))
	}
	if len(snap.Tweets) != 1 {
		t.Errorf("tweets = %d, want 1", len(snap.Tweets))
	}
	if !snap.Summary.IsZero() {
		t.Error("summary should stay zero")
	}
}

func TestRefreshSummaryKeepsOldValueOnFailure(t *testing.T) {
	api := &fakeAPI{summary: summaryOf("first")}
	e, model, _ := newTestEngine(api, Options{})

	e.RefreshSummary(context.Background())
	api.setSummary(domain.MarketSummary{}, errors.New("timeout"))
	e.RefreshSummary(context.Background())

	if got := model.Snapshot().Summary.Fields["v"]; got != "first" {
		t.Errorf("summary v = %v, want first", got)
	}
}

func TestSummaryLastArrivalWins(t *testing.T) {
	api := &fakeAPI{summary: summaryOf("refresh")}
	e, model, _ := newTestEngine(api, Options{})

	// push then refresh
	model.ApplyPush(live.Push{Kind: live.PushSummary, Summary: summaryOf("push")})
	e.RefreshSummary(context.Background())
	if got := model.Snapshot().Summary.Fields["v"]; got != "refresh" {
		t.Errorf("summary = %v, want refresh", got)
	}

	// refresh then push
	model.ApplyPush(live.Push{Kind: live.PushSummary, Summary: summaryOf("push")})
	if got := model.Snapshot().Summary.Fields["v"]; got != "push" {
		t.Errorf("summary = %v, want push", got)
	}
}

func TestRunSeedsBeforeConnectAndClosesOnCancel(t *testing.T) {
	api := &fakeAPI{
		signals: []domain.Signal{domain.NewSignal(map[string]any{"type": "whale"})},
		summary: summaryOf("a"),
	}
	e, _, ch := newTestEngine(api, Options{RefreshInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		api.mu.Lock()
		hits := api.summaryHits
		api.mu.Unlock()
		if hits >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("summary was not refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	connects, closes := ch.counts()
	if connects != 1 || closes != 1 {
		t.Errorf("connects = %d, closes = %d, want 1 and 1", connects, closes)
	}
	if !ch.seededAtConnect {
		t.Error("channel connected before the model was seeded")
	}
}

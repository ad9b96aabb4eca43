// Package engine coordinates the dashboard's data sources: it seeds the
// feed model over HTTP, opens the realtime channel, and refreshes the market
// summary on a fixed interval.
package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"signaldesk/internal/domain"
	"signaldesk/internal/live"
	"signaldesk/pkg/signaldesk"
)

// API is the part of the backend client the engine reads from.
// *signaldesk.Client satisfies it.
type API interface {
	Signals(ctx context.Context, limit int) ([]domain.Signal, error)
	Tweets(ctx context.Context, query signaldesk.TweetQuery) ([]domain.Tweet, error)
	MarketSummary(ctx context.Context) (domain.MarketSummary, error)
}

// Channel is the realtime connection. *live.Client satisfies it.
type Channel interface {
	Connect()
	Close() error
}

// Options configures the engine.
type Options struct {
	BootstrapSignals int
	BootstrapTweets  int
	RefreshInterval  time.Duration
}

// DefaultOptions matches the dashboard's initial load: 50 signals, 20 real
// tweets, and a summary refresh every minute.
func DefaultOptions() Options {
	return Options{
		BootstrapSignals: 50,
		BootstrapTweets:  20,
		RefreshInterval:  60 * time.Second,
	}
}

// Engine owns the startup sequence and the summary refresh loop.
type Engine struct {
	api     API
	model   *live.FeedModel
	channel Channel
	opts    Options
	log     *slog.Logger
}

// New creates an Engine. Zero option fields take their DefaultOptions value.
func New(api API, model *live.FeedModel, channel Channel, opts Options, log *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.BootstrapSignals <= 0 {
		opts.BootstrapSignals = def.BootstrapSignals
	}
	if opts.BootstrapTweets <= 0 {
		opts.BootstrapTweets = def.BootstrapTweets
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = def.RefreshInterval
	}
	return &Engine{api: api, model: model, channel: channel, opts: opts, log: log}
}

// Bootstrap fetches signal history, tweet history and the market summary
// concurrently and seeds the model once all three have settled. A failed
// fetch is logged and leaves its feed empty; it never fails the others.
func (e *Engine) Bootstrap(ctx context.Context) {
	var (
		signals []domain.Signal
		tweets  []domain.Tweet
		summary domain.MarketSummary
	)

	var g errgroup.Group
	g.Go(func() error {
		s, err := e.api.Signals(ctx, e.opts.BootstrapSignals)
		if err != nil {
			e.log.Warn("signal history fetch failed", "error", err)
			return nil
		}
		signals = s
		return nil
	})
	g.Go(func() error {
		t, err := e.api.Tweets(ctx, signaldesk.TweetQuery{Limit: e.opts.BootstrapTweets, Real: true})
		if err != nil {
			e.log.Warn("tweet history fetch failed", "error", err)
			return nil
		}
		tweets = t
		return nil
	})
	g.Go(func() error {
		m, err := e.api.MarketSummary(ctx)
		if err != nil {
			e.log.Warn("market summary fetch failed", "error", err)
			return nil
		}
		summary = m
		return nil
	})
	g.Wait()

	e.model.Seed(signals, tweets, summary)
	e.log.Info("feeds seeded", "signals", len(signals), "tweets", len(tweets), "summary", !summary.IsZero())
}

// RefreshSummary fetches the market summary and applies it like a pushed
// summary, so whichever of the two arrives last wins. On failure the
// current summary is kept.
func (e *Engine) RefreshSummary(ctx context.Context) {
	m, err := e.api.MarketSummary(ctx)
	if err != nil {
		e.log.Warn("market summary refresh failed", "error", err)
		return
	}
	e.model.ApplyPush(live.Push{Kind: live.PushSummary, Summary: m})
}

// Run seeds the model, then opens the channel, then refreshes the summary
// every RefreshInterval until ctx is cancelled. Seeding first means pushes
// are never overwritten by history. On cancellation the channel is closed
// and Run returns nil.
func (e *Engine) Run(ctx context.Context) error {
	e.Bootstrap(ctx)
	if ctx.Err() != nil {
		return nil
	}

	e.channel.Connect()
	e.log.Info("engine running", "refresh", e.opts.RefreshInterval)

	ticker := time.NewTicker(e.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := e.channel.Close(); err != nil {
				e.log.Warn("channel close failed", "error", err)
			}
			e.log.Info("engine stopped")
			return nil
		case <-ticker.C:
			e.RefreshSummary(ctx)
		}
	}
}

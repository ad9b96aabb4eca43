package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"signaldesk/internal/domain"
	"signaldesk/internal/live"
)

type memArchive struct {
	mu      sync.Mutex
	signals []domain.Signal
	tweets  []domain.Tweet
}

func (m *memArchive) WriteSignals(_ context.Context, s []domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append(m.signals, s...)
	return nil
}

func (m *memArchive) ReadSignals(_ context.Context, _ int) ([]domain.Signal, error) {
	return nil, nil
}

func (m *memArchive) WriteTweets(_ context.Context, t []domain.Tweet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tweets = append(m.tweets, t...)
	return nil
}

func (m *memArchive) ReadTweets(_ context.Context, _ int) ([]domain.Tweet, error) {
	return nil, nil
}

func (m *memArchive) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.signals), len(m.tweets)
}

func TestArchiverCopiesFeedEvents(t *testing.T) {
	model := live.NewFeedModel(0, 0)
	mem := &memArchive{}
	a := NewArchiver(model, mem, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for model.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("archiver never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	model.Seed([]domain.Signal{domain.NewSignal(map[string]any{"type": "a"})},
		[]domain.Tweet{domain.NewTweet(map[string]any{"tweetId": "1"})}, domain.MarketSummary{})
	model.ApplyPush(live.Push{Kind: live.PushSignal, Signal: domain.NewSignal(map[string]any{"type": "b"})})
	model.ApplyPush(live.Push{Kind: live.PushTweetsReplace, Tweets: []domain.Tweet{
		domain.NewTweet(map[string]any{"tweetId": "2"}),
		domain.NewTweet(map[string]any{"tweetId": "3"}),
	}})
	model.ApplyPush(live.Push{Kind: live.PushSummary, Summary: domain.MarketSummary{Fields: map[string]any{}}})

	deadline = time.Now().Add(3 * time.Second)
	for {
		s, tw := mem.counts()
		if s == 2 && tw == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("archived %d signals, %d tweets; want 2, 3", s, tw)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

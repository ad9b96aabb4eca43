package main

import (
	"strings"
	"testing"
	"time"

	"signaldesk/internal/domain"
	"signaldesk/internal/live"
)

func TestRenderFeedEmpty(t *testing.T) {
	out := renderFeed(live.Snapshot{}, 80, time.UTC)
	for _, want := range []string{"no summary yet", "waiting for signals", "no tweets yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("empty feed missing %q", want)
		}
	}
}

func TestRenderFeedRows(t *testing.T) {
	snap := live.Snapshot{
		Signals: []domain.Signal{
			domain.NewSignal(map[string]any{
				"type":     domain.SignalTypeMultiplier,
				"original": "$PEPE x12 MC: $40K -> $480K",
			}),
			domain.NewSignal(map[string]any{"formatted": "whale bought\nsecond line"}),
		},
		Tweets: []domain.Tweet{
			domain.NewTweet(map[string]any{"tweetId": "1", "content": "gm", "likes": float64(12345)}),
		},
		Summary: domain.MarketSummary{Fields: map[string]any{
			"polymarket": map[string]any{
				"total24hVolume": "$1.2M",
				"topMarkets":     []any{map[string]any{"question": "Rate cut?", "volume": "$300K"}},
			},
		}},
	}
	out := renderFeed(snap, 100, time.UTC)
	for _, want := range []string{"PEPE", "x12", "$40K", "whale bought", "gm", "12.3K", "$1.2M", "Rate cut?"} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q", want)
		}
	}
	if strings.Contains(out, "second line") {
		t.Error("signal body should be cut at the first line")
	}
}

func TestPadOrTrunc(t *testing.T) {
	if got := padOrTrunc("abc", 5); got != "abc  " {
		t.Errorf("pad = %q", got)
	}
	if got := padOrTrunc("abcdefgh", 5); len([]rune(got)) != 5 {
		t.Errorf("trunc = %q, want 5 cells", got)
	}
	if got := padOrTrunc("abc", 0); got != "" {
		t.Errorf("zero width = %q", got)
	}
}

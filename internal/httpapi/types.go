// Package httpapi serves the dashboard read model and the assistant chat as
// a local JSON API, the same data the console renders.
package httpapi

import (
	"signaldesk/internal/domain"
	"signaldesk/internal/live"
)

// SnapshotJSON is the full read model.
type SnapshotJSON struct {
	Signals    []domain.Signal      `json:"signals"`
	Tweets     []domain.Tweet       `json:"tweets"`
	Summary    domain.MarketSummary `json:"summary"`
	Connected  bool                 `json:"connected"`
	Generation uint64               `json:"generation"`
}

func snapshotJSON(s live.Snapshot) SnapshotJSON {
	return SnapshotJSON{
		Signals:    s.Signals,
		Tweets:     s.Tweets,
		Summary:    s.Summary,
		Connected:  s.Connected,
		Generation: s.Generation,
	}
}

// TopMarketJSON is one entry of the Polymarket top-market list.
type TopMarketJSON struct {
	Question string `json:"question"`
	Volume   string `json:"volume"`
}

// PolymarketJSON is the derived Polymarket block of the summary.
type PolymarketJSON struct {
	Volume24h        string          `json:"volume24h"`
	MarketsTracked   int64           `json:"marketsTracked"`
	SignificantMoves int64           `json:"significantMoves"`
	TopMarkets       []TopMarketJSON `json:"topMarkets"`
}

// SummaryJSON pairs the raw summary with the fields the dashboard shows.
type SummaryJSON struct {
	Summary    domain.MarketSummary `json:"summary"`
	Polymarket *PolymarketJSON      `json:"polymarket,omitempty"`
}

func summaryJSON(m domain.MarketSummary) SummaryJSON {
	out := SummaryJSON{Summary: m}
	if m.IsZero() {
		return out
	}
	stats := m.Polymarket()
	pm := &PolymarketJSON{
		Volume24h:        stats.Volume24h,
		MarketsTracked:   stats.MarketsTracked,
		SignificantMoves: stats.SignificantMoves,
		TopMarkets:       make([]TopMarketJSON, 0, len(stats.TopMarkets)),
	}
	for _, tm := range stats.TopMarkets {
		pm.TopMarkets = append(pm.TopMarkets, TopMarketJSON{Question: tm.Question, Volume: tm.Volume})
	}
	out.Polymarket = pm
	return out
}

// StatusJSON reports channel and chat state.
type StatusJSON struct {
	Connected  bool   `json:"connected"`
	Signals    int    `json:"signals"`
	Tweets     int    `json:"tweets"`
	Generation uint64 `json:"generation"`
	SessionID  string `json:"sessionId"`
	ChatBusy   bool   `json:"chatBusy"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatJSON is the transcript response.
type ChatJSON struct {
	SessionID string               `json:"sessionId"`
	Busy      bool                 `json:"busy"`
	Messages  []domain.ChatMessage `json:"messages"`
}

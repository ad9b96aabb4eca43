// Package domain defines the records exchanged with the signal backend:
// signals, tweets, market summaries and chat turns.
//
// Signals and tweets are schema-free on the wire. Each type lifts the few
// fields the client relies on into typed struct fields and keeps the whole
// decoded object in Fields, so unknown keys survive a round trip.
package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Topic names on the persistent channel.
const (
	TopicSignals = "signals"
	TopicTweets  = "tweets"
)

// SignalTypeMultiplier marks a gem-tools multiplier alert.
const SignalTypeMultiplier = "gem_tools_multiplier"

// ---------------------------------------------------------------------------
// Signal
// ---------------------------------------------------------------------------

// Signal is an opaque record pushed by the backend. Type is the optional
// "type" discriminator ("" when absent).
type Signal struct {
	Type   string
	Fields map[string]any
}

// NewSignal builds a Signal from a decoded payload.
func NewSignal(fields map[string]any) Signal {
	s := Signal{Fields: fields}
	s.Type, _ = fields["type"].(string)
	return s
}

// UnmarshalJSON accepts any JSON object.
func (s *Signal) UnmarshalJSON(b []byte) error {
	fields, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("decoding signal: %w", err)
	}
	*s = NewSignal(fields)
	return nil
}

// MarshalJSON writes the original payload back out.
func (s Signal) MarshalJSON() ([]byte, error) {
	return marshalFields(s.Fields)
}

// Clone returns a copy that shares no maps or slices with s.
func (s Signal) Clone() Signal {
	s.Fields = cloneFields(s.Fields)
	return s
}

// Time parses the optional "timestamp" field.
func (s Signal) Time() (time.Time, bool) {
	return parseTime(s.Fields["timestamp"])
}

// Text returns the human-readable body of the signal, preferring the
// original text over the formatted one.
func (s Signal) Text() string {
	if v, _ := s.Fields["original"].(string); v != "" {
		return v
	}
	v, _ := s.Fields["formatted"].(string)
	return v
}

// Multiplier is the parsed body of a gem-tools multiplier signal.
type Multiplier struct {
	Symbol        string
	Factor        string
	MarketCapFrom string
	MarketCapTo   string
}

var (
	multiplierRe = regexp.MustCompile(`(?i)\$([A-Z]+)\s*x(\d+)`)
	marketCapRe  = regexp.MustCompile(`(?i)MC:\s*\$([\d.]+[KMB]?)\s*[-→>]+\s*\$([\d.]+[KMB]?)`)
)

// Multiplier extracts "$SYM xN" and "MC: $a -> $b" from a multiplier
// signal. ok is false for any other signal type. Parts that cannot be found
// come back as "???" (symbol), "?" (factor) or "" (market caps).
func (s Signal) Multiplier() (m Multiplier, ok bool) {
	if s.Type != SignalTypeMultiplier {
		return Multiplier{}, false
	}
	text := s.Text()

	m.Symbol, m.Factor = "???", "?"
	if match := multiplierRe.FindStringSubmatch(text); match != nil {
		m.Symbol, m.Factor = match[1], match[2]
	}
	if match := marketCapRe.FindStringSubmatch(text); match != nil {
		m.MarketCapFrom = "$" + match[1]
		m.MarketCapTo = "$" + match[2]
	}
	return m, true
}

// ---------------------------------------------------------------------------
// Tweet
// ---------------------------------------------------------------------------

// Tweet is a published post. ID is empty when the backend sends none.
type Tweet struct {
	ID       string
	Content  string
	PostedAt string
	URL      string
	Likes    int64
	Retweets int64
	Fields   map[string]any
}

// NewTweet builds a Tweet from a decoded payload.
func NewTweet(fields map[string]any) Tweet {
	t := Tweet{Fields: fields}
	t.ID = stringField(fields, "tweetId")
	if t.ID == "" {
		t.ID = stringField(fields, "id")
	}
	t.Content, _ = fields["content"].(string)
	t.PostedAt, _ = fields["postedAt"].(string)
	t.URL, _ = fields["url"].(string)
	t.Likes = intField(fields, "likes")
	t.Retweets = intField(fields, "retweets")
	return t
}

// UnmarshalJSON accepts any JSON object.
func (t *Tweet) UnmarshalJSON(b []byte) error {
	fields, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("decoding tweet: %w", err)
	}
	*t = NewTweet(fields)
	return nil
}

// MarshalJSON writes the original payload back out.
func (t Tweet) MarshalJSON() ([]byte, error) {
	return marshalFields(t.Fields)
}

// Clone returns a copy that shares no maps or slices with t.
func (t Tweet) Clone() Tweet {
	t.Fields = cloneFields(t.Fields)
	return t
}

// Time parses PostedAt.
func (t Tweet) Time() (time.Time, bool) {
	return parseTime(t.Fields["postedAt"])
}

// ---------------------------------------------------------------------------
// MarketSummary
// ---------------------------------------------------------------------------

// MarketSummary is the latest market overview. It is always replaced as a
// whole, never merged.
type MarketSummary struct {
	Fields map[string]any
}

// IsZero reports whether no summary has been received.
func (m MarketSummary) IsZero() bool { return m.Fields == nil }

// Clone returns a copy that shares no maps or slices with m.
func (m MarketSummary) Clone() MarketSummary {
	return MarketSummary{Fields: cloneFields(m.Fields)}
}

// UnmarshalJSON accepts any JSON object; null leaves the zero summary.
func (m *MarketSummary) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		*m = MarketSummary{}
		return nil
	}
	fields, err := decodeObject(b)
	if err != nil {
		return fmt.Errorf("decoding market summary: %w", err)
	}
	m.Fields = fields
	return nil
}

// MarshalJSON writes null for the zero summary.
func (m MarketSummary) MarshalJSON() ([]byte, error) {
	if m.Fields == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.Fields)
}

// PolymarketStats is the Polymarket block of a summary.
type PolymarketStats struct {
	Volume24h        string
	MarketsTracked   int64
	SignificantMoves int64
	TopMarkets       []TopMarket
}

// TopMarket is one entry of the summary's top-market list.
type TopMarket struct {
	Question string
	Volume   string
}

// Polymarket reads the "polymarket" block. Missing values are zero.
func (m MarketSummary) Polymarket() PolymarketStats {
	block, _ := m.Fields["polymarket"].(map[string]any)
	if block == nil {
		return PolymarketStats{}
	}
	stats := PolymarketStats{
		Volume24h:        stringField(block, "total24hVolume"),
		MarketsTracked:   intField(block, "totalMarketsTracked"),
		SignificantMoves: intField(block, "significantMoves"),
	}
	markets, _ := block["topMarkets"].([]any)
	for _, raw := range markets {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		stats.TopMarkets = append(stats.TopMarkets, TopMarket{
			Question: stringField(entry, "question"),
			Volume:   stringField(entry, "volume"),
		})
	}
	return stats
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// Role identifies the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the transcript. Error marks a synthetic
// assistant turn standing in for a failed request.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Error   bool   `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func decodeObject(b []byte) (map[string]any, error) {
	if isNull(b) {
		return nil, fmt.Errorf("null payload")
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// cloneFields deep-copies a decoded JSON object. Nil stays nil.
func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneFields(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		// Strings, numbers, bools and nil are immutable.
		return v
	}
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(fields)
}

func isNull(b []byte) bool {
	return strings.TrimSpace(string(b)) == "null"
}

// stringField renders strings as-is and numbers without a trailing ".0".
func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func intField(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// parseTime accepts RFC 3339 strings and epoch milliseconds, either as a
// JSON number or a numeric string.
func parseTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case float64:
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ts)), true
	case string:
		if ts == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(ts, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms), true
		}
	}
	return time.Time{}, false
}

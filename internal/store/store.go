// Package store archives fetched signal and tweet history. The archive is
// export only: nothing here is replayed into the live feeds.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"signaldesk/internal/domain"
)

// SignalStore persists and retrieves signal history.
type SignalStore interface {
	// WriteSignals persists a batch of signals. Records already archived
	// are not duplicated.
	WriteSignals(ctx context.Context, signals []domain.Signal) error

	// ReadSignals returns up to limit signals, newest first. A non-positive
	// limit returns everything.
	ReadSignals(ctx context.Context, limit int) ([]domain.Signal, error)
}

// TweetStore persists and retrieves tweet history.
type TweetStore interface {
	// WriteTweets persists a batch of tweets. A tweet already archived under
	// the same id is replaced, so engagement counts stay current.
	WriteTweets(ctx context.Context, tweets []domain.Tweet) error

	// ReadTweets returns up to limit tweets, newest first. A non-positive
	// limit returns everything.
	ReadTweets(ctx context.Context, limit int) ([]domain.Tweet, error)
}

// Archive is a store for both feeds.
type Archive interface {
	SignalStore
	TweetStore
}

// ---------------------------------------------------------------------------
// Record types (on-disk schema shared by both backends)
// ---------------------------------------------------------------------------

// SignalRecord is the archived form of a signal.
type SignalRecord struct {
	Type      string `parquet:"type"`
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Payload   string `parquet:"payload"`                          // original JSON object
}

// TweetRecord is the archived form of a tweet.
type TweetRecord struct {
	Key       string `parquet:"key"` // tweet id, or the payload when the id is missing
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"`
	Content   string `parquet:"content"`
	Likes     int64  `parquet:"likes"`
	Retweets  int64  `parquet:"retweets"`
	Payload   string `parquet:"payload"`
}

// newSignalRecord converts s. Signals without a parseable timestamp are
// stamped with archivedAt.
func newSignalRecord(s domain.Signal, archivedAt time.Time) (SignalRecord, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return SignalRecord{}, fmt.Errorf("encoding signal: %w", err)
	}
	ts, ok := s.Time()
	if !ok {
		ts = archivedAt
	}
	return SignalRecord{Type: s.Type, Timestamp: ts.UnixMilli(), Payload: string(payload)}, nil
}

func (r SignalRecord) signal() (domain.Signal, error) {
	var s domain.Signal
	if err := json.Unmarshal([]byte(r.Payload), &s); err != nil {
		return domain.Signal{}, err
	}
	return s, nil
}

func newTweetRecord(t domain.Tweet, archivedAt time.Time) (TweetRecord, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return TweetRecord{}, fmt.Errorf("encoding tweet: %w", err)
	}
	ts, ok := t.Time()
	if !ok {
		ts = archivedAt
	}
	key := t.ID
	if key == "" {
		key = string(payload)
	}
	return TweetRecord{
		Key:       key,
		Timestamp: ts.UnixMilli(),
		Content:   t.Content,
		Likes:     t.Likes,
		Retweets:  t.Retweets,
		Payload:   string(payload),
	}, nil
}

func (r TweetRecord) tweet() (domain.Tweet, error) {
	var t domain.Tweet
	if err := json.Unmarshal([]byte(r.Payload), &t); err != nil {
		return domain.Tweet{}, err
	}
	return t, nil
}

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"signaldesk/internal/domain"
)

// Compile-time interface checks.
var _ SignalStore = (*ParquetStore)(nil)
var _ TweetStore = (*ParquetStore)(nil)

// ParquetStore implements SignalStore and TweetStore using one Parquet file
// per feed and UTC day.
type ParquetStore struct {
	DataDir string

	now func() time.Time
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir, now: time.Now}
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// WriteSignals merges signals into their day files:
//
//	<DataDir>/signals/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteSignals(_ context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	now := s.now()
	groups := make(map[string][]SignalRecord)
	for _, sig := range signals {
		rec, err := newSignalRecord(sig, now)
		if err != nil {
			return err
		}
		day := dayOf(rec.Timestamp)
		groups[day] = append(groups[day], rec)
	}

	for day, records := range groups {
		path := s.dayPath("signals", day)

		// Read existing records to merge.
		existing, _ := readParquetFile[SignalRecord](path)
		merged := mergeSignalRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing signals for %s: %w", day, err)
		}
	}
	return nil
}

// ReadSignals walks the day files from the newest backwards.
func (s *ParquetStore) ReadSignals(_ context.Context, limit int) ([]domain.Signal, error) {
	days, err := s.listDays("signals")
	if err != nil {
		return nil, err
	}

	var out []domain.Signal
	for _, day := range days {
		records, err := readParquetFile[SignalRecord](s.dayPath("signals", day))
		if err != nil {
			return nil, fmt.Errorf("reading signals for %s: %w", day, err)
		}
		for i := len(records) - 1; i >= 0; i-- {
			sig, err := records[i].signal()
			if err != nil {
				continue
			}
			out = append(out, sig)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// TweetStore implementation
// ---------------------------------------------------------------------------

// WriteTweets merges tweets into their day files:
//
//	<DataDir>/tweets/<YYYY-MM-DD>.parquet
func (s *ParquetStore) WriteTweets(_ context.Context, tweets []domain.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}

	now := s.now()
	groups := make(map[string][]TweetRecord)
	for _, t := range tweets {
		rec, err := newTweetRecord(t, now)
		if err != nil {
			return err
		}
		day := dayOf(rec.Timestamp)
		groups[day] = append(groups[day], rec)
	}

	for day, records := range groups {
		path := s.dayPath("tweets", day)
		existing, _ := readParquetFile[TweetRecord](path)
		merged := mergeTweetRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing tweets for %s: %w", day, err)
		}
	}
	return nil
}

// ReadTweets walks the day files from the newest backwards.
func (s *ParquetStore) ReadTweets(_ context.Context, limit int) ([]domain.Tweet, error) {
	days, err := s.listDays("tweets")
	if err != nil {
		return nil, err
	}

	var out []domain.Tweet
	for _, day := range days {
		records, err := readParquetFile[TweetRecord](s.dayPath("tweets", day))
		if err != nil {
			return nil, fmt.Errorf("reading tweets for %s: %w", day, err)
		}
		for i := len(records) - 1; i >= 0; i-- {
			t, err := records[i].tweet()
			if err != nil {
				continue
			}
			out = append(out, t)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// dayPath returns the filesystem path for a day file.
// Layout: <dataDir>/<feed>/<YYYY-MM-DD>.parquet
func (s *ParquetStore) dayPath(feed, day string) string {
	return filepath.Join(s.DataDir, feed, day+".parquet")
}

// listDays returns the archived days of a feed, newest first. A missing
// feed directory is an empty archive.
func (s *ParquetStore) listDays(feed string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, feed))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var days []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		days = append(days, strings.TrimSuffix(name, ".parquet"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

func dayOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeSignalRecords deduplicates signal records by (timestamp, payload).
// Results are sorted by timestamp, oldest first.
func mergeSignalRecords(existing, incoming []SignalRecord) []SignalRecord {
	type key struct {
		ts      int64
		payload string
	}
	seen := make(map[key]bool, len(existing)+len(incoming))
	merged := make([]SignalRecord, 0, len(existing)+len(incoming))
	for _, list := range [][]SignalRecord{existing, incoming} {
		for _, r := range list {
			k := key{r.Timestamp, r.Payload}
			if seen[k] {
				continue
			}
			seen[k] = true
			merged = append(merged, r)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeTweetRecords deduplicates tweet records by key, preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeTweetRecords(existing, incoming []TweetRecord) []TweetRecord {
	seen := make(map[string]TweetRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Key] = r
	}
	for _, r := range incoming {
		seen[r.Key] = r
	}

	merged := make([]TweetRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Key < merged[j].Key
	})
	return merged
}

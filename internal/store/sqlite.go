package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"signaldesk/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SignalStore = (*SQLiteStore)(nil)
var _ TweetStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	type    TEXT    NOT NULL,
	ts      INTEGER NOT NULL,
	payload TEXT    NOT NULL,
	UNIQUE (ts, payload)
);
CREATE INDEX IF NOT EXISTS signals_ts ON signals (ts);

CREATE TABLE IF NOT EXISTS tweets (
	key      TEXT    PRIMARY KEY,
	ts       INTEGER NOT NULL,
	content  TEXT    NOT NULL,
	likes    INTEGER NOT NULL,
	retweets INTEGER NOT NULL,
	payload  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS tweets_ts ON tweets (ts);
`

// SQLiteStore implements SignalStore and TweetStore backed by a SQLite
// database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// archive tables, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// WriteSignals inserts signals in one transaction, skipping ones already
// archived.
func (s *SQLiteStore) WriteSignals(ctx context.Context, signals []domain.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO signals (type, ts, payload) VALUES (?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sig := range signals {
			rec, err := newSignalRecord(sig, now)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, rec.Type, rec.Timestamp, rec.Payload); err != nil {
				return fmt.Errorf("inserting signal: %w", err)
			}
		}
		return nil
	})
}

// ReadSignals returns the newest signals first.
func (s *SQLiteStore) ReadSignals(ctx context.Context, limit int) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, ts, payload FROM signals ORDER BY ts DESC, id DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Signal
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.Type, &rec.Timestamp, &rec.Payload); err != nil {
			return nil, err
		}
		sig, err := rec.signal()
		if err != nil {
			continue
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// TweetStore implementation
// ---------------------------------------------------------------------------

// WriteTweets upserts tweets in one transaction.
func (s *SQLiteStore) WriteTweets(ctx context.Context, tweets []domain.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}
	now := s.now()
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO tweets (key, ts, content, likes, retweets, payload) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range tweets {
			rec, err := newTweetRecord(t, now)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				rec.Key, rec.Timestamp, rec.Content, rec.Likes, rec.Retweets, rec.Payload); err != nil {
				return fmt.Errorf("inserting tweet: %w", err)
			}
		}
		return nil
	})
}

// ReadTweets returns the newest tweets first.
func (s *SQLiteStore) ReadTweets(ctx context.Context, limit int) ([]domain.Tweet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM tweets ORDER BY ts DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Tweet
	for rows.Next() {
		var rec TweetRecord
		if err := rows.Scan(&rec.Payload); err != nil {
			return nil, err
		}
		t, err := rec.tweet()
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

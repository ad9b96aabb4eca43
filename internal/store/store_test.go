package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"signaldesk/internal/domain"
)

var (
	day1 = time.Date(2025, 3, 4, 12, 30, 0, 0, time.UTC)
	day2 = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
)

func signalAt(text string, ts time.Time) domain.Signal {
	return domain.NewSignal(map[string]any{
		"type":      "whale",
		"original":  text,
		"timestamp": float64(ts.UnixMilli()),
	})
}

func tweetAt(id string, likes int, ts time.Time) domain.Tweet {
	return domain.NewTweet(map[string]any{
		"tweetId":  id,
		"content":  "post " + id,
		"likes":    float64(likes),
		"postedAt": ts.Format(time.RFC3339),
	})
}

// stores returns both archive backends rooted in a temp dir.
func stores(t *testing.T) map[string]Archive {
	t.Helper()
	dir := t.TempDir()
	sq, err := NewSQLiteStore(filepath.Join(dir, "db", "archive.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore returned error: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Archive{
		"parquet": NewParquetStore(filepath.Join(dir, "parquet")),
		"sqlite":  sq,
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	got := ps.dayPath("signals", dayOf(day1.UnixMilli()))
	want := filepath.Join("/data", "signals", "2025-03-04.parquet")
	if got != want {
		t.Errorf("dayPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreDayFiles(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	err := ps.WriteSignals(ctx, []domain.Signal{signalAt("a", day1), signalAt("b", day2)})
	if err != nil {
		t.Fatalf("WriteSignals returned error: %v", err)
	}
	for _, name := range []string{"2025-03-04.parquet", "2025-03-05.parquet"} {
		if _, err := os.Stat(filepath.Join(dir, "signals", name)); err != nil {
			t.Errorf("missing day file %s: %v", name, err)
		}
	}
}

func TestSignalsNewestFirstAndDeduplicated(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			batch := []domain.Signal{
				signalAt("old", day1),
				signalAt("mid", day1.Add(time.Hour)),
				signalAt("new", day2),
			}
			if err := st.WriteSignals(ctx, batch); err != nil {
				t.Fatalf("WriteSignals returned error: %v", err)
			}
			// Writing the same history again must not duplicate it.
			if err := st.WriteSignals(ctx, batch[:2]); err != nil {
				t.Fatalf("second WriteSignals returned error: %v", err)
			}

			all, err := st.ReadSignals(ctx, 0)
			if err != nil {
				t.Fatalf("ReadSignals returned error: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("len(signals) = %d, want 3", len(all))
			}
			for i, want := range []string{"new", "mid", "old"} {
				if got := all[i].Text(); got != want {
					t.Errorf("signals[%d] = %q, want %q", i, got, want)
				}
			}

			two, err := st.ReadSignals(ctx, 2)
			if err != nil {
				t.Fatalf("ReadSignals(2) returned error: %v", err)
			}
			if len(two) != 2 || two[1].Text() != "mid" {
				t.Errorf("ReadSignals(2) = %+v", two)
			}
		})
	}
}

func TestTweetsUpsertByID(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := st.WriteTweets(ctx, []domain.Tweet{tweetAt("1", 3, day1), tweetAt("2", 0, day2)}); err != nil {
				t.Fatalf("WriteTweets returned error: %v", err)
			}
			if err := st.WriteTweets(ctx, []domain.Tweet{tweetAt("1", 10, day1)}); err != nil {
				t.Fatalf("second WriteTweets returned error: %v", err)
			}

			tweets, err := st.ReadTweets(ctx, 10)
			if err != nil {
				t.Fatalf("ReadTweets returned error: %v", err)
			}
			if len(tweets) != 2 {
				t.Fatalf("len(tweets) = %d, want 2", len(tweets))
			}
			if tweets[0].ID != "2" || tweets[1].ID != "1" {
				t.Errorf("order = %s, %s, want 2, 1", tweets[0].ID, tweets[1].ID)
			}
			if tweets[1].Likes != 10 {
				t.Errorf("likes = %d, want the updated 10", tweets[1].Likes)
			}
		})
	}
}

func TestEmptyArchive(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			signals, err := st.ReadSignals(ctx, 5)
			if err != nil || len(signals) != 0 {
				t.Errorf("ReadSignals = %v, %v; want empty", signals, err)
			}
			tweets, err := st.ReadTweets(ctx, 5)
			if err != nil || len(tweets) != 0 {
				t.Errorf("ReadTweets = %v, %v; want empty", tweets, err)
			}
			if err := st.WriteSignals(ctx, nil); err != nil {
				t.Errorf("WriteSignals(nil) returned error: %v", err)
			}
		})
	}
}

func TestUntimedRecordsUseArchiveTime(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ps.now = func() time.Time { return day2 }

	err := ps.WriteSignals(context.Background(), []domain.Signal{
		domain.NewSignal(map[string]any{"type": "note"}),
	})
	if err != nil {
		t.Fatalf("WriteSignals returned error: %v", err)
	}
	days, err := ps.listDays("signals")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0] != "2025-03-05" {
		t.Errorf("days = %v, want [2025-03-05]", days)
	}
}

func TestSQLiteStoreOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	// Verify the store is usable by pinging the database.
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}

	// Reopening must not fail on existing tables.
	again, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening returned error: %v", err)
	}
	again.Close()
}

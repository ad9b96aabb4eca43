package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signaldesk/internal/config"
	"signaldesk/internal/domain"
	"signaldesk/internal/store"
	"signaldesk/internal/util"
	"signaldesk/pkg/signaldesk"
)

func main() {
	cfgPath := flag.String("config", "config/signaldesk.yaml", "path to the YAML config")
	format := flag.String("format", "parquet", "output: parquet, sqlite or both")
	signalLimit := flag.Int("signals", 500, "signals to fetch")
	tweetLimit := flag.Int("tweets", 200, "tweets to fetch per query")
	users := flag.String("users", "", "comma-separated usernames to fetch tweets for (default: all)")
	rpm := flag.Int("rpm", 60, "max backend requests per minute (0 = unlimited)")
	attempts := flag.Int("attempts", 3, "attempts per request")
	flag.Parse()

	if p := os.Getenv("SIGNALDESK_CONFIG"); p != "" {
		*cfgPath = p
	}
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var archives []store.Archive
	switch *format {
	case "parquet", "both":
		archives = append(archives, store.NewParquetStore(cfg.Storage.DataDir))
	}
	switch *format {
	case "sqlite", "both":
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening sqlite archive: %v", err)
		}
		defer sq.Close()
		archives = append(archives, sq)
	}
	if len(archives) == 0 {
		log.Fatalf("unknown format %q (want parquet, sqlite or both)", *format)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *attempts < 1 {
		*attempts = 1
	}
	api := signaldesk.NewClientWithHTTP(cfg.Backend.APIURL, &http.Client{Timeout: cfg.Backend.Timeout})
	ex := &exporter{
		api:      api,
		limiter:  util.NewRateLimiter(*rpm),
		backoff:  util.Backoff{Base: time.Second, Max: 30 * time.Second, Factor: 2},
		attempts: *attempts,
	}

	start := time.Now()
	signals, err := ex.signals(ctx, *signalLimit)
	if err != nil {
		log.Fatalf("fetching signals: %v", err)
	}
	logger.Info("fetched signals", "count", len(signals))

	var tweets []domain.Tweet
	queries := []string{""}
	if *users != "" {
		queries = splitUsers(*users)
	}
	for _, user := range queries {
		batch, err := ex.tweets(ctx, *tweetLimit, user)
		if err != nil {
			if ctx.Err() != nil {
				log.Fatalf("interrupted: %v", err)
			}
			logger.Warn("fetching tweets failed", "user", user, "error", err)
			continue
		}
		logger.Info("fetched tweets", "user", user, "count", len(batch))
		tweets = append(tweets, batch...)
	}

	for _, a := range archives {
		if err := a.WriteSignals(ctx, signals); err != nil {
			log.Fatalf("writing signals: %v", err)
		}
		if err := a.WriteTweets(ctx, tweets); err != nil {
			log.Fatalf("writing tweets: %v", err)
		}
	}

	logger.Info("export complete",
		"format", *format,
		"signals", len(signals),
		"tweets", len(tweets),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)
	fmt.Printf("exported %d signals and %d tweets (%s)\n", len(signals), len(tweets), *format)
}

// exporter paces and retries history requests.
type exporter struct {
	api      *signaldesk.Client
	limiter  *util.RateLimiter
	backoff  util.Backoff
	attempts int
}

func (e *exporter) signals(ctx context.Context, limit int) ([]domain.Signal, error) {
	var out []domain.Signal
	err := util.Retry(ctx, e.attempts, e.backoff, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		out, err = e.api.Signals(ctx, limit)
		return err
	})
	return out, err
}

func (e *exporter) tweets(ctx context.Context, limit int, user string) ([]domain.Tweet, error) {
	var out []domain.Tweet
	err := util.Retry(ctx, e.attempts, e.backoff, func() error {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		out, err = e.api.Tweets(ctx, signaldesk.TweetQuery{Limit: limit, Real: true, Username: user})
		return err
	})
	return out, err
}

func splitUsers(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(u), "@")); u != "" {
			out = append(out, u)
		}
	}
	return out
}

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"signaldesk/internal/chat"
	"signaldesk/internal/config"
	"signaldesk/internal/engine"
	"signaldesk/internal/httpapi"
	"signaldesk/internal/live"
	"signaldesk/internal/store"
	"signaldesk/internal/util"
	"signaldesk/pkg/signaldesk"
)

func main() {
	cfgPath := flag.String("config", "config/signaldesk.yaml", "path to the YAML config")
	archive := flag.Bool("archive", false, "archive every received signal and tweet to SQLite")
	flag.Parse()

	if p := os.Getenv("SIGNALDESK_CONFIG"); p != "" {
		*cfgPath = p
	}
	// A missing .env is fine.
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

	api := signaldesk.NewClientWithHTTP(cfg.Backend.APIURL, &http.Client{Timeout: cfg.Backend.Timeout})
	model := live.NewFeedModel(cfg.Feeds.SignalCapacity, cfg.Feeds.TweetCapacity)
	channel := live.NewClient(cfg.Backend.WSURL, model, live.ClientOptions{
		Backoff:          cfg.Channel.Backoff(),
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		PingInterval:     cfg.Channel.PingInterval,
	}, logger)
	eng := engine.New(api, model, channel, engine.Options{
		BootstrapSignals: cfg.Feeds.BootstrapSignals,
		BootstrapTweets:  cfg.Feeds.BootstrapTweets,
		RefreshInterval:  cfg.Feeds.RefreshInterval,
	}, logger)
	session := chat.NewSession(api, chat.Options{RotateOnClear: cfg.Chat.RotateSessionOnClear}, logger)

	var arch store.Archive
	if *archive {
		sq, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening archive: %v", err)
		}
		defer sq.Close()
		arch = sq
		logger.Info("archiving enabled", "path", cfg.Storage.SQLitePath)
	}

	srv := httpapi.NewDashboardServer(model, session, arch, logger)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: srv.Handler(),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	if arch != nil {
		g.Go(func() error {
			return engine.NewArchiver(model, arch, logger).Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("signaldesk server listening", "addr", httpServer.Addr,
			"api", cfg.Backend.APIURL, "ws", cfg.Backend.WSURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down signaldesk server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

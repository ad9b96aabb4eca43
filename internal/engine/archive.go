package engine

import (
	"context"
	"log/slog"

	"signaldesk/internal/domain"
	"signaldesk/internal/live"
	"signaldesk/internal/store"
)

// Archiver copies what the feed model receives into an archive. It never
// reads the archive back.
type Archiver struct {
	model   *live.FeedModel
	archive store.Archive
	log     *slog.Logger
}

// NewArchiver creates an Archiver for model.
func NewArchiver(model *live.FeedModel, archive store.Archive, log *slog.Logger) *Archiver {
	return &Archiver{model: model, archive: archive, log: log}
}

// Run subscribes to the model and writes every signal and tweet it sees
// until ctx is cancelled. Write failures are logged and skipped. Events
// dropped because the archive is slower than the feed are not recovered.
func (a *Archiver) Run(ctx context.Context) error {
	subID, events := a.model.Subscribe(1024)
	defer a.model.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			a.handle(ctx, evt)
		}
	}
}

func (a *Archiver) handle(ctx context.Context, evt live.Event) {
	switch evt.Kind {
	case live.EventSignal:
		a.writeSignals(ctx, []domain.Signal{evt.Signal})
	case live.EventTweet:
		a.writeTweets(ctx, []domain.Tweet{evt.Tweet})
	case live.EventTweetsReplaced:
		a.writeTweets(ctx, evt.Tweets)
	case live.EventSeeded:
		a.writeSignals(ctx, evt.Signals)
		a.writeTweets(ctx, evt.Tweets)
	}
}

func (a *Archiver) writeSignals(ctx context.Context, signals []domain.Signal) {
	if err := a.archive.WriteSignals(ctx, signals); err != nil {
		a.log.Warn("archiving signals", "count", len(signals), "error", err)
	}
}

func (a *Archiver) writeTweets(ctx context.Context, tweets []domain.Tweet) {
	if err := a.archive.WriteTweets(ctx, tweets); err != nil {
		a.log.Warn("archiving tweets", "count", len(tweets), "error", err)
	}
}

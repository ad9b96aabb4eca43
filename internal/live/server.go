package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"signaldesk/internal/domain"
)

const (
	relayWriteWait  = 10 * time.Second
	relayPongWait   = 60 * time.Second
	relayPingPeriod = (relayPongWait * 9) / 10
	relayBuffer     = 1024
)

// Relay frame types that the backend never sends.
const (
	frameSnapshot = "snapshot"
	frameStatus   = "status"
	frameTweet    = "tweet"
)

var relayUpgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   1024,
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// relayFrame mirrors the backend's frame shape so a Client can dial a
// Relay as if it were the backend.
type relayFrame struct {
	Channel string `json:"channel,omitempty"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Tweets  any    `json:"tweets,omitempty"`
}

// SnapshotData is the payload of the snapshot frame.
type SnapshotData struct {
	Signals    []domain.Signal      `json:"signals"`
	Tweets     []domain.Tweet       `json:"tweets"`
	Summary    domain.MarketSummary `json:"summary"`
	Connected  bool                 `json:"connected"`
	Generation uint64               `json:"generation"`
}

// StatusData is the payload of the status frame.
type StatusData struct {
	Connected  bool   `json:"connected"`
	Generation uint64 `json:"generation"`
}

// Relay streams a FeedModel to websocket peers: one snapshot frame on
// connect, then one frame per model event.
type Relay struct {
	model *FeedModel
	log   *slog.Logger
}

// NewRelay creates a relay backed by model.
func NewRelay(model *FeedModel, log *slog.Logger) *Relay {
	return &Relay{model: model, log: log}
}

// ServeHTTP upgrades the request and streams until the peer goes away.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := relayUpgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("relay upgrade failed", "remote", req.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	// Subscribe before snapshotting so no event falls in between. Events
	// at or below the snapshot generation are skipped.
	subID, events := r.model.Subscribe(relayBuffer)
	defer r.model.Unsubscribe(subID)

	snap := r.model.Snapshot()
	r.log.Info("relay peer connected", "subID", subID, "remote", req.RemoteAddr, "generation", snap.Generation)

	done := make(chan struct{})
	go r.readPump(conn, done)

	conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
	if err := conn.WriteJSON(snapshotFrame(snap)); err != nil {
		r.log.Info("relay peer gone", "subID", subID, "error", err)
		return
	}
	last := snap.Generation

	ping := time.NewTicker(relayPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			r.log.Info("relay peer disconnected", "subID", subID)
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			if evt.Generation <= last {
				continue
			}
			last = evt.Generation
			frame := r.eventFrame(evt)
			conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				r.log.Info("relay write failed", "subID", subID, "error", err)
				return
			}
		}
	}
}

// readPump discards peer frames and keeps the read deadline fresh. It
// closes done when the peer goes away.
func (r *Relay) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(relayPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(relayPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(relayPongWait))
	}
}

func (r *Relay) eventFrame(evt Event) relayFrame {
	switch evt.Kind {
	case EventSignal:
		return relayFrame{Channel: domain.TopicSignals, Type: frameSignal, Data: evt.Signal}
	case EventSummary:
		return relayFrame{Channel: domain.TopicSignals, Type: frameSummary, Data: evt.Summary}
	case EventTweet:
		return relayFrame{Channel: domain.TopicTweets, Type: frameTweet, Data: evt.Tweet}
	case EventTweetsReplaced:
		tweets := evt.Tweets
		if tweets == nil {
			tweets = []domain.Tweet{}
		}
		return relayFrame{Type: frameTweetsUpdate, Tweets: tweets}
	case EventConnection:
		return relayFrame{Type: frameStatus, Data: StatusData{Connected: evt.Connected, Generation: evt.Generation}}
	default:
		// Seeded: resend the whole model.
		return snapshotFrame(Snapshot{
			Signals:    evt.Signals,
			Tweets:     evt.Tweets,
			Summary:    evt.Summary,
			Connected:  evt.Connected,
			Generation: evt.Generation,
		})
	}
}

func snapshotFrame(s Snapshot) relayFrame {
	return relayFrame{Type: frameSnapshot, Data: SnapshotData{
		Signals:    s.Signals,
		Tweets:     s.Tweets,
		Summary:    s.Summary,
		Connected:  s.Connected,
		Generation: s.Generation,
	}}
}

// DecodeSnapshot extracts the payload of a relay snapshot frame. ok is false
// for any other frame.
func DecodeSnapshot(frame []byte) (data SnapshotData, ok bool, err error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return SnapshotData{}, false, err
	}
	if env.Type != frameSnapshot {
		return SnapshotData{}, false, nil
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return SnapshotData{}, true, err
	}
	return data, true, nil
}

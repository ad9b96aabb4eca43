package live

import (
	"bytes"
	"encoding/json"
	"fmt"

	"signaldesk/internal/domain"
)

// SubscribeFrame is the client→server request for one topic. It is not
// acknowledged.
type SubscribeFrame struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Subscribe returns the subscribe frame for topic.
func Subscribe(topic string) SubscribeFrame {
	return SubscribeFrame{Type: "subscribe", Channel: topic}
}

// Server→client frame types.
const (
	frameSignal       = "signal"
	frameSummary      = "summary"
	frameTweetsUpdate = "tweets_update"
)

// envelope is the server→client frame. Channel routes per-topic frames;
// a top-level tweets_update carries its list in Tweets instead of Data.
type envelope struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Tweets  json.RawMessage `json:"tweets"`
}

// PushKind enumerates the mutations a frame can carry.
type PushKind int

const (
	PushSignal PushKind = iota + 1
	PushSummary
	PushTweet
	PushTweetsReplace
)

func (k PushKind) String() string {
	switch k {
	case PushSignal:
		return "signal"
	case PushSummary:
		return "summary"
	case PushTweet:
		return "tweet"
	case PushTweetsReplace:
		return "tweets_replace"
	default:
		return fmt.Sprintf("PushKind(%d)", int(k))
	}
}

// Push is one decoded mutation for the feed model. Only the field matching
// Kind is set.
type Push struct {
	Kind    PushKind
	Signal  domain.Signal
	Tweet   domain.Tweet
	Tweets  []domain.Tweet
	Summary domain.MarketSummary
}

// ParseFrame decodes one inbound frame. The channel route and the top-level
// tweets_update route are evaluated independently, so one frame can yield
// up to two pushes. A frame that matches neither yields none. Any decoding
// failure rejects the whole frame.
func ParseFrame(frame []byte) ([]Push, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}

	var pushes []Push

	switch env.Channel {
	case domain.TopicSignals:
		switch env.Type {
		case frameSignal:
			if isAbsent(env.Data) {
				return nil, fmt.Errorf("signal frame without data")
			}
			var s domain.Signal
			if err := json.Unmarshal(env.Data, &s); err != nil {
				return nil, err
			}
			pushes = append(pushes, Push{Kind: PushSignal, Signal: s})
		case frameSummary:
			if isAbsent(env.Data) {
				return nil, fmt.Errorf("summary frame without data")
			}
			var m domain.MarketSummary
			if err := json.Unmarshal(env.Data, &m); err != nil {
				return nil, err
			}
			pushes = append(pushes, Push{Kind: PushSummary, Summary: m})
		}
	case domain.TopicTweets:
		if isAbsent(env.Data) {
			if env.Type == frameTweetsUpdate {
				break
			}
			return nil, fmt.Errorf("tweet frame without data")
		}
		var t domain.Tweet
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return nil, err
		}
		pushes = append(pushes, Push{Kind: PushTweet, Tweet: t})
	}

	if env.Type == frameTweetsUpdate && !isAbsent(env.Tweets) {
		var tweets []domain.Tweet
		if err := json.Unmarshal(env.Tweets, &tweets); err != nil {
			return nil, fmt.Errorf("decoding tweets_update: %w", err)
		}
		if tweets == nil {
			tweets = []domain.Tweet{}
		}
		pushes = append(pushes, Push{Kind: PushTweetsReplace, Tweets: tweets})
	}

	return pushes, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

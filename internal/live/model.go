// Package live keeps the dashboard's realtime read model in sync with the
// signal backend: the websocket channel client, its wire protocol, the
// bounded feed model it writes into, and a relay that streams the model to
// local consumers.
package live

import (
	"sync"

	"signaldesk/internal/domain"
)

// Default feed capacities.
const (
	DefaultSignalCapacity = 100
	DefaultTweetCapacity  = 50
)

// EventKind identifies a model change.
type EventKind string

const (
	EventSignal         EventKind = "signal"
	EventTweet          EventKind = "tweet"
	EventTweetsReplaced EventKind = "tweets_replaced"
	EventSummary        EventKind = "summary"
	EventConnection     EventKind = "connection"
	EventSeeded         EventKind = "seeded"
)

// Event is emitted to subscribers after every mutation. Only the fields
// relevant to Kind are set; Generation is the model generation after the
// change. Connected is set for connection and seeded events. Payloads are
// copies of model state but one copy is shared by all subscribers, so
// treat them as read-only.
type Event struct {
	Kind       EventKind
	Generation uint64
	Signal     domain.Signal
	Signals    []domain.Signal // seeded list
	Tweet      domain.Tweet
	Tweets     []domain.Tweet // replacement or seeded list
	Summary    domain.MarketSummary
	Connected  bool
}

// Snapshot is a copy of the model at one generation. Signals and Tweets are
// newest first.
type Snapshot struct {
	Signals    []domain.Signal
	Tweets     []domain.Tweet
	Summary    domain.MarketSummary
	Connected  bool
	Generation uint64
}

// FeedModel holds the bounded signal and tweet feeds, the latest market
// summary and the channel connectivity flag. All mutation is synchronous
// and in-memory; readers get copies.
type FeedModel struct {
	mu         sync.RWMutex
	signals    []domain.Signal // newest first, len <= signalCap
	tweets     []domain.Tweet  // newest first, len <= tweetCap
	summary    domain.MarketSummary
	connected  bool
	generation uint64
	signalCap  int
	tweetCap   int

	subsMu    sync.Mutex
	nextSubID int
	subs      map[int]chan Event
}

// NewFeedModel creates an empty model. Non-positive capacities fall back to
// DefaultSignalCapacity and DefaultTweetCapacity.
func NewFeedModel(signalCap, tweetCap int) *FeedModel {
	if signalCap <= 0 {
		signalCap = DefaultSignalCapacity
	}
	if tweetCap <= 0 {
		tweetCap = DefaultTweetCapacity
	}
	return &FeedModel{
		signalCap: signalCap,
		tweetCap:  tweetCap,
		subs:      make(map[int]chan Event),
	}
}

// ApplyPush merges one pushed mutation. Duplicates are not detected:
// delivering the same signal twice stores it twice.
func (m *FeedModel) ApplyPush(p Push) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evt Event
	switch p.Kind {
	case PushSignal:
		m.signals = prepend(m.signals, p.Signal, m.signalCap)
		evt = Event{Kind: EventSignal, Signal: p.Signal.Clone()}
	case PushTweet:
		m.tweets = prepend(m.tweets, p.Tweet, m.tweetCap)
		evt = Event{Kind: EventTweet, Tweet: p.Tweet.Clone()}
	case PushTweetsReplace:
		m.tweets = bounded(p.Tweets, m.tweetCap)
		evt = Event{Kind: EventTweetsReplaced, Tweets: cloneEach(m.tweets, domain.Tweet.Clone)}
	case PushSummary:
		m.summary = p.Summary
		evt = Event{Kind: EventSummary, Summary: p.Summary.Clone()}
	default:
		return
	}
	m.generation++
	evt.Generation = m.generation
	m.publish(evt)
}

// SetConnected records a channel open (true) or close (false).
func (m *FeedModel) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = connected
	m.generation++
	m.publish(Event{Kind: EventConnection, Connected: connected, Generation: m.generation})
}

// Seed overwrites the feeds and summary with values fetched over HTTP.
// Whatever was pushed before is discarded, so callers seed before the
// channel is opened. Lists longer than the capacity keep their first
// (newest) entries.
func (m *FeedModel) Seed(signals []domain.Signal, tweets []domain.Tweet, summary domain.MarketSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.signals = bounded(signals, m.signalCap)
	m.tweets = bounded(tweets, m.tweetCap)
	m.summary = summary
	m.generation++
	m.publish(Event{
		Kind:       EventSeeded,
		Generation: m.generation,
		Signals:    cloneEach(m.signals, domain.Signal.Clone),
		Tweets:     cloneEach(m.tweets, domain.Tweet.Clone),
		Summary:    summary.Clone(),
		Connected:  m.connected,
	})
}

// Snapshot returns a deep copy of the current state.
func (m *FeedModel) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Signals:    cloneEach(m.signals, domain.Signal.Clone),
		Tweets:     cloneEach(m.tweets, domain.Tweet.Clone),
		Summary:    m.summary.Clone(),
		Connected:  m.connected,
		Generation: m.generation,
	}
}

// Connected reports the channel connectivity flag.
func (m *FeedModel) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Counts returns the number of stored signals and tweets.
func (m *FeedModel) Counts() (signals, tweets int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.signals), len(m.tweets)
}

// Subscribe creates a new subscription channel for model events.
func (m *FeedModel) Subscribe(bufSize int) (id int, ch <-chan Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	id = m.nextSubID
	m.nextSubID++
	c := make(chan Event, bufSize)
	m.subs[id] = c
	return id, c
}

// Unsubscribe removes a subscription and closes its channel.
func (m *FeedModel) Unsubscribe(id int) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	if ch, ok := m.subs[id]; ok {
		close(ch)
		delete(m.subs, id)
	}
}

// Subscribers returns the number of open subscriptions.
func (m *FeedModel) Subscribers() int {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	return len(m.subs)
}

// publish notifies subscribers without blocking. Callers hold m.mu so
// every subscriber sees events in generation order.
func (m *FeedModel) publish(evt Event) {
	m.subsMu.Lock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber, drop event.
		}
	}
	m.subsMu.Unlock()
}

// prepend returns a new slice with v at the front and at most limit entries.
// The old backing array is never written, so earlier snapshots stay valid.
func prepend[T any](list []T, v T, limit int) []T {
	n := len(list) + 1
	if n > limit {
		n = limit
	}
	out := make([]T, n)
	out[0] = v
	copy(out[1:], list)
	return out
}

// bounded copies at most limit leading entries of list. A nil list becomes
// an empty one.
func bounded[T any](list []T, limit int) []T {
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]T, len(list))
	copy(out, list)
	return out
}

// cloneEach copies list, passing every element through clone.
func cloneEach[T any](list []T, clone func(T) T) []T {
	out := make([]T, len(list))
	for i, v := range list {
		out[i] = clone(v)
	}
	return out
}

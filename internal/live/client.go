package live

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"signaldesk/internal/domain"
	"signaldesk/internal/util"
)

// DefaultWSURL is the local-development channel endpoint.
const DefaultWSURL = "ws://localhost:3001"

const maxFrameSize = 4 << 20

// Sink receives everything the channel learns. FeedModel implements it.
type Sink interface {
	ApplyPush(Push)
	SetConnected(bool)
}

// ClientOptions tunes the channel client.
type ClientOptions struct {
	// Backoff paces reconnect attempts. The attempt counter resets after
	// every successful open.
	Backoff util.Backoff
	// HandshakeTimeout bounds the websocket opening handshake.
	HandshakeTimeout time.Duration
	// PingInterval sends keepalive pings while connected; 0 disables them.
	PingInterval time.Duration
}

// DefaultClientOptions reconnects every 5 seconds, forever.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Backoff:          util.FixedBackoff(5 * time.Second),
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

// subscribedTopics are requested, in order, after every open.
var subscribedTopics = []string{domain.TopicSignals, domain.TopicTweets}

type connState int

const (
	stateIdle connState = iota
	stateDialing
	stateOpen
)

// stopper is the part of *time.Timer the client needs.
type stopper interface {
	Stop() bool
}

// Client owns one logical websocket connection to the backend. It
// subscribes to the signal and tweet topics after every open, forwards
// decoded frames to its Sink, and re-dials after every close until Close
// is called.
type Client struct {
	url    string
	sink   Sink
	opts   ClientOptions
	log    *slog.Logger
	dialer *websocket.Dialer

	// schedule runs f after d. Replaced in tests.
	schedule func(d time.Duration, f func()) stopper

	ctx    context.Context // cancelled by Close to abort a dial
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   connState
	conn    *websocket.Conn
	timer   stopper // pending reconnect, nil when none
	attempt int
	closed  bool
}

// NewClient creates a client for the given websocket URL. Nothing is dialed
// until Connect.
func NewClient(url string, sink Sink, opts ClientOptions, log *slog.Logger) *Client {
	if url == "" {
		url = DefaultWSURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:  url,
		sink: sink,
		opts: opts,
		log:  log,
		dialer: &websocket.Dialer{
			HandshakeTimeout:  opts.HandshakeTimeout,
			EnableCompression: true,
		},
		schedule: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// URL returns the endpoint the client dials.
func (c *Client) URL() string { return c.url }

// Connect starts a connection attempt in the background. It is a no-op
// when the client is closed or a connection is already open or being
// dialed. Dial errors are logged, never returned; they lead to a scheduled
// reconnect like any other close.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.closed || c.state != stateIdle {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = stateDialing
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run()
}

// Close stops the pending reconnect, aborts a dial in flight, and closes
// the live connection without scheduling another attempt. It waits for
// the connection goroutine to exit, so it must not be called from a Sink
// method. Close is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.mu.Unlock()

	c.cancel()

	var err error
	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

// run drives one connection from dial to close, then schedules exactly one
// reconnect unless the client was closed meanwhile.
func (c *Client) run() {
	defer c.wg.Done()

	opened := c.session()
	if opened {
		c.sink.SetConnected(false)
	}

	c.mu.Lock()
	c.conn = nil
	c.state = stateIdle
	if c.closed {
		c.mu.Unlock()
		return
	}
	delay := c.opts.Backoff.Delay(c.attempt)
	c.attempt++
	c.timer = c.schedule(delay, c.Connect)
	c.mu.Unlock()

	c.log.Info("channel reconnect scheduled", "url", c.url, "delay", delay)
}

// session dials, subscribes and reads until the connection ends. It
// reports whether the connection was ever open.
func (c *Client) session() bool {
	conn, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		if c.ctx.Err() == nil {
			c.log.Warn("channel dial failed", "url", c.url, "error", err)
		}
		return false
	}
	defer conn.Close()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = stateOpen
	c.attempt = 0
	c.mu.Unlock()

	conn.SetReadLimit(maxFrameSize)
	c.sink.SetConnected(true)
	c.log.Info("channel connected", "url", c.url)

	for _, topic := range subscribedTopics {
		if err := conn.WriteJSON(Subscribe(topic)); err != nil {
			c.log.Warn("channel subscribe failed", "topic", topic, "error", err)
			return true
		}
	}

	stopPing := c.keepalive(conn)
	defer stopPing()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.logDisconnect(err)
			return true
		}
		pushes, err := ParseFrame(frame)
		if err != nil {
			c.log.Warn("dropping malformed frame", "error", err, "bytes", len(frame))
			continue
		}
		for _, p := range pushes {
			c.sink.ApplyPush(p)
		}
	}
}

func (c *Client) logDisconnect(err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	var ce *websocket.CloseError
	switch {
	case closed:
		c.log.Info("channel closed", "url", c.url)
	case errors.As(err, &ce):
		c.log.Info("channel disconnected", "url", c.url, "code", ce.Code, "reason", ce.Text)
	default:
		c.log.Warn("channel disconnected", "url", c.url, "error", err)
	}
}

// keepalive pings the server until the returned stop function is called.
func (c *Client) keepalive(conn *websocket.Conn) func() {
	if c.opts.PingInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(5 * time.Second)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

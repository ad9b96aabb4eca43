// Package chat keeps the assistant transcript for one dashboard session.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"signaldesk/internal/domain"
)

// Greeting opens every new transcript.
const Greeting = `I'm Zara, an AI trading intelligence agent specialized in Polymarket and crypto markets.

I track whale movements, market sentiment, and price predictions in real-time. I also publish signals on my Telegram channel and Twitter @SignalsZara.

What would you like to know about the markets? I can help with:
- Polymarket predictions and whale activity
- Crypto price analysis
- Trading signals and market trends

Note: This is not financial advice. Always DYOR.`

// ClearedGreeting replaces the transcript after Clear.
const ClearedGreeting = "Chat cleared! How can I help you? 🤖"

// FallbackReply is the assistant turn recorded when a chat request fails.
const FallbackReply = "⚠️ Sorry, I encountered an error. Please try again."

var (
	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrTurnInFlight is returned by Send while an earlier request is pending.
	ErrTurnInFlight = errors.New("chat: a reply is still pending")
)

// Requester is the part of the backend client the session uses.
// *signaldesk.Client satisfies it.
type Requester interface {
	Chat(ctx context.Context, message, sessionID string) (string, error)
	ClearChat(ctx context.Context, sessionID string) error
}

// Options configures a Session.
type Options struct {
	// RotateOnClear switches to a fresh session id after each Clear.
	RotateOnClear bool
}

// Session is a single-flight conversation with the backend assistant.
// It is safe for concurrent use.
type Session struct {
	api  Requester
	opts Options
	log  *slog.Logger

	mu       sync.Mutex
	id       string
	messages []domain.ChatMessage
	busy     bool
	epoch    uint64 // advanced by Clear; replies from older epochs are dropped
}

// NewSession creates a session with a fresh id and the greeting transcript.
func NewSession(api Requester, opts Options, log *slog.Logger) *Session {
	return &Session{
		api:      api,
		opts:     opts,
		log:      log,
		id:       newSessionID(),
		messages: []domain.ChatMessage{{Role: domain.RoleAssistant, Content: Greeting}},
	}
}

func newSessionID() string {
	return "session_" + uuid.NewString()
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Busy reports whether a reply is pending.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Send appends text as a user turn and waits for the assistant's reply.
// A failed request is recorded as an error turn holding FallbackReply and
// is not returned; the only errors are ErrEmptyMessage and ErrTurnInFlight,
// in which case the transcript is untouched and nothing is sent.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrTurnInFlight
	}
	s.busy = true
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleUser, Content: text})
	id, epoch := s.id, s.epoch
	s.mu.Unlock()

	reply, err := s.api.Chat(ctx, text, id)

	turn := domain.ChatMessage{Role: domain.RoleAssistant, Content: reply}
	if err != nil {
		s.log.Warn("chat request failed", "session", id, "error", err)
		turn = domain.ChatMessage{Role: domain.RoleAssistant, Content: FallbackReply, Error: true}
	}

	s.mu.Lock()
	s.busy = false
	if s.epoch == epoch {
		s.messages = append(s.messages, turn)
	} else {
		s.log.Debug("dropping reply from cleared conversation", "session", id)
	}
	s.mu.Unlock()
	return nil
}

// Clear asks the backend to forget the session and resets the transcript to
// ClearedGreeting whatever the outcome. A backend failure is logged and
// returned for information only.
func (s *Session) Clear(ctx context.Context) error {
	id := s.ID()
	err := s.api.ClearChat(ctx, id)
	if err != nil {
		s.log.Warn("chat clear failed", "session", id, "error", err)
	}

	s.mu.Lock()
	s.epoch++
	s.messages = []domain.ChatMessage{{Role: domain.RoleAssistant, Content: ClearedGreeting}}
	if s.opts.RotateOnClear {
		s.id = newSessionID()
	}
	s.mu.Unlock()
	return err
}

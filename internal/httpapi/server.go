package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"signaldesk/internal/chat"
	"signaldesk/internal/domain"
	"signaldesk/internal/live"
	"signaldesk/internal/store"
)

const maxChatBody = 64 << 10

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	model   *live.FeedModel
	session *chat.Session
	relay   *live.Relay
	archive store.Archive // nil when no archive is configured
	log     *slog.Logger
}

// NewDashboardServer creates a new dashboard HTTP server. archive may be nil.
func NewDashboardServer(
	model *live.FeedModel,
	session *chat.Session,
	archive store.Archive,
	log *slog.Logger,
) *DashboardServer {
	return &DashboardServer{
		model:   model,
		session: session,
		relay:   live.NewRelay(model, log),
		archive: archive,
		log:     log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/tweets", s.handleTweets)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/chat", s.handleGetChat)
	mux.HandleFunc("POST /api/chat", s.handleSendChat)
	mux.HandleFunc("DELETE /api/chat", s.handleClearChat)
	mux.HandleFunc("GET /api/archive/signals", s.handleArchiveSignals)
	mux.HandleFunc("GET /api/archive/tweets", s.handleArchiveTweets)
	mux.Handle("GET /ws", s.relay)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseLimit reads the optional "limit" query param. Missing means no
// limit; anything that is not a positive integer is rejected.
func parseLimit(r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func head[T any](list []T, limit int) []T {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

// ---------------------------------------------------------------------------
// Read model
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, snapshotJSON(s.model.Snapshot()))
}

func (s *DashboardServer) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, head(s.model.Snapshot().Signals, limit))
}

func (s *DashboardServer) handleTweets(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	writeJSON(w, head(s.model.Snapshot().Tweets, limit))
}

func (s *DashboardServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, summaryJSON(s.model.Snapshot().Summary))
}

func (s *DashboardServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.model.Snapshot()
	writeJSON(w, StatusJSON{
		Connected:  snap.Connected,
		Signals:    len(snap.Signals),
		Tweets:     len(snap.Tweets),
		Generation: snap.Generation,
		SessionID:  s.session.ID(),
		ChatBusy:   s.session.Busy(),
	})
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func (s *DashboardServer) transcript() ChatJSON {
	return ChatJSON{
		SessionID: s.session.ID(),
		Busy:      s.session.Busy(),
		Messages:  s.session.Messages(),
	}
}

func (s *DashboardServer) handleGetChat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.transcript())
}

// handleSendChat blocks until the assistant has replied. A failed backend
// request still answers 200 with the error turn in the transcript.
func (s *DashboardServer) handleSendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.session.Send(r.Context(), req.Message)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message is empty")
		return
	case errors.Is(err, chat.ErrTurnInFlight):
		writeError(w, http.StatusConflict, "a reply is still pending")
		return
	case err != nil:
		s.log.Error("chat send", "error", err)
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, s.transcript())
}

func (s *DashboardServer) handleClearChat(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Clear(r.Context()); err != nil {
		// The local transcript is reset either way.
		s.log.Warn("chat clear", "error", err)
	}
	writeJSON(w, s.transcript())
}

// ---------------------------------------------------------------------------
// Archive
// ---------------------------------------------------------------------------

func (s *DashboardServer) handleArchiveSignals(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	signals, err := s.archive.ReadSignals(r.Context(), limit)
	if err != nil {
		s.log.Error("reading archived signals", "error", err)
		writeError(w, http.StatusInternalServerError, "archive read failed")
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}
	writeJSON(w, signals)
}

func (s *DashboardServer) handleArchiveTweets(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, "no archive configured")
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	tweets, err := s.archive.ReadTweets(r.Context(), limit)
	if err != nil {
		s.log.Error("reading archived tweets", "error", err)
		writeError(w, http.StatusInternalServerError, "archive read failed")
		return
	}
	if tweets == nil {
		tweets = []domain.Tweet{}
	}
	writeJSON(w, tweets)
}

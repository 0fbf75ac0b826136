package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatimitate/feishu-chatimitate/internal/biz/domain"
	"github.com/chatimitate/feishu-chatimitate/internal/biz/usecase"
)

// Engine is the operator surface of the chat engine
type Engine interface {
	Ban(ctx context.Context, groupID, botID, target, reason string) bool
	Sync(ctx context.Context)
	ClearupContext(ctx context.Context) (*domain.PruneResult, error)
	UpdateGlobalBlacklist(ctx context.Context)
	Stats(ctx context.Context) usecase.Stats
	SampleMessages() map[string]*domain.Message
}

// Server is the local operator HTTP API
type Server struct {
	engine Engine
	log    *slog.Logger
	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(engine Engine, port int) *Server {
	return &Server{
		engine: engine,
		log:    slog.Default().With("component", "api"),
		port:   port,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/ban", s.handleBan)
		r.Post("/sync", s.handleSync)
		r.Post("/clearup", s.handleClearup)
		r.Post("/blacklist/global", s.handleGlobalBlacklist)
		r.Get("/stats", s.handleStats)
		r.Get("/samples", s.handleSamples)
	})
	return r
}

// Start starts the HTTP server on 127.0.0.1 and blocks
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("starting HTTP server", "port", s.port)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// BanRequest asks the engine to forbid a recent reply
type BanRequest struct {
	GroupID string `json:"group_id"`
	BotID   string `json:"bot_id"`
	// Target selects the reply by substring; empty bans the latest reply
	Target string `json:"target,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// BanResponse reports whether a reply was banned
type BanResponse struct {
	Banned bool `json:"banned"`
}

// ClearupResponse reports what context pruning removed
type ClearupResponse struct {
	ContextsDeleted int64 `json:"contexts_deleted"`
	AnswersDeleted  int64 `json:"answers_deleted"`
	ContextsCleared int64 `json:"contexts_cleared"`
}

// Message is the wire form of a cached message
type Message struct {
	ID         string    `json:"id,omitempty"`
	SourceID   string    `json:"source_id,omitempty"`
	GroupID    string    `json:"group_id"`
	UserID     string    `json:"user_id"`
	BotID      string    `json:"bot_id"`
	RawMessage string    `json:"raw_message"`
	PlainText  string    `json:"plain_text"`
	Keywords   string    `json:"keywords"`
	Time       time.Time `json:"time"`
}

// FromDomain converts a domain message to its wire form
func FromDomain(m *domain.Message) Message {
	return Message{
		ID:         m.ID,
		SourceID:   m.SourceID,
		GroupID:    m.GroupID,
		UserID:     m.UserID,
		BotID:      m.BotID,
		RawMessage: m.RawMessage,
		PlainText:  m.PlainText,
		Keywords:   m.Keywords,
		Time:       m.Time,
	}
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var req BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.GroupID == "" || req.BotID == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("group_id and bot_id are required"))
		return
	}
	if req.Reason == "" {
		req.Reason = "ApiBan"
	}

	banned := s.engine.Ban(r.Context(), req.GroupID, req.BotID, req.Target, req.Reason)
	s.writeJSON(w, BanResponse{Banned: banned})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	s.engine.Sync(r.Context())
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleClearup(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ClearupContext(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := ClearupResponse{}
	if res != nil {
		out = ClearupResponse{
			ContextsDeleted: res.ContextsDeleted,
			AnswersDeleted:  res.AnswersDeleted,
			ContextsCleared: res.ContextsCleared,
		}
	}
	s.writeJSON(w, out)
}

func (s *Server) handleGlobalBlacklist(w http.ResponseWriter, r *http.Request) {
	s.engine.UpdateGlobalBlacklist(r.Context())
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.engine.Stats(r.Context()))
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	samples := s.engine.SampleMessages()
	out := make(map[string]Message, len(samples))
	for g, m := range samples {
		if m != nil {
			out[g] = FromDomain(m)
		}
	}
	s.writeJSON(w, map[string]map[string]Message{"samples": out})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

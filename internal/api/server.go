// Package api exposes the HTTP surface: the streaming chat endpoint,
// chat history, documents and suggestions, votes, and file uploads.
// All business endpoints sit behind bearer-token auth; /health and
// /metrics do not.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillhq/quill/internal/blob"
	"github.com/quillhq/quill/internal/chat"
	"github.com/quillhq/quill/internal/log"
	"github.com/quillhq/quill/internal/store"
)

// Store is the persistence surface the handlers need.
type Store interface {
	ChatByID(ctx context.Context, id string) (store.Chat, error)
	ChatsByUser(ctx context.Context, userID uuid.UUID) ([]store.Chat, error)
	DeleteChat(ctx context.Context, id string, userID uuid.UUID) error
	MessagesByChat(ctx context.Context, chatID string) ([]store.Message, error)

	VotesByChat(ctx context.Context, chatID string) ([]store.Vote, error)
	VoteMessage(ctx context.Context, vote store.Vote) error

	SaveDocument(ctx context.Context, id, title, content string, userID uuid.UUID) (store.Document, error)
	LatestDocument(ctx context.Context, id string) (store.Document, error)
	DocumentVersions(ctx context.Context, id string) ([]store.Document, error)
	DeleteDocumentVersionsAfter(ctx context.Context, id string, after time.Time, userID uuid.UUID) error

	SuggestionsByDocument(ctx context.Context, documentID string) ([]store.Suggestion, error)

	SaveFileUpload(ctx context.Context, upload store.FileUpload) (store.FileUpload, error)
}

// TurnRunner runs chat turns. Implemented by chat.Orchestrator.
type TurnRunner interface {
	ExecuteTurn(ctx context.Context, userID uuid.UUID, req chat.Request, sink chat.Sink) error
}

// ServerConfig assembles a Server.
type ServerConfig struct {
	Store      Store
	Runner     TurnRunner
	Blob       *blob.Store
	JWTSecret  []byte
	CORS       []string
	TrustProxy bool
	// RateBurst caps per-IP burst size; zero disables rate limiting.
	RateBurst int
	// Registry receives the HTTP metrics; nil uses the default.
	Registry *prometheus.Registry
	Logger   log.Logger
}

// Server is the HTTP API server.
type Server struct {
	store   Store
	runner  TurnRunner
	blob    *blob.Store
	logger  log.Logger
	metrics *metrics
	handler http.Handler
}

// NewServer builds the server and its route table.
func NewServer(cfg ServerConfig) *Server {
	var reg prometheus.Registerer = prometheus.DefaultRegisterer
	gatherer := prometheus.DefaultGatherer
	if cfg.Registry != nil {
		reg = cfg.Registry
		gatherer = cfg.Registry
	}

	s := &Server{
		store:   cfg.Store,
		runner:  cfg.Runner,
		blob:    cfg.Blob,
		logger:  cfg.Logger,
		metrics: newMetrics(reg),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	auth := authMiddleware(cfg.JWTSecret, cfg.Logger)
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux.Handle("POST /api/v1/chat", protected(s.handleChat))
	mux.Handle("DELETE /api/v1/chat", protected(s.handleDeleteChat))
	mux.Handle("GET /api/v1/history", protected(s.handleHistory))
	mux.Handle("GET /api/v1/chat/messages", protected(s.handleChatMessages))

	mux.Handle("GET /api/v1/document", protected(s.handleGetDocument))
	mux.Handle("POST /api/v1/document", protected(s.handleSaveDocument))
	mux.Handle("PATCH /api/v1/document", protected(s.handleRevertDocument))

	mux.Handle("GET /api/v1/suggestions", protected(s.handleSuggestions))

	mux.Handle("GET /api/v1/vote", protected(s.handleGetVotes))
	mux.Handle("POST /api/v1/vote", protected(s.handleVote))
	mux.Handle("PATCH /api/v1/vote", protected(s.handleVote))

	mux.Handle("POST /api/v1/files/upload", protected(s.handleUpload))
	mux.Handle("GET /files/{path...}", protected(s.handleServeFile))

	// Middleware order, outermost first: recovery, metrics, logging,
	// CORS, rate limit.
	var handler http.Handler = mux
	if cfg.RateBurst > 0 {
		rl := newRateLimiter(float64(cfg.RateBurst)/2, cfg.RateBurst)
		handler = rateLimitMiddleware(rl, cfg.TrustProxy, cfg.Logger)(handler)
	}
	handler = corsMiddleware(cfg.CORS)(handler)
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = s.metrics.middleware(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)
	s.handler = handler

	return s
}

// Handler returns the composed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

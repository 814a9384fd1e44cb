// Package server provides the HTTP API for Kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vectorstore"
)

// Server is the HTTP server for the Kotae API.
type Server struct {
	storage   storage.Storage
	vectors   vectorstore.Store
	ingest    *ingest.Manager
	retriever *retrieval.Retriever
	answerer  *answer.Synthesizer
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	vectors vectorstore.Store,
	mgr *ingest.Manager,
	retriever *retrieval.Retriever,
	answerer *answer.Synthesizer,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:   store,
		vectors:   vectors,
		ingest:    mgr,
		retriever: retriever,
		answerer:  answerer,
		config:    cfg,
		logger:    logger,
	}
}

// Handler builds the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/courses/{courseID}/documents", s.handleUploadDocument)
		r.Get("/courses/{courseID}/documents", s.handleListDocuments)
		r.Get("/courses/{courseID}/qa", s.handleQAHistory)
		r.Post("/documents/{documentID}/ingest", s.handleIngestDocument)
		r.Delete("/documents/{documentID}", s.handleDeleteDocument)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Post("/search", s.handleSearch)
		r.Post("/ask", s.handleAsk)
		r.Get("/ask/stream", s.handleAskStream)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops. The websocket
// route streams for longer than a generation round trip, so the timeout
// middleware is left off in favor of per-connection deadlines.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

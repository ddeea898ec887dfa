// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/Ensemplix/Monsoon/internal/commands"
	"github.com/Ensemplix/Monsoon/internal/config"
	"github.com/Ensemplix/Monsoon/internal/history"
	"github.com/Ensemplix/Monsoon/internal/permission"
	"github.com/Ensemplix/Monsoon/internal/tasks"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxRequestBodySize bounds call and complete bodies.
	MaxRequestBodySize = 64 * 1024

	// MaxLineLength is the longest command line accepted.
	MaxLineLength = 4096

	// SenderHeader names the sender when the body does not.
	SenderHeader = "X-Monsoon-Sender"

	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout = 5 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Options carries the collaborators the routes serve. Only Dispatcher is
// required. Senders are put on Roster while they keep making requests.
type Options struct {
	Dispatcher *commands.Dispatcher
	Grants     *permission.Store
	Roster     *permission.Roster
	History    *history.Store
	Queue      *tasks.Queue
	Logger     *log.Logger
	Version    string
}

// Server is the HTTP transport for the dispatcher.
type Server struct {
	cfg      config.ServerConfig
	opts     Options
	logger   *log.Logger
	limiters *clientLimiters
	presence *presence
	router   chi.Router
	started  time.Time
}

// New builds the router. It does not listen until Run.
func New(cfg config.ServerConfig, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &Server{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		limiters: newClientLimiters(cfg.RateLimit, cfg.Burst),
		presence: newPresence(opts.Roster, opts.Grants,
			time.Duration(cfg.PresenceSecs)*time.Second, logger),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	if s.cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", SenderHeader},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(AuthMiddleware(s.cfg.Token, s.logger))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/commands", s.handleCommands)
		r.Post("/call", s.handleCall)
		r.Post("/complete", s.handleComplete)
		r.Get("/history", s.handleHistory)
		r.Get("/tasks", s.handleTasks)
	})

	s.router = r
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully and takes its senders off the roster.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", "addr", s.cfg.Addr, "auth", s.cfg.Token != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.presence.close()
	return err
}

// ============================================================================
// HELPERS
// ============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes what went wrong.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
	Action  string `json:"action,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

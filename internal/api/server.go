// Package api exposes the indexer's control interface over HTTP: the
// indexing lifecycle (start/pause/resume/stop/reset), search, bookmark and
// tag mutation, and a websocket feed of status snapshots.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nodo1014/indexer-quick/internal/indexer"
	"github.com/nodo1014/indexer-quick/internal/repository"
	"github.com/nodo1014/indexer-quick/internal/search"
)

// Server is the control-interface HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	listener net.Listener
	port     int
	logger   zerolog.Logger

	controller *indexer.Controller
	search     *search.Service
	repo       *repository.Repository
}

// Config holds server configuration.
type Config struct {
	// Host to bind to (default: localhost)
	Host string
	// Port to bind to (0 for dynamic allocation)
	Port int
	// ReadTimeout for HTTP server
	ReadTimeout time.Duration
	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
	// EnableCORS allows any origin, for a local desktop/browser frontend
	EnableCORS bool
}

func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         0,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the progress websocket is long-lived
		EnableCORS:   true,
	}
}

// NewServer builds the router and binds a listener but does not start
// serving; call Start for that.
func NewServer(config *Config, controller *indexer.Controller, searchSvc *search.Service, repo *repository.Repository, logger zerolog.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	logger.Debug().Str("host", config.Host).Int("port", port).Msg("api server listening")

	s := &Server{
		listener:   listener,
		port:       port,
		logger:     logger,
		controller: controller,
		search:     searchSvc,
		repo:       repo,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggerMiddleware(logger))
	if config.EnableCORS {
		r.Use(corsMiddleware())
	}

	r.Get("/health", healthHandler)

	r.Route("/index", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/stop", s.handleStop)
		r.Post("/reset", s.handleReset)
		r.Get("/status", s.handleStatus)
		r.Get("/progress", s.handleProgress)
	})

	r.Get("/search", s.handleSearch)

	r.Route("/bookmarks", func(r chi.Router) {
		r.Post("/toggle", s.handleBookmarkToggle)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Post("/add", s.handleTagAdd)
		r.Post("/remove", s.handleTagRemove)
	})

	s.router = r
	s.server = &http.Server{
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s, nil
}

// GetPort returns the port the server is listening on.
func (s *Server) GetPort() int {
	return s.port
}

// Start begins serving requests.
func (s *Server) Start() error {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.logger.Debug().Msg("shutting down api server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

var logBlacklist = []string{"/index/progress"}

func loggerMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			for _, s := range logBlacklist {
				if strings.HasSuffix(r.URL.Path, s) {
					return
				}
			}

			logger.Trace().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("http request")
		})
	}
}

func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

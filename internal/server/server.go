// Package server exposes the import pipeline over HTTP: upload a tracker
// module, poll the conversion job, download the canonical song as JSON.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/spotUP/DEViLBOX-sub001/internal/cache"
	"github.com/spotUP/DEViLBOX-sub001/internal/format"
	"github.com/spotUP/DEViLBOX-sub001/internal/format/all"
)

// Config holds server configuration.
type Config struct {
	Port    int
	NoCache bool
}

// Server is the HTTP server.
type Server struct {
	config   Config
	router   *chi.Mux
	logger   *slog.Logger
	registry *format.Registry
	jobs     *JobManager
}

// New creates a new server.
func New(cfg Config) (*Server, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	registry := all.NewRegistry(format.WithLogger(logger))

	var songCache *cache.SongCache
	if !cfg.NoCache {
		var err error
		songCache, err = cache.NewSongCache()
		if err != nil {
			logger.Warn("cache unavailable, converting without it", "error", err)
			songCache = nil
		}
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		registry: registry,
		jobs:     NewJobManager(registry, songCache, logger),
	}

	s.setupRoutes()
	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/formats", s.handleFormats)

	r.Post("/identify", s.handleIdentify)
	r.Post("/convert", s.handleConvert)
	r.Get("/jobs/{id}", s.handleJob)
	r.Get("/jobs/{id}/song", s.handleSong)
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		s.logger.Info("shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	s.logger.Info("server starting", slog.Int("port", s.config.Port))

	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}

	<-done
	return nil
}

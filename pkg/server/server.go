// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audio-extract-go/pkg/config"
	"audio-extract-go/pkg/logging"
	"audio-extract-go/pkg/middleware"
)

const (
	shutdownTimeout = 30 * time.Second
	// writeMargin leaves room to write the timeout envelope after an
	// extraction hits its deadline.
	writeMargin = 30 * time.Second
)

// Server is the main HTTP server.
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *logging.Logger
	router     *http.ServeMux
}

// New creates a new server with the given configuration.
func New(cfg *config.Config, log *logging.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("server"),
		router: http.NewServeMux(),
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.RequestTimeout + writeMargin,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Router returns the server's router for registering handlers.
func (s *Server) Router() *http.ServeMux {
	return s.router
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return middleware.Chain(
		s.router,
		middleware.Recovery(s.log),
		middleware.RequestID,
		middleware.Logging(s.log),
		middleware.Tracing,
		middleware.CORS,
	)
}

// Start starts the HTTP server and blocks until SIGINT/SIGTERM or a call to
// Shutdown stops it.
func (s *Server) Start() error {
	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)
		if _, ok := <-quit; !ok {
			return
		}
		s.log.Info("server shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
		}
	}()

	s.log.Info("server starting",
		"addr", s.httpServer.Addr,
		"workers", s.cfg.Workers,
		"timeout", s.cfg.RequestTimeout,
	)

	err := s.httpServer.ListenAndServe()

	// Release the signal goroutine; it may already be draining connections.
	signal.Stop(quit)
	close(quit)
	<-done

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Package server runs the HTTP listener behind the public feeds, the admin
// API and /metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eventradar/radar/internal/config"
)

const (
	maxHeaderTimeout = 10 * time.Second
	idleTimeout      = 2 * time.Minute
)

// Server owns the listener. Routes come from the handler the app package
// builds; admin runs lift their own write deadline.
type Server struct {
	cfg    config.ServerConfig
	logger *slog.Logger
	http   *http.Server

	mu sync.Mutex
	ln net.Listener
}

// New builds a server for handler. Nothing is bound until Listen or Start.
func New(cfg config.ServerConfig, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: headerTimeout(cfg.ReadTimeout),
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		http:   srv,
	}
}

// headerTimeout keeps slow header writers off the public feeds even when
// the read timeout is disabled.
func headerTimeout(read time.Duration) time.Duration {
	if read <= 0 || read > maxHeaderTimeout {
		return maxHeaderTimeout
	}
	return read
}

// Listen binds the configured port so bind failures surface before the
// scheduler starts. Start calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address once listening, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.http.Addr
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	s.logger.Info("serving feeds and admin api",
		"addr", ln.Addr().String(),
		"write_timeout", s.cfg.WriteTimeout)
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", s.cfg.ShutdownTimeout)
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

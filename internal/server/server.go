// Package server owns the HTTP server lifecycle.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/clarion-chat/clarion/internal/infra/config"
)

// Server wraps the HTTP server and the audit database handle so both are
// torn down together on shutdown.
type Server struct {
	http *http.Server
	db   *sql.DB
	log  *zap.Logger
}

// New creates the HTTP server around an already wired router.
func New(cfg config.ServerConfig, handler http.Handler, db *sql.DB, log *zap.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout.Std(),
			WriteTimeout: cfg.WriteTimeout.Std(),
			IdleTimeout:  cfg.IdleTimeout.Std(),
		},
		db:  db,
		log: log,
	}
}

// Start serves until the listener fails or Shutdown is called.
// http.ErrServerClosed is translated to nil.
func (s *Server) Start() error {
	s.log.Info("starting http server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("database close: %w", err)
		}
	}
	s.log.Info("server shutdown complete")
	return nil
}

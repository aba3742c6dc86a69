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

	"github.com/gorilla/mux"

	"github.com/boardsync/boardsync/pkg/httpapi"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.store == nil {
		return fmt.Errorf("server: missing store dependency")
	}
	defer func() { _ = s.store.Close() }()

	// Load board template from YAML config if provided
	if s.cfg.BoardFile != "" {
		template, err := LoadBoardTemplate(s.cfg.BoardFile)
		if err != nil {
			slog.Error("failed to load board template", "err", err)
		} else {
			s.registry.SetTemplate(template)
			slog.Info("loaded board template", "file", s.cfg.BoardFile, "elements", len(template))
		}
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleWS)
	httpapi.New(s.store).Register(r)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("BoardSync server running", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Start Prometheus metrics HTTP endpoint
	s.StartMetricsHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.Shutdown()
		return fmt.Errorf("server: listen: %w", err)
	case <-sigCh:
	}

	slog.Info("shutting down...")
	s.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// Shutdown gracefully stops the server. WebSocket connections are hijacked
// from the HTTP server, so they are closed here to unblock their readers
// rather than left to http.Server.Shutdown's deadline.
func (s *Server) Shutdown() {
	s.cancel()
	s.closeConns()
}

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartMetricsHTTP starts a lightweight HTTP server that exposes /metrics
// in Prometheus text exposition format. It runs in the background and
// shuts down when the server context is cancelled.
//
// Bind address is :8081 by default, configurable via Config.MetricsAddr.
func (s *Server) StartMetricsHTTP() {
	addr := s.cfg.MetricsAddr
	if addr == "" {
		return // metrics endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("metrics HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("boardsync_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("boardsync_connections_active", "Current active WebSocket connections.", "gauge",
		m.ActiveConnections.Load())
	write("boardsync_connections_total", "Lifetime WebSocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("boardsync_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("boardsync_sessions_active", "Current active sessions.", "gauge",
		int64(s.registry.Count()))
	write("boardsync_sessions_created_total", "Sessions created.", "counter",
		m.SessionsCreated.Load())
	write("boardsync_sessions_removed_total", "Sessions removed after the last user left.", "counter",
		m.SessionsRemoved.Load())

	write("boardsync_elements_created_total", "Elements created.", "counter",
		m.ElementsCreated.Load())
	write("boardsync_elements_deleted_total", "Elements deleted.", "counter",
		m.ElementsDeleted.Load())
	write("boardsync_grabs_denied_total", "Grab attempts rejected by a foreign lock.", "counter",
		m.GrabsDenied.Load())

	write("boardsync_undo_total", "Undo operations applied.", "counter",
		m.UndoCount.Load())
	write("boardsync_redo_total", "Redo operations applied.", "counter",
		m.RedoCount.Load())
	write("boardsync_undo_redo_blocked_total", "Undo/redo attempts blocked by a foreign lock.", "counter",
		m.UndoRedoBlocked.Load())

	write("boardsync_identity_upgrades_total", "Anonymous to authenticated transitions.", "counter",
		m.IdentityUpgrades.Load())
	write("boardsync_identity_downgrades_total", "Authenticated to anonymous transitions.", "counter",
		m.IdentityDowngrades.Load())

	write("boardsync_chat_messages_total", "Total chat messages relayed.", "counter",
		m.ChatMessagesSent.Load())
	write("boardsync_kicks_total", "Users kicked.", "counter",
		m.KickCount.Load())
}

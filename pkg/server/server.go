// Package server implements the BoardSync collaboration server.
package server

import (
	"context"
	"sync"

	"github.com/boardsync/boardsync/pkg/model"
	"github.com/boardsync/boardsync/pkg/session"
	"github.com/boardsync/boardsync/pkg/store"
)

// Config holds server configuration.
type Config struct {
	Addr        string // HTTP bind address for /ws and the REST API (e.g. ":8080")
	MetricsAddr string // HTTP bind address for /metrics endpoint (empty = disabled)
	DBPath      string // SQLite database path
	BoardFile   string // YAML file defining the board template for new sessions
	DataDir     string // directory for the database and other data
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store and will Close() it on shutdown.
type Dependencies struct {
	Store store.DataStore
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:        ":8080",
		MetricsAddr: ":8081",
		DBPath:      "boardsync.db",
		DataDir:     ".",
	}
}

// Server is the main BoardSync server.
type Server struct {
	cfg      Config
	registry *session.Registry
	metrics  *Metrics
	store    store.DataStore
	ctx      context.Context
	cancel   context.CancelFunc

	// Live WebSocket connections. http.Server.Shutdown does not reach
	// hijacked connections, so shutdown closes these directly to unblock
	// their reader goroutines.
	connMu sync.Mutex
	conns  map[model.Conn]struct{}
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: session.NewRegistry(nil),
		metrics:  NewMetrics(),
		store:    deps.Store,
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[model.Conn]struct{}),
	}
}

func (s *Server) trackConn(c model.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) untrackConn(c model.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, c)
}

// closeConns closes every tracked connection, kicking their readers out of
// blocking reads.
func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

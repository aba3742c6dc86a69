package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime WebSocket connections accepted
	ActiveConnections atomic.Int64 // current active WebSocket connections
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Session counters
	SessionsCreated atomic.Int64 // sessions created during this run
	SessionsRemoved atomic.Int64 // sessions removed after the last user left

	// Element counters
	ElementsCreated atomic.Int64 // elements created
	ElementsDeleted atomic.Int64 // elements deleted
	GrabsDenied     atomic.Int64 // grab attempts rejected by a foreign lock

	// History counters
	UndoCount       atomic.Int64 // undo operations applied
	RedoCount       atomic.Int64 // redo operations applied
	UndoRedoBlocked atomic.Int64 // undo/redo attempts blocked by a foreign lock

	// Identity counters
	IdentityUpgrades   atomic.Int64 // anonymous -> authenticated transitions
	IdentityDowngrades atomic.Int64 // authenticated -> anonymous transitions

	// Chat and admin counters
	ChatMessagesSent atomic.Int64 // total chat messages relayed
	KickCount        atomic.Int64 // users kicked
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	SessionsCreated int64 `json:"sessions_created"`
	SessionsRemoved int64 `json:"sessions_removed"`

	ElementsCreated int64 `json:"elements_created"`
	ElementsDeleted int64 `json:"elements_deleted"`
	GrabsDenied     int64 `json:"grabs_denied"`

	UndoCount       int64 `json:"undo_count"`
	RedoCount       int64 `json:"redo_count"`
	UndoRedoBlocked int64 `json:"undo_redo_blocked"`

	IdentityUpgrades   int64 `json:"identity_upgrades"`
	IdentityDowngrades int64 `json:"identity_downgrades"`

	ChatMessagesSent int64 `json:"chat_messages_sent"`
	KickCount        int64 `json:"kick_count"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:             uptime.Truncate(time.Second).String(),
		UptimeSeconds:      int64(uptime.Seconds()),
		ActiveConnections:  m.ActiveConnections.Load(),
		TotalConnections:   m.TotalConnections.Load(),
		TotalDisconnects:   m.TotalDisconnects.Load(),
		SessionsCreated:    m.SessionsCreated.Load(),
		SessionsRemoved:    m.SessionsRemoved.Load(),
		ElementsCreated:    m.ElementsCreated.Load(),
		ElementsDeleted:    m.ElementsDeleted.Load(),
		GrabsDenied:        m.GrabsDenied.Load(),
		UndoCount:          m.UndoCount.Load(),
		RedoCount:          m.RedoCount.Load(),
		UndoRedoBlocked:    m.UndoRedoBlocked.Load(),
		IdentityUpgrades:   m.IdentityUpgrades.Load(),
		IdentityDowngrades: m.IdentityDowngrades.Load(),
		ChatMessagesSent:   m.ChatMessagesSent.Load(),
		KickCount:          m.KickCount.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"sessions_created", s.SessionsCreated,
		"elements_created", s.ElementsCreated,
		"undo", s.UndoCount,
		"redo", s.RedoCount,
		"chat_msgs", s.ChatMessagesSent,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}

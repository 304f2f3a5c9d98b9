package responder

import (
	"sync/atomic"
	"time"
)

// ConnectionEvent describes one handled connection.
type ConnectionEvent struct {
	TraceID    string    `json:"trace_id"`
	ClientIP   string    `json:"client_ip"`
	Received   int       `json:"received"`
	Payload    string    `json:"payload"` // trimmed, for display only
	Replied    int       `json:"replied"`
	EarlyClose bool      `json:"early_close"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Observer is notified after each connection has been handled and closed.
// It runs on the accept loop, so implementations must not block.
type Observer interface {
	OnConnection(ev *ConnectionEvent)
}

// Stats 汇总 responder 生命周期内的计数, 可被监控面板并发读取。
type Stats struct {
	startedAt   time.Time
	accepted    atomic.Uint64
	replied     atomic.Uint64
	earlyClosed atomic.Uint64
	failed      atomic.Uint64
	bytesIn     atomic.Uint64
	bytesOut    atomic.Uint64
	lastPeer    atomic.Value // string
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	StartedAt   time.Time `json:"started_at"`
	Accepted    uint64    `json:"accepted"`
	Replied     uint64    `json:"replied"`
	EarlyClosed uint64    `json:"early_closed"`
	Failed      uint64    `json:"failed"`
	BytesIn     uint64    `json:"bytes_in"`
	BytesOut    uint64    `json:"bytes_out"`
	LastPeer    string    `json:"last_peer,omitempty"`
}

func newStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// record updates the per-connection counters. Byte totals are fed live by
// the CountedConn wrapping each connection.
func (s *Stats) record(ev *ConnectionEvent, replyLen int) {
	s.lastPeer.Store(ev.ClientIP)
	if ev.EarlyClose {
		s.earlyClosed.Add(1)
	}
	if ev.Error != "" {
		s.failed.Add(1)
	} else if ev.Replied == replyLen {
		s.replied.Add(1)
	}
}

// Snapshot returns the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		StartedAt:   s.startedAt,
		Accepted:    s.accepted.Load(),
		Replied:     s.replied.Load(),
		EarlyClosed: s.earlyClosed.Load(),
		Failed:      s.failed.Load(),
		BytesIn:     s.bytesIn.Load(),
		BytesOut:    s.bytesOut.Load(),
	}
	if peer, ok := s.lastPeer.Load().(string); ok {
		snap.LastPeer = peer
	}
	return snap
}

package session

import (
	"time"

	"github.com/npezzotti/go-chatclient/internal/protocol"
)

const (
	DefaultHeartbeatInterval = 60 * time.Second
	DefaultHeartbeatGrace    = 70 * time.Second
)

// Sender delivers an encoded frame. It reports false when the frame was
// dropped.
type Sender interface {
	Send(frame []byte) bool
}

var pongFrame = mustEncode(protocol.TypePong, nil)

// Monitor tracks server heartbeats for one connection. It answers every
// ping with a pong and, when checked, declares the connection stale once
// more than grace has elapsed since the last heartbeat. A stale verdict is
// given once; the monitor stays inactive until Start is called again for a
// fresh connection.
type Monitor struct {
	interval      time.Duration
	grace         time.Duration
	now           func() time.Time
	lastHeartbeat time.Time
	active        bool
}

func NewMonitor(interval, grace time.Duration, now func() time.Time) *Monitor {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if grace <= 0 {
		grace = DefaultHeartbeatGrace
	}
	if now == nil {
		now = time.Now
	}
	return &Monitor{interval: interval, grace: grace, now: now}
}

func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start arms the monitor at connection-open time.
func (m *Monitor) Start() {
	m.lastHeartbeat = m.now()
	m.active = true
}

// Stop disarms the monitor without a verdict.
func (m *Monitor) Stop() {
	m.active = false
}

func (m *Monitor) Active() bool {
	return m.active
}

func (m *Monitor) LastHeartbeat() time.Time {
	return m.lastHeartbeat
}

// Heartbeat records a ping and replies with a pong before returning.
func (m *Monitor) Heartbeat(s Sender) bool {
	m.lastHeartbeat = m.now()
	return s.Send(pongFrame)
}

// Check reports true exactly once per armed period, when the connection has
// been silent for longer than grace.
func (m *Monitor) Check() bool {
	if !m.active {
		return false
	}
	if m.now().Sub(m.lastHeartbeat) <= m.grace {
		return false
	}
	m.active = false
	return true
}

func mustEncode(typ string, payload any) []byte {
	frame, err := protocol.Encode(typ, payload)
	if err != nil {
		panic(err)
	}
	return frame
}

// Package metrics counts socket activity for a streamsock run.
//
// A *Collector is a socket.Observer: hand it to socket.Options and
// every Socket built from those options reports into it.  Probe mode
// shares one Collector across goroutines, so all methods are safe for
// concurrent use.  A nil *Collector ignores every call.
package metrics

import (
	"encoding/json"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	ncerr "streamsock/internal/errors"
	"streamsock/socket"
)

// Failure labels for errors that did not come from a Socket.
const (
	OpTunnel = "tunnel"
	OpOther  = "other"
)

// Collector holds the counters for one run.
type Collector struct {
	active   atomic.Int64
	opened   atomic.Int64
	bytesIn  atomic.Int64
	bytesOut atomic.Int64
	upgrades atomic.Int64

	mu         sync.Mutex
	started    time.Time
	failures   map[string]int64 // by operation
	lastErr    error
	lastErrAt  time.Time
	lastHealth time.Time
}

var _ socket.Observer = (*Collector)(nil)

// New returns a Collector whose uptime starts now.
func New() *Collector {
	return &Collector{started: time.Now(), failures: make(map[string]int64)}
}

// ── socket.Observer ──────────────────────────────────────────────────

func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.active.Add(1)
	c.opened.Add(1)
}

func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.active.Add(-1)
}

func (c *Collector) BytesSent(n int64) {
	if c != nil {
		c.bytesOut.Add(n)
	}
}

func (c *Collector) BytesReceived(n int64) {
	if c != nil {
		c.bytesIn.Add(n)
	}
}

func (c *Collector) CryptoEnabled() {
	if c != nil {
		c.upgrades.Add(1)
	}
}

// RecordError counts err under the operation that produced it: the Op
// of a *socket.Error, OpTunnel for gateway failures, OpOther otherwise.
func (c *Collector) RecordError(err error) {
	if c == nil || err == nil {
		return
	}
	op := failureOp(err)

	c.mu.Lock()
	c.failures[op]++
	c.lastErr = err
	c.lastErrAt = time.Now()
	c.mu.Unlock()
}

func failureOp(err error) string {
	var se *socket.Error
	if errors.As(err, &se) {
		return se.Op
	}
	var sshErr *ncerr.SSHError
	if errors.As(err, &sshErr) ||
		errors.Is(err, ncerr.ErrNotConnected) ||
		errors.Is(err, ncerr.ErrTunnelClosed) {
		return OpTunnel
	}
	return OpOther
}

// RecordHealthCheck marks a successful SSH tunnel liveness check.
func (c *Collector) RecordHealthCheck() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.lastHealth = time.Now()
	c.mu.Unlock()
}

// ── readers ──────────────────────────────────────────────────────────

func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}

func (c *Collector) TotalConnections() int64 {
	if c == nil {
		return 0
	}
	return c.opened.Load()
}

func (c *Collector) TotalBytesIn() int64 {
	if c == nil {
		return 0
	}
	return c.bytesIn.Load()
}

func (c *Collector) TotalBytesOut() int64 {
	if c == nil {
		return 0
	}
	return c.bytesOut.Load()
}

func (c *Collector) CryptoUpgrades() int64 {
	if c == nil {
		return 0
	}
	return c.upgrades.Load()
}

// Failures returns a copy of the error counts keyed by operation.
func (c *Collector) Failures() map[string]int64 {
	if c == nil {
		return map[string]int64{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.failures)
}

// ErrorCount is the sum of Failures.
func (c *Collector) ErrorCount() int64 {
	var n int64
	for _, v := range c.Failures() {
		n += v
	}
	return n
}

func (c *Collector) uptime() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.started)
}

// ── snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time copy of a Collector, shaped for JSON.
type Snapshot struct {
	Uptime            string           `json:"uptime"`
	ConnectionsActive int64            `json:"connections_active"`
	ConnectionsTotal  int64            `json:"connections_total"`
	BytesIn           int64            `json:"bytes_in"`
	BytesOut          int64            `json:"bytes_out"`
	CryptoUpgrades    int64            `json:"crypto_upgrades"`
	Failures          map[string]int64 `json:"failures,omitempty"`
	LastHealthCheck   string           `json:"last_health_check,omitempty"`
	LastError         string           `json:"last_error,omitempty"`
	LastErrorAt       string           `json:"last_error_at,omitempty"`
}

func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Uptime:            c.uptime().Truncate(time.Second).String(),
		ConnectionsActive: c.ActiveConnections(),
		ConnectionsTotal:  c.TotalConnections(),
		BytesIn:           c.TotalBytesIn(),
		BytesOut:          c.TotalBytesOut(),
		CryptoUpgrades:    c.CryptoUpgrades(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failures) > 0 {
		s.Failures = maps.Clone(c.failures)
	}
	if !c.lastHealth.IsZero() {
		s.LastHealthCheck = c.lastHealth.Format(time.RFC3339)
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
		s.LastErrorAt = c.lastErrAt.Format(time.RFC3339)
	}
	return s
}

// JSON renders the Snapshot, indented.
func (c *Collector) JSON() string {
	data, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(data)
}

package tunnel

import (
	"context"
	"sync"
	"time"

	ncerr "streamsock/internal/errors"
	"streamsock/internal/metrics"
	"streamsock/util"
)

// DefaultHealthInterval is how often a Manager polls its tunnel.
const DefaultHealthInterval = 10 * time.Second

// Manager owns an SSHTunnel for the lifetime of a run: it connects on
// Start, records periodic health checks and tears down on Stop.
type Manager struct {
	tunnel   *SSHTunnel
	logger   *util.Logger
	metrics  *metrics.Collector
	interval time.Duration

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewManager returns a Manager for the given tunnel.  m may be nil.
func NewManager(t *SSHTunnel, logger *util.Logger, m *metrics.Collector) *Manager {
	return &Manager{
		tunnel:   t,
		logger:   logger,
		metrics:  m,
		interval: DefaultHealthInterval,
	}
}

// SetInterval overrides the health-check period.  It must be called
// before Start.
func (m *Manager) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Start connects the tunnel and begins background health checks.
// Calling Start on a running Manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if err := m.tunnel.Connect(ctx); err != nil {
		m.metrics.RecordError(err)
		return err
	}
	m.metrics.RecordHealthCheck()

	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.healthLoop(m.stop, m.done)
	return nil
}

// Running reports whether Start has succeeded and Stop not yet run.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Tunnel returns the managed tunnel.
func (m *Manager) Tunnel() *SSHTunnel { return m.tunnel }

// Stop ends health monitoring and closes the tunnel.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.started {
		close(m.stop)
		<-m.done
		m.started = false
	}
	m.mu.Unlock()
	return m.tunnel.Close()
}

func (m *Manager) healthLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	tick := time.NewTicker(m.interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			if !m.tunnel.IsAlive() {
				m.logger.Error("SSH tunnel connection lost")
				m.metrics.RecordError(ncerr.ErrNotConnected)
				return
			}
			m.metrics.RecordHealthCheck()
		}
	}
}

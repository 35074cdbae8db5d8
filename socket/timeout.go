package socket

import (
	"net"
	"time"
)

// timeoutPolicy applies a deadline to the live handle around exactly
// one operation.  The deadline is connection-wide, so every apply must
// be paired with the returned restore.
type timeoutPolicy struct {
	current time.Duration // 0 while no deadline is set
}

// apply sets a deadline d from now on conn and returns the function
// that clears it again.  d <= 0 leaves the handle without a deadline.
func (p *timeoutPolicy) apply(conn net.Conn, d time.Duration) (restore func()) {
	if d <= 0 {
		return func() {}
	}
	conn.SetDeadline(time.Now().Add(d)) //nolint:errcheck // a failing handle fails the I/O that follows
	p.current = d
	return func() { p.reset(conn) }
}

// reset returns the handle to the no-deadline state.
func (p *timeoutPolicy) reset(conn net.Conn) {
	if p.current == 0 {
		return
	}
	p.current = 0
	if conn != nil {
		conn.SetDeadline(time.Time{}) //nolint:errcheck
	}
}

// Current returns the timeout in force, 0 when none.
func (p *timeoutPolicy) Current() time.Duration { return p.current }

// Package errors holds the error types the streamsock CLI, tunnel and
// transport layers add around socket.Error: which gateway failed,
// which local step of a dial failed, which config key is wrong.
package errors

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

var (
	ErrTunnelClosed    = errors.New("tunnel is closed")
	ErrNotConnected    = errors.New("not connected")
	ErrHostKeyMismatch = errors.New("host key mismatch")
)

// NetworkError is a failed local network step of a dial.
type NetworkError struct {
	Op   string // "dial", "resolve", "bind"
	Addr string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Wrap returns a NetworkError for op on addr.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{Op: op, Addr: addr, Err: err}
}

// SSHError is a gateway failure.
type SSHError struct {
	Op   string // "auth", "hostkey", "connect", "handshake", "dial"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// WrapSSH returns an SSHError for op against host:port.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// ConfigError names the offending flag and, when known, how to fix it.
type ConfigError struct {
	Field   string // flag name without dashes
	Value   any    // nil when missing
	Message string
	Hint    string
}

func (e *ConfigError) Error() string {
	msg := "config: --" + e.Field
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── retry classification ─────────────────────────────────────────────

// transientErrnos may clear up on their own.
var transientErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
	syscall.ETIMEDOUT,
}

// IsRetryable reports whether running the same command again could
// succeed.  streamsock itself never retries; this only drives a hint.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrHostKeyMismatch):
		return false
	case errors.Is(err, ErrNotConnected):
		return true
	}

	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

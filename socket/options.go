package socket

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Dialer opens the underlying byte stream for a Socket.  The
// streamsock transports (direct and SSH-tunnelled) satisfy it, as does
// *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Observer receives lifecycle and traffic notifications.  All methods
// are called synchronously from the goroutine using the Socket.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	BytesSent(n int64)
	BytesReceived(n int64)
	CryptoEnabled()
	RecordError(err error)
}

// Options is the transport configuration shared, read-only, by every
// Socket built from it.
type Options struct {
	// TLS is the base client configuration for secure targets and
	// EnableCrypto.  It is cloned before use, never mutated.
	TLS *tls.Config

	// Dialer opens the byte stream; nil means a plain net.Dialer.
	Dialer Dialer

	// Observer is optional.
	Observer Observer
}

// Default per-call settings.
const (
	DefaultIOTimeout  = 30 * time.Second
	DefaultReadLength = 1024
)

// IOOption adjusts a single Read, Write or EnableCrypto call.
type IOOption func(*ioSettings)

type ioSettings struct {
	timeout time.Duration
	length  int // -1: unset
}

func newIOSettings(opts []IOOption) ioSettings {
	s := ioSettings{timeout: DefaultIOTimeout, length: -1}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTimeout bounds the call.  Zero or negative disables the
// deadline and blocks until the transport returns.
func WithTimeout(d time.Duration) IOOption {
	return func(s *ioSettings) { s.timeout = d }
}

// WithLength limits a write to the first n bytes of data, or sets the
// maximum number of bytes a read returns.
func WithLength(n int) IOOption {
	return func(s *ioSettings) { s.length = n }
}

// nopObserver keeps call sites free of nil checks.
type nopObserver struct{}

func (nopObserver) ConnectionOpened()   {}
func (nopObserver) ConnectionClosed()   {}
func (nopObserver) BytesSent(int64)     {}
func (nopObserver) BytesReceived(int64) {}
func (nopObserver) CryptoEnabled()      {}
func (nopObserver) RecordError(error)   {}

// Package socket is a blocking stream-socket client.  A Socket owns at
// most one live connection to a fixed target; it can be opened, read,
// written, upgraded to TLS in place and closed, each call bounded by
// its own timeout.
//
// A Socket is not safe for concurrent use.  Use one Socket per logical
// stream and serialise access externally.
//
// Read and write failures are fatal: the connection is closed before
// the error is returned, so a broken Socket never stays usable.  A
// failed TLS upgrade leaves the connection open.
package socket

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"streamsock/util"
)

// Socket is a client connection to a single target.
type Socket struct {
	target  string
	opts    *Options
	conn    net.Conn // nil while closed
	timeout timeoutPolicy
}

// New returns a closed Socket for target.  No I/O is performed; target
// is parsed on Open.  A nil opts is equivalent to &Options{}.
func New(target string, opts *Options) *Socket {
	if opts == nil {
		opts = &Options{}
	}
	return &Socket{target: target, opts: opts}
}

// Target returns the target string the Socket was built with.
func (s *Socket) Target() string { return s.target }

// IsOpen reports whether the Socket holds a live connection.
func (s *Socket) IsOpen() bool { return s.conn != nil }

// Timeout returns the deadline duration currently applied to the
// handle; it is non-zero only while an operation is in flight.
func (s *Socket) Timeout() time.Duration { return s.timeout.Current() }

// RemoteAddr returns the peer address, or nil while closed.
func (s *Socket) RemoteAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// ConnectionState returns the TLS state when the connection is
// secure.
func (s *Socket) ConnectionState() (tls.ConnectionState, bool) {
	tc, ok := s.conn.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tc.ConnectionState(), true
}

// ── Lifecycle ────────────────────────────────────────────────────────

// Open connects to the target, waiting at most timeout (0 = no bound).
func (s *Socket) Open(timeout time.Duration) error {
	return s.OpenContext(context.Background(), timeout)
}

// OpenContext is Open with a caller-supplied context for the dial and
// any TLS handshake a secure target requires.
func (s *Socket) OpenContext(ctx context.Context, timeout time.Duration) error {
	if s.IsOpen() {
		return newError("open", s.target, ErrAlreadyOpen, nil)
	}

	ep, err := ParseTarget(s.target)
	if err != nil {
		return s.record(newError("open", s.target, ErrConnectFailed, err))
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := s.dialer().DialContext(ctx, ep.Network, ep.Address)
	if err != nil {
		return s.record(newError("open", s.target, ErrConnectFailed, err))
	}

	if ep.Secure {
		tc := tls.Client(conn, ep.Method.clientConfig(s.opts.TLS, ep.Host()))
		if err := tc.HandshakeContext(ctx); err != nil {
			conn.Close() //nolint:errcheck
			return s.record(newError("open", s.target, ErrConnectFailed, err))
		}
		conn = tc
	}

	s.conn = conn
	s.observer().ConnectionOpened()
	return nil
}

// Close releases the connection.  Errors from the transport while
// releasing are not reported.
func (s *Socket) Close() error {
	if !s.IsOpen() {
		return newError("close", s.target, ErrAlreadyClosed, nil)
	}
	s.release()
	return nil
}

func (s *Socket) release() {
	s.conn.Close() //nolint:errcheck
	s.conn = nil
	s.timeout.current = 0
	s.observer().ConnectionClosed()
}

// ── I/O ──────────────────────────────────────────────────────────────

// Write sends data, or its first n bytes with WithLength(n), within
// the call's timeout (DefaultIOTimeout unless WithTimeout is given).
// A zero-length write succeeds without touching the transport.
func (s *Socket) Write(data []byte, opts ...IOOption) (int, error) {
	if !s.IsOpen() {
		return 0, newError("write", s.target, ErrNotOpen, nil)
	}

	cfg := newIOSettings(opts)
	if cfg.length >= 0 && cfg.length < len(data) {
		data = data[:cfg.length]
	}
	if len(data) == 0 {
		return 0, nil
	}

	restore := s.timeout.apply(s.conn, cfg.timeout)
	defer restore()

	n, err := s.conn.Write(data)
	if n > 0 {
		s.observer().BytesSent(int64(n))
	}
	if err != nil {
		return n, s.fail("write", ErrWriteFailed, err)
	}
	return n, nil
}

// Read performs a single read of at most DefaultReadLength bytes (or
// WithLength(n)).  It may return fewer bytes than requested.  A peer
// that has closed the stream is a read failure.
func (s *Socket) Read(opts ...IOOption) ([]byte, error) {
	if !s.IsOpen() {
		return nil, newError("read", s.target, ErrNotOpen, nil)
	}

	cfg := newIOSettings(opts)
	length := cfg.length
	if length < 0 {
		length = DefaultReadLength
	}
	if length == 0 {
		return []byte{}, nil
	}

	buf, release := util.ReadBuffer(length)
	defer release()

	restore := s.timeout.apply(s.conn, cfg.timeout)
	defer restore()

	n, err := s.conn.Read(buf)
	if n == 0 && err != nil {
		return nil, s.fail("read", ErrReadFailed, err)
	}
	// With n > 0 any error resurfaces on the next call.

	out := make([]byte, n)
	copy(out, buf[:n])
	s.observer().BytesReceived(int64(n))
	return out, nil
}

// EnableCrypto upgrades the open stream to TLS in place, acting as the
// client.  The handshake is bounded like any other call.  On failure
// the connection stays open.
func (s *Socket) EnableCrypto(method CryptoMethod, opts ...IOOption) error {
	if !s.IsOpen() {
		return newError("crypto", s.target, ErrNotOpen, nil)
	}

	var host string
	if ep, err := ParseTarget(s.target); err == nil {
		host = ep.Host()
	}

	cfg := newIOSettings(opts)
	restore := s.timeout.apply(s.conn, cfg.timeout)
	defer restore()

	tc := tls.Client(s.conn, method.clientConfig(s.opts.TLS, host))
	if err := tc.Handshake(); err != nil {
		return s.record(newError("crypto", s.target, ErrUpgradeFailed, err))
	}

	s.conn = tc
	s.observer().CryptoEnabled()
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────

// fail closes the connection, then reports the error.
func (s *Socket) fail(op string, kind, cause error) error {
	s.release()
	return s.record(newError(op, s.target, kind, cause))
}

func (s *Socket) record(e *Error) error {
	s.observer().RecordError(e)
	return e
}

func (s *Socket) dialer() Dialer {
	if s.opts.Dialer != nil {
		return s.opts.Dialer
	}
	return &net.Dialer{}
}

func (s *Socket) observer() Observer {
	if s.opts.Observer != nil {
		return s.opts.Observer
	}
	return nopObserver{}
}

// Package session binds an open socket to the local I/O endpoints and
// per-call settings of one streamsock run.
//
// Capabilities work on a Session rather than on the socket directly,
// so they never need to know whether input comes from os.Stdin or a
// test buffer.
package session

import (
	"crypto/tls"
	"io"
	"time"

	"github.com/google/uuid"

	"streamsock/socket"
	"streamsock/util"
)

// Session is the runtime context for a single connection.
type Session struct {
	ID     uuid.UUID
	Socket *socket.Socket
	Stdin  io.Reader
	Stdout io.Writer
	Logger *util.Logger

	// IOTimeout bounds each read, write and upgrade (0 = unbounded).
	IOTimeout time.Duration
	// ReadLength caps the bytes returned by one read.
	ReadLength int
}

// New creates a Session with the socket defaults.  The logger is
// tagged with the session's short ID.
func New(sock *socket.Socket, stdin io.Reader, stdout io.Writer, logger *util.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:         id,
		Socket:     sock,
		Stdin:      stdin,
		Stdout:     stdout,
		Logger:     logger.With("[" + id.String()[:8] + "] "),
		IOTimeout:  socket.DefaultIOTimeout,
		ReadLength: socket.DefaultReadLength,
	}
}

func (s *Session) ioOptions() []socket.IOOption {
	return []socket.IOOption{socket.WithTimeout(s.IOTimeout)}
}

// Send writes msg to the socket.
func (s *Session) Send(msg []byte) error {
	n, err := s.Socket.Write(msg, s.ioOptions()...)
	if err != nil {
		return err
	}
	s.Logger.Debug("sent %d bytes", n)
	return nil
}

// Receive performs one read of at most ReadLength bytes.
func (s *Session) Receive() ([]byte, error) {
	data, err := s.Socket.Read(append(s.ioOptions(), socket.WithLength(s.ReadLength))...)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("received %d bytes", len(data))
	return data, nil
}

// RoundTrip sends msg and returns the single read that follows.
func (s *Session) RoundTrip(msg []byte) ([]byte, error) {
	if err := s.Send(msg); err != nil {
		return nil, err
	}
	return s.Receive()
}

// Print copies data to Stdout.
func (s *Session) Print(data []byte) error {
	_, err := s.Stdout.Write(data)
	return err
}

// Upgrade enables TLS on the open socket.
func (s *Session) Upgrade(method socket.CryptoMethod) error {
	if err := s.Socket.EnableCrypto(method, s.ioOptions()...); err != nil {
		return err
	}
	if st, ok := s.Socket.ConnectionState(); ok {
		s.Logger.Verbose("TLS enabled (%s)", tls.VersionName(st.Version))
	}
	return nil
}

// Close closes the socket if it is still open.  A socket already
// closed by a failed read or write is not an error here.
func (s *Session) Close() error {
	if !s.Socket.IsOpen() {
		return nil
	}
	return s.Socket.Close()
}

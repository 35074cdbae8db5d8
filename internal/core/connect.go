package core

import (
	"context"
	"io"
	"os"
	"time"

	"streamsock/internal/capability"
	"streamsock/internal/session"
	"streamsock/internal/transport"
	"streamsock/socket"
	"streamsock/util"
)

// ConnectMode opens one socket, runs the scripted opening of the
// conversation, optionally upgrades to TLS, and hands the session to a
// capability.  It is the default client mode.
type ConnectMode struct {
	Socket     *socket.Socket
	Dialer     transport.Dialer
	Capability capability.Capability

	OpenTimeout time.Duration
	IOTimeout   time.Duration
	ReadLength  int

	// Banner reads and prints one chunk before anything is sent.
	Banner bool
	// Preamble lines are each sent with Terminator and answered by
	// one read.
	Preamble   []string
	Terminator string

	// StartTLS upgrades the socket after the preamble.
	StartTLS bool
	Method   socket.CryptoMethod

	Logger *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run opens the socket and drives the conversation.  The socket and
// the transport are closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	if m.Dialer != nil {
		defer m.Dialer.Close() //nolint:errcheck
	}

	m.Logger.Verbose("connecting to %s", m.Socket.Target())
	if err := m.Socket.OpenContext(ctx, m.OpenTimeout); err != nil {
		return err
	}

	sess := session.New(m.Socket, m.stdin(), m.stdout(), m.Logger)
	sess.IOTimeout = m.IOTimeout
	sess.ReadLength = m.ReadLength
	defer sess.Close() //nolint:errcheck

	sess.Logger.Verbose("connected to %s", m.Socket.RemoteAddr())
	if st, ok := m.Socket.ConnectionState(); ok {
		sess.Logger.Verbose("secure target (%s)", tlsVersion(st.Version))
	}

	if m.Banner {
		data, err := sess.Receive()
		if err != nil {
			return err
		}
		if err := sess.Print(data); err != nil {
			return err
		}
	}

	for _, line := range m.Preamble {
		reply, err := sess.RoundTrip([]byte(line + m.Terminator))
		if err != nil {
			return err
		}
		if err := sess.Print(reply); err != nil {
			return err
		}
	}

	if m.StartTLS {
		if err := sess.Upgrade(m.Method); err != nil {
			return err
		}
	}

	if m.Capability == nil {
		return nil
	}
	return m.Capability.Handle(ctx, sess)
}

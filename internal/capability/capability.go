// Package capability defines what happens over an established
// connection.  Each Capability drives one interaction pattern through
// a Session, which keeps capabilities testable and independent of how
// the socket was opened.
package capability

import (
	"context"
	"errors"
	"io"

	"streamsock/internal/session"
	"streamsock/socket"
)

// Capability runs one interaction over an open session.
type Capability interface {
	// Handle blocks until the interaction ends, the socket fails or
	// ctx is cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}

// peerDone reports whether err is the normal end of a stream: the peer
// closed its side or went quiet past the I/O timeout.
func peerDone(err error) bool {
	if !errors.Is(err, socket.ErrReadFailed) {
		return false
	}
	return errors.Is(err, io.EOF) || socket.IsTimeout(err)
}

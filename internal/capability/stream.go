package capability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"streamsock/internal/session"
)

// Stream copies stdin to the socket in chunks, then prints everything
// the peer sends until it closes the stream or stays silent for the
// session's I/O timeout.
type Stream struct {
	// ChunkSize bounds each write; 0 means the session's read length.
	ChunkSize int
}

// Handle runs the stream.  The socket is closed afterwards when the
// peer ended the stream.
func (s *Stream) Handle(ctx context.Context, sess *session.Session) error {
	size := s.ChunkSize
	if size <= 0 {
		size = sess.ReadLength
	}
	if size <= 0 {
		size = 1024
	}

	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := sess.Stdin.Read(buf)
		if n > 0 {
			if err := sess.Send(buf[:n]); err != nil {
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fmt.Errorf("reading input: %w", rerr)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := sess.Receive()
		if err != nil {
			if peerDone(err) {
				sess.Logger.Verbose("stream ended: %v", err)
				return nil
			}
			return err
		}
		if len(data) == 0 {
			return nil
		}
		if err := sess.Print(data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
}

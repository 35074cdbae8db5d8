package capability

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"streamsock/internal/session"
)

// Terminators appended to each outgoing line.
const (
	LF   = "\n"
	CRLF = "\r\n"
)

// Exchange sends stdin line by line and prints the single reply read
// after each one.  Blank lines are sent too.
type Exchange struct {
	// Terminator ends each line on the wire; empty means LF.
	Terminator string

	// Limiter paces outgoing lines.  nil sends as fast as replies come.
	Limiter *rate.Limiter

	// MaxLine is the longest accepted stdin line, terminator excluded;
	// 0 means DefaultMaxLine.
	MaxLine int
}

// DefaultMaxLine bounds a stdin line when Exchange.MaxLine is unset.
const DefaultMaxLine = 1 << 20

// NewRateLimiter returns a limiter allowing perSecond lines per second
// with a burst of one, or nil when perSecond is not positive.
func NewRateLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// Handle runs the exchange until stdin is exhausted.
func (e *Exchange) Handle(ctx context.Context, sess *session.Session) error {
	term := e.Terminator
	if term == "" {
		term = LF
	}

	maxLine := e.MaxLine
	if maxLine <= 0 {
		maxLine = DefaultMaxLine
	}
	sc := bufio.NewScanner(sess.Stdin)
	// bufio counts the line ending against the limit.
	sc.Buffer(make([]byte, 0, min(maxLine+2, 64*1024)), maxLine+2)
	for sc.Scan() {
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		reply, err := sess.RoundTrip([]byte(sc.Text() + term))
		if err != nil {
			return err
		}
		if err := sess.Print(reply); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("reading input: line longer than %d bytes (raise --max-line)", maxLine)
		}
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

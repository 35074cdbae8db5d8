package socket

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// ── Kinds ────────────────────────────────────────────────────────────
//
// Every failure returned by a Socket is an *Error whose Kind is one of
// these sentinels, so callers can branch with errors.Is.

var (
	ErrAlreadyOpen    = errors.New("socket already opened")
	ErrAlreadyClosed  = errors.New("socket is closed")
	ErrNotOpen        = errors.New("socket is not open")
	ErrConnectFailed  = errors.New("error opening socket")
	ErrWriteFailed    = errors.New("error while writing to socket")
	ErrReadFailed     = errors.New("error while reading from socket")
	ErrUpgradeFailed  = errors.New("error enabling crypto on socket")
	errUnknownScheme  = errors.New("unknown target scheme")
	errMissingAddress = errors.New("target has no address")
)

// Error describes a failed Socket operation.
type Error struct {
	Op     string // "open", "close", "write", "read", "crypto"
	Target string
	Kind   error // one of the Err* sentinels
	Err    error // transport cause, nil for state violations
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Target, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Timeout reports whether the cause was a deadline expiry.
func (e *Error) Timeout() bool {
	return isTimeout(e.Err)
}

func newError(op, target string, kind, cause error) *Error {
	return &Error{Op: op, Target: target, Kind: kind, Err: cause}
}

// IsTimeout reports whether err was caused by an expired timeout,
// either on dial or on a single read/write.
func IsTimeout(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Timeout()
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

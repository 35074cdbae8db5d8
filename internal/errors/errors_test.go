package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestNetworkError(t *testing.T) {
	err := Wrap("bind", ":8080", syscall.EADDRINUSE)
	if got, want := err.Error(), "bind :8080: address already in use"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Error("should unwrap to the errno")
	}
}

func TestSSHError(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapSSH("handshake", "bastion.example.com", 22, inner)
	if got, want := err.Error(), "ssh handshake bastion.example.com:22: connection refused"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("should unwrap to inner error")
	}

	wrapped := WrapSSH("handshake", "gw", 22, fmt.Errorf("%w for gw: changed", ErrHostKeyMismatch))
	if !errors.Is(wrapped, ErrHostKeyMismatch) {
		t.Error("sentinel lost through SSHError")
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "value and hint",
			err: ConfigError{
				Field:   "local-port",
				Value:   99999,
				Message: "must be at most 65535",
				Hint:    "use a port between 1 and 65535",
			},
			want: "config: --local-port=99999: must be at most 65535\n  hint: use a port between 1 and 65535",
		},
		{
			name: "missing value",
			err:  ConfigError{Field: "key-file", Message: "required with --cert-file"},
			want: "config: --key-file: required with --cert-file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"eof", io.EOF, false},
		{"refused", refused, true},
		{"refused wrapped", Wrap("dial", "10.0.0.1:22", refused), true},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"in use", Wrap("bind", ":1", syscall.EADDRINUSE), false},
		{"op timeout", &net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}, true},
		{"deadline", os.ErrDeadlineExceeded, true},
		{"ctx deadline", context.DeadlineExceeded, true},
		{"dns temporary", &net.DNSError{Err: "server misbehaving", IsTemporary: true}, true},
		{"dns not found", &net.DNSError{Err: "no such host", IsNotFound: true}, false},
		{"tunnel lost", WrapSSH("dial", "gw", 22, ErrNotConnected), true},
		{"host key", WrapSSH("handshake", "gw", 22, fmt.Errorf("%w: x", ErrHostKeyMismatch)), false},
		{"host key over timeout", errors.Join(ErrHostKeyMismatch, os.ErrDeadlineExceeded), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSentinels_Distinct(t *testing.T) {
	sentinels := []error{ErrTunnelClosed, ErrNotConnected, ErrHostKeyMismatch}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %d matches %d", i, j)
			}
		}
	}
}

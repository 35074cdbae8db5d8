package session

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"streamsock/socket"
	"streamsock/util"
)

// echoSocket opens a Socket against a loopback echo server.
func echoSocket(t *testing.T) *socket.Socket {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c) //nolint:errcheck
	}()

	s := socket.New("tcp://"+ln.Addr().String(), nil)
	if err := s.Open(2 * time.Second); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if s.IsOpen() {
			s.Close()
		}
	})
	return s
}

func testLogger(w io.Writer) *util.Logger {
	l := util.NewLogger(int(util.LogDebug))
	l.SetOutput(w)
	return l
}

func TestNew_Defaults(t *testing.T) {
	var logs bytes.Buffer
	sess := New(socket.New("tcp://127.0.0.1:1", nil), nil, nil, testLogger(&logs))

	if sess.IOTimeout != socket.DefaultIOTimeout {
		t.Errorf("IOTimeout = %v", sess.IOTimeout)
	}
	if sess.ReadLength != socket.DefaultReadLength {
		t.Errorf("ReadLength = %d", sess.ReadLength)
	}
	if sess.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("ID should be set")
	}

	other := New(socket.New("tcp://127.0.0.1:1", nil), nil, nil, testLogger(&logs))
	if sess.ID == other.ID {
		t.Error("session IDs should be unique")
	}

	sess.Logger.Info("hello")
	if !strings.Contains(logs.String(), sess.ID.String()[:8]) {
		t.Errorf("log line %q missing session tag", logs.String())
	}
}

func TestSession_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	sess := New(echoSocket(t), nil, &out, testLogger(io.Discard))
	sess.IOTimeout = 2 * time.Second

	reply, err := sess.RoundTrip([]byte("ping"))
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if string(reply) != "ping" {
		t.Errorf("reply = %q", reply)
	}

	if err := sess.Print(reply); err != nil {
		t.Fatal(err)
	}
	if out.String() != "ping" {
		t.Errorf("stdout = %q", out.String())
	}
}

func TestSession_ReadLength(t *testing.T) {
	sess := New(echoSocket(t), nil, nil, testLogger(io.Discard))
	sess.ReadLength = 2

	reply, err := sess.RoundTrip([]byte("abcd"))
	if err != nil {
		t.Fatal(err)
	}
	if string(reply) != "ab" {
		t.Errorf("reply = %q, want %q", reply, "ab")
	}
}

func TestSession_ReceiveTimeoutClosesSocket(t *testing.T) {
	sess := New(echoSocket(t), nil, nil, testLogger(io.Discard))
	sess.IOTimeout = 50 * time.Millisecond

	_, err := sess.Receive()
	if !errors.Is(err, socket.ErrReadFailed) || !socket.IsTimeout(err) {
		t.Fatalf("err = %v, want timed-out read failure", err)
	}
	if sess.Socket.IsOpen() {
		t.Error("socket should be closed after a failed read")
	}
	// Close on an already-failed socket is quiet.
	if err := sess.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestSession_SendOnClosed(t *testing.T) {
	sess := New(socket.New("tcp://127.0.0.1:1", nil), nil, nil, testLogger(io.Discard))
	if err := sess.Send([]byte("x")); !errors.Is(err, socket.ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
}

func TestSession_UpgradeFailureKeepsOpen(t *testing.T) {
	sess := New(echoSocket(t), nil, nil, testLogger(io.Discard))
	sess.IOTimeout = 500 * time.Millisecond

	// An echo peer reflects the ClientHello instead of answering it.
	err := sess.Upgrade(socket.MethodTLSClient)
	if !errors.Is(err, socket.ErrUpgradeFailed) {
		t.Fatalf("err = %v, want ErrUpgradeFailed", err)
	}
	if !sess.Socket.IsOpen() {
		t.Error("socket should stay open after a failed upgrade")
	}
}

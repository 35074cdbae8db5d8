package core

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"streamsock/internal/metrics"
	"streamsock/socket"
	"streamsock/util"
)

// listenAccepting returns the address of a listener that accepts and
// immediately drops connections.
func listenAccepting(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	return ln.Addr().String()
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestProbeMode_Run(t *testing.T) {
	open := listenAccepting(t)
	closed := closedAddr(t)

	m := metrics.New()
	out := &bytes.Buffer{}
	mode := &ProbeMode{
		Targets: []string{open, closed},
		Options: &socket.Options{Observer: m},
		Timeout: time.Second,
		Logger:  quietLogger(),
		Stdout:  out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := out.String(); got != open+" open\n" {
		t.Errorf("output = %q", got)
	}
	if m.TotalConnections() != 1 || m.ActiveConnections() != 0 {
		t.Errorf("connections total=%d active=%d", m.TotalConnections(), m.ActiveConnections())
	}
	if m.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount())
	}
}

func TestProbeMode_UDPCaveat(t *testing.T) {
	var logs bytes.Buffer
	logger := util.NewLogger(int(util.LogVerbose))
	logger.SetOutput(&logs)

	target := "udp://" + closedAddr(t)
	out := &bytes.Buffer{}
	mode := &ProbeMode{
		Targets: []string{target, listenAccepting(t)},
		Timeout: time.Second,
		Logger:  logger,
		Stdout:  out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(out.String(), target+" open\n") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(logs.String(), target+": udp has no handshake") {
		t.Errorf("missing udp caveat in log:\n%s", logs.String())
	}
	if strings.Count(logs.String(), "udp has no handshake") != 1 {
		t.Errorf("caveat should be logged for udp targets only:\n%s", logs.String())
	}
}

func TestIsDatagram(t *testing.T) {
	for target, want := range map[string]bool{
		"udp://192.0.2.1:53": true,
		"UDP://192.0.2.1:53": true,
		"192.0.2.1:53":       false,
		"tls://192.0.2.1:53": false,
		"gopher://x:70":      false,
	} {
		if got := isDatagram(target); got != want {
			t.Errorf("isDatagram(%q) = %v, want %v", target, got, want)
		}
	}
}

func TestProbeMode_NoneOpen(t *testing.T) {
	mode := &ProbeMode{
		Targets: []string{closedAddr(t)},
		Timeout: time.Second,
		Logger:  quietLogger(),
		Stdout:  &bytes.Buffer{},
	}
	if err := mode.Run(context.Background()); err == nil {
		t.Error("expected an error when nothing is open")
	}
}

func TestProbeMode_NoTargets(t *testing.T) {
	mode := &ProbeMode{Logger: quietLogger()}
	if err := mode.Run(context.Background()); err == nil {
		t.Error("expected an error without targets")
	}
}

func TestProbeMode_TLSVersion(t *testing.T) {
	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverTLS(t))
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				c.(*tls.Conn).Handshake() //nolint:errcheck
				buf := make([]byte, 1)
				c.Read(buf) //nolint:errcheck
			}()
		}
	}()

	out := &bytes.Buffer{}
	mode := &ProbeMode{
		Targets: []string{"tlsv1.3://" + ln.Addr().String()},
		Options: &socket.Options{TLS: &tls.Config{InsecureSkipVerify: true}}, //nolint:gosec
		Timeout: 2 * time.Second,
		Logger:  quietLogger(),
		Stdout:  out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(out.String(), " open TLS 1.3\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestProbeMode_StartTLSFailure(t *testing.T) {
	open := listenAccepting(t)
	out := &bytes.Buffer{}
	mode := &ProbeMode{
		Targets:   []string{open},
		Timeout:   time.Second,
		IOTimeout: time.Second,
		StartTLS:  true,
		Logger:    quietLogger(),
		Stdout:    out,
	}
	if err := mode.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "open (tls failed:") {
		t.Errorf("output = %q", out.String())
	}
}

// TestProbeTargets_OrderAndBound verifies result order and the
// concurrency ceiling.
func TestProbeTargets_OrderAndBound(t *testing.T) {
	targets := []string{"a", "b", "c", "d", "e", "f"}
	var inFlight, peak atomic.Int32

	probe := func(_ context.Context, target string) ProbeResult {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return ProbeResult{Target: target, Open: target != "c"}
	}

	results := ProbeTargets(context.Background(), targets, 2, probe)
	for i, r := range results {
		if r.Target != targets[i] {
			t.Errorf("results[%d] = %q, want %q", i, r.Target, targets[i])
		}
	}
	if results[2].Open {
		t.Error("c should be closed")
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestProbeTargets_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	results := ProbeTargets(ctx, []string{"x"}, 1, func(context.Context, string) ProbeResult {
		called = true
		return ProbeResult{}
	})
	if called {
		t.Error("probe should not run after cancellation")
	}
	if results[0].Err == nil {
		t.Error("cancelled probe should carry the context error")
	}
}

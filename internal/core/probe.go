package core

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"streamsock/config"
	"streamsock/internal/transport"
	"streamsock/socket"
	"streamsock/util"
)

// ProbeResult records whether a single target accepted a connection.
type ProbeResult struct {
	Target     string
	Open       bool
	TLSVersion string // negotiated version, empty when plain
	Err        error  // open failure, or TLS failure on an open target
}

// ProbeFunc probes one target.
type ProbeFunc func(ctx context.Context, target string) ProbeResult

// ProbeMode opens a socket to each target and reports which accept.
type ProbeMode struct {
	Targets []string
	Options *socket.Options
	Dialer  transport.Dialer

	Timeout     time.Duration // per-target open bound
	IOTimeout   time.Duration // bounds the STARTTLS handshake
	StartTLS    bool
	Method      socket.CryptoMethod
	Concurrency int

	Logger *util.Logger
	Stdout io.Writer // defaults to os.Stdout
}

// Run probes all targets and prints one line per open target.  It
// fails when no target is open.
func (m *ProbeMode) Run(ctx context.Context) error {
	if m.Dialer != nil {
		defer m.Dialer.Close() //nolint:errcheck
	}

	if len(m.Targets) == 0 {
		return fmt.Errorf("no targets specified for probing")
	}

	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}

	m.Logger.Verbose("probing %d target(s)", len(m.Targets))
	for _, t := range m.Targets {
		if isDatagram(t) {
			m.Logger.Verbose("%s: udp has no handshake, so it always reports open", t)
		}
	}

	results := ProbeTargets(ctx, m.Targets, m.Concurrency, m.probe)

	open := 0
	for _, r := range results {
		switch {
		case !r.Open:
			m.Logger.Verbose("%s closed - %v", r.Target, r.Err)
		case r.Err != nil:
			open++
			fmt.Fprintf(out, "%s open (tls failed: %v)\n", r.Target, r.Err)
		case r.TLSVersion != "":
			open++
			fmt.Fprintf(out, "%s open %s\n", r.Target, r.TLSVersion)
		default:
			open++
			fmt.Fprintf(out, "%s open\n", r.Target)
		}
	}

	if open == 0 {
		return fmt.Errorf("no open targets among %d probed", len(results))
	}
	return nil
}

func (m *ProbeMode) probe(ctx context.Context, target string) ProbeResult {
	s := socket.New(target, m.Options)
	if err := s.OpenContext(ctx, m.Timeout); err != nil {
		return ProbeResult{Target: target, Err: err}
	}
	defer s.Close() //nolint:errcheck

	r := ProbeResult{Target: target, Open: true}
	if m.StartTLS {
		if err := s.EnableCrypto(m.Method, socket.WithTimeout(m.IOTimeout)); err != nil {
			r.Err = err
			return r
		}
	}
	if st, ok := s.ConnectionState(); ok {
		r.TLSVersion = tlsVersion(st.Version)
	}
	return r
}

// ProbeTargets runs probe on every target with at most concurrency in
// flight and returns results in the same order as the input slice.
func ProbeTargets(ctx context.Context, targets []string, concurrency int, probe ProbeFunc) []ProbeResult {
	if concurrency <= 0 {
		concurrency = config.DefaultMaxConcurrentProbes
	}

	results := make([]ProbeResult, len(targets))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		go func(idx int, t string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[idx] = ProbeResult{Target: t, Err: err}
				return
			}
			results[idx] = probe(ctx, t)
		}(i, target)
	}

	wg.Wait()
	return results
}

// isDatagram reports whether target dials udp, where opening a socket
// sends nothing and so cannot fail on a closed port.
func isDatagram(target string) bool {
	ep, err := socket.ParseTarget(target)
	return err == nil && ep.Network == "udp"
}

func tlsVersion(v uint16) string {
	return tls.VersionName(v)
}

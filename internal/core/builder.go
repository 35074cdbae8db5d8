package core

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"streamsock/config"
	"streamsock/internal/capability"
	"streamsock/internal/metrics"
	"streamsock/internal/transport"
	"streamsock/socket"
	"streamsock/tunnel"
	"streamsock/util"
)

// Build constructs the Mode selected by a validated configuration.
// m may be nil.
func Build(cfg *config.Config, logger *util.Logger, m *metrics.Collector) (Mode, error) {
	method, err := socket.ParseCryptoMethod(cfg.CryptoMethod)
	if err != nil {
		return nil, err
	}

	tlsCfg, err := BuildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	dialer := buildDialer(cfg, logger, m)
	opts := &socket.Options{TLS: tlsCfg, Dialer: dialer, Observer: m}

	if cfg.Probe {
		return buildProbe(cfg, logger, opts, dialer, method)
	}
	return buildConnect(cfg, logger, opts, dialer, method)
}

// ── mode builders ────────────────────────────────────────────────────

// buildConnect dials the single target left after port-range
// expansion, so "host:25-25" connects to "host:25".
func buildConnect(cfg *config.Config, logger *util.Logger, opts *socket.Options,
	dialer transport.Dialer, method socket.CryptoMethod) (Mode, error) {
	targets, err := config.ExpandTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	if len(targets) != 1 {
		return nil, fmt.Errorf("connect mode needs exactly one target, got %d", len(targets))
	}
	return &ConnectMode{
		Socket:      socket.New(targets[0], opts),
		Dialer:      dialer,
		Capability:  buildCapability(cfg),
		OpenTimeout: cfg.OpenTimeout(),
		IOTimeout:   cfg.IOTimeout,
		ReadLength:  cfg.ReadLength,
		Banner:      cfg.Banner,
		Preamble:    cfg.Send,
		Terminator:  cfg.Terminator(),
		StartTLS:    cfg.StartTLS,
		Method:      method,
		Logger:      logger,
	}, nil
}

func buildProbe(cfg *config.Config, logger *util.Logger, opts *socket.Options,
	dialer transport.Dialer, method socket.CryptoMethod) (Mode, error) {
	targets, err := config.ExpandTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}
	return &ProbeMode{
		Targets:     targets,
		Options:     opts,
		Dialer:      dialer,
		Timeout:     cfg.OpenTimeout(),
		IOTimeout:   cfg.IOTimeout,
		StartTLS:    cfg.StartTLS,
		Method:      method,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	}, nil
}

// ── shared helpers ───────────────────────────────────────────────────

// buildDialer creates the transport for the given config.
func buildDialer(cfg *config.Config, logger *util.Logger, m *metrics.Collector) transport.Dialer {
	if cfg.TunnelEnabled {
		return transport.NewSSHDialer(&tunnel.SSHConfig{
			User:          cfg.TunnelUser,
			Host:          cfg.TunnelHost,
			Port:          cfg.TunnelPort,
			KeyPath:       cfg.SSHKeyPath,
			PromptPass:    cfg.SSHPassword,
			UseAgent:      cfg.UseSSHAgent,
			StrictHostKey: cfg.StrictHostKey,
			KnownHosts:    cfg.KnownHostsPath,
		}, logger, m)
	}
	return &transport.DirectDialer{LocalPort: cfg.LocalPort, NoDNS: cfg.NoDNS}
}

// buildCapability selects what runs after the opening of the
// conversation.
func buildCapability(cfg *config.Config) capability.Capability {
	if cfg.Mode == "stream" {
		return &capability.Stream{}
	}
	return &capability.Exchange{
		Terminator: cfg.Terminator(),
		Limiter:    capability.NewRateLimiter(cfg.Rate),
		MaxLine:    cfg.MaxLine,
	}
}

// BuildTLSConfig assembles the base client TLS configuration shared by
// secure targets and STARTTLS upgrades.
func BuildTLSConfig(cfg *config.Config) (*tls.Config, error) {
	tc := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.Insecure, //nolint:gosec // user opted out of verification
	}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", cfg.CAFile)
		}
		tc.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}

	return tc, nil
}

package config

import (
	"time"

	"streamsock/socket"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnectTimeout bounds opening a socket in connect mode,
	// TLS handshake included for secure targets.  A zero
	// connect_timeout selects it (or DefaultProbeTimeout with -z).
	DefaultConnectTimeout = 30 * time.Second

	// DefaultIOTimeout bounds each read, write and TLS upgrade.
	DefaultIOTimeout = socket.DefaultIOTimeout

	// DefaultReadLength is the largest chunk a single read returns.
	DefaultReadLength = socket.DefaultReadLength

	// DefaultProbeTimeout is the per-target open timeout in probe mode.
	DefaultProbeTimeout = 3 * time.Second

	// DefaultMaxConcurrentProbes limits simultaneous probe goroutines.
	DefaultMaxConcurrentProbes = 100

	// DefaultMaxLine is the longest stdin line exchange mode sends.
	DefaultMaxLine = 1 << 20

	// DefaultMode is the capability used after connecting.
	DefaultMode = "exchange"

	// DefaultEnvPrefix prefixes every environment variable.
	DefaultEnvPrefix = "STREAMSOCK_"
)

// Default returns a Config populated with every default.  Loaders
// overlay file, environment and flag values on top of it.
func Default() *Config {
	return &Config{
		IOTimeout:   DefaultIOTimeout,
		ReadLength:  DefaultReadLength,
		Mode:        DefaultMode,
		MaxLine:     DefaultMaxLine,
		Concurrency: DefaultMaxConcurrentProbes,
	}
}

// OpenTimeout returns the open bound for the selected mode.
func (c *Config) OpenTimeout() time.Duration {
	switch {
	case c.ConnectTimeout > 0:
		return c.ConnectTimeout
	case c.Probe:
		return DefaultProbeTimeout
	default:
		return DefaultConnectTimeout
	}
}

// Package config holds the streamsock run configuration, how it is
// layered from file, environment and flags, and how it is validated.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds every tuneable for a single streamsock run.  The koanf
// keys double as YAML keys and, upper-cased behind STREAMSOCK_, as
// environment variable names.
type Config struct {
	// ── Targets ──────────────────────────────────────────────────────
	Targets []string `koanf:"targets" validate:"dive,required"`

	// ── Socket ───────────────────────────────────────────────────────
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gte=0"`
	IOTimeout      time.Duration `koanf:"io_timeout" validate:"gte=0"`
	ReadLength     int           `koanf:"read_length" validate:"gte=1,lte=16777216"`
	LocalPort      int           `koanf:"local_port" validate:"gte=0,lte=65535"`
	NoDNS          bool          `koanf:"no_dns"`

	// ── Conversation ─────────────────────────────────────────────────
	Banner bool     `koanf:"banner"`
	Send   []string `koanf:"send"`
	CRLF   bool     `koanf:"crlf"`
	Mode   string   `koanf:"mode" validate:"oneof=exchange stream"`
	Rate   float64  `koanf:"rate" validate:"gte=0"`

	// MaxLine bounds one stdin line in exchange mode.
	MaxLine int `koanf:"max_line" validate:"gte=1,lte=67108864"`

	// ── TLS ──────────────────────────────────────────────────────────
	StartTLS     bool   `koanf:"starttls"`
	CryptoMethod string `koanf:"crypto_method" validate:"omitempty,oneof=ssl tls tlsv1.0 tlsv1.1 tlsv1.2 tlsv1.3"`
	ServerName   string `koanf:"server_name" validate:"omitempty,hostname_rfc1123|ip"`
	CAFile       string `koanf:"ca_file" validate:"omitempty,file"`
	CertFile     string `koanf:"cert_file" validate:"omitempty,file"`
	KeyFile      string `koanf:"key_file" validate:"omitempty,file"`
	Insecure     bool   `koanf:"insecure"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	Tunnel         string `koanf:"tunnel"` // raw [user@]host[:port] from -T
	SSHKeyPath     string `koanf:"ssh_key" validate:"omitempty,file"`
	SSHPassword    bool   `koanf:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `koanf:"ssh_agent"`
	StrictHostKey  bool   `koanf:"strict_hostkey"`
	KnownHostsPath string `koanf:"known_hosts"`

	// Filled in by Validate from Tunnel.
	TunnelEnabled bool   `koanf:"-"`
	TunnelUser    string `koanf:"-"`
	TunnelHost    string `koanf:"-"`
	TunnelPort    int    `koanf:"-"`

	// ── Probe ────────────────────────────────────────────────────────
	Probe       bool `koanf:"probe"`
	Concurrency int  `koanf:"concurrency" validate:"gte=1,lte=1024"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose     int    `koanf:"verbose" validate:"gte=0,lte=3"`
	MetricsFile string `koanf:"metrics_file"`
	DryRun      bool   `koanf:"dry_run"`
}

// Terminator returns the line terminator for outgoing messages.
func (c *Config) Terminator() string {
	if c.CRLF {
		return "\r\n"
	}
	return "\n"
}

// ── Ports ────────────────────────────────────────────────────────────

// PortRange is an inclusive range of TCP/UDP ports.
type PortRange struct {
	Start int
	End   int
}

// Len is the number of ports in the range.
func (pr PortRange) Len() int { return pr.End - pr.Start + 1 }

// Expand lists the ports in ascending order.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.Len())
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

// ParsePortSpec accepts a single port ("443") or a range ("993-995").
func ParsePortSpec(spec string) (PortRange, error) {
	lo, hi, isRange := strings.Cut(spec, "-")
	start, err := parsePort(lo)
	if err != nil {
		return PortRange{}, err
	}
	if !isRange {
		return PortRange{Start: start, End: start}, nil
	}
	end, err := parsePort(hi)
	if err != nil {
		return PortRange{}, err
	}
	if start > end {
		return PortRange{}, fmt.Errorf("port range %s is reversed", spec)
	}
	return PortRange{Start: start, End: end}, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

// ── Targets ──────────────────────────────────────────────────────────

// ExpandTarget turns a target whose port is a range, such as
// "tls://mail.example.com:993-995", into one target per port.  Targets
// without a range, and unix socket paths, come back unchanged.
func ExpandTarget(target string) ([]string, error) {
	scheme, rest := "", target
	if i := strings.Index(target, "://"); i >= 0 {
		scheme, rest = target[:i+3], target[i+3:]
	}
	if strings.EqualFold(scheme, "unix://") {
		return []string{target}, nil
	}

	host, port, err := net.SplitHostPort(rest)
	if err != nil || !strings.Contains(port, "-") {
		return []string{target}, nil
	}

	pr, err := ParsePortSpec(port)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", target, err)
	}
	out := make([]string, 0, pr.Len())
	for _, p := range pr.Expand() {
		out = append(out, scheme+net.JoinHostPort(host, strconv.Itoa(p)))
	}
	return out, nil
}

// ExpandTargets applies ExpandTarget to every target, keeping order.
func ExpandTargets(targets []string) ([]string, error) {
	var out []string
	for _, t := range targets {
		exp, err := ExpandTarget(t)
		if err != nil {
			return nil, err
		}
		out = append(out, exp...)
	}
	return out, nil
}

// ── SSH gateway ──────────────────────────────────────────────────────

// ParseTunnelSpec splits a gateway of the form [user@]host[:port].
// IPv6 hosts with a port are bracketed ("ops@[2001:db8::1]:2222").
// Port defaults to DefaultSSHPort.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	if u, rest, ok := strings.Cut(spec, "@"); ok {
		if u == "" {
			return "", "", 0, fmt.Errorf("tunnel %q: empty user", spec)
		}
		user, spec = u, rest
	}

	host, port = spec, DefaultSSHPort
	if h, p, splitErr := net.SplitHostPort(spec); splitErr == nil {
		if port, err = parsePort(p); err != nil {
			return "", "", 0, fmt.Errorf("tunnel port: %w", err)
		}
		host = h
	} else if strings.Count(spec, ":") == 1 {
		return "", "", 0, fmt.Errorf("tunnel %q: %w", spec, splitErr)
	} else {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}

	if host == "" {
		return "", "", 0, errors.New("tunnel host is required")
	}
	if strings.ContainsAny(host, "@/ ") {
		return "", "", 0, fmt.Errorf("tunnel host %q is not a hostname or IP", host)
	}
	return user, host, port, nil
}

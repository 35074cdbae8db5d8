// Package cmd wires up the CLI flags, layers them over the config file
// and environment, and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"streamsock/config"
	"streamsock/internal/core"
	ncerr "streamsock/internal/errors"
	"streamsock/internal/metrics"
	"streamsock/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X streamsock/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// notConfig lists flags that steer the CLI itself rather than Config.
var notConfig = map[string]bool{"config": true, "version": true, "help": true} //nolint:gochecknoglobals

// streams are the process I/O endpoints; tests substitute buffers.
type streams struct {
	in       io.Reader
	out, err io.Writer
}

// Execute parses args and runs the selected streamsock mode.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, streams{in: os.Stdin, out: os.Stdout, err: os.Stderr})
}

func execute(ctx context.Context, args []string, std streams) error {
	def := config.Default()
	fs := flag.NewFlagSet("streamsock", flag.ContinueOnError)
	fs.SetOutput(std.err)

	// ── socket ───────────────────────────────────────────────────
	fs.DurationP("connect-timeout", "w", def.ConnectTimeout, "Open timeout (0 = 30s, 3s with -z)")
	fs.DurationP("io-timeout", "t", def.IOTimeout, "Timeout for each read, write and TLS upgrade (0 = none)")
	fs.IntP("read-length", "r", def.ReadLength, "Maximum bytes returned by one read")
	fs.BoolP("no-dns", "n", false, "Numeric-only, no DNS resolution")
	fs.IntP("local-port", "p", 0, "Local source port")

	// ── conversation ─────────────────────────────────────────────
	fs.BoolP("banner", "b", false, "Read and print the peer's greeting first")
	fs.StringArrayP("send", "s", nil, "Send a line and print the reply (repeatable)")
	fs.Bool("crlf", false, "Terminate lines with CRLF")
	fs.StringP("mode", "m", def.Mode, "After the preamble: exchange | stream")
	fs.Float64("rate", 0, "Maximum lines per second in exchange mode (0 = unlimited)")
	fs.Int("max-line", def.MaxLine, "Longest stdin line exchange mode accepts, in bytes")

	// ── TLS ──────────────────────────────────────────────────────
	fs.Bool("starttls", false, "Upgrade to TLS after the preamble")
	fs.String("crypto-method", "", "tls | tlsv1.0 | tlsv1.1 | tlsv1.2 | tlsv1.3")
	fs.String("server-name", "", "Server name for certificate verification and SNI")
	fs.String("ca-file", "", "PEM bundle of trusted CAs")
	fs.String("cert-file", "", "PEM client certificate")
	fs.String("key-file", "", "PEM client key")
	fs.Bool("insecure", false, "Skip certificate verification")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringP("tunnel", "T", "", "SSH tunnel via [user@]host[:port]")
	fs.String("ssh-key", "", "SSH private key file")
	fs.Bool("ssh-password", false, "Prompt for SSH password")
	fs.Bool("ssh-agent", false, "Use SSH agent")
	fs.Bool("strict-hostkey", false, "Verify SSH host keys")
	fs.String("known-hosts", "", "Custom known_hosts path")

	// ── probe ────────────────────────────────────────────────────
	fs.BoolP("probe", "z", false, "Probe targets (port ranges allowed)")
	fs.Int("concurrency", def.Concurrency, "Simultaneous probes")

	// ── output ───────────────────────────────────────────────────
	fs.CountP("verbose", "v", "Increase verbosity (repeatable)")
	fs.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	fs.Bool("dry-run", false, "Validate configuration and exit")
	configPath := fs.String("config", os.Getenv(config.DefaultEnvPrefix+"CONFIG"), "YAML config file")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(std.err, fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(std.err, fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(std.out, "streamsock %s\n", version)
		return nil
	}

	// ── layer sources ────────────────────────────────────────────
	cfg := config.Default()
	loader := config.NewLoader(config.WithConfigFile(*configPath))
	if err := loader.Load(cfg, changedFlags(fs)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	logger.SetOutput(std.err)
	logger.Debug("config keys set: %s", strings.Join(loader.Keys(), ", "))

	if cfg.DryRun {
		printPlan(std.out, cfg)
		return nil
	}

	// ── build & run ──────────────────────────────────────────────
	m := metrics.New()
	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}
	if cm, ok := mode.(*core.ConnectMode); ok {
		cm.Stdin, cm.Stdout = std.in, std.out
	}
	if pm, ok := mode.(*core.ProbeMode); ok {
		pm.Stdout = std.out
	}

	runErr := mode.Run(ctx)
	if ncerr.IsRetryable(runErr) {
		logger.Info("the failure looks transient; retrying may succeed")
	}

	if n := m.ErrorCount(); n > 0 {
		logger.Verbose("%d operation(s) failed", n)
	}
	logger.Debug("metrics: %s", m.JSON())
	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("writing metrics: %v", err)
		}
	}
	return runErr
}

// ── helpers ──────────────────────────────────────────────────────────

// changedFlags returns the flags set on the command line, keyed like
// Config, plus the positional targets.
func changedFlags(fs *flag.FlagSet) map[string]any {
	out := make(map[string]any)
	fs.Visit(func(f *flag.Flag) {
		if notConfig[f.Name] {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if sv, ok := f.Value.(flag.SliceValue); ok {
			out[key] = sv.GetSlice()
			return
		}
		out[key] = f.Value.String()
	})
	if fs.NArg() > 0 {
		out["targets"] = fs.Args()
	}
	return out
}

func printPlan(w io.Writer, cfg *config.Config) {
	mode := "connect"
	if cfg.Probe {
		mode = "probe"
	}
	targets, _ := config.ExpandTargets(cfg.Targets)
	fmt.Fprintf(w, "mode: %s\n", mode)
	for _, t := range targets {
		fmt.Fprintf(w, "target: %s\n", t)
	}
	fmt.Fprintf(w, "open timeout: %s\nio timeout: %s\nread length: %d\n",
		cfg.OpenTimeout(), cfg.IOTimeout, cfg.ReadLength)
	if cfg.TunnelEnabled {
		fmt.Fprintf(w, "tunnel: %s@%s:%d\n", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, `streamsock v%s

A blocking stream-socket client with in-place TLS upgrade.

Usage:
  streamsock [options] <target>               Exchange lines with a target
  streamsock -z [options] <target>...         Probe targets

Targets:
  host:port  tcp://host:port  udp://host:port  unix:///path
  ssl://host:port  tls://host:port  tlsv1.0..tlsv1.3://host:port
  (-z cannot tell open from closed for udp:// targets; they always
  report open)

Options:
`, version)
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintf(w, `
Examples:
  streamsock -b -s "EHLO me" --crlf --starttls mail.example.com:25
  streamsock -r 4096 tls://example.com:443 < request.txt
  streamsock -vz example.com:20-25 tls://example.com:443
  streamsock -T admin@bastion db-internal:5432
`)
}

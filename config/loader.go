package config

// loader.go - layered configuration loading.
//
// Precedence order (highest wins):
//   1. CLI flags  (collected by cmd/root.go, applied with LoadMap)
//   2. Environment variables  (STREAMSOCK_*)
//   3. YAML config file  (--config)
//   4. Defaults   (defaults.go)

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader merges configuration sources into a Config.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithConfigFile sets the YAML file to read.  Empty means none.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath = path }
}

// NewLoader creates a loader with the STREAMSOCK_ prefix.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file and environment, applies flags on top, and
// unmarshals the result over cfg.  Keys absent from every source keep
// the value already in cfg, so callers start from Default().
func (l *Loader) Load(cfg *Config, flags map[string]any) error {
	if err := l.LoadFile(l.filePath); err != nil {
		return err
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if len(flags) > 0 {
		if err := l.LoadMap(flags); err != nil {
			return err
		}
	}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file.  An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv merges prefixed environment variables.
// STREAMSOCK_IO_TIMEOUT=5s becomes io_timeout.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap merges already-typed values, such as changed CLI flags.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load flags: %w", err)
	}
	return nil
}

// Keys returns every key set by any source.
func (l *Loader) Keys() []string { return l.k.Keys() }

// ── map provider ─────────────────────────────────────────────────────

var errReadBytes = errors.New("config: map provider has no byte form")

// mapProvider is a koanf.Provider over an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) { return nil, errReadBytes }

func (m mapProvider) Read() (map[string]any, error) { return m, nil }

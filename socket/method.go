package socket

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// CryptoMethod selects the TLS client role and protocol version used
// when a connection is made secure.
type CryptoMethod int

const (
	// MethodTLSClient negotiates any TLS version allowed by the
	// caller's tls.Config.
	MethodTLSClient CryptoMethod = iota
	MethodTLSv10Client
	MethodTLSv11Client
	MethodTLSv12Client
	MethodTLSv13Client
)

var methodNames = map[CryptoMethod]string{
	MethodTLSClient:    "tls",
	MethodTLSv10Client: "tlsv1.0",
	MethodTLSv11Client: "tlsv1.1",
	MethodTLSv12Client: "tlsv1.2",
	MethodTLSv13Client: "tlsv1.3",
}

func (m CryptoMethod) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("CryptoMethod(%d)", int(m))
}

// ParseCryptoMethod maps "tls", "ssl", "tlsv1.0" … "tlsv1.3" to a
// CryptoMethod.  Matching is case-insensitive.
func ParseCryptoMethod(s string) (CryptoMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "ssl" || s == "" {
		return MethodTLSClient, nil
	}
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown crypto method %q", s)
}

// version returns the pinned protocol version, or 0 for "any".
func (m CryptoMethod) version() uint16 {
	switch m {
	case MethodTLSv10Client:
		return tls.VersionTLS10
	case MethodTLSv11Client:
		return tls.VersionTLS11
	case MethodTLSv12Client:
		return tls.VersionTLS12
	case MethodTLSv13Client:
		return tls.VersionTLS13
	default:
		return 0
	}
}

// clientConfig derives the handshake configuration for host from the
// caller's base config.  base is never modified.
func (m CryptoMethod) clientConfig(base *tls.Config, host string) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{} //nolint:gosec // MinVersion left to the Go default
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if v := m.version(); v != 0 {
		cfg.MinVersion = v
		cfg.MaxVersion = v
	}
	return cfg
}

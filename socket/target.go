package socket

import (
	"fmt"
	"net"
	"strings"
)

// Endpoint is a parsed connection target.
type Endpoint struct {
	Scheme  string // as written, lower-cased; "tcp" when absent
	Network string // "tcp", "udp" or "unix"
	Address string // host:port, or a filesystem path for unix

	// Secure endpoints complete a TLS handshake as part of Open.
	Secure bool
	Method CryptoMethod
}

// Host returns the host part of a tcp/udp address, or "" for unix
// sockets and malformed addresses.
func (e Endpoint) Host() string {
	if e.Network == "unix" {
		return ""
	}
	host, _, err := net.SplitHostPort(e.Address)
	if err != nil {
		return ""
	}
	return host
}

func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Address
}

var secureSchemes = map[string]CryptoMethod{
	"ssl":     MethodTLSClient,
	"tls":     MethodTLSClient,
	"tlsv1.0": MethodTLSv10Client,
	"tlsv1.1": MethodTLSv11Client,
	"tlsv1.2": MethodTLSv12Client,
	"tlsv1.3": MethodTLSv13Client,
}

// ParseTarget interprets a stream-wrapper style target such as
// "tcp://example.com:80", "tls://example.com:443", "udp://1.1.1.1:53",
// "unix:///run/app.sock" or a bare "host:port" (plain TCP).
func ParseTarget(target string) (Endpoint, error) {
	scheme, rest, found := strings.Cut(target, "://")
	if !found {
		scheme, rest = "tcp", target
	}
	scheme = strings.ToLower(scheme)
	if rest == "" {
		return Endpoint{}, fmt.Errorf("%q: %w", target, errMissingAddress)
	}

	ep := Endpoint{Scheme: scheme, Address: rest}
	switch scheme {
	case "tcp", "udp":
		ep.Network = scheme
	case "unix":
		ep.Network = "unix"
		return ep, nil
	default:
		m, ok := secureSchemes[scheme]
		if !ok {
			return Endpoint{}, fmt.Errorf("%q: %w", scheme, errUnknownScheme)
		}
		ep.Network = "tcp"
		ep.Secure = true
		ep.Method = m
	}

	host, port, err := net.SplitHostPort(rest)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%q: %w", target, err)
	}
	if port == "" {
		return Endpoint{}, fmt.Errorf("%q: missing port", target)
	}
	ep.Address = net.JoinHostPort(host, port)
	return ep, nil
}

package util

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// CheckNumericHost fails when noDNS is set and host is not an IP
// literal.  IPv6 zones are accepted; an empty host (unix sockets) is
// always accepted.
func CheckNumericHost(host string, noDNS bool) error {
	if !noDNS || host == "" {
		return nil
	}
	if _, err := netip.ParseAddr(host); err != nil {
		return fmt.Errorf("%q is not an IP address and DNS is disabled (-n)", host)
	}
	return nil
}

// FormatAddr joins host and port, bracketing IPv6 hosts.
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	ncerr "streamsock/internal/errors"
	"streamsock/util"
)

// DirectDialer connects straight to the target over tcp, udp or unix.
type DirectDialer struct {
	// LocalPort binds the source port for tcp and udp (0 = ephemeral).
	LocalPort int

	// NoDNS refuses host names that would need a resolver lookup.
	NoDNS bool
}

// DialContext connects to address.  The context bounds the dial.
func (d *DirectDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var dialer net.Dialer

	if network != "unix" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return nil, ncerr.Wrap("dial", address, err)
		}
		if err := util.CheckNumericHost(host, d.NoDNS); err != nil {
			return nil, ncerr.Wrap("resolve", address, err)
		}
	}

	if d.LocalPort > 0 {
		local, err := localAddr(network, d.LocalPort)
		if err != nil {
			return nil, ncerr.Wrap("bind", address, err)
		}
		dialer.LocalAddr = local
	}

	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.Wrap("dial", address, err)
	}
	return conn, nil
}

// Close is a no-op for the stateless direct dialer.
func (d *DirectDialer) Close() error { return nil }

func localAddr(network string, port int) (net.Addr, error) {
	hostport := ":" + strconv.Itoa(port)
	switch network {
	case "tcp", "tcp4", "tcp6":
		return net.ResolveTCPAddr(network, hostport)
	case "udp", "udp4", "udp6":
		return net.ResolveUDPAddr(network, hostport)
	default:
		return nil, fmt.Errorf("local port binding is not supported for %s", network)
	}
}

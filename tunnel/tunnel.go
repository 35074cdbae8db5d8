// Package tunnel carries socket traffic through an SSH gateway.  Each
// Dial opens a direct-tcpip channel on one shared SSH connection, so a
// probe run fans out over a single handshake.
package tunnel

import (
	"context"
	"net"
)

// Tunnel is a connected path to a gateway that can forward streams.
type Tunnel interface {
	Connect(ctx context.Context) error

	// Dial fails with ErrNotConnected before Connect and with
	// ErrTunnelClosed after Close.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	Close() error
	IsAlive() bool
}

// Package transport opens the byte streams that sockets run over.
// Transports decide how bytes reach the target (directly or through an
// SSH gateway); the socket layer decides what happens on top.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound connections.  Every Dialer satisfies
// socket.Dialer and can be set as socket.Options.Dialer.
type Dialer interface {
	// DialContext establishes a connection to address on network.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases long-lived resources held by the dialer (an SSH
	// session, for instance).  Stateless dialers return nil.
	Close() error
}

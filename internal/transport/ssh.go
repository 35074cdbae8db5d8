package transport

import (
	"context"
	"fmt"
	"net"

	"streamsock/internal/metrics"
	"streamsock/tunnel"
	"streamsock/util"
)

// SSHDialer forwards every connection through one SSH gateway.  The
// tunnel comes up on the first dial and goes down on Close.
type SSHDialer struct {
	manager *tunnel.Manager
	gateway string
	logger  *util.Logger
}

// NewSSHDialer returns a dialer for the gateway in cfg.  m may be nil.
func NewSSHDialer(cfg *tunnel.SSHConfig, logger *util.Logger, m *metrics.Collector) *SSHDialer {
	return &SSHDialer{
		manager: tunnel.NewManager(tunnel.NewSSHTunnel(cfg, logger), logger, m),
		gateway: cfg.User + "@" + cfg.Addr(),
		logger:  logger,
	}
}

func (d *SSHDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !d.manager.Running() {
		d.logger.Verbose("establishing SSH tunnel to %s", d.gateway)
	}
	if err := d.manager.Start(ctx); err != nil {
		return nil, fmt.Errorf("tunnel %s: %w", d.gateway, err)
	}
	return d.manager.Tunnel().Dial(ctx, network, address)
}

func (d *SSHDialer) Close() error {
	return d.manager.Stop()
}

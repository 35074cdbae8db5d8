package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	ncerr "streamsock/internal/errors"
	"streamsock/util"
)

// Gateway defaults.
const (
	DefaultSSHPort        = 22
	DefaultConnectTimeout = 30 * time.Second
)

// SSHConfig describes the gateway and how to authenticate to it.
type SSHConfig struct {
	User    string
	Host    string
	Port    int // DefaultSSHPort when 0
	KeyPath string

	PromptPass bool
	UseAgent   bool

	StrictHostKey bool
	KnownHosts    string // ~/.ssh/known_hosts when empty

	ConnTimeout time.Duration // DefaultConnectTimeout when 0
}

// Addr returns the gateway as host:port.
func (c *SSHConfig) Addr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// SSHTunnel forwards streams over direct-tcpip channels of one SSH
// client connection.  Once closed it cannot be reconnected.
type SSHTunnel struct {
	config SSHConfig
	logger *util.Logger

	mu     sync.RWMutex
	client *ssh.Client // nil until connected
	alive  bool
	closed bool
}

var _ Tunnel = (*SSHTunnel)(nil)

// NewSSHTunnel returns an unconnected tunnel for a copy of cfg.
func NewSSHTunnel(cfg *SSHConfig, logger *util.Logger) *SSHTunnel {
	c := *cfg
	if c.Port == 0 {
		c.Port = DefaultSSHPort
	}
	if c.ConnTimeout == 0 {
		c.ConnTimeout = DefaultConnectTimeout
	}
	return &SSHTunnel{config: c, logger: logger}
}

// Connect dials the gateway, verifies its host key and authenticates.
// The whole exchange is bounded by ConnTimeout and by ctx's deadline.
func (t *SSHTunnel) Connect(ctx context.Context) error {
	if t.isClosed() {
		return ncerr.ErrTunnelClosed
	}

	clientCfg, err := t.clientConfig()
	if err != nil {
		return err
	}

	addr := t.config.Addr()
	t.logger.Debug("ssh: dialing %s as %s", addr, t.config.User)

	ctx, cancel := context.WithTimeout(ctx, t.config.ConnTimeout)
	defer cancel()

	raw, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return ncerr.WrapSSH("connect", t.config.Host, t.config.Port, err)
	}

	client, err := handshake(ctx, raw, addr, clientCfg)
	if err != nil {
		raw.Close() //nolint:errcheck
		return ncerr.WrapSSH("handshake", t.config.Host, t.config.Port, err)
	}

	t.mu.Lock()
	t.client, t.alive = client, true
	t.mu.Unlock()

	go t.watch(client)
	return nil
}

func (t *SSHTunnel) clientConfig() (*ssh.ClientConfig, error) {
	auth, err := BuildAuthMethods(&t.config)
	if err != nil {
		return nil, ncerr.WrapSSH("auth", t.config.Host, t.config.Port, err)
	}
	hostKey, err := hostKeyCallback(&t.config)
	if err != nil {
		return nil, ncerr.WrapSSH("hostkey", t.config.Host, t.config.Port, err)
	}
	return &ssh.ClientConfig{
		User:            t.config.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         t.config.ConnTimeout,
	}, nil
}

// handshake runs the SSH handshake on raw under ctx's deadline.
func handshake(ctx context.Context, raw net.Conn, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	if dl, ok := ctx.Deadline(); ok {
		raw.SetDeadline(dl) //nolint:errcheck
	}
	conn, chans, reqs, err := ssh.NewClientConn(raw, addr, cfg)
	if err != nil {
		return nil, err
	}
	raw.SetDeadline(time.Time{}) //nolint:errcheck
	return ssh.NewClient(conn, chans, reqs), nil
}

// Dial opens a forwarded TCP stream to address.
func (t *SSHTunnel) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	t.mu.RLock()
	client, alive, closed := t.client, t.alive, t.closed
	t.mu.RUnlock()

	switch {
	case closed:
		return nil, ncerr.ErrTunnelClosed
	case !alive:
		return nil, ncerr.ErrNotConnected
	case network != "tcp":
		return nil, fmt.Errorf("tunnel dial %s: network %q cannot be forwarded over SSH", address, network)
	}

	t.logger.Debug("ssh: forwarding to %s", address)
	conn, err := client.DialContext(ctx, network, address)
	if err != nil {
		return nil, ncerr.WrapSSH("dial", t.config.Host, t.config.Port,
			fmt.Errorf("%s: %w", address, err))
	}
	return conn, nil
}

// Close disconnects and marks the tunnel unusable.
func (t *SSHTunnel) Close() error {
	t.mu.Lock()
	client := t.client
	t.client, t.alive, t.closed = nil, false, true
	t.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

func (t *SSHTunnel) IsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.alive
}

func (t *SSHTunnel) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// watch clears alive when client's connection ends.
func (t *SSHTunnel) watch(client *ssh.Client) {
	err := client.Wait()

	t.mu.Lock()
	if t.client == client {
		t.alive = false
	}
	t.mu.Unlock()

	t.logger.Debug("ssh: connection to %s ended: %v", t.config.Addr(), err)
}

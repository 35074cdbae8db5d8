package core

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamsock/config"
	"streamsock/internal/capability"
	"streamsock/internal/metrics"
	"streamsock/internal/transport"
	"streamsock/socket"
	"streamsock/util"
)

func quietLogger() *util.Logger {
	l := util.NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

func baseConfig(targets ...string) *config.Config {
	c := config.Default()
	c.Targets = targets
	return c
}

// TestBuild_Connect verifies that Build produces a ConnectMode for
// a simple connect configuration.
func TestBuild_Connect(t *testing.T) {
	cfg := baseConfig("example.com:80")
	cfg.Send = []string{"HELO x"}
	cfg.CRLF = true

	mode, err := Build(cfg, quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ConnectMode)
	if !ok {
		t.Fatalf("expected *ConnectMode, got %T", mode)
	}
	if cm.Socket.Target() != "example.com:80" {
		t.Errorf("target = %q", cm.Socket.Target())
	}
	if cm.OpenTimeout != config.DefaultConnectTimeout {
		t.Errorf("OpenTimeout = %v", cm.OpenTimeout)
	}
	if cm.Terminator != "\r\n" || len(cm.Preamble) != 1 {
		t.Errorf("preamble = %q terminated by %q", cm.Preamble, cm.Terminator)
	}
	if _, ok := cm.Capability.(*capability.Exchange); !ok {
		t.Errorf("capability = %T, want *capability.Exchange", cm.Capability)
	}
	if _, ok := cm.Dialer.(*transport.DirectDialer); !ok {
		t.Errorf("dialer = %T, want *transport.DirectDialer", cm.Dialer)
	}
}

// A one-port range collapses to a plain target before dialing.
func TestBuild_ConnectSinglePortRange(t *testing.T) {
	mode, err := Build(baseConfig("tls://mail.example.com:465-465"), quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := mode.(*ConnectMode).Socket.Target(); got != "tls://mail.example.com:465" {
		t.Errorf("target = %q, want tls://mail.example.com:465", got)
	}
}

func TestBuild_ConnectRejectsMultipleTargets(t *testing.T) {
	if _, err := Build(baseConfig("example.com:80-81"), quietLogger(), nil); err == nil {
		t.Error("expected an error for a range expanding to two targets")
	}
}

func TestBuild_StreamMode(t *testing.T) {
	cfg := baseConfig("example.com:80")
	cfg.Mode = "stream"

	mode, err := Build(cfg, quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mode.(*ConnectMode).Capability.(*capability.Stream); !ok {
		t.Errorf("capability = %T, want *capability.Stream", mode.(*ConnectMode).Capability)
	}
}

// TestBuild_Probe verifies Build produces a ProbeMode with expanded
// targets.
func TestBuild_Probe(t *testing.T) {
	cfg := baseConfig("example.com:20-22", "tls://example.com:443")
	cfg.Probe = true

	mode, err := Build(cfg, quietLogger(), metrics.New())
	if err != nil {
		t.Fatal(err)
	}
	pm, ok := mode.(*ProbeMode)
	if !ok {
		t.Fatalf("expected *ProbeMode, got %T", mode)
	}
	if len(pm.Targets) != 4 {
		t.Errorf("targets = %v", pm.Targets)
	}
	if pm.Timeout != config.DefaultProbeTimeout {
		t.Errorf("Timeout = %v", pm.Timeout)
	}
	if pm.Options.Observer == nil {
		t.Error("metrics collector should observe probe sockets")
	}
}

func TestBuild_Tunnel(t *testing.T) {
	cfg := baseConfig("db.internal:5432")
	cfg.Tunnel = "admin@bastion:2222"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	mode, err := Build(cfg, quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mode.(*ConnectMode).Dialer.(*transport.SSHDialer); !ok {
		t.Errorf("dialer = %T, want *transport.SSHDialer", mode.(*ConnectMode).Dialer)
	}
}

func TestBuild_CryptoMethod(t *testing.T) {
	cfg := baseConfig("example.com:25")
	cfg.StartTLS = true
	cfg.CryptoMethod = "tlsv1.2"

	mode, err := Build(cfg, quietLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m := mode.(*ConnectMode).Method; m != socket.MethodTLSv12Client {
		t.Errorf("Method = %v", m)
	}

	cfg.CryptoMethod = "sslv2"
	if _, err := Build(cfg, quietLogger(), nil); err == nil {
		t.Error("expected error for unknown crypto method")
	}
}

// ── TLS config ───────────────────────────────────────────────────────

func TestBuildTLSConfig_Plain(t *testing.T) {
	cfg := baseConfig("x:1")
	cfg.ServerName = "mail.example.com"
	cfg.Insecure = true

	tc, err := BuildTLSConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tc.ServerName != "mail.example.com" || !tc.InsecureSkipVerify {
		t.Errorf("tls config = %+v", tc)
	}
	if tc.RootCAs != nil || len(tc.Certificates) != 0 {
		t.Error("no CA or client cert expected")
	}
}

func TestBuildTLSConfig_Files(t *testing.T) {
	certPath, keyPath := writeCertPair(t)

	cfg := baseConfig("x:1")
	cfg.CAFile = certPath
	cfg.CertFile = certPath
	cfg.KeyFile = keyPath

	tc, err := BuildTLSConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tc.RootCAs == nil {
		t.Error("RootCAs should be set from the CA file")
	}
	if len(tc.Certificates) != 1 {
		t.Errorf("certificates = %d, want 1", len(tc.Certificates))
	}
}

func TestBuildTLSConfig_BadCA(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(p, []byte("not a certificate"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := baseConfig("x:1")
	cfg.CAFile = p
	if _, err := BuildTLSConfig(cfg); err == nil {
		t.Error("expected error for CA file without certificates")
	}
}

// writeCertPair writes a self-signed certificate and its key as PEM.
func writeCertPair(t *testing.T) (certPath, keyPath string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "streamsock test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IsCA:         true,
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")
	if err := os.WriteFile(certPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0600); err != nil {
		t.Fatal(err)
	}
	return certPath, keyPath
}

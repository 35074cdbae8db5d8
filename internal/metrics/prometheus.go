package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "streamsock"

var (
	descConnectionsActive = prometheus.NewDesc(namespace+"_connections_active",
		"Sockets currently open.", nil, nil)
	descConnectionsTotal = prometheus.NewDesc(namespace+"_connections_total",
		"Sockets opened since start.", nil, nil)
	descBytes = prometheus.NewDesc(namespace+"_bytes_total",
		"Bytes moved over sockets.", []string{"direction"}, nil)
	descCryptoUpgrades = prometheus.NewDesc(namespace+"_crypto_upgrades_total",
		"Successful in-place TLS upgrades.", nil, nil)
	descErrors = prometheus.NewDesc(namespace+"_errors_total",
		"Failed operations, by operation.", []string{"op"}, nil)
	descUptime = prometheus.NewDesc(namespace+"_uptime_seconds",
		"Seconds since the collector was created.", nil, nil)
)

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descConnectionsActive
	ch <- descConnectionsTotal
	ch <- descBytes
	ch <- descCryptoUpgrades
	ch <- descErrors
	ch <- descUptime
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(descConnectionsActive, prometheus.GaugeValue,
		float64(c.ActiveConnections()))
	ch <- prometheus.MustNewConstMetric(descConnectionsTotal, prometheus.CounterValue,
		float64(c.TotalConnections()))
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue,
		float64(c.TotalBytesIn()), "in")
	ch <- prometheus.MustNewConstMetric(descBytes, prometheus.CounterValue,
		float64(c.TotalBytesOut()), "out")
	ch <- prometheus.MustNewConstMetric(descCryptoUpgrades, prometheus.CounterValue,
		float64(c.CryptoUpgrades()))
	for op, n := range c.Failures() {
		ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(n), op)
	}
	ch <- prometheus.MustNewConstMetric(descUptime, prometheus.GaugeValue, c.uptime().Seconds())
}

// WriteTextfile writes the current metrics to path in the Prometheus
// text format, suitable for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

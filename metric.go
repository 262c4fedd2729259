package cdc

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "go_maxscale_cdc"

var hostname, _ = os.Hostname()

// streamMetric tracks the decode side of a session. Publisher metrics live
// in rabbitmq/publisher.
type streamMetric struct {
	receivedBytes prometheus.Counter
	records       prometheus.Counter
	idlePolls     prometheus.Counter
}

func newStreamMetric(stream string) *streamMetric {
	labels := prometheus.Labels{
		"host":   hostname,
		"stream": stream,
	}
	return &streamMetric{
		receivedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "received_bytes_total",
			Help:        "total bytes received from the cdc server after the handshake",
			ConstLabels: labels,
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "records_total",
			Help:        "total decoded records (json values or raw chunks)",
			ConstLabels: labels,
		}),
		idlePolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "idle_receives_total",
			Help:        "total receive attempts that returned no data",
			ConstLabels: labels,
		}),
	}
}

func (m *streamMetric) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.receivedBytes, m.records, m.idlePolls}
}

func (m *streamMetric) AddBytes(n int) { m.receivedBytes.Add(float64(n)) }
func (m *streamMetric) AddRecord()     { m.records.Inc() }
func (m *streamMetric) AddIdle()       { m.idlePolls.Inc() }

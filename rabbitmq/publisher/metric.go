package publisher

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "go_maxscale_cdc"

type Metric interface {
	SetProcessLatency(latency int64)
	SetBulkRequestProcessLatency(latency int64)
	PrometheusCollectors() []prometheus.Collector
	AddSuccessOp(routingKey string, count float64)
	AddErrOp(routingKey string, count float64)
}

var hostname, _ = os.Hostname()

type metric struct {
	processLatencyNs            prometheus.Gauge
	bulkRequestProcessLatencyNs prometheus.Gauge
	totalSuccess                *prometheus.CounterVec
	totalErr                    *prometheus.CounterVec
	stream                      string
}

func NewMetric(stream string) Metric {
	return &metric{
		stream: stream,
		processLatencyNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "process_latency",
			Name:      "current",
			Help:      "latest record-to-publish latency in nanoseconds",
			ConstLabels: prometheus.Labels{
				"host":   hostname,
				"stream": stream,
			},
		}),
		bulkRequestProcessLatencyNs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bulk_request_process_latency",
			Name:      "current",
			Help:      "latest batch flush latency in nanoseconds",
			ConstLabels: prometheus.Labels{
				"host":   hostname,
				"stream": stream,
			},
		}),
		totalSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "total",
			Help:      "total number of successful publish operations to rabbitmq",
		}, []string{"stream", "routing_key", "host"}),
		totalErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "err",
			Name:      "total",
			Help:      "total number of errors in publish operations to rabbitmq",
		}, []string{"stream", "routing_key", "host"}),
	}
}

func (m *metric) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.processLatencyNs,
		m.bulkRequestProcessLatencyNs,
		m.totalSuccess,
		m.totalErr,
	}
}

func (m *metric) SetProcessLatency(latency int64) {
	m.processLatencyNs.Set(float64(latency))
}

func (m *metric) SetBulkRequestProcessLatency(latency int64) {
	m.bulkRequestProcessLatencyNs.Set(float64(latency))
}

func (m *metric) AddSuccessOp(routingKey string, count float64) {
	m.totalSuccess.WithLabelValues(m.stream, routingKey, hostname).Add(count)
}

func (m *metric) AddErrOp(routingKey string, count float64) {
	m.totalErr.WithLabelValues(m.stream, routingKey, hostname).Add(count)
}

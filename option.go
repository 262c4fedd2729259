package cdc

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streamhouse/go-maxscale-cdc/rabbitmq"
)

type Option func(Connector)
type Options []Option

func (ops Options) Apply(c Connector) {
	for _, op := range ops {
		op(c)
	}
}

func mustConnector(c Connector) *connector {
	conn, ok := c.(*connector)
	if !ok {
		panic("option can only be applied to cdc.connector")
	}
	return conn
}

// WithResponseHandler overrides how publish outcomes are observed.
func WithResponseHandler(respHandler rabbitmq.ResponseHandler) Option {
	return func(c Connector) {
		mustConnector(c).responseHandler = respHandler
	}
}

// WithPrometheusMetrics registers extra collectors on the metrics listener.
func WithPrometheusMetrics(collectors []prometheus.Collector) Option {
	return func(c Connector) {
		conn := mustConnector(c)
		conn.collectors = append(conn.collectors, collectors...)
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c Connector) {
		mustConnector(c).logger = l
	}
}

// WithTransport injects an already-connected transport; Start skips dialing.
// Used for testing and for wrapping the session in custom instrumentation.
func WithTransport(t Transport) Option {
	return func(c Connector) {
		mustConnector(c).transport = t
	}
}

// withSleep replaces the poll-interval sleep; tests use it to keep the raw
// decode loop deterministic.
func withSleep(fn func(time.Duration)) Option {
	return func(c Connector) {
		mustConnector(c).sleep = fn
	}
}

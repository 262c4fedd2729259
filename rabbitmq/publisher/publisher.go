// Package publisher batches decoded CDC records and publishes them to
// RabbitMQ in confirm mode.
package publisher

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/streamhouse/go-maxscale-cdc/config"
	"github.com/streamhouse/go-maxscale-cdc/internal/bytesize"
	"github.com/streamhouse/go-maxscale-cdc/rabbitmq"
)

type Publisher struct {
	PublisherBatch *Batch
}

func NewPublisher(
	client rabbitmq.Client,
	cfg *config.Connector,
	responseHandler rabbitmq.ResponseHandler,
	logger *slog.Logger,
) (Publisher, error) {
	batchBytes, err := bytesize.ParseSize(cfg.RabbitMQ.PublisherBatchBytes)
	if err != nil {
		return Publisher{}, fmt.Errorf("publisherBatchBytes parse: %w", err)
	}
	if batchBytes > bytesize.Size(math.MaxInt64) {
		return Publisher{}, fmt.Errorf("publisherBatchBytes exceeds maximum: %d", batchBytes)
	}

	return Publisher{
		PublisherBatch: newBatch(
			cfg.RabbitMQ.PublisherBatchTickerDuration,
			cfg.RabbitMQ.PublisherBatchSize,
			int64(batchBytes), //nolint:gosec // G115: guarded by the check above
			cfg.RabbitMQ.PublisherMaxRetries,
			cfg.RabbitMQ.Exchange.Name,
			cfg.CDC.Table,
			responseHandler,
			client,
			logger,
		),
	}, nil
}

func (p *Publisher) StartBatch() {
	p.PublisherBatch.StartBatchTicker()
}

// Produce queues messages for the next flush. eventTime is when the record
// was received from the CDC server; it feeds the process-latency gauge.
func (p *Publisher) Produce(eventTime time.Time, messages []rabbitmq.PublishMessage) {
	p.PublisherBatch.AddEvents(messages, eventTime)
}

func (p *Publisher) Close() {
	p.PublisherBatch.Close()
}

func (p *Publisher) GetMetric() Metric {
	return p.PublisherBatch.metric
}

func (p *Publisher) HasPendingMessages() bool {
	return p.PublisherBatch.HasPendingMessages()
}

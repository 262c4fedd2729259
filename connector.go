package cdc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamhouse/go-maxscale-cdc/config"
	"github.com/streamhouse/go-maxscale-cdc/internal/sliceutil"
	"github.com/streamhouse/go-maxscale-cdc/rabbitmq"
	"github.com/streamhouse/go-maxscale-cdc/rabbitmq/publisher"
	"golang.org/x/sync/errgroup"
)

// Handler receives every decoded record and returns the messages to publish
// to RabbitMQ. Returning nil skips publishing; when no RabbitMQ sink is
// configured the return value is ignored entirely.
type Handler func(msg *Message) []rabbitmq.PublishMessage

type Connector interface {
	// Start connects (unless a transport was injected), runs the handshake
	// and drives the decode loop until the context is cancelled or a fatal
	// stream condition occurs. It always releases the socket before
	// returning.
	Start(ctx context.Context) error
	WaitUntilReady(ctx context.Context) error
	Close()
}

type connector struct {
	cfg             *config.Connector
	handler         Handler
	logger          *slog.Logger
	format          Format
	transport       Transport
	client          rabbitmq.Client
	pub             *publisher.Publisher
	responseHandler rabbitmq.ResponseHandler
	metric          *streamMetric
	collectors      []prometheus.Collector
	routingKey      string
	sleep           func(time.Duration)
	readyCh         chan struct{}
	readyOnce       sync.Once
	closeOnce       sync.Once

	mu   sync.Mutex
	live Transport
}

func NewConnector(cfg config.Connector, handler Handler, options ...Option) (Connector, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	cfg.SetDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, err := ParseFormat(cfg.CDC.Format)
	if err != nil {
		return nil, err
	}

	c := &connector{
		cfg:     &cfg,
		handler: handler,
		logger:  slog.Default(),
		format:  format,
		sleep:   time.Sleep,
		readyCh: make(chan struct{}),
	}
	Options(options).Apply(c)
	c.metric = newStreamMetric(cfg.CDC.Table)

	if cfg.RabbitMQ.Enabled() {
		c.routingKey, err = renderRoutingKey(cfg.RabbitMQ.RoutingKeyTemplate, cfg.CDC.Table, format)
		if err != nil {
			return nil, fmt.Errorf("routing key template: %w", err)
		}

		client, err := rabbitmq.NewClient(&cfg, c.logger)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq new client: %w", err)
		}
		c.client = client

		if c.responseHandler == nil {
			c.responseHandler = &rabbitmq.DefaultResponseHandler{Logger: c.logger}
		}

		pub, err := publisher.NewPublisher(client, &cfg, c.responseHandler, c.logger)
		if err != nil {
			c.logger.Error("rabbitmq new publisher", "error", err)
			_ = client.Close()
			return nil, err
		}
		c.pub = &pub
		c.collectors = append(c.collectors, pub.GetMetric().PrometheusCollectors()...)
	}

	return c, nil
}

func (c *connector) Start(ctx context.Context) error {
	t := c.transport
	if t == nil {
		session, err := Connect(ctx, c.cfg.CDC.Host, c.cfg.CDC.Port, c.cfg.CDC.ConnectTimeout)
		if err != nil {
			return err
		}
		t = session
	}
	c.setLive(t)
	defer func() {
		c.setLive(nil)
		_ = t.Close()
	}()

	hs := &handshake{
		transport: t,
		logger:    c.logger,
		cfg:       &c.cfg.CDC,
		format:    c.format,
	}
	if err := hs.run(); err != nil {
		return err
	}
	c.logger.Info("stream started",
		"table", c.cfg.CDC.Table,
		"format", string(c.format),
		"host", c.cfg.CDC.Host,
		"port", c.cfg.CDC.Port)

	if c.pub != nil {
		c.pub.StartBatch()
	}
	c.signalReady()

	group, ctx := errgroup.WithContext(ctx)
	if c.cfg.Metric.Port > 0 {
		group.Go(func() error {
			return c.serveMetrics(ctx)
		})
	}
	group.Go(func() error {
		d := &streamDecoder{
			transport:     t,
			logger:        c.logger,
			metric:        c.metric,
			emit:          c.dispatch,
			sleep:         c.sleep,
			stream:        c.cfg.CDC.Table,
			blockSize:     c.cfg.CDC.ReadBlockSize,
			idleThreshold: c.cfg.CDC.IdleThreshold,
			readTimeout:   c.cfg.CDC.ReadTimeout,
			pollInterval:  c.cfg.CDC.PollInterval,
			lenient:       c.cfg.CDC.LenientDecode,
		}
		if c.format.IsAvro() {
			return d.runRaw(ctx)
		}
		return d.runJSON(ctx)
	})
	return group.Wait()
}

func (c *connector) WaitUntilReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *connector) Close() {
	c.closeOnce.Do(func() {
		c.signalReady()
		c.mu.Lock()
		live := c.live
		c.mu.Unlock()
		if live != nil {
			// Unblocks a decoder waiting in Receive.
			_ = live.Close()
		}
		if c.pub != nil {
			c.pub.Close()
		}
		if c.client != nil {
			if err := c.client.Close(); err != nil {
				c.logger.Error("rabbitmq client close", "error", err)
			}
		}
	})
}

// dispatch hands one decoded record to the handler and forwards its output
// to the RabbitMQ sink when one is configured.
func (c *connector) dispatch(msg *Message) error {
	events := c.handler(msg)
	if len(events) == 0 || c.pub == nil {
		return nil
	}

	for i := range events {
		if events[i].RoutingKey == "" {
			events[i].RoutingKey = c.routingKey
		}
	}

	batchSizeLimit := c.cfg.RabbitMQ.PublisherBatchSize
	if len(events) > batchSizeLimit {
		for _, chunk := range sliceutil.ChunkWithSize(events, batchSizeLimit) {
			c.pub.Produce(msg.Received, chunk)
		}
		return nil
	}
	c.pub.Produce(msg.Received, events)
	return nil
}

func (c *connector) serveMetrics(ctx context.Context) error {
	registry := prometheus.NewRegistry()
	for _, col := range c.metric.PrometheusCollectors() {
		if err := registry.Register(col); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	for _, col := range c.collectors {
		if err := registry.Register(col); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.cfg.Metric.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	c.logger.Info("metrics listener started", "port", c.cfg.Metric.Port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *connector) setLive(t Transport) {
	c.mu.Lock()
	c.live = t
	c.mu.Unlock()
}

func (c *connector) signalReady() {
	c.readyOnce.Do(func() {
		close(c.readyCh)
	})
}

// renderRoutingKey resolves the routing key for this session once, at
// startup; a session streams exactly one table so there is nothing to
// resolve per message.
func renderRoutingKey(tpl, table string, format Format) (string, error) {
	parts := strings.SplitN(table, ".", 3)
	data := struct {
		Database string
		Table    string
		Format   string
	}{
		Database: parts[0],
		Table:    parts[1],
		Format:   string(format),
	}

	t, err := template.New("routingKey").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

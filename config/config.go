package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors. All of them are reported before any network activity.
var (
	ErrInvalidPort      = errors.New("port must be in range 1-65535")
	ErrInvalidFormat    = errors.New("format must be JSON or AVRO")
	ErrInvalidTable     = errors.New("table must have the form DATABASE.TABLE[.VERSION]")
	ErrInvalidUUID      = errors.New("client uuid exceeds 32 characters")
	ErrInvalidBatchSize = errors.New("publisher batch size must not be negative")
)

// maxUUIDLen is the server-side limit on the registered client identifier.
const maxUUIDLen = 32

// tablePattern matches the requested object identifier DATABASE.TABLE[.VERSION].
var tablePattern = regexp.MustCompile(`^[^.\s]+\.[^.\s]+(\.[^.\s]+)?$`)

// CDC holds the session configuration for one stream. Immutable once the
// handshake begins.
type CDC struct {
	Host             string        `yaml:"host" mapstructure:"host"`
	Port             int           `yaml:"port" mapstructure:"port"`
	User             string        `yaml:"user" mapstructure:"user"`
	Password         string        `yaml:"password" mapstructure:"password"`
	ClientUUID       string        `yaml:"clientUUID" mapstructure:"clientUUID"`
	Format           string        `yaml:"format" mapstructure:"format"`
	Table            string        `yaml:"table" mapstructure:"table"`
	ConnectTimeout   time.Duration `yaml:"connectTimeout" mapstructure:"connectTimeout"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout" mapstructure:"handshakeTimeout"`
	ReadTimeout      time.Duration `yaml:"readTimeout" mapstructure:"readTimeout"`
	PollInterval     time.Duration `yaml:"pollInterval" mapstructure:"pollInterval"`
	ReadBlockSize    int           `yaml:"readBlockSize" mapstructure:"readBlockSize"`
	IdleThreshold    int           `yaml:"idleThreshold" mapstructure:"idleThreshold"`
	LenientDecode    bool          `yaml:"lenientDecode" mapstructure:"lenientDecode"`
}

type MetricConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

type TLSConfig struct {
	CACert   []byte `yaml:"caCert" mapstructure:"caCert"`
	Cert     []byte `yaml:"cert" mapstructure:"cert"`
	Key      []byte `yaml:"key" mapstructure:"key"`
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

type ExchangeConfig struct {
	Arguments  map[string]any `yaml:"arguments" mapstructure:"arguments"`
	Name       string         `yaml:"name" mapstructure:"name"`
	Type       string         `yaml:"type" mapstructure:"type"`
	Durable    bool           `yaml:"durable" mapstructure:"durable"`
	AutoDelete bool           `yaml:"autoDelete" mapstructure:"autoDelete"`
}

type QueueConfig struct {
	Arguments  map[string]any `yaml:"arguments" mapstructure:"arguments"`
	Name       string         `yaml:"name" mapstructure:"name"`
	Bindings   []string       `yaml:"bindings" mapstructure:"bindings"`
	Durable    bool           `yaml:"durable" mapstructure:"durable"`
	AutoDelete bool           `yaml:"autoDelete" mapstructure:"autoDelete"`
	Exclusive  bool           `yaml:"exclusive" mapstructure:"exclusive"`
	NoWait     bool           `yaml:"noWait" mapstructure:"noWait"`
}

// RabbitMQ configures the optional sink that decoded records are forwarded
// to. The sink is active only when URL is set.
type RabbitMQ struct {
	Exchange                     ExchangeConfig `yaml:"exchange" mapstructure:"exchange"`
	ConnectionName               string         `yaml:"connectionName" mapstructure:"connectionName"`
	PublisherBatchBytes          string         `yaml:"publisherBatchBytes" mapstructure:"publisherBatchBytes"`
	RoutingKeyTemplate           string         `yaml:"routingKeyTemplate" mapstructure:"routingKeyTemplate"`
	URL                          string         `yaml:"url" mapstructure:"url"`
	TLS                          TLSConfig      `yaml:"tls" mapstructure:"tls"`
	Queues                       []QueueConfig  `yaml:"queues" mapstructure:"queues"`
	Heartbeat                    time.Duration  `yaml:"heartbeat" mapstructure:"heartbeat"`
	PublisherBatchSize           int            `yaml:"publisherBatchSize" mapstructure:"publisherBatchSize"`
	ConnectionTimeout            time.Duration  `yaml:"connectionTimeout" mapstructure:"connectionTimeout"`
	PublisherBatchTickerDuration time.Duration  `yaml:"publisherBatchTickerDuration" mapstructure:"publisherBatchTickerDuration"`
	PublisherMaxRetries          int            `yaml:"publisherMaxRetries" mapstructure:"publisherMaxRetries"`
	ReconnectInterval            time.Duration  `yaml:"reconnectInterval" mapstructure:"reconnectInterval"`
	ReconnectMaxInterval         time.Duration  `yaml:"reconnectMaxInterval" mapstructure:"reconnectMaxInterval"`
	ReconnectMaxElapsed          time.Duration  `yaml:"reconnectMaxElapsed" mapstructure:"reconnectMaxElapsed"`
}

// Enabled reports whether the RabbitMQ sink should be wired up.
func (r *RabbitMQ) Enabled() bool {
	return r.URL != ""
}

type Connector struct {
	RabbitMQ RabbitMQ     `yaml:"rabbitmq" mapstructure:"rabbitmq"`
	CDC      CDC          `yaml:"cdc" mapstructure:"cdc"`
	Metric   MetricConfig `yaml:"metric" mapstructure:"metric"`
}

func (c *Connector) SetDefault() {
	if c.CDC.Host == "" {
		c.CDC.Host = "localhost"
	}
	if c.CDC.Port == 0 {
		c.CDC.Port = 4001
	}
	if c.CDC.Format == "" {
		c.CDC.Format = "JSON"
	}
	if c.CDC.ClientUUID == "" {
		// The opaque token the reference client always registers with.
		c.CDC.ClientUUID = "XXX-YYY_YYY"
	}
	if c.CDC.ConnectTimeout == 0 {
		c.CDC.ConnectTimeout = 10 * time.Second
	}
	if c.CDC.HandshakeTimeout == 0 {
		c.CDC.HandshakeTimeout = 5 * time.Second
	}
	if c.CDC.ReadTimeout == 0 {
		// A bounded read keeps the idle policy live; a stalled server must
		// not park the decode loop forever.
		c.CDC.ReadTimeout = 1 * time.Second
	}
	if c.CDC.PollInterval == 0 {
		c.CDC.PollInterval = 1 * time.Second
	}
	if c.CDC.ReadBlockSize == 0 {
		c.CDC.ReadBlockSize = 1024
	}
	if c.CDC.IdleThreshold == 0 {
		c.CDC.IdleThreshold = 5
	}

	if !c.RabbitMQ.Enabled() {
		return
	}
	if c.RabbitMQ.ConnectionTimeout == 0 {
		c.RabbitMQ.ConnectionTimeout = 30 * time.Second
	}
	if c.RabbitMQ.Heartbeat == 0 {
		c.RabbitMQ.Heartbeat = 10 * time.Second
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.Exchange.Name == "" {
		c.RabbitMQ.Exchange.Name = "cdc.events"
	}
	c.RabbitMQ.Exchange.Durable = true
	if c.RabbitMQ.PublisherBatchSize == 0 {
		c.RabbitMQ.PublisherBatchSize = 2000
	}
	if c.RabbitMQ.PublisherBatchBytes == "" {
		c.RabbitMQ.PublisherBatchBytes = "1mb"
	}
	if c.RabbitMQ.PublisherBatchTickerDuration == 0 {
		c.RabbitMQ.PublisherBatchTickerDuration = 10 * time.Second
	}
	if c.RabbitMQ.PublisherMaxRetries == 0 {
		c.RabbitMQ.PublisherMaxRetries = math.MaxInt
	}
	if c.RabbitMQ.ReconnectInterval == 0 {
		c.RabbitMQ.ReconnectInterval = 1 * time.Second
	}
	if c.RabbitMQ.ReconnectMaxInterval == 0 {
		c.RabbitMQ.ReconnectMaxInterval = 30 * time.Second
	}
	if c.RabbitMQ.RoutingKeyTemplate == "" {
		c.RabbitMQ.RoutingKeyTemplate = "{{.Database}}.{{.Table}}.{{.Format}}"
	}
	for i := range c.RabbitMQ.Queues {
		c.RabbitMQ.Queues[i].Durable = true
	}
}

// Validate rejects malformed session configuration before any network
// activity is attempted.
func (c *Connector) Validate() error {
	if c.CDC.Port < 1 || c.CDC.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.CDC.Port)
	}
	if c.CDC.Format != "JSON" && c.CDC.Format != "AVRO" {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.CDC.Format)
	}
	if !tablePattern.MatchString(c.CDC.Table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, c.CDC.Table)
	}
	if len(c.CDC.ClientUUID) > maxUUIDLen {
		return fmt.Errorf("%w: %q", ErrInvalidUUID, c.CDC.ClientUUID)
	}
	if c.RabbitMQ.Enabled() && c.RabbitMQ.PublisherBatchSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.RabbitMQ.PublisherBatchSize)
	}
	return nil
}

// ReadConfigYaml loads a Connector configuration from a YAML file. Defaults
// are not applied; callers run SetDefault afterwards.
func ReadConfigYaml(path string) (*Connector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Connector
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

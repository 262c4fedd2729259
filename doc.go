// Package cdc implements a client for the MariaDB MaxScale CDC (Change Data
// Capture) wire protocol. It authenticates against a CDC listener, registers
// the client, requests a DATABASE.TABLE[.VERSION] stream and then decodes
// the resulting unbounded byte stream, optionally forwarding every decoded
// record to RabbitMQ.
//
// # Basic usage
//
//	cfg := config.Connector{CDC: config.CDC{Host: "127.0.0.1", Table: "test.users"}}
//	conn, err := cdc.NewConnector(cfg, handler)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//	if err := conn.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// The handler receives a [Message] for every decoded record (one JSON value
// in JSON mode, one raw chunk in AVRO mode) and returns the list of
// [rabbitmq.PublishMessage] values to publish. When no RabbitMQ sink is
// configured the return value is ignored, so a plain consumer can simply
// return nil.
//
// # Protocol
//
// The handshake is three sequential sends: the auth token produced by
// [EncodeAuth], "REGISTER UUID=<id>, TYPE=<JSON|AVRO>" and
// "REQUEST-DATA <stream>". The server's replies to the first two commands
// are read and discarded without inspection; any reply, or none at all,
// means proceed. Only a transport failure aborts the handshake.
//
// # Idle policy
//
// A stream that stays silent for IdleThreshold consecutive receives is
// declared dead and Start returns [ErrIdleExhausted]. There is no automatic
// reconnect; simplicity over resilience.
//
// # Metrics
//
// Stream and publisher counters are exposed as Prometheus collectors under
// the "go_maxscale_cdc" namespace, served on config.Metric.Port when set.
package cdc

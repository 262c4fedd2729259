package cdc

import "errors"

// Errors returned by session and stream operations.
var (
	// ErrConnectionClosed is returned when the server closes the connection.
	// It is distinct from an empty receive, which only means "no data yet".
	ErrConnectionClosed = errors.New("connection closed by server")
	// ErrIdleExhausted is returned when the configured number of consecutive
	// empty receives is reached. The stream is considered unrecoverable at
	// this layer; there is no automatic reconnect.
	ErrIdleExhausted = errors.New("server idle limit exhausted")
	// ErrInvalidFormat is returned for a format selector other than JSON or AVRO.
	ErrInvalidFormat = errors.New("invalid stream format")
)

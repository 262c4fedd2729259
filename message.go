package cdc

import "time"

// Message is one decoded unit of the stream: a single JSON record in JSON
// mode, or one opaque chunk of Avro bytes in AVRO mode. Data always holds
// the exact bytes consumed from the wire, in order, never reordered or
// duplicated.
type Message struct {
	Received time.Time
	Stream   string
	Format   Format
	Data     []byte
}

func newJSONMessage(stream string, data []byte) *Message {
	return &Message{
		Received: time.Now(),
		Stream:   stream,
		Format:   FormatJSON,
		Data:     data,
	}
}

func newRawMessage(stream string, data []byte) *Message {
	return &Message{
		Received: time.Now(),
		Stream:   stream,
		Format:   FormatAvro,
		Data:     data,
	}
}

package cdc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streamhouse/go-maxscale-cdc/internal/jsonframe"
)

// streamDecoder turns the raw byte stream that follows the handshake into a
// sequence of Messages. One decoder per session; it owns the receive buffer
// and the idle counter, and runs until the context is cancelled, the server
// closes the connection, or the idle budget is exhausted.
type streamDecoder struct {
	transport     Transport
	logger        *slog.Logger
	metric        *streamMetric
	emit          func(*Message) error
	sleep         func(time.Duration)
	stream        string
	blockSize     int
	idleThreshold int
	readTimeout   time.Duration
	pollInterval  time.Duration
	lenient       bool

	buf  []byte
	idle int
}

// runJSON decodes concatenated self-delimiting JSON records. A single
// receive may carry several records, and a record may span many receives;
// the buffer keeps exactly the unconsumed trailing bytes between parses.
func (d *streamDecoder) runJSON(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		for len(d.buf) > 0 {
			rec, consumed, err := jsonframe.Next(d.buf)
			if errors.Is(err, jsonframe.ErrIncomplete) {
				break
			}
			if err != nil {
				if d.lenient {
					// Original client behavior: corruption is
					// indistinguishable from truncation, keep reading.
					break
				}
				return fmt.Errorf("decode stream: %w", err)
			}
			d.buf = d.buf[consumed:]
			d.metric.AddRecord()
			if err := d.emit(newJSONMessage(d.stream, rec)); err != nil {
				return err
			}
		}

		chunk, err := d.transport.Receive(d.blockSize, d.readTimeout)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			if err := d.countIdle(); err != nil {
				return err
			}
			continue
		}
		d.idle = 0
		d.metric.AddBytes(len(chunk))
		d.buf = append(d.buf, chunk...)
	}
}

// runRaw forwards the byte stream verbatim, one chunk per poll. No framing
// is attempted; payload boundaries are the consumer's concern. The loop
// never blocks longer than one poll interval, trading responsiveness for
// not stalling on a dead connection.
func (d *streamDecoder) runRaw(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		chunk, err := d.transport.Poll(d.blockSize)
		if err != nil {
			return err
		}
		if len(chunk) > 0 {
			d.idle = 0
			d.metric.AddBytes(len(chunk))
			d.metric.AddRecord()
			if err := d.emit(newRawMessage(d.stream, chunk)); err != nil {
				return err
			}
			continue
		}
		if err := d.countIdle(); err != nil {
			return err
		}
		d.sleep(d.pollInterval)
	}
}

func (d *streamDecoder) countIdle() error {
	d.idle++
	d.metric.AddIdle()
	d.logger.Debug("empty receive", "idle", d.idle, "threshold", d.idleThreshold)
	if d.idle >= d.idleThreshold {
		return fmt.Errorf("%w: %d consecutive empty receives", ErrIdleExhausted, d.idle)
	}
	return nil
}

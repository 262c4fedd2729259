package cdc

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/streamhouse/go-maxscale-cdc/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport replays a fixed sequence of receive results and records
// every send. An exhausted script keeps returning empty results, which is
// exactly what an idle connection looks like.
type scriptedTransport struct {
	sent    [][]byte
	chunks  [][]byte
	errAt   map[int]error // receive index -> error returned instead of data
	sendErr error
	pos     int
	closed  bool
}

func (t *scriptedTransport) Send(p []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, append([]byte(nil), p...))
	return nil
}

func (t *scriptedTransport) Receive(int, time.Duration) ([]byte, error) {
	return t.next()
}

func (t *scriptedTransport) Poll(int) ([]byte, error) {
	return t.next()
}

func (t *scriptedTransport) next() ([]byte, error) {
	defer func() { t.pos++ }()
	if err, ok := t.errAt[t.pos]; ok {
		return nil, err
	}
	if t.pos >= len(t.chunks) {
		return nil, nil
	}
	return t.chunks[t.pos], nil
}

func (t *scriptedTransport) Close() error {
	t.closed = true
	return nil
}

func testCDCConfig() config.CDC {
	cfg := config.Connector{CDC: config.CDC{
		User:             "massi",
		Password:         "massi",
		Table:            "shop.orders",
		HandshakeTimeout: 10 * time.Millisecond,
	}}
	cfg.SetDefault()
	return cfg.CDC
}

func TestHandshake_SendsProtocolSequence(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{chunks: [][]byte{[]byte("OK\n"), []byte("OK\n")}}
	cfg := testCDCConfig()
	hs := &handshake{transport: transport, logger: slog.Default(), cfg: &cfg, format: FormatJSON}

	require.NoError(t, hs.run())

	require.Len(t, transport.sent, 3)
	assert.Equal(t, EncodeAuth("massi", "massi"), string(transport.sent[0]))
	assert.Equal(t, "REGISTER UUID=XXX-YYY_YYY, TYPE=JSON", string(transport.sent[1]))
	assert.Equal(t, "REQUEST-DATA shop.orders", string(transport.sent[2]))
}

func TestHandshake_AvroType(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{}
	cfg := testCDCConfig()
	cfg.ClientUUID = "client-42"
	hs := &handshake{transport: transport, logger: slog.Default(), cfg: &cfg, format: FormatAvro}

	require.NoError(t, hs.run())
	assert.Equal(t, "REGISTER UUID=client-42, TYPE=AVRO", string(transport.sent[1]))
}

// TestHandshake_RepliesDiscardedNotValidated pins the lenient contract: the
// handshake proceeds whatever the server replies, including an error line or
// nothing at all.
func TestHandshake_RepliesDiscardedNotValidated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks [][]byte
	}{
		{name: "ack replies", chunks: [][]byte{[]byte("OK\n"), []byte("OK\n")}},
		{name: "error replies", chunks: [][]byte{[]byte("ERR access denied\n"), []byte("ERR\n")}},
		{name: "silent server", chunks: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			transport := &scriptedTransport{chunks: tt.chunks}
			cfg := testCDCConfig()
			hs := &handshake{transport: transport, logger: slog.Default(), cfg: &cfg, format: FormatJSON}
			assert.NoError(t, hs.run())
		})
	}
}

func TestHandshake_SendFailureIsFatal(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{sendErr: errors.New("broken pipe")}
	cfg := testCDCConfig()
	hs := &handshake{transport: transport, logger: slog.Default(), cfg: &cfg, format: FormatJSON}

	err := hs.run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authenticate")
}

func TestHandshake_ReplyIOFailureIsFatal(t *testing.T) {
	t.Parallel()

	transport := &scriptedTransport{errAt: map[int]error{0: ErrConnectionClosed}}
	cfg := testCDCConfig()
	hs := &handshake{transport: transport, logger: slog.Default(), cfg: &cfg, format: FormatJSON}

	err := hs.run()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestHandshake_TracksSessionState(t *testing.T) {
	t.Parallel()

	// No real socket; only the state transitions are of interest here.
	session := &Session{state: StateConnected}
	cfg := testCDCConfig()
	hs := &handshake{transport: stateRecorder{session}, logger: slog.Default(), cfg: &cfg, format: FormatJSON}

	require.NoError(t, hs.run())
	assert.Equal(t, StateStreaming, session.State())
}

// stateRecorder wires a Session's state tracking onto a no-op transport.
type stateRecorder struct {
	session *Session
}

func (s stateRecorder) Send([]byte) error                         { return nil }
func (s stateRecorder) Receive(int, time.Duration) ([]byte, error) { return nil, nil }
func (s stateRecorder) Poll(int) ([]byte, error)                  { return nil, nil }
func (s stateRecorder) Close() error                              { return nil }
func (s stateRecorder) setState(state State)                      { s.session.setState(state) }

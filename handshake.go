package cdc

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/streamhouse/go-maxscale-cdc/config"
)

// handshake drives the three-step protocol exchange. Strictly sequential:
// authenticate, register, request data. Any I/O failure here aborts the
// whole session; retries belong to the stream decoder, and only once the
// stream has started.
type handshake struct {
	transport Transport
	logger    *slog.Logger
	cfg       *config.CDC
	format    Format
}

func (h *handshake) run() error {
	if err := h.authenticate(); err != nil {
		return err
	}
	if err := h.register(); err != nil {
		return err
	}
	return h.requestData()
}

// authenticate sends the credential token as the very first bytes on the
// connection and discards the server's reply.
func (h *handshake) authenticate() error {
	token := EncodeAuth(h.cfg.User, h.cfg.Password)
	if err := h.transport.Send([]byte(token)); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if err := h.discardReply("authenticate"); err != nil {
		return err
	}
	h.setState(StateAuthenticated)
	return nil
}

func (h *handshake) register() error {
	cmd := fmt.Sprintf("REGISTER UUID=%s, TYPE=%s", h.cfg.ClientUUID, h.format)
	if err := h.transport.Send([]byte(cmd)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := h.discardReply("register"); err != nil {
		return err
	}
	h.setState(StateRegistered)
	return nil
}

// requestData consumes no reply; the server starts streaming immediately.
func (h *handshake) requestData() error {
	cmd := "REQUEST-DATA " + h.cfg.Table
	if err := h.transport.Send([]byte(cmd)); err != nil {
		return fmt.Errorf("request data: %w", err)
	}
	h.setState(StateStreaming)
	return nil
}

// discardReply reads one reply chunk and drops it without inspection. The
// server does send ack/error lines, but the protocol contract this client
// implements is the lenient one: any bytes, or a timeout, mean "proceed".
// Only a hard transport failure is fatal.
func (h *handshake) discardReply(step string) error {
	reply, err := h.transport.Receive(h.cfg.ReadBlockSize, h.replyTimeout())
	if err != nil {
		return fmt.Errorf("%s reply: %w", step, err)
	}
	if len(reply) > 0 {
		h.logger.Debug("server reply discarded", "step", step, "bytes", len(reply))
	}
	return nil
}

func (h *handshake) replyTimeout() time.Duration {
	if h.cfg.HandshakeTimeout > 0 {
		return h.cfg.HandshakeTimeout
	}
	return 5 * time.Second
}

func (h *handshake) setState(state State) {
	if st, ok := h.transport.(stateTracker); ok {
		st.setState(state)
	}
}

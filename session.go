package cdc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"
)

// State tracks the protocol phase of a session.
type State int32

const (
	StateConnected State = iota
	StateAuthenticated
	StateRegistered
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	case StateRegistered:
		return "registered"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the byte-level interface the handshake and decoder run on.
// *Session is the production implementation; tests inject fakes.
//
// Receive blocks for up to timeout (forever when timeout <= 0) and returns
// an empty, nil-error result when the deadline expires with no data. Poll
// never blocks. Both distinguish "no data yet" (empty result) from a closed
// connection (ErrConnectionClosed). Bytes are consumed in FIFO order.
type Transport interface {
	Send(p []byte) error
	Receive(max int, timeout time.Duration) ([]byte, error)
	Poll(max int) ([]byte, error)
	Close() error
}

// stateTracker is implemented by transports that track protocol state.
// Fake transports in tests do not need to.
type stateTracker interface {
	setState(State)
}

// Session owns one TCP connection to a CDC listener. It is not safe for
// concurrent use; the protocol is a single logical flow of control.
type Session struct {
	conn  net.Conn
	state State
}

// Connect dials the CDC listener. Failure to establish the transport is
// fatal and surfaced immediately; there is no retry at this layer.
func Connect(ctx context.Context, host string, port int, timeout time.Duration) (*Session, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	return &Session{conn: conn, state: StateConnected}, nil
}

// State returns the current protocol phase.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(state State) {
	s.state = state
}

// Send writes p in full. A partial or failed write is an error.
func (s *Session) Send(p []byte) error {
	if s.state == StateClosed {
		return ErrConnectionClosed
	}
	if _, err := s.conn.Write(p); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Receive reads up to max bytes, blocking for at most timeout. A timeout
// with no data is not an error.
func (s *Session) Receive(max int, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		_ = s.conn.SetReadDeadline(time.Time{})
	}
	return s.read(max)
}

// Poll reads up to max bytes without blocking: whatever is already in the
// OS receive buffer, or nothing.
func (s *Session) Poll(max int) ([]byte, error) {
	_ = s.conn.SetReadDeadline(time.Now())
	return s.read(max)
}

func (s *Session) read(max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := s.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, os.ErrDeadlineExceeded):
		return nil, nil
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		s.state = StateClosed
		return nil, ErrConnectionClosed
	default:
		return nil, fmt.Errorf("receive: %w", err)
	}
}

// Close releases the socket. Safe to call on every exit path.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	return s.conn.Close()
}

// Package integration runs the client against an in-process fake CDC server
// speaking the real wire protocol over a loopback TCP socket.
package integration

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// FakeCDCServer accepts a single client, performs the server side of the
// handshake and then streams scripted payload chunks.
type FakeCDCServer struct {
	listener net.Listener
	payload  [][]byte
	interval time.Duration

	mu          sync.Mutex
	authToken   string
	registerCmd string
	requestCmd  string
	errs        []error
}

func NewFakeCDCServer(payload [][]byte, interval time.Duration) (*FakeCDCServer, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &FakeCDCServer{
		listener: listener,
		payload:  payload,
		interval: interval,
	}
	go s.serve()
	return s, nil
}

func (s *FakeCDCServer) Host() string {
	return "127.0.0.1"
}

func (s *FakeCDCServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// AuthToken returns the first bytes the client sent on the connection.
func (s *FakeCDCServer) AuthToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken
}

func (s *FakeCDCServer) RegisterCmd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCmd
}

func (s *FakeCDCServer) RequestCmd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCmd
}

func (s *FakeCDCServer) Errs() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs
}

func (s *FakeCDCServer) Close() error {
	return s.listener.Close()
}

func (s *FakeCDCServer) serve() {
	conn, err := s.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	// Auth token, then ack.
	token, err := s.readCommand(conn)
	if err != nil {
		s.fail(fmt.Errorf("read auth: %w", err))
		return
	}
	s.set(&s.authToken, token)
	if _, err := conn.Write([]byte("OK\n")); err != nil {
		s.fail(err)
		return
	}

	// REGISTER, then ack.
	register, err := s.readCommand(conn)
	if err != nil {
		s.fail(fmt.Errorf("read register: %w", err))
		return
	}
	s.set(&s.registerCmd, register)
	if !strings.HasPrefix(register, "REGISTER UUID=") {
		s.fail(fmt.Errorf("unexpected register command: %q", register))
		return
	}
	if _, err := conn.Write([]byte("OK\n")); err != nil {
		s.fail(err)
		return
	}

	// REQUEST-DATA, no ack: stream immediately.
	request, err := s.readCommand(conn)
	if err != nil {
		s.fail(fmt.Errorf("read request-data: %w", err))
		return
	}
	s.set(&s.requestCmd, request)
	if !strings.HasPrefix(request, "REQUEST-DATA ") {
		s.fail(fmt.Errorf("unexpected request command: %q", request))
		return
	}

	for _, chunk := range s.payload {
		if _, err := conn.Write(chunk); err != nil {
			s.fail(err)
			return
		}
		time.Sleep(s.interval)
	}

	// Stay connected but silent; the client's idle policy decides when to
	// give up.
	buf := make([]byte, 1)
	_, _ = conn.Read(buf)
}

// readCommand reads one command. Commands carry no delimiter, so a single
// read is the protocol's own framing assumption for the handshake.
func (s *FakeCDCServer) readCommand(conn net.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

func (s *FakeCDCServer) set(dst *string, value string) {
	s.mu.Lock()
	*dst = value
	s.mu.Unlock()
}

func (s *FakeCDCServer) fail(err error) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

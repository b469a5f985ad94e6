package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultMockInterval is the pause between commands sent by MockServer.
const DefaultMockInterval = 5 * time.Second

// DefaultMockSequence returns the command cycle sent by MockServer:
// pink, on, sky blue, off.
func DefaultMockSequence() []Command {
	return []Command{
		Color(0xFF69B4),
		On(),
		Color(0x00BFFF),
		Off(),
	}
}

// MockServerConfig configures a MockServer.
type MockServerConfig struct {
	// Address to listen on, e.g. "127.0.0.1:9999" or "127.0.0.1:0".
	Address string

	// Interval between commands. Zero uses DefaultMockInterval.
	Interval time.Duration

	// Sequence is cycled forever on each connection. Empty uses
	// DefaultMockSequence.
	Sequence []Command

	// StopOnDisconnect shuts the server down once any peer disconnects.
	StopOnDisconnect bool
}

// MockServer is a development upstream that pushes a fixed command cycle to
// every connected client, back to back without delimiters.
type MockServer struct {
	cfg      MockServerConfig
	listener net.Listener
	payloads [][]byte
	logger   Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// NewMockServer starts listening on cfg.Address. Call Serve to accept clients.
func NewMockServer(cfg MockServerConfig) (*MockServer, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMockInterval
	}
	if len(cfg.Sequence) == 0 {
		cfg.Sequence = DefaultMockSequence()
	}

	payloads := make([][]byte, 0, len(cfg.Sequence))
	for _, cmd := range cfg.Sequence {
		data, err := cmd.Encode()
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, data)
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("mock upstream: listen %s: %w", cfg.Address, err)
	}

	return &MockServer{
		cfg:      cfg,
		listener: listener,
		payloads: payloads,
		done:     make(chan struct{}),
	}, nil
}

// SetLogger sets the logger for the server.
func (s *MockServer) SetLogger(logger Logger) {
	s.logger = logger
}

// Addr returns the address the server listens on.
func (s *MockServer) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is cancelled, Close is called, or a
// peer disconnects with StopOnDisconnect set. It waits for all connection
// handlers before returning.
func (s *MockServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	defer s.wg.Wait()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
			}
			return fmt.Errorf("mock upstream: accept: %w", err)
		}

		if s.logger != nil {
			s.logger.Info("client connected", "remote", conn.RemoteAddr().String())
		}

		s.wg.Add(1)
		go s.handle(conn)
	}
}

// Close stops the server and disconnects all clients.
func (s *MockServer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.listener.Close()
	})
}

// Done is closed when the server stops.
func (s *MockServer) Done() <-chan struct{} {
	return s.done
}

// handle pushes the command cycle to one client until it goes away.
func (s *MockServer) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		_, _ = io.Copy(io.Discard, conn)
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		payload := s.payloads[i%len(s.payloads)]
		if _, err := conn.Write(payload); err != nil {
			if !errors.Is(err, net.ErrClosed) && s.logger != nil {
				s.logger.Warn("write to client failed", "error", err)
			}
			s.peerDisconnected()
			return
		}
		if s.logger != nil {
			s.logger.Debug("sent command", "payload", string(payload))
		}

		select {
		case <-s.done:
			return
		case <-peerGone:
			s.peerDisconnected()
			return
		case <-ticker.C:
		}
	}
}

func (s *MockServer) peerDisconnected() {
	if s.logger != nil {
		s.logger.Info("client disconnected")
	}
	if s.cfg.StopOnDisconnect {
		s.Close()
	}
}

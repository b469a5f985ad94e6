package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/flashlight-core/internal/broadcast"
	"github.com/nerrad567/flashlight-core/internal/device"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
)

// WebSocket defaults used when the config leaves a value at zero.
const (
	defaultMaxMessageSize = 8192
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second

	// wsCloseMessage ends an observer session when sent as a text message.
	wsCloseMessage = "close"
)

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// WSSink delivers state snapshots to one WebSocket observer.
//
// Deliver writes synchronously under a write deadline, so a stalled
// browser fails the write instead of blocking the broadcaster forever.
type WSSink struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

// NewWSSink wraps an upgraded connection.
func NewWSSink(conn *websocket.Conn, writeWait time.Duration) *WSSink {
	return &WSSink{
		id:        "ws:" + uuid.NewString(),
		conn:      conn,
		writeWait: writeWait,
	}
}

// ID returns the unique observer ID.
func (s *WSSink) ID() string {
	return s.id
}

// Deliver sends snap as {"is_turned_on": bool, "color": "#rrggbb"}.
func (s *WSSink) Deliver(ctx context.Context, snap device.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	deadline := time.Now().Add(s.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below
	s.conn.SetWriteDeadline(deadline)
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket %s: %w", s.id, err)
	}
	return nil
}

// Close closes the underlying connection. Safe to call more than once.
func (s *WSSink) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// handleWebSocket upgrades the request and keeps the observer registered
// until the peer leaves, sends "close", or the broadcaster drops it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	timing := wsTimingFrom(s.wsCfg)
	sink := NewWSSink(conn, timing.pongTimeout)
	member := s.observerSink(sink)

	registry := s.broadcaster.Registry()
	registry.Register(member)
	s.logger.Debug("observer connected", "id", sink.ID(), "observers", registry.Len())

	defer func() {
		registry.Unregister(member)
		if closer, ok := member.(io.Closer); ok {
			//nolint:errcheck // connection is going away either way
			closer.Close()
		}
		s.logger.Debug("observer disconnected", "id", sink.ID(), "observers", registry.Len())
	}()

	done := make(chan struct{})
	defer close(done)
	go pingLoop(conn, timing, done)

	s.readLoop(sink, timing)
}

// observerSink wraps sink in a QueuedSink when broadcast.mode is queued.
func (s *Server) observerSink(sink *WSSink) broadcast.Sink {
	if s.bcastCfg.Mode != config.BroadcastModeQueued {
		return sink
	}
	policy, _ := broadcast.ParseOverflowPolicy(s.bcastCfg.OverflowPolicy) //nolint:errcheck // validated in New
	return broadcast.NewQueuedSink(sink, s.bcastCfg.QueueSize, policy)
}

// readLoop consumes inbound frames until the session ends.
func (s *Server) readLoop(sink *WSSink, timing wsTiming) {
	conn := sink.conn
	conn.SetReadLimit(timing.maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	conn.SetReadDeadline(time.Now().Add(timing.pingInterval + timing.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timing.pingInterval + timing.pongTimeout))
	})

	for {
		kind, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket read error", "id", sink.ID(), "error", err)
			}
			return
		}

		if kind == websocket.TextMessage && strings.TrimSpace(string(message)) == wsCloseMessage {
			//nolint:errcheck // Best-effort close frame
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(timing.pongTimeout))
			return
		}

		// Any client message counts as liveness.
		//nolint:errcheck // Best-effort deadline reset
		conn.SetReadDeadline(time.Now().Add(timing.pingInterval + timing.pongTimeout))
	}
}

// pingLoop sends protocol pings until done is closed or a ping fails.
func pingLoop(conn *websocket.Conn, timing wsTiming, done <-chan struct{}) {
	ticker := time.NewTicker(timing.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timing.pongTimeout)); err != nil {
				return
			}
		}
	}
}

// wsTiming holds resolved WebSocket limits.
type wsTiming struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongTimeout    time.Duration
}

func wsTimingFrom(cfg config.WebSocketConfig) wsTiming {
	t := wsTiming{
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongTimeout:    time.Duration(cfg.PongTimeout) * time.Second,
	}
	if t.maxMessageSize <= 0 {
		t.maxMessageSize = defaultMaxMessageSize
	}
	if t.pingInterval <= 0 {
		t.pingInterval = defaultPingInterval
	}
	if t.pongTimeout <= 0 {
		t.pongTimeout = defaultPongTimeout
	}
	return t
}

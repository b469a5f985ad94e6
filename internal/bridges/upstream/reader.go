package upstream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	defaultConnectTimeout       = 10 * time.Second
	defaultReconnectInterval    = 1 * time.Second
	defaultMaxReconnectInterval = 30 * time.Second

	// readBufferSize is the bufio buffer for one connection. Commands are a
	// few dozen bytes; the buffer only bounds a single ReadSlice call.
	readBufferSize = 4096

	// maxFrameSize caps the bytes accumulated while looking for '}'.
	maxFrameSize = 64 * 1024

	// frameDelimiter terminates one serialised command on the wire.
	frameDelimiter = '}'
)

// ReaderState is the lifecycle state of a Reader.
type ReaderState int32

// Reader states.
const (
	StateIdle ReaderState = iota
	StateConnecting
	StateReading
	StateReconnecting
	StateTerminated
)

// String returns the lowercase state name.
func (s ReaderState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReading:
		return "reading"
	case StateReconnecting:
		return "reconnecting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Config holds connection settings for the upstream command source.
type Config struct {
	// Address is the upstream "host:port".
	Address string

	// MaxReconnectAttempts bounds consecutive reconnect cycles that end
	// without a decoded command. Zero means the first lost connection is final.
	MaxReconnectAttempts int

	// ConnectTimeout bounds a single dial.
	ConnectTimeout time.Duration

	// ReconnectInterval is the initial wait after a failed reconnect dial.
	ReconnectInterval time.Duration

	// MaxReconnectInterval caps the backoff between failed reconnect dials.
	MaxReconnectInterval time.Duration
}

// Stats holds operational statistics for the reader.
type Stats struct {
	CommandsRx      uint64
	MalformedTotal  uint64
	ReconnectsTotal uint64
	LastActivity    time.Time
	Connected       bool
	State           ReaderState

	// TerminalErr distinguishes a fatal end (ErrReconnectExhausted,
	// ErrTransport) from a cancelled one (nil) once State is terminated.
	TerminalErr error
}

// DialFunc opens a stream connection. net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// errStopped signals that the consumer stopped ranging over the sequence.
var errStopped = errors.New("upstream: consumer stopped")

// Reader turns the upstream TCP byte stream into a sequence of commands.
//
// The sequence returned by Commands is lazy and can be consumed once. It
// survives clean disconnects by reconnecting within a bounded budget and
// ends on a fatal transport condition or when its context is cancelled.
//
// Thread Safety: Stats, State and IsConnected may be called from any
// goroutine. Commands is consumed by a single goroutine.
type Reader struct {
	cfg  Config
	dial DialFunc

	logger   Logger
	loggerMu sync.RWMutex

	consumed  atomic.Bool
	state     atomic.Int32
	connected atomic.Bool

	commandsRx      atomic.Uint64
	malformedTotal  atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64

	// terminalErr is the fatal error that ended the stream, nil after
	// cancellation.
	terminalErr atomic.Pointer[error]
}

// NewReader creates a reader for the given upstream.
//
// Parameters:
//   - cfg: Upstream address and reconnect policy; zero durations get defaults
//
// Returns:
//   - *Reader: Reader in the idle state, not yet connected
//   - error: If the address is empty or the reconnect budget is negative
func NewReader(cfg Config) (*Reader, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("upstream: address is required")
	}
	if cfg.MaxReconnectAttempts < 0 {
		return nil, fmt.Errorf("upstream: max reconnect attempts must be >= 0, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = defaultMaxReconnectInterval
	}
	if cfg.MaxReconnectInterval < cfg.ReconnectInterval {
		cfg.MaxReconnectInterval = cfg.ReconnectInterval
	}

	var dialer net.Dialer
	return &Reader{
		cfg:  cfg,
		dial: dialer.DialContext,
	}, nil
}

// SetDialer replaces the function used to open connections.
// Must be called before Commands.
func (r *Reader) SetDialer(dial DialFunc) {
	if dial != nil {
		r.dial = dial
	}
}

// SetLogger sets the logger for the reader.
func (r *Reader) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

// Commands returns the command sequence.
//
// Each element is either a decoded command with a nil error, or, as the
// final element, a zero Command with a non-nil error wrapping
// ErrReconnectExhausted or ErrTransport. Malformed payloads are logged and
// skipped. Cancelling ctx ends the sequence without an error element.
//
// The sequence can be ranged over once; further calls yield
// ErrReaderConsumed.
func (r *Reader) Commands(ctx context.Context) iter.Seq2[Command, error] {
	return func(yield func(Command, error) bool) {
		if !r.consumed.CompareAndSwap(false, true) {
			yield(Command{}, ErrReaderConsumed)
			return
		}
		defer r.setState(StateTerminated)

		if err := r.run(ctx, yield); err != nil {
			r.terminalErr.Store(&err)
			r.logError("upstream command stream terminated", err)
			yield(Command{}, err)
		}
	}
}

// run drives the state machine. It returns nil when ctx is cancelled or the
// consumer stops, and a fatal error otherwise.
func (r *Reader) run(ctx context.Context, yield func(Command, error) bool) error {
	r.setState(StateConnecting)
	conn, err := r.dialOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	r.logInfo("connected to upstream", "address", r.cfg.Address)

	attempts := 0
	for {
		decoded, err := r.readConn(ctx, conn, yield)
		switch {
		case errors.Is(err, errStopped), ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrConnectionLost), errors.Is(err, ErrFrameTooLarge):
			r.logInfo("upstream connection closed", "reason", err.Error(), "address", r.cfg.Address)
		default:
			return err
		}

		if decoded {
			attempts = 0
		}

		conn, attempts, err = r.reconnect(ctx, attempts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// readConn reads commands from one connection until it ends. The connection
// is always closed on return. decoded reports whether at least one command
// was yielded from this connection.
func (r *Reader) readConn(ctx context.Context, conn net.Conn, yield func(Command, error) bool) (decoded bool, err error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	r.connected.Store(true)
	r.setState(StateReading)
	defer func() {
		stop()
		r.connected.Store(false)
		conn.Close()
	}()

	br := bufio.NewReaderSize(conn, readBufferSize)
	for {
		frame, err := readFrame(br)
		if err != nil {
			if ctx.Err() != nil {
				return decoded, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				if len(bytes.TrimSpace(frame)) > 0 {
					r.logWarn("discarding partial command at end of stream", "bytes", len(frame))
				}
				return decoded, ErrConnectionLost
			}
			if errors.Is(err, ErrFrameTooLarge) {
				r.logWarn("dropping connection after oversized frame", "limit", maxFrameSize)
				return decoded, err
			}
			return decoded, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}

		r.lastActivity.Store(time.Now().Unix())

		cmd, err := Decode(frame)
		if err != nil {
			r.malformedTotal.Add(1)
			r.logWarn("skipping malformed command", "error", err)
			continue
		}

		decoded = true
		r.commandsRx.Add(1)
		if !yield(cmd, nil) {
			return decoded, errStopped
		}
	}
}

// readFrame returns the bytes up to and including the next '}'. On error
// the bytes read so far are returned alongside it.
func readFrame(br *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := br.ReadSlice(frameDelimiter)
		frame = append(frame, chunk...)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return frame, err
		}
		if len(frame) > maxFrameSize {
			return frame, ErrFrameTooLarge
		}
	}
}

// reconnect re-establishes the connection. attempts is the number of
// reconnect cycles already spent without a decoded command; the updated
// count is returned.
func (r *Reader) reconnect(ctx context.Context, attempts int) (net.Conn, int, error) {
	backoff := r.cfg.ReconnectInterval

	for {
		attempts++
		if attempts > r.cfg.MaxReconnectAttempts {
			r.setState(StateReconnecting)
			return nil, attempts, fmt.Errorf("%w: gave up after %d attempts to reach %s",
				ErrReconnectExhausted, r.cfg.MaxReconnectAttempts, r.cfg.Address)
		}

		r.setState(StateReconnecting)
		r.logInfo("attempting reconnection",
			"address", r.cfg.Address,
			"attempt", attempts,
			"max_attempts", r.cfg.MaxReconnectAttempts,
		)

		conn, err := r.dialOnce(ctx)
		if err == nil {
			r.reconnectsTotal.Add(1)
			r.logInfo("reconnection successful", "total_reconnects", r.reconnectsTotal.Load())
			return conn, attempts, nil
		}
		if ctx.Err() != nil {
			return nil, attempts, ctx.Err()
		}

		r.logError("reconnect: dial failed", err)
		select {
		case <-ctx.Done():
			return nil, attempts, ctx.Err()
		case <-time.After(backoff):
		}

		// Exponential backoff with cap
		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > r.cfg.MaxReconnectInterval {
			backoff = r.cfg.MaxReconnectInterval
		}
	}
}

// dialOnce opens one TCP connection bounded by ConnectTimeout.
func (r *Reader) dialOnce(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.ConnectTimeout)
	defer cancel()

	conn, err := r.dial(dialCtx, "tcp", r.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial tcp://%s: %w", r.cfg.Address, err)
	}
	return conn, nil
}

// State returns the current lifecycle state.
func (r *Reader) State() ReaderState {
	return ReaderState(r.state.Load())
}

func (r *Reader) setState(s ReaderState) {
	r.state.Store(int32(s))
}

// IsConnected returns true while a connection to the upstream is open.
func (r *Reader) IsConnected() bool {
	return r.connected.Load()
}

// Stats returns current operational statistics.
func (r *Reader) Stats() Stats {
	var last time.Time
	if ts := r.lastActivity.Load(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return Stats{
		CommandsRx:      r.commandsRx.Load(),
		MalformedTotal:  r.malformedTotal.Load(),
		ReconnectsTotal: r.reconnectsTotal.Load(),
		LastActivity:    last,
		Connected:       r.IsConnected(),
		State:           r.State(),
		TerminalErr:     r.TerminalErr(),
	}
}

// TerminalErr returns the error that ended the stream. It is nil while the
// stream is live and after a cancelled (clean) shutdown.
func (r *Reader) TerminalErr() error {
	if p := r.terminalErr.Load(); p != nil {
		return *p
	}
	return nil
}

// HealthCheck reports whether the reader is currently consuming the stream.
func (r *Reader) HealthCheck(_ context.Context) error {
	if err := r.TerminalErr(); err != nil {
		return fmt.Errorf("upstream: reader terminated: %w", err)
	}
	if r.State() != StateReading {
		return fmt.Errorf("upstream: reader is %s", r.State())
	}
	return nil
}

func (r *Reader) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

func (r *Reader) logInfo(msg string, keysAndValues ...any) {
	if logger := r.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (r *Reader) logWarn(msg string, keysAndValues ...any) {
	if logger := r.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (r *Reader) logError(msg string, err error) {
	if logger := r.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
)

// CommandSource produces the command sequence. *upstream.Reader satisfies it.
type CommandSource interface {
	Commands(ctx context.Context) iter.Seq2[upstream.Command, error]
}

// Applier reduces one command. *device.Reducer satisfies it.
type Applier interface {
	Apply(ctx context.Context, cmd upstream.Command) bool
}

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Supervisor owns the ingestion loop: source → reducer → notifier.
//
// All reduction and notification happens on the goroutine that calls Run.
type Supervisor struct {
	source  CommandSource
	applier Applier
	logger  Logger

	running   atomic.Bool
	processed atomic.Uint64
}

// New creates a supervisor.
func New(source CommandSource, applier Applier) *Supervisor {
	return &Supervisor{source: source, applier: applier}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Run consumes the command sequence until it ends.
//
// Returns:
//   - error: nil when ctx is cancelled; an error wrapping ErrPipelineFatal
//     when the source ends with ErrReconnectExhausted or ErrTransport
func (s *Supervisor) Run(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	s.logInfo("pipeline started")

	for cmd, err := range s.source.Commands(ctx) {
		if err != nil {
			if s.logger != nil {
				s.logger.Error("pipeline stopped", "error", err)
			}
			return fmt.Errorf("%w: %w", ErrPipelineFatal, err)
		}

		s.applier.Apply(ctx, cmd)
		s.processed.Add(1)
	}

	if ctx.Err() == nil {
		// A source that ends by itself cannot deliver further commands.
		return fmt.Errorf("%w: command stream ended unexpectedly", ErrPipelineFatal)
	}

	s.logInfo("pipeline stopped", "reason", "shutdown", "processed", s.processed.Load())
	return nil
}

// Running reports whether Run is in progress.
func (s *Supervisor) Running() bool {
	return s.running.Load()
}

// Processed returns the number of commands handed to the reducer.
func (s *Supervisor) Processed() uint64 {
	return s.processed.Load()
}

func (s *Supervisor) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

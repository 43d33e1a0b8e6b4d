package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Stream is a bounded event queue read through Events. Emit never blocks:
// when the buffer is full ordinary events are dropped, while terminal
// events evict the oldest queued event so the end of a run is always seen.
// The sequence is finite and cannot be restarted.
type Stream struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64
	logger  *slog.Logger
}

// NewStream creates a stream holding up to size undelivered events.
func NewStream(size int, logger *slog.Logger) *Stream {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{ch: make(chan Event, size), logger: logger}
}

// Emit queues ev without blocking.
func (s *Stream) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	if ev.Terminal() {
		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
		select {
		case s.ch <- ev:
			return
		default:
		}
	}
	n := s.dropped.Add(1)
	s.logger.Debug("progress.stream.dropped", "stage", ev.Stage, "dropped_total", n)
}

// Events returns the receive side. It is closed after Close.
func (s *Stream) Events() <-chan Event { return s.ch }

// Dropped is the number of events discarded so far.
func (s *Stream) Dropped() int64 { return s.dropped.Load() }

// Close ends the sequence. Later emits are ignored.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

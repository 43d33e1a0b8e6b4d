// Package progress carries staged progress events from a conversion run to
// its caller and to external listeners.
//
// Inside the process events flow through a [Sink]. A [Stream] is the
// bounded, non-blocking sink handed to callers as a channel. A [Publisher]
// forwards events to listeners outside the process: first through a
// [Broadcaster] such as Redis pub/sub, and when that fails through a
// [Deliverer] such as HTTP webhooks. Delivery failures are logged and never
// reach the run.
package progress

import (
	"context"
	"time"
)

// Run stages.
const (
	StageInitialization     = "initialization"
	StageParsing            = "parsing"
	StageAIProcessing       = "ai_processing"
	StageMarkdownGeneration = "markdown_generation"
	StageCompletion         = "completion"
	StageError              = "error"
)

// Event is one progress notification. Progress is in [0,1].
type Event struct {
	Stage     string
	Progress  float64
	Message   string
	Details   map[string]any
	Result    string
	Timestamp time.Time
}

// Terminal reports whether the event ends a run.
func (e Event) Terminal() bool {
	return e.Stage == StageCompletion || e.Stage == StageError
}

// ExternalStage maps a run stage to the name listeners understand.
func ExternalStage(stage string) string {
	switch stage {
	case StageInitialization:
		return "uploading"
	case StageParsing:
		return "parsing"
	case StageAIProcessing, StageMarkdownGeneration:
		return "converting"
	case StageCompletion:
		return "complete"
	case StageError:
		return "error"
	}
	return "parsing"
}

// Sink receives events. Emit must not block for long and never fails.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

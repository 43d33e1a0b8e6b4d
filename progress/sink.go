package progress

import (
	"context"
	"math"
	"sync"
	"time"
)

// Multi fans each event out to every sink in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(ctx, ev)
			}
		}
	})
}

// Scale maps sub-stage events into [lo, hi] of a run and retags them with
// stage. The sub-stage name moves to details["substage"].
func Scale(s Sink, stage string, lo, hi float64) Sink {
	s = OrDiscard(s)
	return SinkFunc(func(ctx context.Context, ev Event) {
		p := clamp(ev.Progress)
		details := make(map[string]any, len(ev.Details)+1)
		for k, v := range ev.Details {
			details[k] = v
		}
		if ev.Stage != "" && ev.Stage != stage {
			details["substage"] = ev.Stage
		}
		ev.Stage = stage
		ev.Progress = lo + p*(hi-lo)
		ev.Details = details
		s.Emit(ctx, ev)
	})
}

// Monotonic clamps progress into [0,1] and never lets it decrease. It also
// stamps events that carry no timestamp.
func Monotonic(s Sink) Sink {
	s = OrDiscard(s)
	var (
		mu   sync.Mutex
		last float64
	)
	return SinkFunc(func(ctx context.Context, ev Event) {
		mu.Lock()
		ev.Progress = math.Max(clamp(ev.Progress), last)
		last = ev.Progress
		mu.Unlock()
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now().UTC()
		}
		s.Emit(ctx, ev)
	})
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

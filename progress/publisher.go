package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Message is the wire form of an event for external listeners.
type Message struct {
	DocumentID string         `json:"documentId"`
	Stage      string         `json:"stage"`
	Progress   int            `json:"progress"`
	Message    string         `json:"message"`
	Timestamp  string         `json:"timestamp"`
	Details    map[string]any `json:"details,omitempty"`
	Result     string         `json:"result,omitempty"`
}

// NewMessage converts ev for listeners: the stage is mapped with
// ExternalStage and progress is scaled to 0..100.
func NewMessage(documentID string, ev Event) Message {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Message{
		DocumentID: documentID,
		Stage:      ExternalStage(ev.Stage),
		Progress:   int(math.Round(clamp(ev.Progress) * 100)),
		Message:    ev.Message,
		Timestamp:  ts.Format(time.RFC3339Nano),
		Details:    ev.Details,
		Result:     ev.Result,
	}
}

// Broadcaster is the preferred delivery path.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg Message) error
	Close() error
}

// Deliverer is the direct delivery path used when broadcasting fails.
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// ErrNoPath is the cause of a DeliveryError when neither path is set.
var ErrNoPath = errors.New("no delivery path configured")

// DeliveryError reports an event that reached no listener.
type DeliveryError struct {
	DocumentID string
	Stage      string
	Cause      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("progress delivery for %s (%s): %v", e.DocumentID, e.Stage, e.Cause)
}

func (e *DeliveryError) Unwrap() error { return e.Cause }

// Publisher forwards events to external listeners. Failures are logged and
// swallowed.
type Publisher struct {
	broadcast Broadcaster
	direct    Deliverer
	timeout   time.Duration
	logger    *slog.Logger
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithBroadcaster sets the preferred path.
func WithBroadcaster(b Broadcaster) PublisherOption {
	return func(p *Publisher) { p.broadcast = b }
}

// WithDeliverer sets the fallback path.
func WithDeliverer(d Deliverer) PublisherOption {
	return func(p *Publisher) { p.direct = d }
}

// WithTimeout bounds each delivery attempt. Default: 5s.
func WithTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) { p.timeout = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPublisher creates a publisher. With no paths configured every publish
// is logged at debug level and dropped.
func NewPublisher(opts ...PublisherOption) *Publisher {
	p := &Publisher{timeout: 5 * time.Second, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Publish delivers ev for documentID and returns the delivery error, if
// any, for inspection. Callers on the run path use For, which ignores it.
func (p *Publisher) Publish(ctx context.Context, documentID string, ev Event) error {
	msg := NewMessage(documentID, ev)
	// Delivery outlives caller cancellation but not the per-call timeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	var errs []error
	if p.broadcast != nil {
		err := p.broadcast.Broadcast(ctx, msg)
		if err == nil {
			return nil
		}
		p.logger.Debug("progress.broadcast.failed", "document_id", documentID, "stage", ev.Stage, "error", err)
		errs = append(errs, err)
	}
	if p.direct != nil {
		err := p.direct.Deliver(ctx, msg)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		errs = append(errs, ErrNoPath)
	}

	derr := &DeliveryError{DocumentID: documentID, Stage: ev.Stage, Cause: errors.Join(errs...)}
	if errors.Is(derr, ErrNoPath) {
		p.logger.Debug("progress.delivery.skipped", "document_id", documentID, "stage", ev.Stage)
	} else {
		p.logger.Warn("progress.delivery.failed", "document_id", documentID, "stage", ev.Stage, "error", derr)
	}
	return derr
}

// For returns a Sink publishing every event for documentID.
func (p *Publisher) For(documentID string) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		_ = p.Publish(ctx, documentID, ev)
	})
}

// Close releases the broadcaster.
func (p *Publisher) Close() error {
	if p.broadcast != nil {
		return p.broadcast.Close()
	}
	return nil
}

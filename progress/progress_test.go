package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestExternalStage(t *testing.T) {
	tests := map[string]string{
		StageInitialization:        "uploading",
		StageParsing:               "parsing",
		StageAIProcessing:          "converting",
		StageMarkdownGeneration:    "converting",
		StageCompletion:            "complete",
		StageError:                 "error",
		"ai_image_batch_processed": "parsing",
		"":                         "parsing",
	}
	for in, want := range tests {
		if got := ExternalStage(in); got != want {
			t.Errorf("ExternalStage(%q) = %q, want %q", in, got, want)
		}
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestScale(t *testing.T) {
	rec := &recorder{}
	s := Scale(rec, StageAIProcessing, 0.5, 0.8)
	s.Emit(context.Background(), Event{Stage: "ai_image_batch_processed", Progress: 0.5, Details: map[string]any{"batch": 1}})

	ev := rec.events[0]
	if ev.Stage != StageAIProcessing {
		t.Errorf("Stage = %q, want %q", ev.Stage, StageAIProcessing)
	}
	if ev.Progress < 0.6499 || ev.Progress > 0.6501 {
		t.Errorf("Progress = %v, want 0.65", ev.Progress)
	}
	if ev.Details["substage"] != "ai_image_batch_processed" || ev.Details["batch"] != 1 {
		t.Errorf("Details = %v", ev.Details)
	}
}

func TestMonotonic(t *testing.T) {
	rec := &recorder{}
	s := Monotonic(rec)
	for _, p := range []float64{0.1, 0.4, 0.2, 1.7, -1} {
		s.Emit(context.Background(), Event{Progress: p})
	}
	want := []float64{0.1, 0.4, 0.4, 1, 1}
	for i, ev := range rec.events {
		if ev.Progress != want[i] {
			t.Errorf("event %d progress = %v, want %v", i, ev.Progress, want[i])
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
}

func TestStream_DropOnFull(t *testing.T) {
	s := NewStream(2, nil)
	ctx := context.Background()
	s.Emit(ctx, Event{Stage: StageInitialization})
	s.Emit(ctx, Event{Stage: StageParsing})
	s.Emit(ctx, Event{Stage: StageAIProcessing})
	s.Emit(ctx, Event{Stage: StageCompletion, Result: "# done"})
	s.Close()
	s.Emit(ctx, Event{Stage: StageParsing})

	var got []string
	for ev := range s.Events() {
		got = append(got, ev.Stage)
	}
	want := []string{StageParsing, StageCompletion}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}
	if s.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", s.Dropped())
	}
}

func TestNewMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := NewMessage("doc-1", Event{Stage: StageMarkdownGeneration, Progress: 0.9, Message: "Generating", Timestamp: ts})
	if msg.Stage != "converting" || msg.Progress != 90 || msg.DocumentID != "doc-1" {
		t.Errorf("NewMessage() = %+v", msg)
	}
	if msg.Timestamp != "2024-05-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", msg.Timestamp)
	}
}

func TestPublisher_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewPublisher(WithBroadcaster(NewRedisBroadcasterFromClient(client, "")))
	if err := p.Publish(ctx, "doc-1", Event{Stage: StageParsing, Progress: 0.1, Message: "Parsing"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case m := <-sub.Channel():
		var msg Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			t.Fatal(err)
		}
		if msg.DocumentID != "doc-1" || msg.Stage != "parsing" || msg.Progress != 10 {
			t.Errorf("message = %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestRedisBroadcaster_NoSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	err := NewRedisBroadcasterFromClient(client, "").Broadcast(context.Background(), Message{DocumentID: "doc-0"})
	if !errors.Is(err, ErrNoSubscribers) {
		t.Errorf("Broadcast() error = %v, want ErrNoSubscribers", err)
	}
}

func TestPublisher_FallsBackToWebhook(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	p := NewPublisher(
		WithBroadcaster(NewRedisBroadcasterFromClient(client, "")),
		WithDeliverer(NewWebhook([]string{srv.URL + "/api/progress"})),
	)
	if err := p.Publish(context.Background(), "doc-2", Event{Stage: StageCompletion, Progress: 1}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got.DocumentID != "doc-2" || got.Stage != "complete" || got.Progress != 100 {
		t.Errorf("webhook got %+v", got)
	}
}

func TestPublisher_BothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	p := NewPublisher(
		WithBroadcaster(NewRedisBroadcasterFromClient(client, "")),
		WithDeliverer(NewWebhook([]string{srv.URL})),
		WithTimeout(2*time.Second),
	)
	err := p.Publish(context.Background(), "doc-3", Event{Stage: StageError})
	var derr *DeliveryError
	if !errors.As(err, &derr) {
		t.Fatalf("Publish() error = %v, want DeliveryError", err)
	}

	// The sink form never surfaces the failure.
	p.For("doc-3").Emit(context.Background(), Event{Stage: StageError})
}

func TestPublisher_NoPaths(t *testing.T) {
	err := NewPublisher().Publish(context.Background(), "d", Event{})
	if !errors.Is(err, ErrNoPath) {
		t.Errorf("Publish() error = %v, want ErrNoPath", err)
	}
}

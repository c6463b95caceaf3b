package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nholloway/modguard/internal/pubsub"
)

// SlogSink writes each event to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink logging to the given logger, or the default
// logger when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Record implements Sink.
func (s *SlogSink) Record(ctx context.Context, event Event) {
	attrs := []any{
		"execution_id", event.ExecutionID,
		"script_id", event.ScriptID,
		"phase", event.Phase,
	}
	if event.Detail != "" {
		attrs = append(attrs, "detail", event.Detail)
	}
	if len(event.Violations) > 0 {
		attrs = append(attrs, "violations", event.Violations)
	}
	level := slog.LevelDebug
	if event.Phase == PhaseFailed || event.Phase == PhaseTimedOut {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "Sandbox phase transition", attrs...)
}

// PubSubSink publishes each event as JSON on the security-events topic.
type PubSubSink struct {
	pub   pubsub.Publisher
	topic string
}

// NewPubSubSink creates a sink publishing to the given publisher on the
// default security-events topic.
func NewPubSubSink(pub pubsub.Publisher) *PubSubSink {
	return &PubSubSink{pub: pub, topic: TopicSecurityEvents}
}

// Record implements Sink. Publish failures are logged and swallowed so a
// broken bus can never fail a script execution.
func (s *PubSubSink) Record(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode audit event", "error", err, "execution_id", event.ExecutionID)
		return
	}
	msg := pubsub.Message{
		Topic:       s.topic,
		ScriptID:    event.ScriptID,
		ExecutionID: event.ExecutionID,
		Payload:     payload,
	}
	if err := s.pub.Publish(ctx, msg); err != nil {
		slog.Error("Failed to publish audit event", "error", err, "execution_id", event.ExecutionID)
	}
}

// MemorySink collects events in order. It exists for tests and diagnostics.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record implements Sink.
func (s *MemorySink) Record(_ context.Context, event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of every recorded event in order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// MultiSink fans each event out to every child sink in order.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, event Event) {
	for _, sink := range m {
		sink.Record(ctx, event)
	}
}

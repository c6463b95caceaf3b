// Package audit records the ordered security-event trail of sandbox
// executions. One event is recorded at every phase transition, including
// degenerate runs that never reach execution.
package audit

import (
	"context"
	"time"
)

// Phase names a stage of the sandbox execution state machine.
type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseCompiling  Phase = "compiling"
	PhaseLoading    Phase = "loading"
	PhaseInvoking   Phase = "invoking"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseTimedOut   Phase = "timed_out"
)

// TopicSecurityEvents is the pub/sub topic the event stream is published on.
const TopicSecurityEvents = "sandbox.security.events"

// Event is a single audit-trail entry for one execution phase transition.
type Event struct {
	ExecutionID string    `json:"execution_id"`
	ScriptID    string    `json:"script_id"`
	Phase       Phase     `json:"phase"`
	Timestamp   time.Time `json:"timestamp"`
	Detail      string    `json:"detail,omitempty"`
	Violations  []string  `json:"violations,omitempty"`
}

// Sink consumes execution events in the order they occur. Implementations
// must not block the execution path for long; failures are the sink's own
// concern and are never surfaced to the running script.
type Sink interface {
	Record(ctx context.Context, event Event)
}

// NopSink discards every event.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(context.Context, Event) {}

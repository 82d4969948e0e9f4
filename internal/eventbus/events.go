package eventbus

import (
	"context"
	"time"
)

// EventType names a lifecycle event.
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventIntentClassified EventType = "intent_classified"
	EventRunCompleted     EventType = "run_completed"
	EventRunFailed        EventType = "run_failed"

	EventPlanGenerationStarted EventType = "plan_generation_started"
	EventPlanGenerationSuccess EventType = "plan_generation_success"
	EventPlanGenerationFailure EventType = "plan_generation_failure"

	EventStepStarted EventType = "step_started"
	EventStepRetry   EventType = "step_retry"
	EventStepSuccess EventType = "step_success"
	EventStepFailure EventType = "step_failure"
)

// Event is one run or step lifecycle notification. StepNumber is zero for
// run-level events.
type Event struct {
	Type        EventType      `json:"type"`
	ExecutionID string         `json:"execution_id"`
	StepNumber  int            `json:"step_number,omitempty"`
	Source      string         `json:"source"`
	Payload     any            `json:"payload,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Time        time.Time      `json:"time"`
}

// Handler consumes an event. A non-nil error makes the bus retry delivery.
type Handler func(context.Context, Event) error

// Filter selects the events a subscription receives. Empty fields match
// everything.
type Filter struct {
	Types       []EventType
	ExecutionID string
}

// Matches reports whether e passes the filter.
func (f Filter) Matches(e Event) bool {
	if f.ExecutionID != "" && f.ExecutionID != e.ExecutionID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Bus delivers events to subscribers.
type Bus interface {
	// Publish queues e for delivery. It never waits for handlers.
	Publish(ctx context.Context, e Event) error

	// Subscribe registers handler for events matching filter and returns a
	// subscription id.
	Subscribe(filter Filter, handler Handler) (string, error)

	Unsubscribe(subscriptionID string) error

	// Close stops accepting events and waits for queued ones to be delivered.
	Close() error
}

// Emit stamps e with the current time when unset and publishes it. A nil bus
// is a no-op. Publish errors are returned for logging only.
func Emit(ctx context.Context, bus Bus, e Event) error {
	if bus == nil {
		return nil
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	return bus.Publish(ctx, e)
}

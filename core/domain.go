package core

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks an event from receipt to terminal outcome.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

func (s Status) String() string {
	return string(s)
}

// IsRetriable reports whether a processor may claim an event in this status.
func (s Status) IsRetriable() bool {
	switch s {
	case StatusPending, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is expected without
// operator intervention.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusDead:
		return true
	default:
		return false
	}
}

func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(strings.ToLower(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusSuccess:
		return StatusSuccess, nil
	case StatusFailed:
		return StatusFailed, nil
	case StatusDead:
		return StatusDead, nil
	default:
		return "", fmt.Errorf("core: unknown event status %q", value)
	}
}

var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusSuccess, StatusFailed},
	StatusFailed:     {StatusPending, StatusProcessing, StatusDead},
}

// CanTransition reports whether the state machine permits moving from one
// status to another.
func CanTransition(from Status, to Status) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Event is the durable record of one received webhook or proxied request.
// Payload is immutable after creation; handlers attach a derived Response.
type Event struct {
	ID             string
	TenantID       string
	Source         string
	Topic          string
	Payload        map[string]any
	IdempotencyKey string
	DedupHash      string
	Attempts       int
	Error          string
	Response       map[string]any
	Status         Status
	TraceID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SubmitRequest carries everything a collaborator provides when recording an
// inbound occurrence. Tenant is always explicit; the hub never consults
// ambient state for tenant scoping.
type SubmitRequest struct {
	TenantID       string
	Source         string
	Topic          string
	Payload        map[string]any
	IdempotencyKey string
	DedupHash      string
	TraceID        string
}

func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("core: tenant id is required")
	}
	if strings.TrimSpace(r.Source) == "" {
		return fmt.Errorf("core: source is required")
	}
	if strings.TrimSpace(r.Topic) == "" {
		return fmt.Errorf("core: topic is required")
	}
	if r.Payload == nil {
		return fmt.Errorf("core: payload is required")
	}
	return nil
}

// SubmitResult acknowledges acceptance, not processing outcome. Duplicate
// submissions are success-equivalent: the event was already durably recorded.
type SubmitResult struct {
	EventID   string
	Status    Status
	Duplicate bool
}

// HandlerResult is an opaque success payload attached to the event for audit.
type HandlerResult struct {
	Response map[string]any
}

// SweepStats summarizes one sweep pass over pending events.
type SweepStats struct {
	Scanned   int
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

func copyAnyMap(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	copied := make(map[string]any, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}

// WorkingCopy returns the event with detached payload and response maps so a
// handler cannot mutate the stored payload.
func (e Event) WorkingCopy() Event {
	clone := e
	clone.Payload = copyAnyMap(e.Payload)
	clone.Response = copyAnyMap(e.Response)
	return clone
}

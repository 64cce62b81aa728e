// Package gojob maps the hub's scheduled maintenance work onto go-job queue
// contracts. The sweep and reclaim jobs are the cron entry points that keep
// pending events moving when the async dispatch trigger was lost.
package gojob

import (
	"context"
	"fmt"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"

	"github.com/julizen/eventhub/core"
)

const (
	JobIDSweep   = "eventhub.sweep"
	JobIDReclaim = "eventhub.reclaim"
)

const slotKeyLayout = "2006-01-02T15:04"

// SweepMessage builds the execution message for a scheduled sweep run. The
// idempotency key pins at most one enqueue per schedule slot, so overlapping
// schedulers collapse into a single run.
func SweepMessage(slot time.Time) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDSweep,
		Parameters:     map[string]any{},
		IdempotencyKey: slotKey(JobIDSweep, slot),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// ReclaimMessage builds the execution message for a scheduled reclaim run.
func ReclaimMessage(slot time.Time, olderThan time.Duration) *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID: JobIDReclaim,
		Parameters: map[string]any{
			"older_than": olderThan.String(),
		},
		IdempotencyKey: slotKey(JobIDReclaim, slot),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

func slotKey(jobID string, slot time.Time) string {
	return fmt.Sprintf("%s:%s", jobID, slot.UTC().Format(slotKeyLayout))
}

// OlderThanParameter reads the reclaim window back out of an execution
// message, falling back to the given default when absent or malformed.
func OlderThanParameter(msg *job.ExecutionMessage, fallback time.Duration) time.Duration {
	if msg == nil {
		return fallback
	}
	raw, _ := msg.Parameters["older_than"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// NackPolicy maps the hub's backoff policy onto go-job nack options so queue
// retries follow the same curve as event retries.
type NackPolicy struct {
	Backoff         core.RetryPolicy
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// ForAttempt produces the nack options for a failed delivery on the given
// attempt. Attempts past the ceiling stop requeueing.
func (p NackPolicy) ForAttempt(attempt int, reason string) queue.NackOptions {
	out := queue.NackOptions{
		Requeue: true,
		Reason:  strings.TrimSpace(reason),
	}
	if p.Backoff != nil {
		out.Delay = p.Backoff.NextDelay(attempt)
	}
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		out.DeadLetter = p.DeadLetterOnMax
		out.Delay = 0
	}
	return out
}

// MaintenanceService is the hub surface the scheduled jobs drive.
type MaintenanceService interface {
	SweepPending(ctx context.Context) (int, error)
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// Runner executes sweep and reclaim deliveries against the hub.
type Runner struct {
	service          MaintenanceService
	defaultOlderThan time.Duration
}

func NewRunner(service MaintenanceService, defaultOlderThan time.Duration) (*Runner, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: maintenance service is required")
	}
	if defaultOlderThan <= 0 {
		defaultOlderThan = 30 * time.Minute
	}
	return &Runner{service: service, defaultOlderThan: defaultOlderThan}, nil
}

// Run dispatches the delivery to the matching hub operation by job id.
func (r *Runner) Run(ctx context.Context, msg *job.ExecutionMessage) error {
	if r == nil || r.service == nil {
		return fmt.Errorf("gojob: runner is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	switch msg.JobID {
	case JobIDSweep:
		_, err := r.service.SweepPending(ctx)
		return err
	case JobIDReclaim:
		_, err := r.service.ReclaimStuck(ctx, OlderThanParameter(msg, r.defaultOlderThan))
		return err
	default:
		return fmt.Errorf("gojob: unknown job id %q", msg.JobID)
	}
}

package command

import (
	"context"
	"time"

	gocmd "github.com/goliatone/go-command"

	"github.com/julizen/eventhub/core"
)

// MutatingService is the hub surface the command envelopes delegate to.
type MutatingService interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
	Retry(ctx context.Context, tenantID string, eventID string) error
	SweepPending(ctx context.Context) (int, error)
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

type SubmitCommand struct {
	service MutatingService
}

func NewSubmitCommand(service MutatingService) *SubmitCommand {
	return &SubmitCommand{service: service}
}

func (c *SubmitCommand) Execute(ctx context.Context, msg SubmitMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submit service is required")
	}
	out, err := c.service.Submit(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RetryCommand struct {
	service MutatingService
}

func NewRetryCommand(service MutatingService) *RetryCommand {
	return &RetryCommand{service: service}
}

func (c *RetryCommand) Execute(ctx context.Context, msg RetryMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: retry service is required")
	}
	return c.service.Retry(ctx, msg.TenantID, msg.EventID)
}

type SweepCommand struct {
	service MutatingService
}

func NewSweepCommand(service MutatingService) *SweepCommand {
	return &SweepCommand{service: service}
}

func (c *SweepCommand) Execute(ctx context.Context, msg SweepMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: sweep service is required")
	}
	processed, err := c.service.SweepPending(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, processed)
	return nil
}

type ReclaimCommand struct {
	service MutatingService
}

func NewReclaimCommand(service MutatingService) *ReclaimCommand {
	return &ReclaimCommand{service: service}
}

func (c *ReclaimCommand) Execute(ctx context.Context, msg ReclaimMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: reclaim service is required")
	}
	reclaimed, err := c.service.ReclaimStuck(ctx, msg.OlderThan)
	if err != nil {
		return err
	}
	storeResult(ctx, reclaimed)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/julizen/eventhub/core"
)

const (
	TypeSubmit  = "eventhub.command.submit"
	TypeRetry   = "eventhub.command.retry"
	TypeSweep   = "eventhub.command.sweep"
	TypeReclaim = "eventhub.command.reclaim"
)

type SubmitMessage struct {
	Request core.SubmitRequest
}

func (SubmitMessage) Type() string { return TypeSubmit }

func (m SubmitMessage) Validate() error {
	if err := m.Request.Validate(); err != nil {
		return fmt.Errorf("command: %w", err)
	}
	return nil
}

type RetryMessage struct {
	TenantID string
	EventID  string
}

func (RetryMessage) Type() string { return TypeRetry }

func (m RetryMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("command: event id is required")
	}
	return nil
}

type SweepMessage struct{}

func (SweepMessage) Type() string { return TypeSweep }

func (SweepMessage) Validate() error { return nil }

type ReclaimMessage struct {
	OlderThan time.Duration
}

func (ReclaimMessage) Type() string { return TypeReclaim }

func (m ReclaimMessage) Validate() error {
	if m.OlderThan < 0 {
		return fmt.Errorf("command: older-than window must not be negative")
	}
	return nil
}

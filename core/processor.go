package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ProcessEvent runs one event through the claim protocol. It is the single
// canonical processing path: every trigger (dispatcher, sweep, manual retry)
// funnels into it so locking behavior cannot diverge per topic.
//
// The claim commits as its own transaction before the handler runs, so a
// crash mid-handler leaves visible evidence: a processing row with the
// incremented attempt count. Handler I/O runs outside the claim transaction;
// slow third-party calls never hold the row lock.
func (s *Service) ProcessEvent(ctx context.Context, eventID string) error {
	startedAt := s.clock()()
	outcome, err := s.processEvent(ctx, eventID)
	s.observeOperation(ctx, startedAt, "process", err, map[string]any{
		"event_id": eventID,
		"outcome":  outcome,
	})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) processEvent(ctx context.Context, eventID string) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("core: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", fmt.Errorf("core: event id is required")
	}

	event, claimed, err := s.store.Claim(ctx, eventID)
	if err != nil {
		// Claim-transaction failures are infrastructure failures: the
		// attempt is abandoned and the next trigger retries the event.
		return "claim_error", err
	}
	if !claimed {
		// Another worker owns or already finished this event.
		return "skipped", nil
	}

	handler, ok := s.resolveHandler(event.Topic)
	if !ok {
		detail := fmt.Sprintf("no handler registered for topic: %s", event.Topic)
		if recordErr := s.recordFailure(ctx, event, detail); recordErr != nil {
			return "failed", recordErr
		}
		return "failed", nil
	}

	result, handlerErr := s.invokeHandler(ctx, handler, event)
	if handlerErr != nil {
		if recordErr := s.recordFailure(ctx, event, FailureDetail(handlerErr)); recordErr != nil {
			return "failed", recordErr
		}
		return "failed", nil
	}

	if err := s.store.RecordSuccess(ctx, event.ID, result.Response); err != nil {
		return "success", err
	}
	return "success", nil
}

func (s *Service) resolveHandler(topic string) (Handler, bool) {
	if s == nil || s.registry == nil {
		return nil, false
	}
	return s.registry.Resolve(topic)
}

// invokeHandler applies the configured timeout bound and converts panics into
// handler failures so a misbehaving integration cannot take down a worker.
func (s *Service) invokeHandler(ctx context.Context, handler Handler, event Event) (result HandlerResult, err error) {
	timeout := s.config.Processing.HandlerTimeout
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			result = HandlerResult{}
			err = fmt.Errorf("core: handler panicked processing event %s: %v", event.ID, recovered)
		}
	}()

	return handler.Process(ctx, event.WorkingCopy())
}

// recordFailure persists a failure outcome, promoting the event to dead when
// the attempt ceiling is configured and exhausted.
func (s *Service) recordFailure(ctx context.Context, event Event, detail string) error {
	terminal := false
	if max := s.config.Processing.MaxAttempts; max > 0 && event.Attempts >= max {
		terminal = true
	}
	return s.store.RecordFailure(ctx, event.ID, detail, terminal)
}

// ExponentialBackoffPolicy doubles the delay per attempt up to Max.
type ExponentialBackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialBackoffPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 5 * time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

var _ RetryPolicy = ExponentialBackoffPolicy{}

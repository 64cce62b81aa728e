// Package inbound turns provider deliveries (webhooks, callbacks) into hub
// submissions. It owns delivery-level concerns: source binding, optional
// request verification and idempotency-key extraction. Everything after the
// submission, claim ordering included, belongs to the hub service.
package inbound

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/julizen/eventhub/core"
)

// Delivery is one raw inbound request from an external producer. TenantID is
// always explicit; the coordinator never infers it from ambient state.
type Delivery struct {
	Source   string
	TenantID string
	Payload  map[string]any
	Headers  map[string]string
	Metadata map[string]any
	TraceID  string
}

// Receipt is what the transport layer answers the producer with.
type Receipt struct {
	EventID    string
	Accepted   bool
	Deduped    bool
	StatusCode int
}

// Submitter is the slice of the hub service the coordinator needs.
type Submitter interface {
	Submit(ctx context.Context, req core.SubmitRequest) (core.SubmitResult, error)
}

// Verifier rejects deliveries before they reach the hub. Signature schemes
// live behind this hook in the host application.
type Verifier interface {
	Verify(ctx context.Context, delivery Delivery) error
}

type VerifierFunc func(ctx context.Context, delivery Delivery) error

func (f VerifierFunc) Verify(ctx context.Context, delivery Delivery) error {
	return f(ctx, delivery)
}

type IdempotencyKeyExtractor func(delivery Delivery) (string, error)

type TopicResolver func(delivery Delivery) (string, error)

// SourceBinding declares how deliveries from one source become events. Either
// Topic (static) or ResolveTopic (per delivery) must be set.
type SourceBinding struct {
	Source       string
	Topic        string
	ResolveTopic TopicResolver
	ExtractKey   IdempotencyKeyExtractor
	Verifier     Verifier
}

// Coordinator accepts deliveries and submits them to the hub.
type Coordinator struct {
	submitter Submitter

	mu       sync.RWMutex
	bindings map[string]SourceBinding
}

func NewCoordinator(submitter Submitter) (*Coordinator, error) {
	if submitter == nil {
		return nil, inboundInternal("inbound: submitter is required", nil)
	}
	return &Coordinator{
		submitter: submitter,
		bindings:  map[string]SourceBinding{},
	}, nil
}

func (c *Coordinator) Bind(binding SourceBinding) error {
	if c == nil {
		return inboundInternal("inbound: coordinator is nil", nil)
	}
	source := normalizeSource(binding.Source)
	if source == "" {
		return inboundBadInput("inbound: binding source is required", nil)
	}
	if strings.TrimSpace(binding.Topic) == "" && binding.ResolveTopic == nil {
		return inboundBadInput(
			fmt.Sprintf("inbound: binding for %q needs a topic or topic resolver", source),
			map[string]any{"source": source},
		)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.bindings[source]; exists {
		return inboundError(
			fmt.Sprintf("inbound: binding already registered for source %q", source),
			goerrors.CategoryConflict,
			http.StatusConflict,
			core.HubErrorNotRetriable,
			map[string]any{"source": source},
		)
	}
	c.bindings[source] = binding
	return nil
}

func (c *Coordinator) Sources() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	sources := make([]string, 0, len(c.bindings))
	for source := range c.bindings {
		sources = append(sources, source)
	}
	return sources
}

// Accept validates a delivery against its source binding and submits it.
// Duplicate submissions are answered as accepted with Deduped set; the
// producer retrying a delivery must not see an error.
func (c *Coordinator) Accept(ctx context.Context, delivery Delivery) (Receipt, error) {
	if c == nil {
		return Receipt{}, inboundInternal("inbound: coordinator is nil", nil)
	}
	delivery.Source = normalizeSource(delivery.Source)
	delivery.TenantID = strings.TrimSpace(delivery.TenantID)
	if delivery.Source == "" {
		return Receipt{}, inboundBadInput("inbound: delivery source is required", nil)
	}
	if delivery.TenantID == "" {
		return Receipt{}, inboundBadInput("inbound: tenant id is required", map[string]any{
			"source": delivery.Source,
		})
	}

	binding, ok := c.bindingFor(delivery.Source)
	if !ok {
		return Receipt{}, inboundError(
			fmt.Sprintf("inbound: no binding registered for source %q", delivery.Source),
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			core.HubErrorNoHandler,
			map[string]any{"source": delivery.Source},
		)
	}

	if binding.Verifier != nil {
		if err := binding.Verifier.Verify(ctx, delivery); err != nil {
			return Receipt{StatusCode: http.StatusUnauthorized}, inboundWrapError(
				err,
				goerrors.CategoryAuth,
				"inbound: delivery verification failed",
				http.StatusUnauthorized,
				core.HubErrorBadInput,
				map[string]any{"source": delivery.Source},
			)
		}
	}

	topic, err := c.resolveTopic(binding, delivery)
	if err != nil {
		return Receipt{}, err
	}

	extractor := binding.ExtractKey
	if extractor == nil {
		extractor = DefaultIdempotencyKeyExtractor
	}
	key, err := extractor(delivery)
	if err != nil {
		return Receipt{}, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: resolve idempotency key",
			http.StatusBadRequest,
			core.HubErrorBadInput,
			map[string]any{"source": delivery.Source, "topic": topic},
		)
	}

	result, err := c.submitter.Submit(ctx, core.SubmitRequest{
		TenantID:       delivery.TenantID,
		Source:         delivery.Source,
		Topic:          topic,
		Payload:        delivery.Payload,
		IdempotencyKey: key,
		TraceID:        strings.TrimSpace(delivery.TraceID),
	})
	if err != nil {
		return Receipt{}, inboundWrapError(
			err,
			goerrors.CategoryOperation,
			"inbound: submit delivery",
			http.StatusInternalServerError,
			core.HubErrorInternal,
			map[string]any{"source": delivery.Source, "topic": topic},
		)
	}

	receipt := Receipt{
		EventID:    result.EventID,
		Accepted:   true,
		Deduped:    result.Duplicate,
		StatusCode: http.StatusAccepted,
	}
	if result.Duplicate {
		receipt.StatusCode = http.StatusOK
	}
	return receipt, nil
}

// DefaultIdempotencyKeyExtractor prefers explicit metadata, then the common
// delivery headers. A blank result is fine: keyless deliveries submit without
// dedup.
func DefaultIdempotencyKeyExtractor(delivery Delivery) (string, error) {
	if delivery.Metadata != nil {
		if value := trimAny(delivery.Metadata["idempotency_key"]); value != "" {
			return value, nil
		}
		if value := trimAny(delivery.Metadata["delivery_id"]); value != "" {
			return value, nil
		}
		if value := trimAny(delivery.Metadata["message_id"]); value != "" {
			return value, nil
		}
	}
	if delivery.Headers != nil {
		if value := headerValue(delivery.Headers, "idempotency-key"); value != "" {
			return value, nil
		}
		if value := headerValue(delivery.Headers, "x-idempotency-key"); value != "" {
			return value, nil
		}
		if value := headerValue(delivery.Headers, "x-delivery-id"); value != "" {
			return value, nil
		}
		if value := headerValue(delivery.Headers, "x-message-id"); value != "" {
			return value, nil
		}
	}
	return "", nil
}

func (c *Coordinator) bindingFor(source string) (SourceBinding, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	binding, ok := c.bindings[source]
	return binding, ok
}

func (c *Coordinator) resolveTopic(binding SourceBinding, delivery Delivery) (string, error) {
	if binding.ResolveTopic != nil {
		topic, err := binding.ResolveTopic(delivery)
		if err != nil {
			return "", inboundWrapError(
				err,
				goerrors.CategoryBadInput,
				"inbound: resolve topic",
				http.StatusBadRequest,
				core.HubErrorBadInput,
				map[string]any{"source": delivery.Source},
			)
		}
		if strings.TrimSpace(topic) != "" {
			return strings.TrimSpace(topic), nil
		}
	}
	if topic := strings.TrimSpace(binding.Topic); topic != "" {
		return topic, nil
	}
	return "", inboundBadInput(
		fmt.Sprintf("inbound: binding for %q resolved an empty topic", delivery.Source),
		map[string]any{"source": delivery.Source},
	)
}

func normalizeSource(source string) string {
	return strings.TrimSpace(strings.ToLower(source))
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

package inbound

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/julizen/eventhub/core"
)

type stubSubmitter struct {
	requests []core.SubmitRequest
	result   core.SubmitResult
	err      error
}

func (s *stubSubmitter) Submit(_ context.Context, req core.SubmitRequest) (core.SubmitResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return core.SubmitResult{}, s.err
	}
	return s.result, nil
}

func newTestCoordinator(t *testing.T, submitter Submitter, bindings ...SourceBinding) *Coordinator {
	t.Helper()
	coordinator, err := NewCoordinator(submitter)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	for _, binding := range bindings {
		if err := coordinator.Bind(binding); err != nil {
			t.Fatalf("bind %s: %v", binding.Source, err)
		}
	}
	return coordinator
}

func posDelivery() Delivery {
	return Delivery{
		Source:   "pos",
		TenantID: "t1",
		Payload:  map[string]any{"invoice": "F-100"},
		Headers:  map[string]string{"X-Delivery-Id": "dlv_1"},
		TraceID:  "trace-1",
	}
}

func TestCoordinatorAcceptSubmitsBoundTopic(t *testing.T) {
	submitter := &stubSubmitter{result: core.SubmitResult{EventID: "evt_1", Status: core.StatusPending}}
	coordinator := newTestCoordinator(t, submitter, SourceBinding{
		Source: "POS ",
		Topic:  "pos.invoice.received",
	})

	receipt, err := coordinator.Accept(context.Background(), posDelivery())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !receipt.Accepted || receipt.Deduped || receipt.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.EventID != "evt_1" {
		t.Fatalf("expected submitted event id, got %q", receipt.EventID)
	}
	if len(submitter.requests) != 1 {
		t.Fatalf("expected one submission, got %d", len(submitter.requests))
	}
	req := submitter.requests[0]
	if req.TenantID != "t1" || req.Source != "pos" || req.Topic != "pos.invoice.received" {
		t.Fatalf("unexpected submit request %+v", req)
	}
	if req.IdempotencyKey != "dlv_1" {
		t.Fatalf("expected delivery header as idempotency key, got %q", req.IdempotencyKey)
	}
	if req.TraceID != "trace-1" {
		t.Fatalf("expected trace id to pass through, got %q", req.TraceID)
	}
}

func TestCoordinatorAcceptAnswersDuplicatesAsDeduped(t *testing.T) {
	submitter := &stubSubmitter{result: core.SubmitResult{EventID: "evt_1", Duplicate: true}}
	coordinator := newTestCoordinator(t, submitter, SourceBinding{Source: "pos", Topic: "pos.invoice.received"})

	receipt, err := coordinator.Accept(context.Background(), posDelivery())
	if err != nil {
		t.Fatalf("a replayed delivery must not error: %v", err)
	}
	if !receipt.Accepted || !receipt.Deduped || receipt.StatusCode != http.StatusOK {
		t.Fatalf("unexpected dedup receipt %+v", receipt)
	}
}

func TestCoordinatorAcceptRequiresTenant(t *testing.T) {
	submitter := &stubSubmitter{}
	coordinator := newTestCoordinator(t, submitter, SourceBinding{Source: "pos", Topic: "pos.invoice.received"})

	delivery := posDelivery()
	delivery.TenantID = "   "
	if _, err := coordinator.Accept(context.Background(), delivery); err == nil {
		t.Fatal("expected error for missing tenant")
	}
	if len(submitter.requests) != 0 {
		t.Fatal("invalid delivery must not reach the submitter")
	}
}

func TestCoordinatorAcceptUnknownSource(t *testing.T) {
	coordinator := newTestCoordinator(t, &stubSubmitter{})
	if _, err := coordinator.Accept(context.Background(), posDelivery()); err == nil {
		t.Fatal("expected error for unbound source")
	}
}

func TestCoordinatorVerifierRejectsDelivery(t *testing.T) {
	submitter := &stubSubmitter{}
	coordinator := newTestCoordinator(t, submitter, SourceBinding{
		Source: "pos",
		Topic:  "pos.invoice.received",
		Verifier: VerifierFunc(func(_ context.Context, _ Delivery) error {
			return errors.New("bad signature")
		}),
	})

	receipt, err := coordinator.Accept(context.Background(), posDelivery())
	if err == nil {
		t.Fatal("expected verification error")
	}
	if receipt.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 receipt, got %d", receipt.StatusCode)
	}
	if len(submitter.requests) != 0 {
		t.Fatal("rejected delivery must not reach the submitter")
	}
}

func TestCoordinatorResolvesTopicPerDelivery(t *testing.T) {
	submitter := &stubSubmitter{result: core.SubmitResult{EventID: "evt_1"}}
	coordinator := newTestCoordinator(t, submitter, SourceBinding{
		Source: "shopify",
		ResolveTopic: func(delivery Delivery) (string, error) {
			return trimAny(delivery.Metadata["shopify_topic"]), nil
		},
	})

	delivery := posDelivery()
	delivery.Source = "shopify"
	delivery.Metadata = map[string]any{"shopify_topic": "orders/create"}
	if _, err := coordinator.Accept(context.Background(), delivery); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if submitter.requests[0].Topic != "orders/create" {
		t.Fatalf("expected resolved topic, got %q", submitter.requests[0].Topic)
	}

	// A resolver returning an empty topic without a static fallback fails.
	delivery.Metadata = map[string]any{}
	if _, err := coordinator.Accept(context.Background(), delivery); err == nil {
		t.Fatal("expected error for empty resolved topic")
	}
}

func TestCoordinatorBindValidation(t *testing.T) {
	coordinator := newTestCoordinator(t, &stubSubmitter{})

	if err := coordinator.Bind(SourceBinding{Source: " ", Topic: "x"}); err == nil {
		t.Fatal("expected error for blank source")
	}
	if err := coordinator.Bind(SourceBinding{Source: "pos"}); err == nil {
		t.Fatal("expected error for binding without topic or resolver")
	}
	if err := coordinator.Bind(SourceBinding{Source: "pos", Topic: "pos.invoice.received"}); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := coordinator.Bind(SourceBinding{Source: "POS", Topic: "other"}); err == nil {
		t.Fatal("expected error for duplicate source binding")
	}
}

func TestDefaultIdempotencyKeyExtractor(t *testing.T) {
	key, err := DefaultIdempotencyKeyExtractor(Delivery{
		Metadata: map[string]any{"idempotency_key": " meta-key "},
		Headers:  map[string]string{"X-Delivery-Id": "header-key"},
	})
	if err != nil || key != "meta-key" {
		t.Fatalf("expected metadata key preference, got %q err=%v", key, err)
	}

	key, err = DefaultIdempotencyKeyExtractor(Delivery{
		Headers: map[string]string{"x-message-id": "msg-9"},
	})
	if err != nil || key != "msg-9" {
		t.Fatalf("expected header fallback, got %q err=%v", key, err)
	}

	key, err = DefaultIdempotencyKeyExtractor(Delivery{})
	if err != nil || key != "" {
		t.Fatalf("keyless delivery must extract blank key, got %q err=%v", key, err)
	}
}

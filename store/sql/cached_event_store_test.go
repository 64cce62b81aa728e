package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/julizen/eventhub/core"
)

type stubEventStore struct {
	mu       sync.Mutex
	event    core.Event
	getCalls int
	getErr   error
}

func (s *stubEventStore) Create(_ context.Context, _ core.SubmitRequest) (core.Event, bool, error) {
	return s.event, false, nil
}

func (s *stubEventStore) Get(_ context.Context, tenantID string, eventID string) (core.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getErr != nil {
		return core.Event{}, s.getErr
	}
	if s.event.ID != eventID || s.event.TenantID != tenantID {
		return core.Event{}, core.ErrEventNotFound
	}
	return s.event.WorkingCopy(), nil
}

func (s *stubEventStore) Claim(_ context.Context, _ string) (core.Event, bool, error) {
	return s.event, true, nil
}

func (s *stubEventStore) RecordSuccess(_ context.Context, _ string, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Status = core.StatusSuccess
	s.event.Response = response
	return nil
}

func (s *stubEventStore) RecordFailure(_ context.Context, _ string, detail string, terminal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Status = core.StatusFailed
	if terminal {
		s.event.Status = core.StatusDead
	}
	s.event.Error = detail
	return nil
}

func (s *stubEventStore) MarkPending(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event.Status = core.StatusPending
	return nil
}

func (s *stubEventStore) ListPending(_ context.Context, _ int) ([]string, error) {
	return nil, nil
}

func (s *stubEventStore) CountPending(_ context.Context) (int, error) {
	return 0, nil
}

func (s *stubEventStore) ReclaimStale(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func newTestEventCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func pendingStubEvent() core.Event {
	return core.Event{
		ID:       "f81d4fae-7dec-41d0-a765-00a0c91e6bf6",
		TenantID: "t1",
		Source:   "pos",
		Topic:    "orders/create",
		Payload:  map[string]any{"n": 1},
		Status:   core.StatusPending,
	}
}

func TestCachedEventStoreGetMissFetchThenHit(t *testing.T) {
	base := &stubEventStore{event: pendingStubEvent()}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.Get(context.Background(), "t1", base.event.ID); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected first get to fetch base store once, got %d", base.getCalls)
	}
	if _, err := store.Get(context.Background(), "t1", base.event.ID); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected second get to be cache hit, base get calls=%d", base.getCalls)
	}
}

func TestCachedEventStoreStatusWritesInvalidate(t *testing.T) {
	base := &stubEventStore{event: pendingStubEvent()}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	eventID := base.event.ID

	if _, err := store.Get(context.Background(), "t1", eventID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.RecordSuccess(context.Background(), eventID, map[string]any{"invoice": "INV-1"}); err != nil {
		t.Fatalf("record success: %v", err)
	}

	event, err := store.Get(context.Background(), "t1", eventID)
	if err != nil {
		t.Fatalf("get after invalidation: %v", err)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidated key to force a second base read, got %d", base.getCalls)
	}
	if event.Status != core.StatusSuccess {
		t.Fatalf("expected refreshed status success, got %s", event.Status)
	}
}

func TestCachedEventStoreEnforcesTenantOnCachedValue(t *testing.T) {
	base := &stubEventStore{event: pendingStubEvent()}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}

	if _, err := store.Get(context.Background(), "t1", base.event.ID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := store.Get(context.Background(), "other-tenant", base.event.ID); !errors.Is(err, core.ErrEventNotFound) {
		t.Fatalf("expected not-found for foreign tenant on cached value, got %v", err)
	}
}

func TestCachedEventStorePropagatesBaseErrors(t *testing.T) {
	base := &stubEventStore{getErr: core.ErrEventNotFound}
	store, err := NewCachedEventStore(base, newTestEventCacheService(t))
	if err != nil {
		t.Fatalf("new cached event store: %v", err)
	}
	if _, err := store.Get(context.Background(), "t1", "f81d4fae-7dec-41d0-a765-00a0c91e6bf6"); !errors.Is(err, core.ErrEventNotFound) {
		t.Fatalf("expected base error propagation, got %v", err)
	}
}

func TestEventCacheKeyContract(t *testing.T) {
	key, err := EventCacheKey(" evt/one ")
	if err != nil {
		t.Fatalf("build cache key: %v", err)
	}
	const expected = "eventhub::event::v1::evt%2Fone"
	if key != expected {
		t.Fatalf("unexpected cache key contract: got %q want %q", key, expected)
	}
	if _, err := EventCacheKey("  "); err == nil {
		t.Fatal("expected error for blank event id")
	}
}

package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryEventStore mirrors the relational store's claim semantics behind a
// mutex so processor and sweep behavior can be exercised without a database.
type memoryEventStore struct {
	mu     sync.Mutex
	events map[string]*Event
	byKey  map[string]string
	seq    int
	now    func() time.Time

	claimDelay time.Duration
}

func newMemoryEventStore() *memoryEventStore {
	return &memoryEventStore{
		events: map[string]*Event{},
		byKey:  map[string]string{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *memoryEventStore) Create(_ context.Context, req SubmitRequest) (Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.IdempotencyKey != "" {
		key := req.TenantID + ":" + req.IdempotencyKey
		if existingID, ok := s.byKey[key]; ok {
			return *s.events[existingID], true, nil
		}
	}

	s.seq++
	now := s.now()
	event := &Event{
		ID:             fmt.Sprintf("evt_%d", s.seq),
		TenantID:       req.TenantID,
		Source:         req.Source,
		Topic:          req.Topic,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		DedupHash:      req.DedupHash,
		Status:         StatusPending,
		TraceID:        req.TraceID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.events[event.ID] = event
	if req.IdempotencyKey != "" {
		s.byKey[req.TenantID+":"+req.IdempotencyKey] = event.ID
	}
	return *event, false, nil
}

func (s *memoryEventStore) Get(_ context.Context, tenantID string, eventID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok || event.TenantID != tenantID {
		return Event{}, ErrEventNotFound
	}
	return *event, nil
}

func (s *memoryEventStore) Claim(_ context.Context, eventID string) (Event, bool, error) {
	s.mu.Lock()
	if s.claimDelay > 0 {
		delay := s.claimDelay
		s.mu.Unlock()
		time.Sleep(delay)
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return Event{}, false, ErrEventNotFound
	}
	if !event.Status.IsRetriable() {
		return Event{}, false, nil
	}
	event.Status = StatusProcessing
	event.Attempts++
	event.UpdatedAt = s.now()
	return *event, true, nil
}

func (s *memoryEventStore) RecordSuccess(_ context.Context, eventID string, response map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	event.Status = StatusSuccess
	event.Error = ""
	event.Response = response
	event.UpdatedAt = s.now()
	return nil
}

func (s *memoryEventStore) RecordFailure(_ context.Context, eventID string, detail string, terminal bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	event.Status = StatusFailed
	if terminal {
		event.Status = StatusDead
	}
	event.Error = detail
	event.UpdatedAt = s.now()
	return nil
}

func (s *memoryEventStore) MarkPending(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return ErrEventNotFound
	}
	event.Status = StatusPending
	event.UpdatedAt = s.now()
	return nil
}

func (s *memoryEventStore) ListPending(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type entry struct {
		id      string
		created time.Time
	}
	var entries []entry
	for id, event := range s.events {
		if event.Status == StatusPending {
			entries = append(entries, entry{id: id, created: event.CreatedAt})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			return entries[i].id < entries[j].id
		}
		return entries[i].created.Before(entries[j].created)
	})
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	return ids, nil
}

func (s *memoryEventStore) CountPending(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, event := range s.events {
		if event.Status == StatusPending {
			count++
		}
	}
	return count, nil
}

func (s *memoryEventStore) ReclaimStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, event := range s.events {
		if event.Status == StatusProcessing && event.UpdatedAt.Before(cutoff) {
			event.Status = StatusPending
			event.UpdatedAt = s.now()
			count++
		}
	}
	return count, nil
}

// listingEventStore adds the optional listing contract on top of the memory
// store for tests that exercise tenant-scoped reads.
type listingEventStore struct {
	*memoryEventStore
}

func (s *listingEventStore) ListEvents(_ context.Context, filter EventFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, event := range s.events {
		if event.TenantID != filter.TenantID {
			continue
		}
		if filter.Source != "" && event.Source != filter.Source {
			continue
		}
		if filter.Topic != "" && event.Topic != filter.Topic {
			continue
		}
		if filter.Status != "" && event.Status != filter.Status {
			continue
		}
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memoryEventStore) get(eventID string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return Event{}
	}
	return *event
}

type stubHandler struct {
	mu       sync.Mutex
	calls    int
	lastSeen Event
	result   HandlerResult
	err      error
	block    chan struct{}
}

func (h *stubHandler) Process(ctx context.Context, event Event) (HandlerResult, error) {
	h.mu.Lock()
	h.calls++
	h.lastSeen = event
	block := h.block
	h.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return HandlerResult{}, ctx.Err()
		}
	}
	return h.result, h.err
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

type recordingDispatcher struct {
	mu       sync.Mutex
	enqueued []string
}

func (d *recordingDispatcher) Enqueue(_ context.Context, eventID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enqueued = append(d.enqueued, eventID)
}

func (d *recordingDispatcher) ids() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.enqueued))
	copy(out, d.enqueued)
	return out
}

func newTestService(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, store EventStore, options ...Option) *Service {
	t.Helper()
	base := []Option{WithEventStore(store)}
	service, err := NewService(DefaultConfig(), append(base, options...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func mustRegister(t interface {
	Helper()
	Fatalf(format string, args ...any)
}, service *Service, topic string, handler Handler) {
	t.Helper()
	if err := service.RegisterHandler(topic, handler); err != nil {
		t.Fatalf("register handler for %s: %v", topic, err)
	}
}

var errUpstream = &HandlerError{
	Message:    "upstream rejected the document",
	StatusCode: 422,
	UpstreamBody: map[string]any{
		"code": "INVALID_SKU",
	},
}

func containsAll(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

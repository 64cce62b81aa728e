package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// EventStore is the single shared mutable resource of the hub. The claim
// protocol relies on the store's row-level locking primitives; no in-memory
// mutex can substitute because triggers may run in separate processes.
type EventStore interface {
	// Create inserts a new pending event. When the (tenant, idempotency key)
	// pair already exists, the existing event is returned with duplicate=true
	// and no second row is created.
	Create(ctx context.Context, req SubmitRequest) (event Event, duplicate bool, err error)

	Get(ctx context.Context, tenantID string, eventID string) (Event, error)

	// Claim re-reads the row under an exclusive lock, verifies the status is
	// still claimable (pending or failed), transitions it to processing and
	// increments attempts. The claim commits as its own transaction so the
	// transition is visible before the handler runs. claimed=false with a nil
	// error means another worker already owns or finished the event.
	Claim(ctx context.Context, eventID string) (event Event, claimed bool, err error)

	// RecordSuccess persists the terminal success outcome in a fresh
	// transaction, clearing error and attaching the handler response.
	RecordSuccess(ctx context.Context, eventID string, response map[string]any) error

	// RecordFailure persists a failed (or dead, when terminal) outcome in a
	// fresh transaction, re-fetching the row first.
	RecordFailure(ctx context.Context, eventID string, detail string, terminal bool) error

	// MarkPending resets a failed event for another processing round.
	MarkPending(ctx context.Context, eventID string) error

	// ListPending returns pending event ids ordered by creation time
	// ascending. limit <= 0 means no limit.
	ListPending(ctx context.Context, limit int) ([]string, error)

	CountPending(ctx context.Context) (int, error)

	// ReclaimStale moves processing rows whose last update is older than the
	// cutoff back to pending, returning how many rows moved.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int, error)
}

// EventFilter narrows a tenant-scoped event listing. Zero values mean no
// constraint; Limit <= 0 falls back to the store's default page size.
type EventFilter struct {
	TenantID string
	Source   string
	Topic    string
	Status   Status
	Limit    int
	Offset   int
}

// EventLister is implemented by stores that support tenant-scoped listings.
// It is optional on EventStore so in-memory fakes stay small.
type EventLister interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// Handler performs the external integration work for one topic. Handlers run
// outside the claim transaction and must tolerate at-least-once invocation.
type Handler interface {
	Process(ctx context.Context, event Event) (HandlerResult, error)
}

// HandlerFunc adapts a function to the Handler contract.
type HandlerFunc func(ctx context.Context, event Event) (HandlerResult, error)

func (f HandlerFunc) Process(ctx context.Context, event Event) (HandlerResult, error) {
	return f(ctx, event)
}

// Registry maps an event topic to its handler. Registration happens once at
// process start; unknown topics surface as failed events, never as a crash.
type Registry interface {
	Register(topic string, handler Handler) error
	Resolve(topic string) (Handler, bool)
	Topics() []string
}

// Dispatcher schedules asynchronous processing of a freshly created event,
// decoupled from the request that created it.
type Dispatcher interface {
	Enqueue(ctx context.Context, eventID string)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// StoreProvider is implemented by repository factories that can hand out the
// hub's stores once a database connection is resolved.
type StoreProvider interface {
	EventStore() EventStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// RetryPolicy computes how long a failed event should wait before the next
// attempt. Consumed by the scheduling adapters, not by the processor itself.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

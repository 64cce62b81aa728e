package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/julizen/eventhub/core"
)

const eventCacheKeyPrefix = "eventhub::event::v1"

// CachedEventStore layers a read-through cache over event lookups. Every
// status mutation deletes the cached entry so readers never observe a stale
// status after the row moved. The cache key is the event id alone; the tenant
// check happens on the cached value, which keeps mutators able to invalidate
// without knowing the tenant.
type CachedEventStore struct {
	base  core.EventStore
	cache repositorycache.CacheService
}

func NewCachedEventStore(base core.EventStore, cacheService repositorycache.CacheService) (*CachedEventStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base event store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: event cache service is required")
	}
	return &CachedEventStore{base: base, cache: cacheService}, nil
}

// EventCacheKey returns the deterministic cache key contract for event reads:
// eventhub::event::v1::<event_id> with the id URL-path escaped.
func EventCacheKey(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", fmt.Errorf("sqlstore: event id is required")
	}
	return eventCacheKeyPrefix + "::" + url.PathEscape(eventID), nil
}

func (s *CachedEventStore) Create(ctx context.Context, req core.SubmitRequest) (core.Event, bool, error) {
	if s == nil || s.base == nil {
		return core.Event{}, false, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	return s.base.Create(ctx, req)
}

func (s *CachedEventStore) Get(ctx context.Context, tenantID string, eventID string) (core.Event, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Event{}, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	cacheKey, err := EventCacheKey(eventID)
	if err != nil {
		return core.Event{}, err
	}

	event, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Event, error) {
		return s.base.Get(ctx, tenantID, eventID)
	})
	if err != nil {
		return core.Event{}, err
	}
	if event.TenantID != tenantID {
		return core.Event{}, fmt.Errorf("%w: id %q", core.ErrEventNotFound, eventID)
	}
	return event.WorkingCopy(), nil
}

func (s *CachedEventStore) Claim(ctx context.Context, eventID string) (core.Event, bool, error) {
	if s == nil || s.base == nil {
		return core.Event{}, false, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	event, claimed, err := s.base.Claim(ctx, eventID)
	if err != nil {
		return core.Event{}, false, err
	}
	if claimed {
		if invalidateErr := s.invalidate(ctx, eventID); invalidateErr != nil {
			return core.Event{}, false, invalidateErr
		}
	}
	return event, claimed, nil
}

func (s *CachedEventStore) RecordSuccess(ctx context.Context, eventID string, response map[string]any) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.RecordSuccess(ctx, eventID, response); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) RecordFailure(ctx context.Context, eventID string, detail string, terminal bool) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.RecordFailure(ctx, eventID, detail, terminal); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) MarkPending(ctx context.Context, eventID string) error {
	if s == nil || s.base == nil {
		return fmt.Errorf("sqlstore: cached event store is not configured")
	}
	if err := s.base.MarkPending(ctx, eventID); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedEventStore) ListPending(ctx context.Context, limit int) ([]string, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	return s.base.ListPending(ctx, limit)
}

func (s *CachedEventStore) CountPending(ctx context.Context) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	return s.base.CountPending(ctx)
}

func (s *CachedEventStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.base == nil {
		return 0, fmt.Errorf("sqlstore: cached event store is not configured")
	}
	// Reclaimed rows change status in bulk; the per-event entries expire via
	// the cache TTL since the affected ids are not returned.
	return s.base.ReclaimStale(ctx, cutoff)
}

func (s *CachedEventStore) invalidate(ctx context.Context, eventID string) error {
	cacheKey, err := EventCacheKey(eventID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.EventStore = (*CachedEventStore)(nil)

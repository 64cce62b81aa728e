package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/julizen/eventhub/core"
	"github.com/uptrace/bun"
)

const defaultListPageSize = 50

// EventStore is the relational implementation of the hub's event ledger. The
// claim transition is a compare-and-set UPDATE so two workers racing on the
// same row can never both observe a successful claim, regardless of dialect.
type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo}, nil
}

func (s *EventStore) Create(ctx context.Context, req core.SubmitRequest) (core.Event, bool, error) {
	if s == nil || s.db == nil {
		return core.Event{}, false, fmt.Errorf("sqlstore: event store is not configured")
	}
	if err := req.Validate(); err != nil {
		return core.Event{}, false, err
	}

	now := time.Now().UTC()
	record := newEventRecord(core.Event{
		ID:             uuid.NewString(),
		TenantID:       req.TenantID,
		Source:         req.Source,
		Topic:          req.Topic,
		Payload:        req.Payload,
		IdempotencyKey: req.IdempotencyKey,
		DedupHash:      req.DedupHash,
		Status:         core.StatusPending,
		TraceID:        req.TraceID,
	}, now)

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if record.IdempotencyKey != nil && isUniqueViolation(err) {
			existing, lookupErr := s.findByIdempotencyKey(ctx, record.TenantID, *record.IdempotencyKey)
			if lookupErr != nil {
				return core.Event{}, false, lookupErr
			}
			return existing, true, nil
		}
		return core.Event{}, false, err
	}
	return record.toDomain(), false, nil
}

func (s *EventStore) Get(ctx context.Context, tenantID string, eventID string) (core.Event, error) {
	if s == nil || s.db == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	record := &eventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", strings.TrimSpace(tenantID)).
		Where("?TableAlias.id = ?", strings.TrimSpace(eventID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Event{}, fmt.Errorf("%w: id %q", core.ErrEventNotFound, eventID)
		}
		return core.Event{}, err
	}
	return record.toDomain(), nil
}

// Claim transitions a claimable row to processing and increments attempts in
// a single guarded UPDATE. The committed transition is what makes every other
// concurrent claimer observe claimed=false.
func (s *EventStore) Claim(ctx context.Context, eventID string) (core.Event, bool, error) {
	if s == nil || s.db == nil {
		return core.Event{}, false, fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return core.Event{}, false, fmt.Errorf("sqlstore: event id is required")
	}

	now := time.Now().UTC()
	record := eventRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
UPDATE hub_events
SET status = ?, attempts = attempts + 1, updated_at = ?
WHERE id = ?
  AND status IN (?, ?)
RETURNING
	id,
	tenant_id,
	source,
	topic,
	payload,
	idempotency_key,
	dedup_hash,
	attempts,
	error,
	response,
	status,
	trace_id,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.StatusProcessing),
			now,
			eventID,
			string(core.StatusPending),
			string(core.StatusFailed),
		).Scan(ctx, &record)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.claimMiss(ctx, eventID)
		}
		return core.Event{}, false, err
	}
	return record.toDomain(), true, nil
}

// claimMiss distinguishes a lost race from a missing row.
func (s *EventStore) claimMiss(ctx context.Context, eventID string) (core.Event, bool, error) {
	exists, err := s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("?TableAlias.id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return core.Event{}, false, err
	}
	if !exists {
		return core.Event{}, false, fmt.Errorf("%w: id %q", core.ErrEventNotFound, eventID)
	}
	return core.Event{}, false, nil
}

func (s *EventStore) RecordSuccess(ctx context.Context, eventID string, response map[string]any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(core.StatusSuccess)).
		Set("error = ?", "").
		Set("response = ?", copyAnyMap(response)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(result, eventID)
}

func (s *EventStore) RecordFailure(ctx context.Context, eventID string, detail string, terminal bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	status := core.StatusFailed
	if terminal {
		status = core.StatusDead
	}
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(status)).
		Set("error = ?", detail).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(result, eventID)
}

func (s *EventStore) MarkPending(ctx context.Context, eventID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return fmt.Errorf("sqlstore: event id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(core.StatusPending)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(result, eventID)
}

func (s *EventStore) ListPending(ctx context.Context, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	query := s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Column("id").
		Where("?TableAlias.status = ?", string(core.StatusPending)).
		OrderExpr("?TableAlias.created_at ASC, ?TableAlias.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []string
	if err := query.Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *EventStore) CountPending(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: event store is not configured")
	}
	return s.db.NewSelect().
		Model((*eventRecord)(nil)).
		Where("?TableAlias.status = ?", string(core.StatusPending)).
		Count(ctx)
}

func (s *EventStore) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: event store is not configured")
	}
	result, err := s.db.NewUpdate().
		Model((*eventRecord)(nil)).
		Set("status = ?", string(core.StatusPending)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", string(core.StatusProcessing)).
		Where("updated_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *EventStore) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	tenantID := strings.TrimSpace(filter.TenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("sqlstore: tenant id is required")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListPageSize
	}

	var records []eventRecord
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.tenant_id = ?", tenantID).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(limit)
	if source := strings.TrimSpace(filter.Source); source != "" {
		query = query.Where("?TableAlias.source = ?", source)
	}
	if topic := strings.TrimSpace(filter.Topic); topic != "" {
		query = query.Where("?TableAlias.topic = ?", topic)
	}
	if filter.Status != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	events := make([]core.Event, 0, len(records))
	for i := range records {
		events = append(events, records[i].toDomain())
	}
	return events, nil
}

func (s *EventStore) findByIdempotencyKey(ctx context.Context, tenantID, key string) (core.Event, error) {
	record := &eventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tenant_id = ?", tenantID).
		Where("?TableAlias.idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Event{}, fmt.Errorf("%w: idempotency key %q", core.ErrEventNotFound, key)
		}
		return core.Event{}, err
	}
	return record.toDomain(), nil
}

func requireRow(result sql.Result, eventID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %q", core.ErrEventNotFound, eventID)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

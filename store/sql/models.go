package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type eventRecord struct {
	bun.BaseModel `bun:"table:hub_events,alias:he"`

	ID             string         `bun:"id,pk"`
	TenantID       string         `bun:"tenant_id,notnull"`
	Source         string         `bun:"source,notnull"`
	Topic          string         `bun:"topic,notnull"`
	Payload        map[string]any `bun:"payload,type:jsonb,notnull"`
	IdempotencyKey *string        `bun:"idempotency_key"`
	DedupHash      string         `bun:"dedup_hash"`
	Attempts       int            `bun:"attempts,notnull"`
	Error          string         `bun:"error"`
	Response       map[string]any `bun:"response,type:jsonb"`
	Status         string         `bun:"status,notnull"`
	TraceID        string         `bun:"trace_id"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

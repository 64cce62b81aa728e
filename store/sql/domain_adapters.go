package sqlstore

import (
	"strings"
	"time"

	"github.com/julizen/eventhub/core"
)

func newEventRecord(event core.Event, now time.Time) *eventRecord {
	record := &eventRecord{
		ID:        strings.TrimSpace(event.ID),
		TenantID:  strings.TrimSpace(event.TenantID),
		Source:    strings.TrimSpace(event.Source),
		Topic:     strings.TrimSpace(event.Topic),
		Payload:   copyAnyMap(event.Payload),
		DedupHash: strings.TrimSpace(event.DedupHash),
		Attempts:  event.Attempts,
		Error:     event.Error,
		Response:  copyAnyMap(event.Response),
		Status:    string(event.Status),
		TraceID:   strings.TrimSpace(event.TraceID),
		CreatedAt: event.CreatedAt,
		UpdatedAt: now,
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if trimmed := strings.TrimSpace(event.IdempotencyKey); trimmed != "" {
		record.IdempotencyKey = &trimmed
	}
	return record
}

func (r *eventRecord) toDomain() core.Event {
	if r == nil {
		return core.Event{}
	}
	event := core.Event{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Source:    r.Source,
		Topic:     r.Topic,
		Payload:   copyAnyMap(r.Payload),
		DedupHash: r.DedupHash,
		Attempts:  r.Attempts,
		Error:     r.Error,
		Response:  copyAnyMap(r.Response),
		Status:    core.Status(r.Status),
		TraceID:   r.TraceID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.IdempotencyKey != nil {
		event.IdempotencyKey = strings.TrimSpace(*r.IdempotencyKey)
	}
	return event
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

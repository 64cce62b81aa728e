package query

import (
	"context"

	"github.com/julizen/eventhub/core"
)

// EventReader resolves single events with tenant scoping enforced.
type EventReader interface {
	GetEvent(ctx context.Context, tenantID string, eventID string) (core.Event, error)
}

// EventLister pages through a tenant's events.
type EventLister interface {
	ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, error)
}

type GetEventQuery struct {
	reader EventReader
}

func NewGetEventQuery(reader EventReader) *GetEventQuery {
	return &GetEventQuery{reader: reader}
}

func (q *GetEventQuery) Query(ctx context.Context, msg GetEventMessage) (core.Event, error) {
	if q == nil || q.reader == nil {
		return core.Event{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetEvent(ctx, msg.TenantID, msg.EventID)
}

type ListEventsQuery struct {
	lister EventLister
}

func NewListEventsQuery(lister EventLister) *ListEventsQuery {
	return &ListEventsQuery{lister: lister}
}

func (q *ListEventsQuery) Query(ctx context.Context, msg ListEventsMessage) ([]core.Event, error) {
	if q == nil || q.lister == nil {
		return nil, queryDependencyError("query: event lister is required")
	}
	return q.lister.ListEvents(ctx, msg.Filter)
}

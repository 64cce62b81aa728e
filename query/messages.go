package query

import (
	"fmt"
	"strings"

	"github.com/julizen/eventhub/core"
)

const (
	TypeGetEvent   = "eventhub.query.event.get"
	TypeListEvents = "eventhub.query.event.list"
)

type GetEventMessage struct {
	TenantID string
	EventID  string
}

func (GetEventMessage) Type() string { return TypeGetEvent }

func (m GetEventMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("query: event id is required")
	}
	return nil
}

type ListEventsMessage struct {
	Filter core.EventFilter
}

func (ListEventsMessage) Type() string { return TypeListEvents }

func (m ListEventsMessage) Validate() error {
	if strings.TrimSpace(m.Filter.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	if m.Filter.Limit < 0 {
		return fmt.Errorf("query: limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return fmt.Errorf("query: offset must be >= 0")
	}
	return nil
}

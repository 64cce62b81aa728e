package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/julizen/eventhub/core"
)

// TopicOrderCreate routes POS order documents to the core backend.
const TopicOrderCreate = "order.create"

// costBearingLists are the payload collections whose entries carry a cost
// field the backend validates as a two-decimal string.
var costBearingLists = []string{"codes", "purchase_products"}

// Handler sanitizes order payloads and forwards them to the bulk endpoint.
type Handler struct {
	client *Client
	logger core.Logger
}

func NewHandler(client *Client, logger core.Logger) (*Handler, error) {
	if client == nil {
		return nil, fmt.Errorf("proxy: client is required")
	}
	return &Handler{
		client: client,
		logger: glog.Ensure(logger),
	}, nil
}

func (h *Handler) Process(ctx context.Context, event core.Event) (core.HandlerResult, error) {
	document := sanitizeCosts(event.Payload)

	h.logger.Info("proxy: forwarding order to backend", "event_id", event.ID)
	response, err := h.client.ForwardBulk(ctx, document)
	if err != nil {
		return core.HandlerResult{}, err
	}
	return core.HandlerResult{Response: response}, nil
}

// sanitizeCosts rewrites cost fields in the known collections to "%.2f"
// strings. The payload itself is not mutated.
func sanitizeCosts(payload map[string]any) map[string]any {
	document := make(map[string]any, len(payload))
	for key, value := range payload {
		document[key] = value
	}
	for _, listKey := range costBearingLists {
		entries, ok := document[listKey].([]any)
		if !ok {
			continue
		}
		sanitized := make([]any, 0, len(entries))
		for _, rawEntry := range entries {
			entry, ok := rawEntry.(map[string]any)
			if !ok {
				sanitized = append(sanitized, rawEntry)
				continue
			}
			cost, ok := costValue(entry["cost"])
			if !ok {
				sanitized = append(sanitized, rawEntry)
				continue
			}
			copied := make(map[string]any, len(entry))
			for key, value := range entry {
				copied[key] = value
			}
			copied["cost"] = fmt.Sprintf("%.2f", cost)
			sanitized = append(sanitized, copied)
		}
		document[listKey] = sanitized
	}
	return document
}

func costValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

var _ core.Handler = (*Handler)(nil)

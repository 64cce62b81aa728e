// Package transfer moves serialized inventory between two companies that run
// separate ERPNext sites. A submitted Purchase Receipt on the source site
// triggers a Delivery Note there and a mirroring Purchase Receipt on the
// destination site, so both stock ledgers agree on where the serials live.
package transfer

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/julizen/eventhub/core"
)

// TopicPurchaseReceiptSubmitted is the webhook topic the source ERPNext site
// fires when a Purchase Receipt is submitted.
const TopicPurchaseReceiptSubmitted = "purchase_receipt.submitted"

const doctypePurchaseReceipt = "Purchase Receipt"
const doctypeDeliveryNote = "Delivery Note"

// DocumentAPI is the slice of the ERPNext client the transfer needs on each
// side. *erpnext.Client satisfies it.
type DocumentAPI interface {
	GetDocument(ctx context.Context, doctype string, name string) (map[string]any, error)
	CreateDocument(ctx context.Context, doctype string, doc map[string]any) (map[string]any, error)
	SubmitDocument(ctx context.Context, doctype string, name string) (map[string]any, error)
}

// HandlerConfig names the receiving warehouse on the destination site. The
// source side keeps whatever warehouse the original receipt used.
type HandlerConfig struct {
	DestinationWarehouse string
}

func (c HandlerConfig) Validate() error {
	if strings.TrimSpace(c.DestinationWarehouse) == "" {
		return fmt.Errorf("transfer: destination warehouse is required")
	}
	return nil
}

// Handler replays a submitted source Purchase Receipt as a Delivery Note on
// the source site and a Purchase Receipt on the destination site.
type Handler struct {
	source      DocumentAPI
	destination DocumentAPI
	config      HandlerConfig
	logger      core.Logger
}

func NewHandler(source DocumentAPI, destination DocumentAPI, config HandlerConfig, logger core.Logger) (*Handler, error) {
	if source == nil || destination == nil {
		return nil, fmt.Errorf("transfer: source and destination clients are required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		source:      source,
		destination: destination,
		config:      config,
		logger:      glog.Ensure(logger),
	}, nil
}

func (h *Handler) Process(ctx context.Context, event core.Event) (core.HandlerResult, error) {
	receiptName := trimString(event.Payload["name"])
	if receiptName == "" {
		return core.HandlerResult{}, fmt.Errorf("transfer: purchase receipt name is missing from payload")
	}

	receipt, err := h.source.GetDocument(ctx, doctypePurchaseReceipt, receiptName)
	if err != nil {
		return core.HandlerResult{}, err
	}
	supplier := trimString(receipt["supplier"])
	if supplier == "" {
		return core.HandlerResult{}, fmt.Errorf("transfer: purchase receipt %s has no supplier", receiptName)
	}
	items, serials, err := receiptItems(receipt)
	if err != nil {
		return core.HandlerResult{}, fmt.Errorf("transfer: purchase receipt %s: %w", receiptName, err)
	}

	h.logger.Info("transfer: issuing delivery note on source site",
		"event_id", event.ID,
		"purchase_receipt", receiptName,
		"serials", len(serials),
	)
	deliveryNote, err := h.issueDocument(ctx, h.source, doctypeDeliveryNote, map[string]any{
		"doctype":       doctypeDeliveryNote,
		"customer":      supplier,
		"set_warehouse": receipt["set_warehouse"],
		"items":         documentItems(items, serials, ""),
	})
	if err != nil {
		return core.HandlerResult{}, err
	}

	h.logger.Info("transfer: receiving stock on destination site",
		"event_id", event.ID,
		"delivery_note", deliveryNote,
		"warehouse", h.config.DestinationWarehouse,
	)
	destinationReceipt, err := h.issueDocument(ctx, h.destination, doctypePurchaseReceipt, map[string]any{
		"doctype":       doctypePurchaseReceipt,
		"supplier":      supplier,
		"set_warehouse": h.config.DestinationWarehouse,
		"items":         documentItems(items, serials, h.config.DestinationWarehouse),
	})
	if err != nil {
		return core.HandlerResult{}, err
	}

	return core.HandlerResult{Response: map[string]any{
		"source_purchase_receipt":      receiptName,
		"source_delivery_note":         deliveryNote,
		"destination_purchase_receipt": destinationReceipt,
		"serial_numbers":               serials,
	}}, nil
}

// issueDocument creates a draft and submits it, returning the document name.
func (h *Handler) issueDocument(ctx context.Context, client DocumentAPI, doctype string, doc map[string]any) (string, error) {
	created, err := client.CreateDocument(ctx, doctype, doc)
	if err != nil {
		return "", err
	}
	name := trimString(created["name"])
	if name == "" {
		return "", fmt.Errorf("transfer: created %s has no document name", doctype)
	}
	if _, err := client.SubmitDocument(ctx, doctype, name); err != nil {
		return "", err
	}
	return name, nil
}

// receiptItems pulls the item rows off the receipt together with every serial
// number the rows carry. ERPNext stores serials as a newline-joined string on
// the row.
func receiptItems(receipt map[string]any) ([]map[string]any, []string, error) {
	rawItems, _ := receipt["items"].([]any)
	items := make([]map[string]any, 0, len(rawItems))
	serials := []string{}
	for _, rawItem := range rawItems {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		if trimString(item["item_code"]) == "" {
			continue
		}
		items = append(items, item)
		if !asBool(item["has_serial_no"]) {
			continue
		}
		for _, serial := range strings.Split(trimString(item["serial_no"]), "\n") {
			if serial = strings.TrimSpace(serial); serial != "" {
				serials = append(serials, serial)
			}
		}
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("no items with an item_code found")
	}
	return items, serials, nil
}

// documentItems rebuilds the item rows for the outgoing document. A blank
// warehouse keeps each row's original warehouse.
func documentItems(items []map[string]any, serials []string, warehouse string) []map[string]any {
	joined := strings.Join(serials, "\n")
	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		row := map[string]any{
			"item_code": trimString(item["item_code"]),
			"qty":       asFloat(item["qty"]),
			"serial_no": joined,
		}
		if warehouse != "" {
			row["warehouse"] = warehouse
		} else {
			row["warehouse"] = item["warehouse"]
		}
		rows = append(rows, row)
	}
	return rows
}

// asBool accepts both the JSON boolean and the 0/1 integer ERPNext uses for
// check fields.
func asBool(value any) bool {
	if flag, ok := value.(bool); ok {
		return flag
	}
	return asFloat(value) != 0
}

func trimString(value any) string {
	text, _ := value.(string)
	return strings.TrimSpace(text)
}

func asFloat(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case string:
		var parsed float64
		if _, err := fmt.Sscanf(strings.TrimSpace(typed), "%g", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}

var _ core.Handler = (*Handler)(nil)

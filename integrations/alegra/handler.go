package alegra

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/julizen/eventhub/core"
)

// TopicInvoiceReceived is the hub topic this integration serves.
const TopicInvoiceReceived = "pos.invoice.received"

// Banks with fixed Alegra account ids, ahead of any configured mapping.
var builtinPaymentAccounts = map[string]int{
	"Bancolombia":        5,
	"Davivienda":         6,
	"BBVA":               8,
	"Tarjeta de Crédito": 2,
}

// HandlerConfig carries the company-level Alegra settings the original kept
// in company metadata.
type HandlerConfig struct {
	NumberTemplateID     int
	NumberTemplatePrefix string
	PaymentAccounts      map[string]int
	DefaultAccountID     int
}

func (c HandlerConfig) Validate() error {
	if c.NumberTemplateID <= 0 {
		return fmt.Errorf("alegra: number template id is required")
	}
	return nil
}

// Handler turns a POS invoice event into an Alegra invoice: find-or-create
// the contact, fetch the next consecutive from the number template, then post
// the invoice document.
type Handler struct {
	client *Client
	config HandlerConfig
	logger core.Logger
}

func NewHandler(client *Client, config HandlerConfig, logger core.Logger) (*Handler, error) {
	if client == nil {
		return nil, fmt.Errorf("alegra: client is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.DefaultAccountID <= 0 {
		config.DefaultAccountID = 1
	}
	return &Handler{
		client: client,
		config: config,
		logger: glog.Ensure(logger),
	}, nil
}

func (h *Handler) Process(ctx context.Context, event core.Event) (core.HandlerResult, error) {
	if h == nil || h.client == nil {
		return core.HandlerResult{}, fmt.Errorf("alegra: handler is not configured")
	}

	customer, _ := event.Payload["customer"].(map[string]any)
	contactID, err := h.findOrCreateContact(ctx, customer)
	if err != nil {
		return core.HandlerResult{}, err
	}

	nextNumber, err := h.client.NextInvoiceNumber(ctx, h.config.NumberTemplateID)
	if err != nil {
		return core.HandlerResult{}, err
	}

	invoice, err := h.buildInvoice(event.Payload, contactID, nextNumber)
	if err != nil {
		return core.HandlerResult{}, err
	}

	h.logger.Info("alegra: creating invoice",
		"event_id", event.ID,
		"contact_id", contactID,
		"invoice_number", nextNumber,
	)
	response, err := h.client.CreateInvoice(ctx, invoice)
	if err != nil {
		return core.HandlerResult{}, err
	}
	return core.HandlerResult{Response: response}, nil
}

func (h *Handler) findOrCreateContact(ctx context.Context, customer map[string]any) (int, error) {
	identification := trimString(customer["identification"])
	if identification == "" {
		return 0, fmt.Errorf("alegra: customer identification is missing from payload")
	}

	existing, found, err := h.client.FindContactByIdentification(ctx, identification)
	if err != nil {
		return 0, err
	}
	if found {
		if id, ok := asInt(existing["id"]); ok {
			return id, nil
		}
		return 0, fmt.Errorf("alegra: contact %s has no usable id", identification)
	}

	identificationType := trimString(customer["identification_type"])
	if identificationType == "" {
		identificationType = "NIT"
	}
	address, _ := customer["address"].(map[string]any)
	contact := map[string]any{
		"name": customer["name"],
		"identificationObject": map[string]any{
			"type":   identificationType,
			"number": identification,
		},
		"email":  customer["email"],
		"mobile": customer["phone"],
		"address": map[string]any{
			"city":    address["city"],
			"address": address["line1"],
		},
		"type": "client",
	}
	created, err := h.client.CreateContact(ctx, contact)
	if err != nil {
		return 0, err
	}
	id, ok := asInt(created["id"])
	if !ok {
		return 0, fmt.Errorf("alegra: created contact has no usable id")
	}
	h.logger.Info("alegra: created contact", "contact_id", id, "identification", identification)
	return id, nil
}

func (h *Handler) buildInvoice(payload map[string]any, contactID int, nextNumber int) (map[string]any, error) {
	rawItems, _ := payload["items"].([]any)
	items := make([]map[string]any, 0, len(rawItems))
	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		productID, ok := asInt(item["alegra_product_id"])
		if !ok {
			continue
		}
		items = append(items, map[string]any{
			"id":       productID,
			"price":    item["rate"],
			"quantity": item["qty"],
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("alegra: no items with an alegra_product_id found in payload")
	}

	postingDate := trimString(payload["posting_date"])
	dueDate := trimString(payload["due_date"])
	if dueDate == "" {
		dueDate = postingDate
	}

	rawPayments, _ := payload["payments"].([]any)
	payments := make([]map[string]any, 0, len(rawPayments))
	for _, raw := range rawPayments {
		payment, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		payments = append(payments, map[string]any{
			"account":       map[string]any{"id": fmt.Sprintf("%d", h.paymentAccountID(trimString(payment["mode_of_payment"])))},
			"date":          postingDate,
			"amount":        payment["amount"],
			"paymentMethod": "transfer",
		})
	}

	return map[string]any{
		"numberTemplate": map[string]any{
			"id":     h.config.NumberTemplateID,
			"prefix": h.config.NumberTemplatePrefix,
			"number": nextNumber,
		},
		"date":          postingDate,
		"dueDate":       dueDate,
		"client":        map[string]any{"id": contactID},
		"items":         items,
		"payments":      payments,
		"stamp":         map[string]any{"generateStamp": true},
		"observations":  fmt.Sprintf("Invoice from ERPNext POS: %v", payload["name"]),
		"status":        "open",
		"paymentForm":   "CASH",
		"paymentMethod": "CASH",
		"type":          "NATIONAL",
		"operationType": "STANDARD",
	}, nil
}

func (h *Handler) paymentAccountID(modeOfPayment string) int {
	if id, ok := builtinPaymentAccounts[modeOfPayment]; ok {
		return id
	}
	if id, ok := h.config.PaymentAccounts[modeOfPayment]; ok {
		return id
	}
	return h.config.DefaultAccountID
}

func trimString(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

var _ core.Handler = (*Handler)(nil)

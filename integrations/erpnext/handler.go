package erpnext

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/julizen/eventhub/core"
)

// TopicOrdersCreate matches Shopify's webhook topic for new orders.
const TopicOrdersCreate = "orders/create"

const defaultCurrency = "USD"

// HandlerConfig carries the ERPNext document defaults that Shopify orders do
// not provide.
type HandlerConfig struct {
	CompanyName      string
	DefaultWarehouse string
}

func (c HandlerConfig) Validate() error {
	if strings.TrimSpace(c.CompanyName) == "" {
		return fmt.Errorf("erpnext: company name is required")
	}
	if strings.TrimSpace(c.DefaultWarehouse) == "" {
		return fmt.Errorf("erpnext: default warehouse is required")
	}
	return nil
}

// Handler converts a Shopify order into an ERPNext POS sales invoice.
type Handler struct {
	client *Client
	config HandlerConfig
	logger core.Logger
	now    func() time.Time
}

func NewHandler(client *Client, config HandlerConfig, logger core.Logger) (*Handler, error) {
	if client == nil {
		return nil, fmt.Errorf("erpnext: client is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		client: client,
		config: config,
		logger: glog.Ensure(logger),
		now:    time.Now,
	}, nil
}

func (h *Handler) Process(ctx context.Context, event core.Event) (core.HandlerResult, error) {
	customer, _ := event.Payload["customer"].(map[string]any)
	customerName, err := h.findOrCreateCustomer(ctx, customer)
	if err != nil {
		return core.HandlerResult{}, err
	}

	invoice, err := h.buildSalesInvoice(event.Payload, customerName)
	if err != nil {
		return core.HandlerResult{}, err
	}

	h.logger.Info("erpnext: creating sales invoice",
		"event_id", event.ID,
		"customer", customerName,
		"order", invoice["po_no"],
	)
	created, err := h.client.CreateSalesInvoice(ctx, invoice)
	if err != nil {
		return core.HandlerResult{}, err
	}
	return core.HandlerResult{Response: created}, nil
}

// findOrCreateCustomer resolves the ERPNext customer document name for the
// order's buyer, registering the buyer as an Individual on first sight.
func (h *Handler) findOrCreateCustomer(ctx context.Context, customer map[string]any) (string, error) {
	email := trimString(customer["email"])
	if email == "" {
		return "", fmt.Errorf("erpnext: customer email is missing from payload")
	}

	existing, found, err := h.client.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if found {
		if name := trimString(existing["name"]); name != "" {
			return name, nil
		}
		return "", fmt.Errorf("erpnext: customer %s has no document name", email)
	}

	fullName := strings.TrimSpace(trimString(customer["first_name"]) + " " + trimString(customer["last_name"]))
	if fullName == "" {
		fullName = email
	}
	created, err := h.client.CreateCustomer(ctx, map[string]any{
		"customer_name":  fullName,
		"customer_group": "Individual",
		"customer_type":  "Individual",
		"email_id":       email,
		"territory":      "All Territories",
	})
	if err != nil {
		return "", err
	}
	name := trimString(created["name"])
	if name == "" {
		return "", fmt.Errorf("erpnext: created customer %s has no document name", email)
	}
	h.logger.Info("erpnext: created customer", "customer", name, "email", email)
	return name, nil
}

func (h *Handler) buildSalesInvoice(payload map[string]any, customerName string) (map[string]any, error) {
	rawItems, _ := payload["line_items"].([]any)
	items := make([]map[string]any, 0, len(rawItems))
	for _, rawItem := range rawItems {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		sku := trimString(item["sku"])
		if sku == "" {
			continue
		}
		qty := asFloat(item["quantity"])
		rate := asFloat(item["price"])
		items = append(items, map[string]any{
			"item_code": sku,
			"qty":       qty,
			"rate":      rate,
			"amount":    qty * rate,
			"warehouse": h.config.DefaultWarehouse,
		})
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("erpnext: no line items with a sku found in payload")
	}

	currency := trimString(payload["currency"])
	if currency == "" {
		currency = defaultCurrency
	}
	today := h.now().Format("2006-01-02")

	return map[string]any{
		"customer":     customerName,
		"company":      h.config.CompanyName,
		"po_no":        payload["name"],
		"currency":     currency,
		"posting_date": today,
		"due_date":     today,
		"update_stock": 1,
		"is_pos":       1,
		"items":        items,
	}, nil
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

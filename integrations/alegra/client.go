// Package alegra sends POS invoices to the Alegra accounting API. It owns
// the topic "pos.invoice.received": contact lookup by identification number,
// invoice numbering through Alegra number templates and the invoice document
// itself.
package alegra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/julizen/eventhub/core"
)

const DefaultBaseURL = "https://api.alegra.com/api/v1"

const defaultClientTimeout = 20 * time.Second
const maxResponseBodyBytes int64 = 4 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a minimal Alegra REST client using basic auth.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient HTTPDoer
}

func NewClient(baseURL string, apiKey string, apiSecret string, doer HTTPDoer) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("alegra: api key and api secret are required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: doer,
	}, nil
}

// NextInvoiceNumber asks the number template for the next consecutive. Alegra
// answers with either "next" or "nextInvoiceNumber" depending on API vintage.
func (c *Client) NextInvoiceNumber(ctx context.Context, templateID int) (int, error) {
	if templateID <= 0 {
		return 0, fmt.Errorf("alegra: number template id is required")
	}
	payload, err := c.getJSON(ctx, fmt.Sprintf("/number-templates/%d", templateID))
	if err != nil {
		return 0, err
	}
	template, ok := payload.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("alegra: unexpected number template response %T", payload)
	}
	for _, key := range []string{"next", "nextInvoiceNumber"} {
		if next, ok := asInt(template[key]); ok {
			return next, nil
		}
	}
	return 0, fmt.Errorf("alegra: number template %d has no next invoice number", templateID)
}

// FindContactByIdentification searches contacts by identification number.
// found=false with a nil error means no contact matched.
func (c *Client) FindContactByIdentification(ctx context.Context, identification string) (map[string]any, bool, error) {
	identification = strings.TrimSpace(identification)
	if identification == "" {
		return nil, false, fmt.Errorf("alegra: contact identification is required")
	}
	payload, err := c.getJSON(ctx, "/contacts?identification="+identification)
	if err != nil {
		return nil, false, err
	}
	results, ok := payload.([]any)
	if !ok || len(results) == 0 {
		return nil, false, nil
	}
	contact, ok := results[0].(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("alegra: unexpected contact search entry %T", results[0])
	}
	return contact, true, nil
}

func (c *Client) CreateContact(ctx context.Context, contact map[string]any) (map[string]any, error) {
	return c.postJSON(ctx, "/contacts", contact)
}

func (c *Client) CreateInvoice(ctx context.Context, invoice map[string]any) (map[string]any, error) {
	return c.postJSON(ctx, "/invoices", invoice)
}

func (c *Client) getJSON(ctx context.Context, path string) (any, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	payload, err := c.doJSON(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	document, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("alegra: unexpected response for %s: %T", path, payload)
	}
	return document, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, body map[string]any) (any, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("alegra: client is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("alegra: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("alegra: create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alegra: execute request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("alegra: read response body: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, upstreamError("alegra", method, path, res.StatusCode, raw)
	}

	var payload any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("alegra: decode response for %s: %w", path, err)
		}
	}
	return payload, nil
}

// upstreamError preserves the machine-readable error body the API returned so
// the processor can record it verbatim on the event.
func upstreamError(integration string, method string, path string, statusCode int, raw []byte) error {
	handlerErr := &core.HandlerError{
		Message:    fmt.Sprintf("%s: %s %s returned status %d", integration, method, path, statusCode),
		StatusCode: statusCode,
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil && len(body) > 0 {
		handlerErr.UpstreamBody = body
	} else if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		handlerErr.Message = fmt.Sprintf("%s: %s", handlerErr.Message, trimmed)
	}
	return handlerErr
}

func asInt(value any) (int, bool) {
	switch typed := value.(type) {
	case int:
		return typed, true
	case int64:
		return int(typed), true
	case float64:
		return int(typed), true
	case json.Number:
		parsed, err := typed.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		var parsed int
		if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

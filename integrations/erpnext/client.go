// Package erpnext turns Shopify "orders/create" webhooks into ERPNext POS
// sales invoices: it resolves the customer by email, creating one when the
// store has never seen the buyer, and posts the invoice document through the
// ERPNext resource API.
package erpnext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/julizen/eventhub/core"
)

const defaultClientTimeout = 20 * time.Second
const maxResponseBodyBytes int64 = 4 << 20

const resourceAPIPrefix = "/api/resource/"
const customerResourcePath = resourceAPIPrefix + "Customer"
const salesInvoiceResourcePath = resourceAPIPrefix + "Sales Invoice"

// docstatus 1 marks an ERPNext document as submitted.
const docstatusSubmitted = 1

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the ERPNext resource API with token auth.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient HTTPDoer
}

func NewClient(baseURL string, apiKey string, apiSecret string, doer HTTPDoer) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("erpnext: base url is required")
	}
	apiKey = strings.TrimSpace(apiKey)
	apiSecret = strings.TrimSpace(apiSecret)
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("erpnext: api key and api secret are required")
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

// FindCustomerByEmail looks the customer up through a resource filter on
// email_id. found=false with a nil error means no customer matched.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (map[string]any, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, false, fmt.Errorf("erpnext: customer email is required")
	}
	filters, err := json.Marshal([][]string{{"email_id", "=", email}})
	if err != nil {
		return nil, false, fmt.Errorf("erpnext: encode customer filters: %w", err)
	}
	query := url.Values{}
	query.Set("filters", string(filters))
	payload, err := c.doJSON(ctx, http.MethodGet, customerResourcePath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, false, err
	}
	results, _ := payload["data"].([]any)
	if len(results) == 0 {
		return nil, false, nil
	}
	customer, ok := results[0].(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("erpnext: unexpected customer search entry %T", results[0])
	}
	return customer, true, nil
}

func (c *Client) CreateCustomer(ctx context.Context, customer map[string]any) (map[string]any, error) {
	payload, err := c.doJSON(ctx, http.MethodPost, customerResourcePath, customer)
	if err != nil {
		return nil, err
	}
	return documentData(payload), nil
}

func (c *Client) CreateSalesInvoice(ctx context.Context, invoice map[string]any) (map[string]any, error) {
	payload, err := c.doJSON(ctx, http.MethodPost, salesInvoiceResourcePath, invoice)
	if err != nil {
		return nil, err
	}
	return documentData(payload), nil
}

// GetDocument fetches a single document by doctype and name.
func (c *Client) GetDocument(ctx context.Context, doctype string, name string) (map[string]any, error) {
	path, err := documentResourcePath(doctype, name)
	if err != nil {
		return nil, err
	}
	payload, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return documentData(payload), nil
}

// CreateDocument creates a document of the given doctype in draft state.
func (c *Client) CreateDocument(ctx context.Context, doctype string, doc map[string]any) (map[string]any, error) {
	doctype = strings.TrimSpace(doctype)
	if doctype == "" {
		return nil, fmt.Errorf("erpnext: doctype is required")
	}
	payload, err := c.doJSON(ctx, http.MethodPost, resourceAPIPrefix+doctype, doc)
	if err != nil {
		return nil, err
	}
	return documentData(payload), nil
}

// SubmitDocument moves a draft document to submitted, which is what makes
// stock-affecting documents post their ledger entries.
func (c *Client) SubmitDocument(ctx context.Context, doctype string, name string) (map[string]any, error) {
	path, err := documentResourcePath(doctype, name)
	if err != nil {
		return nil, err
	}
	payload, err := c.doJSON(ctx, http.MethodPut, path, map[string]any{"docstatus": docstatusSubmitted})
	if err != nil {
		return nil, err
	}
	return documentData(payload), nil
}

func documentResourcePath(doctype string, name string) (string, error) {
	doctype = strings.TrimSpace(doctype)
	name = strings.TrimSpace(name)
	if doctype == "" || name == "" {
		return "", fmt.Errorf("erpnext: doctype and document name are required")
	}
	return resourceAPIPrefix + doctype + "/" + name, nil
}

// documentData unwraps the resource envelope; ERPNext nests the document
// under "data".
func documentData(payload map[string]any) map[string]any {
	if data, ok := payload["data"].(map[string]any); ok {
		return data
	}
	return payload
}

func (c *Client) doJSON(ctx context.Context, method string, path string, body map[string]any) (map[string]any, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("erpnext: client is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("erpnext: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := c.baseURL + (&url.URL{Path: path}).EscapedPath()
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		endpoint = c.baseURL + (&url.URL{Path: path[:idx]}).EscapedPath() + path[idx:]
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("erpnext: create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erpnext: execute request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("erpnext: read response body: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, upstreamError("erpnext", method, path, res.StatusCode, raw)
	}

	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("erpnext: decode response for %s: %w", path, err)
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

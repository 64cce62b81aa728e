// Package proxy forwards order payloads to the core backend's bulk endpoint.
// It owns the topic "order.create": cost fields arrive from the POS as floats
// and the backend insists on two-decimal strings, so the payload is sanitized
// before forwarding and the backend's JSON error body is passed through
// untouched when the forward fails.
package proxy

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

const defaultClientTimeout = 30 * time.Second
const maxResponseBodyBytes int64 = 4 << 20

const bulkEndpointPath = "/api/bulk/"

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts documents to the core backend with bearer auth.
type Client struct {
	baseURL    string
	authToken  string
	httpClient HTTPDoer
}

func NewClient(baseURL string, authToken string, doer HTTPDoer) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("proxy: base url is required")
	}
	if doer == nil {
		doer = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		authToken:  strings.TrimSpace(authToken),
		httpClient: doer,
	}, nil
}

// ForwardBulk posts the sanitized order document to the bulk endpoint and
// returns the backend's response document.
func (c *Client) ForwardBulk(ctx context.Context, document map[string]any) (map[string]any, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("proxy: client is not configured")
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("proxy: encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulkEndpointPath, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("proxy: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy: execute request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("proxy: read response body: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return nil, upstreamError(res.StatusCode, raw)
	}

	payload := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("proxy: decode backend response: %w", err)
		}
	}
	return payload, nil
}

func upstreamError(statusCode int, raw []byte) error {
	handlerErr := &core.HandlerError{
		Message:    fmt.Sprintf("proxy: POST %s returned status %d", bulkEndpointPath, statusCode),
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

package alegra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julizen/eventhub/core"
)

type alegraFake struct {
	t *testing.T

	contacts        []map[string]any
	nextNumber      int
	invoiceStatus   int
	invoiceError    map[string]any
	createdContacts []map[string]any
	invoices        []map[string]any
}

func (f *alegraFake) server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/number-templates/7":
			writeJSON(w, http.StatusOK, map[string]any{"next": f.nextNumber})
		case r.Method == http.MethodGet && r.URL.Path == "/contacts":
			writeJSON(w, http.StatusOK, f.contacts)
		case r.Method == http.MethodPost && r.URL.Path == "/contacts":
			var contact map[string]any
			_ = json.NewDecoder(r.Body).Decode(&contact)
			f.createdContacts = append(f.createdContacts, contact)
			writeJSON(w, http.StatusCreated, map[string]any{"id": 42, "name": contact["name"]})
		case r.Method == http.MethodPost && r.URL.Path == "/invoices":
			var invoice map[string]any
			_ = json.NewDecoder(r.Body).Decode(&invoice)
			f.invoices = append(f.invoices, invoice)
			if f.invoiceStatus >= http.StatusBadRequest {
				writeJSON(w, f.invoiceStatus, f.invoiceError)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"id": 900, "status": "open"})
		default:
			f.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newFakeHandler(t *testing.T, fake *alegraFake) (*Handler, func()) {
	t.Helper()
	fake.t = t
	server := fake.server()
	client, err := NewClient(server.URL, "key", "secret", server.Client())
	if err != nil {
		server.Close()
		t.Fatalf("new client: %v", err)
	}
	handler, err := NewHandler(client, HandlerConfig{
		NumberTemplateID:     7,
		NumberTemplatePrefix: "FV",
		DefaultAccountID:     1,
	}, nil)
	if err != nil {
		server.Close()
		t.Fatalf("new handler: %v", err)
	}
	return handler, server.Close
}

func posInvoiceEvent() core.Event {
	return core.Event{
		ID:       "evt_1",
		TenantID: "t1",
		Source:   "pos",
		Topic:    TopicInvoiceReceived,
		Payload: map[string]any{
			"name":         "POS-0001",
			"posting_date": "2026-03-01",
			"company":      "Julizen SAS",
			"customer": map[string]any{
				"name":           "Carolina Fuentes",
				"identification": "900123456",
				"email":          "caro@example.com",
			},
			"items": []any{
				map[string]any{"alegra_product_id": float64(11), "rate": 25000.0, "qty": 2.0},
				map[string]any{"rate": 9000.0, "qty": 1.0},
			},
			"payments": []any{
				map[string]any{"mode_of_payment": "Bancolombia", "amount": 50000.0},
				map[string]any{"mode_of_payment": "Efectivo", "amount": 9000.0},
			},
		},
	}
}

func TestHandlerCreatesInvoiceForExistingContact(t *testing.T) {
	fake := &alegraFake{
		contacts:   []map[string]any{{"id": float64(77), "name": "Carolina Fuentes"}},
		nextNumber: 1205,
	}
	handler, closeServer := newFakeHandler(t, fake)
	defer closeServer()

	result, err := handler.Process(context.Background(), posInvoiceEvent())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Response["id"] != float64(900) {
		t.Fatalf("expected alegra invoice id in response, got %v", result.Response)
	}
	if len(fake.createdContacts) != 0 {
		t.Fatal("existing contact must not be recreated")
	}
	if len(fake.invoices) != 1 {
		t.Fatalf("expected one invoice post, got %d", len(fake.invoices))
	}

	invoice := fake.invoices[0]
	template := invoice["numberTemplate"].(map[string]any)
	if template["number"] != float64(1205) || template["prefix"] != "FV" {
		t.Fatalf("unexpected number template %v", template)
	}
	client := invoice["client"].(map[string]any)
	if client["id"] != float64(77) {
		t.Fatalf("expected existing contact id on invoice, got %v", client)
	}
	items := invoice["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("items without alegra_product_id must be dropped, got %v", items)
	}
	payments := invoice["payments"].([]any)
	first := payments[0].(map[string]any)["account"].(map[string]any)
	if first["id"] != "5" {
		t.Fatalf("Bancolombia must map to account 5, got %v", first["id"])
	}
	second := payments[1].(map[string]any)["account"].(map[string]any)
	if second["id"] != "1" {
		t.Fatalf("unmapped payment mode must fall back to the default account, got %v", second["id"])
	}
}

func TestHandlerCreatesMissingContact(t *testing.T) {
	fake := &alegraFake{contacts: []map[string]any{}, nextNumber: 9}
	handler, closeServer := newFakeHandler(t, fake)
	defer closeServer()

	if _, err := handler.Process(context.Background(), posInvoiceEvent()); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fake.createdContacts) != 1 {
		t.Fatalf("expected one contact creation, got %d", len(fake.createdContacts))
	}
	contact := fake.createdContacts[0]
	identification := contact["identificationObject"].(map[string]any)
	if identification["number"] != "900123456" || identification["type"] != "NIT" {
		t.Fatalf("unexpected identification %v", identification)
	}
	client := fake.invoices[0]["client"].(map[string]any)
	if client["id"] != float64(42) {
		t.Fatalf("expected freshly created contact id, got %v", client)
	}
}

func TestHandlerSurfacesUpstreamErrorBody(t *testing.T) {
	fake := &alegraFake{
		contacts:      []map[string]any{{"id": float64(77)}},
		nextNumber:    3,
		invoiceStatus: http.StatusUnprocessableEntity,
		invoiceError:  map[string]any{"code": "INVALID_ITEM", "message": "item 11 not found"},
	}
	handler, closeServer := newFakeHandler(t, fake)
	defer closeServer()

	_, err := handler.Process(context.Background(), posInvoiceEvent())
	if err == nil {
		t.Fatal("expected upstream error")
	}
	var handlerErr *core.HandlerError
	if !errors.As(err, &handlerErr) {
		t.Fatalf("expected HandlerError, got %T: %v", err, err)
	}
	if handlerErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", handlerErr.StatusCode)
	}
	if handlerErr.UpstreamBody["code"] != "INVALID_ITEM" {
		t.Fatalf("expected upstream body passthrough, got %v", handlerErr.UpstreamBody)
	}
}

func TestHandlerRejectsPayloadWithoutIdentification(t *testing.T) {
	fake := &alegraFake{nextNumber: 3}
	handler, closeServer := newFakeHandler(t, fake)
	defer closeServer()

	event := posInvoiceEvent()
	event.Payload["customer"] = map[string]any{"name": "No ID"}
	if _, err := handler.Process(context.Background(), event); err == nil {
		t.Fatal("expected error for missing identification")
	}
}

func TestHandlerRejectsPayloadWithoutUsableItems(t *testing.T) {
	fake := &alegraFake{
		contacts:   []map[string]any{{"id": float64(77)}},
		nextNumber: 3,
	}
	handler, closeServer := newFakeHandler(t, fake)
	defer closeServer()

	event := posInvoiceEvent()
	event.Payload["items"] = []any{map[string]any{"rate": 100.0, "qty": 1.0}}
	if _, err := handler.Process(context.Background(), event); err == nil {
		t.Fatal("expected error when no item carries an alegra product id")
	}
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/metrics"
	"github.com/dukerupert/splitcart/internal/middleware"
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, nil, nil, metrics.New(), opts, quietLogger()).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body = %s", rec.Code, status, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h := setupServer(t, Options{})
	rec := do(t, h, "GET", "/health", nil)
	expect(t, rec, http.StatusOK)

	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestGlossaryEndpoints(t *testing.T) {
	h := setupServer(t, Options{})

	expect(t, do(t, h, "POST", "/api/glossary", map[string]any{"name": "  "}), http.StatusBadRequest)
	expect(t, do(t, h, "POST", "/api/glossary", map[string]any{"name": "Milk", "consumer": "bob"}), http.StatusBadRequest)
	expect(t, do(t, h, "POST", "/api/glossary", map[string]any{"name": "Milk", "price": -1}), http.StatusBadRequest)

	rec := do(t, h, "POST", "/api/glossary", map[string]any{"name": "Milk", "price": 3.0})
	expect(t, rec, http.StatusCreated)
	milk := decode[model.GlossaryItem](t, rec)
	if milk.Category != "dairy" || milk.Consumer != model.ConsumerBoth || milk.Store != model.StoreWalmart {
		t.Errorf("milk defaults = %+v", milk)
	}

	for _, body := range []map[string]any{
		{"name": "Steak", "price": 10.0, "consumer": "grant"},
		{"name": "apples", "category": "Fruit"},
		{"name": "9-volt battery", "category": "utility", "store": "Sams"},
	} {
		expect(t, do(t, h, "POST", "/api/glossary", body), http.StatusCreated)
	}

	items := decode[[]model.GlossaryItem](t, do(t, h, "GET", "/api/glossary?q=GRANT", nil))
	if len(items) != 1 || items[0].Name != "Steak" {
		t.Errorf("consumer search = %+v", items)
	}

	items = decode[[]model.GlossaryItem](t, do(t, h, "GET", "/api/glossary?category=fruit,DAIRY", nil))
	if len(items) != 2 || items[0].Name != "apples" || items[1].Name != "Milk" {
		t.Errorf("category filter = %+v", items)
	}

	suggest := decode[[]model.GlossaryItem](t, do(t, h, "GET", "/api/glossary/suggest?q=mil", nil))
	if len(suggest) != 1 || suggest[0].Name != "Milk" {
		t.Errorf("suggest = %+v", suggest)
	}

	groups := decode[[]struct {
		Letter string               `json:"letter"`
		Items  []model.GlossaryItem `json:"items"`
	}](t, do(t, h, "GET", "/api/glossary?grouped=true", nil))
	var letters []string
	for _, g := range groups {
		letters = append(letters, g.Letter)
	}
	if got := strings.Join(letters, ""); got != "AMS#" {
		t.Errorf("letters = %q, want AMS#", got)
	}

	cat := decode[map[string]string](t, do(t, h, "GET", "/api/glossary/categorize?name=Paper+Towels", nil))
	if cat["category"] != "utility" {
		t.Errorf("categorize = %v", cat)
	}

	rec = do(t, h, "PUT", fmt.Sprintf("/api/glossary/%d", milk.ID), map[string]any{"name": "Whole Milk", "price": 3.5, "category": "dairy"})
	expect(t, rec, http.StatusOK)
	expect(t, do(t, h, "PUT", "/api/glossary/999", map[string]any{"name": "Ghost"}), http.StatusNotFound)
	expect(t, do(t, h, "GET", "/api/glossary/abc", nil), http.StatusBadRequest)

	expect(t, do(t, h, "DELETE", fmt.Sprintf("/api/glossary/%d", milk.ID), nil), http.StatusNoContent)
	expect(t, do(t, h, "GET", fmt.Sprintf("/api/glossary/%d", milk.ID), nil), http.StatusNotFound)
}

func TestAddToListCopiesValues(t *testing.T) {
	h := setupServer(t, Options{})

	g := decode[model.GlossaryItem](t, do(t, h, "POST", "/api/glossary", map[string]any{"name": "Milk", "price": 3.0, "category": "dairy"}))
	list := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly", "date": "2026-02-01"}))

	expect(t, do(t, h, "POST", fmt.Sprintf("/api/glossary/%d/add-to-list", g.ID), map[string]any{"list_id": 999}), http.StatusNotFound)

	rec := do(t, h, "POST", fmt.Sprintf("/api/glossary/%d/add-to-list", g.ID), map[string]any{"list_id": list.ID})
	expect(t, rec, http.StatusCreated)
	item := decode[model.ShoppingListItem](t, rec)
	if item.Quantity != 1 || item.Checked || item.ItemID == nil || *item.ItemID != g.ID {
		t.Errorf("item = %+v", item)
	}

	// Later glossary edits do not reach the list copy.
	do(t, h, "PUT", fmt.Sprintf("/api/glossary/%d", g.ID), map[string]any{"name": "Oat Milk", "price": 5.0})
	items := decode[[]model.ShoppingListItem](t, do(t, h, "GET", fmt.Sprintf("/api/lists/%d/items", list.ID), nil))
	if len(items) != 1 || items[0].Name != "Milk" || *items[0].Price != 3.0 {
		t.Errorf("items = %+v", items)
	}
}

func TestCategoryEndpoints(t *testing.T) {
	h := setupServer(t, Options{})

	type view struct {
		Categories []string `json:"categories"`
		Custom     []string `json:"custom"`
	}

	v := decode[view](t, do(t, h, "GET", "/api/categories", nil))
	if strings.Join(v.Categories, ",") != "dairy,fruit,meat,other,utility,vegetables" {
		t.Errorf("base categories = %v", v.Categories)
	}

	expect(t, do(t, h, "POST", "/api/categories", map[string]any{"name": ""}), http.StatusBadRequest)
	rec := do(t, h, "POST", "/api/categories", map[string]any{"name": "  Snacks "})
	expect(t, rec, http.StatusCreated)
	v = decode[view](t, rec)
	if len(v.Custom) != 1 || v.Custom[0] != "snacks" {
		t.Errorf("custom = %v", v.Custom)
	}

	v = decode[view](t, do(t, h, "PUT", "/api/categories/snacks", map[string]any{"name": "Treats"}))
	if len(v.Custom) != 1 || v.Custom[0] != "treats" {
		t.Errorf("custom after rename = %v", v.Custom)
	}
	expect(t, do(t, h, "PUT", "/api/categories/nope", map[string]any{"name": "x"}), http.StatusNotFound)

	expect(t, do(t, h, "DELETE", "/api/categories/treats", nil), http.StatusNoContent)
	v = decode[view](t, do(t, h, "GET", "/api/categories", nil))
	if len(v.Custom) != 0 {
		t.Errorf("custom after delete = %v", v.Custom)
	}
}

func TestListAndItemEndpoints(t *testing.T) {
	h := setupServer(t, Options{})

	expect(t, do(t, h, "POST", "/api/lists", map[string]any{"name": ""}), http.StatusBadRequest)
	expect(t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly", "date": "02/01/2026"}), http.StatusBadRequest)

	rec := do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly"})
	expect(t, rec, http.StatusCreated)
	list := decode[model.ShoppingList](t, rec)
	if list.Date == "" {
		t.Error("date not defaulted")
	}

	itemsPath := fmt.Sprintf("/api/lists/%d/items", list.ID)
	expect(t, do(t, h, "POST", itemsPath, map[string]any{"name": "Milk"}), http.StatusBadRequest)
	expect(t, do(t, h, "POST", itemsPath, map[string]any{"name": "Milk", "quantity": 0}), http.StatusBadRequest)
	expect(t, do(t, h, "POST", "/api/lists/999/items", map[string]any{"name": "Milk", "quantity": 1}), http.StatusNotFound)

	rec = do(t, h, "POST", itemsPath, map[string]any{"name": "Milk", "price": 3.0, "quantity": 2})
	expect(t, rec, http.StatusCreated)
	milk := decode[model.ShoppingListItem](t, rec)
	if milk.Category != "dairy" || milk.Consumer != model.ConsumerBoth {
		t.Errorf("milk = %+v", milk)
	}

	checked := decode[model.ShoppingListItem](t, do(t, h, "POST", fmt.Sprintf("%s/%d/check", itemsPath, milk.ID), nil))
	if !checked.Checked {
		t.Error("toggle did not check item")
	}
	unchecked := decode[model.ShoppingListItem](t, do(t, h, "POST", fmt.Sprintf("%s/%d/check", itemsPath, milk.ID), map[string]any{"checked": false}))
	if unchecked.Checked {
		t.Error("explicit uncheck ignored")
	}

	totals := decode[struct {
		Grant struct {
			Total float64 `json:"total"`
		} `json:"grant"`
		Display map[string]string `json:"display"`
	}](t, do(t, h, "GET", fmt.Sprintf("/api/lists/%d/totals", list.ID), nil))
	if totals.Display["grant"] != "$3.15" || totals.Display["emily"] != "$3.15" || totals.Display["grand_total"] != "$6.30" {
		t.Errorf("display = %v", totals.Display)
	}

	other := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Other"}))
	expect(t, do(t, h, "PUT", fmt.Sprintf("/api/lists/%d/items/%d", other.ID, milk.ID), map[string]any{"name": "Milk", "quantity": 1}), http.StatusNotFound)

	rec = do(t, h, "PUT", fmt.Sprintf("%s/%d", itemsPath, milk.ID), map[string]any{"name": "Milk", "price": 3.0, "quantity": 1})
	expect(t, rec, http.StatusOK)
	if got := decode[model.ShoppingListItem](t, rec); got.Quantity != 1 || got.Category != "dairy" {
		t.Errorf("updated item = %+v", got)
	}

	expect(t, do(t, h, "DELETE", fmt.Sprintf("%s/%d", itemsPath, milk.ID), nil), http.StatusNoContent)
	detail := decode[struct {
		ID    int64                    `json:"id"`
		Items []model.ShoppingListItem `json:"items"`
	}](t, do(t, h, "GET", fmt.Sprintf("/api/lists/%d", list.ID), nil))
	if detail.ID != list.ID || len(detail.Items) != 0 {
		t.Errorf("detail = %+v", detail)
	}
}

func TestDeleteListWithOutstandingTickets(t *testing.T) {
	h := setupServer(t, Options{})

	list := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly"}))
	do(t, h, "POST", fmt.Sprintf("/api/lists/%d/items", list.ID), map[string]any{"name": "Milk", "price": 3.0, "quantity": 1})
	expect(t, do(t, h, "POST", fmt.Sprintf("/api/lists/%d/tickets", list.ID), nil), http.StatusOK)

	expect(t, do(t, h, "DELETE", fmt.Sprintf("/api/lists/%d", list.ID), nil), http.StatusConflict)
	expect(t, do(t, h, "DELETE", fmt.Sprintf("/api/lists/%d?force=true", list.ID), nil), http.StatusNoContent)
	expect(t, do(t, h, "GET", fmt.Sprintf("/api/lists/%d", list.ID), nil), http.StatusNotFound)
}

func TestTicketLifecycle(t *testing.T) {
	h := setupServer(t, Options{})

	list := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly", "date": "2026-02-01"}))
	do(t, h, "POST", fmt.Sprintf("/api/lists/%d/items", list.ID), map[string]any{"name": "Milk", "price": 3.0, "quantity": 2})

	expect(t, do(t, h, "POST", "/api/lists/999/tickets", nil), http.StatusNotFound)

	tickets := decode[[]model.Ticket](t, do(t, h, "POST", fmt.Sprintf("/api/lists/%d/tickets", list.ID), nil))
	if len(tickets) != 2 || tickets[0].AmountDue != 3.15 || tickets[1].AmountDue != 3.15 {
		t.Fatalf("tickets = %+v", tickets)
	}

	resolvePath := fmt.Sprintf("/api/lists/%d/resolve", list.ID)
	expect(t, do(t, h, "POST", resolvePath, nil), http.StatusConflict)

	expect(t, do(t, h, "PUT", fmt.Sprintf("/api/tickets/%d/paid", tickets[0].ID), map[string]any{}), http.StatusBadRequest)
	expect(t, do(t, h, "PUT", "/api/tickets/999/paid", map[string]any{"paid": true}), http.StatusNotFound)
	for _, tk := range tickets {
		rec := do(t, h, "PUT", fmt.Sprintf("/api/tickets/%d/paid", tk.ID), map[string]any{"paid": true})
		expect(t, rec, http.StatusOK)
		if !decode[model.Ticket](t, rec).Paid {
			t.Errorf("ticket %d not paid", tk.ID)
		}
	}

	rec := do(t, h, "POST", resolvePath, map[string]any{"actor": "grant"})
	expect(t, rec, http.StatusOK)
	entry := decode[model.ReceiptHistoryEntry](t, rec)
	if entry.Total != 6 || entry.ListID != list.ID || len(entry.Snapshot.Tickets) != 2 {
		t.Errorf("entry = %+v", entry)
	}

	expect(t, do(t, h, "POST", resolvePath, nil), http.StatusConflict)
	expect(t, do(t, h, "GET", fmt.Sprintf("/api/lists/%d", list.ID), nil), http.StatusNotFound)

	history := decode[[]model.ReceiptHistoryEntry](t, do(t, h, "GET", "/api/history", nil))
	if len(history) != 1 || history[0].ID != entry.ID {
		t.Errorf("history = %+v", history)
	}

	audits := decode[[]model.TicketAudit](t, do(t, h, "GET", fmt.Sprintf("/api/tickets/%d/history", tickets[0].ID), nil))
	if len(audits) != 1 || audits[0].StatusTo != model.TicketResolved || audits[0].ResolvedBy != "grant" {
		t.Errorf("audits = %+v", audits)
	}

	expect(t, do(t, h, "GET", fmt.Sprintf("/api/history/%d/archive", entry.ID), nil), http.StatusNotFound)
	expect(t, do(t, h, "DELETE", fmt.Sprintf("/api/history/%d", entry.ID), nil), http.StatusNoContent)
	expect(t, do(t, h, "GET", fmt.Sprintf("/api/history/%d", entry.ID), nil), http.StatusNotFound)
}

func TestResolveTicketEndpoint(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	h := New(db, nil, nil, metrics.New(), Options{}, quietLogger()).Router()

	list := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly"}))
	tickets := decode[[]model.Ticket](t, do(t, h, "POST", fmt.Sprintf("/api/lists/%d/tickets", list.ID), nil))
	path := fmt.Sprintf("/api/tickets/%d/resolve", tickets[0].ID)

	for _, status := range []string{"void", "paid", "resolved"} {
		expect(t, do(t, h, "POST", path, map[string]any{"status": status}), http.StatusBadRequest)
	}
	expect(t, do(t, h, "POST", "/api/tickets/999/resolve", nil), http.StatusNotFound)

	// Tickets left resolved on a kept list after a failed resolve.
	ts := store.NewTicketStore(db)
	if _, err := ts.SetTicketStatusByIDs(context.Background(), []int64{tickets[0].ID}, model.TicketResolved); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	expect(t, do(t, h, "PUT", fmt.Sprintf("/api/tickets/%d/paid", tickets[0].ID), map[string]any{"paid": true}), http.StatusConflict)

	rec := do(t, h, "POST", path, map[string]any{
		"reason":   "reconcile",
		"actor":    "emily",
		"tags":     map[string]string{"source": "api"},
		"metadata": map[string]any{"note": "ladder gave up"},
	})
	expect(t, rec, http.StatusOK)
	res := decode[struct {
		Before  model.Ticket `json:"before"`
		After   model.Ticket `json:"after"`
		Changed bool         `json:"changed"`
	}](t, rec)
	if !res.Changed || res.Before.Status != model.TicketResolved || res.After.Status != model.TicketOpen {
		t.Errorf("result = %+v", res)
	}

	res2 := decode[struct {
		Changed bool `json:"changed"`
	}](t, do(t, h, "POST", path, map[string]any{"status": "open"}))
	if res2.Changed {
		t.Error("same-status transition reported a change")
	}

	audits := decode[[]model.TicketAudit](t, do(t, h, "GET", fmt.Sprintf("/api/tickets/%d/history", tickets[0].ID), nil))
	if len(audits) != 1 || audits[0].Reason != "reconcile" || audits[0].Tags["source"] != "api" {
		t.Errorf("audits = %+v", audits)
	}
	expect(t, do(t, h, "PUT", fmt.Sprintf("/api/tickets/%d/paid", tickets[0].ID), map[string]any{"paid": true}), http.StatusOK)
}

func TestGateProtectsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("groceries"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h := setupServer(t, Options{Gate: middleware.GateConfig{User: "house", PasswordHash: string(hash)}})

	expect(t, do(t, h, "GET", "/health", nil), http.StatusOK)
	expect(t, do(t, h, "GET", "/api/lists", nil), http.StatusUnauthorized)

	req := httptest.NewRequest("GET", "/api/lists", nil)
	req.SetBasicAuth("house", "groceries")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	expect(t, rec, http.StatusOK)
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := setupServer(t, Options{})

	list := decode[model.ShoppingList](t, do(t, h, "POST", "/api/lists", map[string]any{"name": "Weekly"}))
	do(t, h, "POST", fmt.Sprintf("/api/lists/%d/resolve", list.ID), nil)

	rec := do(t, h, "GET", "/metrics", nil)
	expect(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `splitcart_list_resolves_total{outcome="nothing_to_resolve"} 1`) {
		t.Errorf("metrics missing resolve outcome:\n%s", rec.Body.String())
	}
}

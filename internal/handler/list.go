package handler

import (
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/split"
	"github.com/dukerupert/splitcart/internal/store"
	ws "github.com/dukerupert/splitcart/internal/websocket"
)

type ListHandler struct {
	lists   *store.ListStore
	tickets *store.TicketStore
	hub     Broadcaster
	logger  *slog.Logger
	now     func() time.Time
}

func NewListHandler(ls *store.ListStore, ts *store.TicketStore, hub Broadcaster, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: ls, tickets: ts, hub: orNop(hub), logger: logger, now: time.Now}
}

type listRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

func (h *ListHandler) validateList(req *listRequest) string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	req.Date = strings.TrimSpace(req.Date)
	if req.Date == "" {
		req.Date = h.now().Format(model.ListDateLayout)
	}
	if _, err := time.Parse(model.ListDateLayout, req.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	return ""
}

// loadList resolves the {id} path value to an existing list, writing the
// error response itself when it cannot.
func (h *ListHandler) loadList(w http.ResponseWriter, r *http.Request) *model.ShoppingList {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	list, err := h.lists.GetList(id)
	if err != nil {
		h.logger.Error("get list", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return nil
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return nil
	}
	return list
}

func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListLists()
	if err != nil {
		h.logger.Error("list lists", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list lists")
		return
	}
	if lists == nil {
		lists = []model.ShoppingList{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := h.validateList(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := h.lists.CreateList(req.Name, req.Date)
	if err != nil {
		h.logger.Error("create list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityList, ws.ActionCreated, list.ID, nil))
	writeJSON(w, http.StatusCreated, list)
}

type listDetail struct {
	model.ShoppingList
	Items []model.ShoppingListItem `json:"items"`
}

// Get returns the list with its items.
func (h *ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	items, err := h.lists.ListItems(list.ID)
	if err != nil {
		h.logger.Error("list items", "list_id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.ShoppingListItem{}
	}
	writeJSON(w, http.StatusOK, listDetail{ShoppingList: *list, Items: items})
}

func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req listRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := h.validateList(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	list, err := h.lists.UpdateList(id, req.Name, req.Date)
	if err != nil {
		h.logger.Error("update list", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityList, ws.ActionUpdated, list.ID, nil))
	writeJSON(w, http.StatusOK, list)
}

// Delete removes a list. Lists with outstanding tickets need ?force=true.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}

	if r.URL.Query().Get("force") != "true" {
		n, err := h.tickets.CountUnresolvedTickets(list.ID)
		if err != nil {
			h.logger.Error("count tickets", "list_id", list.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete list")
			return
		}
		if n > 0 {
			writeError(w, http.StatusConflict, "list has outstanding tickets; resolve them or delete with force=true")
			return
		}
	}

	if err := h.lists.DeleteList(list.ID); err != nil {
		h.logger.Error("delete list", "id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete list")
		return
	}

	h.logger.Info("list deleted", "list_id", list.ID)
	h.hub.Broadcast(ws.NewMessage(ws.EntityList, ws.ActionDeleted, list.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type totalsResponse struct {
	split.Breakdown
	Display map[string]string `json:"display"`
}

// Totals returns the live cost split for a list.
func (h *ListHandler) Totals(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	items, err := h.lists.ListItems(list.ID)
	if err != nil {
		h.logger.Error("list items", "list_id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compute totals")
		return
	}

	b := split.Compute(split.FromItems(items))
	writeJSON(w, http.StatusOK, totalsResponse{
		Breakdown: b,
		Display: map[string]string{
			"grant":       split.FormatMoney(b.Grant.Total),
			"emily":       split.FormatMoney(b.Emily.Total),
			"grand_total": split.FormatMoney(b.GrandTotal),
		},
	})
}

// --- Items ---

type itemRequest struct {
	ItemID   *int64   `json:"item_id"`
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Quantity *float64 `json:"quantity"`
	Category string   `json:"category"`
	Consumer string   `json:"consumer"`
	Store    string   `json:"store"`
	Checked  bool     `json:"checked"`
}

func (req *itemRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if req.Quantity == nil {
		return "quantity is required"
	}
	if q := *req.Quantity; q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return "quantity must be positive"
	}
	if !validPrice(req.Price) {
		return "price must be a non-negative number"
	}
	if !validConsumer(req.Consumer) {
		return "consumer must be grant, emily or both"
	}
	return ""
}

// loadItem resolves {item_id} and checks it belongs to list.
func (h *ListHandler) loadItem(w http.ResponseWriter, r *http.Request, list *model.ShoppingList) *model.ShoppingListItem {
	itemID, err := parseInt64(r.PathValue("item_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item_id")
		return nil
	}
	it, err := h.lists.GetItem(itemID)
	if err != nil {
		h.logger.Error("get item", "id", itemID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return nil
	}
	if it == nil || it.ListID != list.ID {
		writeError(w, http.StatusNotFound, "item not found")
		return nil
	}
	return it
}

func (h *ListHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	items, err := h.lists.ListItems(list.ID)
	if err != nil {
		h.logger.Error("list items", "list_id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []model.ShoppingListItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ListHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// Auto-categorize if no category provided
	if strings.TrimSpace(req.Category) == "" {
		req.Category = grocery.Categorize(req.Name)
	}

	it, err := h.lists.CreateItem(model.ShoppingListItem{
		ListID:   list.ID,
		ItemID:   req.ItemID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: *req.Quantity,
		Category: req.Category,
		Consumer: req.Consumer,
		Store:    req.Store,
		Checked:  req.Checked,
	})
	if err != nil {
		h.logger.Error("create item", "list_id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityItem, ws.ActionCreated, it.ID, map[string]any{"list_id": list.ID}))
	writeJSON(w, http.StatusCreated, it)
}

func (h *ListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	existing := h.loadItem(w, r, list)
	if existing == nil {
		return
	}

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		req.Category = existing.Category
	}

	it, err := h.lists.UpdateItem(model.ShoppingListItem{
		ID:       existing.ID,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: *req.Quantity,
		Category: req.Category,
		Consumer: req.Consumer,
		Store:    req.Store,
		Checked:  req.Checked,
	})
	if err != nil {
		h.logger.Error("update item", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if it == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityItem, ws.ActionUpdated, it.ID, map[string]any{"list_id": list.ID}))
	writeJSON(w, http.StatusOK, it)
}

// CheckItem sets the checked flag. Without a body it toggles.
func (h *ListHandler) CheckItem(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	existing := h.loadItem(w, r, list)
	if existing == nil {
		return
	}

	var req struct {
		Checked *bool `json:"checked"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	checked := !existing.Checked
	if req.Checked != nil {
		checked = *req.Checked
	}

	it, err := h.lists.SetItemChecked(existing.ID, checked)
	if err != nil {
		h.logger.Error("check item", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check item")
		return
	}
	if it == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityItem, ws.ActionChecked, it.ID, map[string]any{"list_id": list.ID, "checked": it.Checked}))
	writeJSON(w, http.StatusOK, it)
}

func (h *ListHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	list := h.loadList(w, r)
	if list == nil {
		return
	}
	existing := h.loadItem(w, r, list)
	if existing == nil {
		return
	}

	if err := h.lists.DeleteItem(existing.ID); err != nil {
		h.logger.Error("delete item", "id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityItem, ws.ActionDeleted, existing.ID, map[string]any{"list_id": list.ID}))
	w.WriteHeader(http.StatusNoContent)
}

package handler

import (
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/store"
	ws "github.com/dukerupert/splitcart/internal/websocket"
)

const suggestionLimit = 8

type GlossaryHandler struct {
	glossary *store.GlossaryStore
	lists    *store.ListStore
	hub      Broadcaster
	logger   *slog.Logger
}

func NewGlossaryHandler(gs *store.GlossaryStore, ls *store.ListStore, hub Broadcaster, logger *slog.Logger) *GlossaryHandler {
	return &GlossaryHandler{glossary: gs, lists: ls, hub: orNop(hub), logger: logger}
}

type glossaryRequest struct {
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Price          *float64 `json:"price"`
	PricePerWeight *float64 `json:"price_per_weight"`
	Consumer       string   `json:"consumer"`
	Store          string   `json:"store"`
}

func (req *glossaryRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "name is required"
	}
	if !validPrice(req.Price) || !validPrice(req.PricePerWeight) {
		return "price must be a non-negative number"
	}
	if !validConsumer(req.Consumer) {
		return "consumer must be grant, emily or both"
	}
	return ""
}

func validPrice(p *float64) bool {
	return p == nil || (*p >= 0 && !math.IsInf(*p, 0) && !math.IsNaN(*p))
}

func validConsumer(c string) bool {
	switch c {
	case "", model.ConsumerGrant, model.ConsumerEmily, model.ConsumerBoth:
		return true
	}
	return false
}

// categoryFilter collects ?category= values, accepting repeats and commas.
func categoryFilter(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["category"] {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, grocery.NormalizeCategory(c))
			}
		}
	}
	return out
}

// List searches the glossary. With ?grouped=true the result is bucketed by
// first letter.
func (h *GlossaryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.glossary.Search(r.URL.Query().Get("q"), categoryFilter(r), 0)
	if err != nil {
		h.logger.Error("search glossary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list glossary")
		return
	}
	if items == nil {
		items = []model.GlossaryItem{}
	}

	if r.URL.Query().Get("grouped") == "true" {
		groups := grocery.GroupByLetter(items, func(g model.GlossaryItem) string { return g.Name })
		writeJSON(w, http.StatusOK, groups)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Suggest returns a short list of glossary matches for typeahead.
func (h *GlossaryHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []model.GlossaryItem{})
		return
	}
	items, err := h.glossary.Search(q, nil, suggestionLimit)
	if err != nil {
		h.logger.Error("suggest glossary", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to search glossary")
		return
	}
	if items == nil {
		items = []model.GlossaryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Categorize suggests a category for ?name=.
func (h *GlossaryHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": grocery.Categorize(name)})
}

func (h *GlossaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	g, err := h.glossary.GetByID(id)
	if err != nil {
		h.logger.Error("get glossary item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GlossaryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req glossaryRequest
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

	g, err := h.glossary.Create(model.GlossaryItem{
		Name:           req.Name,
		Category:       req.Category,
		Price:          req.Price,
		PricePerWeight: req.PricePerWeight,
		Consumer:       req.Consumer,
		Store:          req.Store,
	})
	if err != nil {
		h.logger.Error("create glossary item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityGlossary, ws.ActionCreated, g.ID, nil))
	writeJSON(w, http.StatusCreated, g)
}

func (h *GlossaryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req glossaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	g, err := h.glossary.Update(model.GlossaryItem{
		ID:             id,
		Name:           req.Name,
		Category:       req.Category,
		Price:          req.Price,
		PricePerWeight: req.PricePerWeight,
		Consumer:       req.Consumer,
		Store:          req.Store,
	})
	if err != nil {
		h.logger.Error("update glossary item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityGlossary, ws.ActionUpdated, g.ID, nil))
	writeJSON(w, http.StatusOK, g)
}

func (h *GlossaryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.glossary.GetByID(id)
	if err != nil {
		h.logger.Error("get glossary item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.glossary.Delete(id); err != nil {
		h.logger.Error("delete glossary item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityGlossary, ws.ActionDeleted, id, nil))
	w.WriteHeader(http.StatusNoContent)
}

// AddToList copies a glossary item onto a list.
func (h *GlossaryHandler) AddToList(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		ListID   int64   `json:"list_id"`
		Quantity float64 `json:"quantity"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ListID <= 0 {
		writeError(w, http.StatusBadRequest, "list_id is required")
		return
	}
	if req.Quantity < 0 || math.IsNaN(req.Quantity) || math.IsInf(req.Quantity, 0) {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	g, err := h.glossary.GetByID(id)
	if err != nil {
		h.logger.Error("get glossary item", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	list, err := h.lists.GetList(req.ListID)
	if err != nil {
		h.logger.Error("get list", "list_id", req.ListID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	item, err := h.lists.AddFromGlossary(list.ID, g, req.Quantity)
	if err != nil {
		h.logger.Error("add glossary item to list", "id", id, "list_id", list.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add item")
		return
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityItem, ws.ActionCreated, item.ID, map[string]any{"list_id": list.ID}))
	writeJSON(w, http.StatusCreated, item)
}

package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/store"
)

type CategoryHandler struct {
	glossary   *store.GlossaryStore
	categories *store.CategoryStore
	logger     *slog.Logger
}

func NewCategoryHandler(gs *store.GlossaryStore, cs *store.CategoryStore, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{glossary: gs, categories: cs, logger: logger}
}

type categoryView struct {
	Categories []string `json:"categories"`
	Custom     []string `json:"custom"`
}

func (h *CategoryHandler) view() (*categoryView, error) {
	used, err := h.glossary.Categories()
	if err != nil {
		return nil, err
	}
	custom, err := h.categories.ListCustom()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(custom))
	for _, c := range custom {
		names = append(names, c.Name)
	}
	return &categoryView{
		Categories: grocery.MergeCategories(used, names),
		Custom:     names,
	}, nil
}

// List returns the merged category view: base, glossary and custom.
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	v, err := h.view()
	if err != nil {
		h.logger.Error("list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if _, err := h.categories.AddCustom(req.Name); err != nil {
		h.logger.Error("add category", "name", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add category")
		return
	}
	h.respondView(w, http.StatusCreated)
}

// Rename renames a custom category. Glossary rows keep their category.
func (h *CategoryHandler) Rename(w http.ResponseWriter, r *http.Request) {
	oldName := r.PathValue("name")
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ok, err := h.categories.RenameCustom(oldName, req.Name)
	if err != nil {
		h.logger.Error("rename category", "name", oldName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename category")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}
	h.respondView(w, http.StatusOK)
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.categories.DeleteCustom(r.PathValue("name")); err != nil {
		h.logger.Error("delete category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandler) respondView(w http.ResponseWriter, status int) {
	v, err := h.view()
	if err != nil {
		h.logger.Error("list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	writeJSON(w, status, v)
}

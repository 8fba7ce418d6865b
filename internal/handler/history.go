package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitcart/internal/archive"
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/store"
	ws "github.com/dukerupert/splitcart/internal/websocket"
)

// Archive is the exported copy of resolved receipts.
type Archive interface {
	Download(ctx context.Context, entry *model.ReceiptHistoryEntry) (io.ReadCloser, error)
	Remove(ctx context.Context, entry *model.ReceiptHistoryEntry) error
}

type HistoryHandler struct {
	history *store.HistoryStore
	archive Archive
	hub     Broadcaster
	logger  *slog.Logger
}

func NewHistoryHandler(hs *store.HistoryStore, arc Archive, hub Broadcaster, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: hs, archive: arc, hub: orNop(hub), logger: logger}
}

func (h *HistoryHandler) loadEntry(w http.ResponseWriter, r *http.Request) *model.ReceiptHistoryEntry {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}
	e, err := h.history.GetHistory(id)
	if err != nil {
		h.logger.Error("get history", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return nil
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "history entry not found")
		return nil
	}
	return e
}

// List returns archived receipts, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.ListHistory()
	if err != nil {
		h.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if entries == nil {
		entries = []model.ReceiptHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if e := h.loadEntry(w, r); e != nil {
		writeJSON(w, http.StatusOK, e)
	}
}

// Delete purges an archived receipt and its exported copy.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	e := h.loadEntry(w, r)
	if e == nil {
		return
	}

	if err := h.history.DeleteHistory(e.ID); err != nil {
		h.logger.Error("delete history", "id", e.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete history")
		return
	}
	if h.archive != nil {
		if err := h.archive.Remove(r.Context(), e); err != nil {
			h.logger.Warn("remove exported receipt", "id", e.ID, "error", err)
		}
	}

	h.hub.Broadcast(ws.NewMessage(ws.EntityHistory, ws.ActionDeleted, e.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

// Download streams the exported copy of a receipt from object storage.
func (h *HistoryHandler) Download(w http.ResponseWriter, r *http.Request) {
	e := h.loadEntry(w, r)
	if e == nil {
		return
	}
	if h.archive == nil {
		writeError(w, http.StatusNotFound, archive.ErrDisabled.Error())
		return
	}

	body, err := h.archive.Download(r.Context(), e)
	if errors.Is(err, archive.ErrDisabled) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("download exported receipt", "id", e.ID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to download receipt")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%d.json"`, e.ID))
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream exported receipt", "id", e.ID, "error", err)
	}
}

package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/store"
	"github.com/dukerupert/splitcart/internal/ticket"
)

type TicketHandler struct {
	svc     *ticket.Service
	tickets *store.TicketStore
	logger  *slog.Logger
}

func NewTicketHandler(svc *ticket.Service, ts *store.TicketStore, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{svc: svc, tickets: ts, logger: logger}
}

// ListAll returns every live ticket.
func (h *TicketHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.tickets.ListTickets()
	if err != nil {
		h.logger.Error("list tickets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *TicketHandler) ListByList(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tickets, err := h.tickets.ListTicketsByList(listID)
	if err != nil {
		h.logger.Error("list tickets", "list_id", listID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

// Issue computes the split for a list and writes its tickets.
func (h *TicketHandler) Issue(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tickets, err := h.svc.IssueTickets(listID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to issue tickets")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// SetPaid sets a ticket's paid flag from {"paid": bool}.
func (h *TicketHandler) SetPaid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Paid *bool `json:"paid"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Paid == nil {
		writeError(w, http.StatusBadRequest, "paid is required")
		return
	}

	t, err := h.svc.SetPaid(id, *req.Paid)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update ticket")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ResolveList archives a fully paid list.
func (h *TicketHandler) ResolveList(w http.ResponseWriter, r *http.Request) {
	listID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		Actor string `json:"actor"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	entry, err := h.svc.Resolve(r.Context(), listID, strings.TrimSpace(req.Actor))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to resolve list")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type resolveTicketRequest struct {
	Status   string            `json:"status"`
	Reason   string            `json:"reason"`
	Actor    string            `json:"actor"`
	Tags     map[string]string `json:"tags"`
	Metadata json.RawMessage   `json:"metadata"`
}

// ResolveTicket reopens one ticket through the audited procedure. Tickets
// reach "resolved" only by resolving their list.
func (h *TicketHandler) ResolveTicket(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req resolveTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Status == "" {
		req.Status = model.TicketOpen
	}
	if req.Status != model.TicketOpen {
		writeError(w, http.StatusBadRequest, ticket.ErrStatusReserved.Error())
		return
	}

	res, err := h.svc.ResolveTicket(r.Context(), store.ResolveRequest{
		TicketID: id,
		Status:   req.Status,
		Reason:   req.Reason,
		Tags:     req.Tags,
		Metadata: req.Metadata,
		ActorID:  req.Actor,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to resolve ticket")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History lists the audit rows of a ticket, including tickets whose list has
// since been archived.
func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	audits, err := h.tickets.ListTicketAudit(id)
	if err != nil {
		h.logger.Error("list ticket history", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if audits == nil {
		audits = []model.TicketAudit{}
	}
	writeJSON(w, http.StatusOK, audits)
}

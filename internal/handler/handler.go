package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/splitcart/internal/ticket"
	ws "github.com/dukerupert/splitcart/internal/websocket"
)

// Broadcaster publishes realtime change notices.
type Broadcaster interface {
	Broadcast(msg ws.Message)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(ws.Message) {}

func orNop(b Broadcaster) Broadcaster {
	if b == nil {
		return nopBroadcaster{}
	}
	return b
}

func parseIDParam(r *http.Request) (int64, error) {
	return parseInt64(r.PathValue("id"))
}

func parseInt64(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// decodeJSON reads a JSON body. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps ticket service errors to responses. Unknown errors
// are logged and reported as a generic failure.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, ticket.ErrListNotFound):
		writeError(w, http.StatusNotFound, "list not found")
	case errors.Is(err, ticket.ErrTicketNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case errors.Is(err, ticket.ErrStatusReserved):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ticket.ErrNotAllPaid),
		errors.Is(err, ticket.ErrNothingToResolve),
		errors.Is(err, ticket.ErrTicketArchived):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ticket.ErrResolveFailed):
		logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		logger.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitcart/internal/archive"
	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/handler"
	"github.com/dukerupert/splitcart/internal/metrics"
	"github.com/dukerupert/splitcart/internal/middleware"
	"github.com/dukerupert/splitcart/internal/store"
	"github.com/dukerupert/splitcart/internal/ticket"
	ws "github.com/dukerupert/splitcart/internal/websocket"
)

// Options carries the HTTP-facing settings.
type Options struct {
	Gate             middleware.GateConfig
	WSOriginPatterns []string
}

type Server struct {
	db          *database.DB
	hub         *ws.Hub
	glossaryH   *handler.GlossaryHandler
	categoryH   *handler.CategoryHandler
	listH       *handler.ListHandler
	ticketH     *handler.TicketHandler
	historyH    *handler.HistoryHandler
	exporter    *archive.Exporter
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	opts        Options
	logger      *slog.Logger
}

// New wires stores, the ticket service and handlers. notifier and exporter
// may be nil.
func New(db *database.DB, notifier ticket.Notifier, exporter *archive.Exporter, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	hub := ws.NewHub(logger.With("component", "websocket"))
	hub.OnDrop(m.WebsocketDropped)

	glossaryStore := store.NewGlossaryStore(db)
	categoryStore := store.NewCategoryStore(db)
	ledger := store.NewLedger(db)

	var (
		archiver ticket.Archiver
		arc      handler.Archive
	)
	if exporter != nil {
		archiver, arc = exporter, exporter
	}

	svc := ticket.NewService(ledger, hub, notifier, archiver, m, logger.With("component", "ticket"))

	return &Server{
		db:          db,
		hub:         hub,
		glossaryH:   handler.NewGlossaryHandler(glossaryStore, ledger.ListStore, hub, logger.With("component", "glossary")),
		categoryH:   handler.NewCategoryHandler(glossaryStore, categoryStore, logger.With("component", "category")),
		listH:       handler.NewListHandler(ledger.ListStore, ledger.TicketStore, hub, logger.With("component", "list")),
		ticketH:     handler.NewTicketHandler(svc, ledger.TicketStore, logger.With("component", "ticket_handler")),
		historyH:    handler.NewHistoryHandler(ledger.HistoryStore, arc, hub, logger.With("component", "history")),
		exporter:    exporter,
		metrics:     m,
		rateLimiter: middleware.NewRateLimiter(),
		opts:        opts,
		logger:      logger,
	}
}

// Hub returns the realtime hub for shutdown.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.opts.WSOriginPatterns))

	s.registerAPIRoutes(mux)

	gate := s.opts.Gate
	gate.Open = append([]string{"/health"}, gate.Open...)
	gated := middleware.Gate(gate, s.rateLimiter, s.logger.With("component", "gate"))(mux)

	return middleware.RequestLogger(s.logger.With("component", "http"))(gated)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	}
	if s.exporter != nil {
		status["archive"] = s.exporter.Status()
	}
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check: database unreachable", "error", err)
		status["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) registerAPIRoutes(mux *http.ServeMux) {
	// Glossary
	mux.HandleFunc("GET /api/glossary", s.glossaryH.List)
	mux.HandleFunc("GET /api/glossary/suggest", s.glossaryH.Suggest)
	mux.HandleFunc("GET /api/glossary/categorize", s.glossaryH.Categorize)
	mux.HandleFunc("POST /api/glossary", s.glossaryH.Create)
	mux.HandleFunc("GET /api/glossary/{id}", s.glossaryH.Get)
	mux.HandleFunc("PUT /api/glossary/{id}", s.glossaryH.Update)
	mux.HandleFunc("DELETE /api/glossary/{id}", s.glossaryH.Delete)
	mux.HandleFunc("POST /api/glossary/{id}/add-to-list", s.glossaryH.AddToList)

	// Categories
	mux.HandleFunc("GET /api/categories", s.categoryH.List)
	mux.HandleFunc("POST /api/categories", s.categoryH.Create)
	mux.HandleFunc("PUT /api/categories/{name}", s.categoryH.Rename)
	mux.HandleFunc("DELETE /api/categories/{name}", s.categoryH.Delete)

	// Lists and items
	mux.HandleFunc("GET /api/lists", s.listH.List)
	mux.HandleFunc("POST /api/lists", s.listH.Create)
	mux.HandleFunc("GET /api/lists/{id}", s.listH.Get)
	mux.HandleFunc("PUT /api/lists/{id}", s.listH.Update)
	mux.HandleFunc("DELETE /api/lists/{id}", s.listH.Delete)
	mux.HandleFunc("GET /api/lists/{id}/totals", s.listH.Totals)
	mux.HandleFunc("GET /api/lists/{id}/items", s.listH.ListItems)
	mux.HandleFunc("POST /api/lists/{id}/items", s.listH.CreateItem)
	mux.HandleFunc("PUT /api/lists/{id}/items/{item_id}", s.listH.UpdateItem)
	mux.HandleFunc("DELETE /api/lists/{id}/items/{item_id}", s.listH.DeleteItem)
	mux.HandleFunc("POST /api/lists/{id}/items/{item_id}/check", s.listH.CheckItem)

	// Tickets
	mux.HandleFunc("GET /api/tickets", s.ticketH.ListAll)
	mux.HandleFunc("GET /api/lists/{id}/tickets", s.ticketH.ListByList)
	mux.HandleFunc("POST /api/lists/{id}/tickets", s.ticketH.Issue)
	mux.HandleFunc("POST /api/lists/{id}/resolve", s.ticketH.ResolveList)
	mux.HandleFunc("PUT /api/tickets/{id}/paid", s.ticketH.SetPaid)
	mux.HandleFunc("POST /api/tickets/{id}/resolve", s.ticketH.ResolveTicket)
	mux.HandleFunc("GET /api/tickets/{id}/history", s.ticketH.History)

	// Receipt history
	mux.HandleFunc("GET /api/history", s.historyH.List)
	mux.HandleFunc("GET /api/history/{id}", s.historyH.Get)
	mux.HandleFunc("DELETE /api/history/{id}", s.historyH.Delete)
	mux.HandleFunc("GET /api/history/{id}/archive", s.historyH.Download)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

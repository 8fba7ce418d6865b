package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/splitcart/internal/metrics"
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/notify"
	"github.com/dukerupert/splitcart/internal/receipt"
	"github.com/dukerupert/splitcart/internal/split"
	"github.com/dukerupert/splitcart/internal/store"
	"github.com/dukerupert/splitcart/internal/websocket"
)

var (
	ErrNotAllPaid       = errors.New("all tickets must be marked paid before resolving")
	ErrNothingToResolve = errors.New("nothing to resolve")
	ErrTicketArchived   = errors.New("ticket is already resolved")
	ErrResolveFailed    = errors.New("tickets could not be marked resolved; list kept for manual reconciliation")
	ErrListNotFound     = errors.New("list not found")
	ErrTicketNotFound   = errors.New("ticket not found")

	// ErrStatusReserved rejects per-ticket moves to a status that only list
	// resolution may set.
	ErrStatusReserved = errors.New("tickets can only be reopened; resolve the list to settle them")
)

// Resolve outcomes recorded in metrics.
const (
	outcomeResolved   = "resolved"
	outcomeNotAllPaid = "not_all_paid"
	outcomeNothing    = "nothing_to_resolve"
	outcomeFailed     = "failed"
)

// Store is the persistence the service needs. Row updates are conditional on
// id so concurrent sessions never overwrite whole tables.
type Store interface {
	GetList(id int64) (*model.ShoppingList, error)
	ListItems(listID int64) ([]model.ShoppingListItem, error)
	DeleteList(id int64) error

	GetTicket(id int64) (*model.Ticket, error)
	ListTicketsByList(listID int64) ([]model.Ticket, error)
	CreateTicket(listID int64, person string, amountDue float64) (*model.Ticket, error)
	UpdateTicketAmount(id int64, amountDue float64) (int64, error)
	SetTicketPaid(id int64, paid bool) (int64, error)
	SetTicketStatusByList(ctx context.Context, listID int64, status string) (int64, error)
	SetTicketStatusByIDs(ctx context.Context, ids []int64, status string) (int64, error)
	ResolveTicket(ctx context.Context, req store.ResolveRequest) (*store.ResolveResult, error)

	GetHistoryByList(listID int64) (*model.ReceiptHistoryEntry, error)
	CreateHistory(e *model.ReceiptHistoryEntry) (*model.ReceiptHistoryEntry, error)
}

// AtomicResolver is implemented by stores that can archive a list in one
// transaction. Stores without it go through the retry ladder.
type AtomicResolver interface {
	ResolveList(ctx context.Context, listID int64, actor string, build store.BuildFunc) (*model.ReceiptHistoryEntry, error)
}

type Broadcaster interface {
	Broadcast(msg websocket.Message)
}

type Notifier interface {
	ListReady(n notify.ListReady) bool
	TicketsIssued(n notify.TicketsIssued) bool
}

type Archiver interface {
	ExportAsync(entry *model.ReceiptHistoryEntry)
}

// Service drives tickets through open, paid and resolved. Hub, notifier and
// archiver may be nil.
type Service struct {
	store    Store
	hub      Broadcaster
	notifier Notifier
	archiver Archiver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(st Store, hub Broadcaster, notifier Notifier, archiver Archiver, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		hub:      hub,
		notifier: notifier,
		archiver: archiver,
		metrics:  m,
		logger:   logger,
	}
}

// IssueTickets splits the list's items and writes one ticket per person.
// Re-issuing updates amounts in place and keeps paid flags.
func (s *Service) IssueTickets(listID int64) ([]model.Ticket, error) {
	list, err := s.store.GetList(listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrListNotFound
	}

	items, err := s.store.ListItems(listID)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ListTicketsByList(listID)
	if err != nil {
		return nil, err
	}
	byPerson := make(map[string]model.Ticket, len(existing))
	for _, t := range existing {
		if t.Status == model.TicketResolved {
			return nil, ErrTicketArchived
		}
		byPerson[t.Person] = t
	}

	breakdown := split.Compute(split.FromItems(items))
	totals := make([]notify.PersonTotal, 0, len(split.People))
	for _, p := range split.People {
		amount := split.RoundCents(breakdown.For(p).Total)
		totals = append(totals, notify.PersonTotal{Person: string(p), Total: amount})

		if t, ok := byPerson[string(p)]; ok {
			if _, err := s.store.UpdateTicketAmount(t.ID, amount); err != nil {
				return nil, fmt.Errorf("reissue %s: %w", p, err)
			}
			continue
		}
		if _, err := s.store.CreateTicket(listID, string(p), amount); err != nil {
			return nil, fmt.Errorf("issue %s: %w", p, err)
		}
	}

	tickets, err := s.store.ListTicketsByList(listID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tickets issued", "list_id", listID, "tickets", len(tickets), "reissue", len(existing) > 0)
	s.broadcast(websocket.EntityTicket, websocket.ActionIssued, listID, nil)
	if len(existing) == 0 && s.notifier != nil {
		s.notifier.TicketsIssued(notify.TicketsIssued{ListID: listID, ListName: list.Name, Totals: totals})
	}
	return tickets, nil
}

// SetPaid toggles a ticket's paid flag. Resolved tickets cannot be toggled.
// When the change leaves every ticket on the list paid, the all-paid notice
// fires.
func (s *Service) SetPaid(ticketID int64, paid bool) (*model.Ticket, error) {
	t, err := s.store.GetTicket(ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}
	if t.Status == model.TicketResolved {
		return nil, ErrTicketArchived
	}

	n, err := s.store.SetTicketPaid(ticketID, paid)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost a race with a resolve or delete.
		if t, err = s.store.GetTicket(ticketID); err != nil {
			return nil, err
		}
		if t == nil {
			return nil, ErrTicketNotFound
		}
		return nil, ErrTicketArchived
	}

	if t, err = s.store.GetTicket(ticketID); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}

	action := websocket.ActionUnpaid
	if paid {
		action = websocket.ActionPaid
	}
	s.broadcast(websocket.EntityTicket, action, t.ID, map[string]any{"list_id": t.ListID, "resolved": t.Paid})

	if paid {
		if err := s.checkAllPaid(t.ListID); err != nil {
			s.logger.Warn("all-paid check failed", "list_id", t.ListID, "error", err)
		}
	}
	return t, nil
}

// checkAllPaid fires the list-ready notice when every ticket is paid.
func (s *Service) checkAllPaid(listID int64) error {
	if s.notifier == nil {
		return nil
	}
	tickets, err := s.store.ListTicketsByList(listID)
	if err != nil {
		return err
	}
	if !allPaid(tickets) {
		return nil
	}
	list, err := s.store.GetList(listID)
	if err != nil {
		return err
	}
	if list == nil {
		return nil
	}
	s.notifier.ListReady(notify.ListReady{ListID: listID, ListName: list.Name, Total: ticketSum(tickets)})
	return nil
}

// ResolveTicket runs the per-ticket locked transition. Only a move back to
// open is accepted: "resolved" belongs to Resolve and payment is the paid
// flag. Reopening is how tickets left resolved by a failed ladder are handed
// back to SetPaid and IssueTickets.
func (s *Service) ResolveTicket(ctx context.Context, req store.ResolveRequest) (*store.ResolveResult, error) {
	if req.Status != model.TicketOpen {
		return nil, ErrStatusReserved
	}
	res, err := s.store.ResolveTicket(ctx, req)
	if errors.Is(err, store.ErrTicketNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.broadcast(websocket.EntityTicket, websocket.ActionUpdated, res.After.ID, map[string]any{
			"list_id": res.After.ListID,
			"status":  res.After.Status,
		})
	}
	return res, nil
}

// Resolve archives a fully paid list: it snapshots the list into history,
// marks every ticket resolved and deletes the list. With a transactional
// store this happens atomically; otherwise the history row is written first,
// the status update walks the retry ladder, and the list is deleted only
// once every ticket is confirmed resolved.
func (s *Service) Resolve(ctx context.Context, listID int64, actor string) (*model.ReceiptHistoryEntry, error) {
	entry, err := s.resolve(ctx, listID, actor)
	switch {
	case err == nil:
		s.metrics.ResolveOutcome(outcomeResolved)
	case errors.Is(err, ErrNotAllPaid):
		s.metrics.ResolveOutcome(outcomeNotAllPaid)
	case errors.Is(err, ErrNothingToResolve):
		s.metrics.ResolveOutcome(outcomeNothing)
	default:
		s.metrics.ResolveOutcome(outcomeFailed)
		s.logger.Error("resolve failed", "list_id", listID, "error", err)
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("list resolved", "list_id", listID, "history_id", entry.ID, "total", entry.Total)
	if s.archiver != nil {
		s.archiver.ExportAsync(entry)
	}
	s.broadcast(websocket.EntityList, websocket.ActionResolved, listID, map[string]any{"history_id": entry.ID})
	return entry, nil
}

func (s *Service) resolve(ctx context.Context, listID int64, actor string) (*model.ReceiptHistoryEntry, error) {
	list, err := s.store.GetList(listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrNothingToResolve
	}

	tickets, err := s.store.ListTicketsByList(listID)
	if err != nil {
		return nil, err
	}
	if err := checkResolvable(tickets); err != nil {
		return nil, err
	}

	if ar, ok := s.store.(AtomicResolver); ok {
		entry, err := ar.ResolveList(ctx, listID, actor, buildChecked)
		if errors.Is(err, store.ErrListNotFound) {
			return nil, ErrNothingToResolve
		}
		return entry, err
	}
	return s.resolveStepwise(ctx, *list, tickets, actor)
}

// buildChecked re-validates the precondition against rows read inside the
// resolve transaction before building the archive entry.
func buildChecked(list model.ShoppingList, tickets []model.Ticket, items []model.ShoppingListItem) (*model.ReceiptHistoryEntry, error) {
	if err := checkResolvable(tickets); err != nil {
		return nil, err
	}
	return receipt.Build(list, tickets, items), nil
}

func (s *Service) resolveStepwise(ctx context.Context, list model.ShoppingList, tickets []model.Ticket, actor string) (*model.ReceiptHistoryEntry, error) {
	items, err := s.store.ListItems(list.ID)
	if err != nil {
		return nil, err
	}

	// A previous attempt may have archived the list before failing; reuse
	// its entry so the archive holds one row per list.
	entry, err := s.store.GetHistoryByList(list.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = s.store.CreateHistory(receipt.Build(list, tickets, items))
		if err != nil {
			return nil, fmt.Errorf("store history: %w", err)
		}
	}

	if !s.markResolved(ctx, list.ID, tickets, actor) {
		s.logger.Error("all resolve strategies failed", "list_id", list.ID, "history_id", entry.ID)
		return nil, ErrResolveFailed
	}

	if err := s.store.DeleteList(list.ID); err != nil {
		return nil, fmt.Errorf("delete resolved list: %w", err)
	}
	return entry, nil
}

func checkResolvable(tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return ErrNothingToResolve
	}
	if !allPaid(tickets) {
		return ErrNotAllPaid
	}
	return nil
}

func allPaid(tickets []model.Ticket) bool {
	for _, t := range tickets {
		if !t.Paid {
			return false
		}
	}
	return len(tickets) > 0
}

func ticketSum(tickets []model.Ticket) float64 {
	var sum float64
	for _, t := range tickets {
		sum += t.AmountDue
	}
	return sum
}

func (s *Service) broadcast(entity, action string, id int64, extra map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.NewMessage(entity, action, id, extra))
}

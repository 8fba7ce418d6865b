package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/model"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrListNotFound   = errors.New("list not found")

	// ErrStatusConflict means the row changed between the locked read and
	// the compare-and-swap update.
	ErrStatusConflict = errors.New("ticket status changed concurrently")

	// ErrTicketUnpaid refuses to mark a ticket resolved before its paid flag
	// is set.
	ErrTicketUnpaid = errors.New("ticket is not paid")
)

type TicketStore struct {
	db  *database.DB
	now func() time.Time
}

func NewTicketStore(db *database.DB) *TicketStore {
	return &TicketStore{db: db, now: time.Now}
}

func scanTicket(s scanner) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.Scan(&t.ID, &t.ListID, &t.Person, &t.AmountDue, &t.Status, &t.Paid, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

const ticketCols = `id, list_id, person, amount_due, status, resolved, created_at`

func getTicket(ctx context.Context, q queryer, id int64, lock string) (*model.Ticket, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id = ?`+lock, id)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func listTickets(ctx context.Context, q queryer, listID int64, lock string) ([]model.Ticket, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+ticketCols+` FROM tickets WHERE list_id = ? ORDER BY id ASC`+lock, listID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (s *TicketStore) CreateTicket(listID int64, person string, amountDue float64) (*model.Ticket, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO tickets (list_id, person, amount_due) VALUES (?, ?, ?) RETURNING id`,
		listID, person, amountDue,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return s.GetTicket(id)
}

func (s *TicketStore) GetTicket(id int64) (*model.Ticket, error) {
	return getTicket(context.Background(), s.db, id, "")
}

func (s *TicketStore) ListTicketsByList(listID int64) ([]model.Ticket, error) {
	return listTickets(context.Background(), s.db, listID, "")
}

// ListTickets returns every active ticket, newest first.
func (s *TicketStore) ListTickets() ([]model.Ticket, error) {
	rows, err := s.db.Query(`SELECT ` + ticketCols + ` FROM tickets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []model.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// UpdateTicketAmount changes amount_due on a ticket that is not yet resolved.
func (s *TicketStore) UpdateTicketAmount(id int64, amountDue float64) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE tickets SET amount_due = ? WHERE id = ? AND status <> ?`,
		amountDue, id, model.TicketResolved,
	)
	if err != nil {
		return 0, fmt.Errorf("update ticket amount: %w", err)
	}
	return res.RowsAffected()
}

// SetTicketPaid flips the per-person paid flag. Resolved tickets are left
// untouched and report zero affected rows.
func (s *TicketStore) SetTicketPaid(id int64, paid bool) (int64, error) {
	res, err := s.db.Exec(
		`UPDATE tickets SET resolved = ? WHERE id = ? AND status <> ?`,
		paid, id, model.TicketResolved,
	)
	if err != nil {
		return 0, fmt.Errorf("set ticket paid: %w", err)
	}
	return res.RowsAffected()
}

// CountUnresolvedTickets counts tickets on a list that have not been archived.
func (s *TicketStore) CountUnresolvedTickets(listID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM tickets WHERE list_id = ? AND status <> ?`,
		listID, model.TicketResolved,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unresolved tickets: %w", err)
	}
	return n, nil
}

// SetTicketStatusByList sets status on every ticket of a list and returns the
// number of rows changed.
func (s *TicketStore) SetTicketStatusByList(ctx context.Context, listID int64, status string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE list_id = ?`, status, listID)
	if err != nil {
		return 0, fmt.Errorf("set status by list: %w", err)
	}
	return res.RowsAffected()
}

// SetTicketStatusByIDs sets status on the given tickets.
func (s *TicketStore) SetTicketStatusByIDs(ctx context.Context, ids []int64, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, status)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tickets SET status = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("set status by ids: %w", err)
	}
	return res.RowsAffected()
}

// ResolveRequest asks for one ticket's status to move to Status.
type ResolveRequest struct {
	TicketID int64
	Status   string
	Reason   string
	Tags     map[string]string
	Metadata json.RawMessage
	ActorID  string
}

// ResolveResult carries the ticket before and after the transition. Changed
// is false when the ticket was already in the requested status.
type ResolveResult struct {
	Before  model.Ticket `json:"before"`
	After   model.Ticket `json:"after"`
	Changed bool         `json:"changed"`
}

// ResolveTicket locks the ticket, swaps its status and appends an audit row,
// all in one transaction. A missing ticket yields ErrTicketNotFound.
func (s *TicketStore) ResolveTicket(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	t, err := getTicket(ctx, tx, req.TicketID, tx.Dialect().LockClause())
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}

	result, err := s.transition(ctx, tx, *t, req)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return result, nil
}

// transition performs the compare-and-swap and audit insert for a ticket
// already read under lock.
func (s *TicketStore) transition(ctx context.Context, tx *database.Tx, t model.Ticket, req ResolveRequest) (*ResolveResult, error) {
	if t.Status == req.Status {
		return &ResolveResult{Before: t, After: t}, nil
	}
	if req.Status == model.TicketResolved && !t.Paid {
		return nil, ErrTicketUnpaid
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE id = ? AND status = ?`,
		req.Status, t.ID, t.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("update ticket status: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, ErrStatusConflict
	}

	after := t
	after.Status = req.Status
	result := &ResolveResult{Before: t, After: after, Changed: true}

	if err := s.insertAudit(ctx, tx, result, req); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TicketStore) insertAudit(ctx context.Context, tx *database.Tx, r *ResolveResult, req ResolveRequest) error {
	now := s.now().UTC()
	duration := now.Sub(r.Before.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	tags := req.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	metadata := req.Metadata
	if len(metadata) == 0 || !json.Valid(metadata) {
		metadata = json.RawMessage(`{}`)
	}
	snapshot, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ticket_history (ticket_id, list_id, person, amount, status_from, status_to, resolved_at, resolved_by, resolution_reason, duration_ms, tags, metadata, snapshot)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Before.ID, r.Before.ListID, r.Before.Person, r.Before.AmountDue,
		r.Before.Status, r.After.Status, now, nullString(req.ActorID), nullString(req.Reason),
		duration, string(tagsJSON), string(metadata), string(snapshot),
	)
	if err != nil {
		return fmt.Errorf("insert ticket history: %w", err)
	}
	return nil
}

func scanTicketAudit(s scanner) (*model.TicketAudit, error) {
	var a model.TicketAudit
	var resolvedBy, reason sql.NullString
	var tags, metadata, snapshot []byte
	err := s.Scan(
		&a.ID, &a.TicketID, &a.ListID, &a.Person, &a.Amount, &a.StatusFrom, &a.StatusTo,
		&a.ResolvedAt, &resolvedBy, &reason, &a.DurationMS, &tags, &metadata, &snapshot, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ResolvedBy = resolvedBy.String
	a.Reason = reason.String
	if err := json.Unmarshal(tags, &a.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	a.Metadata = json.RawMessage(metadata)
	a.Snapshot = json.RawMessage(snapshot)
	return &a, nil
}

const ticketAuditCols = `id, ticket_id, list_id, person, amount, status_from, status_to, resolved_at, resolved_by, resolution_reason, duration_ms, tags, metadata, snapshot, created_at`

// ListTicketAudit returns the transitions recorded for a ticket, oldest first.
// Rows outlive the ticket itself.
func (s *TicketStore) ListTicketAudit(ticketID int64) ([]model.TicketAudit, error) {
	rows, err := s.db.Query(`SELECT `+ticketAuditCols+` FROM ticket_history WHERE ticket_id = ? ORDER BY id ASC`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket history: %w", err)
	}
	defer rows.Close()

	var audits []model.TicketAudit
	for rows.Next() {
		a, err := scanTicketAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket history: %w", err)
		}
		audits = append(audits, *a)
	}
	return audits, rows.Err()
}

// BuildFunc turns the locked state of a list into its archive entry. Any
// error it returns aborts the resolve with nothing changed.
type BuildFunc func(list model.ShoppingList, tickets []model.Ticket, items []model.ShoppingListItem) (*model.ReceiptHistoryEntry, error)

// ResolveList archives a list in a single transaction: it locks the list's
// tickets, stores the entry produced by build (reusing one already stored for
// the list), moves every ticket to "resolved" with an audit row each, and
// deletes the list. The stored entry is returned.
func (s *TicketStore) ResolveList(ctx context.Context, listID int64, actor string, build BuildFunc) (*model.ReceiptHistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	list, err := getList(ctx, tx, listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrListNotFound
	}

	tickets, err := listTickets(ctx, tx, listID, tx.Dialect().LockClause())
	if err != nil {
		return nil, err
	}
	items, err := listItems(ctx, tx, listID)
	if err != nil {
		return nil, err
	}

	entry, err := build(*list, tickets, items)
	if err != nil {
		return nil, err
	}

	stored, err := getHistoryByList(ctx, tx, listID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		if stored, err = insertHistory(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	for _, t := range tickets {
		req := ResolveRequest{
			TicketID: t.ID,
			Status:   model.TicketResolved,
			Reason:   "list resolved",
			ActorID:  actor,
			Tags:     map[string]string{"source": "list_resolve"},
		}
		if _, err := s.transition(ctx, tx, t, req); err != nil {
			return nil, fmt.Errorf("resolve ticket %d: %w", t.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM shopping_lists WHERE id = ?`, listID); err != nil {
		return nil, fmt.Errorf("delete list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

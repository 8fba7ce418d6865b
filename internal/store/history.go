package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/model"
)

// HistoryStore holds archived receipts. Entries are written once per list and
// never updated; deletion is the only other operation.
type HistoryStore struct {
	db *database.DB
}

func NewHistoryStore(db *database.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func scanHistory(s scanner) (*model.ReceiptHistoryEntry, error) {
	var e model.ReceiptHistoryEntry
	var snapshot []byte
	if err := s.Scan(&e.ID, &e.ListID, &e.Name, &e.Total, &snapshot, &e.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &e.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &e, nil
}

const historyCols = `id, list_id, name, total, snapshot, created_at`

func getHistory(ctx context.Context, q queryer, where string, arg any) (*model.ReceiptHistoryEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+historyCols+` FROM receipt_history WHERE `+where+` = ?`, arg)
	e, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	return e, nil
}

func getHistoryByList(ctx context.Context, q queryer, listID int64) (*model.ReceiptHistoryEntry, error) {
	return getHistory(ctx, q, "list_id", listID)
}

func insertHistory(ctx context.Context, q queryer, e *model.ReceiptHistoryEntry) (*model.ReceiptHistoryEntry, error) {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var id int64
	err = q.QueryRowContext(ctx,
		`INSERT INTO receipt_history (list_id, name, total, snapshot) VALUES (?, ?, ?, ?) RETURNING id`,
		e.ListID, e.Name, e.Total, string(snapshot),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return getHistory(ctx, q, "id", id)
}

// CreateHistory stores an archive entry. The list id is unique, so a second
// entry for the same list fails.
func (s *HistoryStore) CreateHistory(e *model.ReceiptHistoryEntry) (*model.ReceiptHistoryEntry, error) {
	return insertHistory(context.Background(), s.db, e)
}

func (s *HistoryStore) GetHistory(id int64) (*model.ReceiptHistoryEntry, error) {
	return getHistory(context.Background(), s.db, "id", id)
}

func (s *HistoryStore) GetHistoryByList(listID int64) (*model.ReceiptHistoryEntry, error) {
	return getHistoryByList(context.Background(), s.db, listID)
}

// ListHistory returns entries newest first.
func (s *HistoryStore) ListHistory() ([]model.ReceiptHistoryEntry, error) {
	rows, err := s.db.Query(`SELECT ` + historyCols + ` FROM receipt_history ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []model.ReceiptHistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *HistoryStore) DeleteHistory(id int64) error {
	_, err := s.db.Exec(`DELETE FROM receipt_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

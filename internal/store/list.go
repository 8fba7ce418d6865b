package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
)

type ListStore struct {
	db *database.DB
}

func NewListStore(db *database.DB) *ListStore {
	return &ListStore{db: db}
}

// --- List methods ---

func scanList(s scanner) (*model.ShoppingList, error) {
	var l model.ShoppingList
	if err := s.Scan(&l.ID, &l.Name, &l.Date, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

const listCols = `id, name, list_date, created_at`

func getList(ctx context.Context, q queryer, id int64) (*model.ShoppingList, error) {
	row := q.QueryRowContext(ctx, `SELECT `+listCols+` FROM shopping_lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

func (s *ListStore) CreateList(name, date string) (*model.ShoppingList, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO shopping_lists (name, list_date) VALUES (?, ?) RETURNING id`,
		strings.TrimSpace(name), date,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return s.GetList(id)
}

func (s *ListStore) GetList(id int64) (*model.ShoppingList, error) {
	return getList(context.Background(), s.db, id)
}

// ListLists returns lists newest date first.
func (s *ListStore) ListLists() ([]model.ShoppingList, error) {
	rows, err := s.db.Query(`SELECT ` + listCols + ` FROM shopping_lists ORDER BY list_date DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.ShoppingList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *ListStore) UpdateList(id int64, name, date string) (*model.ShoppingList, error) {
	res, err := s.db.Exec(`UPDATE shopping_lists SET name = ?, list_date = ? WHERE id = ?`, strings.TrimSpace(name), date, id)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetList(id)
}

// DeleteList removes the list; items and tickets cascade.
func (s *ListStore) DeleteList(id int64) error {
	_, err := s.db.Exec(`DELETE FROM shopping_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// --- Item methods ---

func scanListItem(s scanner) (*model.ShoppingListItem, error) {
	var it model.ShoppingListItem
	var itemID sql.NullInt64
	var price sql.NullFloat64
	err := s.Scan(
		&it.ID, &it.ListID, &itemID, &it.Name, &price, &it.Quantity,
		&it.Category, &it.Consumer, &it.Store, &it.Checked, &it.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if itemID.Valid {
		it.ItemID = &itemID.Int64
	}
	it.Price = floatPtr(price)
	return &it, nil
}

const listItemCols = `id, list_id, item_id, name, price, quantity, category, consumer, store, checked, created_at`

func listItems(ctx context.Context, q queryer, listID int64) ([]model.ShoppingListItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+listItemCols+` FROM shopping_list_items WHERE list_id = ? ORDER BY checked ASC, category ASC, id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingListItem
	for rows.Next() {
		it, err := scanListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func normalizeListItem(it *model.ShoppingListItem) {
	it.Name = strings.TrimSpace(it.Name)
	it.Category = grocery.NormalizeCategory(it.Category)
	switch it.Consumer {
	case model.ConsumerGrant, model.ConsumerEmily, model.ConsumerBoth:
	default:
		it.Consumer = model.ConsumerBoth
	}
	it.Store = strings.ToLower(strings.TrimSpace(it.Store))
}

func (s *ListStore) GetItem(id int64) (*model.ShoppingListItem, error) {
	row := s.db.QueryRow(`SELECT `+listItemCols+` FROM shopping_list_items WHERE id = ?`, id)
	it, err := scanListItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (s *ListStore) CreateItem(it model.ShoppingListItem) (*model.ShoppingListItem, error) {
	normalizeListItem(&it)
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO shopping_list_items (list_id, item_id, name, price, quantity, category, consumer, store, checked) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		it.ListID, nullInt(it.ItemID), it.Name, nullFloat(it.Price), it.Quantity, it.Category, it.Consumer, it.Store, it.Checked,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetItem(id)
}

// AddFromGlossary copies the glossary item's current values onto a new,
// unchecked list item. Later glossary edits do not reach the copy.
func (s *ListStore) AddFromGlossary(listID int64, g *model.GlossaryItem, quantity float64) (*model.ShoppingListItem, error) {
	if quantity <= 0 {
		quantity = 1
	}
	id := g.ID
	return s.CreateItem(model.ShoppingListItem{
		ListID:   listID,
		ItemID:   &id,
		Name:     g.Name,
		Price:    g.Price,
		Quantity: quantity,
		Category: g.Category,
		Consumer: g.Consumer,
		Store:    g.Store,
	})
}

func (s *ListStore) ListItems(listID int64) ([]model.ShoppingListItem, error) {
	return listItems(context.Background(), s.db, listID)
}

// UpdateItem overwrites the editable fields of an item by id. The list and
// glossary reference are left alone.
func (s *ListStore) UpdateItem(it model.ShoppingListItem) (*model.ShoppingListItem, error) {
	normalizeListItem(&it)
	res, err := s.db.Exec(
		`UPDATE shopping_list_items SET name = ?, price = ?, quantity = ?, category = ?, consumer = ?, store = ?, checked = ? WHERE id = ?`,
		it.Name, nullFloat(it.Price), it.Quantity, it.Category, it.Consumer, it.Store, it.Checked, it.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetItem(it.ID)
}

func (s *ListStore) SetItemChecked(id int64, checked bool) (*model.ShoppingListItem, error) {
	res, err := s.db.Exec(`UPDATE shopping_list_items SET checked = ? WHERE id = ?`, checked, id)
	if err != nil {
		return nil, fmt.Errorf("check item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetItem(id)
}

func (s *ListStore) DeleteItem(id int64) error {
	_, err := s.db.Exec(`DELETE FROM shopping_list_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

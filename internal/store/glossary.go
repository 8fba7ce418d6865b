package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
)

type GlossaryStore struct {
	db *database.DB
}

func NewGlossaryStore(db *database.DB) *GlossaryStore {
	return &GlossaryStore{db: db}
}

func scanGlossaryItem(s scanner) (*model.GlossaryItem, error) {
	var g model.GlossaryItem
	var price, perWeight sql.NullFloat64
	err := s.Scan(&g.ID, &g.Name, &g.Category, &price, &perWeight, &g.Consumer, &g.Store, &g.CreatedAt)
	if err != nil {
		return nil, err
	}
	g.Price = floatPtr(price)
	g.PricePerWeight = floatPtr(perWeight)
	return &g, nil
}

const glossaryCols = `id, name, category, price, price_per_weight, consumer, store, created_at`

// normalizeGlossary applies the write-time defaults every glossary row gets.
func normalizeGlossary(g *model.GlossaryItem) {
	g.Name = strings.TrimSpace(g.Name)
	g.Category = grocery.NormalizeCategory(g.Category)
	switch g.Consumer {
	case model.ConsumerGrant, model.ConsumerEmily, model.ConsumerBoth:
	default:
		g.Consumer = model.ConsumerBoth
	}
	g.Store = strings.ToLower(strings.TrimSpace(g.Store))
	if g.Store == "" {
		g.Store = model.StoreWalmart
	}
}

func (s *GlossaryStore) Create(g model.GlossaryItem) (*model.GlossaryItem, error) {
	normalizeGlossary(&g)
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO glossary_items (name, category, price, price_per_weight, consumer, store) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		g.Name, g.Category, nullFloat(g.Price), nullFloat(g.PricePerWeight), g.Consumer, g.Store,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert glossary item: %w", err)
	}
	return s.GetByID(id)
}

func (s *GlossaryStore) GetByID(id int64) (*model.GlossaryItem, error) {
	row := s.db.QueryRow(`SELECT `+glossaryCols+` FROM glossary_items WHERE id = ?`, id)
	g, err := scanGlossaryItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get glossary item: %w", err)
	}
	return g, nil
}

func (s *GlossaryStore) List() ([]model.GlossaryItem, error) {
	return s.Search("", nil, 0)
}

// Search matches term case-insensitively against name, category and
// consumer. A non-empty categories slice restricts results to those
// (normalized) categories. limit <= 0 means no limit.
func (s *GlossaryStore) Search(term string, categories []string, limit int) ([]model.GlossaryItem, error) {
	var where []string
	var args []any

	if term = strings.TrimSpace(term); term != "" {
		p := likePattern(term)
		where = append(where, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\' OR LOWER(consumer) LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p)
	}
	if len(categories) > 0 {
		where = append(where, `category IN (`+placeholders(len(categories))+`)`)
		for _, c := range categories {
			args = append(args, grocery.NormalizeCategory(c))
		}
	}

	q := `SELECT ` + glossaryCols + ` FROM glossary_items`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY LOWER(name) ASC, id ASC`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search glossary: %w", err)
	}
	defer rows.Close()

	var items []model.GlossaryItem
	for rows.Next() {
		g, err := scanGlossaryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan glossary item: %w", err)
		}
		items = append(items, *g)
	}
	return items, rows.Err()
}

func (s *GlossaryStore) Update(g model.GlossaryItem) (*model.GlossaryItem, error) {
	normalizeGlossary(&g)
	res, err := s.db.Exec(
		`UPDATE glossary_items SET name = ?, category = ?, price = ?, price_per_weight = ?, consumer = ?, store = ? WHERE id = ?`,
		g.Name, g.Category, nullFloat(g.Price), nullFloat(g.PricePerWeight), g.Consumer, g.Store, g.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update glossary item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetByID(g.ID)
}

func (s *GlossaryStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM glossary_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete glossary item: %w", err)
	}
	return nil
}

// Categories returns the distinct categories currently used by glossary rows.
func (s *GlossaryStore) Categories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM glossary_items ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("list glossary categories: %w", err)
	}
	defer rows.Close()

	var cats []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

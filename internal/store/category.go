package store

import (
	"fmt"

	"github.com/dukerupert/splitcart/internal/database"
	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
)

// CategoryStore persists user-added categories. Glossary rows keep their own
// category text, so nothing here rewrites them.
type CategoryStore struct {
	db *database.DB
}

func NewCategoryStore(db *database.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) ListCustom() ([]model.CustomCategory, error) {
	rows, err := s.db.Query(`SELECT name, created_at FROM custom_categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list custom categories: %w", err)
	}
	defer rows.Close()

	var cats []model.CustomCategory
	for rows.Next() {
		var c model.CustomCategory
		if err := rows.Scan(&c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan custom category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// AddCustom stores name after normalization and returns the stored form.
// Adding an existing category is a no-op.
func (s *CategoryStore) AddCustom(name string) (string, error) {
	name = grocery.NormalizeCategory(name)
	_, err := s.db.Exec(`INSERT INTO custom_categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return "", fmt.Errorf("insert custom category: %w", err)
	}
	return name, nil
}

// RenameCustom renames a custom category. It reports false when oldName is
// not a custom category.
func (s *CategoryStore) RenameCustom(oldName, newName string) (bool, error) {
	oldName = grocery.NormalizeCategory(oldName)
	newName = grocery.NormalizeCategory(newName)

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM custom_categories WHERE name = ?`, oldName)
	if err != nil {
		return false, fmt.Errorf("remove old category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if _, err := tx.Exec(`INSERT INTO custom_categories (name) VALUES (?) ON CONFLICT (name) DO NOTHING`, newName); err != nil {
		return false, fmt.Errorf("insert renamed category: %w", err)
	}
	return true, tx.Commit()
}

func (s *CategoryStore) DeleteCustom(name string) error {
	_, err := s.db.Exec(`DELETE FROM custom_categories WHERE name = ?`, grocery.NormalizeCategory(name))
	if err != nil {
		return fmt.Errorf("delete custom category: %w", err)
	}
	return nil
}

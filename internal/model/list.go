package model

import "time"

// ListDateLayout is the format of ShoppingList.Date.
const ListDateLayout = "2006-01-02"

type ShoppingList struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// ShoppingListItem holds values copied from the glossary at insert time.
// ItemID is informational only; the glossary row may since have changed or
// been deleted.
type ShoppingListItem struct {
	ID        int64     `json:"id"`
	ListID    int64     `json:"list_id"`
	ItemID    *int64    `json:"item_id"`
	Name      string    `json:"name"`
	Price     *float64  `json:"price"`
	Quantity  float64   `json:"quantity"`
	Category  string    `json:"category"`
	Consumer  string    `json:"consumer"`
	Store     string    `json:"store"`
	Checked   bool      `json:"checked"`
	CreatedAt time.Time `json:"created_at"`
}

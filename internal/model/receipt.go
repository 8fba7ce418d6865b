package model

import "time"

type ReceiptHistoryEntry struct {
	ID        int64           `json:"id"`
	ListID    int64           `json:"list_id"`
	Name      string          `json:"name"`
	Total     float64         `json:"total"`
	Snapshot  ReceiptSnapshot `json:"snapshot"`
	CreatedAt time.Time       `json:"created_at"`
}

// ReceiptSnapshot is denormalized so it stays readable after the list is gone.
type ReceiptSnapshot struct {
	ListID  int64           `json:"list_id"`
	Total   float64         `json:"total"`
	Tickets []ReceiptTicket `json:"tickets"`
	Items   []ReceiptItem   `json:"items"`
}

type ReceiptTicket struct {
	Person    string    `json:"person"`
	AmountDue float64   `json:"amount_due"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ReceiptItem struct {
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	Quantity float64  `json:"quantity"`
	Category string   `json:"category"`
	Store    string   `json:"store"`
}

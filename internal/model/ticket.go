package model

import (
	"encoding/json"
	"time"
)

const (
	TicketOpen     = "open"
	TicketPaid     = "paid"
	TicketResolved = "resolved"
)

// Ticket is one person's share of a list. Paid is the per-person settlement
// flag (stored in the "resolved" column); Status becomes "resolved" only when
// the whole list is archived.
type Ticket struct {
	ID        int64     `json:"id"`
	ListID    int64     `json:"list_id"`
	Person    string    `json:"person"`
	AmountDue float64   `json:"amount_due"`
	Status    string    `json:"status"`
	Paid      bool      `json:"resolved"`
	CreatedAt time.Time `json:"created_at"`
}

// TicketAudit is one status transition recorded by the resolve procedure.
type TicketAudit struct {
	ID         int64             `json:"id"`
	TicketID   int64             `json:"ticket_id"`
	ListID     int64             `json:"list_id"`
	Person     string            `json:"person"`
	Amount     float64           `json:"amount"`
	StatusFrom string            `json:"status_from"`
	StatusTo   string            `json:"status_to"`
	ResolvedAt time.Time         `json:"resolved_at"`
	ResolvedBy string            `json:"resolved_by,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Tags       map[string]string `json:"tags"`
	Metadata   json.RawMessage   `json:"metadata"`
	Snapshot   json.RawMessage   `json:"snapshot"`
	CreatedAt  time.Time         `json:"created_at"`
}

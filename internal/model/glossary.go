package model

import "time"

const (
	ConsumerGrant = "grant"
	ConsumerEmily = "emily"
	ConsumerBoth  = "both"
)

const (
	StoreWalmart = "walmart"
	StoreSams    = "sams"
)

type GlossaryItem struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Price          *float64  `json:"price"`
	PricePerWeight *float64  `json:"price_per_weight"`
	Consumer       string    `json:"consumer"`
	Store          string    `json:"store"`
	CreatedAt      time.Time `json:"created_at"`
}

type CustomCategory struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

package split

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/splitcart/internal/grocery"
	"github.com/dukerupert/splitcart/internal/model"
)

const (
	// TaxRate is applied to each person's subtotal independently.
	TaxRate = 0.05

	// MeatGrantShare is Grant's share of a shared meat line; Emily pays the rest.
	MeatGrantShare = 0.6

	// EvenShare is each person's share of any other shared line.
	EvenShare = 0.5
)

// Person identifies a payer.
type Person string

const (
	Grant Person = model.ConsumerGrant
	Emily Person = model.ConsumerEmily
)

// People lists payers in ticket issuance order.
var People = []Person{Grant, Emily}

// Line is one priced entry fed into the engine.
type Line struct {
	Name     string
	Price    *float64
	Quantity float64
	Consumer string
	Category string
}

// LineShare records how a single line was divided.
type LineShare struct {
	Name      string  `json:"name"`
	LineTotal float64 `json:"line_total"`
	Grant     float64 `json:"grant"`
	Emily     float64 `json:"emily"`
}

// Share is one person's accumulated amount.
type Share struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Breakdown is the full result of Compute. No field is rounded.
type Breakdown struct {
	Grant      Share       `json:"grant"`
	Emily      Share       `json:"emily"`
	GrandTotal float64     `json:"grand_total"`
	Lines      []LineShare `json:"lines"`
}

// For returns the share belonging to p.
func (b Breakdown) For(p Person) Share {
	if p == Emily {
		return b.Emily
	}
	return b.Grant
}

// Compute divides lines between Grant and Emily. Invalid prices count as
// zero and invalid quantities as one, so it never fails.
func Compute(lines []Line) Breakdown {
	var b Breakdown
	b.Lines = make([]LineShare, 0, len(lines))

	for _, l := range lines {
		lineTotal := price(l.Price) * quantity(l.Quantity)
		ls := LineShare{Name: l.Name, LineTotal: lineTotal}

		switch l.Consumer {
		case model.ConsumerGrant:
			ls.Grant = lineTotal
		case model.ConsumerEmily:
			ls.Emily = lineTotal
		default:
			ratio := EvenShare
			if grocery.NormalizeCategory(l.Category) == "meat" {
				ratio = MeatGrantShare
			}
			ls.Grant = lineTotal * ratio
			ls.Emily = lineTotal * (1 - ratio)
		}

		b.Grant.Subtotal += ls.Grant
		b.Emily.Subtotal += ls.Emily
		b.Lines = append(b.Lines, ls)
	}

	b.Grant = withTax(b.Grant.Subtotal)
	b.Emily = withTax(b.Emily.Subtotal)
	b.GrandTotal = b.Grant.Total + b.Emily.Total
	return b
}

// FromItems adapts list items to engine lines.
func FromItems(items []model.ShoppingListItem) []Line {
	lines := make([]Line, len(items))
	for i, it := range items {
		lines[i] = Line{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Consumer: it.Consumer,
			Category: it.Category,
		}
	}
	return lines
}

// LineTotal is price times quantity with the same degradation rules as Compute.
func LineTotal(p *float64, qty float64) float64 {
	return price(p) * quantity(qty)
}

// FormatMoney renders v as dollars rounded to cents, e.g. "$3.15".
func FormatMoney(v float64) string {
	if !finite(v) {
		v = 0
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}

// RoundCents rounds v half away from zero to two decimals.
func RoundCents(v float64) float64 {
	if !finite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func withTax(subtotal float64) Share {
	tax := subtotal * TaxRate
	return Share{Subtotal: subtotal, Tax: tax, Total: subtotal + tax}
}

func price(p *float64) float64 {
	if p == nil || !finite(*p) {
		return 0
	}
	return *p
}

func quantity(q float64) float64 {
	if !finite(q) || q <= 0 {
		return 1
	}
	return q
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

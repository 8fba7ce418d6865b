package receipt

import (
	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/split"
)

// Build assembles the archive entry for a list that is about to be resolved.
// Every ticket is recorded with status "resolved". The total is the sum of
// price times quantity over the items; only when there are no items does it
// fall back to the sum of ticket amounts.
func Build(list model.ShoppingList, tickets []model.Ticket, items []model.ShoppingListItem) *model.ReceiptHistoryEntry {
	snap := model.ReceiptSnapshot{
		ListID:  list.ID,
		Tickets: make([]model.ReceiptTicket, 0, len(tickets)),
		Items:   make([]model.ReceiptItem, 0, len(items)),
	}

	var ticketSum float64
	for _, t := range tickets {
		ticketSum += t.AmountDue
		snap.Tickets = append(snap.Tickets, model.ReceiptTicket{
			Person:    t.Person,
			AmountDue: t.AmountDue,
			Status:    model.TicketResolved,
			CreatedAt: t.CreatedAt,
		})
	}

	var itemSum float64
	for _, it := range items {
		itemSum += split.LineTotal(it.Price, it.Quantity)
		snap.Items = append(snap.Items, model.ReceiptItem{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Category: it.Category,
			Store:    it.Store,
		})
	}

	snap.Total = ticketSum
	if len(items) > 0 {
		snap.Total = itemSum
	}

	return &model.ReceiptHistoryEntry{
		ListID:   list.ID,
		Name:     list.Name,
		Total:    snap.Total,
		Snapshot: snap,
	}
}

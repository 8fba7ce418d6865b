package ticket

import (
	"context"
	"fmt"

	"github.com/dukerupert/splitcart/internal/model"
	"github.com/dukerupert/splitcart/internal/store"
)

// Ladder strategy names, tried in this order.
const (
	StrategyListID = "list_id"
	StrategyIDs    = "ids"
	StrategyPerRow = "per_row"
)

type strategy struct {
	name string
	run  func(ctx context.Context) error
}

// markResolved moves every ticket to "resolved", escalating from a single
// list-wide update to an id-list update to one locked transition per row. A
// strategy only counts once a re-read confirms every ticket is resolved.
func (s *Service) markResolved(ctx context.Context, listID int64, tickets []model.Ticket, actor string) bool {
	ids := make([]int64, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}

	strategies := []strategy{
		{StrategyListID, func(ctx context.Context) error {
			_, err := s.store.SetTicketStatusByList(ctx, listID, model.TicketResolved)
			return err
		}},
		{StrategyIDs, func(ctx context.Context) error {
			_, err := s.store.SetTicketStatusByIDs(ctx, ids, model.TicketResolved)
			return err
		}},
		{StrategyPerRow, func(ctx context.Context) error {
			for _, id := range ids {
				res, err := s.store.ResolveTicket(ctx, store.ResolveRequest{
					TicketID: id,
					Status:   model.TicketResolved,
					Reason:   "list resolved",
					ActorID:  actor,
					Tags:     map[string]string{"source": "list_resolve", "strategy": StrategyPerRow},
				})
				if err != nil {
					return fmt.Errorf("ticket %d: %w", id, err)
				}
				if res.After.Status != model.TicketResolved {
					return fmt.Errorf("ticket %d: status %q after resolve", id, res.After.Status)
				}
			}
			return nil
		}},
	}

	for _, st := range strategies {
		if ctx.Err() != nil {
			return false
		}
		err := st.run(ctx)
		if err == nil {
			err = s.verifyResolved(listID, ids)
		}
		s.metrics.LadderAttempt(st.name, err == nil)
		if err == nil {
			s.logger.Debug("tickets marked resolved", "list_id", listID, "strategy", st.name)
			return true
		}
		s.logger.Warn("resolve strategy failed", "list_id", listID, "strategy", st.name, "error", err)
	}
	return false
}

// verifyResolved re-reads the list and checks every expected ticket is
// resolved.
func (s *Service) verifyResolved(listID int64, ids []int64) error {
	tickets, err := s.store.ListTicketsByList(listID)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	status := make(map[int64]string, len(tickets))
	for _, t := range tickets {
		status[t.ID] = t.Status
	}
	for _, id := range ids {
		if status[id] != model.TicketResolved {
			return fmt.Errorf("verify: ticket %d is %q", id, status[id])
		}
	}
	return nil
}

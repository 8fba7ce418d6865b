package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/splitcart/internal/metrics"
)

const (
	KindListReady     = "list_ready"
	KindTicketsIssued = "tickets_issued"

	sendTimeout = 30 * time.Second
)

// ListReady is sent once every ticket on a list has been paid.
type ListReady struct {
	ListID   int64
	ListName string
	Total    float64
}

// PersonTotal is one row of a tickets-issued notice.
type PersonTotal struct {
	Person string
	Total  float64
}

// TicketsIssued is sent when a list's tickets are first issued.
type TicketsIssued struct {
	ListID   int64
	ListName string
	Totals   []PersonTotal
}

// Sender delivers notices to one recipient.
type Sender interface {
	Configured() bool
	SendListReady(ctx context.Context, to string, n ListReady) error
	SendTicketsIssued(ctx context.Context, to string, n TicketsIssued) error
}

// Trigger fires outbound notices at most once per list for the lifetime of
// the process. Delivery runs in the background; failures are logged and
// counted but never reported to the caller.
type Trigger struct {
	sender     Sender
	recipients []string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	notified map[string]map[int64]struct{}
	wg       sync.WaitGroup
}

func NewTrigger(sender Sender, recipients []string, logger *slog.Logger, m *metrics.Metrics) *Trigger {
	return &Trigger{
		sender:     sender,
		recipients: recipients,
		logger:     logger,
		metrics:    m,
		notified:   make(map[string]map[int64]struct{}),
	}
}

// ListReady fires the all-paid notice for n.ListID unless it already fired.
// It reports whether a notice was dispatched.
func (t *Trigger) ListReady(n ListReady) bool {
	if !t.mark(KindListReady, n.ListID) {
		return false
	}
	t.dispatch(KindListReady, n.ListID, func(ctx context.Context, to string) error {
		return t.sender.SendListReady(ctx, to, n)
	})
	return true
}

// TicketsIssued fires the new-ticket notice for n.ListID unless it already
// fired. It reports whether a notice was dispatched.
func (t *Trigger) TicketsIssued(n TicketsIssued) bool {
	if !t.mark(KindTicketsIssued, n.ListID) {
		return false
	}
	t.dispatch(KindTicketsIssued, n.ListID, func(ctx context.Context, to string) error {
		return t.sender.SendTicketsIssued(ctx, to, n)
	})
	return true
}

// Notified reports whether a notice of kind has fired for listID.
func (t *Trigger) Notified(kind string, listID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.notified[kind][listID]
	return ok
}

// Wait blocks until all in-flight deliveries finish.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

func (t *Trigger) mark(kind string, listID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.notified[kind]
	if !ok {
		set = make(map[int64]struct{})
		t.notified[kind] = set
	}
	if _, done := set[listID]; done {
		return false
	}
	set[listID] = struct{}{}
	return true
}

func (t *Trigger) dispatch(kind string, listID int64, send func(ctx context.Context, to string) error) {
	if t.sender == nil || !t.sender.Configured() || len(t.recipients) == 0 {
		t.logger.Debug("notification skipped: sender not configured", "kind", kind, "list_id", listID)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		for _, to := range t.recipients {
			if err := send(ctx, to); err != nil {
				t.logger.Error("notification failed", "kind", kind, "list_id", listID, "to", to, "error", err)
				t.metrics.Notification(kind, false)
				continue
			}
			t.logger.Info("notification sent", "kind", kind, "list_id", listID, "to", to)
			t.metrics.Notification(kind, true)
		}
	}()
}

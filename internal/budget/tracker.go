// Package budget tracks per-category spending limits and evaluates how
// far current-month expenses have eaten into them.
package budget

import (
	"context"
	"fmt"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/events"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
)

// Thresholds for the status states, in percent of the limit.
const (
	WarningThreshold  = 80.0
	ExceededThreshold = 100.0
)

type State string

const (
	StateGood     State = "good"
	StateWarning  State = "warning"
	StateExceeded State = "exceeded"
)

// Status is the evaluation of one budget entry against the month's
// spending. Percentage is clamped to 100 for display.
type Status struct {
	Category   string
	Limit      core.Money
	Spent      core.Money
	Remaining  core.Money
	Percentage float64
	State      State
	Window     core.MonthWindow
}

// Store is the persistence surface for budget entries.
type Store interface {
	UpsertBudget(ctx context.Context, b core.BudgetEntry) error
	GetBudget(ctx context.Context, userID, category, period string) (*core.BudgetEntry, error)
	ListBudgets(ctx context.Context, userID string) ([]core.BudgetEntry, error)
}

// SpendingSource provides expense totals per category for a month.
type SpendingSource interface {
	SpentByCategory(ctx context.Context, userID string, w core.MonthWindow) (map[string]core.Money, error)
}

type Tracker struct {
	store    Store
	spending SpendingSource
	bus      *events.Bus
	alerts   *notify.Center
	logger   *log.Logger
	now      func() time.Time
}

func NewTracker(store Store, spending SpendingSource, bus *events.Bus, alerts *notify.Center, logger *log.Logger) *Tracker {
	return &Tracker{
		store:    store,
		spending: spending,
		bus:      bus,
		alerts:   alerts,
		logger:   logger.WithComponent(log.ComponentBudget),
		now:      time.Now,
	}
}

// SetLimit stores a monthly limit for the category, replacing any prior
// one. Publishes budget:updated after the write commits.
func (t *Tracker) SetLimit(ctx context.Context, userID, category string, limit core.Money) (*core.BudgetEntry, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	entry := core.BudgetEntry{
		UserID:    userID,
		Category:  category,
		Limit:     limit,
		Period:    core.PeriodMonthly,
		CreatedAt: t.now(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := t.store.UpsertBudget(ctx, entry); err != nil {
		return nil, fmt.Errorf("set budget limit: %w", err)
	}

	t.logger.InfoContext(ctx, "budget limit set",
		log.FieldUserID, userID,
		log.FieldCategory, category,
		log.FieldAmountCents, limit.Cents)

	if t.bus != nil {
		t.bus.Publish(events.Event{
			Name:        events.BudgetUpdated,
			UserID:      userID,
			Category:    category,
			AmountCents: limit.Cents,
			At:          t.now(),
		})
	}
	return &entry, nil
}

// List returns the user's budget entries ordered by category.
func (t *Tracker) List(ctx context.Context, userID string) ([]core.BudgetEntry, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	return t.store.ListBudgets(ctx, userID)
}

// StatusFor evaluates one category's budget against the current month's
// expenses. Returns core.ErrNotFound when no limit is set.
func (t *Tracker) StatusFor(ctx context.Context, userID, category string) (*Status, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	entry, err := t.store.GetBudget(ctx, userID, category, core.PeriodMonthly)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, core.ErrNotFound
	}

	window := core.WindowOf(t.now())
	spent, err := t.spending.SpentByCategory(ctx, userID, window)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}
	s := Evaluate(*entry, spent[category], window)
	return &s, nil
}

// StatusAll evaluates every budget the user has set against the current
// month.
func (t *Tracker) StatusAll(ctx context.Context, userID string) ([]Status, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	entries, err := t.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	window := core.WindowOf(t.now())
	spent, err := t.spending.SpentByCategory(ctx, userID, window)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		out = append(out, Evaluate(e, spent[e.Category], window))
	}
	return out, nil
}

// CheckAll evaluates the user's budgets and raises an alert for every
// category in warning or exceeded state.
func (t *Tracker) CheckAll(ctx context.Context, userID string) error {
	statuses, err := t.StatusAll(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range statuses {
		switch s.State {
		case StateExceeded:
			t.alerts.Push(userID, notify.SeverityError, "Budget exceeded",
				fmt.Sprintf("You have spent %s of your %s budget for %s.",
					s.Spent.Format(""), s.Limit.Format(""), s.Category))
		case StateWarning:
			t.alerts.Push(userID, notify.SeverityWarning, "Budget warning",
				fmt.Sprintf("You have used %.0f%% of your budget for %s.",
					s.Percentage, s.Category))
		}
	}
	return nil
}

// Subscribe wires the tracker to re-check budgets whenever a transaction
// mutation lands on the bus.
func (t *Tracker) Subscribe(bus *events.Bus) {
	recheck := func(ev events.Event) {
		if ev.UserID == "" {
			return
		}
		if err := t.CheckAll(context.Background(), ev.UserID); err != nil {
			t.logger.Warn("budget re-check failed",
				log.FieldUserID, ev.UserID, log.FieldError, err)
		}
	}
	bus.Subscribe(events.TransactionCreated, recheck)
	bus.Subscribe(events.TransactionUpdated, recheck)
	bus.Subscribe(events.TransactionDeleted, recheck)
}

// Evaluate computes the status of one entry given the month's spending
// in its category.
func Evaluate(entry core.BudgetEntry, spent core.Money, window core.MonthWindow) Status {
	pct := 0.0
	if entry.Limit.Cents > 0 {
		pct = float64(spent.Cents) / float64(entry.Limit.Cents) * 100
	}
	state := StateGood
	switch {
	case pct >= ExceededThreshold:
		state = StateExceeded
	case pct >= WarningThreshold:
		state = StateWarning
	}
	if pct > 100 {
		pct = 100
	}
	return Status{
		Category:   entry.Category,
		Limit:      entry.Limit,
		Spent:      spent,
		Remaining:  entry.Limit.Sub(spent),
		Percentage: pct,
		State:      state,
		Window:     window,
	}
}

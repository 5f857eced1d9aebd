package budget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/events"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
)

type fakeBudgetStore struct {
	entries map[string]core.BudgetEntry // key user|category
}

func newFakeBudgetStore() *fakeBudgetStore {
	return &fakeBudgetStore{entries: make(map[string]core.BudgetEntry)}
}

func (s *fakeBudgetStore) UpsertBudget(_ context.Context, b core.BudgetEntry) error {
	s.entries[b.UserID+"|"+b.Category] = b
	return nil
}

func (s *fakeBudgetStore) GetBudget(_ context.Context, userID, category, period string) (*core.BudgetEntry, error) {
	b, ok := s.entries[userID+"|"+category]
	if !ok || b.Period != period {
		return nil, nil
	}
	return &b, nil
}

func (s *fakeBudgetStore) ListBudgets(_ context.Context, userID string) ([]core.BudgetEntry, error) {
	var out []core.BudgetEntry
	for _, b := range s.entries {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeSpending struct {
	byCategory map[string]core.Money
	err        error
}

func (s *fakeSpending) SpentByCategory(context.Context, string, core.MonthWindow) (map[string]core.Money, error) {
	return s.byCategory, s.err
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func newTestTracker(spending *fakeSpending) (*Tracker, *fakeBudgetStore, *notify.Center, *events.Bus) {
	store := newFakeBudgetStore()
	bus := events.NewBus()
	alerts := notify.NewCenter(testLogger())
	return NewTracker(store, spending, bus, alerts, testLogger()), store, alerts, bus
}

func TestEvaluate(t *testing.T) {
	window := core.MonthWindow{Year: 2026, Month: time.July}
	entry := core.BudgetEntry{Category: "Food", Limit: core.Money{Cents: 100000}, Period: core.PeriodMonthly}

	cases := []struct {
		spentCents int64
		pct        float64
		state      State
	}{
		{0, 0, StateGood},
		{50000, 50, StateGood},
		{75000, 75, StateGood},
		{80000, 80, StateWarning},
		{91000, 91, StateWarning},
		{100000, 100, StateExceeded},
		{125000, 100, StateExceeded}, // percentage clamps at 100
	}
	for i, tc := range cases {
		got := Evaluate(entry, core.Money{Cents: tc.spentCents}, window)
		if got.State != tc.state {
			t.Fatalf("case %d: expected state %s, got %s", i, tc.state, got.State)
		}
		if got.Percentage != tc.pct {
			t.Fatalf("case %d: expected %v%%, got %v%%", i, tc.pct, got.Percentage)
		}
		if got.Remaining.Cents != entry.Limit.Cents-tc.spentCents {
			t.Fatalf("case %d: unexpected remaining %d", i, got.Remaining.Cents)
		}
	}
}

func TestSetLimit(t *testing.T) {
	tracker, store, _, bus := newTestTracker(&fakeSpending{})

	var ev events.Event
	bus.Subscribe(events.BudgetUpdated, func(e events.Event) { ev = e })

	entry, err := tracker.SetLimit(context.Background(), "u1", "Food", core.Money{Cents: 50000})
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if entry.Period != core.PeriodMonthly {
		t.Fatalf("expected monthly period, got %s", entry.Period)
	}
	if _, ok := store.entries["u1|Food"]; !ok {
		t.Fatal("limit must be persisted")
	}
	if ev.Name != events.BudgetUpdated || ev.Category != "Food" {
		t.Fatalf("expected budget:updated event, got %+v", ev)
	}

	// A second set replaces the first.
	if _, err := tracker.SetLimit(context.Background(), "u1", "Food", core.Money{Cents: 75000}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if got := store.entries["u1|Food"].Limit.Cents; got != 75000 {
		t.Fatalf("expected replacement, got %d", got)
	}
}

func TestSetLimitRejections(t *testing.T) {
	tracker, _, _, _ := newTestTracker(&fakeSpending{})
	if _, err := tracker.SetLimit(context.Background(), "", "Food", core.Money{Cents: 1}); !errors.Is(err, core.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := tracker.SetLimit(context.Background(), "u1", "Food", core.Money{}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := tracker.SetLimit(context.Background(), "u1", "  ", core.Money{Cents: 1}); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	spending := &fakeSpending{byCategory: map[string]core.Money{"Food": {Cents: 85000}}}
	tracker, _, _, _ := newTestTracker(spending)
	ctx := context.Background()

	if _, err := tracker.StatusFor(ctx, "u1", "Food"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound with no limit set, got %v", err)
	}

	if _, err := tracker.SetLimit(ctx, "u1", "Food", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	s, err := tracker.StatusFor(ctx, "u1", "Food")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if s.State != StateWarning || s.Percentage != 85 {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestCheckAllRaisesAlerts(t *testing.T) {
	spending := &fakeSpending{byCategory: map[string]core.Money{
		"Food": {Cents: 120000}, // exceeded
		"Rent": {Cents: 85000},  // warning
		"Fun":  {Cents: 1000},   // good
	}}
	tracker, _, alerts, _ := newTestTracker(spending)
	defer alerts.Close()
	ctx := context.Background()

	for _, cat := range []string{"Food", "Rent", "Fun"} {
		if _, err := tracker.SetLimit(ctx, "u1", cat, core.Money{Cents: 100000}); err != nil {
			t.Fatalf("set limit %s: %v", cat, err)
		}
	}

	if err := tracker.CheckAll(ctx, "u1"); err != nil {
		t.Fatalf("check: %v", err)
	}

	got := alerts.List("u1")
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %+v", len(got), got)
	}
	var sawExceeded, sawWarning bool
	for _, a := range got {
		switch a.Severity {
		case notify.SeverityError:
			sawExceeded = true
		case notify.SeverityWarning:
			sawWarning = true
		}
	}
	if !sawExceeded || !sawWarning {
		t.Fatalf("expected one error and one warning alert, got %+v", got)
	}
}

func TestSubscribeRechecksOnMutations(t *testing.T) {
	spending := &fakeSpending{byCategory: map[string]core.Money{"Food": {Cents: 150000}}}
	tracker, _, alerts, bus := newTestTracker(spending)
	defer alerts.Close()

	if _, err := tracker.SetLimit(context.Background(), "u1", "Food", core.Money{Cents: 100000}); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	tracker.Subscribe(bus)

	bus.Publish(events.Event{Name: events.TransactionCreated, UserID: "u1"})
	if len(alerts.List("u1")) == 0 {
		t.Fatal("a transaction event must trigger a budget re-check")
	}

	before := len(alerts.List("u1"))
	bus.Publish(events.Event{Name: events.TransactionDeleted}) // no user
	if len(alerts.List("u1")) != before {
		t.Fatal("events without a user must be ignored")
	}
}

package catalog

import (
	"testing"

	"budgetblu/internal/core"
)

func TestLoad(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	income := c.Categories(core.Income)
	expense := c.Categories(core.Expense)
	if len(income) != 5 {
		t.Fatalf("expected 5 income categories, got %v", income)
	}
	if len(expense) != 10 {
		t.Fatalf("expected 10 expense categories, got %v", expense)
	}
	if income[0] != "Salary" {
		t.Fatalf("unexpected income order %v", income)
	}
	if expense[len(expense)-1] != "Other" {
		t.Fatalf("expected Other last, got %v", expense)
	}
	if got := len(c.All()); got != len(income)+len(expense) {
		t.Fatalf("expected %d total, got %d", len(income)+len(expense), got)
	}
	if c.Categories("transfer") != nil {
		t.Fatal("unknown type must have no categories")
	}
}

func TestLoadEntryMetadata(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, tt := range []core.TransactionType{core.Income, core.Expense} {
		for _, e := range c.Entries(tt) {
			if e.Key == "" || e.Label == "" || e.Icon == "" || e.Color == "" {
				t.Fatalf("incomplete %s entry %+v", tt, e)
			}
		}
	}

	income := c.Entries(core.Income)
	if income[0].Key != "salary" || income[0].Color != "#4CAF50" {
		t.Fatalf("unexpected first income entry %+v", income[0])
	}
	for _, e := range c.Entries(core.Expense) {
		if e.Label != "Food" {
			continue
		}
		if e.DefaultBudget.Cents != 50000 {
			t.Fatalf("expected 500.00 default budget for Food, got %v", e.DefaultBudget)
		}
		return
	}
	t.Fatal("Food entry missing")
}

func TestParseRejectsBadPayloads(t *testing.T) {
	cases := [][]byte{
		[]byte(`{`),
		[]byte(`{}`),
		[]byte(`{"income":{},"expense":{}}`),
		[]byte(`{"income":{"salary":{"label":"Salary"}}}`),
	}
	for i, raw := range cases {
		if _, err := parse(raw); err == nil {
			t.Fatalf("case %d: expected parse error", i)
		}
	}
}

func TestBuiltinFallback(t *testing.T) {
	c := builtin()
	if !c.Known(core.Expense, Fallback) {
		t.Fatalf("built-in set must include %q", Fallback)
	}
	if len(c.Categories(core.Income)) == 0 || len(c.Categories(core.Expense)) == 0 {
		t.Fatal("built-in set must cover both types")
	}
	if got := c.Color("Food"); got != "#FF9800" {
		t.Fatalf("unexpected built-in Food color %q", got)
	}
}

func TestColor(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		in   string
		want string
	}{
		{"Rent", "#F44336"},
		{"Salary", "#4CAF50"},
		{"Alpaca Grooming", FallbackColor},
		{"", FallbackColor},
	}
	for i, tc := range cases {
		if got := c.Color(tc.in); got != tc.want {
			t.Fatalf("case %d: expected %q, got %q", i, tc.want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cases := []struct {
		t    core.TransactionType
		in   string
		want string
	}{
		{core.Expense, "Food", "Food"},
		{core.Income, "Salary", "Salary"},
		{core.Expense, "Salary", Fallback}, // income category on an expense
		{core.Expense, "", Fallback},
		{core.Income, "jetski", Fallback},
	}
	for i, tc := range cases {
		if got := c.Normalize(tc.t, tc.in); got != tc.want {
			t.Fatalf("case %d: expected %q, got %q", i, tc.want, got)
		}
	}
}

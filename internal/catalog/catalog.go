// Package catalog provides the category catalog for each transaction
// type: display label, icon glyph, chart color, and an optional default
// monthly budget per category.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"

	"budgetblu/assets"
	"budgetblu/internal/core"
)

// Fallback is the category used when a transaction carries none.
const Fallback = "Other"

// FallbackColor is the chart color for categories the catalog does not
// know.
const FallbackColor = "#C9CBCF"

// Entry describes one category.
type Entry struct {
	Key           string     `json:"key"`
	Label         string     `json:"label"`
	Icon          string     `json:"icon"`
	Color         string     `json:"color"`
	DefaultBudget core.Money `json:"-"` // zero when the catalog sets none
}

// Catalog holds the known categories per transaction type, in display
// order.
type Catalog struct {
	income  []Entry
	expense []Entry
}

type rawEntry struct {
	Label         string  `json:"label"`
	Icon          string  `json:"icon"`
	Color         string  `json:"color"`
	Order         int     `json:"order"`
	DefaultBudget float64 `json:"defaultBudget"`
}

// Load parses the embedded catalog file. On a read or parse failure it
// returns the built-in default set alongside the error, so callers can
// log the problem and keep going.
func Load() (*Catalog, error) {
	raw, err := assets.FS.ReadFile("catalog.json")
	if err != nil {
		return builtin(), fmt.Errorf("read catalog: %w", err)
	}
	c, err := parse(raw)
	if err != nil {
		return builtin(), err
	}
	return c, nil
}

func parse(raw []byte) (*Catalog, error) {
	var doc struct {
		Income  map[string]rawEntry `json:"income"`
		Expense map[string]rawEntry `json:"expense"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Income) == 0 || len(doc.Expense) == 0 {
		return nil, fmt.Errorf("parse catalog: empty category map")
	}
	return &Catalog{
		income:  ordered(doc.Income),
		expense: ordered(doc.Expense),
	}, nil
}

func ordered(m map[string]rawEntry) []Entry {
	type keyed struct {
		key string
		raw rawEntry
	}
	items := make([]keyed, 0, len(m))
	for k, v := range m {
		items = append(items, keyed{key: k, raw: v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].raw.Order != items[j].raw.Order {
			return items[i].raw.Order < items[j].raw.Order
		}
		return items[i].raw.Label < items[j].raw.Label
	})

	out := make([]Entry, 0, len(items))
	for _, it := range items {
		out = append(out, Entry{
			Key:           it.key,
			Label:         it.raw.Label,
			Icon:          it.raw.Icon,
			Color:         it.raw.Color,
			DefaultBudget: core.MoneyFromFloat(it.raw.DefaultBudget),
		})
	}
	return out
}

// builtin is the small default set used when the embedded catalog is
// missing or malformed.
func builtin() *Catalog {
	return &Catalog{
		income: []Entry{
			{Key: "salary", Label: "Salary", Icon: "💼", Color: "#4CAF50"},
			{Key: "other_income", Label: "Other Income", Icon: "💰", Color: "#607D8B"},
		},
		expense: []Entry{
			{Key: "food", Label: "Food", Icon: "🍲", Color: "#FF9800"},
			{Key: "rent", Label: "Rent", Icon: "🏠", Color: "#F44336"},
			{Key: "transportation", Label: "Transportation", Icon: "🚌", Color: "#2196F3"},
			{Key: "other", Label: Fallback, Icon: "📦", Color: "#795548"},
		},
	}
}

// Entries returns the full entries for one transaction type.
func (c *Catalog) Entries(t core.TransactionType) []Entry {
	switch t {
	case core.Income:
		return append([]Entry(nil), c.income...)
	case core.Expense:
		return append([]Entry(nil), c.expense...)
	default:
		return nil
	}
}

// Categories returns the display labels for one transaction type.
func (c *Catalog) Categories(t core.TransactionType) []string {
	entries := c.Entries(t)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Label)
	}
	return out
}

// All returns income labels followed by expense labels.
func (c *Catalog) All() []string {
	out := make([]string, 0, len(c.income)+len(c.expense))
	for _, e := range c.income {
		out = append(out, e.Label)
	}
	for _, e := range c.expense {
		out = append(out, e.Label)
	}
	return out
}

// Known reports whether the category label exists for the type.
func (c *Catalog) Known(t core.TransactionType, category string) bool {
	for _, e := range c.Entries(t) {
		if e.Label == category {
			return true
		}
	}
	return false
}

// Normalize returns the category unchanged when known, or Fallback when
// empty or unrecognized.
func (c *Catalog) Normalize(t core.TransactionType, category string) string {
	if category == "" || !c.Known(t, category) {
		return Fallback
	}
	return category
}

// Color returns the chart color for a category label of either type, or
// FallbackColor when the catalog does not know it.
func (c *Catalog) Color(category string) string {
	for _, e := range c.income {
		if e.Label == category {
			return e.Color
		}
	}
	for _, e := range c.expense {
		if e.Label == category {
			return e.Color
		}
	}
	return FallbackColor
}

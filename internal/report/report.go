// Package report composes chart-ready datasets from the ledger:
// expenses by category, monthly spending trends, and income versus
// expenses.
package report

import (
	"context"
	"sort"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/currency"
	"budgetblu/internal/ledger"
)

// TrendMonths is how many trailing months the trend charts cover,
// current month included.
const TrendMonths = 6

const (
	// unknownSliceColor is used for categories the color source does not
	// know.
	unknownSliceColor = "#C9CBCF"

	trendLineColor = "#060481"
	trendFillColor = "rgba(6, 4, 129, 0.1)"

	incomeFillColor    = "#4CAF50"
	incomeBorderColor  = "#388E3C"
	expenseFillColor   = "#F44336"
	expenseBorderColor = "#D32F2F"
)

// Dataset is one series in a chart.
type Dataset struct {
	Label            string    `json:"label,omitempty"`
	Data             []float64 `json:"data"`
	BackgroundColor  any       `json:"backgroundColor,omitempty"`
	BorderColor      string    `json:"borderColor,omitempty"`
	BorderWidth      int       `json:"borderWidth,omitempty"`
	Fill             bool      `json:"fill,omitempty"`
	Tension          float64   `json:"tension,omitempty"`
}

// Chart is a renderable chart: type, title, axis labels, and series.
// Amounts are in the requested display currency.
type Chart struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Currency string    `json:"currency"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// ColorSource maps a category label to its chart color.
type ColorSource interface {
	Color(category string) string
}

type Service struct {
	ledger    *ledger.Service
	converter *currency.Converter
	colors    ColorSource // nil paints every slice unknownSliceColor
	now       func() time.Time
}

func NewService(l *ledger.Service, conv *currency.Converter, colors ColorSource) *Service {
	return &Service{ledger: l, converter: conv, colors: colors, now: time.Now}
}

func (s *Service) sliceColor(category string) string {
	if s.colors == nil {
		return unknownSliceColor
	}
	return s.colors.Color(category)
}

// ExpensesByCategory builds a doughnut chart of all-time expense totals
// per category, largest first.
func (s *Service) ExpensesByCategory(ctx context.Context, userID, displayCurrency string) (*Chart, error) {
	txs, err := s.ledger.List(ctx, userID, core.TxFilter{Type: core.Expense})
	if err != nil {
		return nil, err
	}

	totals := make(map[string]core.Money)
	for _, tx := range txs {
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}

	labels := make([]string, 0, len(totals))
	for category := range totals {
		labels = append(labels, category)
	}
	sort.Slice(labels, func(i, j int) bool {
		if totals[labels[i]].Cents != totals[labels[j]].Cents {
			return totals[labels[i]].Cents > totals[labels[j]].Cents
		}
		return labels[i] < labels[j]
	})

	data := make([]float64, 0, len(labels))
	colors := make([]string, 0, len(labels))
	for _, category := range labels {
		v, err := s.display(totals[category], displayCurrency)
		if err != nil {
			return nil, err
		}
		data = append(data, v)
		colors = append(colors, s.sliceColor(category))
	}

	return &Chart{
		Type:     "doughnut",
		Title:    "Expenses by Category",
		Currency: displayCurrency,
		Labels:   labels,
		Datasets: []Dataset{{
			Data:            data,
			BackgroundColor: colors,
			BorderColor:     "#fff",
			BorderWidth:     2,
		}},
	}, nil
}

// MonthlyTrends builds a line chart of expense totals over the trailing
// TrendMonths months.
func (s *Service) MonthlyTrends(ctx context.Context, userID, displayCurrency string) (*Chart, error) {
	labels, windows := s.trailingMonths()

	data := make([]float64, 0, len(windows))
	for _, w := range windows {
		from, to := w.Bounds(time.UTC)
		totals, err := s.ledger.TotalsFor(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		v, err := s.display(totals.Expense, displayCurrency)
		if err != nil {
			return nil, err
		}
		data = append(data, v)
	}

	return &Chart{
		Type:     "line",
		Title:    "Monthly Spending Trends",
		Currency: displayCurrency,
		Labels:   labels,
		Datasets: []Dataset{{
			Label:           "Monthly Expenses",
			Data:            data,
			BorderColor:     trendLineColor,
			BackgroundColor: trendFillColor,
			Tension:         0.4,
			Fill:            true,
		}},
	}, nil
}

// IncomeVsExpenses builds a grouped bar chart comparing income and
// expense totals per month over the trailing TrendMonths months.
func (s *Service) IncomeVsExpenses(ctx context.Context, userID, displayCurrency string) (*Chart, error) {
	labels, windows := s.trailingMonths()

	income := make([]float64, 0, len(windows))
	expenses := make([]float64, 0, len(windows))
	for _, w := range windows {
		from, to := w.Bounds(time.UTC)
		totals, err := s.ledger.TotalsFor(ctx, userID, from, to)
		if err != nil {
			return nil, err
		}
		in, err := s.display(totals.Income, displayCurrency)
		if err != nil {
			return nil, err
		}
		out, err := s.display(totals.Expense, displayCurrency)
		if err != nil {
			return nil, err
		}
		income = append(income, in)
		expenses = append(expenses, out)
	}

	return &Chart{
		Type:     "bar",
		Title:    "Income vs Expenses",
		Currency: displayCurrency,
		Labels:   labels,
		Datasets: []Dataset{
			{
				Label:           "Income",
				Data:            income,
				BackgroundColor: incomeFillColor,
				BorderColor:     incomeBorderColor,
				BorderWidth:     1,
			},
			{
				Label:           "Expenses",
				Data:            expenses,
				BackgroundColor: expenseFillColor,
				BorderColor:     expenseBorderColor,
				BorderWidth:     1,
			},
		},
	}, nil
}

// trailingMonths returns "Jan 06"-style labels and the matching month
// windows, oldest first, ending with the current month.
func (s *Service) trailingMonths() ([]string, []core.MonthWindow) {
	now := s.now()
	labels := make([]string, 0, TrendMonths)
	windows := make([]core.MonthWindow, 0, TrendMonths)
	for i := TrendMonths - 1; i >= 0; i-- {
		t := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		labels = append(labels, t.Format("Jan 06"))
		windows = append(windows, core.WindowOf(t))
	}
	return labels, windows
}

// display converts a stored base-currency amount to the display
// currency's major units.
func (s *Service) display(m core.Money, displayCurrency string) (float64, error) {
	if s.converter == nil || displayCurrency == "" || displayCurrency == currency.BaseCurrency {
		return m.Float64(), nil
	}
	return s.converter.Convert(m.Float64(), currency.BaseCurrency, displayCurrency)
}

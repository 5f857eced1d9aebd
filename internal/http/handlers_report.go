package http

import (
	"context"
	"net/http"

	"budgetblu/internal/currency"
	"budgetblu/internal/log"
	"budgetblu/internal/report"
)

type chartFn func(ctx context.Context, userID, displayCurrency string) (*report.Chart, error)

// serveChart resolves the display currency, serves from the chart cache
// when possible, and composes the chart otherwise.
func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, kind string, compose chartFn) {
	user := currentUser(r)

	display, err := s.deps.Selector.Current(r.Context(), user.ID)
	if err != nil {
		display = currency.DefaultCurrency
	}
	if v := r.URL.Query().Get("currency"); v != "" {
		if !currency.Supported(v) {
			UnprocessableEntityError("unknown currency").Write(w)
			return
		}
		display = v
	}

	key := s.chartCacheKey(user.ID, kind, display)
	if chart, found := s.chartCache.Get(key); found {
		NewResponse().JSON(chart).Write(w)
		return
	}

	chart, err := compose(r.Context(), user.ID, display)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Chart composition failed",
			log.FieldUserID, user.ID, "chart", kind, log.FieldError, err)
		InternalServerError("failed to build report").Write(w)
		return
	}

	s.chartCache.Set(key, chart)
	NewResponse().JSON(chart).Write(w)
}

func (s *Server) handleExpensesByCategory(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, "category", s.deps.Reports.ExpensesByCategory)
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, "trends", s.deps.Reports.MonthlyTrends)
}

func (s *Server) handleIncomeVsExpenses(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, r, "income-expenses", s.deps.Reports.IncomeVsExpenses)
}

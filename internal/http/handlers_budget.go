package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"budgetblu/internal/budget"
	"budgetblu/internal/core"
	"budgetblu/internal/log"
)

type budgetRequest struct {
	Category string `json:"category"`
	Limit    string `json:"limit"` // decimal string in the base currency
}

type budgetResponse struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
	Period   string  `json:"period"`
}

type budgetStatusResponse struct {
	Category   string  `json:"category"`
	Limit      float64 `json:"limit"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage float64 `json:"percentage"`
	State      string  `json:"state"`
}

func toBudgetStatusResponse(s budget.Status) budgetStatusResponse {
	return budgetStatusResponse{
		Category:   s.Category,
		Limit:      s.Limit.Float64(),
		Spent:      s.Spent.Float64(),
		Remaining:  s.Remaining.Float64(),
		Percentage: s.Percentage,
		State:      string(s.State),
	}
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	cents, err := core.ParseDecimalToCents(req.Limit)
	if err != nil {
		UnprocessableEntityError("invalid limit amount").Write(w)
		return
	}

	user := currentUser(r)
	category := s.deps.Catalog.Normalize(core.Expense, sanitizeInput(req.Category))
	entry, err := s.deps.Budgets.SetLimit(r.Context(), user.ID, category, core.Money{Cents: cents})
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) || errors.Is(err, core.ErrEmptyCategory) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Budget set failed",
			log.FieldUserID, user.ID, log.FieldCategory, category, log.FieldError, err)
		InternalServerError("failed to save budget").Write(w)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		TriggerBudgetUpdated(entry.Category).
		JSON(budgetResponse{
			Category: entry.Category,
			Limit:    entry.Limit.Float64(),
			Period:   entry.Period,
		}).
		Write(w)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	entries, err := s.deps.Budgets.List(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budget list failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to list budgets").Write(w)
		return
	}

	out := make([]budgetResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, budgetResponse{
			Category: e.Category,
			Limit:    e.Limit.Float64(),
			Period:   e.Period,
		})
	}
	NewResponse().JSON(out).Write(w)
}

// handleBudgetStatus evaluates every budget against the current month.
// With ?category= it returns a single status instead.
func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if category := r.URL.Query().Get("category"); category != "" {
		status, err := s.deps.Budgets.StatusFor(r.Context(), user.ID, category)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				NotFoundError("no budget set for category").Write(w)
				return
			}
			s.logger.ErrorContext(r.Context(), "Budget status failed",
				log.FieldUserID, user.ID, log.FieldCategory, category, log.FieldError, err)
			InternalServerError("failed to compute budget status").Write(w)
			return
		}
		NewResponse().JSON(toBudgetStatusResponse(*status)).Write(w)
		return
	}

	statuses, err := s.deps.Budgets.StatusAll(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budget status failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to compute budget status").Write(w)
		return
	}

	out := make([]budgetStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toBudgetStatusResponse(st))
	}
	NewResponse().JSON(out).Write(w)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"budgetblu/internal/catalog"
	"budgetblu/internal/core"
	"budgetblu/internal/currency"
	"budgetblu/internal/ledger"
	"budgetblu/internal/log"
)

type transactionRequest struct {
	Type        string `json:"type"`
	Category    string `json:"category"`
	Amount      string `json:"amount"` // decimal string, dot or comma separator
	Date        string `json:"date"`   // YYYY-MM-DD
	Description string `json:"description"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Category    string    `json:"category"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Category:    tx.Category,
		Amount:      tx.Amount.Float64(),
		Currency:    currency.BaseCurrency,
		Date:        tx.Date,
		Description: tx.Description,
	}
}

// parseTransactionInput validates the request payload into a ledger
// input. Amounts are positive decimals in the base currency; the
// category falls back to the catalog default when unknown.
func (s *Server) parseTransactionInput(req transactionRequest) (ledger.Input, error) {
	txType := core.TransactionType(req.Type)
	if !txType.Valid() {
		return ledger.Input{}, core.ErrInvalidType
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return ledger.Input{}, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return ledger.Input{}, core.ErrZeroDate
	}

	return ledger.Input{
		Type:        txType,
		Category:    s.deps.Catalog.Normalize(txType, sanitizeInput(req.Category)),
		Amount:      core.Money{Cents: cents},
		Date:        date,
		Description: sanitizeInput(req.Description),
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	in, err := s.parseTransactionInput(req)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	user := currentUser(r)
	tx, err := s.deps.Ledger.Add(r.Context(), user.ID, in)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction create failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to save transaction").Write(w)
		return
	}

	NewResponse().
		Status(http.StatusCreated).
		TriggerTransactionCreated(tx.ID).
		JSON(toTransactionResponse(*tx)).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	in, err := s.parseTransactionInput(req)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	user := currentUser(r)
	id := r.PathValue("id")
	tx, err := s.deps.Ledger.Update(r.Context(), user.ID, id, in)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("transaction not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Transaction update failed",
			log.FieldTxID, id, log.FieldError, err)
		InternalServerError("failed to update transaction").Write(w)
		return
	}

	NewResponse().
		TriggerTransactionUpdated(tx.ID).
		JSON(toTransactionResponse(*tx)).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id := r.PathValue("id")
	if err := s.deps.Ledger.Remove(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			NotFoundError("transaction not found").Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Transaction delete failed",
			log.FieldTxID, id, log.FieldError, err)
		InternalServerError("failed to delete transaction").Write(w)
		return
	}

	NewResponse().
		Status(http.StatusNoContent).
		TriggerTransactionDeleted(id).
		Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var f core.TxFilter
	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		t := core.TransactionType(v)
		if !t.Valid() {
			BadRequestError("invalid type filter").Write(w)
			return
		}
		f.Type = t
	}
	f.Category = q.Get("category")
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequestError("invalid from date").Write(w)
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			BadRequestError("invalid to date").Write(w)
			return
		}
		f.To = t
	}

	txs, err := s.deps.Ledger.List(r.Context(), user.ID, f)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Transaction list failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to list transactions").Write(w)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	NewResponse().JSON(out).Write(w)
}

// handleSummary returns income, expense, and balance totals, converted
// to the user's display currency.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	totals, err := s.deps.Ledger.TotalsFor(r.Context(), user.ID, time.Time{}, time.Time{})
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Summary failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to compute summary").Write(w)
		return
	}

	display, err := s.deps.Selector.Current(r.Context(), user.ID)
	if err != nil {
		display = currency.DefaultCurrency
	}

	income, errI := s.deps.Converter.Convert(totals.Income.Float64(), currency.BaseCurrency, display)
	expense, errE := s.deps.Converter.Convert(totals.Expense.Float64(), currency.BaseCurrency, display)
	balance, errB := s.deps.Converter.Convert(totals.Balance().Float64(), currency.BaseCurrency, display)
	if errI != nil || errE != nil || errB != nil {
		// fall back to base currency amounts rather than failing the page
		display = currency.BaseCurrency
		income, expense, balance = totals.Income.Float64(), totals.Expense.Float64(), totals.Balance().Float64()
	}

	NewResponse().JSON(map[string]interface{}{
		"income":   income,
		"expenses": expense,
		"balance":  balance,
		"currency": display,
		"symbol":   currency.Symbol(display),
	}).Write(w)
}

type categoryResponse struct {
	Key           string  `json:"key"`
	Label         string  `json:"label"`
	Icon          string  `json:"icon"`
	Color         string  `json:"color"`
	DefaultBudget float64 `json:"default_budget,omitempty"`
}

func toCategoryResponses(entries []catalog.Entry) []categoryResponse {
	out := make([]categoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, categoryResponse{
			Key:           e.Key,
			Label:         e.Label,
			Icon:          e.Icon,
			Color:         e.Color,
			DefaultBudget: e.DefaultBudget.Float64(),
		})
	}
	return out
}

// handleCategories lists the known categories with their display
// metadata, optionally filtered by transaction type.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch t := r.URL.Query().Get("type"); t {
	case "":
		NewResponse().JSON(map[string][]categoryResponse{
			"income":  toCategoryResponses(s.deps.Catalog.Entries(core.Income)),
			"expense": toCategoryResponses(s.deps.Catalog.Entries(core.Expense)),
		}).Write(w)
	case string(core.Income), string(core.Expense):
		NewResponse().JSON(toCategoryResponses(s.deps.Catalog.Entries(core.TransactionType(t)))).Write(w)
	default:
		BadRequestError("invalid type filter").Write(w)
	}
}

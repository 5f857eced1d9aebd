package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"budgetblu/internal/currency"
	"budgetblu/internal/log"
)

func (s *Server) handleListCurrencies(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Code   string `json:"code"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
		Flag   string `json:"flag"`
	}
	codes := currency.Codes()
	out := make([]entry, 0, len(codes))
	for _, code := range codes {
		info, _ := currency.Lookup(code)
		out = append(out, entry{Code: info.Code, Name: info.Name, Symbol: info.Symbol, Flag: info.Flag})
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCurrentCurrency(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	code, err := s.deps.Selector.Current(r.Context(), user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Currency lookup failed",
			log.FieldUserID, user.ID, log.FieldError, err)
		InternalServerError("failed to read currency").Write(w)
		return
	}
	info, _ := currency.Lookup(code)
	NewResponse().JSON(map[string]string{
		"currency": code,
		"name":     info.Name,
		"symbol":   info.Symbol,
	}).Write(w)
}

func (s *Server) handleChangeCurrency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}

	user := currentUser(r)
	if err := s.deps.Selector.Change(r.Context(), user.ID, req.Currency); err != nil {
		if errors.Is(err, currency.ErrUnknownCurrency) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
		s.logger.ErrorContext(r.Context(), "Currency change failed",
			log.FieldUserID, user.ID, log.FieldCurrency, req.Currency, log.FieldError, err)
		InternalServerError("failed to change currency").Write(w)
		return
	}

	info, _ := currency.Lookup(req.Currency)
	NewResponse().
		TriggerCurrencyChanged(req.Currency).
		JSON(map[string]string{
			"currency": req.Currency,
			"name":     info.Name,
			"symbol":   info.Symbol,
		}).
		Write(w)
}

// handleConvert converts an amount between two supported currencies,
// refreshing the rates table first when it has gone stale.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil {
		BadRequestError("invalid amount").Write(w)
		return
	}
	from, to := q.Get("from"), q.Get("to")
	if !currency.Supported(from) || !currency.Supported(to) {
		UnprocessableEntityError("unknown currency").Write(w)
		return
	}

	if err := s.deps.Converter.RefreshIfStale(r.Context()); err != nil {
		// stale rates still convert; log and carry on
		s.logger.WarnContext(r.Context(), "Rates refresh failed", log.FieldError, err)
	}

	converted, err := s.deps.Converter.Convert(amount, from, to)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	NewResponse().JSON(map[string]interface{}{
		"amount":    amount,
		"from":      from,
		"to":        to,
		"converted": converted,
	}).Write(w)
}

func (s *Server) handleRefreshRates(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Converter.Refresh(r.Context()); err != nil {
		switch {
		case errors.Is(err, currency.ErrRateLimited):
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, err.Error()).Write(w)
		case errors.Is(err, currency.ErrProviderAuth):
			ErrorResponse(http.StatusBadGateway, err.Error()).Write(w)
		default:
			s.logger.ErrorContext(r.Context(), "Rates refresh failed", log.FieldError, err)
			ErrorResponse(http.StatusBadGateway, "failed to refresh exchange rates").Write(w)
		}
		return
	}

	NewResponse().
		TriggerRatesRefreshed().
		JSON(map[string]interface{}{
			"refreshed_at": s.deps.Converter.LastRefresh(),
		}).
		Write(w)
}

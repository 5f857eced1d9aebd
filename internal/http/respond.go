// Package http provides the JSON API server and its handlers.
//
// This file implements the builder for API responses. It centralizes
// HX-Trigger header construction so mutation endpoints announce the same
// event names the in-process bus uses, plus consistent JSON error bodies.
package http

import (
	"encoding/json"
	"net/http"

	"budgetblu/internal/events"
)

// ResponseBuilder provides a fluent API for building API responses.
type ResponseBuilder struct {
	triggers   map[string]interface{}
	statusCode int
	payload    interface{}
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		triggers:   make(map[string]interface{}),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named trigger with optional data to the HX-Trigger header.
func (b *ResponseBuilder) Trigger(name events.Name, data interface{}) *ResponseBuilder {
	b.triggers[string(name)] = data
	return b
}

// TriggerTransactionCreated adds the transaction:created trigger.
func (b *ResponseBuilder) TriggerTransactionCreated(id string) *ResponseBuilder {
	return b.Trigger(events.TransactionCreated, map[string]string{"id": id})
}

// TriggerTransactionUpdated adds the transaction:updated trigger.
func (b *ResponseBuilder) TriggerTransactionUpdated(id string) *ResponseBuilder {
	return b.Trigger(events.TransactionUpdated, map[string]string{"id": id})
}

// TriggerTransactionDeleted adds the transaction:deleted trigger.
func (b *ResponseBuilder) TriggerTransactionDeleted(id string) *ResponseBuilder {
	return b.Trigger(events.TransactionDeleted, map[string]string{"id": id})
}

// TriggerBudgetUpdated adds the budget:updated trigger with the category.
func (b *ResponseBuilder) TriggerBudgetUpdated(category string) *ResponseBuilder {
	return b.Trigger(events.BudgetUpdated, map[string]string{"category": category})
}

// TriggerCurrencyChanged adds the currency:changed trigger with the code.
func (b *ResponseBuilder) TriggerCurrencyChanged(code string) *ResponseBuilder {
	return b.Trigger(events.CurrencyChanged, map[string]string{"currency": code})
}

// TriggerRatesRefreshed adds the rates:refreshed trigger.
func (b *ResponseBuilder) TriggerRatesRefreshed() *ResponseBuilder {
	return b.Trigger(events.RatesRefreshed, struct{}{})
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the response payload, encoded on Write.
func (b *ResponseBuilder) JSON(payload interface{}) *ResponseBuilder {
	b.payload = payload
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	if b.payload != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if b.payload != nil {
		_ = json.NewEncoder(w).Encode(b.payload)
	}
}

type errorBody struct {
	Error  string   `json:"error"`
	Issues []string `json:"issues,omitempty"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(errorBody{Error: message})
}

// ValidationErrorResponse creates a 422 response listing every issue.
func ValidationErrorResponse(message string, issues []string) *ResponseBuilder {
	return NewResponse().
		Status(http.StatusUnprocessableEntity).
		JSON(errorBody{Error: message, Issues: issues})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnauthorizedError creates a 401 response with a redirect hint pointing
// the client at the login page, preserving the attempted path.
func UnauthorizedError(attemptedPath string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "authentication required").
		Header("X-Redirect-To", "/login?next="+attemptedPath)
}

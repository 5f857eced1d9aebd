package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budgetblu/internal/auth"
	"budgetblu/internal/budget"
	"budgetblu/internal/catalog"
	"budgetblu/internal/currency"
	"budgetblu/internal/events"
	"budgetblu/internal/ledger"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
	"budgetblu/internal/report"
	"budgetblu/internal/storage"
	"budgetblu/internal/tier"
)

// newTestServer wires the full stack over a throwaway SQLite file, with
// no broker and no external rates provider.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	sessions := auth.NewSessionManager(tier.NewMemoryStore(), repo, tier.NewSnapshots(64), logger)
	authSvc := auth.NewService(repo, sessions, logger)

	bus := events.NewBus()
	ledgerSvc := ledger.NewService(repo, bus, nil, logger)
	alerts := notify.NewCenter(logger)
	t.Cleanup(alerts.Close)
	budgets := budget.NewTracker(repo, ledgerSvc, bus, alerts, logger)
	budgets.Subscribe(bus)
	converter := currency.NewConverter("", repo, bus, logger)
	selector := currency.NewSelector(repo, bus)
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	return NewServer(":0", Deps{
		Auth:      authSvc,
		Sessions:  sessions,
		Users:     repo,
		Ledger:    ledgerSvc,
		Budgets:   budgets,
		Converter: converter,
		Selector:  selector,
		Catalog:   cat,
		Alerts:    alerts,
		Reports:   report.NewService(ledgerSvc, converter, cat),
		Bus:       bus,
		Logger:    logger,
	})
}

func do(t *testing.T, s *Server, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func signup(t *testing.T, s *Server, email string) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name":        "Test User",
		"email":            email,
		"password":         "Sturdy-Pass-7!",
		"confirm_password": "Sturdy-Pass-7!",
		"purpose":          "personal",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": email, "password": "Sturdy-Pass-7!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[map[string]any](t, rec)
	sessionID, _ := body["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("login returned no session: %v", body)
	}
	return sessionID
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		if rec := do(t, s, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodGet, "/api/auth/me", sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	me := decode[userResponse](t, rec)
	if me.Email != "ada@example.com" || me.FullName != "Test User" {
		t.Fatalf("unexpected profile %+v", me)
	}

	// Duplicate registration conflicts.
	rec = do(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "Test User", "email": "ada@example.com",
		"password": "Sturdy-Pass-7!", "confirm_password": "Sturdy-Pass-7!",
		"purpose": "personal",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", rec.Code)
	}

	// Wrong password is a vague 401.
	rec = do(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}

	// Logout invalidates the session.
	rec = do(t, s, http.MethodPost, "/api/auth/logout", sessionID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/auth/me", sessionID, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: expected 401, got %d", rec.Code)
	}
}

func TestLoginSetsCookie(t *testing.T) {
	s := newTestServer(t)
	signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ada@example.com", "password": "Sturdy-Pass-7!",
	})
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			found = c
		}
	}
	if found == nil || found.Value == "" {
		t.Fatal("login must set the session cookie")
	}
	if !found.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
}

func TestRegisterValidationIssues(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"full_name": "A", "email": "nope", "password": "abc",
		"confirm_password": "def", "purpose": "",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := decode[struct {
		Error  string   `json:"error"`
		Issues []string `json:"issues"`
	}](t, rec)
	if len(body.Issues) < 4 {
		t.Fatalf("expected every issue reported, got %v", body.Issues)
	}
}

func TestPasswordStrengthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/auth/password-strength", "", map[string]string{
		"password": "Sturdy-Pass-7!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if accepted, _ := body["accepted"].(bool); !accepted {
		t.Fatalf("strong password must be accepted, got %v", body)
	}
}

func TestUnauthenticatedRedirectHint(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/transactions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Redirect-To"); got != "/login?next=/api/transactions" {
		t.Fatalf("unexpected redirect hint %q", got)
	}

	rec = do(t, s, http.MethodGet, "/api/transactions", "bogus-session", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown session: expected 401, got %d", rec.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, map[string]string{
		"type": "expense", "category": "Food", "amount": "45.50",
		"date": "2026-08-10", "description": "groceries",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "transaction:created") {
		t.Fatalf("expected transaction:created trigger, got %q", trigger)
	}
	created := decode[transactionResponse](t, rec)
	if created.ID == "" || created.Amount != 45.5 || created.Currency != currency.BaseCurrency {
		t.Fatalf("unexpected create response %+v", created)
	}

	rec = do(t, s, http.MethodGet, "/api/transactions", sessionID, nil)
	list := decode[[]transactionResponse](t, rec)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", list)
	}

	rec = do(t, s, http.MethodPut, "/api/transactions/"+created.ID, sessionID, map[string]string{
		"type": "expense", "category": "Rent", "amount": "1200",
		"date": "2026-08-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[transactionResponse](t, rec)
	if updated.Category != "Rent" || updated.Amount != 1200 {
		t.Fatalf("unexpected update response %+v", updated)
	}

	rec = do(t, s, http.MethodDelete, "/api/transactions/"+created.ID, sessionID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "transaction:deleted") {
		t.Fatalf("expected transaction:deleted trigger, got %q", trigger)
	}

	rec = do(t, s, http.MethodDelete, "/api/transactions/"+created.ID, sessionID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestTransactionValidation(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	cases := []map[string]string{
		{"type": "transfer", "category": "Food", "amount": "10", "date": "2026-08-10"},
		{"type": "expense", "category": "Food", "amount": "-10", "date": "2026-08-10"},
		{"type": "expense", "category": "Food", "amount": "0", "date": "2026-08-10"},
		{"type": "expense", "category": "Food", "amount": "10", "date": "not-a-date"},
	}
	for i, body := range cases {
		rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("case %d: expected 422, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}

	// Unknown categories fall back rather than fail.
	rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, map[string]string{
		"type": "expense", "category": "Jetski", "amount": "10", "date": "2026-08-10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if created := decode[transactionResponse](t, rec); created.Category != catalog.Fallback {
		t.Fatalf("expected fallback category, got %q", created.Category)
	}
}

func TestTransactionFilters(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	seed := []map[string]string{
		{"type": "income", "category": "Salary", "amount": "5000", "date": "2026-08-01"},
		{"type": "expense", "category": "Food", "amount": "20", "date": "2026-08-05"},
		{"type": "expense", "category": "Rent", "amount": "1200", "date": "2026-08-10"},
	}
	for _, body := range seed {
		if rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}

	rec := do(t, s, http.MethodGet, "/api/transactions?type=expense", sessionID, nil)
	if got := decode[[]transactionResponse](t, rec); len(got) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(got))
	}

	rec = do(t, s, http.MethodGet, "/api/transactions?category=Food", sessionID, nil)
	if got := decode[[]transactionResponse](t, rec); len(got) != 1 || got[0].Category != "Food" {
		t.Fatalf("unexpected category filter %+v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/transactions?from=2026-08-05&to=2026-08-10", sessionID, nil)
	if got := decode[[]transactionResponse](t, rec); len(got) != 1 || got[0].Category != "Food" {
		t.Fatalf("unexpected range filter %+v", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/transactions?type=transfer", sessionID, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid filter: expected 400, got %d", rec.Code)
	}
}

func TestSummaryInDisplayCurrency(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	for _, body := range []map[string]string{
		{"type": "income", "category": "Salary", "amount": "100", "date": "2026-08-01"},
		{"type": "expense", "category": "Food", "amount": "40", "date": "2026-08-05"},
	} {
		if rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}

	// No preference stored: the default display currency applies, using
	// the embedded rates table.
	rec := do(t, s, http.MethodGet, "/api/summary", sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	summary := decode[map[string]any](t, rec)
	if summary["currency"] != currency.DefaultCurrency {
		t.Fatalf("expected %s summary, got %v", currency.DefaultCurrency, summary["currency"])
	}
	if summary["income"].(float64) != 153000 || summary["expenses"].(float64) != 61200 {
		t.Fatalf("unexpected converted totals %v", summary)
	}
	if summary["balance"].(float64) != 91800 {
		t.Fatalf("unexpected balance %v", summary["balance"])
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodGet, "/api/categories", sessionID, nil)
	both := decode[map[string][]categoryResponse](t, rec)
	if len(both["income"]) != 5 || len(both["expense"]) != 10 {
		t.Fatalf("unexpected catalog %v", both)
	}
	for _, e := range both["expense"] {
		if e.Key == "" || e.Label == "" || e.Icon == "" || e.Color == "" {
			t.Fatalf("incomplete category entry %+v", e)
		}
		if e.Label == "Food" && e.DefaultBudget != 500 {
			t.Fatalf("expected 500 default budget for Food, got %v", e.DefaultBudget)
		}
	}

	rec = do(t, s, http.MethodGet, "/api/categories?type=income", sessionID, nil)
	if got := decode[[]categoryResponse](t, rec); len(got) != 5 || got[0].Label != "Salary" {
		t.Fatalf("unexpected income list %v", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/categories?type=transfer", sessionID, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBudgetFlow(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodPost, "/api/budgets", sessionID, map[string]string{
		"category": "Food", "limit": "1000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("set budget: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "budget:updated") {
		t.Fatalf("expected budget:updated trigger, got %q", trigger)
	}

	// Spend 85% of the limit this month.
	date := time.Now().UTC().Format("2006-01-02")
	rec = do(t, s, http.MethodPost, "/api/transactions", sessionID, map[string]string{
		"type": "expense", "category": "Food", "amount": "850", "date": date,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("spend: expected 201, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/budgets/status?category=Food", sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	status := decode[budgetStatusResponse](t, rec)
	if status.State != string(budget.StateWarning) || status.Percentage != 85 {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Remaining != 150 {
		t.Fatalf("unexpected remaining %v", status.Remaining)
	}

	// The mutation already triggered a re-check, so a warning alert is
	// waiting.
	rec = do(t, s, http.MethodGet, "/api/alerts", sessionID, nil)
	alerts := decode[[]alertResponse](t, rec)
	if len(alerts) == 0 || alerts[0].Severity != "warning" {
		t.Fatalf("expected a warning alert, got %+v", alerts)
	}

	rec = do(t, s, http.MethodGet, "/api/budgets/status?category=Rent", sessionID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unset category: expected 404, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/budgets", sessionID, nil)
	if got := decode[[]budgetResponse](t, rec); len(got) != 1 || got[0].Limit != 1000 {
		t.Fatalf("unexpected budget list %+v", got)
	}
}

func TestCurrencyEndpoints(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	rec := do(t, s, http.MethodGet, "/api/currencies", "", nil)
	currencies := decode[[]map[string]string](t, rec)
	if len(currencies) != 13 {
		t.Fatalf("expected 13 currencies, got %d", len(currencies))
	}

	rec = do(t, s, http.MethodGet, "/api/currency", sessionID, nil)
	current := decode[map[string]string](t, rec)
	if current["currency"] != currency.DefaultCurrency {
		t.Fatalf("expected default currency, got %v", current)
	}

	rec = do(t, s, http.MethodPut, "/api/currency", sessionID, map[string]string{"currency": "EUR"})
	if rec.Code != http.StatusOK {
		t.Fatalf("change: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if trigger := rec.Header().Get("HX-Trigger"); !strings.Contains(trigger, "currency:changed") {
		t.Fatalf("expected currency:changed trigger, got %q", trigger)
	}
	rec = do(t, s, http.MethodGet, "/api/currency", sessionID, nil)
	if current = decode[map[string]string](t, rec); current["currency"] != "EUR" {
		t.Fatalf("change did not stick, got %v", current)
	}

	if rec := do(t, s, http.MethodPut, "/api/currency", sessionID, map[string]string{"currency": "BTC"}); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown currency: expected 422, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/currency/convert?amount=100&from=USD&to=EUR", sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("convert: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	converted := decode[map[string]any](t, rec)
	if converted["converted"].(float64) != 92 {
		t.Fatalf("unexpected conversion %v", converted)
	}

	if rec := do(t, s, http.MethodGet, "/api/currency/convert?amount=abc&from=USD&to=EUR", sessionID, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad amount: expected 400, got %d", rec.Code)
	}
}

func TestAlertEndpoints(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	// Push alerts through the center the way the tracker does.
	var userID string
	{
		rec := do(t, s, http.MethodGet, "/api/auth/me", sessionID, nil)
		userID = decode[userResponse](t, rec).ID
	}
	s.deps.Alerts.Push(userID, notify.SeverityError, "Budget exceeded", "Food is over")
	s.deps.Alerts.Push(userID, notify.SeverityInfo, "Saved", "")

	rec := do(t, s, http.MethodGet, "/api/alerts", sessionID, nil)
	alerts := decode[[]alertResponse](t, rec)
	if len(alerts) != 2 || !alerts[0].Persistent {
		t.Fatalf("unexpected alerts %+v", alerts)
	}

	for _, path := range []string{"/api/alerts/pause", "/api/alerts/resume"} {
		if rec := do(t, s, http.MethodPost, path, sessionID, nil); rec.Code != http.StatusNoContent {
			t.Fatalf("%s: expected 204, got %d", path, rec.Code)
		}
	}

	if rec := do(t, s, http.MethodDelete, "/api/alerts/"+alerts[0].ID, sessionID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss: expected 204, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/alerts", sessionID, nil)
	if got := decode[[]alertResponse](t, rec); len(got) != 1 {
		t.Fatalf("expected 1 alert left, got %d", len(got))
	}

	if rec := do(t, s, http.MethodDelete, "/api/alerts", sessionID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("dismiss all: expected 204, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/alerts", sessionID, nil)
	if got := decode[[]alertResponse](t, rec); len(got) != 0 {
		t.Fatalf("expected no alerts, got %d", len(got))
	}
}

func TestReportEndpoints(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	date := time.Now().UTC().Format("2006-01-02")
	for _, body := range []map[string]string{
		{"type": "expense", "category": "Food", "amount": "50", "date": date},
		{"type": "expense", "category": "Rent", "amount": "1200", "date": date},
		{"type": "income", "category": "Salary", "amount": "5000", "date": date},
	} {
		if rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}

	rec := do(t, s, http.MethodGet, "/api/reports/expenses-by-category?currency=USD", sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("category chart: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	chart := decode[report.Chart](t, rec)
	if chart.Type != "doughnut" || len(chart.Labels) != 2 || chart.Labels[0] != "Rent" {
		t.Fatalf("unexpected chart %+v", chart)
	}

	rec = do(t, s, http.MethodGet, "/api/reports/monthly-trends?currency=USD", sessionID, nil)
	trends := decode[report.Chart](t, rec)
	if trends.Type != "line" || len(trends.Labels) != report.TrendMonths {
		t.Fatalf("unexpected trends chart %+v", trends)
	}
	if got := trends.Datasets[0].Data[report.TrendMonths-1]; got != 1250 {
		t.Fatalf("expected current-month spend 1250, got %v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/reports/income-vs-expenses?currency=USD", sessionID, nil)
	bars := decode[report.Chart](t, rec)
	if bars.Type != "bar" || len(bars.Datasets) != 2 {
		t.Fatalf("unexpected bar chart %+v", bars)
	}

	if rec := do(t, s, http.MethodGet, "/api/reports/monthly-trends?currency=BTC", sessionID, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown currency: expected 422, got %d", rec.Code)
	}
}

func TestChartCacheInvalidation(t *testing.T) {
	s := newTestServer(t)
	sessionID := signup(t, s, "ada@example.com")

	date := time.Now().UTC().Format("2006-01-02")
	post := func(amount string) {
		rec := do(t, s, http.MethodPost, "/api/transactions", sessionID, map[string]string{
			"type": "expense", "category": "Food", "amount": amount, "date": date,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed: expected 201, got %d", rec.Code)
		}
	}
	post("50")

	rec := do(t, s, http.MethodGet, "/api/reports/expenses-by-category?currency=USD", sessionID, nil)
	first := decode[report.Chart](t, rec)

	// A new transaction invalidates the cached chart.
	post("25")
	rec = do(t, s, http.MethodGet, "/api/reports/expenses-by-category?currency=USD", sessionID, nil)
	second := decode[report.Chart](t, rec)
	if second.Datasets[0].Data[0] == first.Datasets[0].Data[0] {
		t.Fatalf("chart must reflect the new transaction, still %v", second.Datasets[0].Data)
	}
	if second.Datasets[0].Data[0] != 75 {
		t.Fatalf("expected 75, got %v", second.Datasets[0].Data[0])
	}
}

func TestRateLimitMutations(t *testing.T) {
	s := newTestServer(t)

	var lastCode int
	for i := 0; i < 70; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/password-strength",
			strings.NewReader(`{"password":"x"}`))
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		s.Server.Handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}
	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the burst, got %d", lastCode)
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/currencies", "", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing security headers, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("missing frame options, got %q", got)
	}
}

func TestUserIsolation(t *testing.T) {
	s := newTestServer(t)
	adaSession := signup(t, s, "ada@example.com")
	bobSession := signup(t, s, "grace@example.com")

	rec := do(t, s, http.MethodPost, "/api/transactions", adaSession, map[string]string{
		"type": "expense", "category": "Food", "amount": "10", "date": "2026-08-01",
	})
	created := decode[transactionResponse](t, rec)

	rec = do(t, s, http.MethodGet, "/api/transactions", bobSession, nil)
	if got := decode[[]transactionResponse](t, rec); len(got) != 0 {
		t.Fatalf("users must not see each other's entries, got %+v", got)
	}

	if rec := do(t, s, http.MethodDelete, "/api/transactions/"+created.ID, bobSession, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", rec.Code)
	}
}

package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"budgetblu/internal/auth"
	"budgetblu/internal/budget"
	"budgetblu/internal/cache"
	"budgetblu/internal/catalog"
	"budgetblu/internal/core"
	"budgetblu/internal/currency"
	"budgetblu/internal/events"
	"budgetblu/internal/ledger"
	"budgetblu/internal/log"
	"budgetblu/internal/notify"
	"budgetblu/internal/report"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "budgetblu_session"

type contextKey string

const (
	ctxKeyUser      contextKey = "user"
	ctxKeySessionID contextKey = "session_id"
)

// Deps collects everything the server needs.
type Deps struct {
	Auth      *auth.Service
	Sessions  *auth.SessionManager
	Activity  *auth.ActivityMonitor
	Users     auth.UserStore
	Ledger    *ledger.Service
	Budgets   *budget.Tracker
	Converter *currency.Converter
	Selector  *currency.Selector
	Catalog   *catalog.Catalog
	Alerts    *notify.Center
	Reports   *report.Service
	Bus       *events.Bus
	Logger    *log.Logger
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	rateLimiter *rateLimiter

	// chart responses are cached per user and display currency and
	// invalidated on every ledger mutation
	chartCache *cache.LRUCache[*report.Chart]

	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		deps:        deps,
		logger:      deps.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(),
		chartCache:  cache.NewLRUCache[*report.Chart](200, 5*time.Minute),
	}

	// Ledger mutations make cached charts stale.
	if deps.Bus != nil {
		invalidate := func(ev events.Event) { s.invalidateCharts(ev.UserID) }
		deps.Bus.Subscribe(events.TransactionCreated, invalidate)
		deps.Bus.Subscribe(events.TransactionUpdated, invalidate)
		deps.Bus.Subscribe(events.TransactionDeleted, invalidate)
		deps.Bus.Subscribe(events.CurrencyChanged, invalidate)
		deps.Bus.Subscribe(events.RatesRefreshed, func(events.Event) { s.invalidateCharts("") })
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.withMiddleware(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.withMiddleware(s.handleLogout))
	mux.HandleFunc("POST /api/auth/password-strength", s.withMiddleware(s.handlePasswordStrength))
	mux.HandleFunc("GET /api/auth/me", s.withMiddleware(s.requireAuth(s.handleMe)))

	mux.HandleFunc("GET /api/transactions", s.withMiddleware(s.requireAuth(s.handleListTransactions)))
	mux.HandleFunc("POST /api/transactions", s.withMiddleware(s.requireAuth(s.handleCreateTransaction)))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withMiddleware(s.requireAuth(s.handleUpdateTransaction)))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withMiddleware(s.requireAuth(s.handleDeleteTransaction)))
	mux.HandleFunc("GET /api/summary", s.withMiddleware(s.requireAuth(s.handleSummary)))
	mux.HandleFunc("GET /api/categories", s.withMiddleware(s.requireAuth(s.handleCategories)))

	mux.HandleFunc("GET /api/budgets", s.withMiddleware(s.requireAuth(s.handleListBudgets)))
	mux.HandleFunc("POST /api/budgets", s.withMiddleware(s.requireAuth(s.handleSetBudget)))
	mux.HandleFunc("GET /api/budgets/status", s.withMiddleware(s.requireAuth(s.handleBudgetStatus)))

	mux.HandleFunc("GET /api/currencies", s.withMiddleware(s.handleListCurrencies))
	mux.HandleFunc("GET /api/currency", s.withMiddleware(s.requireAuth(s.handleCurrentCurrency)))
	mux.HandleFunc("PUT /api/currency", s.withMiddleware(s.requireAuth(s.handleChangeCurrency)))
	mux.HandleFunc("GET /api/currency/convert", s.withMiddleware(s.requireAuth(s.handleConvert)))
	mux.HandleFunc("POST /api/currency/refresh", s.withMiddleware(s.requireAuth(s.handleRefreshRates)))

	mux.HandleFunc("GET /api/reports/expenses-by-category", s.withMiddleware(s.requireAuth(s.handleExpensesByCategory)))
	mux.HandleFunc("GET /api/reports/monthly-trends", s.withMiddleware(s.requireAuth(s.handleMonthlyTrends)))
	mux.HandleFunc("GET /api/reports/income-vs-expenses", s.withMiddleware(s.requireAuth(s.handleIncomeVsExpenses)))

	mux.HandleFunc("GET /api/alerts", s.withMiddleware(s.requireAuth(s.handleListAlerts)))
	mux.HandleFunc("DELETE /api/alerts", s.withMiddleware(s.requireAuth(s.handleDismissAllAlerts)))
	mux.HandleFunc("DELETE /api/alerts/{id}", s.withMiddleware(s.requireAuth(s.handleDismissAlert)))
	mux.HandleFunc("POST /api/alerts/pause", s.withMiddleware(s.requireAuth(s.handlePauseAlerts)))
	mux.HandleFunc("POST /api/alerts/resume", s.withMiddleware(s.requireAuth(s.handleResumeAlerts)))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), contextKey(log.FieldRequestID), requestID)
		r = r.WithContext(ctx)

		s.logger.InfoContext(ctx, "Request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutating requests.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.logger.InfoContext(ctx, "Request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// requireAuth resolves the session cookie to a user and injects it into
// the request context. Unauthenticated requests get 401 with a redirect
// hint. Authenticated requests also feed the idle-activity monitor.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := sessionIDFromRequest(r)
		if sessionID == "" {
			UnauthorizedError(r.URL.Path).Write(w)
			return
		}

		user, err := s.deps.Sessions.CurrentUser(r.Context(), sessionID, s.deps.Users)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Session resolution failed",
				log.FieldSessionID, sessionID, log.FieldError, err)
			InternalServerError("session lookup failed").Write(w)
			return
		}
		if user == nil {
			UnauthorizedError(r.URL.Path).Write(w)
			return
		}

		if s.deps.Activity != nil {
			s.deps.Activity.Touch(sessionID)
		}

		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		ctx = context.WithValue(ctx, ctxKeySessionID, sessionID)
		next(w, r.WithContext(ctx))
	}
}

// currentUser returns the authenticated user injected by requireAuth.
func currentUser(r *http.Request) *core.User {
	u, _ := r.Context().Value(ctxKeyUser).(*core.User)
	return u
}

func currentSessionID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeySessionID).(string)
	return id
}

func sessionIDFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	// Allow header-based sessions for non-browser clients.
	return r.Header.Get("X-Session-ID")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) chartCacheKey(userID, kind, currency string) string {
	return userID + "|" + kind + "|" + currency
}

// invalidateCharts drops cached charts for one user. An empty userID
// means rates changed for everyone; those entries just age out within
// the 5-minute TTL.
func (s *Server) invalidateCharts(userID string) {
	if userID == "" {
		return
	}
	for _, kind := range []string{"category", "trends", "income-expenses"} {
		for _, code := range currency.Codes() {
			s.chartCache.Delete(s.chartCacheKey(userID, kind, code))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

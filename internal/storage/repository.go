// Package storage implements the durable tier on SQLite: users, sessions,
// transactions, budgets, and the exchange-rate cache.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetblu/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

// CreateUser persists a new user. A unique-constraint violation on the
// email column maps to core.ErrDuplicateEmail so the write-time
// uniqueness invariant holds even when two registrations race.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, email, digest, purpose, created_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FullName, u.Email, u.Digest, u.Purpose, u.CreatedAt, boolToInt(u.Active))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, digest, purpose, created_at, last_login, active
		FROM users WHERE email = ?`, core.NormalizeEmail(email)))
}

func (r *SQLiteRepository) FindUserByID(ctx context.Context, id string) (*core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, digest, purpose, created_at, last_login, active
		FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var lastLogin sql.NullTime
	var active int
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Digest, &u.Purpose, &u.CreatedAt, &lastLogin, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if lastLogin.Valid {
		u.LastLogin = lastLogin.Time
	}
	u.Active = active != 0
	return &u, nil
}

func (r *SQLiteRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SelectedCurrency returns the user's display currency code.
func (r *SQLiteRepository) SelectedCurrency(ctx context.Context, userID string) (string, error) {
	var code string
	err := r.db.QueryRowContext(ctx, `SELECT currency FROM users WHERE id = ?`, userID).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select currency: %w", err)
	}
	return code, nil
}

// SetSelectedCurrency stores the user's display currency code.
func (r *SQLiteRepository) SetSelectedCurrency(ctx context.Context, userID, code string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET currency = ? WHERE id = ?`, code, userID)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// --- sessions (durable tier) ---

func (r *SQLiteRepository) PutSession(ctx context.Context, sess core.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, remember, issued_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET expires_at = excluded.expires_at`,
		sess.ID, sess.UserID, boolToInt(sess.Remember), sess.IssuedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var sess core.Session
	var remember int
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, remember, issued_at, expires_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &remember, &sess.IssuedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.Remember = remember != 0
	return &sess, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes durable sessions past their expiry.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- transactions ---

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, type, category, amount_cents, occurred_at, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, string(tx.Type), tx.Category, tx.Amount.Cents, tx.Date, tx.Description)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// UpdateTransaction replaces the record with the given ID, scoped to the
// owning user. Returns core.ErrNotFound when no row matched.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, category = ?, amount_cents = ?, occurred_at = ?, description = ?
		WHERE id = ? AND user_id = ?`,
		string(tx.Type), tx.Category, tx.Amount.Cents, tx.Date, tx.Description, tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, category, amount_cents, occurred_at, description
		FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	defer rows.Close()
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// ListTransactions returns the user's transactions matching the filter,
// newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, f core.TxFilter) ([]core.Transaction, error) {
	query := `
		SELECT id, user_id, type, category, amount_cents, occurred_at, description
		FROM transactions WHERE user_id = ?`
	args := []any{userID}

	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		query += ` AND occurred_at < ?`
		args = append(args, f.To)
	}
	query += ` ORDER BY occurred_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// SumByType totals amounts of one transaction type for the user within
// the optional [from, to) range.
func (r *SQLiteRepository) SumByType(ctx context.Context, userID string, t core.TransactionType, from, to time.Time) (core.Money, error) {
	query := `SELECT COALESCE(SUM(amount_cents), 0) FROM transactions WHERE user_id = ? AND type = ?`
	args := []any{userID, string(t)}
	if !from.IsZero() {
		query += ` AND occurred_at >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND occurred_at < ?`
		args = append(args, to)
	}

	var cents int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cents); err != nil {
		return core.Money{}, fmt.Errorf("sum by type: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// SpentByCategory totals expense amounts per category for the user within
// [from, to).
func (r *SQLiteRepository) SpentByCategory(ctx context.Context, userID string, from, to time.Time) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE user_id = ? AND type = 'expense' AND occurred_at >= ? AND occurred_at < ?
		GROUP BY category`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("spent by category: %w", err)
	}
	defer rows.Close()

	out := make(map[string]core.Money)
	for rows.Next() {
		var category string
		var cents int64
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out[category] = core.Money{Cents: cents}
	}
	return out, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		var tx core.Transaction
		var txType string
		if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &tx.Category, &tx.Amount.Cents, &tx.Date, &tx.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Type = core.TransactionType(txType)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// --- budgets ---

// UpsertBudget stores the entry, replacing any prior limit for the same
// (user, category, period).
func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.BudgetEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category, period, limit_cents, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, category, period) DO UPDATE SET
			limit_cents = excluded.limit_cents,
			created_at = excluded.created_at`,
		b.UserID, b.Category, b.Period, b.Limit.Cents, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, category, period string) (*core.BudgetEntry, error) {
	var b core.BudgetEntry
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, category, period, limit_cents, created_at
		FROM budgets WHERE user_id = ? AND category = ? AND period = ?`,
		userID, category, period).
		Scan(&b.UserID, &b.Category, &b.Period, &b.Limit.Cents, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return &b, nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.BudgetEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, category, period, limit_cents, created_at
		FROM budgets WHERE user_id = ? ORDER BY category`, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.BudgetEntry
	for rows.Next() {
		var b core.BudgetEntry
		if err := rows.Scan(&b.UserID, &b.Category, &b.Period, &b.Limit.Cents, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- exchange-rate cache ---

// SaveRates stores the serialized rates table for a base currency along
// with its freshness stamp.
func (r *SQLiteRepository) SaveRates(ctx context.Context, base, payload string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rates_cache (base, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(base) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		base, payload, at)
	if err != nil {
		return fmt.Errorf("save rates: %w", err)
	}
	return nil
}

// LoadRates returns the cached rates payload and its timestamp, or
// core.ErrNotFound when no cache exists for the base.
func (r *SQLiteRepository) LoadRates(ctx context.Context, base string) (string, time.Time, error) {
	var payload string
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT payload, updated_at FROM rates_cache WHERE base = ?`, base).Scan(&payload, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, core.ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load rates: %w", err)
	}
	return payload, at, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

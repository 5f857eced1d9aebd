package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/log"
	"budgetblu/internal/tier"
)

// Session durations. Remembered sessions go to the durable tier and live
// 30 days; plain sessions stay in the ephemeral tier for 24 hours.
// Extend pushes expiry 24 hours past now regardless of the remember flag.
const (
	SessionTTL  = 24 * time.Hour
	RememberTTL = 30 * 24 * time.Hour
	ExtendBy    = 24 * time.Hour
)

// SessionStore is one storage tier for session records.
type SessionStore interface {
	PutSession(ctx context.Context, sess core.Session) error
	GetSession(ctx context.Context, id string) (*core.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// SessionManager owns the session lifecycle across two tiers: an
// ephemeral in-memory store and a durable store. Reads always check the
// ephemeral tier first and purge expired records on the spot.
type SessionManager struct {
	ephemeral SessionStore
	durable   SessionStore
	snapshots *tier.Snapshots
	logger    *log.Logger
	now       func() time.Time
}

func NewSessionManager(ephemeral, durable SessionStore, snapshots *tier.Snapshots, logger *log.Logger) *SessionManager {
	return &SessionManager{
		ephemeral: ephemeral,
		durable:   durable,
		snapshots: snapshots,
		logger:    logger.WithComponent(log.ComponentSession),
		now:       time.Now,
	}
}

// Create issues a session for the user. Remembered sessions are persisted
// durably; either way the sanitized user snapshot lands in the ephemeral
// tier for fast reads.
func (m *SessionManager) Create(ctx context.Context, user core.User, remember bool) (core.Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return core.Session{}, fmt.Errorf("generate session id: %w", err)
	}

	now := m.now()
	ttl := SessionTTL
	if remember {
		ttl = RememberTTL
	}
	sess := core.Session{
		ID:        id,
		UserID:    user.ID,
		Remember:  remember,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	store := m.ephemeral
	if remember {
		store = m.durable
	}
	if err := store.PutSession(ctx, sess); err != nil {
		return core.Session{}, fmt.Errorf("store session: %w", err)
	}
	m.snapshots.Put(sess.ID, user)

	return sess, nil
}

// Current resolves a session ID to a live session. The expiry check runs
// on every read: a record found expired triggers the logout side effect
// and resolves to nil.
func (m *SessionManager) Current(ctx context.Context, id string) (*core.Session, error) {
	if id == "" {
		return nil, nil
	}

	sess, err := m.ephemeral.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read ephemeral tier: %w", err)
	}
	if sess == nil {
		sess, err = m.durable.GetSession(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read durable tier: %w", err)
		}
	}
	if sess == nil {
		return nil, nil
	}

	if sess.Expired(m.now()) {
		if err := m.Logout(ctx, id); err != nil {
			m.logger.WarnContext(ctx, "Failed to purge expired session",
				log.FieldSessionID, id, log.FieldError, err)
		}
		return nil, nil
	}

	return sess, nil
}

// IsAuthenticated reports whether the session ID resolves to a live
// session.
func (m *SessionManager) IsAuthenticated(ctx context.Context, id string) bool {
	sess, err := m.Current(ctx, id)
	return err == nil && sess != nil
}

// CurrentUser returns the sanitized user snapshot for a live session,
// falling back to the durable user record when the snapshot has aged out.
func (m *SessionManager) CurrentUser(ctx context.Context, id string, users UserStore) (*core.User, error) {
	sess, err := m.Current(ctx, id)
	if err != nil || sess == nil {
		return nil, err
	}

	if u, ok := m.snapshots.Get(id); ok {
		return &u, nil
	}
	u, err := users.FindUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u == nil {
		return nil, nil
	}
	sanitized := u.Sanitized()
	m.snapshots.Put(id, sanitized)
	return &sanitized, nil
}

// Extend pushes the session's expiry 24 hours past now, rewriting
// whichever tier currently holds it. No-op when the session is absent or
// already expired.
func (m *SessionManager) Extend(ctx context.Context, id string) error {
	sess, err := m.Current(ctx, id)
	if err != nil || sess == nil {
		return err
	}

	sess.ExpiresAt = m.now().Add(ExtendBy)

	store := m.ephemeral
	if sess.Remember {
		store = m.durable
	}
	if err := store.PutSession(ctx, *sess); err != nil {
		return fmt.Errorf("rewrite session: %w", err)
	}

	m.logger.Debug("Session extended", log.FieldSessionID, id)
	return nil
}

// Logout clears the session and the user snapshot from both tiers.
// Idempotent: safe to call for an unknown or already-cleared ID.
func (m *SessionManager) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.ephemeral.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("clear ephemeral tier: %w", err)
	}
	if err := m.durable.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("clear durable tier: %w", err)
	}
	m.snapshots.Delete(id)
	return nil
}

// generateSessionID returns 32 cryptographically random bytes hex-encoded.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

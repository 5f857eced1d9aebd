// Package auth provides credential handling and the session lifecycle:
// registration, login, the two-tier session store, and idle-driven
// session extension.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"budgetblu/internal/core"
	"budgetblu/internal/log"
)

// UserStore is the durable credential store.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	FindUserByEmail(ctx context.Context, email string) (*core.User, error)
	FindUserByID(ctx context.Context, id string) (*core.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// ValidationError collects every unmet registration criterion so forms
// can show them all at once.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Issues, ", ")
}

// RegisterInput is the raw signup form payload.
type RegisterInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
	Purpose         string
}

// Service implements registration and login on top of a UserStore and the
// session manager.
type Service struct {
	users    UserStore
	sessions *SessionManager
	logger   *log.Logger
	now      func() time.Time
}

func NewService(users UserStore, sessions *SessionManager, logger *log.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		logger:   logger.WithComponent(log.ComponentAuth),
		now:      time.Now,
	}
}

// Register validates the signup payload and persists a new user. Returns
// the new user ID, or a *ValidationError / core.ErrDuplicateEmail.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if err := validateRegistration(in); err != nil {
		return "", err
	}

	email := core.NormalizeEmail(in.Email)
	existing, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return "", core.ErrDuplicateEmail
	}

	user := core.User{
		ID:        uuid.New().String(),
		FullName:  strings.TrimSpace(in.FullName),
		Email:     email,
		Digest:    HashPassword(in.Password),
		Purpose:   in.Purpose,
		CreatedAt: s.now(),
		Active:    true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		log.FieldUserID, user.ID,
		log.FieldEmail, user.Email)

	return user.ID, nil
}

// Login verifies credentials and issues a session. The error is always
// core.ErrInvalidCredentials for a missing user, an inactive account, or
// a digest mismatch, so callers cannot enumerate accounts.
func (s *Service) Login(ctx context.Context, email, password string, remember bool) (core.User, core.Session, error) {
	if email == "" || password == "" {
		return core.User{}, core.Session{}, core.ErrInvalidCredentials
	}

	user, err := s.users.FindUserByEmail(ctx, core.NormalizeEmail(email))
	if err != nil {
		return core.User{}, core.Session{}, fmt.Errorf("lookup email: %w", err)
	}
	if user == nil || !user.Active || user.Digest != HashPassword(password) {
		return core.User{}, core.Session{}, core.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return core.User{}, core.Session{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = now

	session, err := s.sessions.Create(ctx, *user, remember)
	if err != nil {
		return core.User{}, core.Session{}, fmt.Errorf("create session: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged in",
		log.FieldUserID, user.ID,
		log.FieldSessionID, session.ID,
		"remember", remember)

	return user.Sanitized(), session, nil
}

// FindByEmail performs a case-insensitive lookup. Returns nil when absent.
func (s *Service) FindByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.users.FindUserByEmail(ctx, core.NormalizeEmail(email))
}

func validateRegistration(in RegisterInput) error {
	var issues []string

	if len(strings.TrimSpace(in.FullName)) < 2 {
		issues = append(issues, "full name must be at least 2 characters")
	}
	if !core.ValidEmail(strings.TrimSpace(in.Email)) {
		issues = append(issues, "please enter a valid email address")
	}
	if strength := core.ScorePassword(in.Password); strength.Score < core.MinRegistrationScore {
		issues = append(issues, "password too weak, add: "+strings.Join(strength.Feedback, ", "))
	}
	if in.Password != in.ConfirmPassword {
		issues = append(issues, "passwords do not match")
	}
	if strings.TrimSpace(in.Purpose) == "" {
		issues = append(issues, "please select your main purpose")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

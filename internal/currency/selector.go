package currency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/events"
)

// PreferenceStore persists each user's display currency.
type PreferenceStore interface {
	SelectedCurrency(ctx context.Context, userID string) (string, error)
	SetSelectedCurrency(ctx context.Context, userID, code string) error
}

// Selector manages per-user display currency choices.
type Selector struct {
	store PreferenceStore
	bus   *events.Bus
	now   func() time.Time
}

func NewSelector(store PreferenceStore, bus *events.Bus) *Selector {
	return &Selector{store: store, bus: bus, now: time.Now}
}

// Current returns the user's selected currency, falling back to
// DefaultCurrency when none is stored.
func (s *Selector) Current(ctx context.Context, userID string) (string, error) {
	code, err := s.store.SelectedCurrency(ctx, userID)
	if errors.Is(err, core.ErrNotFound) || code == "" {
		return DefaultCurrency, nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}

// Change stores a new display currency for the user and publishes
// currency:changed. Selecting the current currency is a no-op.
func (s *Selector) Change(ctx context.Context, userID, code string) error {
	if !Supported(code) {
		return fmt.Errorf("%w: %s", ErrUnknownCurrency, code)
	}
	current, err := s.Current(ctx, userID)
	if err != nil {
		return err
	}
	if current == code {
		return nil
	}
	if err := s.store.SetSelectedCurrency(ctx, userID, code); err != nil {
		return fmt.Errorf("change currency: %w", err)
	}
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Name:     events.CurrencyChanged,
			UserID:   userID,
			Currency: code,
			At:       s.now(),
		})
	}
	return nil
}

// Package ledger owns the transaction history: recording, editing, and
// summarizing income and expense entries per user.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budgetblu/internal/core"
	"budgetblu/internal/events"
	"budgetblu/internal/log"

	"github.com/google/uuid"
)

// Store is the persistence surface the ledger needs.
type Store interface {
	InsertTransaction(ctx context.Context, tx core.Transaction) error
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	GetTransaction(ctx context.Context, userID, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context, userID string, f core.TxFilter) ([]core.Transaction, error)
	SumByType(ctx context.Context, userID string, t core.TransactionType, from, to time.Time) (core.Money, error)
	SpentByCategory(ctx context.Context, userID string, from, to time.Time) (map[string]core.Money, error)
}

// Publisher forwards committed mutations to the message broker. A nil
// publisher disables forwarding.
type Publisher interface {
	PublishMutation(ctx context.Context, m Mutation) error
}

// Mutation describes a committed ledger change for downstream consumers.
type Mutation struct {
	Op          string    `json:"op"` // "create", "update", "delete"
	TxID        string    `json:"tx_id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type,omitempty"`
	Category    string    `json:"category,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	OccurredAt  time.Time `json:"occurred_at,omitempty"`
	At          time.Time `json:"at"`
}

// Totals is an income/expense/balance summary in cents.
type Totals struct {
	Income  core.Money
	Expense core.Money
}

func (t Totals) Balance() core.Money {
	return t.Income.Sub(t.Expense)
}

// Input carries the fields for adding or updating a transaction.
type Input struct {
	Type        core.TransactionType
	Category    string
	Amount      core.Money
	Date        time.Time
	Description string
}

type Service struct {
	store     Store
	bus       *events.Bus
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, bus *events.Bus, publisher Publisher, logger *log.Logger) *Service {
	return &Service{
		store:     store,
		bus:       bus,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// userLock serializes read-modify-write sequences for one user so two
// concurrent mutations cannot interleave their persistence and events.
func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Add records a new transaction for the user. The entry is validated,
// persisted, and only then announced on the event bus and broker.
func (s *Service) Add(ctx context.Context, userID string, in Input) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}

	tx := core.Transaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        in.Type,
		Category:    in.Category,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: in.Description,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.InsertTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("add transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction recorded",
		log.FieldTxID, tx.ID,
		log.FieldUserID, userID,
		log.FieldTxType, string(tx.Type),
		log.FieldCategory, tx.Category,
		log.FieldAmountCents, tx.Amount.Cents)

	s.announce(ctx, events.TransactionCreated, "create", tx)
	return &tx, nil
}

// Update replaces an existing transaction owned by the user.
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}

	tx := core.Transaction{
		ID:          id,
		UserID:      userID,
		Type:        in.Type,
		Category:    in.Category,
		Amount:      in.Amount,
		Date:        in.Date,
		Description: in.Description,
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction updated",
		log.FieldTxID, tx.ID, log.FieldUserID, userID)

	s.announce(ctx, events.TransactionUpdated, "update", tx)
	return &tx, nil
}

// Remove deletes a transaction owned by the user.
func (s *Service) Remove(ctx context.Context, userID, id string) error {
	if userID == "" {
		return core.ErrUnauthenticated
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}
	if existing == nil {
		return core.ErrNotFound
	}

	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("remove transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction removed",
		log.FieldTxID, id, log.FieldUserID, userID)

	s.announce(ctx, events.TransactionDeleted, "delete", *existing)
	return nil
}

// Get returns one transaction owned by the user, or core.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, id string) (*core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	tx, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, core.ErrNotFound
	}
	return tx, nil
}

// List returns the user's transactions, newest first.
func (s *Service) List(ctx context.Context, userID string, f core.TxFilter) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	return s.store.ListTransactions(ctx, userID, f)
}

// ListByDateRange returns transactions with dates in [from, to).
func (s *Service) ListByDateRange(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	return s.List(ctx, userID, core.TxFilter{From: from, To: to})
}

// TotalsFor computes income and expense sums within the optional range.
func (s *Service) TotalsFor(ctx context.Context, userID string, from, to time.Time) (Totals, error) {
	if userID == "" {
		return Totals{}, core.ErrUnauthenticated
	}
	income, err := s.store.SumByType(ctx, userID, core.Income, from, to)
	if err != nil {
		return Totals{}, fmt.Errorf("sum income: %w", err)
	}
	expense, err := s.store.SumByType(ctx, userID, core.Expense, from, to)
	if err != nil {
		return Totals{}, fmt.Errorf("sum expense: %w", err)
	}
	return Totals{Income: income, Expense: expense}, nil
}

// SpentByCategory totals expense amounts per category within the window.
func (s *Service) SpentByCategory(ctx context.Context, userID string, w core.MonthWindow) (map[string]core.Money, error) {
	if userID == "" {
		return nil, core.ErrUnauthenticated
	}
	from, to := w.Bounds(time.UTC)
	return s.store.SpentByCategory(ctx, userID, from, to)
}

// announce runs after the mutation is durable: bus subscribers first,
// then the broker. A broker failure is logged but never unwinds the
// already-committed write.
func (s *Service) announce(ctx context.Context, name events.Name, op string, tx core.Transaction) {
	if s.bus != nil {
		s.bus.Publish(events.Event{
			Name:        name,
			UserID:      tx.UserID,
			Category:    tx.Category,
			TxType:      string(tx.Type),
			AmountCents: tx.Amount.Cents,
			At:          s.now(),
		})
	}
	if s.publisher == nil {
		return
	}
	m := Mutation{
		Op:          op,
		TxID:        tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		OccurredAt:  tx.Date,
		At:          s.now(),
	}
	if err := s.publisher.PublishMutation(ctx, m); err != nil {
		s.logger.WarnContext(ctx, "failed to publish mutation",
			log.FieldTxID, tx.ID, log.FieldError, err)
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quickaccounting/internal/amqp"
	"quickaccounting/internal/core"
)

// TransactionStore is the persistence the ledger needs.
type TransactionStore interface {
	Add(ctx context.Context, t core.NewTransaction) (string, error)
	Delete(ctx context.Context, id string) error
	QueryByPeriod(ctx context.Context, periodType core.PeriodType, period string) (core.Statistics, error)
}

// EventPublisher receives ledger change notifications.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, e amqp.TransactionEvent) error
}

// TransactionInput is an unvalidated add request.
type TransactionInput struct {
	Amount      float64
	Type        string
	Category    string
	Description string
	Date        *string // nil means today; a present value must be YYYY-MM-DD
}

// LedgerService validates requests and drives the store. Events are published
// after a successful write; a publish failure is logged and never fails the call.
type LedgerService struct {
	store     TransactionStore
	publisher EventPublisher
	clock     func() time.Time
}

type Option func(*LedgerService)

// WithClock replaces time.Now as the source of the default transaction date.
func WithClock(clock func() time.Time) Option {
	return func(s *LedgerService) { s.clock = clock }
}

// WithPublisher enables event publishing. A nil publisher leaves it disabled.
func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func NewLedgerService(store TransactionStore, opts ...Option) *LedgerService {
	s := &LedgerService{
		store: store,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddTransaction validates in and stores it, returning the stored record with
// its new ID and resolved date.
func (s *LedgerService) AddTransaction(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	typ := core.TransactionType(in.Type)
	if err := typ.ValidateCategory(in.Category); err != nil {
		return core.Transaction{}, err
	}

	date := s.clock().Format(core.DateLayout)
	if in.Date != nil {
		if _, err := core.ParseDate(*in.Date); err != nil {
			return core.Transaction{}, err
		}
		date = *in.Date
	}

	nt := core.NewTransaction{
		Amount:      in.Amount,
		Type:        typ,
		Category:    in.Category,
		Description: core.ComposeDescription(in.Category, in.Description),
		Date:        date,
	}

	id, err := s.store.Add(ctx, nt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	t := core.Transaction{
		ID:          id,
		Amount:      nt.Amount,
		Type:        nt.Type,
		Category:    nt.Category,
		Description: nt.Description,
		Date:        nt.Date,
	}
	s.publish(ctx, amqp.NewCreatedEvent(t, s.clock()))

	return t, nil
}

// DeleteTransaction removes the transaction with the given ID. core.ErrNotFound
// is returned for unknown IDs.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, amqp.NewDeletedEvent(id, s.clock()))
	return nil
}

// Statistics aggregates the transactions of one year, month or day.
func (s *LedgerService) Statistics(ctx context.Context, periodType, period string) (core.Statistics, error) {
	pt, err := core.ParsePeriodType(periodType)
	if err != nil {
		return core.Statistics{}, err
	}
	if err := pt.ValidatePeriod(period); err != nil {
		return core.Statistics{}, err
	}

	stats, err := s.store.QueryByPeriod(ctx, pt, period)
	if err != nil {
		return core.Statistics{}, fmt.Errorf("query %s %s: %w", pt, period, err)
	}
	return stats, nil
}

// Categories returns the accepted expense and income categories.
func (s *LedgerService) Categories() (expense, income []string) {
	return core.ExpenseCategories(), core.IncomeCategories()
}

func (s *LedgerService) publish(ctx context.Context, e amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", e.Event, "id", e.ID, "error", err)
	}
}

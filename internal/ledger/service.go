package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("ledger entry not found")
	ErrStaleBalance  = errors.New("ledger balance changed concurrently")
	ErrInvalidAmount = errors.New("exactly one of debit or credit must be positive")
)

// balanceRetries bounds the compare-and-swap retry loop on concurrent writes
// to the same customer's trail.
const balanceRetries = 3

// RepositoryPort defines data access methods for the ledger.
type RepositoryPort interface {
	// LatestEntry returns the most recent entry for a customer ordered by
	// (transaction_date, created_at, id) descending, or nil when none exist.
	LatestEntry(ctx context.Context, customerID int64) (*Entry, error)
	// InsertEntry appends an entry only when the customer's latest entry ID
	// still equals expectedPrevID (0 for an empty trail); otherwise it
	// returns ErrStaleBalance.
	InsertEntry(ctx context.Context, e Entry, expectedPrevID int64) (*Entry, error)
	SumEntries(ctx context.Context, customerID int64) (debit, credit float64, err error)
	ListEntries(ctx context.Context, customerID int64) ([]Entry, error)
	ListUnsyncedInvoices(ctx context.Context) ([]InvoiceRef, error)
}

// Service maintains the append-only customer ledger with running balances.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	clock  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the time source, primarily for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// CreateEntry appends a movement dated today. The running balance is computed
// from the latest entry and inserted with an expected-previous-entry check;
// on a concurrent write the read-compute-insert sequence is retried.
func (s *Service) CreateEntry(ctx context.Context, input EntryInput) (*Entry, error) {
	if input.CustomerID == 0 {
		return nil, errors.New("customer ID required")
	}
	if (input.Debit <= 0) == (input.Credit <= 0) {
		return nil, ErrInvalidAmount
	}

	var lastErr error
	for attempt := 0; attempt < balanceRetries; attempt++ {
		prev, err := s.repo.LatestEntry(ctx, input.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("ledger: read latest entry: %w", err)
		}
		var prevID int64
		var balance float64
		if prev != nil {
			prevID = prev.ID
			balance = prev.RunningBalance
		}

		now := s.clock()
		entry := Entry{
			CustomerID:      input.CustomerID,
			TransactionType: input.TransactionType,
			Description:     input.Description,
			DebitAmount:     input.Debit,
			CreditAmount:    input.Credit,
			RunningBalance:  balance + input.Debit - input.Credit,
			ReferenceID:     input.ReferenceID,
			TransactionDate: now,
		}

		created, err := s.repo.InsertEntry(ctx, entry, prevID)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrStaleBalance) {
			return nil, fmt.Errorf("ledger: insert entry: %w", err)
		}
		lastErr = err
		s.logger.Warn("ledger balance conflict, retrying",
			slog.Int64("customer_id", input.CustomerID),
			slog.Int("attempt", attempt+1))
	}
	return nil, fmt.Errorf("ledger: insert entry after %d attempts: %w", balanceRetries, lastErr)
}

// LogDeliveryCharge appends a debit for a completed delivery.
func (s *Service) LogDeliveryCharge(ctx context.Context, customerID int64, amount float64, deliveryID int64, date time.Time) (*Entry, error) {
	return s.CreateEntry(ctx, EntryInput{
		CustomerID:      customerID,
		TransactionType: TypeDelivery,
		Description:     fmt.Sprintf("Delivery charge for %s", date.Format("2006-01-02")),
		Debit:           amount,
		ReferenceID:     &deliveryID,
	})
}

// LogPayment appends a credit for a received payment.
func (s *Service) LogPayment(ctx context.Context, customerID int64, amount float64, reference string) (*Entry, error) {
	return s.CreateEntry(ctx, EntryInput{
		CustomerID:      customerID,
		TransactionType: TypePayment,
		Description:     fmt.Sprintf("Payment received (%s)", reference),
		Credit:          amount,
	})
}

// LogInvoice appends a debit for a generated invoice.
func (s *Service) LogInvoice(ctx context.Context, customerID int64, amount float64, invoiceID int64, number string) (*Entry, error) {
	return s.CreateEntry(ctx, EntryInput{
		CustomerID:      customerID,
		TransactionType: TypeInvoice,
		Description:     fmt.Sprintf("Invoice %s generated", number),
		Debit:           amount,
		ReferenceID:     &invoiceID,
	})
}

// LogAdvancePayment appends a credit for an advance payment. Propagation to
// the customer's stored advance balance happens via a database trigger on
// insert, not here.
func (s *Service) LogAdvancePayment(ctx context.Context, customerID int64, amount float64) (*Entry, error) {
	return s.CreateEntry(ctx, EntryInput{
		CustomerID:      customerID,
		TransactionType: TypeAdvance,
		Description:     "Advance payment received",
		Credit:          amount,
	})
}

// CalculateBalance independently derives totals by summing all entries.
func (s *Service) CalculateBalance(ctx context.Context, customerID int64) (*BalanceSummary, error) {
	debit, credit, err := s.repo.SumEntries(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: sum entries: %w", err)
	}
	return &BalanceSummary{
		CustomerID:  customerID,
		TotalDebit:  debit,
		TotalCredit: credit,
		Balance:     debit - credit,
	}, nil
}

// Statement returns a customer's entries in trail order.
func (s *Service) Statement(ctx context.Context, customerID int64) ([]Entry, error) {
	return s.repo.ListEntries(ctx, customerID)
}

// SyncInvoices inserts a debit entry for every invoice lacking one, making
// the ledger eventually consistent with invoice state. Re-running is the
// documented repair for missed entries.
func (s *Service) SyncInvoices(ctx context.Context) (*SyncResult, error) {
	invoices, err := s.repo.ListUnsyncedInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: list unsynced invoices: %w", err)
	}

	result := &SyncResult{}
	for _, inv := range invoices {
		if _, err := s.LogInvoice(ctx, inv.CustomerID, inv.FinalAmount, inv.ID, inv.Number); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("invoice %s: %v", inv.Number, err))
			continue
		}
		result.Created++
	}

	s.logger.Info("invoice ledger sync finished",
		slog.Int("created", result.Created),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

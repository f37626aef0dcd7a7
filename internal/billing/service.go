package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dairyops/dairyops/internal/ledger"
	"github.com/dairyops/dairyops/internal/notify"
)

var (
	// ErrNotFound indicates the requested invoice does not exist.
	ErrNotFound = errors.New("invoice not found")
	// ErrDuplicateInvoice indicates an invoice already covers the period.
	ErrDuplicateInvoice = errors.New("invoice already exists for period")
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("payment amount must be positive")
)

// dueDays is the grace period granted after the billing period closes.
const dueDays = 15

// RepositoryPort defines data access methods for billing.
type RepositoryPort interface {
	ListActiveCustomers(ctx context.Context) ([]BillableCustomer, error)
	// InvoiceExists reports whether an invoice already covers the exact
	// period for the customer.
	InvoiceExists(ctx context.Context, customerID int64, periodStart, periodEnd time.Time) (bool, error)
	// DeliveredTotals returns the number of delivered deliveries in the
	// period and the sum of their item totals.
	DeliveredTotals(ctx context.Context, customerID int64, periodStart, periodEnd time.Time) (int, float64, error)
	// SubscriptionDayAmount returns the customer's active subscription value
	// for a single delivery day, using custom prices where set.
	SubscriptionDayAmount(ctx context.Context, customerID int64) (float64, error)
	// NextInvoiceSeq atomically increments and returns the per-month counter.
	NextInvoiceSeq(ctx context.Context, year int, month time.Month) (int, error)
	InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	// ListInvoices returns a customer's invoices, optionally narrowed to a
	// payment status.
	ListInvoices(ctx context.Context, customerID int64, status PaymentStatus) ([]Invoice, error)
	UpdatePayment(ctx context.Context, id int64, paidAmount float64, status PaymentStatus) (*Invoice, error)
}

// LedgerPort is the slice of the ledger engine billing needs.
type LedgerPort interface {
	LogPayment(ctx context.Context, customerID int64, amount float64, reference string) (*ledger.Entry, error)
}

// Service generates monthly invoices and records payments against them.
type Service struct {
	repo      RepositoryPort
	ledger    LedgerPort
	notifier  notify.Notifier
	logger    *slog.Logger
	upiHandle string
	clock     func() time.Time
}

func NewService(repo RepositoryPort, lp LedgerPort, notifier notify.Notifier, logger *slog.Logger, upiHandle string) *Service {
	return &Service{
		repo:      repo,
		ledger:    lp,
		notifier:  notifier,
		logger:    logger,
		upiHandle: upiHandle,
		clock:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// GenerateMonthly creates one invoice per active customer for the calendar
// month. Customers already invoiced for the period and customers with nothing
// delivered are skipped; individual failures are collected so one bad
// customer cannot abort the run.
func (s *Service) GenerateMonthly(ctx context.Context, year int, month time.Month) (*GenerationResult, error) {
	periodStart, periodEnd := PeriodBounds(year, month)
	dueDate := periodEnd.AddDate(0, 0, dueDays)

	customers, err := s.repo.ListActiveCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing: list customers: %w", err)
	}

	result := &GenerationResult{RunID: uuid.New(), Year: year, Month: month}
	for _, c := range customers {
		exists, err := s.repo.InvoiceExists(ctx, c.ID, periodStart, periodEnd)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %v", c.ID, err))
			continue
		}
		if exists {
			result.SkippedExisting++
			continue
		}

		total, err := s.periodTotal(ctx, c.ID, periodStart, periodEnd)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %v", c.ID, err))
			continue
		}
		if total <= 0 {
			result.SkippedZero++
			continue
		}

		seq, err := s.repo.NextInvoiceSeq(ctx, year, month)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %v", c.ID, err))
			continue
		}

		inv := Invoice{
			InvoiceNumber: InvoiceNumber(year, month, seq),
			CustomerID:    c.ID,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			DueDate:       dueDate,
			TotalAmount:   total,
			FinalAmount:   total,
			PaymentStatus: StatusPending,
			UPIHandle:     s.upiHandle,
		}
		if _, err := s.repo.InsertInvoice(ctx, inv); err != nil {
			if errors.Is(err, ErrDuplicateInvoice) {
				// Lost a race with a concurrent run for the same period.
				result.SkippedExisting++
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %v", c.ID, err))
			continue
		}
		result.Created++
	}

	s.logger.Info("invoice generation finished",
		slog.String("run_id", result.RunID.String()),
		slog.Int("year", year),
		slog.Int("month", int(month)),
		slog.Int("created", result.Created),
		slog.Int("skipped_existing", result.SkippedExisting),
		slog.Int("skipped_zero", result.SkippedZero),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

// periodTotal sums the customer's delivered item totals for the period. Some
// legacy deliveries carry no item rows; when deliveries were made but nothing
// summed, the active subscription value times the delivered count stands in.
func (s *Service) periodTotal(ctx context.Context, customerID int64, periodStart, periodEnd time.Time) (float64, error) {
	delivered, total, err := s.repo.DeliveredTotals(ctx, customerID, periodStart, periodEnd)
	if err != nil {
		return 0, fmt.Errorf("delivered totals: %w", err)
	}
	if total > 0 || delivered == 0 {
		return total, nil
	}
	dayAmount, err := s.repo.SubscriptionDayAmount(ctx, customerID)
	if err != nil {
		return 0, fmt.Errorf("subscription fallback: %w", err)
	}
	return dayAmount * float64(delivered), nil
}

// RecordPayment applies a payment to an invoice, mirrors it into the ledger
// and announces it. A ledger or notification failure does not roll back the
// invoice update; the ledger sync job reconciles later.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, amount float64, method string) (*Invoice, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	paid := inv.PaidAmount + amount
	status := StatusPartial
	if paid >= inv.FinalAmount {
		status = StatusPaid
	}
	updated, err := s.repo.UpdatePayment(ctx, invoiceID, paid, status)
	if err != nil {
		return nil, fmt.Errorf("billing: update payment: %w", err)
	}

	if _, err := s.ledger.LogPayment(ctx, inv.CustomerID, amount, inv.InvoiceNumber); err != nil {
		s.logger.Error("payment recorded but ledger entry failed",
			slog.Int64("invoice_id", invoiceID),
			slog.String("error", err.Error()))
	}
	s.notifier.Publish(ctx, notify.EventPaymentReceived, map[string]any{
		"invoice":  inv.InvoiceNumber,
		"customer": inv.CustomerID,
		"amount":   amount,
		"method":   method,
		"status":   string(status),
	})
	return updated, nil
}

// GetInvoice returns a single invoice by ID.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns a customer's invoices, newest period first.
func (s *Service) ListInvoices(ctx context.Context, customerID int64, status PaymentStatus) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, customerID, status)
}

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dairyops/dairyops/internal/customers"
	"github.com/dairyops/dairyops/internal/notify"
)

// Common errors.
var (
	ErrDuplicateDelivery = errors.New("delivery already exists for customer and date")
	ErrNotFound          = errors.New("delivery not found")
	ErrInvalidRange      = errors.New("range start must not be after range end")
)

// RepositoryPort defines data access methods for the scheduler.
type RepositoryPort interface {
	ListActiveCustomers(ctx context.Context) ([]customers.Customer, error)
	ListActiveCharges(ctx context.Context, customerID int64) ([]SubscriptionCharge, error)
	OnVacation(ctx context.Context, customerID int64, date time.Time) (bool, error)
	DeliveryExists(ctx context.Context, customerID int64, date time.Time) (bool, error)

	InsertDeliveryWithItems(ctx context.Context, d Delivery, items []DeliveryItem) (int64, error)
	InsertDeliveryItem(ctx context.Context, item DeliveryItem) error
	ListDeliveriesByDate(ctx context.Context, date time.Time, status DeliveryStatus) ([]Delivery, error)
	ListDeliveryItems(ctx context.Context, deliveryID int64) ([]DeliveryItem, error)
	MarkDelivered(ctx context.Context, deliveryID int64, at time.Time) error
}

// Service generates daily deliveries from customer subscriptions.
type Service struct {
	repo     RepositoryPort
	notifier notify.Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger,
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

// GenerateForDate materialises deliveries for every customer due on the
// target date. Ineligible customers are counted as skips; row-level failures
// are collected and never abort the run.
func (s *Service) GenerateForDate(ctx context.Context, date time.Time, autoMark bool) (*GenerationResult, error) {
	date = DateOnly(date)
	result := &GenerationResult{RunID: uuid.New(), Date: date}

	custs, err := s.repo.ListActiveCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list customers: %w", err)
	}

	for _, c := range custs {
		if err := s.generateForCustomer(ctx, c, date, autoMark, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("customer %d: %v", c.ID, err))
		}
	}

	s.logger.Info("delivery generation finished",
		slog.String("run_id", result.RunID.String()),
		slog.Time("date", date),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped()),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *Service) generateForCustomer(ctx context.Context, c customers.Customer, date time.Time, autoMark bool, result *GenerationResult) error {
	if !DueOn(c, date) {
		result.SkippedNotDue++
		return nil
	}

	onVacation, err := s.repo.OnVacation(ctx, c.ID, date)
	if err != nil {
		return fmt.Errorf("check vacation: %w", err)
	}
	if onVacation {
		result.SkippedVacation++
		return nil
	}

	exists, err := s.repo.DeliveryExists(ctx, c.ID, date)
	if err != nil {
		return fmt.Errorf("check existing delivery: %w", err)
	}
	if exists {
		result.SkippedDuplicate++
		return nil
	}

	charges, err := s.repo.ListActiveCharges(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list subscription lines: %w", err)
	}
	if len(charges) == 0 {
		result.SkippedNoLines++
		return nil
	}

	markDelivered := autoMark || (c.Schedule != nil && c.Schedule.AutoDeliver)
	delivery := Delivery{
		CustomerID:   c.ID,
		DeliveryDate: date,
		Status:       StatusPending,
	}
	if markDelivered {
		now := s.clock()
		delivery.Status = StatusDelivered
		delivery.DeliveryTime = &now
	}

	items := make([]DeliveryItem, 0, len(charges))
	for _, charge := range charges {
		unitPrice := charge.UnitPrice()
		items = append(items, DeliveryItem{
			ProductID:   charge.ProductID,
			Quantity:    charge.Quantity,
			UnitPrice:   unitPrice,
			TotalAmount: unitPrice * charge.Quantity,
		})
	}

	// One transaction for the delivery and its line items, so a failure
	// mid-insert never leaves an item-less delivery behind.
	if _, err := s.repo.InsertDeliveryWithItems(ctx, delivery, items); err != nil {
		if errors.Is(err, ErrDuplicateDelivery) {
			// Lost the race against a concurrent run; same as the
			// existence-check skip.
			result.SkippedDuplicate++
			return nil
		}
		return fmt.Errorf("insert delivery: %w", err)
	}

	result.Created++
	return nil
}

// CompletePending sweeps the date's pending deliveries, marks them delivered
// and backfills missing line items from current active subscriptions. Items
// are only backfilled when a delivery has none, so re-running never
// duplicates them.
func (s *Service) CompletePending(ctx context.Context, date time.Time) (*GenerationResult, error) {
	date = DateOnly(date)
	result := &GenerationResult{RunID: uuid.New(), Date: date}

	pending, err := s.repo.ListDeliveriesByDate(ctx, date, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list pending deliveries: %w", err)
	}

	for _, d := range pending {
		if err := s.completeDelivery(ctx, d); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delivery %d: %v", d.ID, err))
			continue
		}
		result.Completed++
	}

	s.logger.Info("pending delivery sweep finished",
		slog.String("run_id", result.RunID.String()),
		slog.Time("date", date),
		slog.Int("completed", result.Completed),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *Service) completeDelivery(ctx context.Context, d Delivery) error {
	items, err := s.repo.ListDeliveryItems(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	if len(items) == 0 {
		charges, err := s.repo.ListActiveCharges(ctx, d.CustomerID)
		if err != nil {
			return fmt.Errorf("list subscription lines: %w", err)
		}
		for _, charge := range charges {
			unitPrice := charge.UnitPrice()
			item := DeliveryItem{
				DeliveryID:  d.ID,
				ProductID:   charge.ProductID,
				Quantity:    charge.Quantity,
				UnitPrice:   unitPrice,
				TotalAmount: unitPrice * charge.Quantity,
			}
			if err := s.repo.InsertDeliveryItem(ctx, item); err != nil {
				return fmt.Errorf("backfill item for product %d: %w", charge.ProductID, err)
			}
		}
	}

	if err := s.repo.MarkDelivered(ctx, d.ID, s.clock()); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}

	s.notifier.Publish(ctx, notify.EventDeliveryCompleted, map[string]any{
		"delivery_id": d.ID,
		"customer_id": d.CustomerID,
		"date":        d.DeliveryDate.Format("2006-01-02"),
	})
	return nil
}

// GenerateRange applies single-date generation once per day across the
// inclusive range, in date order.
func (s *Service) GenerateRange(ctx context.Context, from, to time.Time, autoMark bool) (*GenerationResult, error) {
	from, to = DateOnly(from), DateOnly(to)
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	total := &GenerationResult{RunID: uuid.New(), Date: from}
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		day, err := s.GenerateForDate(ctx, date, autoMark)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("date %s: %v", date.Format("2006-01-02"), err))
			continue
		}
		total.merge(day)
	}
	return total, nil
}

// ListForDate returns the date's deliveries with their items.
func (s *Service) ListForDate(ctx context.Context, date time.Time) ([]Delivery, error) {
	date = DateOnly(date)
	deliveries, err := s.repo.ListDeliveriesByDate(ctx, date, "")
	if err != nil {
		return nil, err
	}
	for i := range deliveries {
		items, err := s.repo.ListDeliveryItems(ctx, deliveries[i].ID)
		if err != nil {
			return nil, err
		}
		deliveries[i].Items = items
	}
	return deliveries, nil
}

package customers

import (
	"context"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound                = errors.New("customer not found")
	ErrInvalidSubscriptionType = errors.New("invalid subscription type")
	ErrInvalidVacation         = errors.New("vacation start date must not be after end date")
	ErrScheduleRequired        = errors.New("custom subscription type requires an explicit schedule")
)

// RepositoryPort defines data access methods for customers.
type RepositoryPort interface {
	CreateCustomer(ctx context.Context, c Customer) (*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, id int64, updates map[string]interface{}) error
	ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error)

	AddSubscriptionLine(ctx context.Context, line SubscriptionLine) (*SubscriptionLine, error)
	ListSubscriptionLines(ctx context.Context, customerID int64, activeOnly bool) ([]SubscriptionLine, error)
	DeactivateSubscriptionLine(ctx context.Context, customerID, lineID int64) error

	AddVacation(ctx context.Context, v Vacation) (*Vacation, error)
	ListVacations(ctx context.Context, customerID int64) ([]Vacation, error)
	DeactivateVacation(ctx context.Context, customerID, vacationID int64) error
}

// Service handles customer business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateCustomer registers a new active customer.
func (s *Service) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*Customer, error) {
	if !req.SubscriptionType.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSubscriptionType, req.SubscriptionType)
	}
	if req.SubscriptionType == SubscriptionCustom && !req.Schedule.HasDays() {
		return nil, ErrScheduleRequired
	}
	return s.repo.CreateCustomer(ctx, Customer{
		Name:             req.Name,
		Phone:            req.Phone,
		Address:          req.Address,
		Active:           true,
		SubscriptionType: req.SubscriptionType,
		Schedule:         req.Schedule,
	})
}

// GetCustomer returns a customer by ID.
func (s *Service) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// UpdateCustomer applies a partial update.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, req UpdateCustomerRequest) error {
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if req.SubscriptionType != nil {
		if !req.SubscriptionType.IsValid() {
			return fmt.Errorf("%w: %s", ErrInvalidSubscriptionType, *req.SubscriptionType)
		}
		updates["subscription_type"] = string(*req.SubscriptionType)
	}
	if req.Schedule != nil {
		updates["schedule"] = req.Schedule
	}
	if len(updates) == 0 {
		return nil
	}
	return s.repo.UpdateCustomer(ctx, id, updates)
}

// ListCustomers returns customers, optionally restricted to active ones.
func (s *Service) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	return s.repo.ListCustomers(ctx, activeOnly)
}

// AddSubscription adds a standing order line for a customer.
func (s *Service) AddSubscription(ctx context.Context, customerID int64, req AddSubscriptionRequest) (*SubscriptionLine, error) {
	if req.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.AddSubscriptionLine(ctx, SubscriptionLine{
		CustomerID:  customerID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		CustomPrice: req.CustomPrice,
		Active:      true,
	})
}

// ListSubscriptions returns a customer's subscription lines.
func (s *Service) ListSubscriptions(ctx context.Context, customerID int64, activeOnly bool) ([]SubscriptionLine, error) {
	return s.repo.ListSubscriptionLines(ctx, customerID, activeOnly)
}

// CancelSubscription deactivates a subscription line.
func (s *Service) CancelSubscription(ctx context.Context, customerID, lineID int64) error {
	return s.repo.DeactivateSubscriptionLine(ctx, customerID, lineID)
}

// AddVacation suspends deliveries for a date range.
func (s *Service) AddVacation(ctx context.Context, customerID int64, req AddVacationRequest) (*Vacation, error) {
	if req.StartDate.After(req.EndDate) {
		return nil, ErrInvalidVacation
	}
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.AddVacation(ctx, Vacation{
		CustomerID: customerID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Active:     true,
	})
}

// ListVacations returns a customer's vacation windows.
func (s *Service) ListVacations(ctx context.Context, customerID int64) ([]Vacation, error) {
	return s.repo.ListVacations(ctx, customerID)
}

// CancelVacation deactivates a vacation window.
func (s *Service) CancelVacation(ctx context.Context, customerID, vacationID int64) error {
	return s.repo.DeactivateVacation(ctx, customerID, vacationID)
}

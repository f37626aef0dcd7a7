package customers

import (
	"strings"
	"time"
)

// SubscriptionType enumerates how a customer's delivery cadence is derived.
type SubscriptionType string

const (
	SubscriptionDaily     SubscriptionType = "daily"
	SubscriptionAlternate SubscriptionType = "alternate"
	SubscriptionWeekly    SubscriptionType = "weekly"
	SubscriptionCustom    SubscriptionType = "custom"
)

// IsValid checks if the subscription type is a known value.
func (s SubscriptionType) IsValid() bool {
	switch s {
	case SubscriptionDaily, SubscriptionAlternate, SubscriptionWeekly, SubscriptionCustom:
		return true
	default:
		return false
	}
}

// DeliverySchedule is an explicit per-weekday delivery plan. When present it
// overrides the cadence implied by the subscription type. Stored as jsonb.
type DeliverySchedule struct {
	// Days maps lowercase weekday names ("sunday".."saturday") to whether a
	// delivery is due on that weekday.
	Days map[string]bool `json:"days"`
	// AutoDeliver requests that generated deliveries are created already
	// marked delivered instead of pending.
	AutoDeliver bool `json:"auto_deliver"`
}

// HasDays reports whether the schedule carries any explicit weekday flags.
func (s *DeliverySchedule) HasDays() bool {
	return s != nil && len(s.Days) > 0
}

// DueOn evaluates the explicit weekday flag for the given weekday.
func (s *DeliverySchedule) DueOn(weekday time.Weekday) bool {
	if !s.HasDays() {
		return false
	}
	return s.Days[strings.ToLower(weekday.String())]
}

// Customer is a subscriber receiving scheduled deliveries.
type Customer struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Phone            string            `json:"phone"`
	Address          string            `json:"address"`
	Active           bool              `json:"active"`
	SubscriptionType SubscriptionType  `json:"subscription_type"`
	Schedule         *DeliverySchedule `json:"schedule,omitempty"`
	AdvanceBalance   float64           `json:"advance_balance"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SubscriptionLine is a customer's standing order for one product.
type SubscriptionLine struct {
	ID          int64     `json:"id"`
	CustomerID  int64     `json:"customer_id"`
	ProductID   int64     `json:"product_id"`
	Quantity    float64   `json:"quantity"`
	CustomPrice *float64  `json:"custom_price,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Vacation is a date range during which deliveries are suspended. Overlapping
// windows for the same customer are tolerated with union semantics.
type Vacation struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCustomerRequest is the payload for registering a customer.
type CreateCustomerRequest struct {
	Name             string            `json:"name" validate:"required,max=200"`
	Phone            string            `json:"phone" validate:"required,min=7,max=15"`
	Address          string            `json:"address" validate:"max=500"`
	SubscriptionType SubscriptionType  `json:"subscription_type" validate:"required"`
	Schedule         *DeliverySchedule `json:"schedule,omitempty"`
}

// UpdateCustomerRequest is a partial customer update.
type UpdateCustomerRequest struct {
	Name             *string           `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone            *string           `json:"phone,omitempty" validate:"omitempty,min=7,max=15"`
	Address          *string           `json:"address,omitempty" validate:"omitempty,max=500"`
	Active           *bool             `json:"active,omitempty"`
	SubscriptionType *SubscriptionType `json:"subscription_type,omitempty"`
	Schedule         *DeliverySchedule `json:"schedule,omitempty"`
}

// AddSubscriptionRequest adds a standing order line.
type AddSubscriptionRequest struct {
	ProductID   int64    `json:"product_id" validate:"required,gt=0"`
	Quantity    float64  `json:"quantity" validate:"required,gt=0"`
	CustomPrice *float64 `json:"custom_price,omitempty" validate:"omitempty,gt=0"`
}

// AddVacationRequest suspends deliveries for a date range.
type AddVacationRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/dairyops/dairyops/internal/customers"
)

// DeliveryStatus represents the lifecycle of a daily delivery.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusDelivered DeliveryStatus = "delivered"
	StatusMissed    DeliveryStatus = "missed"
)

// IsValid checks if the status is a known value.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusMissed:
		return true
	default:
		return false
	}
}

// Delivery is one calendar-day delivery event for one customer. At most one
// delivery exists per (customer, delivery date).
type Delivery struct {
	ID           int64          `json:"id"`
	CustomerID   int64          `json:"customer_id"`
	DeliveryDate time.Time      `json:"delivery_date"`
	Status       DeliveryStatus `json:"status"`
	DeliveryTime *time.Time     `json:"delivery_time,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Items        []DeliveryItem `json:"items,omitempty"`
}

// DeliveryItem is one product quantity within a delivery.
type DeliveryItem struct {
	ID          int64   `json:"id"`
	DeliveryID  int64   `json:"delivery_id"`
	ProductID   int64   `json:"product_id"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalAmount float64 `json:"total_amount"`
}

// SubscriptionCharge is a customer's active standing order line joined with
// the product's base price, ready for pricing a delivery item.
type SubscriptionCharge struct {
	LineID      int64
	CustomerID  int64
	ProductID   int64
	Quantity    float64
	CustomPrice *float64
	BasePrice   float64
}

// UnitPrice resolves the effective price: custom price when set, else the
// product's base price.
func (c SubscriptionCharge) UnitPrice() float64 {
	if c.CustomPrice != nil {
		return *c.CustomPrice
	}
	return c.BasePrice
}

// GenerationResult summarises one scheduler run. Partial success is the
// normal outcome; Errors holds row-level failures that did not abort the run.
type GenerationResult struct {
	RunID            uuid.UUID `json:"run_id"`
	Date             time.Time `json:"date"`
	Created          int       `json:"created"`
	Completed        int       `json:"completed"`
	SkippedNotDue    int       `json:"skipped_not_due"`
	SkippedVacation  int       `json:"skipped_vacation"`
	SkippedDuplicate int       `json:"skipped_duplicate"`
	SkippedNoLines   int       `json:"skipped_no_lines"`
	Errors           []string  `json:"errors,omitempty"`
}

// Skipped returns the total number of logical skips. Skips are not errors.
func (r *GenerationResult) Skipped() int {
	return r.SkippedNotDue + r.SkippedVacation + r.SkippedDuplicate + r.SkippedNoLines
}

// merge folds a per-day result into a range aggregate.
func (r *GenerationResult) merge(day *GenerationResult) {
	r.Created += day.Created
	r.Completed += day.Completed
	r.SkippedNotDue += day.SkippedNotDue
	r.SkippedVacation += day.SkippedVacation
	r.SkippedDuplicate += day.SkippedDuplicate
	r.SkippedNoLines += day.SkippedNoLines
	r.Errors = append(r.Errors, day.Errors...)
}

// alternateEpoch anchors the every-other-day cadence. Customers on the
// alternate plan receive deliveries on dates an even number of days from it.
var alternateEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateOnly normalises a timestamp to midnight UTC so calendar-day arithmetic
// and (customer, date) uniqueness behave consistently.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DueOn decides whether a customer is due for delivery on the given date.
// An explicit per-weekday schedule wins; otherwise the subscription type
// decides. Unknown types and custom plans without a schedule fail open.
func DueOn(c customers.Customer, date time.Time) bool {
	if c.Schedule.HasDays() {
		return c.Schedule.DueOn(date.Weekday())
	}
	switch c.SubscriptionType {
	case customers.SubscriptionDaily:
		return true
	case customers.SubscriptionAlternate:
		days := int(DateOnly(date).Sub(alternateEpoch).Hours() / 24)
		return days%2 == 0
	case customers.SubscriptionWeekly:
		return date.Weekday() == time.Sunday
	default:
		// Includes "custom" without a parsed schedule: fail open.
		return true
	}
}

package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks how much of an invoice has been settled.
type PaymentStatus string

const (
	StatusPending PaymentStatus = "pending"
	StatusPartial PaymentStatus = "partial"
	StatusPaid    PaymentStatus = "paid"
)

// Invoice covers one customer's deliveries for a calendar month. The UPI
// handle is snapshotted at generation time so later config changes do not
// rewrite issued invoices.
type Invoice struct {
	ID            int64         `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	CustomerID    int64         `json:"customer_id"`
	PeriodStart   time.Time     `json:"period_start"`
	PeriodEnd     time.Time     `json:"period_end"`
	DueDate       time.Time     `json:"due_date"`
	TotalAmount   float64       `json:"total_amount"`
	PaidAmount    float64       `json:"paid_amount"`
	FinalAmount   float64       `json:"final_amount"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	UPIHandle     string        `json:"upi_handle,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// BillableCustomer is the slice of a customer the generator needs.
type BillableCustomer struct {
	ID   int64
	Name string
}

// GenerationResult summarises one monthly billing run. Per-customer failures
// land in Errors; the run itself still succeeds.
type GenerationResult struct {
	RunID           uuid.UUID  `json:"run_id"`
	Year            int        `json:"year"`
	Month           time.Month `json:"month"`
	Created         int        `json:"created"`
	SkippedExisting int        `json:"skipped_existing"`
	SkippedZero     int        `json:"skipped_zero"`
	Errors          []string   `json:"errors,omitempty"`
}

// InvoiceNumber renders the sequential number for a billing period, e.g.
// INV-202406-003.
func InvoiceNumber(year int, month time.Month, seq int) string {
	return fmt.Sprintf("INV-%04d%02d-%03d", year, int(month), seq)
}

// PeriodBounds returns the first and last day of the billing month, both at
// midnight UTC.
func PeriodBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start, end
}

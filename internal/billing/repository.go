package billing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dairyops/dairyops/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for billing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const invoiceColumns = `id, invoice_number, customer_id, period_start, period_end, due_date,
	total_amount, paid_amount, final_amount, payment_status, upi_handle, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.DueDate, &inv.TotalAmount, &inv.PaidAmount, &inv.FinalAmount, &inv.PaymentStatus,
		&inv.UPIHandle, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ListActiveCustomers returns customers eligible for a billing run.
func (r *Repository) ListActiveCustomers(ctx context.Context) ([]BillableCustomer, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM customers WHERE active = true ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillableCustomer
	for rows.Next() {
		var c BillableCustomer
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InvoiceExists reports whether an invoice already covers the exact period.
func (r *Repository) InvoiceExists(ctx context.Context, customerID int64, periodStart, periodEnd time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE customer_id = $1 AND period_start = $2 AND period_end = $3
		)
	`, customerID, periodStart, periodEnd).Scan(&exists)
	return exists, err
}

// deliveredTotalsQuery reads the delivery_items columns written by the
// scheduler; total_amount must match the insert there.
const deliveredTotalsQuery = `
	SELECT COUNT(DISTINCT d.id), COALESCE(SUM(di.total_amount), 0)
	FROM deliveries d
	LEFT JOIN delivery_items di ON di.delivery_id = d.id
	WHERE d.customer_id = $1
	  AND d.status = 'delivered'
	  AND d.delivery_date BETWEEN $2 AND $3
`

// DeliveredTotals counts delivered deliveries in the period and sums their
// item totals.
func (r *Repository) DeliveredTotals(ctx context.Context, customerID int64, periodStart, periodEnd time.Time) (int, float64, error) {
	var count int
	var total float64
	err := r.pool.QueryRow(ctx, deliveredTotalsQuery, customerID, periodStart, periodEnd).Scan(&count, &total)
	return count, total, err
}

// SubscriptionDayAmount values one delivery day from the active subscription
// lines, preferring each line's custom price over the product base price.
func (r *Repository) SubscriptionDayAmount(ctx context.Context, customerID int64) (float64, error) {
	var amount float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(sl.quantity * COALESCE(sl.custom_price, p.base_price)), 0)
		FROM subscription_lines sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.customer_id = $1 AND sl.active = true AND p.active = true
	`, customerID).Scan(&amount)
	return amount, err
}

// NextInvoiceSeq increments and returns the per-month counter in one
// statement, so concurrent runs never hand out the same number.
func (r *Repository) NextInvoiceSeq(ctx context.Context, year int, month time.Month) (int, error) {
	var seq int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoice_counters (year, month, last_seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (year, month)
		DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq
	`, year, int(month)).Scan(&seq)
	return seq, err
}

// InsertInvoice persists a new invoice. A period collision maps to
// ErrDuplicateInvoice so the generator can count it as a skip.
func (r *Repository) InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, customer_id, period_start, period_end, due_date,
			total_amount, paid_amount, final_amount, payment_status, upi_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+invoiceColumns,
		inv.InvoiceNumber, inv.CustomerID, inv.PeriodStart, inv.PeriodEnd, inv.DueDate,
		inv.TotalAmount, inv.PaidAmount, inv.FinalAmount, inv.PaymentStatus, inv.UPIHandle)
	created, err := scanInvoice(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateInvoice
		}
		return nil, err
	}
	return created, nil
}

// GetInvoice fetches one invoice by ID.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// ListInvoices returns a customer's invoices, newest period first.
func (r *Repository) ListInvoices(ctx context.Context, customerID int64, status PaymentStatus) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE customer_id = $1`
	args := []any{customerID}
	if status != "" {
		query += ` AND payment_status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY period_start DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.PeriodStart,
			&inv.PeriodEnd, &inv.DueDate, &inv.TotalAmount, &inv.PaidAmount, &inv.FinalAmount,
			&inv.PaymentStatus, &inv.UPIHandle, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// UpdatePayment sets the paid amount and payment status on an invoice.
func (r *Repository) UpdatePayment(ctx context.Context, id int64, paidAmount float64, status PaymentStatus) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE invoices
		SET paid_amount = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+invoiceColumns, id, paidAmount, status)
	return scanInvoice(row)
}

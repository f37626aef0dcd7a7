package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const entryColumns = `id, customer_id, transaction_type, description, debit_amount, credit_amount, running_balance, reference_id, transaction_date, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.CustomerID, &e.TransactionType, &e.Description,
		&e.DebitAmount, &e.CreditAmount, &e.RunningBalance,
		&e.ReferenceID, &e.TransactionDate, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// LatestEntry returns the customer's most recent entry, or nil when the
// trail is empty.
func (r *Repository) LatestEntry(ctx context.Context, customerID int64) (*Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY transaction_date DESC, created_at DESC, id DESC
		LIMIT 1
	`
	e, err := scanEntry(r.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// InsertEntry appends an entry guarded by an expected-previous-entry check:
// the insert only happens when the customer's latest entry ID still matches
// expectedPrevID. A mismatch means another writer appended first.
func (r *Repository) InsertEntry(ctx context.Context, e Entry, expectedPrevID int64) (*Entry, error) {
	query := `
		INSERT INTO ledger_entries
			(customer_id, transaction_type, description, debit_amount, credit_amount,
			 running_balance, reference_id, transaction_date, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, now()
		WHERE COALESCE((
			SELECT id FROM ledger_entries
			WHERE customer_id = $1
			ORDER BY transaction_date DESC, created_at DESC, id DESC
			LIMIT 1
		), 0) = $9
		RETURNING ` + entryColumns
	created, err := scanEntry(r.pool.QueryRow(ctx, query,
		e.CustomerID, e.TransactionType, e.Description, e.DebitAmount, e.CreditAmount,
		e.RunningBalance, e.ReferenceID, e.TransactionDate, expectedPrevID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleBalance
		}
		return nil, err
	}
	return created, nil
}

// SumEntries derives total debit and credit across the customer's trail.
func (r *Repository) SumEntries(ctx context.Context, customerID int64) (float64, float64, error) {
	query := `
		SELECT COALESCE(SUM(debit_amount), 0), COALESCE(SUM(credit_amount), 0)
		FROM ledger_entries
		WHERE customer_id = $1
	`
	var debit, credit float64
	err := r.pool.QueryRow(ctx, query, customerID).Scan(&debit, &credit)
	return debit, credit, err
}

// ListEntries returns a customer's entries in trail order.
func (r *Repository) ListEntries(ctx context.Context, customerID int64) ([]Entry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM ledger_entries
		WHERE customer_id = $1
		ORDER BY transaction_date, created_at, id
	`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListUnsyncedInvoices returns invoices with no matching ledger entry
// (transaction_type = 'invoice' and reference_id = invoice ID).
func (r *Repository) ListUnsyncedInvoices(ctx context.Context) ([]InvoiceRef, error) {
	query := `
		SELECT i.id, i.customer_id, i.invoice_number, i.final_amount
		FROM invoices i
		WHERE NOT EXISTS (
			SELECT 1 FROM ledger_entries le
			WHERE le.transaction_type = 'invoice' AND le.reference_id = i.id
		)
		ORDER BY i.id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []InvoiceRef
	for rows.Next() {
		var ref InvoiceRef
		if err := rows.Scan(&ref.ID, &ref.CustomerID, &ref.Number, &ref.FinalAmount); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

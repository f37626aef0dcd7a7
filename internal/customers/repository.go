package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, name, phone, address, active, subscription_type, schedule, advance_balance, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	var schedule []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Address, &c.Active,
		&c.SubscriptionType, &schedule, &c.AdvanceBalance, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(schedule) > 0 {
		var s DeliverySchedule
		if err := json.Unmarshal(schedule, &s); err != nil {
			return nil, fmt.Errorf("customers: decode schedule: %w", err)
		}
		c.Schedule = &s
	}
	return &c, nil
}

func marshalSchedule(s *DeliverySchedule) (any, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("customers: encode schedule: %w", err)
	}
	return data, nil
}

// CreateCustomer inserts a new customer row.
func (r *Repository) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	schedule, err := marshalSchedule(c.Schedule)
	if err != nil {
		return nil, err
	}
	query := `
		INSERT INTO customers (name, phone, address, active, subscription_type, schedule, advance_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, now(), now())
		RETURNING ` + customerColumns
	return scanCustomer(r.pool.QueryRow(ctx, query,
		c.Name, c.Phone, c.Address, c.Active, c.SubscriptionType, schedule))
}

// GetCustomer retrieves a customer by ID.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// UpdateCustomer applies a partial update.
func (r *Repository) UpdateCustomer(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	i := 1
	for col, val := range updates {
		if col == "schedule" {
			s, _ := val.(*DeliverySchedule)
			data, err := marshalSchedule(s)
			if err != nil {
				return err
			}
			val = data
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE customers SET %s WHERE id = $%d", strings.Join(setClauses, ", "), i)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("customers: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCustomers returns customers ordered by name.
func (r *Repository) ListCustomers(ctx context.Context, activeOnly bool) ([]Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE ($1 = false OR active = true)
		ORDER BY name, id
	`
	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// AddSubscriptionLine inserts a standing order line.
func (r *Repository) AddSubscriptionLine(ctx context.Context, line SubscriptionLine) (*SubscriptionLine, error) {
	query := `
		INSERT INTO subscription_lines (customer_id, product_id, quantity, custom_price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		line.CustomerID, line.ProductID, line.Quantity, line.CustomPrice, line.Active).
		Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("customers: insert subscription line: %w", err)
	}
	return &line, nil
}

// ListSubscriptionLines returns a customer's standing order lines.
func (r *Repository) ListSubscriptionLines(ctx context.Context, customerID int64, activeOnly bool) ([]SubscriptionLine, error) {
	query := `
		SELECT id, customer_id, product_id, quantity, custom_price, active, created_at, updated_at
		FROM subscription_lines
		WHERE customer_id = $1 AND ($2 = false OR active = true)
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, customerID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []SubscriptionLine
	for rows.Next() {
		var l SubscriptionLine
		if err := rows.Scan(&l.ID, &l.CustomerID, &l.ProductID, &l.Quantity, &l.CustomPrice, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// DeactivateSubscriptionLine marks a standing order line inactive.
func (r *Repository) DeactivateSubscriptionLine(ctx context.Context, customerID, lineID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE subscription_lines SET active = false, updated_at = now() WHERE id = $1 AND customer_id = $2`,
		lineID, customerID)
	if err != nil {
		return fmt.Errorf("customers: deactivate subscription line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddVacation inserts a vacation window.
func (r *Repository) AddVacation(ctx context.Context, v Vacation) (*Vacation, error) {
	query := `
		INSERT INTO vacations (customer_id, start_date, end_date, active, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, created_at
	`
	err := r.pool.QueryRow(ctx, query, v.CustomerID, v.StartDate, v.EndDate, v.Active).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("customers: insert vacation: %w", err)
	}
	return &v, nil
}

// ListVacations returns a customer's vacation windows.
func (r *Repository) ListVacations(ctx context.Context, customerID int64) ([]Vacation, error) {
	query := `
		SELECT id, customer_id, start_date, end_date, active, created_at
		FROM vacations
		WHERE customer_id = $1
		ORDER BY start_date DESC, id DESC
	`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Vacation
	for rows.Next() {
		var v Vacation
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.StartDate, &v.EndDate, &v.Active, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeactivateVacation marks a vacation window inactive.
func (r *Repository) DeactivateVacation(ctx context.Context, customerID, vacationID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vacations SET active = false WHERE id = $1 AND customer_id = $2`,
		vacationID, customerID)
	if err != nil {
		return fmt.Errorf("customers: deactivate vacation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

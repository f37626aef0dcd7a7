package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dairyops/dairyops/internal/customers"
	"github.com/dairyops/dairyops/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the scheduler.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListActiveCustomers returns active customers with their schedules.
func (r *Repository) ListActiveCustomers(ctx context.Context) ([]customers.Customer, error) {
	query := `
		SELECT id, name, active, subscription_type, schedule
		FROM customers
		WHERE active = true
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []customers.Customer
	for rows.Next() {
		var c customers.Customer
		var schedule []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.SubscriptionType, &schedule); err != nil {
			return nil, err
		}
		if len(schedule) > 0 {
			var s customers.DeliverySchedule
			if err := json.Unmarshal(schedule, &s); err != nil {
				return nil, fmt.Errorf("scheduler: decode schedule for customer %d: %w", c.ID, err)
			}
			c.Schedule = &s
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListActiveCharges returns a customer's active subscription lines joined
// with product base prices.
func (r *Repository) ListActiveCharges(ctx context.Context, customerID int64) ([]SubscriptionCharge, error) {
	query := `
		SELECT sl.id, sl.customer_id, sl.product_id, sl.quantity, sl.custom_price, p.base_price
		FROM subscription_lines sl
		JOIN products p ON p.id = sl.product_id
		WHERE sl.customer_id = $1 AND sl.active = true AND p.active = true
		ORDER BY sl.id
	`
	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []SubscriptionCharge
	for rows.Next() {
		var c SubscriptionCharge
		if err := rows.Scan(&c.LineID, &c.CustomerID, &c.ProductID, &c.Quantity, &c.CustomPrice, &c.BasePrice); err != nil {
			return nil, err
		}
		charges = append(charges, c)
	}
	return charges, rows.Err()
}

// OnVacation reports whether any active vacation window covers the date.
func (r *Repository) OnVacation(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM vacations
			WHERE customer_id = $1 AND active = true
			  AND start_date <= $2 AND end_date >= $2
		)
	`
	var exists bool
	err := r.pool.QueryRow(ctx, query, customerID, date).Scan(&exists)
	return exists, err
}

// DeliveryExists reports whether a delivery already exists for the customer
// and date.
func (r *Repository) DeliveryExists(ctx context.Context, customerID int64, date time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM deliveries WHERE customer_id = $1 AND delivery_date = $2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, customerID, date).Scan(&exists)
	return exists, err
}

// InsertDeliveryWithItems inserts a delivery and its line items in one
// transaction. The unique index on (customer_id, delivery_date) backs the
// one-delivery-per-day invariant.
func (r *Repository) InsertDeliveryWithItems(ctx context.Context, d Delivery, items []DeliveryItem) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO deliveries (customer_id, delivery_date, status, delivery_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			RETURNING id
		`
		if err := tx.QueryRow(ctx, query, d.CustomerID, d.DeliveryDate, d.Status, d.DeliveryTime).Scan(&id); err != nil {
			return err
		}
		for _, item := range items {
			_, err := tx.Exec(ctx, `
				INSERT INTO delivery_items (delivery_id, product_id, quantity, unit_price, total_amount)
				VALUES ($1, $2, $3, $4, $5)
			`, id, item.ProductID, item.Quantity, item.UnitPrice, item.TotalAmount)
			if err != nil {
				return fmt.Errorf("insert item for product %d: %w", item.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrDuplicateDelivery
		}
		return 0, err
	}
	return id, nil
}

// InsertDeliveryItem inserts one line item.
func (r *Repository) InsertDeliveryItem(ctx context.Context, item DeliveryItem) error {
	query := `
		INSERT INTO delivery_items (delivery_id, product_id, quantity, unit_price, total_amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, item.DeliveryID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalAmount)
	return err
}

// ListDeliveriesByDate returns the date's deliveries, optionally filtered by
// status (empty status means all).
func (r *Repository) ListDeliveriesByDate(ctx context.Context, date time.Time, status DeliveryStatus) ([]Delivery, error) {
	query := `
		SELECT id, customer_id, delivery_date, status, delivery_time, created_at, updated_at
		FROM deliveries
		WHERE delivery_date = $1 AND ($2 = '' OR status = $2)
		ORDER BY customer_id
	`
	rows, err := r.pool.Query(ctx, query, date, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.CustomerID, &d.DeliveryDate, &d.Status, &d.DeliveryTime, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// ListDeliveryItems returns a delivery's line items.
func (r *Repository) ListDeliveryItems(ctx context.Context, deliveryID int64) ([]DeliveryItem, error) {
	query := `
		SELECT id, delivery_id, product_id, quantity, unit_price, total_amount
		FROM delivery_items
		WHERE delivery_id = $1
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DeliveryItem
	for rows.Next() {
		var it DeliveryItem
		if err := rows.Scan(&it.ID, &it.DeliveryID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkDelivered transitions a delivery to delivered and stamps the time.
func (r *Repository) MarkDelivered(ctx context.Context, deliveryID int64, at time.Time) error {
	query := `
		UPDATE deliveries
		SET status = $1, delivery_time = $2, updated_at = now()
		WHERE id = $3
	`
	tag, err := r.pool.Exec(ctx, query, StatusDelivered, at, deliveryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDelivery retrieves one delivery with its items.
func (r *Repository) GetDelivery(ctx context.Context, id int64) (*Delivery, error) {
	query := `
		SELECT id, customer_id, delivery_date, status, delivery_time, created_at, updated_at
		FROM deliveries
		WHERE id = $1
	`
	var d Delivery
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.CustomerID, &d.DeliveryDate, &d.Status, &d.DeliveryTime, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	items, err := r.ListDeliveryItems(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Items = items
	return &d, nil
}

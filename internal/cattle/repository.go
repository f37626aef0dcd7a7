package cattle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dairyops/dairyops/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the herd.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const cattleColumns = `id, tag_number, name, breed, date_of_birth, status, lactation_status, created_at, updated_at`

func scanCattle(row pgx.Row) (*Cattle, error) {
	var c Cattle
	err := row.Scan(&c.ID, &c.TagNumber, &c.Name, &c.Breed, &c.DateOfBirth,
		&c.Status, &c.LactationStatus, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateCattle registers a new animal. A tag collision maps to
// ErrDuplicateTag.
func (r *Repository) CreateCattle(ctx context.Context, c Cattle) (*Cattle, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO cattle (tag_number, name, breed, date_of_birth, status, lactation_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+cattleColumns,
		c.TagNumber, c.Name, c.Breed, c.DateOfBirth, c.Status, c.LactationStatus)
	created, err := scanCattle(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateTag
		}
		return nil, err
	}
	return created, nil
}

// GetCattle fetches one animal by ID.
func (r *Repository) GetCattle(ctx context.Context, id int64) (*Cattle, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+cattleColumns+` FROM cattle WHERE id = $1`, id)
	return scanCattle(row)
}

// ListCattle returns animals, optionally filtered by lifecycle status.
func (r *Repository) ListCattle(ctx context.Context, status Status) ([]Cattle, error) {
	query := `SELECT ` + cattleColumns + ` FROM cattle`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY tag_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCattle(rows)
}

// ListActiveHerd returns all active animals.
func (r *Repository) ListActiveHerd(ctx context.Context) ([]Cattle, error) {
	return r.ListCattle(ctx, StatusActive)
}

func collectCattle(rows pgx.Rows) ([]Cattle, error) {
	var out []Cattle
	for rows.Next() {
		var c Cattle
		if err := rows.Scan(&c.ID, &c.TagNumber, &c.Name, &c.Breed, &c.DateOfBirth,
			&c.Status, &c.LactationStatus, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCattle applies a partial update built from the given fields.
func (r *Repository) UpdateCattle(ctx context.Context, id int64, fields map[string]interface{}) (*Cattle, error) {
	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+1)
	i := 1
	for _, col := range []string{"name", "breed", "status", "lactation_status"} {
		if v, ok := fields[col]; ok {
			sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
			args = append(args, v)
			i++
		}
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE cattle SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), i, cattleColumns)
	return scanCattle(r.pool.QueryRow(ctx, query, args...))
}

// UpdateLactationStatus sets only the lactation status.
func (r *Repository) UpdateLactationStatus(ctx context.Context, cattleID int64, status LactationStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cattle SET lactation_status = $2, updated_at = now() WHERE id = $1`,
		cattleID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const breedingColumns = `id, cattle_id, record_type, record_date, pregnancy_confirmed, expected_calving_date, notes, created_at`

// AddBreedingRecord appends a breeding event.
func (r *Repository) AddBreedingRecord(ctx context.Context, rec BreedingRecord) (*BreedingRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO breeding_records (cattle_id, record_type, record_date, pregnancy_confirmed, expected_calving_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+breedingColumns,
		rec.CattleID, rec.RecordType, rec.RecordDate, rec.PregnancyConfirmed, rec.ExpectedCalvingDate, rec.Notes)
	return scanBreeding(row)
}

func scanBreeding(row pgx.Row) (*BreedingRecord, error) {
	var rec BreedingRecord
	err := row.Scan(&rec.ID, &rec.CattleID, &rec.RecordType, &rec.RecordDate,
		&rec.PregnancyConfirmed, &rec.ExpectedCalvingDate, &rec.Notes, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListBreedingRecords returns an animal's breeding history, newest first.
func (r *Repository) ListBreedingRecords(ctx context.Context, cattleID int64) ([]BreedingRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+breedingColumns+` FROM breeding_records WHERE cattle_id = $1 ORDER BY record_date DESC, id DESC`,
		cattleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BreedingRecord
	for rows.Next() {
		var rec BreedingRecord
		if err := rows.Scan(&rec.ID, &rec.CattleID, &rec.RecordType, &rec.RecordDate,
			&rec.PregnancyConfirmed, &rec.ExpectedCalvingDate, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LatestCalving returns the most recent calving record, or nil.
func (r *Repository) LatestCalving(ctx context.Context, cattleID int64) (*BreedingRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+breedingColumns+`
		FROM breeding_records
		WHERE cattle_id = $1 AND record_type = 'calving'
		ORDER BY record_date DESC, id DESC
		LIMIT 1
	`, cattleID)
	return scanBreeding(row)
}

// ActivePregnancy returns the most recent confirmed pregnancy check that has
// not been superseded by a later calving, or nil.
func (r *Repository) ActivePregnancy(ctx context.Context, cattleID int64) (*BreedingRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+breedingColumns+`
		FROM breeding_records pc
		WHERE pc.cattle_id = $1
		  AND pc.record_type = 'pregnancy_check'
		  AND pc.pregnancy_confirmed = true
		  AND NOT EXISTS (
			SELECT 1 FROM breeding_records cv
			WHERE cv.cattle_id = pc.cattle_id
			  AND cv.record_type = 'calving'
			  AND cv.record_date > pc.record_date
		  )
		ORDER BY pc.record_date DESC, pc.id DESC
		LIMIT 1
	`, cattleID)
	return scanBreeding(row)
}

const productionColumns = `id, cattle_id, production_date, morning_quantity, evening_quantity, created_at`

// RecordProduction logs a day's yield. Re-logging the same day overwrites the
// quantities rather than duplicating the row.
func (r *Repository) RecordProduction(ctx context.Context, p MilkProduction) (*MilkProduction, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO milk_production (cattle_id, production_date, morning_quantity, evening_quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cattle_id, production_date)
		DO UPDATE SET morning_quantity = EXCLUDED.morning_quantity,
			evening_quantity = EXCLUDED.evening_quantity
		RETURNING `+productionColumns,
		p.CattleID, p.ProductionDate, p.MorningQuantity, p.EveningQuantity)

	var out MilkProduction
	if err := row.Scan(&out.ID, &out.CattleID, &out.ProductionDate,
		&out.MorningQuantity, &out.EveningQuantity, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProduction returns yields within the inclusive date range, oldest
// first.
func (r *Repository) ListProduction(ctx context.Context, cattleID int64, from, to time.Time) ([]MilkProduction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productionColumns+`
		FROM milk_production
		WHERE cattle_id = $1 AND production_date BETWEEN $2 AND $3
		ORDER BY production_date
	`, cattleID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MilkProduction
	for rows.Next() {
		var p MilkProduction
		if err := rows.Scan(&p.ID, &p.CattleID, &p.ProductionDate,
			&p.MorningQuantity, &p.EveningQuantity, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LastProductionDate returns the most recent yield date, or nil.
func (r *Repository) LastProductionDate(ctx context.Context, cattleID int64) (*time.Time, error) {
	var date time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT production_date FROM milk_production WHERE cattle_id = $1 ORDER BY production_date DESC LIMIT 1`,
		cattleID).Scan(&date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &date, nil
}

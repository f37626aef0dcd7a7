package cattle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dairyops/dairyops/internal/notify"
)

var (
	// ErrNotFound indicates the animal does not exist.
	ErrNotFound = errors.New("cattle not found")
	// ErrDuplicateTag indicates the tag number is already registered.
	ErrDuplicateTag = errors.New("tag number already registered")
	// ErrInvalidDate indicates an unparseable date field.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

const (
	// dryOffLeadDays is how far before the expected calving a pregnant cow
	// is dried off.
	dryOffLeadDays = 60
	// freshCalvingDays is the window after calving in which a cow is moved
	// to lactating.
	freshCalvingDays = 7
	// productionGapDays is the yield silence after which a lactating cow is
	// considered dried off.
	productionGapDays = 30
)

// RepositoryPort defines data access methods for the herd.
type RepositoryPort interface {
	CreateCattle(ctx context.Context, c Cattle) (*Cattle, error)
	GetCattle(ctx context.Context, id int64) (*Cattle, error)
	ListCattle(ctx context.Context, status Status) ([]Cattle, error)
	UpdateCattle(ctx context.Context, id int64, fields map[string]interface{}) (*Cattle, error)
	// ListActiveHerd returns all animals eligible for status automation.
	ListActiveHerd(ctx context.Context) ([]Cattle, error)

	AddBreedingRecord(ctx context.Context, rec BreedingRecord) (*BreedingRecord, error)
	ListBreedingRecords(ctx context.Context, cattleID int64) ([]BreedingRecord, error)
	// LatestCalving returns the most recent calving record, or nil when the
	// animal has never calved.
	LatestCalving(ctx context.Context, cattleID int64) (*BreedingRecord, error)
	// ActivePregnancy returns the most recent confirmed pregnancy check not
	// yet superseded by a calving, or nil.
	ActivePregnancy(ctx context.Context, cattleID int64) (*BreedingRecord, error)

	RecordProduction(ctx context.Context, p MilkProduction) (*MilkProduction, error)
	ListProduction(ctx context.Context, cattleID int64, from, to time.Time) ([]MilkProduction, error)
	// LastProductionDate returns the most recent yield date, or nil when
	// none was ever recorded.
	LastProductionDate(ctx context.Context, cattleID int64) (*time.Time, error)

	UpdateLactationStatus(ctx context.Context, cattleID int64, status LactationStatus) error
}

// Service manages the herd and runs the lactation status rules.
type Service struct {
	repo     RepositoryPort
	notifier notify.Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

func NewService(repo RepositoryPort, notifier notify.Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger, clock: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create registers a new animal.
func (s *Service) Create(ctx context.Context, req CreateCattleRequest) (*Cattle, error) {
	lact := LactationStatus(req.LactationStatus)
	c := Cattle{
		TagNumber:       req.TagNumber,
		Name:            req.Name,
		Breed:           req.Breed,
		DateOfBirth:     req.DateOfBirth,
		Status:          StatusActive,
		LactationStatus: lact,
	}
	return s.repo.CreateCattle(ctx, c)
}

// Get returns one animal by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Cattle, error) {
	return s.repo.GetCattle(ctx, id)
}

// List returns animals, optionally filtered by lifecycle status.
func (s *Service) List(ctx context.Context, status Status) ([]Cattle, error) {
	return s.repo.ListCattle(ctx, status)
}

// Update applies a partial update to an animal.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCattleRequest) (*Cattle, error) {
	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Breed != nil {
		fields["breed"] = *req.Breed
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.LactationStatus != nil {
		fields["lactation_status"] = *req.LactationStatus
	}
	if len(fields) == 0 {
		return s.repo.GetCattle(ctx, id)
	}
	return s.repo.UpdateCattle(ctx, id, fields)
}

// AddBreedingRecord appends a breeding event for an animal.
func (s *Service) AddBreedingRecord(ctx context.Context, cattleID int64, req BreedingRecordRequest) (*BreedingRecord, error) {
	if _, err := s.repo.GetCattle(ctx, cattleID); err != nil {
		return nil, err
	}
	recordDate, err := parseDay(req.RecordDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	rec := BreedingRecord{
		CattleID:           cattleID,
		RecordType:         RecordType(req.RecordType),
		RecordDate:         recordDate,
		PregnancyConfirmed: req.PregnancyConfirmed,
		Notes:              req.Notes,
	}
	if req.ExpectedCalvingDate != nil {
		expected, err := parseDay(*req.ExpectedCalvingDate)
		if err != nil {
			return nil, ErrInvalidDate
		}
		rec.ExpectedCalvingDate = &expected
	}
	return s.repo.AddBreedingRecord(ctx, rec)
}

// ListBreedingRecords returns an animal's breeding history, newest first.
func (s *Service) ListBreedingRecords(ctx context.Context, cattleID int64) ([]BreedingRecord, error) {
	return s.repo.ListBreedingRecords(ctx, cattleID)
}

// RecordProduction logs a day's milk yield for an animal.
func (s *Service) RecordProduction(ctx context.Context, cattleID int64, req ProductionRequest) (*MilkProduction, error) {
	if _, err := s.repo.GetCattle(ctx, cattleID); err != nil {
		return nil, err
	}
	date, err := parseDay(req.ProductionDate)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return s.repo.RecordProduction(ctx, MilkProduction{
		CattleID:        cattleID,
		ProductionDate:  date,
		MorningQuantity: req.MorningQuantity,
		EveningQuantity: req.EveningQuantity,
	})
}

// ListProduction returns an animal's yields within the inclusive range.
func (s *Service) ListProduction(ctx context.Context, cattleID int64, from, to time.Time) ([]MilkProduction, error) {
	return s.repo.ListProduction(ctx, cattleID, from, to)
}

// RunStatusRules sweeps the active herd and applies the lactation rules in
// priority order, first match wins. Only actual transitions are written; a
// failure on one animal is recorded and the sweep continues.
func (s *Service) RunStatusRules(ctx context.Context) (*AutomationResult, error) {
	herd, err := s.repo.ListActiveHerd(ctx)
	if err != nil {
		return nil, fmt.Errorf("cattle: list herd: %w", err)
	}

	today := dateOnly(s.clock())
	result := &AutomationResult{}
	for _, animal := range herd {
		result.Evaluated++
		target, reason, err := s.evaluate(ctx, animal, today)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cattle %s: %v", animal.TagNumber, err))
			continue
		}
		if target == "" || target == animal.LactationStatus {
			continue
		}
		if err := s.repo.UpdateLactationStatus(ctx, animal.ID, target); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("cattle %s: %v", animal.TagNumber, err))
			continue
		}
		change := StatusChange{
			CattleID:  animal.ID,
			TagNumber: animal.TagNumber,
			Previous:  animal.LactationStatus,
			New:       target,
			Reason:    reason,
		}
		result.Changes = append(result.Changes, change)
		s.logger.Info("lactation status changed",
			slog.String("tag", animal.TagNumber),
			slog.String("previous", string(change.Previous)),
			slog.String("new", string(change.New)),
			slog.String("reason", reason))
	}

	if len(result.Changes) > 0 {
		s.notifier.Publish(ctx, notify.EventHealthAlert, map[string]any{
			"changes":   len(result.Changes),
			"evaluated": result.Evaluated,
		})
	}
	return result, nil
}

// evaluate applies the rules to one animal and returns the target status and
// the reason behind it, or an empty status when no rule fires.
func (s *Service) evaluate(ctx context.Context, animal Cattle, today time.Time) (LactationStatus, string, error) {
	pregnancy, err := s.repo.ActivePregnancy(ctx, animal.ID)
	if err != nil {
		return "", "", fmt.Errorf("active pregnancy: %w", err)
	}

	// Rule 1: lactating cows are dried off 60 days before the expected
	// calving date. Cows in any other state fall through, so an unset cow
	// with a near-term pregnancy still gets rule 3.
	if pregnancy != nil && pregnancy.ExpectedCalvingDate != nil && animal.LactationStatus == LactationLactating {
		expected := dateOnly(*pregnancy.ExpectedCalvingDate)
		dryOffFrom := expected.AddDate(0, 0, -dryOffLeadDays)
		if !today.Before(dryOffFrom) && !today.After(expected) {
			return LactationDry, fmt.Sprintf("%d days before expected calving on %s",
				dryOffLeadDays, expected.Format("2006-01-02")), nil
		}
	}

	// Rule 2: freshly calved cows start lactating.
	calving, err := s.repo.LatestCalving(ctx, animal.ID)
	if err != nil {
		return "", "", fmt.Errorf("latest calving: %w", err)
	}
	if calving != nil && animal.LactationStatus != LactationLactating {
		days := int(today.Sub(dateOnly(calving.RecordDate)).Hours() / 24)
		if days >= 0 && days <= freshCalvingDays {
			return LactationLactating, fmt.Sprintf("calved %d days ago", days), nil
		}
	}

	// Rule 3: a confirmed pregnancy sets the status when nothing else has.
	if pregnancy != nil && animal.LactationStatus.Unset() {
		return LactationPregnant, "pregnancy confirmed", nil
	}

	// Rule 4: lactating cows with no recorded yield for 30 days have dried
	// off in practice.
	if animal.LactationStatus == LactationLactating {
		last, err := s.repo.LastProductionDate(ctx, animal.ID)
		if err != nil {
			return "", "", fmt.Errorf("last production: %w", err)
		}
		if last == nil || today.Sub(dateOnly(*last)).Hours() > float64(productionGapDays*24) {
			return LactationDry, fmt.Sprintf("no milk production recorded in %d days", productionGapDays), nil
		}
	}

	return "", "", nil
}

func parseDay(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

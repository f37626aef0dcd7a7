package cattle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dairyops/dairyops/internal/notify"
)

type memoryHerdRepo struct {
	herd         map[int64]*Cattle
	breeding     map[int64][]BreedingRecord
	lastYield    map[int64]time.Time
	nextID       int64
	nextRecordID int64
}

func newMemoryHerdRepo() *memoryHerdRepo {
	return &memoryHerdRepo{
		herd:      make(map[int64]*Cattle),
		breeding:  make(map[int64][]BreedingRecord),
		lastYield: make(map[int64]time.Time),
	}
}

func (r *memoryHerdRepo) addCattle(tag string, lact LactationStatus) *Cattle {
	r.nextID++
	c := &Cattle{ID: r.nextID, TagNumber: tag, Status: StatusActive, LactationStatus: lact}
	r.herd[c.ID] = c
	return c
}

func (r *memoryHerdRepo) CreateCattle(ctx context.Context, c Cattle) (*Cattle, error) {
	for _, existing := range r.herd {
		if existing.TagNumber == c.TagNumber {
			return nil, ErrDuplicateTag
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.herd[c.ID] = &c
	copied := c
	return &copied, nil
}

func (r *memoryHerdRepo) GetCattle(ctx context.Context, id int64) (*Cattle, error) {
	c, ok := r.herd[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryHerdRepo) ListCattle(ctx context.Context, status Status) ([]Cattle, error) {
	var out []Cattle
	for id := int64(1); id <= r.nextID; id++ {
		c, ok := r.herd[id]
		if !ok {
			continue
		}
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memoryHerdRepo) UpdateCattle(ctx context.Context, id int64, fields map[string]interface{}) (*Cattle, error) {
	c, ok := r.herd[id]
	if !ok {
		return nil, ErrNotFound
	}
	if v, ok := fields["lactation_status"]; ok {
		c.LactationStatus = LactationStatus(v.(string))
	}
	copied := *c
	return &copied, nil
}

func (r *memoryHerdRepo) ListActiveHerd(ctx context.Context) ([]Cattle, error) {
	return r.ListCattle(ctx, StatusActive)
}

func (r *memoryHerdRepo) AddBreedingRecord(ctx context.Context, rec BreedingRecord) (*BreedingRecord, error) {
	r.nextRecordID++
	rec.ID = r.nextRecordID
	r.breeding[rec.CattleID] = append(r.breeding[rec.CattleID], rec)
	return &rec, nil
}

func (r *memoryHerdRepo) ListBreedingRecords(ctx context.Context, cattleID int64) ([]BreedingRecord, error) {
	return r.breeding[cattleID], nil
}

func (r *memoryHerdRepo) LatestCalving(ctx context.Context, cattleID int64) (*BreedingRecord, error) {
	var latest *BreedingRecord
	for i := range r.breeding[cattleID] {
		rec := r.breeding[cattleID][i]
		if rec.RecordType != RecordCalving {
			continue
		}
		if latest == nil || rec.RecordDate.After(latest.RecordDate) {
			latest = &rec
		}
	}
	return latest, nil
}

func (r *memoryHerdRepo) ActivePregnancy(ctx context.Context, cattleID int64) (*BreedingRecord, error) {
	var latest *BreedingRecord
	for i := range r.breeding[cattleID] {
		rec := r.breeding[cattleID][i]
		if rec.RecordType != RecordPregnancyCheck || !rec.PregnancyConfirmed {
			continue
		}
		superseded := false
		for _, cv := range r.breeding[cattleID] {
			if cv.RecordType == RecordCalving && cv.RecordDate.After(rec.RecordDate) {
				superseded = true
				break
			}
		}
		if superseded {
			continue
		}
		if latest == nil || rec.RecordDate.After(latest.RecordDate) {
			latest = &rec
		}
	}
	return latest, nil
}

func (r *memoryHerdRepo) RecordProduction(ctx context.Context, p MilkProduction) (*MilkProduction, error) {
	r.lastYield[p.CattleID] = p.ProductionDate
	return &p, nil
}

func (r *memoryHerdRepo) ListProduction(ctx context.Context, cattleID int64, from, to time.Time) ([]MilkProduction, error) {
	return nil, nil
}

func (r *memoryHerdRepo) LastProductionDate(ctx context.Context, cattleID int64) (*time.Time, error) {
	d, ok := r.lastYield[cattleID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (r *memoryHerdRepo) UpdateLactationStatus(ctx context.Context, cattleID int64, status LactationStatus) error {
	c, ok := r.herd[cattleID]
	if !ok {
		return ErrNotFound
	}
	c.LactationStatus = status
	return nil
}

var automationNow = time.Date(2024, 6, 15, 4, 0, 0, 0, time.UTC)

func newTestHerd(repo *memoryHerdRepo) *Service {
	return NewService(repo, notify.Nop{}, slog.Default()).
		WithClock(func() time.Time { return automationNow })
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return d
}

func confirmedPregnancy(checkDate, expectedCalving string) BreedingRecord {
	expected := day(expectedCalving)
	return BreedingRecord{
		RecordType:          RecordPregnancyCheck,
		RecordDate:          day(checkDate),
		PregnancyConfirmed:  true,
		ExpectedCalvingDate: &expected,
	}
}

func TestDryOffBeforeExpectedCalving(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-001", LactationLactating)
	preg := confirmedPregnancy("2024-04-01", "2024-08-01") // 47 days out
	preg.CattleID = cow.ID
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	require.Equal(t, "T-001", change.TagNumber)
	require.Equal(t, LactationLactating, change.Previous)
	require.Equal(t, LactationDry, change.New)
	require.Contains(t, change.Reason, "60 days before expected calving")
	require.Equal(t, LactationDry, repo.herd[cow.ID].LactationStatus)
}

func TestDryOffAppliesOnlyToLactatingCows(t *testing.T) {
	repo := newMemoryHerdRepo()
	unset := repo.addCattle("T-010", "")
	expecting := repo.addCattle("T-011", LactationPregnant)
	for _, cow := range []*Cattle{unset, expecting} {
		preg := confirmedPregnancy("2024-04-01", "2024-08-01") // 47 days out
		preg.CattleID = cow.ID
		repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)
	}

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Evaluated)
	require.Len(t, result.Changes, 1)
	change := result.Changes[0]
	require.Equal(t, "T-010", change.TagNumber)
	require.Equal(t, LactationPregnant, change.New)
	require.Equal(t, "pregnancy confirmed", change.Reason)
	require.Equal(t, LactationPregnant, repo.herd[expecting.ID].LactationStatus)
}

func TestNoDryOffWhenCalvingIsFarAway(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-001", LactationLactating)
	repo.lastYield[cow.ID] = automationNow.AddDate(0, 0, -2)
	preg := confirmedPregnancy("2024-06-01", "2024-12-01") // well beyond 60 days
	preg.CattleID = cow.ID
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Changes)
}

func TestFreshCalvingStartsLactation(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-002", LactationDry)
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], BreedingRecord{
		CattleID:   cow.ID,
		RecordType: RecordCalving,
		RecordDate: day("2024-06-12"), // 3 days ago
	})

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	require.Equal(t, LactationLactating, result.Changes[0].New)
	require.Equal(t, "calved 3 days ago", result.Changes[0].Reason)
}

func TestOldCalvingDoesNotRestartLactation(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-002", LactationDry)
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], BreedingRecord{
		CattleID:   cow.ID,
		RecordType: RecordCalving,
		RecordDate: day("2024-05-01"),
	})

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Changes)
}

func TestConfirmedPregnancySetsUnsetStatus(t *testing.T) {
	repo := newMemoryHerdRepo()
	unset := repo.addCattle("T-003", "")
	none := repo.addCattle("T-004", LactationNone)
	for _, cow := range []*Cattle{unset, none} {
		preg := confirmedPregnancy("2024-06-01", "2025-03-01")
		preg.CattleID = cow.ID
		repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)
	}

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 2)
	for _, change := range result.Changes {
		require.Equal(t, LactationPregnant, change.New)
		require.Equal(t, "pregnancy confirmed", change.Reason)
	}
}

func TestPregnancyDoesNotOverrideExistingStatus(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-005", LactationDry)
	preg := confirmedPregnancy("2024-06-01", "2025-03-01")
	preg.CattleID = cow.ID
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Changes)
	require.Equal(t, LactationDry, repo.herd[cow.ID].LactationStatus)
}

func TestProductionSilenceDriesOffLactatingCow(t *testing.T) {
	repo := newMemoryHerdRepo()
	stale := repo.addCattle("T-006", LactationLactating)
	repo.lastYield[stale.ID] = automationNow.AddDate(0, 0, -45)
	fresh := repo.addCattle("T-007", LactationLactating)
	repo.lastYield[fresh.ID] = automationNow.AddDate(0, 0, -5)
	never := repo.addCattle("T-008", LactationLactating)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 2)
	for _, change := range result.Changes {
		require.Equal(t, LactationDry, change.New)
		require.Equal(t, "no milk production recorded in 30 days", change.Reason)
	}
	require.Equal(t, LactationLactating, repo.herd[fresh.ID].LactationStatus)
	require.Equal(t, LactationDry, repo.herd[never.ID].LactationStatus)
}

func TestDryOffRuleWinsOverProductionSilence(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-009", LactationLactating)
	repo.lastYield[cow.ID] = automationNow.AddDate(0, 0, -45)
	preg := confirmedPregnancy("2024-04-01", "2024-07-20")
	preg.CattleID = cow.ID
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	require.Contains(t, result.Changes[0].Reason, "60 days before expected calving")
}

func TestRulesSkipNonActiveCattle(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-010", LactationLactating)
	cow.Status = StatusSold
	repo.lastYield[cow.ID] = automationNow.AddDate(0, 0, -90)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, result.Evaluated)
	require.Empty(t, result.Changes)
}

func TestNoChangeWhenStatusAlreadyMatches(t *testing.T) {
	repo := newMemoryHerdRepo()
	cow := repo.addCattle("T-011", LactationDry)
	preg := confirmedPregnancy("2024-04-01", "2024-08-01")
	preg.CattleID = cow.ID
	repo.breeding[cow.ID] = append(repo.breeding[cow.ID], preg)

	result, err := newTestHerd(repo).RunStatusRules(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Evaluated)
	require.Empty(t, result.Changes)
}

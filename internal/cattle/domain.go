package cattle

import "time"

// Status is the lifecycle state of an animal in the herd.
type Status string

const (
	StatusActive   Status = "active"
	StatusSold     Status = "sold"
	StatusDeceased Status = "deceased"
)

// LactationStatus tracks where a cow is in its production cycle. An empty
// value or "none" means the status has never been set.
type LactationStatus string

const (
	LactationNone      LactationStatus = "none"
	LactationLactating LactationStatus = "lactating"
	LactationDry       LactationStatus = "dry"
	LactationPregnant  LactationStatus = "pregnant"
	LactationCalving   LactationStatus = "calving"
)

// Unset reports whether the lactation status has never been assigned.
func (s LactationStatus) Unset() bool {
	return s == "" || s == LactationNone
}

// Cattle is one animal in the herd, identified by its unique tag number.
type Cattle struct {
	ID              int64           `json:"id"`
	TagNumber       string          `json:"tag_number"`
	Name            string          `json:"name,omitempty"`
	Breed           string          `json:"breed,omitempty"`
	DateOfBirth     *time.Time      `json:"date_of_birth,omitempty"`
	Status          Status          `json:"status"`
	LactationStatus LactationStatus `json:"lactation_status,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// RecordType classifies breeding events.
type RecordType string

const (
	RecordInsemination   RecordType = "insemination"
	RecordPregnancyCheck RecordType = "pregnancy_check"
	RecordCalving        RecordType = "calving"
)

// BreedingRecord is one breeding event for an animal. Pregnancy checks carry
// the confirmation flag and the projected calving date.
type BreedingRecord struct {
	ID                  int64      `json:"id"`
	CattleID            int64      `json:"cattle_id"`
	RecordType          RecordType `json:"record_type"`
	RecordDate          time.Time  `json:"record_date"`
	PregnancyConfirmed  bool       `json:"pregnancy_confirmed"`
	ExpectedCalvingDate *time.Time `json:"expected_calving_date,omitempty"`
	Notes               string     `json:"notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// MilkProduction is one day's yield for an animal.
type MilkProduction struct {
	ID              int64     `json:"id"`
	CattleID        int64     `json:"cattle_id"`
	ProductionDate  time.Time `json:"production_date"`
	MorningQuantity float64   `json:"morning_quantity"`
	EveningQuantity float64   `json:"evening_quantity"`
	CreatedAt       time.Time `json:"created_at"`
}

// Total returns the day's combined yield.
func (m MilkProduction) Total() float64 {
	return m.MorningQuantity + m.EveningQuantity
}

// StatusChange records one automated lactation status transition, with a
// human-readable reason for the audit trail.
type StatusChange struct {
	CattleID  int64           `json:"cattle_id"`
	TagNumber string          `json:"tag_number"`
	Previous  LactationStatus `json:"previous"`
	New       LactationStatus `json:"new"`
	Reason    string          `json:"reason"`
}

// AutomationResult summarises one status rule sweep over the active herd.
type AutomationResult struct {
	Evaluated int            `json:"evaluated"`
	Changes   []StatusChange `json:"changes"`
	Errors    []string       `json:"errors,omitempty"`
}

// CreateCattleRequest registers a new animal.
type CreateCattleRequest struct {
	TagNumber       string     `json:"tag_number" validate:"required"`
	Name            string     `json:"name"`
	Breed           string     `json:"breed"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	LactationStatus string     `json:"lactation_status" validate:"omitempty,oneof=none lactating dry pregnant calving"`
}

// UpdateCattleRequest partially updates an animal.
type UpdateCattleRequest struct {
	Name            *string `json:"name"`
	Breed           *string `json:"breed"`
	Status          *string `json:"status" validate:"omitempty,oneof=active sold deceased"`
	LactationStatus *string `json:"lactation_status" validate:"omitempty,oneof=none lactating dry pregnant calving"`
}

// BreedingRecordRequest appends a breeding event.
type BreedingRecordRequest struct {
	RecordType          string  `json:"record_type" validate:"required,oneof=insemination pregnancy_check calving"`
	RecordDate          string  `json:"record_date" validate:"required"`
	PregnancyConfirmed  bool    `json:"pregnancy_confirmed"`
	ExpectedCalvingDate *string `json:"expected_calving_date"`
	Notes               string  `json:"notes"`
}

// ProductionRequest logs a day's milk yield.
type ProductionRequest struct {
	ProductionDate  string  `json:"production_date" validate:"required"`
	MorningQuantity float64 `json:"morning_quantity" validate:"gte=0"`
	EveningQuantity float64 `json:"evening_quantity" validate:"gte=0"`
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusPaused    ContractStatus = "paused"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCancelled ContractStatus = "cancelled"
)

type FrequencyKind string

const (
	FrequencyOneTime  FrequencyKind = "one_time"
	FrequencyInterval FrequencyKind = "interval"
)

type FrequencyUnit string

const (
	UnitDay      FrequencyUnit = "day"
	UnitWeek     FrequencyUnit = "week"
	UnitMonth    FrequencyUnit = "month"
	UnitQuarter  FrequencyUnit = "quarter"
	UnitHalfYear FrequencyUnit = "half_year"
	UnitYear     FrequencyUnit = "year"
)

// Frequency describes how often visits recur under a contract.
// OneTime contracts ignore Value and Unit.
type Frequency struct {
	Kind  FrequencyKind
	Value int
	Unit  FrequencyUnit
}

type Contract struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	BranchID     uuid.UUID
	CustomerID   uuid.UUID
	ProductID    uuid.UUID
	TechnicianID *uuid.UUID
	Frequency    Frequency
	StartDate    time.Time
	EndDate      *time.Time
	Value        float64
	Instructions string
	Status       ContractStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type HealthLabel string

const (
	HealthExcellent HealthLabel = "excellent"
	HealthGood      HealthLabel = "good"
	HealthWarning   HealthLabel = "warning"
	HealthCritical  HealthLabel = "critical"
)

// ContractHealth is derived from visit state on read, never stored.
type ContractHealth struct {
	ContractID      uuid.UUID
	CompletionRate  float64
	CompletedVisits int
	TotalVisits     int
	DaysUntilExpiry *int
	NextVisitDate   *time.Time
	ExpiringSoon    bool
	Expired         bool
	Label           HealthLabel
}

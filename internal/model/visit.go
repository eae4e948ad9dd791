package model

import (
	"time"

	"github.com/google/uuid"
)

type VisitStatus string

const (
	VisitStatusScheduled  VisitStatus = "scheduled"
	VisitStatusInProgress VisitStatus = "in_progress"
	VisitStatusCompleted  VisitStatus = "completed"
	VisitStatusCancelled  VisitStatus = "cancelled"
	VisitStatusMissed     VisitStatus = "missed"
)

type VisitPriority string

const (
	PriorityLow    VisitPriority = "low"
	PriorityMedium VisitPriority = "medium"
	PriorityHigh   VisitPriority = "high"
	PriorityUrgent VisitPriority = "urgent"
)

type Visit struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	BranchID        uuid.UUID
	ContractID      uuid.UUID
	ScheduledDate   time.Time
	ScheduledTime   *string // "15:04", date precision is the norm
	TechnicianID    *uuid.UUID
	Priority        VisitPriority
	Status          VisitStatus
	ActualStartAt   *time.Time
	ActualEndAt     *time.Time
	WorkDescription string
	CompletionNotes string
	CancelReason    string
	Parts           []VisitPart
	TotalCost       float64
	Rating          *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// VisitPart records one part consumed during a completed visit.
type VisitPart struct {
	PartID   uuid.UUID
	Quantity int
	UnitCost float64
}

// Terminal reports whether the visit can no longer be mutated by
// normal operations.
func (v *Visit) Terminal() bool {
	return v.Status == VisitStatusCompleted || v.Status == VisitStatusCancelled
}

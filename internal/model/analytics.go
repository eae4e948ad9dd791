package model

import "github.com/google/uuid"

// Dashboard is the aggregate analytics rollup for a tenant/branch scope
// and date range. Everything here is derived at query time.
type Dashboard struct {
	ContractsTotal    int
	ContractsActive   int
	ContractsExpiring int
	ContractsExpired  int
	HealthCounts      map[HealthLabel]int

	VisitsTotal     int
	VisitsCompleted int
	CompletionRate  float64
	OnTimeRate      float64

	Technicians []TechnicianStats
	Revenue     []RevenuePeriod
}

type TechnicianStats struct {
	TechnicianID   uuid.UUID
	Assigned       int
	Completed      int
	CompletionRate float64
	AvgVisitCost   float64
}

// RevenuePeriod attributes completed-visit cost to a calendar month.
type RevenuePeriod struct {
	Period  string // "2026-01"
	Revenue float64
	Visits  int
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

// ContractStore is the persistence surface the services need for
// contracts. Implemented by repository.ContractRepository.
type ContractStore interface {
	Create(ctx context.Context, scope model.Scope, contract *model.Contract) error
	Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Contract, error)
	Update(ctx context.Context, scope model.Scope, contract *model.Contract) error
	UpdateStatus(ctx context.Context, scope model.Scope, id uuid.UUID, from []model.ContractStatus, to model.ContractStatus) error
	List(ctx context.Context, scope model.Scope, status *model.ContractStatus) ([]model.Contract, error)
	ListExpiringBy(ctx context.Context, scope model.Scope, today, deadline time.Time) ([]model.Contract, error)
	ListActive(ctx context.Context, scope model.Scope) ([]model.Contract, error)
	ListExpired(ctx context.Context, today time.Time) ([]model.Contract, error)
	ListActiveAll(ctx context.Context) ([]model.Contract, error)
	HasCompletedVisits(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
}

// VisitStore is the persistence surface for visits. Implemented by
// repository.VisitRepository.
type VisitStore interface {
	Create(ctx context.Context, scope model.Scope, visit *model.Visit) error
	Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Visit, error)
	List(ctx context.Context, scope model.Scope, filter repository.VisitFilter) ([]model.Visit, error)
	ExistingDates(ctx context.Context, scope model.Scope, contractID uuid.UUID) (map[time.Time]struct{}, error)
	Materialize(ctx context.Context, scope model.Scope, contractID uuid.UUID, build func(existing map[time.Time]struct{}) []model.Visit) ([]model.Visit, error)
	Start(ctx context.Context, scope model.Scope, id uuid.UUID, technicianID uuid.UUID, startedAt time.Time) error
	Complete(ctx context.Context, scope model.Scope, in repository.CompleteInput) error
	Reschedule(ctx context.Context, scope model.Scope, id uuid.UUID, date time.Time, timeOfDay *string) error
	Cancel(ctx context.Context, scope model.Scope, id uuid.UUID, reason string) error
	CancelScheduledByContract(ctx context.Context, scope model.Scope, contractID uuid.UUID, reason string) (int64, error)
	CancelScheduledOutsideWindow(ctx context.Context, scope model.Scope, contractID uuid.UUID, start time.Time, end *time.Time, reason string) (int64, error)
	MarkMissed(ctx context.Context, cutoff time.Time) (int64, error)
	CompletionCounts(ctx context.Context, scope model.Scope, contractID uuid.UUID, today time.Time) (int, int, error)
	Correct(ctx context.Context, scope model.Scope, id uuid.UUID, correctedBy uuid.UUID, field, oldValue, newValue, reason string) error
}

// Directory validates customer/product/technician references.
type Directory interface {
	CustomerExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error)
	ProductExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error)
	TechnicianExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error)
}

// AnalyticsStore runs the dashboard aggregate queries.
type AnalyticsStore interface {
	ContractCounts(ctx context.Context, scope model.Scope, today, expiringDeadline time.Time) (repository.ContractCounts, error)
	ContractVisitStats(ctx context.Context, scope model.Scope, today time.Time) ([]repository.ContractVisitStat, error)
	VisitRates(ctx context.Context, scope model.Scope, from, to time.Time, grace time.Duration) (repository.VisitRates, error)
	TechnicianStats(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.TechnicianStats, error)
	RevenueByMonth(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.RevenuePeriod, error)
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeContractStore keeps contracts in memory with the same scope and
// status-guard behavior as the SQL repository.
type fakeContractStore struct {
	contracts map[uuid.UUID]*model.Contract
	completed map[uuid.UUID]bool // contracts with completed visit history
}

func newFakeContractStore() *fakeContractStore {
	return &fakeContractStore{
		contracts: make(map[uuid.UUID]*model.Contract),
		completed: make(map[uuid.UUID]bool),
	}
}

func (f *fakeContractStore) Create(_ context.Context, scope model.Scope, contract *model.Contract) error {
	contract.TenantID = scope.TenantID
	contract.BranchID = scope.BranchID
	stored := *contract
	f.contracts[contract.ID] = &stored
	return nil
}

func (f *fakeContractStore) Get(_ context.Context, scope model.Scope, id uuid.UUID) (*model.Contract, error) {
	contract, ok := f.contracts[id]
	if !ok || contract.TenantID != scope.TenantID || contract.BranchID != scope.BranchID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *contract
	return &copied, nil
}

func (f *fakeContractStore) Update(_ context.Context, scope model.Scope, contract *model.Contract) error {
	existing, ok := f.contracts[contract.ID]
	if !ok || existing.TenantID != scope.TenantID || existing.BranchID != scope.BranchID {
		return gorm.ErrRecordNotFound
	}
	stored := *contract
	stored.TenantID = existing.TenantID
	stored.BranchID = existing.BranchID
	f.contracts[contract.ID] = &stored
	return nil
}

func (f *fakeContractStore) UpdateStatus(_ context.Context, scope model.Scope, id uuid.UUID, from []model.ContractStatus, to model.ContractStatus) error {
	contract, ok := f.contracts[id]
	if !ok || contract.TenantID != scope.TenantID || contract.BranchID != scope.BranchID {
		return gorm.ErrRecordNotFound
	}
	for _, status := range from {
		if contract.Status == status {
			contract.Status = to
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeContractStore) List(_ context.Context, scope model.Scope, status *model.ContractStatus) ([]model.Contract, error) {
	var out []model.Contract
	for _, contract := range f.contracts {
		if contract.TenantID != scope.TenantID || contract.BranchID != scope.BranchID {
			continue
		}
		if status != nil && contract.Status != *status {
			continue
		}
		out = append(out, *contract)
	}
	return out, nil
}

func (f *fakeContractStore) ListExpiringBy(_ context.Context, scope model.Scope, today, deadline time.Time) ([]model.Contract, error) {
	var out []model.Contract
	for _, contract := range f.contracts {
		if contract.TenantID != scope.TenantID || contract.BranchID != scope.BranchID {
			continue
		}
		if contract.Status != model.ContractStatusActive || contract.EndDate == nil {
			continue
		}
		if contract.EndDate.Before(today) || contract.EndDate.After(deadline) {
			continue
		}
		out = append(out, *contract)
	}
	return out, nil
}

func (f *fakeContractStore) ListActive(_ context.Context, scope model.Scope) ([]model.Contract, error) {
	active := model.ContractStatusActive
	return f.List(context.Background(), scope, &active)
}

func (f *fakeContractStore) ListExpired(_ context.Context, today time.Time) ([]model.Contract, error) {
	var out []model.Contract
	for _, contract := range f.contracts {
		if contract.Status != model.ContractStatusActive || contract.EndDate == nil {
			continue
		}
		if contract.EndDate.Before(today) {
			out = append(out, *contract)
		}
	}
	return out, nil
}

func (f *fakeContractStore) ListActiveAll(_ context.Context) ([]model.Contract, error) {
	var out []model.Contract
	for _, contract := range f.contracts {
		if contract.Status == model.ContractStatusActive {
			out = append(out, *contract)
		}
	}
	return out, nil
}

func (f *fakeContractStore) HasCompletedVisits(_ context.Context, _ model.Scope, id uuid.UUID) (bool, error) {
	return f.completed[id], nil
}

func (f *fakeContractStore) Delete(_ context.Context, scope model.Scope, id uuid.UUID) error {
	contract, ok := f.contracts[id]
	if !ok || contract.TenantID != scope.TenantID || contract.BranchID != scope.BranchID {
		return gorm.ErrRecordNotFound
	}
	delete(f.contracts, id)
	return nil
}

type correction struct {
	VisitID     uuid.UUID
	CorrectedBy uuid.UUID
	Field       string
	OldValue    string
	NewValue    string
	Reason      string
}

// fakeVisitStore mirrors the SQL repository's guards: duplicate dates
// per contract, status-guarded transitions and atomic stock decrements.
type fakeVisitStore struct {
	visits      map[uuid.UUID]*model.Visit
	stock       map[uuid.UUID]int
	movements   []model.StockMovement
	corrections []correction
}

func newFakeVisitStore() *fakeVisitStore {
	return &fakeVisitStore{
		visits: make(map[uuid.UUID]*model.Visit),
		stock:  make(map[uuid.UUID]int),
	}
}

func (f *fakeVisitStore) hasDate(contractID uuid.UUID, scheduled time.Time) bool {
	for _, visit := range f.visits {
		if visit.ContractID == contractID && visit.ScheduledDate.Equal(scheduled) {
			return true
		}
	}
	return false
}

func (f *fakeVisitStore) Create(_ context.Context, scope model.Scope, visit *model.Visit) error {
	if f.hasDate(visit.ContractID, visit.ScheduledDate) {
		return repository.ErrDuplicate
	}
	visit.TenantID = scope.TenantID
	visit.BranchID = scope.BranchID
	stored := *visit
	f.visits[visit.ID] = &stored
	return nil
}

func (f *fakeVisitStore) Get(_ context.Context, scope model.Scope, id uuid.UUID) (*model.Visit, error) {
	visit, ok := f.visits[id]
	if !ok || visit.TenantID != scope.TenantID || visit.BranchID != scope.BranchID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *visit
	copied.Parts = append([]model.VisitPart(nil), visit.Parts...)
	return &copied, nil
}

func (f *fakeVisitStore) List(_ context.Context, scope model.Scope, filter repository.VisitFilter) ([]model.Visit, error) {
	var out []model.Visit
	for _, visit := range f.visits {
		if visit.TenantID != scope.TenantID || visit.BranchID != scope.BranchID {
			continue
		}
		if filter.ContractID != nil && visit.ContractID != *filter.ContractID {
			continue
		}
		if filter.TechnicianID != nil && (visit.TechnicianID == nil || *visit.TechnicianID != *filter.TechnicianID) {
			continue
		}
		if filter.Status != nil && visit.Status != *filter.Status {
			continue
		}
		if filter.From != nil && visit.ScheduledDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && visit.ScheduledDate.After(*filter.To) {
			continue
		}
		out = append(out, *visit)
	}
	return out, nil
}

func (f *fakeVisitStore) ExistingDates(_ context.Context, _ model.Scope, contractID uuid.UUID) (map[time.Time]struct{}, error) {
	existing := make(map[time.Time]struct{})
	for _, visit := range f.visits {
		if visit.ContractID == contractID {
			existing[visit.ScheduledDate] = struct{}{}
		}
	}
	return existing, nil
}

func (f *fakeVisitStore) Materialize(ctx context.Context, scope model.Scope, contractID uuid.UUID, build func(existing map[time.Time]struct{}) []model.Visit) ([]model.Visit, error) {
	existing, _ := f.ExistingDates(ctx, scope, contractID)
	var created []model.Visit
	for _, visit := range build(existing) {
		v := visit
		if err := f.Create(ctx, scope, &v); err != nil {
			return nil, err
		}
		created = append(created, v)
	}
	return created, nil
}

func (f *fakeVisitStore) Start(_ context.Context, scope model.Scope, id uuid.UUID, technicianID uuid.UUID, startedAt time.Time) error {
	visit, ok := f.visits[id]
	if !ok || visit.TenantID != scope.TenantID || visit.Status != model.VisitStatusScheduled {
		return repository.ErrStale
	}
	visit.Status = model.VisitStatusInProgress
	visit.ActualStartAt = &startedAt
	if visit.TechnicianID == nil {
		tid := technicianID
		visit.TechnicianID = &tid
	}
	return nil
}

func (f *fakeVisitStore) Complete(_ context.Context, scope model.Scope, in repository.CompleteInput) error {
	visit, ok := f.visits[in.VisitID]
	if !ok || visit.TenantID != scope.TenantID || visit.Status != model.VisitStatusInProgress {
		return repository.ErrStale
	}

	// All-or-nothing: verify every part before decrementing anything.
	for _, part := range in.Parts {
		if f.stock[part.PartID] < part.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	for _, part := range in.Parts {
		f.stock[part.PartID] -= part.Quantity
		visitID := in.VisitID
		f.movements = append(f.movements, model.StockMovement{
			ID:            uuid.New(),
			TenantID:      scope.TenantID,
			BranchID:      scope.BranchID,
			PartID:        part.PartID,
			QuantityDelta: -part.Quantity,
			VisitID:       &visitID,
		})
	}

	visit.Status = model.VisitStatusCompleted
	visit.ActualEndAt = &in.EndedAt
	visit.CompletionNotes = in.Notes
	visit.TotalCost = in.TotalCost
	visit.Rating = in.Rating
	visit.Parts = append([]model.VisitPart(nil), in.Parts...)
	return nil
}

func (f *fakeVisitStore) Reschedule(_ context.Context, scope model.Scope, id uuid.UUID, scheduled time.Time, timeOfDay *string) error {
	visit, ok := f.visits[id]
	if !ok || visit.TenantID != scope.TenantID {
		return repository.ErrStale
	}
	if visit.Status != model.VisitStatusScheduled && visit.Status != model.VisitStatusInProgress {
		return repository.ErrStale
	}
	if !visit.ScheduledDate.Equal(scheduled) && f.hasDate(visit.ContractID, scheduled) {
		return repository.ErrDuplicate
	}
	visit.ScheduledDate = scheduled
	visit.ScheduledTime = timeOfDay
	visit.Status = model.VisitStatusScheduled
	visit.ActualStartAt = nil
	return nil
}

func (f *fakeVisitStore) Cancel(_ context.Context, scope model.Scope, id uuid.UUID, reason string) error {
	visit, ok := f.visits[id]
	if !ok || visit.TenantID != scope.TenantID || visit.Status != model.VisitStatusScheduled {
		return repository.ErrStale
	}
	visit.Status = model.VisitStatusCancelled
	visit.CancelReason = reason
	return nil
}

func (f *fakeVisitStore) CancelScheduledByContract(_ context.Context, scope model.Scope, contractID uuid.UUID, reason string) (int64, error) {
	var count int64
	for _, visit := range f.visits {
		if visit.ContractID == contractID && visit.TenantID == scope.TenantID && visit.Status == model.VisitStatusScheduled {
			visit.Status = model.VisitStatusCancelled
			visit.CancelReason = reason
			count++
		}
	}
	return count, nil
}

func (f *fakeVisitStore) CancelScheduledOutsideWindow(_ context.Context, scope model.Scope, contractID uuid.UUID, start time.Time, end *time.Time, reason string) (int64, error) {
	var count int64
	for _, visit := range f.visits {
		if visit.ContractID != contractID || visit.TenantID != scope.TenantID || visit.Status != model.VisitStatusScheduled {
			continue
		}
		outside := visit.ScheduledDate.Before(start)
		if end != nil && visit.ScheduledDate.After(*end) {
			outside = true
		}
		if outside {
			visit.Status = model.VisitStatusCancelled
			visit.CancelReason = reason
			count++
		}
	}
	return count, nil
}

func (f *fakeVisitStore) MarkMissed(_ context.Context, cutoff time.Time) (int64, error) {
	var count int64
	for _, visit := range f.visits {
		if visit.Status == model.VisitStatusScheduled && !visit.ScheduledDate.After(cutoff) {
			visit.Status = model.VisitStatusMissed
			count++
		}
	}
	return count, nil
}

func (f *fakeVisitStore) CompletionCounts(_ context.Context, _ model.Scope, contractID uuid.UUID, today time.Time) (int, int, error) {
	completed, total := 0, 0
	for _, visit := range f.visits {
		if visit.ContractID != contractID || visit.ScheduledDate.After(today) {
			continue
		}
		total++
		if visit.Status == model.VisitStatusCompleted {
			completed++
		}
	}
	return completed, total, nil
}

func (f *fakeVisitStore) Correct(_ context.Context, scope model.Scope, id uuid.UUID, correctedBy uuid.UUID, field, oldValue, newValue, reason string) error {
	visit, ok := f.visits[id]
	if !ok || visit.TenantID != scope.TenantID || !visit.Terminal() {
		return repository.ErrStale
	}
	if field == "completion_notes" {
		visit.CompletionNotes = newValue
	}
	f.corrections = append(f.corrections, correction{
		VisitID:     id,
		CorrectedBy: correctedBy,
		Field:       field,
		OldValue:    oldValue,
		NewValue:    newValue,
		Reason:      reason,
	})
	return nil
}

// fakeDirectory accepts the IDs seeded into it.
type fakeDirectory struct {
	customers   map[uuid.UUID]bool
	products    map[uuid.UUID]bool
	technicians map[uuid.UUID]bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		customers:   make(map[uuid.UUID]bool),
		products:    make(map[uuid.UUID]bool),
		technicians: make(map[uuid.UUID]bool),
	}
}

func (f *fakeDirectory) CustomerExists(_ context.Context, _ model.Scope, id uuid.UUID) (bool, error) {
	return f.customers[id], nil
}

func (f *fakeDirectory) ProductExists(_ context.Context, _ model.Scope, id uuid.UUID) (bool, error) {
	return f.products[id], nil
}

func (f *fakeDirectory) TechnicianExists(_ context.Context, _ model.Scope, id uuid.UUID) (bool, error) {
	return f.technicians[id], nil
}

// fakeAnalyticsStore returns canned aggregates.
type fakeAnalyticsStore struct {
	counts      repository.ContractCounts
	visitStats  []repository.ContractVisitStat
	rates       repository.VisitRates
	technicians []model.TechnicianStats
	revenue     []model.RevenuePeriod
}

func (f *fakeAnalyticsStore) ContractCounts(_ context.Context, _ model.Scope, _, _ time.Time) (repository.ContractCounts, error) {
	return f.counts, nil
}

func (f *fakeAnalyticsStore) ContractVisitStats(_ context.Context, _ model.Scope, _ time.Time) ([]repository.ContractVisitStat, error) {
	return f.visitStats, nil
}

func (f *fakeAnalyticsStore) VisitRates(_ context.Context, _ model.Scope, _, _ time.Time, _ time.Duration) (repository.VisitRates, error) {
	return f.rates, nil
}

func (f *fakeAnalyticsStore) TechnicianStats(_ context.Context, _ model.Scope, _, _ time.Time) ([]model.TechnicianStats, error) {
	return f.technicians, nil
}

func (f *fakeAnalyticsStore) RevenueByMonth(_ context.Context, _ model.Scope, _, _ time.Time) ([]model.RevenuePeriod, error) {
	return f.revenue, nil
}

// testWorld bundles the fakes plus the principals tests reuse.
type testWorld struct {
	contracts  *fakeContractStore
	visits     *fakeVisitStore
	directory  *fakeDirectory
	owner      model.Principal
	manager    model.Principal
	technician model.Principal
}

func newTestWorld() *testWorld {
	tenantID := uuid.New()
	branchID := uuid.New()
	world := &testWorld{
		contracts: newFakeContractStore(),
		visits:    newFakeVisitStore(),
		directory: newFakeDirectory(),
		owner: model.Principal{
			UserID:   uuid.New(),
			TenantID: tenantID,
			BranchID: branchID,
			Role:     model.RoleOwner,
		},
		manager: model.Principal{
			UserID:   uuid.New(),
			TenantID: tenantID,
			BranchID: branchID,
			Role:     model.RoleManager,
		},
		technician: model.Principal{
			UserID:   uuid.New(),
			TenantID: tenantID,
			BranchID: branchID,
			Role:     model.RoleTechnician,
		},
	}
	return world
}

func (w *testWorld) validInput() ContractInput {
	customerID := uuid.New()
	productID := uuid.New()
	w.directory.customers[customerID] = true
	w.directory.products[productID] = true
	end := date(2026, time.June, 30)
	return ContractInput{
		CustomerID: customerID,
		ProductID:  productID,
		Frequency:  model.Frequency{Kind: model.FrequencyInterval, Value: 1, Unit: model.UnitMonth},
		StartDate:  date(2026, time.January, 15),
		EndDate:    &end,
		Value:      1200,
	}
}

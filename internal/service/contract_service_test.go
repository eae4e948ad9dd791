package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/maintenance-visits/internal/model"
)

func newContractService(world *testWorld, now time.Time) *ContractService {
	return NewContractService(world.contracts, world.visits, world.directory, nopLogger(), 30).
		WithClock(fixedClock(now), uuid.New)
}

func TestCreateContract(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))

	contract, err := svc.Create(context.Background(), world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if contract.Status != model.ContractStatusActive {
		t.Fatalf("status = %s, want active", contract.Status)
	}
	if contract.TenantID != world.owner.TenantID || contract.BranchID != world.owner.BranchID {
		t.Fatal("contract not stamped with caller scope")
	}
	if !contract.StartDate.Equal(date(2026, time.January, 15)) {
		t.Fatalf("start date = %s", contract.StartDate)
	}
}

func TestCreateContractValidation(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*ContractInput)
	}{
		{"zero interval", func(in *ContractInput) { in.Frequency.Value = 0 }},
		{"unknown unit", func(in *ContractInput) { in.Frequency.Unit = "fortnight" }},
		{"unknown kind", func(in *ContractInput) { in.Frequency.Kind = "sometimes" }},
		{"end before start", func(in *ContractInput) {
			end := date(2026, time.January, 1)
			in.EndDate = &end
		}},
		{"end equals start", func(in *ContractInput) {
			end := in.StartDate
			in.EndDate = &end
		}},
		{"negative value", func(in *ContractInput) { in.Value = -1 }},
		{"unknown customer", func(in *ContractInput) { in.CustomerID = uuid.New() }},
		{"unknown product", func(in *ContractInput) { in.ProductID = uuid.New() }},
		{"unknown technician", func(in *ContractInput) {
			id := uuid.New()
			in.TechnicianID = &id
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := world.validInput()
			tc.mutate(&input)
			if _, err := svc.Create(ctx, world.owner, input); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateContractDeniedForTechnician(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))

	if _, err := svc.Create(context.Background(), world.technician, world.validInput()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestContractLifecycle(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))
	ctx := context.Background()

	contract, err := svc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Resume(ctx, world.owner, contract.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("resume active: err = %v, want ErrInvalidTransition", err)
	}

	if err := svc.Pause(ctx, world.owner, contract.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	paused, _ := svc.Get(ctx, world.owner, contract.ID)
	if paused.Status != model.ContractStatusPaused {
		t.Fatalf("status = %s, want paused", paused.Status)
	}

	if err := svc.Pause(ctx, world.owner, contract.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pause paused: err = %v, want ErrInvalidTransition", err)
	}

	if err := svc.Resume(ctx, world.owner, contract.ID); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if err := svc.Pause(ctx, world.owner, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("pause missing: err = %v, want ErrNotFound", err)
	}
}

func TestCancelContractCancelsScheduledVisits(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))
	ctx := context.Background()

	contract, err := svc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	scheduled := seedVisit(world, contract, date(2026, time.February, 15), model.VisitStatusScheduled)
	completed := seedVisit(world, contract, date(2026, time.January, 15), model.VisitStatusCompleted)

	if err := svc.Cancel(ctx, world.owner, contract.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	if world.visits.visits[scheduled].Status != model.VisitStatusCancelled {
		t.Fatal("scheduled visit should be cancelled with the contract")
	}
	if world.visits.visits[completed].Status != model.VisitStatusCompleted {
		t.Fatal("completed visit must never be touched")
	}

	got, _ := svc.Get(ctx, world.owner, contract.ID)
	if got.Status != model.ContractStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
}

func TestDeleteContractRefusedWithHistory(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))
	ctx := context.Background()

	contract, err := svc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	world.contracts.completed[contract.ID] = true

	if err := svc.Delete(ctx, world.owner, contract.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, ok := world.contracts.contracts[contract.ID]; !ok {
		t.Fatal("contract must survive a refused delete")
	}

	world.contracts.completed[contract.ID] = false
	if err := svc.Delete(ctx, world.owner, contract.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := world.contracts.contracts[contract.ID]; ok {
		t.Fatal("contract should be gone")
	}
}

func TestRenewContract(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.June, 1))
	ctx := context.Background()

	contract, err := svc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	newEnd := date(2027, time.June, 30)
	renewed, err := svc.Renew(ctx, world.owner, contract.ID, date(2026, time.July, 1), &newEnd)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.ID == contract.ID {
		t.Fatal("renewal must create a new contract")
	}
	if renewed.CustomerID != contract.CustomerID || renewed.Value != contract.Value {
		t.Fatal("renewal must carry the original terms")
	}
	if renewed.Status != model.ContractStatusActive {
		t.Fatalf("renewed status = %s, want active", renewed.Status)
	}

	original, _ := svc.Get(ctx, world.owner, contract.ID)
	if original.Status != model.ContractStatusActive || !original.EndDate.Equal(date(2026, time.June, 30)) {
		t.Fatal("original contract must stay untouched")
	}
}

func TestUpdateShrunkWindowCancelsOutsideVisits(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.January, 1))
	ctx := context.Background()

	contract, err := svc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inside := seedVisit(world, contract, date(2026, time.February, 15), model.VisitStatusScheduled)
	outside := seedVisit(world, contract, date(2026, time.June, 15), model.VisitStatusScheduled)

	input := world.validInput()
	input.CustomerID = contract.CustomerID
	input.ProductID = contract.ProductID
	end := date(2026, time.March, 31)
	input.EndDate = &end

	if _, err := svc.Update(ctx, world.owner, contract.ID, input); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if world.visits.visits[inside].Status != model.VisitStatusScheduled {
		t.Fatal("visit inside the new window must stay scheduled")
	}
	if world.visits.visits[outside].Status != model.VisitStatusCancelled {
		t.Fatal("visit outside the new window must be cancelled")
	}
	if world.visits.visits[outside].CancelReason == "" {
		t.Fatal("automatic cancellation must carry a reason")
	}
}

func TestExpireSweepIdempotent(t *testing.T) {
	world := newTestWorld()
	svc := newContractService(world, date(2026, time.July, 10))
	ctx := context.Background()

	createSvc := newContractService(world, date(2026, time.January, 1))
	contract, err := createSvc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	pending := seedVisit(world, contract, date(2026, time.June, 29), model.VisitStatusScheduled)

	count, err := svc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("ExpireSweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expired = %d, want 1", count)
	}
	got, _ := svc.Get(ctx, world.owner, contract.ID)
	if got.Status != model.ContractStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if world.visits.visits[pending].Status != model.VisitStatusCancelled {
		t.Fatal("remaining scheduled visit should be cancelled on expiry")
	}

	count, err = svc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("second ExpireSweep: %v", err)
	}
	if count != 0 {
		t.Fatalf("second sweep expired = %d, want 0", count)
	}
}

func TestListExpiring(t *testing.T) {
	world := newTestWorld()
	now := date(2026, time.June, 10)
	svc := newContractService(world, now)
	ctx := context.Background()

	expiring, err := svc.Create(ctx, world.owner, world.validInput()) // ends 2026-06-30
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	farInput := world.validInput()
	farEnd := date(2027, time.June, 30)
	farInput.EndDate = &farEnd
	if _, err := svc.Create(ctx, world.owner, farInput); err != nil {
		t.Fatalf("Create far: %v", err)
	}

	got, err := svc.ListExpiring(ctx, world.manager, 0)
	if err != nil {
		t.Fatalf("ListExpiring: %v", err)
	}
	if len(got) != 1 || got[0].ID != expiring.ID {
		t.Fatalf("got %d contracts, want only the one expiring within 30 days", len(got))
	}
}

func TestContractHealthFromVisits(t *testing.T) {
	world := newTestWorld()
	now := date(2026, time.March, 20)
	svc := newContractService(world, now)
	ctx := context.Background()

	input := world.validInput()
	end := date(2026, time.December, 31)
	input.EndDate = &end
	contract, err := svc.Create(ctx, world.owner, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	seedVisit(world, contract, date(2026, time.January, 15), model.VisitStatusCompleted)
	seedVisit(world, contract, date(2026, time.February, 15), model.VisitStatusMissed)
	seedVisit(world, contract, date(2026, time.March, 15), model.VisitStatusScheduled)
	seedVisit(world, contract, date(2026, time.April, 15), model.VisitStatusScheduled) // future, excluded

	health, err := svc.Health(ctx, world.owner, contract.ID)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.CompletedVisits != 1 || health.TotalVisits != 3 {
		t.Fatalf("counts = %d/%d, want 1/3", health.CompletedVisits, health.TotalVisits)
	}
	if health.Label != model.HealthCritical {
		t.Fatalf("label = %s, want critical for 1/3", health.Label)
	}
}

// seedVisit drops a visit directly into the fake store, bypassing the
// scheduling service.
func seedVisit(world *testWorld, contract *model.Contract, scheduled time.Time, status model.VisitStatus) uuid.UUID {
	id := uuid.New()
	world.visits.visits[id] = &model.Visit{
		ID:            id,
		TenantID:      contract.TenantID,
		BranchID:      contract.BranchID,
		ContractID:    contract.ID,
		ScheduledDate: scheduled,
		Priority:      model.PriorityMedium,
		Status:        status,
	}
	return id
}

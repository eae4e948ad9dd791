package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/auth"
	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/recurrence"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

// SchedulingService turns contract recurrence rules into persisted
// visits and serves the calendar view.
type SchedulingService struct {
	contracts ContractStore
	visits    VisitStore
	log       zerolog.Logger
	now       Clock
	newID     IDGen
}

func NewSchedulingService(contracts ContractStore, visits VisitStore, log zerolog.Logger) *SchedulingService {
	return &SchedulingService{
		contracts: contracts,
		visits:    visits,
		log:       log,
		now:       systemClock,
		newID:     uuid.New,
	}
}

// WithClock pins the service clock and id generator. Test hook.
func (s *SchedulingService) WithClock(now Clock, newID IDGen) *SchedulingService {
	s.now = now
	s.newID = newID
	return s
}

// MaterializeContract creates the missing visit rows for a contract
// through the given date. Existing dates are excluded under a
// per-contract lock, so calling this N times with no contract change in
// between creates each visit exactly once. Paused and closed contracts
// are a no-op.
func (s *SchedulingService) MaterializeContract(ctx context.Context, principal model.Principal, contractID uuid.UUID, through time.Time) ([]model.Visit, error) {
	if !auth.Can(principal, auth.ActionScheduleVisits) {
		s.logDenied(principal, "visit.materialize")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	contract, err := s.contracts.Get(ctx, scope, contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.materialize(ctx, scope, contract, through)
}

func (s *SchedulingService) materialize(ctx context.Context, scope model.Scope, contract *model.Contract, through time.Time) ([]model.Visit, error) {
	if contract.Status != model.ContractStatusActive {
		return nil, nil
	}

	created, err := s.visits.Materialize(ctx, scope, contract.ID, func(existing map[time.Time]struct{}) []model.Visit {
		dates := recurrence.Dates(contract.Frequency, contract.StartDate, contract.EndDate, through, existing)
		visits := make([]model.Visit, 0, len(dates))
		for _, date := range dates {
			visits = append(visits, s.newVisit(contract, date))
		}
		return visits
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: materialization raced", ErrConflict)
		}
		return nil, err
	}

	if len(created) > 0 {
		s.log.Info().
			Str("contract_id", contract.ID.String()).
			Int("visits_created", len(created)).
			Str("through", through.Format("2006-01-02")).
			Msg("visits materialized")
	}
	return created, nil
}

// MaterializeDue materializes every active contract through the horizon.
// Called by the periodic sweep outside any caller scope.
func (s *SchedulingService) MaterializeDue(ctx context.Context, through time.Time) (int, error) {
	contracts, err := s.contracts.ListActiveAll(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range contracts {
		contract := &contracts[i]
		scope := model.Scope{TenantID: contract.TenantID, BranchID: contract.BranchID}
		created, err := s.materialize(ctx, scope, contract, through)
		if err != nil {
			s.log.Error().Err(err).
				Str("contract_id", contract.ID.String()).
				Msg("horizon materialization failed for contract")
			continue
		}
		total += len(created)
	}
	return total, nil
}

// Calendar returns the union of persisted visits in the range and
// virtual projected occurrences for active contracts that have not been
// materialized yet. Virtual entries are not independently actionable;
// they exist so the UI can offer "materialize and schedule".
func (s *SchedulingService) Calendar(ctx context.Context, principal model.Principal, from, to time.Time) ([]model.CalendarEntry, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "calendar.view")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrValidation)
	}

	real, err := s.visits.List(ctx, scope, repository.VisitFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	entries := make([]model.CalendarEntry, 0, len(real))
	for i := range real {
		visit := real[i]
		entries = append(entries, model.CalendarEntry{
			Kind:       model.CalendarEntryReal,
			Date:       visit.ScheduledDate,
			ContractID: visit.ContractID,
			Visit:      &visit,
		})
	}

	active, err := s.contracts.ListActive(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, contract := range active {
		existing, err := s.visits.ExistingDates(ctx, scope, contract.ID)
		if err != nil {
			return nil, err
		}
		for _, date := range recurrence.Dates(contract.Frequency, contract.StartDate, contract.EndDate, to, existing) {
			if date.Before(from) {
				continue
			}
			entries = append(entries, model.CalendarEntry{
				Kind:       model.CalendarEntryVirtual,
				Date:       date,
				ContractID: contract.ID,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].Kind == model.CalendarEntryReal && entries[j].Kind == model.CalendarEntryVirtual
	})
	return entries, nil
}

type ScheduleVisitInput struct {
	ContractID    uuid.UUID
	ScheduledDate time.Time
	ScheduledTime *string
	TechnicianID  *uuid.UUID
	Priority      model.VisitPriority
	Description   string
}

// ScheduleVisit creates one visit by hand, outside the recurrence rule.
func (s *SchedulingService) ScheduleVisit(ctx context.Context, principal model.Principal, input ScheduleVisitInput) (*model.Visit, error) {
	if !auth.Can(principal, auth.ActionScheduleVisits) {
		s.logDenied(principal, "visit.schedule")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	contract, err := s.contracts.Get(ctx, scope, input.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if contract.Status != model.ContractStatusActive {
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalidTransition, contract.Status)
	}

	date := dateOnly(input.ScheduledDate)
	if date.Before(dateOnly(contract.StartDate)) {
		return nil, fmt.Errorf("%w: visit date before contract start", ErrValidation)
	}
	if contract.EndDate != nil && date.After(dateOnly(*contract.EndDate)) {
		return nil, fmt.Errorf("%w: visit date after contract end", ErrValidation)
	}

	visit := s.newVisit(contract, date)
	visit.ScheduledTime = input.ScheduledTime
	if input.TechnicianID != nil {
		visit.TechnicianID = input.TechnicianID
	}
	if input.Priority != "" {
		visit.Priority = input.Priority
	}
	if input.Description != "" {
		visit.WorkDescription = input.Description
	}

	if err := s.visits.Create(ctx, scope, &visit); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a visit already exists on %s", ErrConflict, date.Format("2006-01-02"))
		}
		return nil, err
	}
	return &visit, nil
}

func (s *SchedulingService) logDenied(principal model.Principal, operation string) {
	s.log.Warn().
		Str("user_id", principal.UserID.String()).
		Str("tenant_id", principal.TenantID.String()).
		Str("role", string(principal.Role)).
		Str("operation", operation).
		Msg("access denied")
}

func (s *SchedulingService) newVisit(contract *model.Contract, date time.Time) model.Visit {
	return model.Visit{
		ID:              s.newID(),
		TenantID:        contract.TenantID,
		BranchID:        contract.BranchID,
		ContractID:      contract.ID,
		ScheduledDate:   date,
		TechnicianID:    contract.TechnicianID,
		Priority:        model.PriorityMedium,
		Status:          model.VisitStatusScheduled,
		WorkDescription: contract.Instructions,
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/auth"
	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

// ExecutionService drives the per-visit workflow: start, complete with
// parts and cost capture, reschedule, cancel, and the missed sweep.
type ExecutionService struct {
	visits      VisitStore
	contracts   ContractStore
	log         zerolog.Logger
	now         Clock
	missedGrace time.Duration
}

func NewExecutionService(visits VisitStore, contracts ContractStore, log zerolog.Logger, missedGrace time.Duration) *ExecutionService {
	return &ExecutionService{
		visits:      visits,
		contracts:   contracts,
		log:         log,
		now:         systemClock,
		missedGrace: missedGrace,
	}
}

// WithClock pins the service clock. Test hook.
func (s *ExecutionService) WithClock(now Clock) *ExecutionService {
	s.now = now
	return s
}

// Start moves a scheduled visit to in_progress and records the actual
// start time. A technician may start their own visit or claim an
// unassigned one, which assigns it to them; managers and owners can
// start any.
func (s *ExecutionService) Start(ctx context.Context, principal model.Principal, visitID uuid.UUID) (*model.Visit, error) {
	if !auth.Can(principal, auth.ActionExecuteVisits) {
		s.logDenied(principal, "visit.start")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	visit, err := s.get(ctx, scope, visitID)
	if err != nil {
		return nil, err
	}
	if visit.Status != model.VisitStatusScheduled {
		return nil, fmt.Errorf("%w: cannot start a %s visit", ErrInvalidTransition, visit.Status)
	}
	if principal.IsTechnician() && visit.TechnicianID != nil && *visit.TechnicianID != principal.UserID {
		s.logDenied(principal, "visit.start")
		return nil, fmt.Errorf("%w: visit is assigned to another technician", ErrAccessDenied)
	}

	startedAt := s.now()
	if err := s.visits.Start(ctx, scope, visitID, principal.UserID, startedAt); err != nil {
		return nil, s.mapStoreErr(err)
	}
	return s.get(ctx, scope, visitID)
}

type PartLine struct {
	PartID   uuid.UUID
	Quantity int
	UnitCost float64
}

type CompleteVisitInput struct {
	Notes             string
	Parts             []PartLine
	Rating            *int
	TotalCostOverride *float64
}

// Complete finishes an in-progress visit. The status change, the stock
// decrements and the movement audit records commit atomically; an
// insufficient part quantity rolls everything back and the visit stays
// in progress.
func (s *ExecutionService) Complete(ctx context.Context, principal model.Principal, visitID uuid.UUID, input CompleteVisitInput) (*model.Visit, error) {
	if !auth.Can(principal, auth.ActionExecuteVisits) {
		s.logDenied(principal, "visit.complete")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	visit, err := s.get(ctx, scope, visitID)
	if err != nil {
		return nil, err
	}
	if visit.Status != model.VisitStatusInProgress {
		return nil, fmt.Errorf("%w: cannot complete a %s visit", ErrInvalidTransition, visit.Status)
	}
	if principal.IsTechnician() && visit.TechnicianID != nil && *visit.TechnicianID != principal.UserID {
		s.logDenied(principal, "visit.complete")
		return nil, fmt.Errorf("%w: visit is assigned to another technician", ErrAccessDenied)
	}

	if strings.TrimSpace(input.Notes) == "" {
		return nil, fmt.Errorf("%w: completion notes are required", ErrValidation)
	}
	if input.Rating != nil && (*input.Rating < 1 || *input.Rating > 5) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	parts := make([]model.VisitPart, 0, len(input.Parts))
	computedCost := 0.0
	for _, line := range input.Parts {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: part quantity must be at least 1", ErrValidation)
		}
		if line.UnitCost < 0 {
			return nil, fmt.Errorf("%w: part unit cost must not be negative", ErrValidation)
		}
		parts = append(parts, model.VisitPart{
			PartID:   line.PartID,
			Quantity: line.Quantity,
			UnitCost: line.UnitCost,
		})
		computedCost += float64(line.Quantity) * line.UnitCost
	}

	totalCost := computedCost
	if input.TotalCostOverride != nil {
		if *input.TotalCostOverride < 0 {
			return nil, fmt.Errorf("%w: total cost must not be negative", ErrValidation)
		}
		totalCost = *input.TotalCostOverride
	}

	err = s.visits.Complete(ctx, scope, repository.CompleteInput{
		VisitID:   visitID,
		EndedAt:   s.now(),
		Notes:     input.Notes,
		TotalCost: totalCost,
		Rating:    input.Rating,
		Parts:     parts,
	})
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientStock) {
			return nil, fmt.Errorf("%w: requested part quantity exceeds branch stock", ErrInsufficientStock)
		}
		return nil, s.mapStoreErr(err)
	}

	s.log.Info().
		Str("visit_id", visitID.String()).
		Int("parts", len(parts)).
		Float64("total_cost", totalCost).
		Msg("visit completed")
	return s.get(ctx, scope, visitID)
}

// Reschedule moves a visit to a new date/time and returns it to
// scheduled. From in_progress it is a manager/owner override that also
// clears the recorded start.
func (s *ExecutionService) Reschedule(ctx context.Context, principal model.Principal, visitID uuid.UUID, date time.Time, timeOfDay *string) (*model.Visit, error) {
	if !auth.Can(principal, auth.ActionExecuteVisits) {
		s.logDenied(principal, "visit.reschedule")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	visit, err := s.get(ctx, scope, visitID)
	if err != nil {
		return nil, err
	}
	switch visit.Status {
	case model.VisitStatusScheduled:
	case model.VisitStatusInProgress:
		if principal.IsTechnician() {
			return nil, fmt.Errorf("%w: only a manager can reschedule a started visit", ErrAccessDenied)
		}
	default:
		return nil, fmt.Errorf("%w: cannot reschedule a %s visit", ErrInvalidTransition, visit.Status)
	}

	contract, err := s.contracts.Get(ctx, scope, visit.ContractID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	date = dateOnly(date)
	if date.Before(dateOnly(contract.StartDate)) {
		return nil, fmt.Errorf("%w: new date before contract start", ErrValidation)
	}
	if contract.EndDate != nil && date.After(dateOnly(*contract.EndDate)) {
		return nil, fmt.Errorf("%w: new date after contract end", ErrValidation)
	}

	if err := s.visits.Reschedule(ctx, scope, visitID, date, timeOfDay); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a visit already exists on %s", ErrConflict, date.Format("2006-01-02"))
		}
		return nil, s.mapStoreErr(err)
	}
	return s.get(ctx, scope, visitID)
}

// Cancel cancels a scheduled visit with a reason. Started and finished
// visits cannot be cancelled.
func (s *ExecutionService) Cancel(ctx context.Context, principal model.Principal, visitID uuid.UUID, reason string) error {
	if !auth.Can(principal, auth.ActionScheduleVisits) {
		s.logDenied(principal, "visit.cancel")
		return ErrAccessDenied
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a cancellation reason is required", ErrValidation)
	}
	scope := principal.Scope()

	visit, err := s.get(ctx, scope, visitID)
	if err != nil {
		return err
	}
	if visit.Status != model.VisitStatusScheduled {
		return fmt.Errorf("%w: cannot cancel a %s visit", ErrInvalidTransition, visit.Status)
	}
	return s.mapStoreErr(s.visits.Cancel(ctx, scope, visitID, reason))
}

// MarkMissedSweep flags scheduled visits whose date plus the grace
// period has elapsed with no start. Visits a technician already started
// are never touched. Idempotent: flagged visits leave the scheduled set.
func (s *ExecutionService) MarkMissedSweep(ctx context.Context) (int64, error) {
	cutoff := dateOnly(s.now().Add(-s.missedGrace))
	count, err := s.visits.MarkMissed(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info().Int64("visits_missed", count).Msg("missed-visit sweep finished")
	}
	return count, nil
}

// AdminCorrect alters a terminal visit through the audited correction
// path. Owner only.
func (s *ExecutionService) AdminCorrect(ctx context.Context, principal model.Principal, visitID uuid.UUID, field, newValue, reason string) error {
	if !auth.Can(principal, auth.ActionCorrectVisits) {
		s.logDenied(principal, "visit.correct")
		return ErrAccessDenied
	}
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: a correction reason is required", ErrValidation)
	}
	scope := principal.Scope()

	visit, err := s.get(ctx, scope, visitID)
	if err != nil {
		return err
	}
	if !visit.Terminal() {
		return fmt.Errorf("%w: corrections apply to completed or cancelled visits only", ErrInvalidTransition)
	}

	oldValue := ""
	switch field {
	case "completion_notes":
		oldValue = visit.CompletionNotes
	case "total_cost":
		oldValue = fmt.Sprintf("%.2f", visit.TotalCost)
	case "rating":
		if visit.Rating != nil {
			oldValue = fmt.Sprintf("%d", *visit.Rating)
		}
	default:
		return fmt.Errorf("%w: field %q is not correctable", ErrValidation, field)
	}

	if err := s.visits.Correct(ctx, scope, visitID, principal.UserID, field, oldValue, newValue, reason); err != nil {
		return s.mapStoreErr(err)
	}
	s.log.Info().
		Str("visit_id", visitID.String()).
		Str("field", field).
		Str("corrected_by", principal.UserID.String()).
		Msg("administrative correction applied")
	return nil
}

func (s *ExecutionService) Get(ctx context.Context, principal model.Principal, visitID uuid.UUID) (*model.Visit, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "visit.get")
		return nil, ErrAccessDenied
	}
	return s.get(ctx, principal.Scope(), visitID)
}

func (s *ExecutionService) List(ctx context.Context, principal model.Principal, filter repository.VisitFilter) ([]model.Visit, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "visit.list")
		return nil, ErrAccessDenied
	}
	return s.visits.List(ctx, principal.Scope(), filter)
}

func (s *ExecutionService) get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Visit, error) {
	visit, err := s.visits.Get(ctx, scope, id)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return visit, nil
}

func (s *ExecutionService) mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStale):
		return fmt.Errorf("%w: visit changed, retry", ErrConflict)
	default:
		return err
	}
}

func (s *ExecutionService) logDenied(principal model.Principal, operation string) {
	s.log.Warn().
		Str("user_id", principal.UserID.String()).
		Str("tenant_id", principal.TenantID.String()).
		Str("role", string(principal.Role)).
		Str("operation", operation).
		Msg("access denied")
}

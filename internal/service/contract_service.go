package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/auth"
	"github.com/fieldops/maintenance-visits/internal/model"
)

// ContractService drives the contract lifecycle and derives health.
type ContractService struct {
	contracts        ContractStore
	visits           VisitStore
	directory        Directory
	log              zerolog.Logger
	now              Clock
	newID            IDGen
	expiringSoonDays int
}

func NewContractService(contracts ContractStore, visits VisitStore, directory Directory, log zerolog.Logger, expiringSoonDays int) *ContractService {
	return &ContractService{
		contracts:        contracts,
		visits:           visits,
		directory:        directory,
		log:              log,
		now:              systemClock,
		newID:            uuid.New,
		expiringSoonDays: expiringSoonDays,
	}
}

// WithClock pins the service clock and id generator. Test hook.
func (s *ContractService) WithClock(now Clock, newID IDGen) *ContractService {
	s.now = now
	s.newID = newID
	return s
}

type ContractInput struct {
	CustomerID   uuid.UUID
	ProductID    uuid.UUID
	TechnicianID *uuid.UUID
	Frequency    model.Frequency
	StartDate    time.Time
	EndDate      *time.Time
	Value        float64
	Instructions string
}

func (s *ContractService) Create(ctx context.Context, principal model.Principal, input ContractInput) (*model.Contract, error) {
	if !auth.Can(principal, auth.ActionManageContracts) {
		s.logDenied(principal, "contract.create")
		return nil, ErrAccessDenied
	}
	if err := s.validateInput(ctx, principal.Scope(), input); err != nil {
		return nil, err
	}

	contract := &model.Contract{
		ID:           s.newID(),
		TenantID:     principal.TenantID,
		BranchID:     principal.BranchID,
		CustomerID:   input.CustomerID,
		ProductID:    input.ProductID,
		TechnicianID: input.TechnicianID,
		Frequency:    input.Frequency,
		StartDate:    dateOnly(input.StartDate),
		EndDate:      normalizeEnd(input.EndDate),
		Value:        input.Value,
		Instructions: input.Instructions,
		Status:       model.ContractStatusActive,
	}
	if err := s.contracts.Create(ctx, principal.Scope(), contract); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", contract.ID.String()).
		Str("tenant_id", contract.TenantID.String()).
		Msg("contract created")
	return contract, nil
}

// Update edits contract terms. Scheduled visits that fall outside a
// shrunken window are cancelled with an automatic reason; completed
// visits are never touched.
func (s *ContractService) Update(ctx context.Context, principal model.Principal, id uuid.UUID, input ContractInput) (*model.Contract, error) {
	if !auth.Can(principal, auth.ActionManageContracts) {
		s.logDenied(principal, "contract.update")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	contract, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if contract.Status == model.ContractStatusCancelled || contract.Status == model.ContractStatusCompleted {
		return nil, fmt.Errorf("%w: contract is %s", ErrInvalidTransition, contract.Status)
	}
	if err := s.validateInput(ctx, scope, input); err != nil {
		return nil, err
	}

	contract.CustomerID = input.CustomerID
	contract.ProductID = input.ProductID
	contract.TechnicianID = input.TechnicianID
	contract.Frequency = input.Frequency
	contract.StartDate = dateOnly(input.StartDate)
	contract.EndDate = normalizeEnd(input.EndDate)
	contract.Value = input.Value
	contract.Instructions = input.Instructions

	if err := s.contracts.Update(ctx, scope, contract); err != nil {
		return nil, s.mapStoreErr(err)
	}

	cancelled, err := s.visits.CancelScheduledOutsideWindow(ctx, scope, id, contract.StartDate, contract.EndDate, "contract window changed")
	if err != nil {
		return nil, err
	}
	if cancelled > 0 {
		s.log.Info().
			Str("contract_id", id.String()).
			Int64("visits_cancelled", cancelled).
			Msg("cancelled visits outside new contract window")
	}
	return contract, nil
}

// Pause stops future materialization without touching existing visits.
func (s *ContractService) Pause(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	return s.transition(ctx, principal, id, "contract.pause",
		[]model.ContractStatus{model.ContractStatusActive}, model.ContractStatusPaused)
}

// Resume restarts materialization from now.
func (s *ContractService) Resume(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	return s.transition(ctx, principal, id, "contract.resume",
		[]model.ContractStatus{model.ContractStatusPaused}, model.ContractStatusActive)
}

// Cancel soft-cancels the contract and every not-yet-started visit.
func (s *ContractService) Cancel(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if err := s.transition(ctx, principal, id, "contract.cancel",
		[]model.ContractStatus{model.ContractStatusActive, model.ContractStatusPaused}, model.ContractStatusCancelled); err != nil {
		return err
	}
	cancelled, err := s.visits.CancelScheduledByContract(ctx, principal.Scope(), id, "contract cancelled")
	if err != nil {
		return err
	}
	s.log.Info().
		Str("contract_id", id.String()).
		Int64("visits_cancelled", cancelled).
		Msg("contract cancelled")
	return nil
}

// Delete physically removes a contract that has no completed history.
// Contracts with completed visits must be cancelled instead.
func (s *ContractService) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	if !auth.Can(principal, auth.ActionManageContracts) {
		s.logDenied(principal, "contract.delete")
		return ErrAccessDenied
	}
	scope := principal.Scope()

	hasHistory, err := s.contracts.HasCompletedVisits(ctx, scope, id)
	if err != nil {
		return err
	}
	if hasHistory {
		return fmt.Errorf("%w: contract has completed visits, cancel it instead", ErrValidation)
	}
	return s.mapStoreErr(s.contracts.Delete(ctx, scope, id))
}

// Renew creates a fresh contract carrying the old one's references and
// value into a new window. The original row and its visit history stay
// untouched.
func (s *ContractService) Renew(ctx context.Context, principal model.Principal, id uuid.UUID, startDate time.Time, endDate *time.Time) (*model.Contract, error) {
	if !auth.Can(principal, auth.ActionManageContracts) {
		s.logDenied(principal, "contract.renew")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	previous, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := validateWindow(startDate, endDate); err != nil {
		return nil, err
	}

	renewed := &model.Contract{
		ID:           s.newID(),
		TenantID:     previous.TenantID,
		BranchID:     previous.BranchID,
		CustomerID:   previous.CustomerID,
		ProductID:    previous.ProductID,
		TechnicianID: previous.TechnicianID,
		Frequency:    previous.Frequency,
		StartDate:    dateOnly(startDate),
		EndDate:      normalizeEnd(endDate),
		Value:        previous.Value,
		Instructions: previous.Instructions,
		Status:       model.ContractStatusActive,
	}
	if err := s.contracts.Create(ctx, scope, renewed); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("contract_id", id.String()).
		Str("renewed_as", renewed.ID.String()).
		Msg("contract renewed")
	return renewed, nil
}

// ExpireSweep completes every active contract whose end date has passed
// and cancels its remaining scheduled visits. Safe to run repeatedly;
// a second pass finds nothing left to expire.
func (s *ContractService) ExpireSweep(ctx context.Context) (int, error) {
	today := dateOnly(s.now())
	expired, err := s.contracts.ListExpired(ctx, today)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, contract := range expired {
		scope := model.Scope{TenantID: contract.TenantID, BranchID: contract.BranchID}
		err := s.contracts.UpdateStatus(ctx, scope, contract.ID,
			[]model.ContractStatus{model.ContractStatusActive}, model.ContractStatusCompleted)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue // another sweep got there first
		}
		if err != nil {
			return count, err
		}
		if _, err := s.visits.CancelScheduledByContract(ctx, scope, contract.ID, "contract expired"); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.log.Info().Int("contracts_expired", count).Msg("expiration sweep finished")
	}
	return count, nil
}

func (s *ContractService) Get(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.Contract, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "contract.get")
		return nil, ErrAccessDenied
	}
	return s.get(ctx, principal.Scope(), id)
}

func (s *ContractService) List(ctx context.Context, principal model.Principal, status *model.ContractStatus) ([]model.Contract, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "contract.list")
		return nil, ErrAccessDenied
	}
	return s.contracts.List(ctx, principal.Scope(), status)
}

// ListExpiring returns active contracts expiring within the given number
// of days (service default when days <= 0).
func (s *ContractService) ListExpiring(ctx context.Context, principal model.Principal, days int) ([]model.Contract, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "contract.expiring")
		return nil, ErrAccessDenied
	}
	if days <= 0 {
		days = s.expiringSoonDays
	}
	today := dateOnly(s.now())
	return s.contracts.ListExpiringBy(ctx, principal.Scope(), today, today.AddDate(0, 0, days))
}

// Health derives the contract's health from its visit state.
func (s *ContractService) Health(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.ContractHealth, error) {
	if !auth.Can(principal, auth.ActionViewContracts) {
		s.logDenied(principal, "contract.health")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	contract, err := s.get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	completed, total, err := s.visits.CompletionCounts(ctx, scope, id, dateOnly(s.now()))
	if err != nil {
		return nil, err
	}
	health := DeriveHealth(contract, completed, total, s.now(), s.expiringSoonDays)
	return &health, nil
}

func (s *ContractService) transition(ctx context.Context, principal model.Principal, id uuid.UUID, operation string, from []model.ContractStatus, to model.ContractStatus) error {
	if !auth.Can(principal, auth.ActionManageContracts) {
		s.logDenied(principal, operation)
		return ErrAccessDenied
	}
	err := s.contracts.UpdateStatus(ctx, principal.Scope(), id, from, to)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Either the contract does not exist in this scope or it is not
		// in an eligible status. Disambiguate for the caller.
		if _, getErr := s.get(ctx, principal.Scope(), id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: contract not eligible for %s", ErrInvalidTransition, to)
	}
	return err
}

func (s *ContractService) get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Contract, error) {
	contract, err := s.contracts.Get(ctx, scope, id)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return contract, nil
}

func (s *ContractService) validateInput(ctx context.Context, scope model.Scope, input ContractInput) error {
	if err := validateFrequency(input.Frequency); err != nil {
		return err
	}
	if err := validateWindow(input.StartDate, input.EndDate); err != nil {
		return err
	}
	if input.Value < 0 {
		return fmt.Errorf("%w: contract value must not be negative", ErrValidation)
	}

	ok, err := s.directory.CustomerExists(ctx, scope, input.CustomerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: customer not found in tenant", ErrValidation)
	}
	ok, err = s.directory.ProductExists(ctx, scope, input.ProductID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: product not found in tenant", ErrValidation)
	}
	if input.TechnicianID != nil {
		ok, err = s.directory.TechnicianExists(ctx, scope, *input.TechnicianID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: technician not found in branch", ErrValidation)
		}
	}
	return nil
}

func (s *ContractService) mapStoreErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *ContractService) logDenied(principal model.Principal, operation string) {
	s.log.Warn().
		Str("user_id", principal.UserID.String()).
		Str("tenant_id", principal.TenantID.String()).
		Str("role", string(principal.Role)).
		Str("operation", operation).
		Msg("access denied")
}

func validateFrequency(freq model.Frequency) error {
	switch freq.Kind {
	case model.FrequencyOneTime:
		return nil
	case model.FrequencyInterval:
		if freq.Value < 1 {
			return fmt.Errorf("%w: frequency interval must be at least 1", ErrValidation)
		}
		switch freq.Unit {
		case model.UnitDay, model.UnitWeek, model.UnitMonth, model.UnitQuarter, model.UnitHalfYear, model.UnitYear:
			return nil
		default:
			return fmt.Errorf("%w: unknown frequency unit %q", ErrValidation, freq.Unit)
		}
	default:
		return fmt.Errorf("%w: unknown frequency kind %q", ErrValidation, freq.Kind)
	}
}

func validateWindow(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrValidation)
	}
	if end != nil && !dateOnly(*end).After(dateOnly(start)) {
		return fmt.Errorf("%w: end date must be after start date", ErrValidation)
	}
	return nil
}

func normalizeEnd(end *time.Time) *time.Time {
	if end == nil {
		return nil
	}
	d := dateOnly(*end)
	return &d
}

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
	"github.com/fieldops/maintenance-visits/internal/config"
	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

// ExcelGenerator renders a dashboard into an xlsx workbook.
type ExcelGenerator interface {
	Generate(dashboard model.Dashboard, from, to time.Time) ([]byte, error)
}

// PDFGenerator renders a completed visit into a printable service report.
type PDFGenerator interface {
	Generate(visit model.Visit, contract model.Contract) ([]byte, error)
}

// AnalyticsService derives the dashboard rollups. Read-only; every value
// comes from current contract/visit state at query time, so there is no
// aggregate state to go stale.
type AnalyticsService struct {
	analytics AnalyticsStore
	contracts ContractStore
	visits    VisitStore
	excel     ExcelGenerator
	pdf       PDFGenerator
	log       zerolog.Logger
	now       Clock
	engine    config.EngineConfig
}

func NewAnalyticsService(analytics AnalyticsStore, contracts ContractStore, visits VisitStore, excel ExcelGenerator, pdf PDFGenerator, log zerolog.Logger, engine config.EngineConfig) *AnalyticsService {
	return &AnalyticsService{
		analytics: analytics,
		contracts: contracts,
		visits:    visits,
		excel:     excel,
		pdf:       pdf,
		log:       log,
		now:       systemClock,
		engine:    engine,
	}
}

// WithClock pins the service clock. Test hook.
func (s *AnalyticsService) WithClock(now Clock) *AnalyticsService {
	s.now = now
	return s
}

func (s *AnalyticsService) Dashboard(ctx context.Context, principal model.Principal, from, to time.Time) (*model.Dashboard, error) {
	if !auth.Can(principal, auth.ActionViewAnalytics) {
		s.logDenied(principal, "analytics.dashboard")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	from = dateOnly(from)
	to = dateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end before start", ErrValidation)
	}

	today := dateOnly(s.now())
	deadline := today.AddDate(0, 0, s.engine.ExpiringSoonDays)

	counts, err := s.analytics.ContractCounts(ctx, scope, today, deadline)
	if err != nil {
		return nil, err
	}

	healthCounts, err := s.healthDistribution(ctx, scope, today)
	if err != nil {
		return nil, err
	}

	rates, err := s.analytics.VisitRates(ctx, scope, from, to, s.engine.OnTimeGrace)
	if err != nil {
		return nil, err
	}

	technicians, err := s.analytics.TechnicianStats(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	revenue, err := s.analytics.RevenueByMonth(ctx, scope, from, to)
	if err != nil {
		return nil, err
	}

	dashboard := &model.Dashboard{
		ContractsTotal:    counts.Total,
		ContractsActive:   counts.Active,
		ContractsExpiring: counts.Expiring,
		ContractsExpired:  counts.Expired,
		HealthCounts:      healthCounts,
		VisitsTotal:       rates.Total,
		VisitsCompleted:   rates.Completed,
		Technicians:       technicians,
		Revenue:           revenue,
	}
	if rates.Total > 0 {
		dashboard.CompletionRate = float64(rates.Completed) / float64(rates.Total)
	}
	if rates.Completed > 0 {
		dashboard.OnTimeRate = float64(rates.CompletedOnTime) / float64(rates.Completed)
	}
	return dashboard, nil
}

// healthDistribution derives a health label per contract and counts them.
func (s *AnalyticsService) healthDistribution(ctx context.Context, scope model.Scope, today time.Time) (map[model.HealthLabel]int, error) {
	contracts, err := s.contracts.List(ctx, scope, nil)
	if err != nil {
		return nil, err
	}
	stats, err := s.analytics.ContractVisitStats(ctx, scope, today)
	if err != nil {
		return nil, err
	}

	byContract := make(map[uuid.UUID]repository.ContractVisitStat, len(stats))
	for _, stat := range stats {
		byContract[stat.ContractID] = stat
	}

	distribution := map[model.HealthLabel]int{
		model.HealthExcellent: 0,
		model.HealthGood:      0,
		model.HealthWarning:   0,
		model.HealthCritical:  0,
	}
	for i := range contracts {
		stat := byContract[contracts[i].ID]
		health := DeriveHealth(&contracts[i], stat.Completed, stat.Total, today, s.engine.ExpiringSoonDays)
		distribution[health.Label]++
	}
	return distribution, nil
}

type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportDashboard renders the dashboard as an Excel workbook.
func (s *AnalyticsService) ExportDashboard(ctx context.Context, principal model.Principal, from, to time.Time) (*ExportResult, error) {
	dashboard, err := s.Dashboard(ctx, principal, from, to)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(*dashboard, from, to)
	if err != nil {
		return nil, err
	}
	fileName := fmt.Sprintf("dashboard-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	return &ExportResult{FileName: fileName, Content: content}, nil
}

// VisitReport renders a completed visit as a printable PDF.
func (s *AnalyticsService) VisitReport(ctx context.Context, principal model.Principal, visitID uuid.UUID) (*ExportResult, error) {
	if !auth.Can(principal, auth.ActionViewAnalytics) {
		s.logDenied(principal, "analytics.visit_report")
		return nil, ErrAccessDenied
	}
	scope := principal.Scope()

	visit, err := s.visits.Get(ctx, scope, visitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if visit.Status != model.VisitStatusCompleted {
		return nil, fmt.Errorf("%w: service reports exist for completed visits only", ErrValidation)
	}

	contract, err := s.contracts.Get(ctx, scope, visit.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	content, err := s.pdf.Generate(*visit, *contract)
	if err != nil {
		return nil, err
	}
	fileName := fmt.Sprintf("visit-report-%s.pdf", visit.ScheduledDate.Format("20060102"))
	return &ExportResult{FileName: fileName, Content: content}, nil
}

func (s *AnalyticsService) logDenied(principal model.Principal, operation string) {
	s.log.Warn().
		Str("user_id", principal.UserID.String()).
		Str("tenant_id", principal.TenantID.String()).
		Str("role", string(principal.Role)).
		Str("operation", operation).
		Msg("access denied")
}

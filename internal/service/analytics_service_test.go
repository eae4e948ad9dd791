package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/maintenance-visits/internal/config"
	"github.com/fieldops/maintenance-visits/internal/model"
	"github.com/fieldops/maintenance-visits/internal/repository"
)

type stubExcel struct {
	calls int
}

func (s *stubExcel) Generate(_ model.Dashboard, _, _ time.Time) ([]byte, error) {
	s.calls++
	return []byte("xlsx"), nil
}

type stubPDF struct {
	calls int
}

func (s *stubPDF) Generate(_ model.Visit, _ model.Contract) ([]byte, error) {
	s.calls++
	return []byte("%PDF"), nil
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		ExpiringSoonDays:   30,
		MissedGrace:        48 * time.Hour,
		OnTimeGrace:        4 * time.Hour,
		MaterializeHorizon: 90,
		SweepInterval:      time.Hour,
	}
}

func newAnalyticsService(world *testWorld, store *fakeAnalyticsStore, now time.Time) (*AnalyticsService, *stubExcel, *stubPDF) {
	excel := &stubExcel{}
	pdf := &stubPDF{}
	svc := NewAnalyticsService(store, world.contracts, world.visits, excel, pdf, nopLogger(), testEngineConfig()).
		WithClock(fixedClock(now))
	return svc, excel, pdf
}

func TestDashboard(t *testing.T) {
	world := newTestWorld()
	now := date(2026, time.March, 20)

	contractSvc := newContractService(world, date(2026, time.January, 1))
	input := world.validInput()
	end := date(2026, time.December, 31)
	input.EndDate = &end
	contract, err := contractSvc.Create(context.Background(), world.owner, input)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	store := &fakeAnalyticsStore{
		counts: repository.ContractCounts{Total: 1, Active: 1},
		visitStats: []repository.ContractVisitStat{
			{ContractID: contract.ID, Completed: 9, Total: 10},
		},
		rates: repository.VisitRates{Total: 10, Completed: 8, CompletedOnTime: 6},
		technicians: []model.TechnicianStats{
			{TechnicianID: uuid.New(), Assigned: 10, Completed: 8, CompletionRate: 0.8, AvgVisitCost: 55},
		},
		revenue: []model.RevenuePeriod{{Period: "2026-03", Revenue: 440, Visits: 8}},
	}
	svc, _, _ := newAnalyticsService(world, store, now)

	dashboard, err := svc.Dashboard(context.Background(), world.owner, date(2026, time.March, 1), date(2026, time.March, 31))
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dashboard.ContractsTotal != 1 || dashboard.ContractsActive != 1 {
		t.Fatalf("counts = %+v", dashboard)
	}
	if dashboard.CompletionRate != 0.8 {
		t.Fatalf("completion rate = %f, want 0.8", dashboard.CompletionRate)
	}
	if dashboard.OnTimeRate != 0.75 {
		t.Fatalf("on-time rate = %f, want 0.75 (6 of 8 completed)", dashboard.OnTimeRate)
	}
	if dashboard.HealthCounts[model.HealthExcellent] != 1 {
		t.Fatalf("health counts = %v, want one excellent (9/10, far from expiry)", dashboard.HealthCounts)
	}
	if len(dashboard.Technicians) != 1 || len(dashboard.Revenue) != 1 {
		t.Fatal("technician and revenue rollups must pass through")
	}
}

func TestDashboardEmptyRates(t *testing.T) {
	world := newTestWorld()
	svc, _, _ := newAnalyticsService(world, &fakeAnalyticsStore{}, date(2026, time.March, 20))

	dashboard, err := svc.Dashboard(context.Background(), world.owner, date(2026, time.March, 1), date(2026, time.March, 31))
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if dashboard.CompletionRate != 0 || dashboard.OnTimeRate != 0 {
		t.Fatal("rates over zero visits must be zero, not NaN")
	}
}

func TestDashboardInvertedRange(t *testing.T) {
	world := newTestWorld()
	svc, _, _ := newAnalyticsService(world, &fakeAnalyticsStore{}, date(2026, time.March, 20))

	if _, err := svc.Dashboard(context.Background(), world.owner, date(2026, time.March, 31), date(2026, time.March, 1)); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestDashboardDeniedForTechnician(t *testing.T) {
	world := newTestWorld()
	var logged bytes.Buffer
	svc := NewAnalyticsService(&fakeAnalyticsStore{}, world.contracts, world.visits, &stubExcel{}, &stubPDF{}, zerolog.New(&logged), testEngineConfig()).
		WithClock(fixedClock(date(2026, time.March, 20)))

	if _, err := svc.Dashboard(context.Background(), world.technician, date(2026, time.March, 1), date(2026, time.March, 31)); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}

	// The denial is a security event and must leave a trace.
	if !strings.Contains(logged.String(), "access denied") {
		t.Fatalf("denial not logged, got %q", logged.String())
	}

	if _, err := svc.VisitReport(context.Background(), world.technician, uuid.New()); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("report err = %v, want ErrAccessDenied", err)
	}
	if strings.Count(logged.String(), "access denied") != 2 {
		t.Fatal("report denial must be logged too")
	}
}

func TestExportDashboard(t *testing.T) {
	world := newTestWorld()
	svc, excel, _ := newAnalyticsService(world, &fakeAnalyticsStore{}, date(2026, time.March, 20))

	result, err := svc.ExportDashboard(context.Background(), world.owner, date(2026, time.March, 1), date(2026, time.March, 31))
	if err != nil {
		t.Fatalf("ExportDashboard: %v", err)
	}
	if excel.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", excel.calls)
	}
	if result.FileName != "dashboard-20260301-20260331.xlsx" {
		t.Fatalf("file name = %s", result.FileName)
	}
	if len(result.Content) == 0 {
		t.Fatal("empty export content")
	}
}

func TestVisitReport(t *testing.T) {
	world := newTestWorld()
	svc, _, pdf := newAnalyticsService(world, &fakeAnalyticsStore{}, date(2026, time.March, 20))
	ctx := context.Background()

	contractSvc := newContractService(world, date(2026, time.January, 1))
	contract, err := contractSvc.Create(ctx, world.owner, world.validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	scheduled := seedVisit(world, contract, date(2026, time.February, 15), model.VisitStatusScheduled)
	if _, err := svc.VisitReport(ctx, world.owner, scheduled); !errors.Is(err, ErrValidation) {
		t.Fatalf("scheduled visit err = %v, want ErrValidation", err)
	}

	completed := seedVisit(world, contract, date(2026, time.January, 15), model.VisitStatusCompleted)
	result, err := svc.VisitReport(ctx, world.owner, completed)
	if err != nil {
		t.Fatalf("VisitReport: %v", err)
	}
	if pdf.calls != 1 {
		t.Fatalf("pdf generator calls = %d, want 1", pdf.calls)
	}
	if result.FileName != "visit-report-20260115.pdf" {
		t.Fatalf("file name = %s", result.FileName)
	}

	if _, err := svc.VisitReport(ctx, world.owner, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing visit err = %v, want ErrNotFound", err)
	}
}

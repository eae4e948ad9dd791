package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
)

// AnalyticsRepository runs the read-only aggregate queries behind the
// dashboard. Everything is derived from current contract/visit state at
// query time; nothing here mutates.
type AnalyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type ContractCounts struct {
	Total    int
	Active   int
	Expiring int
	Expired  int
}

func (r *AnalyticsRepository) ContractCounts(ctx context.Context, scope model.Scope, today, expiringDeadline time.Time) (ContractCounts, error) {
	var counts ContractCounts
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(1) AS total,
			COUNT(1) FILTER (WHERE status = 'active') AS active,
			COUNT(1) FILTER (
				WHERE status = 'active'
					AND end_date IS NOT NULL
					AND end_date >= ? AND end_date <= ?
			) AS expiring,
			COUNT(1) FILTER (
				WHERE end_date IS NOT NULL AND end_date < ?
			) AS expired
		FROM maintenance_contracts
		WHERE tenant_id = ? AND branch_id = ?
	`, today, expiringDeadline, today, scope.TenantID, scope.BranchID).Scan(&counts).Error
	return counts, err
}

// ContractVisitStats returns per-contract (completed, total) visit counts
// materialized through today, for the health distribution.
type ContractVisitStat struct {
	ContractID uuid.UUID
	Completed  int
	Total      int
}

func (r *AnalyticsRepository) ContractVisitStats(ctx context.Context, scope model.Scope, today time.Time) ([]ContractVisitStat, error) {
	var stats []ContractVisitStat
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			contract_id,
			COUNT(1) FILTER (WHERE status = 'completed') AS completed,
			COUNT(1) AS total
		FROM maintenance_visits
		WHERE tenant_id = ? AND branch_id = ? AND scheduled_date <= ?
		GROUP BY contract_id
	`, scope.TenantID, scope.BranchID, today).Scan(&stats).Error
	return stats, err
}

type VisitRates struct {
	Total           int
	Completed       int
	CompletedOnTime int
}

// VisitRates counts visits in the range and how many completed, with
// on-time meaning the work started no later than the scheduled date/time
// plus the grace window. Visits without a scheduled time are due by end
// of day.
func (r *AnalyticsRepository) VisitRates(ctx context.Context, scope model.Scope, from, to time.Time, grace time.Duration) (VisitRates, error) {
	graceInterval := fmt.Sprintf("%d seconds", int(grace.Seconds()))
	var rates VisitRates
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(1) AS total,
			COUNT(1) FILTER (WHERE status = 'completed') AS completed,
			COUNT(1) FILTER (
				WHERE status = 'completed'
					AND actual_start_at IS NOT NULL
					AND actual_start_at <= scheduled_date::timestamp
						+ COALESCE(scheduled_time, '23:59')::time
						+ ?::interval
			) AS completed_on_time
		FROM maintenance_visits
		WHERE tenant_id = ? AND branch_id = ?
			AND scheduled_date >= ? AND scheduled_date <= ?
	`, graceInterval, scope.TenantID, scope.BranchID, from, to).Scan(&rates).Error
	return rates, err
}

type technicianStatRow struct {
	TechnicianID uuid.UUID
	Assigned     int
	Completed    int
	AvgCost      float64
}

func (r *AnalyticsRepository) TechnicianStats(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.TechnicianStats, error) {
	var rows []technicianStatRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			technician_id,
			COUNT(1) AS assigned,
			COUNT(1) FILTER (WHERE status = 'completed') AS completed,
			COALESCE(AVG(total_cost) FILTER (WHERE status = 'completed'), 0) AS avg_cost
		FROM maintenance_visits
		WHERE tenant_id = ? AND branch_id = ?
			AND technician_id IS NOT NULL
			AND scheduled_date >= ? AND scheduled_date <= ?
		GROUP BY technician_id
		ORDER BY completed DESC
	`, scope.TenantID, scope.BranchID, from, to).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make([]model.TechnicianStats, 0, len(rows))
	for _, row := range rows {
		rate := 0.0
		if row.Assigned > 0 {
			rate = float64(row.Completed) / float64(row.Assigned)
		}
		stats = append(stats, model.TechnicianStats{
			TechnicianID:   row.TechnicianID,
			Assigned:       row.Assigned,
			Completed:      row.Completed,
			CompletionRate: rate,
			AvgVisitCost:   row.AvgCost,
		})
	}
	return stats, nil
}

func (r *AnalyticsRepository) RevenueByMonth(ctx context.Context, scope model.Scope, from, to time.Time) ([]model.RevenuePeriod, error) {
	var periods []model.RevenuePeriod
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			TO_CHAR(scheduled_date, 'YYYY-MM') AS period,
			COALESCE(SUM(total_cost), 0) AS revenue,
			COUNT(1) AS visits
		FROM maintenance_visits
		WHERE tenant_id = ? AND branch_id = ?
			AND status = 'completed'
			AND scheduled_date >= ? AND scheduled_date <= ?
		GROUP BY TO_CHAR(scheduled_date, 'YYYY-MM')
		ORDER BY period ASC
	`, scope.TenantID, scope.BranchID, from, to).Scan(&periods).Error
	return periods, err
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
)

type VisitRepository struct {
	db *gorm.DB
}

func NewVisitRepository(db *gorm.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

const visitColumns = `
	id, tenant_id, branch_id, contract_id, scheduled_date, scheduled_time,
	technician_id, priority, status, actual_start_at, actual_end_at,
	work_description, completion_notes, cancel_reason, total_cost, rating,
	created_at, updated_at
`

type visitRow struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	BranchID        uuid.UUID
	ContractID      uuid.UUID
	ScheduledDate   time.Time
	ScheduledTime   *string
	TechnicianID    *uuid.UUID
	Priority        string
	Status          string
	ActualStartAt   *time.Time
	ActualEndAt     *time.Time
	WorkDescription string
	CompletionNotes string
	CancelReason    string
	TotalCost       float64
	Rating          *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (row visitRow) toModel() model.Visit {
	return model.Visit{
		ID:              row.ID,
		TenantID:        row.TenantID,
		BranchID:        row.BranchID,
		ContractID:      row.ContractID,
		ScheduledDate:   row.ScheduledDate,
		ScheduledTime:   row.ScheduledTime,
		TechnicianID:    row.TechnicianID,
		Priority:        model.VisitPriority(row.Priority),
		Status:          model.VisitStatus(row.Status),
		ActualStartAt:   row.ActualStartAt,
		ActualEndAt:     row.ActualEndAt,
		WorkDescription: row.WorkDescription,
		CompletionNotes: row.CompletionNotes,
		CancelReason:    row.CancelReason,
		TotalCost:       row.TotalCost,
		Rating:          row.Rating,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

// VisitFilter narrows List results. Zero values mean "no filter".
type VisitFilter struct {
	ContractID   *uuid.UUID
	TechnicianID *uuid.UUID
	Status       *model.VisitStatus
	From         *time.Time
	To           *time.Time
}

func (r *VisitRepository) Create(ctx context.Context, scope model.Scope, visit *model.Visit) error {
	var saved visitRow
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO maintenance_visits (
			id, tenant_id, branch_id, contract_id, scheduled_date, scheduled_time,
			technician_id, priority, status, work_description
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+visitColumns,
		visit.ID,
		scope.TenantID,
		scope.BranchID,
		visit.ContractID,
		visit.ScheduledDate,
		visit.ScheduledTime,
		visit.TechnicianID,
		visit.Priority,
		visit.Status,
		visit.WorkDescription,
	).Scan(&saved).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	*visit = saved.toModel()
	return nil
}

func (r *VisitRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Visit, error) {
	var row visitRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+visitColumns+`
		FROM maintenance_visits
		WHERE id = ? AND tenant_id = ? AND branch_id = ?
		LIMIT 1
	`, id, scope.TenantID, scope.BranchID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	visit := row.toModel()
	if err := r.db.WithContext(ctx).Raw(`
		SELECT part_id, quantity, unit_cost
		FROM visit_parts
		WHERE visit_id = ?
		ORDER BY part_id
	`, id).Scan(&visit.Parts).Error; err != nil {
		return nil, err
	}
	return &visit, nil
}

func (r *VisitRepository) List(ctx context.Context, scope model.Scope, filter VisitFilter) ([]model.Visit, error) {
	query := `
		SELECT ` + visitColumns + `
		FROM maintenance_visits
		WHERE tenant_id = ? AND branch_id = ?
	`
	args := []interface{}{scope.TenantID, scope.BranchID}
	if filter.ContractID != nil {
		query += " AND contract_id = ?"
		args = append(args, *filter.ContractID)
	}
	if filter.TechnicianID != nil {
		query += " AND technician_id = ?"
		args = append(args, *filter.TechnicianID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		query += " AND scheduled_date >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND scheduled_date <= ?"
		args = append(args, *filter.To)
	}
	query += " ORDER BY scheduled_date ASC, created_at ASC"

	var rows []visitRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	visits := make([]model.Visit, 0, len(rows))
	for _, row := range rows {
		visits = append(visits, row.toModel())
	}
	return visits, nil
}

// ExistingDates returns the set of scheduled dates already materialized
// for a contract.
func (r *VisitRepository) ExistingDates(ctx context.Context, scope model.Scope, contractID uuid.UUID) (map[time.Time]struct{}, error) {
	return r.existingDates(r.db.WithContext(ctx), scope, contractID)
}

func (r *VisitRepository) existingDates(tx *gorm.DB, scope model.Scope, contractID uuid.UUID) (map[time.Time]struct{}, error) {
	var dates []time.Time
	if err := tx.Raw(`
		SELECT scheduled_date
		FROM maintenance_visits
		WHERE contract_id = ? AND tenant_id = ?
	`, contractID, scope.TenantID).Scan(&dates).Error; err != nil {
		return nil, err
	}
	existing := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		existing[time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)] = struct{}{}
	}
	return existing, nil
}

// Materialize serializes visit creation per contract. It takes a
// transaction-scoped advisory lock on the contract id, re-reads the
// existing dates under that lock, asks build for the missing visits and
// inserts them. Two concurrent calls for the same contract cannot race
// to create duplicate dates.
func (r *VisitRepository) Materialize(
	ctx context.Context,
	scope model.Scope,
	contractID uuid.UUID,
	build func(existing map[time.Time]struct{}) []model.Visit,
) ([]model.Visit, error) {
	var created []model.Visit
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			SELECT pg_advisory_xact_lock(hashtextextended(?::text, 0))
		`, contractID).Error; err != nil {
			return err
		}

		existing, err := r.existingDates(tx, scope, contractID)
		if err != nil {
			return err
		}

		for _, visit := range build(existing) {
			var saved visitRow
			err := tx.Raw(`
				INSERT INTO maintenance_visits (
					id, tenant_id, branch_id, contract_id, scheduled_date, scheduled_time,
					technician_id, priority, status, work_description
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				RETURNING `+visitColumns,
				visit.ID,
				scope.TenantID,
				scope.BranchID,
				visit.ContractID,
				visit.ScheduledDate,
				visit.ScheduledTime,
				visit.TechnicianID,
				visit.Priority,
				visit.Status,
				visit.WorkDescription,
			).Scan(&saved).Error
			if err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return err
			}
			created = append(created, saved.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Start transitions scheduled -> in_progress. The status guard makes the
// call safe against concurrent writers; zero rows affected means the
// visit moved under us.
func (r *VisitRepository) Start(ctx context.Context, scope model.Scope, id uuid.UUID, technicianID uuid.UUID, startedAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_visits
		SET status = 'in_progress',
			actual_start_at = ?,
			technician_id = COALESCE(technician_id, ?),
			updated_at = NOW()
		WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status = 'scheduled'
	`, startedAt, technicianID, id, scope.TenantID, scope.BranchID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CompleteInput carries everything the completion transaction writes.
type CompleteInput struct {
	VisitID   uuid.UUID
	EndedAt   time.Time
	Notes     string
	TotalCost float64
	Rating    *int
	Parts     []model.VisitPart
}

// Complete atomically transitions in_progress -> completed, records the
// consumed parts, decrements branch stock and appends one stock movement
// per part. Stock rows are locked before the read-modify-write; any
// shortfall rolls the whole transaction back.
func (r *VisitRepository) Complete(ctx context.Context, scope model.Scope, in CompleteInput) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(`
			UPDATE maintenance_visits
			SET status = 'completed',
				actual_end_at = ?,
				completion_notes = ?,
				total_cost = ?,
				rating = ?,
				updated_at = NOW()
			WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status = 'in_progress'
		`, in.EndedAt, in.Notes, in.TotalCost, in.Rating, in.VisitID, scope.TenantID, scope.BranchID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStale
		}

		for _, part := range in.Parts {
			var stock struct {
				Quantity *int
			}
			err := tx.Raw(`
				SELECT quantity
				FROM branch_stock
				WHERE tenant_id = ? AND branch_id = ? AND part_id = ?
				FOR UPDATE
			`, scope.TenantID, scope.BranchID, part.PartID).Scan(&stock).Error
			if err != nil {
				return err
			}
			if stock.Quantity == nil || *stock.Quantity < part.Quantity {
				return ErrInsufficientStock
			}

			if err := tx.Exec(`
				UPDATE branch_stock
				SET quantity = quantity - ?, updated_at = NOW()
				WHERE tenant_id = ? AND branch_id = ? AND part_id = ?
			`, part.Quantity, scope.TenantID, scope.BranchID, part.PartID).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				INSERT INTO visit_parts (visit_id, part_id, quantity, unit_cost)
				VALUES (?, ?, ?, ?)
			`, in.VisitID, part.PartID, part.Quantity, part.UnitCost).Error; err != nil {
				return err
			}

			if err := tx.Exec(`
				INSERT INTO stock_movements (tenant_id, branch_id, part_id, quantity_delta, visit_id)
				VALUES (?, ?, ?, ?, ?)
			`, scope.TenantID, scope.BranchID, part.PartID, -part.Quantity, in.VisitID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Reschedule moves a visit back to scheduled with a new date/time and
// clears any recorded start.
func (r *VisitRepository) Reschedule(ctx context.Context, scope model.Scope, id uuid.UUID, date time.Time, timeOfDay *string) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_visits
		SET scheduled_date = ?,
			scheduled_time = ?,
			status = 'scheduled',
			actual_start_at = NULL,
			updated_at = NOW()
		WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status IN ('scheduled', 'in_progress')
	`, date, timeOfDay, id, scope.TenantID, scope.BranchID)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicate
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// Cancel transitions scheduled -> cancelled with a reason.
func (r *VisitRepository) Cancel(ctx context.Context, scope model.Scope, id uuid.UUID, reason string) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_visits
		SET status = 'cancelled', cancel_reason = ?, updated_at = NOW()
		WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status = 'scheduled'
	`, reason, id, scope.TenantID, scope.BranchID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// CancelScheduledByContract cancels every not-yet-started visit under a
// contract, e.g. on contract cancellation or expiration.
func (r *VisitRepository) CancelScheduledByContract(ctx context.Context, scope model.Scope, contractID uuid.UUID, reason string) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_visits
		SET status = 'cancelled', cancel_reason = ?, updated_at = NOW()
		WHERE contract_id = ? AND tenant_id = ? AND branch_id = ? AND status = 'scheduled'
	`, reason, contractID, scope.TenantID, scope.BranchID)
	return result.RowsAffected, result.Error
}

// CancelScheduledOutsideWindow cancels scheduled visits that fall outside
// [start, end] after a contract edit shrank its window. Completed visits
// are never touched.
func (r *VisitRepository) CancelScheduledOutsideWindow(ctx context.Context, scope model.Scope, contractID uuid.UUID, start time.Time, end *time.Time, reason string) (int64, error) {
	query := `
		UPDATE maintenance_visits
		SET status = 'cancelled', cancel_reason = ?, updated_at = NOW()
		WHERE contract_id = ? AND tenant_id = ? AND branch_id = ?
			AND status = 'scheduled'
			AND (scheduled_date < ?
	`
	args := []interface{}{reason, contractID, scope.TenantID, scope.BranchID, start}
	if end != nil {
		query += " OR scheduled_date > ?"
		args = append(args, *end)
	}
	query += ")"

	result := r.db.WithContext(ctx).Exec(query, args...)
	return result.RowsAffected, result.Error
}

// MarkMissed flags scheduled visits whose date plus grace has elapsed
// without a start. Runs across tenants; started visits are untouched by
// the status guard.
func (r *VisitRepository) MarkMissed(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_visits
		SET status = 'missed', updated_at = NOW()
		WHERE status = 'scheduled' AND scheduled_date <= ?
	`, cutoff)
	return result.RowsAffected, result.Error
}

// CompletionCounts returns (completed, total) visits materialized through
// today for a contract. Feeds the health derivation.
func (r *VisitRepository) CompletionCounts(ctx context.Context, scope model.Scope, contractID uuid.UUID, today time.Time) (int, int, error) {
	var row struct {
		Completed int
		Total     int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(1) FILTER (WHERE status = 'completed') AS completed,
			COUNT(1) AS total
		FROM maintenance_visits
		WHERE contract_id = ? AND tenant_id = ? AND scheduled_date <= ?
	`, contractID, scope.TenantID, today).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Completed, row.Total, nil
}

// Correct applies an administrative correction to a terminal visit and
// records the change in the corrections audit table.
func (r *VisitRepository) Correct(ctx context.Context, scope model.Scope, id uuid.UUID, correctedBy uuid.UUID, field, oldValue, newValue, reason string) error {
	allowed := map[string]string{
		"completion_notes": "completion_notes = ?",
		"total_cost":       "total_cost = ?::numeric",
		"rating":           "rating = ?::smallint",
	}
	setClause, ok := allowed[field]
	if !ok {
		return gorm.ErrInvalidField
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(`
			UPDATE maintenance_visits
			SET `+setClause+`, updated_at = NOW()
			WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status IN ('completed', 'cancelled')
		`, newValue, id, scope.TenantID, scope.BranchID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrStale
		}
		return tx.Exec(`
			INSERT INTO visit_corrections (tenant_id, visit_id, corrected_by, field, old_value, new_value, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, scope.TenantID, id, correctedBy, field, oldValue, newValue, reason).Error
	})
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
)

type ContractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

const contractColumns = `
	id, tenant_id, branch_id, customer_id, product_id, technician_id,
	frequency_kind, frequency_value, frequency_unit,
	start_date, end_date, value, instructions, status, created_at, updated_at
`

type contractRow struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	BranchID       uuid.UUID
	CustomerID     uuid.UUID
	ProductID      uuid.UUID
	TechnicianID   *uuid.UUID
	FrequencyKind  string
	FrequencyValue int
	FrequencyUnit  string
	StartDate      time.Time
	EndDate        *time.Time
	Value          float64
	Instructions   string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (row contractRow) toModel() model.Contract {
	return model.Contract{
		ID:           row.ID,
		TenantID:     row.TenantID,
		BranchID:     row.BranchID,
		CustomerID:   row.CustomerID,
		ProductID:    row.ProductID,
		TechnicianID: row.TechnicianID,
		Frequency: model.Frequency{
			Kind:  model.FrequencyKind(row.FrequencyKind),
			Value: row.FrequencyValue,
			Unit:  model.FrequencyUnit(row.FrequencyUnit),
		},
		StartDate:    row.StartDate,
		EndDate:      row.EndDate,
		Value:        row.Value,
		Instructions: row.Instructions,
		Status:       model.ContractStatus(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func (r *ContractRepository) Create(ctx context.Context, scope model.Scope, contract *model.Contract) error {
	var saved contractRow
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO maintenance_contracts (
			id, tenant_id, branch_id, customer_id, product_id, technician_id,
			frequency_kind, frequency_value, frequency_unit,
			start_date, end_date, value, instructions, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+contractColumns,
		contract.ID,
		scope.TenantID,
		scope.BranchID,
		contract.CustomerID,
		contract.ProductID,
		contract.TechnicianID,
		contract.Frequency.Kind,
		contract.Frequency.Value,
		contract.Frequency.Unit,
		contract.StartDate,
		contract.EndDate,
		contract.Value,
		contract.Instructions,
		contract.Status,
	).Scan(&saved).Error
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	*contract = saved.toModel()
	return nil
}

func (r *ContractRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Contract, error) {
	var row contractRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM maintenance_contracts
		WHERE id = ? AND tenant_id = ? AND branch_id = ?
		LIMIT 1
	`, id, scope.TenantID, scope.BranchID).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	contract := row.toModel()
	return &contract, nil
}

func (r *ContractRepository) Update(ctx context.Context, scope model.Scope, contract *model.Contract) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_contracts
		SET customer_id = ?,
			product_id = ?,
			technician_id = ?,
			frequency_kind = ?,
			frequency_value = ?,
			frequency_unit = ?,
			start_date = ?,
			end_date = ?,
			value = ?,
			instructions = ?,
			updated_at = NOW()
		WHERE id = ? AND tenant_id = ? AND branch_id = ?
	`,
		contract.CustomerID,
		contract.ProductID,
		contract.TechnicianID,
		contract.Frequency.Kind,
		contract.Frequency.Value,
		contract.Frequency.Unit,
		contract.StartDate,
		contract.EndDate,
		contract.Value,
		contract.Instructions,
		contract.ID,
		scope.TenantID,
		scope.BranchID,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateStatus moves the contract to a new status only when it is in one
// of the expected current statuses, so sweeps and repeated calls stay
// idempotent. Returns ErrRecordNotFound when no row matched.
func (r *ContractRepository) UpdateStatus(ctx context.Context, scope model.Scope, id uuid.UUID, from []model.ContractStatus, to model.ContractStatus) error {
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	result := r.db.WithContext(ctx).Exec(`
		UPDATE maintenance_contracts
		SET status = ?, updated_at = NOW()
		WHERE id = ? AND tenant_id = ? AND branch_id = ? AND status IN ?
	`, to, id, scope.TenantID, scope.BranchID, statuses)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContractRepository) List(ctx context.Context, scope model.Scope, status *model.ContractStatus) ([]model.Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM maintenance_contracts
		WHERE tenant_id = ? AND branch_id = ?
	`
	args := []interface{}{scope.TenantID, scope.BranchID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY created_at DESC"

	var rows []contractRow
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToContracts(rows), nil
}

// ListExpiringBy returns active contracts whose end date falls inside
// [today, deadline].
func (r *ContractRepository) ListExpiringBy(ctx context.Context, scope model.Scope, today, deadline time.Time) ([]model.Contract, error) {
	var rows []contractRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM maintenance_contracts
		WHERE tenant_id = ? AND branch_id = ?
			AND status = 'active'
			AND end_date IS NOT NULL
			AND end_date >= ?
			AND end_date <= ?
		ORDER BY end_date ASC
	`, scope.TenantID, scope.BranchID, today, deadline).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToContracts(rows), nil
}

func (r *ContractRepository) ListActive(ctx context.Context, scope model.Scope) ([]model.Contract, error) {
	active := model.ContractStatusActive
	return r.List(ctx, scope, &active)
}

// ListExpired returns active contracts from every tenant whose end date
// has passed. Used only by the system expiration sweep, which runs
// outside any caller scope.
func (r *ContractRepository) ListExpired(ctx context.Context, today time.Time) ([]model.Contract, error) {
	var rows []contractRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+contractColumns+`
		FROM maintenance_contracts
		WHERE status = 'active'
			AND end_date IS NOT NULL
			AND end_date < ?
		ORDER BY end_date ASC
	`, today).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToContracts(rows), nil
}

// ListActiveAll returns every active contract across tenants for the
// horizon materialization sweep.
func (r *ContractRepository) ListActiveAll(ctx context.Context) ([]model.Contract, error) {
	var rows []contractRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT ` + contractColumns + `
		FROM maintenance_contracts
		WHERE status = 'active'
		ORDER BY created_at ASC
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToContracts(rows), nil
}

func (r *ContractRepository) HasCompletedVisits(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(1)
		FROM maintenance_visits
		WHERE contract_id = ? AND tenant_id = ? AND status = 'completed'
	`, id, scope.TenantID).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete physically removes a contract and its visits. The service layer
// refuses this once any visit has been completed.
func (r *ContractRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			DELETE FROM maintenance_visits
			WHERE contract_id = ? AND tenant_id = ? AND branch_id = ?
		`, id, scope.TenantID, scope.BranchID).Error; err != nil {
			return err
		}
		result := tx.Exec(`
			DELETE FROM maintenance_contracts
			WHERE id = ? AND tenant_id = ? AND branch_id = ?
		`, id, scope.TenantID, scope.BranchID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func rowsToContracts(rows []contractRow) []model.Contract {
	contracts := make([]model.Contract, 0, len(rows))
	for _, row := range rows {
		contracts = append(contracts, row.toModel())
	}
	return contracts
}

package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
)

// StockRepository reads the branch stock ledger. The only writers are
// the visit completion transaction in VisitRepository and the external
// stock-transfer subsystem; both lock the stock row before mutating it.
type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) GetStock(ctx context.Context, scope model.Scope, partID uuid.UUID) (int, error) {
	var row struct {
		Quantity *int
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT quantity
		FROM branch_stock
		WHERE tenant_id = ? AND branch_id = ? AND part_id = ?
		LIMIT 1
	`, scope.TenantID, scope.BranchID, partID).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if row.Quantity == nil {
		return 0, nil
	}
	return *row.Quantity, nil
}

func (r *StockRepository) ListStock(ctx context.Context, scope model.Scope) ([]model.StockLevel, error) {
	var levels []model.StockLevel
	err := r.db.WithContext(ctx).Raw(`
		SELECT tenant_id, branch_id, part_id, quantity
		FROM branch_stock
		WHERE tenant_id = ? AND branch_id = ?
		ORDER BY part_id
	`, scope.TenantID, scope.BranchID).Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	return levels, nil
}

// ListMovements returns the append-only audit trail for a part, newest
// first.
func (r *StockRepository) ListMovements(ctx context.Context, scope model.Scope, partID uuid.UUID, limit int) ([]model.StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	var movements []model.StockMovement
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, tenant_id, branch_id, part_id, quantity_delta, visit_id, created_at
		FROM stock_movements
		WHERE tenant_id = ? AND branch_id = ? AND part_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, scope.TenantID, scope.BranchID, partID, limit).Scan(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

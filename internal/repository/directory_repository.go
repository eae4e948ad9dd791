package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fieldops/maintenance-visits/internal/model"
)

// DirectoryRepository validates references against the platform's
// customer/product/technician directories. Read-only; the tables are
// owned by the provisioning subsystem.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) CustomerExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT COUNT(1) FROM customers WHERE id = ? AND tenant_id = ?
	`, id, scope.TenantID)
}

func (r *DirectoryRepository) ProductExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT COUNT(1) FROM products WHERE id = ? AND tenant_id = ?
	`, id, scope.TenantID)
}

func (r *DirectoryRepository) TechnicianExists(ctx context.Context, scope model.Scope, id uuid.UUID) (bool, error) {
	return r.exists(ctx, `
		SELECT COUNT(1)
		FROM users
		WHERE id = ? AND tenant_id = ? AND branch_id = ? AND role = 'TECHNICIAN'
	`, id, scope.TenantID, scope.BranchID)
}

func (r *DirectoryRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

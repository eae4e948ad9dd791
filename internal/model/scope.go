package model

import "github.com/google/uuid"

type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleManager    Role = "MANAGER"
	RoleTechnician Role = "TECHNICIAN"
)

// Scope is the tenant/branch boundary every repository call runs inside.
// It is built once per request from the authenticated principal and
// passed explicitly, never read from ambient state.
type Scope struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
}

// Principal is the authenticated caller extracted from the access token.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	BranchID uuid.UUID
	Role     Role
}

func (p Principal) Scope() Scope {
	return Scope{TenantID: p.TenantID, BranchID: p.BranchID}
}

func (p Principal) IsOwner() bool      { return p.Role == RoleOwner }
func (p Principal) IsManager() bool    { return p.Role == RoleManager }
func (p Principal) IsTechnician() bool { return p.Role == RoleTechnician }

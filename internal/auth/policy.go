package auth

import "github.com/fieldops/maintenance-visits/internal/model"

// Action is a capability checked once at the service boundary.
type Action string

const (
	ActionManageContracts Action = "manage_contracts"
	ActionViewContracts   Action = "view_contracts"
	ActionScheduleVisits  Action = "schedule_visits"
	ActionExecuteVisits   Action = "execute_visits"
	ActionCorrectVisits   Action = "correct_visits"
	ActionViewAnalytics   Action = "view_analytics"
)

// Can is the single authorization policy: (actor, action) -> allow.
// Resource-level rules (assigned technician, tenant scope) live with the
// services and repositories that own the resource.
func Can(p model.Principal, action Action) bool {
	switch p.Role {
	case model.RoleOwner:
		return true
	case model.RoleManager:
		return action != ActionCorrectVisits
	case model.RoleTechnician:
		return action == ActionExecuteVisits || action == ActionViewContracts
	default:
		return false
	}
}

// Package access holds the single authorization predicate for the API. Every
// call site (route middleware, service precondition) funnels through
// CanPerform so the rule set lives in exactly one place.
package access

import (
	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

// Reason is a machine-readable explanation for a decision.
type Reason string

const (
	ReasonGranted           Reason = "granted"
	ReasonInactive          Reason = "account_inactive"
	ReasonDepartmentDenied  Reason = "department_access_denied"
	ReasonMissingPermission Reason = "missing_permission"
)

// Decision is the outcome of an authorization check, carrying enough context
// for callers to produce a discoverable denial message.
type Decision struct {
	Allowed    bool
	Reason     Reason
	Resource   string
	Action     models.PermissionAction
	Department string
}

// Err converts a denial into a typed Forbidden error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == ReasonInactive {
		return appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}
	return appErrors.Forbidden(string(d.Reason), d.Resource, string(d.Action), d.Department)
}

// CanPerform evaluates whether the user may perform action on resource,
// optionally scoped to a department (empty departmentID means unscoped).
// It is a pure predicate: first match wins, no side effects.
//
// Order: inactive deny; super_admin allow; admin city-wide allow on
// department-scoped checks; wrong-department deny for department-bound roles;
// otherwise a flat scan of the permission set, with "manage" satisfying any
// action on its resource.
func CanPerform(user *models.User, resource string, action models.PermissionAction, departmentID string) Decision {
	d := Decision{Resource: resource, Action: action, Department: departmentID}

	if user == nil || !user.IsActive {
		d.Reason = ReasonInactive
		return d
	}

	if user.Role == models.RoleSuperAdmin {
		d.Allowed = true
		d.Reason = ReasonGranted
		return d
	}

	if departmentID != "" {
		if user.Role == models.RoleAdmin {
			d.Allowed = true
			d.Reason = ReasonGranted
			return d
		}
		if user.Role.DepartmentScoped() && user.DepartmentID() != departmentID {
			d.Reason = ReasonDepartmentDenied
			return d
		}
	}

	for _, p := range user.Permissions {
		if p.Resource == resource && (p.Action == action || p.Action == models.ActionManage) {
			d.Allowed = true
			d.Reason = ReasonGranted
			return d
		}
	}

	d.Reason = ReasonMissingPermission
	return d
}

// CanAccessAdmin is the coarse route-level gate for staff surfaces. Civil
// principals are excluded from every admin area regardless of permissions.
func CanAccessAdmin(user *models.User) bool {
	if user == nil || !user.IsActive {
		return false
	}
	switch user.Role {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleDepartmentHead, models.RoleOfficer:
		return true
	}
	return false
}

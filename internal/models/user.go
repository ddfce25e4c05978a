package models

import "time"

// UserRole represents the available roles for the access control system.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "super_admin"
	RoleAdmin          UserRole = "admin"
	RoleDepartmentHead UserRole = "department_head"
	RoleOfficer        UserRole = "officer"
	RoleCivil          UserRole = "civil"
)

// ValidRole reports whether the role belongs to the closed role set.
func ValidRole(r UserRole) bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDepartmentHead, RoleOfficer, RoleCivil:
		return true
	}
	return false
}

// DepartmentScoped reports whether the role's authority is bound to a single
// department. Such roles require a department on the account.
func (r UserRole) DepartmentScoped() bool {
	return r == RoleDepartmentHead || r == RoleOfficer
}

// PermissionAction is the verb portion of a permission grant.
type PermissionAction string

const (
	ActionCreate PermissionAction = "create"
	ActionRead   PermissionAction = "read"
	ActionUpdate PermissionAction = "update"
	ActionDelete PermissionAction = "delete"
	// ActionManage is a wildcard satisfying any action check on its resource.
	ActionManage PermissionAction = "manage"
)

// ValidAction reports whether the action belongs to the closed action set.
func ValidAction(a PermissionAction) bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Permission is a flat (resource, action) grant. There is no inheritance
// hierarchy; a user's capabilities are exactly the set of rows assigned.
type Permission struct {
	Resource string           `db:"resource" json:"resource"`
	Action   PermissionAction `db:"action" json:"action"`
}

// User represents a staff account stored in the users table. Civil users
// never authenticate against this API, so no civil rows are provisioned.
type User struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	Name         string       `db:"name" json:"name"`
	Role         UserRole     `db:"role" json:"role"`
	Department   *string      `db:"department" json:"department,omitempty"`
	Permissions  []Permission `db:"-" json:"permissions"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	Phone        *string      `db:"phone" json:"phone,omitempty"`
	Avatar       *string      `db:"avatar" json:"avatar,omitempty"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// DepartmentID returns the user's department tag or "" when unscoped.
func (u *User) DepartmentID() string {
	if u.Department == nil {
		return ""
	}
	return *u.Department
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role       *UserRole
	Department string
	Active     *bool
	Search     string
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

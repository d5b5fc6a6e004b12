package account

import "time"

// Role is the closed set of roles an account can hold.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
	RoleDepartment Role = "department"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSuperAdmin, RoleDepartment:
		return true
	}
	return false
}

// Privileged reports whether the role grants access to administrative surfaces.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Status is the closed set of account states.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDeleted:
		return true
	}
	return false
}

// Account represents one login identity. Department is non-empty exactly
// when Role is RoleDepartment. Accounts are never physically removed; a
// delete sets StatusDeleted and DeletedAt.
type Account struct {
	ID                int64
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	Department        string
	Status            Status
	FailedLogins      int
	LastLoginAt       *time.Time
	PasswordChangedAt *time.Time
	DeletedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount carries the input for account creation.
type NewAccount struct {
	Username   string
	Email      string
	Password   string
	Role       Role
	Department string
}

// UpdateRequest carries a partial administrative update. Nil fields are left
// unchanged.
type UpdateRequest struct {
	Username   *string
	Email      *string
	Role       *Role
	Department *string
	Status     *Status
}

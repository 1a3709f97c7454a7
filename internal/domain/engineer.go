package domain

import "time"

// EngineerRole enumerates operator roles.
type EngineerRole string

const (
	RoleEngineer EngineerRole = "ENGINEER"
	RoleManager  EngineerRole = "MANAGER"
	RoleAdmin    EngineerRole = "ADMIN"
)

// Engineer models a field engineer or a manager/administrator.
type Engineer struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         EngineerRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAssignOthers reports whether the engineer may assign or reassign
// tickets on behalf of other engineers.
func (e *Engineer) CanAssignOthers() bool {
	return e.Role == RoleManager || e.Role == RoleAdmin
}

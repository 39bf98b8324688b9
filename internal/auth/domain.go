package auth

import (
	"fmt"
	"time"
)

// Role is the closed set of roles a principal can hold.
type Role string

const (
	// RoleStudent can browse published courses and enroll in them.
	RoleStudent Role = "STUDENT"
	// RoleInstructor owns courses and gates platform content.
	RoleInstructor Role = "INSTRUCTOR"
	// RoleAdmin bypasses ownership checks and manages accounts.
	RoleAdmin Role = "ADMIN"
)

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleInstructor, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal represents a stored account and, once resolved for a request,
// the authenticated identity attached to that request's context.
type Principal struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Approved     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Enabled reports whether the principal may authenticate. Instructors start
// disabled until an admin approves them; students and admins start enabled.
func (p *Principal) Enabled() bool {
	return p != nil && p.Approved
}

// FullName joins first and last name for display.
func (p *Principal) FullName() string {
	return p.FirstName + " " + p.LastName
}

// DefaultApproval returns the activation state a freshly registered
// principal starts with for the given role.
func DefaultApproval(role Role) bool {
	return role != RoleInstructor
}

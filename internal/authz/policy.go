// Package authz holds the pure authorization policy evaluator. Every
// function takes an optional principal (nil means anonymous) plus
// already-loaded resource metadata and returns a Decision; no I/O happens
// here and callers must short-circuit on a deny before mutating anything.
package authz

import (
	"fmt"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// Reason explains a deny decision.
type Reason string

const (
	// ReasonUnauthenticated denies anonymous requests.
	ReasonUnauthenticated Reason = "authentication required"
	// ReasonRoleViolation denies a principal whose role is not allowed.
	ReasonRoleViolation Reason = "role not permitted"
	// ReasonOwnershipViolation denies a principal who is neither owner nor admin.
	ReasonOwnershipViolation Reason = "not the resource owner"
	// ReasonCourseUnpublished denies enrollment into an unpublished course.
	ReasonCourseUnpublished Reason = "course is not published"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Allow is the affirmative decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision with the given reason.
func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Err converts a decision into an error for the HTTP layer: nil when
// allowed, a forbidden-wrapping error when denied so handlers render 403.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", httpx.ErrForbidden, d.Reason)
}

// CanCreateCourse allows instructors and admins to create courses.
func CanCreateCourse(p *auth.Principal) Decision {
	if p == nil {
		return Deny(ReasonRoleViolation)
	}
	switch p.Role {
	case auth.RoleInstructor, auth.RoleAdmin:
		return Allow
	case auth.RoleStudent:
		return Deny(ReasonRoleViolation)
	}
	return Deny(ReasonRoleViolation)
}

// CanMutateCourse allows the owning instructor or an admin to update,
// delete, publish or unpublish a course. The admin bypass covers ownership
// only; it does not widen the creation gate above.
func CanMutateCourse(p *auth.Principal, ownerID int64) Decision {
	if p == nil {
		return Deny(ReasonOwnershipViolation)
	}
	if p.Role == auth.RoleAdmin {
		return Allow
	}
	if p.ID == ownerID {
		return Allow
	}
	return Deny(ReasonOwnershipViolation)
}

// CanViewCourseEnrollments applies the same owner-or-admin rule to the
// enrollment roster.
func CanViewCourseEnrollments(p *auth.Principal, ownerID int64) Decision {
	return CanMutateCourse(p, ownerID)
}

// CanEnroll allows any authenticated principal to enroll in a published
// course. The "not already enrolled" invariant is enforced atomically at the
// store, not here.
func CanEnroll(p *auth.Principal, coursePublished bool) Decision {
	if p == nil {
		return Deny(ReasonUnauthenticated)
	}
	if !coursePublished {
		return Deny(ReasonCourseUnpublished)
	}
	return Allow
}

// CanManageUsers allows admins to list accounts and approve instructors.
func CanManageUsers(p *auth.Principal) Decision {
	if p == nil || p.Role != auth.RoleAdmin {
		return Deny(ReasonRoleViolation)
	}
	return Allow
}

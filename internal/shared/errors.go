package shared

import (
	"fmt"

	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// Error taxonomy for authentication, registration and enrollment. Each error
// wraps an httpx sentinel so handlers can hand any of them straight to
// httpx.RespondError and get the right status code.
var (
	// ErrUnknownPrincipal indicates the username-or-email matched no record.
	ErrUnknownPrincipal = fmt.Errorf("%w: unknown account", httpx.ErrUnauthorized)
	// ErrBadCredentials indicates the password did not match the stored hash.
	ErrBadCredentials = fmt.Errorf("%w: invalid credentials", httpx.ErrUnauthorized)
	// ErrDisabledAccount indicates correct credentials on a not-yet-approved account.
	ErrDisabledAccount = fmt.Errorf("%w: account pending approval", httpx.ErrUnauthorized)
	// ErrTooManyAttempts indicates the sign-in throttle tripped.
	ErrTooManyAttempts = fmt.Errorf("%w: sign-in attempts exceeded", httpx.ErrTooManyRequests)

	// ErrDuplicateUsername indicates the username is already taken.
	ErrDuplicateUsername = fmt.Errorf("%w: username already taken", httpx.ErrDuplicate)
	// ErrDuplicateEmail indicates the email is already in use.
	ErrDuplicateEmail = fmt.Errorf("%w: email already in use", httpx.ErrDuplicate)

	// ErrAlreadyEnrolled indicates an enrollment already exists for (student, course).
	ErrAlreadyEnrolled = fmt.Errorf("%w: already enrolled in course", httpx.ErrDuplicate)
	// ErrNotEnrolled indicates no enrollment exists for (student, course).
	ErrNotEnrolled = fmt.Errorf("%w: not enrolled in course", httpx.ErrNotFound)
	// ErrCourseUnpublished indicates an enrollment attempt on an unpublished course.
	ErrCourseUnpublished = fmt.Errorf("%w: course is not published", httpx.ErrValidation)
)

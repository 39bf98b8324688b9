package enrollments

import (
	"context"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/authz"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
)

// CourseGetter loads course metadata for policy checks.
type CourseGetter interface {
	Get(ctx context.Context, id int64) (*courses.Course, error)
}

// Service handles enrollment business logic.
type Service struct {
	repo       RepositoryPort
	courseRepo CourseGetter
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, courseRepo CourseGetter) *Service {
	return &Service{repo: repo, courseRepo: courseRepo}
}

// Enroll registers the principal into a published course. The insert itself
// is the atomic "not already enrolled" check; two concurrent attempts yield
// exactly one row and one ErrAlreadyEnrolled.
func (s *Service) Enroll(ctx context.Context, principal *auth.Principal, courseID int64) (*Enrollment, error) {
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if d := authz.CanEnroll(principal, course.IsPublished); !d.Allowed {
		switch d.Reason {
		case authz.ReasonUnauthenticated:
			return nil, httpx.ErrUnauthorized
		case authz.ReasonCourseUnpublished:
			return nil, shared.ErrCourseUnpublished
		default:
			return nil, d.Err()
		}
	}
	return s.repo.Insert(ctx, principal.ID, courseID)
}

// Unenroll removes the principal's enrollment.
func (s *Service) Unenroll(ctx context.Context, principal *auth.Principal, courseID int64) error {
	if _, err := s.courseRepo.Get(ctx, courseID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, principal.ID, courseID)
}

// MyEnrollments lists the principal's enrollments.
func (s *Service) MyEnrollments(ctx context.Context, principal *auth.Principal) ([]Enrollment, error) {
	return s.repo.ListByStudent(ctx, principal.ID)
}

// CourseRoster lists a course's enrollments for its owner or an admin.
func (s *Service) CourseRoster(ctx context.Context, principal *auth.Principal, courseID int64) ([]Enrollment, error) {
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if d := authz.CanViewCourseEnrollments(principal, course.InstructorID); !d.Allowed {
		return nil, d.Err()
	}
	return s.repo.ListByCourse(ctx, courseID)
}

// IsEnrolled reports whether the principal is enrolled in the course.
func (s *Service) IsEnrolled(ctx context.Context, principal *auth.Principal, courseID int64) (bool, error) {
	return s.repo.Exists(ctx, principal.ID, courseID)
}

// Enrollment fetches the principal's enrollment in the course.
func (s *Service) Enrollment(ctx context.Context, principal *auth.Principal, courseID int64) (*Enrollment, error) {
	return s.repo.Get(ctx, principal.ID, courseID)
}

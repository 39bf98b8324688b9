package lessons

import (
	"context"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/authz"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/platform/httpx"
)

// CourseGetter loads course metadata for policy checks.
type CourseGetter interface {
	Get(ctx context.Context, id int64) (*courses.Course, error)
}

// Service handles lesson content and progress tracking. Content mutations
// are gated by the course ownership policy; progress mutations require an
// enrollment, which the store enforces.
type Service struct {
	repo       RepositoryPort
	courseRepo CourseGetter
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, courseRepo CourseGetter) *Service {
	return &Service{repo: repo, courseRepo: courseRepo}
}

// LessonInput carries the caller-editable lesson fields.
type LessonInput struct {
	Title           string
	Description     string
	LessonType      LessonType
	Content         string
	FileURL         *string
	DurationMinutes int
	IsPublished     bool
}

// ListForCourse returns the course's lessons. Owners and admins see drafts;
// everyone else sees only published lessons.
func (s *Service) ListForCourse(ctx context.Context, principal *auth.Principal, courseID int64) ([]Lesson, error) {
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	publishedOnly := !authz.CanMutateCourse(principal, course.InstructorID).Allowed
	return s.repo.ListByCourse(ctx, courseID, publishedOnly)
}

// Create appends a lesson to the course after an ownership check.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, courseID int64, in LessonInput) (*Lesson, error) {
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return nil, d.Err()
	}

	lesson := Lesson{
		CourseID:        courseID,
		Title:           in.Title,
		Description:     in.Description,
		LessonType:      in.LessonType,
		Content:         in.Content,
		FileURL:         in.FileURL,
		DurationMinutes: in.DurationMinutes,
		IsPublished:     in.IsPublished,
	}
	id, err := s.repo.Create(ctx, lesson)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update rewrites a lesson after an ownership check against its course.
func (s *Service) Update(ctx context.Context, principal *auth.Principal, courseID, lessonID int64, in LessonInput) (*Lesson, error) {
	lesson, err := s.lessonInCourse(ctx, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return nil, d.Err()
	}

	lesson.Title = in.Title
	lesson.Description = in.Description
	lesson.LessonType = in.LessonType
	lesson.Content = in.Content
	lesson.FileURL = in.FileURL
	lesson.DurationMinutes = in.DurationMinutes
	lesson.IsPublished = in.IsPublished
	if err := s.repo.Update(ctx, *lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// Delete removes a lesson after an ownership check against its course.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, courseID, lessonID int64) error {
	if _, err := s.lessonInCourse(ctx, courseID, lessonID); err != nil {
		return err
	}
	course, err := s.courseRepo.Get(ctx, courseID)
	if err != nil {
		return err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return d.Err()
	}
	return s.repo.Delete(ctx, lessonID)
}

// Complete marks the lesson done for the principal and returns the updated
// per-lesson progress. The store recomputes the enrollment's percentage and
// completion flag in the same transaction.
func (s *Service) Complete(ctx context.Context, principal *auth.Principal, courseID, lessonID int64) (*Progress, error) {
	if principal == nil {
		return nil, httpx.ErrUnauthorized
	}
	return s.repo.Complete(ctx, principal.ID, courseID, lessonID)
}

// RecordTime adds watch time to the principal's progress on the lesson.
func (s *Service) RecordTime(ctx context.Context, principal *auth.Principal, courseID, lessonID int64, minutes int) (*Progress, error) {
	if principal == nil {
		return nil, httpx.ErrUnauthorized
	}
	return s.repo.RecordTime(ctx, principal.ID, courseID, lessonID, minutes)
}

// MyProgress returns the principal's per-lesson progress for the course.
func (s *Service) MyProgress(ctx context.Context, principal *auth.Principal, courseID int64) ([]Progress, error) {
	if principal == nil {
		return nil, httpx.ErrUnauthorized
	}
	return s.repo.ListProgress(ctx, principal.ID, courseID)
}

func (s *Service) lessonInCourse(ctx context.Context, courseID, lessonID int64) (*Lesson, error) {
	lesson, err := s.repo.Get(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != courseID {
		return nil, httpx.ErrNotFound
	}
	return lesson, nil
}

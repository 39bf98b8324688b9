package courses

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/authz"
	"github.com/coursehub/coursehub/internal/shared"
)

// Service handles course business logic. Every mutating operation consults
// the policy evaluator before touching the store and passes only the owner
// id, never a loaded owner record.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance. Audit may be nil.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// CourseInput carries the caller-editable course fields.
type CourseInput struct {
	Title           string
	Description     string
	Category        string
	DifficultyLevel DifficultyLevel
	Price           float64
	IsPublished     bool
	ThumbnailURL    *string
}

// ListPublished returns a page of published courses for anonymous browsing.
func (s *Service) ListPublished(ctx context.Context, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.ListPublished(ctx, page)
	return paged(list, total, page, err)
}

// SearchPublished returns published courses matching the term.
func (s *Service) SearchPublished(ctx context.Context, term string, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.SearchPublished(ctx, term, page)
	return paged(list, total, page, err)
}

// ListByCategory returns published courses in the category.
func (s *Service) ListByCategory(ctx context.Context, category string, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.ListPublishedByCategory(ctx, category, page)
	return paged(list, total, page, err)
}

// ListByDifficulty returns published courses at the difficulty level.
func (s *Service) ListByDifficulty(ctx context.Context, level DifficultyLevel, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.ListPublishedByDifficulty(ctx, level, page)
	return paged(list, total, page, err)
}

// ListFree returns published courses with a zero price.
func (s *Service) ListFree(ctx context.Context, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.ListFreePublished(ctx, page)
	return paged(list, total, page, err)
}

// ListPopular returns published courses ranked by enrollment count.
func (s *Service) ListPopular(ctx context.Context, page shared.Pagination) ([]Course, shared.Pagination, error) {
	list, total, err := s.repo.ListPopular(ctx, page)
	return paged(list, total, page, err)
}

func paged(list []Course, total int, page shared.Pagination, err error) ([]Course, shared.Pagination, error) {
	if err != nil {
		return nil, page, err
	}
	return list, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get fetches one course by id.
func (s *Service) Get(ctx context.Context, id int64) (*Course, error) {
	return s.repo.Get(ctx, id)
}

// ListMine returns the courses owned by the current principal.
func (s *Service) ListMine(ctx context.Context, principal *auth.Principal) ([]Course, error) {
	if d := authz.CanCreateCourse(principal); !d.Allowed {
		return nil, d.Err()
	}
	return s.repo.ListByInstructor(ctx, principal.ID)
}

// Create inserts a course owned by the current principal.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, in CourseInput) (*Course, error) {
	if d := authz.CanCreateCourse(principal); !d.Allowed {
		return nil, d.Err()
	}

	course := Course{
		Title:           in.Title,
		Description:     in.Description,
		InstructorID:    principal.ID,
		InstructorName:  principal.FullName(),
		Category:        in.Category,
		DifficultyLevel: in.DifficultyLevel,
		Price:           in.Price,
		IsPublished:     in.IsPublished,
		ThumbnailURL:    in.ThumbnailURL,
	}
	id, err := s.repo.Create(ctx, course)
	if err != nil {
		return nil, err
	}
	course.ID = id
	return &course, nil
}

// Update rewrites a course after an ownership check against the stored
// owner id.
func (s *Service) Update(ctx context.Context, principal *auth.Principal, id int64, in CourseInput) (*Course, error) {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return nil, d.Err()
	}

	course.Title = in.Title
	course.Description = in.Description
	course.Category = in.Category
	course.DifficultyLevel = in.DifficultyLevel
	course.Price = in.Price
	course.IsPublished = in.IsPublished
	course.ThumbnailURL = in.ThumbnailURL
	if err := s.repo.Update(ctx, *course); err != nil {
		return nil, err
	}
	return course, nil
}

// Delete removes a course after an ownership check.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, id int64) error {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return d.Err()
	}
	return s.repo.Delete(ctx, id)
}

// SetPublished publishes or unpublishes a course after an ownership check.
func (s *Service) SetPublished(ctx context.Context, principal *auth.Principal, id int64, published bool) (*Course, error) {
	course, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.CanMutateCourse(principal, course.InstructorID); !d.Allowed {
		return nil, d.Err()
	}
	if err := s.repo.SetPublished(ctx, id, published); err != nil {
		return nil, err
	}
	course.IsPublished = published

	if s.audit != nil {
		action := "course.unpublish"
		if published {
			action = "course.publish"
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  principal.ID,
			Action:   action,
			Entity:   "course",
			EntityID: strconv.FormatInt(id, 10),
		}); err != nil {
			s.logger.Warn("audit publish", slog.Any("error", err))
		}
	}
	return course, nil
}

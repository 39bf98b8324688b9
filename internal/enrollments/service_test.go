package enrollments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
	_ "github.com/coursehub/coursehub/testing"
)

type enrollmentKey struct {
	studentID int64
	courseID  int64
}

// memoryEnrollmentRepo mimics the unique(student_id, course_id) constraint:
// the insert itself is the duplicate check, under a lock like the database
// would serialize it.
type memoryEnrollmentRepo struct {
	mu     sync.Mutex
	rows   map[enrollmentKey]Enrollment
	nextID int64
}

func newMemoryEnrollmentRepo() *memoryEnrollmentRepo {
	return &memoryEnrollmentRepo{rows: map[enrollmentKey]Enrollment{}}
}

func (r *memoryEnrollmentRepo) Insert(ctx context.Context, studentID, courseID int64) (*Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := enrollmentKey{studentID, courseID}
	if _, ok := r.rows[key]; ok {
		return nil, shared.ErrAlreadyEnrolled
	}
	r.nextID++
	e := Enrollment{ID: r.nextID, StudentID: studentID, CourseID: courseID, EnrolledAt: time.Now()}
	r.rows[key] = e
	clone := e
	return &clone, nil
}

func (r *memoryEnrollmentRepo) Delete(ctx context.Context, studentID, courseID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := enrollmentKey{studentID, courseID}
	if _, ok := r.rows[key]; !ok {
		return shared.ErrNotEnrolled
	}
	delete(r.rows, key)
	return nil
}

func (r *memoryEnrollmentRepo) Get(ctx context.Context, studentID, courseID int64) (*Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[enrollmentKey{studentID, courseID}]
	if !ok {
		return nil, shared.ErrNotEnrolled
	}
	clone := e
	return &clone, nil
}

func (r *memoryEnrollmentRepo) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rows[enrollmentKey{studentID, courseID}]
	return ok, nil
}

func (r *memoryEnrollmentRepo) ListByStudent(ctx context.Context, studentID int64) ([]Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Enrollment
	for _, e := range r.rows {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryEnrollmentRepo) ListByCourse(ctx context.Context, courseID int64) ([]Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Enrollment
	for _, e := range r.rows {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubCourseGetter struct {
	courses map[int64]*courses.Course
}

func (s *stubCourseGetter) Get(ctx context.Context, id int64) (*courses.Course, error) {
	c, ok := s.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: course %d", httpx.ErrNotFound, id)
	}
	return c, nil
}

func newEnrollmentService(published bool) (*Service, *memoryEnrollmentRepo) {
	repo := newMemoryEnrollmentRepo()
	getter := &stubCourseGetter{courses: map[int64]*courses.Course{
		1: {ID: 1, Title: "Go", InstructorID: 50, IsPublished: published},
	}}
	return NewService(repo, getter), repo
}

func student(id int64) *auth.Principal {
	return &auth.Principal{ID: id, Username: fmt.Sprintf("student-%d", id), Role: auth.RoleStudent, Approved: true}
}

func TestEnroll(t *testing.T) {
	service, _ := newEnrollmentService(true)

	e, err := service.Enroll(context.Background(), student(1), 1)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if e.StudentID != 1 || e.CourseID != 1 {
		t.Fatalf("unexpected enrollment: %+v", e)
	}

	enrolled, err := service.IsEnrolled(context.Background(), student(1), 1)
	if err != nil || !enrolled {
		t.Fatalf("expected enrolled=true, got %v (%v)", enrolled, err)
	}
}

func TestEnrollAnonymous(t *testing.T) {
	service, _ := newEnrollmentService(true)

	if _, err := service.Enroll(context.Background(), nil, 1); !errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEnrollUnpublishedCourse(t *testing.T) {
	service, _ := newEnrollmentService(false)

	if _, err := service.Enroll(context.Background(), student(1), 1); !errors.Is(err, shared.ErrCourseUnpublished) {
		t.Fatalf("expected ErrCourseUnpublished, got %v", err)
	}
}

func TestEnrollUnknownCourse(t *testing.T) {
	service, _ := newEnrollmentService(true)

	if _, err := service.Enroll(context.Background(), student(1), 404); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnrollTwice(t *testing.T) {
	service, _ := newEnrollmentService(true)

	if _, err := service.Enroll(context.Background(), student(1), 1); err != nil {
		t.Fatalf("first enroll: %v", err)
	}
	if _, err := service.Enroll(context.Background(), student(1), 1); !errors.Is(err, shared.ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEnrollConcurrent(t *testing.T) {
	service, repo := newEnrollmentService(true)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Enroll(context.Background(), student(1), 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrAlreadyEnrolled):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != attempts-1 {
		t.Fatalf("expected exactly one success, got ok=%d dup=%d", ok, dup)
	}
	if len(repo.rows) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.rows))
	}
}

func TestUnenroll(t *testing.T) {
	service, _ := newEnrollmentService(true)

	if _, err := service.Enroll(context.Background(), student(1), 1); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := service.Unenroll(context.Background(), student(1), 1); err != nil {
		t.Fatalf("unenroll: %v", err)
	}
	if err := service.Unenroll(context.Background(), student(1), 1); !errors.Is(err, shared.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
}

func TestCourseRosterOwnership(t *testing.T) {
	service, _ := newEnrollmentService(true)
	if _, err := service.Enroll(context.Background(), student(1), 1); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// Course 1 is owned by instructor 50.
	owner := &auth.Principal{ID: 50, Role: auth.RoleInstructor, Approved: true}
	roster, err := service.CourseRoster(context.Background(), owner, 1)
	if err != nil {
		t.Fatalf("owner roster: %v", err)
	}
	if len(roster) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(roster))
	}

	other := &auth.Principal{ID: 51, Role: auth.RoleInstructor, Approved: true}
	if _, err := service.CourseRoster(context.Background(), other, 1); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("other instructor roster: expected ErrForbidden, got %v", err)
	}

	admin := &auth.Principal{ID: 99, Role: auth.RoleAdmin, Approved: true}
	if _, err := service.CourseRoster(context.Background(), admin, 1); err != nil {
		t.Fatalf("admin roster: %v", err)
	}
}

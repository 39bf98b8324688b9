package lessons

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/coursehub/coursehub/internal/auth"
	"github.com/coursehub/coursehub/internal/courses"
	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
	_ "github.com/coursehub/coursehub/testing"
)

type enrollmentState struct {
	id          int64
	pct         float64
	done        bool
	completedAt *time.Time
}

// memoryLessonRepo mirrors the store semantics: contiguous order indexes,
// unique (enrollment, lesson) progress rows, enrollment recompute on every
// progress write.
type memoryLessonRepo struct {
	lessons     map[int64]Lesson
	nextID      int64
	enrollments map[[2]int64]*enrollmentState
	progress    map[[2]int64]*Progress
	progressID  int64
}

func newMemoryLessonRepo() *memoryLessonRepo {
	return &memoryLessonRepo{
		lessons:     map[int64]Lesson{},
		enrollments: map[[2]int64]*enrollmentState{},
		progress:    map[[2]int64]*Progress{},
	}
}

func (r *memoryLessonRepo) enroll(studentID, courseID int64) *enrollmentState {
	state := &enrollmentState{id: int64(len(r.enrollments) + 1)}
	r.enrollments[[2]int64{studentID, courseID}] = state
	return state
}

func (r *memoryLessonRepo) Get(ctx context.Context, id int64) (*Lesson, error) {
	l, ok := r.lessons[id]
	if !ok {
		return nil, fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, id)
	}
	clone := l
	return &clone, nil
}

func (r *memoryLessonRepo) ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]Lesson, error) {
	out := []Lesson{}
	for i := 1; ; i++ {
		found := false
		for _, l := range r.lessons {
			if l.CourseID == courseID && l.OrderIndex == i {
				if !publishedOnly || l.IsPublished {
					out = append(out, l)
				}
				found = true
			}
		}
		if !found {
			return out, nil
		}
	}
}

func (r *memoryLessonRepo) Create(ctx context.Context, l Lesson) (int64, error) {
	next := 1
	for _, existing := range r.lessons {
		if existing.CourseID == l.CourseID && existing.OrderIndex >= next {
			next = existing.OrderIndex + 1
		}
	}
	r.nextID++
	l.ID = r.nextID
	l.OrderIndex = next
	r.lessons[l.ID] = l
	return l.ID, nil
}

func (r *memoryLessonRepo) Update(ctx context.Context, l Lesson) error {
	existing, ok := r.lessons[l.ID]
	if !ok {
		return fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, l.ID)
	}
	l.OrderIndex = existing.OrderIndex
	r.lessons[l.ID] = l
	return nil
}

func (r *memoryLessonRepo) Delete(ctx context.Context, id int64) error {
	gone, ok := r.lessons[id]
	if !ok {
		return fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, id)
	}
	delete(r.lessons, id)
	for lid, l := range r.lessons {
		if l.CourseID == gone.CourseID && l.OrderIndex > gone.OrderIndex {
			l.OrderIndex--
			r.lessons[lid] = l
		}
	}
	return nil
}

func (r *memoryLessonRepo) Complete(ctx context.Context, studentID, courseID, lessonID int64) (*Progress, error) {
	state, p, err := r.upsert(studentID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	p.IsCompleted = true
	if p.CompletedAt == nil {
		now := time.Now()
		p.CompletedAt = &now
	}
	r.recompute(state, courseID)
	clone := *p
	return &clone, nil
}

func (r *memoryLessonRepo) RecordTime(ctx context.Context, studentID, courseID, lessonID int64, minutes int) (*Progress, error) {
	state, p, err := r.upsert(studentID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	p.TimeSpentMinutes += minutes
	r.recompute(state, courseID)
	clone := *p
	return &clone, nil
}

func (r *memoryLessonRepo) ListProgress(ctx context.Context, studentID, courseID int64) ([]Progress, error) {
	state, ok := r.enrollments[[2]int64{studentID, courseID}]
	if !ok {
		return []Progress{}, nil
	}
	out := []Progress{}
	for _, p := range r.progress {
		if p.EnrollmentID == state.id {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryLessonRepo) upsert(studentID, courseID, lessonID int64) (*enrollmentState, *Progress, error) {
	state, ok := r.enrollments[[2]int64{studentID, courseID}]
	if !ok {
		return nil, nil, shared.ErrNotEnrolled
	}
	lesson, ok := r.lessons[lessonID]
	if !ok || lesson.CourseID != courseID {
		return nil, nil, fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, lessonID)
	}
	key := [2]int64{state.id, lessonID}
	p, ok := r.progress[key]
	if !ok {
		r.progressID++
		p = &Progress{ID: r.progressID, EnrollmentID: state.id, LessonID: lessonID}
		r.progress[key] = p
	}
	return state, p, nil
}

func (r *memoryLessonRepo) recompute(state *enrollmentState, courseID int64) {
	total, completed := 0, 0
	for _, l := range r.lessons {
		if l.CourseID != courseID {
			continue
		}
		total++
		if p, ok := r.progress[[2]int64{state.id, l.ID}]; ok && p.IsCompleted {
			completed++
		}
	}
	state.pct, state.done = progressPercent(completed, total)
	if state.done && state.completedAt == nil {
		now := time.Now()
		state.completedAt = &now
	}
}

type memoryCourseDir struct {
	courses map[int64]*courses.Course
}

func (d *memoryCourseDir) Get(ctx context.Context, id int64) (*courses.Course, error) {
	c, ok := d.courses[id]
	if !ok {
		return nil, fmt.Errorf("%w: course %d", httpx.ErrNotFound, id)
	}
	clone := *c
	return &clone, nil
}

func fixtureService() (*Service, *memoryLessonRepo) {
	repo := newMemoryLessonRepo()
	dir := &memoryCourseDir{courses: map[int64]*courses.Course{
		1: {ID: 1, Title: "Go", InstructorID: 5, IsPublished: true},
	}}
	return NewService(repo, dir), repo
}

func owner() *auth.Principal {
	return &auth.Principal{ID: 5, Username: "instructor-5", Role: auth.RoleInstructor, Approved: true}
}

func student(id int64) *auth.Principal {
	return &auth.Principal{ID: id, Username: fmt.Sprintf("student-%d", id), Role: auth.RoleStudent, Approved: true}
}

func lessonInput(title string, published bool) LessonInput {
	return LessonInput{Title: title, LessonType: LessonText, Content: "body", IsPublished: published}
}

func TestProgressPercent(t *testing.T) {
	cases := []struct {
		completed, total int
		pct              float64
		done             bool
	}{
		{0, 4, 0, false},
		{1, 4, 25, false},
		{2, 3, 66.67, false},
		{3, 3, 100, true},
		{0, 0, 0, false},
	}
	for _, tc := range cases {
		pct, done := progressPercent(tc.completed, tc.total)
		if pct != tc.pct || done != tc.done {
			t.Fatalf("%d of %d: expected (%v, %v), got (%v, %v)",
				tc.completed, tc.total, tc.pct, tc.done, pct, done)
		}
	}
}

func TestCreateLessonOwnership(t *testing.T) {
	service, _ := fixtureService()

	if _, err := service.Create(context.Background(), student(2), 1, lessonInput("Intro", true)); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("student create: expected ErrForbidden, got %v", err)
	}
	other := &auth.Principal{ID: 6, Role: auth.RoleInstructor, Approved: true}
	if _, err := service.Create(context.Background(), other, 1, lessonInput("Intro", true)); !errors.Is(err, httpx.ErrForbidden) {
		t.Fatalf("other instructor create: expected ErrForbidden, got %v", err)
	}

	first, err := service.Create(context.Background(), owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}
	second, err := service.Create(context.Background(), owner(), 1, lessonInput("Types", true))
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}
	if first.OrderIndex != 1 || second.OrderIndex != 2 {
		t.Fatalf("expected order 1,2, got %d,%d", first.OrderIndex, second.OrderIndex)
	}
}

func TestListLessonsVisibility(t *testing.T) {
	service, _ := fixtureService()
	ctx := context.Background()
	if _, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, owner(), 1, lessonInput("Draft", false)); err != nil {
		t.Fatalf("create: %v", err)
	}

	public, err := service.ListForCourse(ctx, student(2), 1)
	if err != nil {
		t.Fatalf("student list: %v", err)
	}
	if len(public) != 1 || public[0].Title != "Intro" {
		t.Fatalf("draft lesson leaked to student: %+v", public)
	}

	mine, err := service.ListForCourse(ctx, owner(), 1)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("owner should see drafts, got %d lessons", len(mine))
	}
}

func TestCompleteRequiresEnrollment(t *testing.T) {
	service, _ := fixtureService()
	ctx := context.Background()
	lesson, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := service.Complete(ctx, nil, 1, lesson.ID); !errors.Is(err, httpx.ErrUnauthorized) {
		t.Fatalf("anonymous complete: expected ErrUnauthorized, got %v", err)
	}
	if _, err := service.Complete(ctx, student(2), 1, lesson.ID); !errors.Is(err, shared.ErrNotEnrolled) {
		t.Fatalf("unenrolled complete: expected ErrNotEnrolled, got %v", err)
	}
}

func TestCompleteUpdatesEnrollmentProgress(t *testing.T) {
	service, repo := fixtureService()
	ctx := context.Background()
	first, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := service.Create(ctx, owner(), 1, lessonInput("Types", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state := repo.enroll(2, 1)

	progress, err := service.Complete(ctx, student(2), 1, first.ID)
	if err != nil {
		t.Fatalf("complete first: %v", err)
	}
	if !progress.IsCompleted || progress.CompletedAt == nil {
		t.Fatalf("lesson progress not marked complete: %+v", progress)
	}
	if state.pct != 50 || state.done {
		t.Fatalf("expected 50%% in progress, got %v done=%v", state.pct, state.done)
	}

	if _, err := service.Complete(ctx, student(2), 1, second.ID); err != nil {
		t.Fatalf("complete second: %v", err)
	}
	if state.pct != 100 || !state.done || state.completedAt == nil {
		t.Fatalf("expected completed enrollment, got %v done=%v", state.pct, state.done)
	}

	// Re-completing must keep the original completion timestamp.
	was := *state.completedAt
	if _, err := service.Complete(ctx, student(2), 1, first.ID); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	if !state.completedAt.Equal(was) {
		t.Fatalf("completion timestamp changed on re-complete")
	}
}

func TestRecordTimeAccumulates(t *testing.T) {
	service, repo := fixtureService()
	ctx := context.Background()
	lesson, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.enroll(2, 1)

	if _, err := service.RecordTime(ctx, student(2), 1, lesson.ID, 10); err != nil {
		t.Fatalf("record time: %v", err)
	}
	progress, err := service.RecordTime(ctx, student(2), 1, lesson.ID, 5)
	if err != nil {
		t.Fatalf("record time: %v", err)
	}
	if progress.TimeSpentMinutes != 15 {
		t.Fatalf("expected 15 minutes, got %d", progress.TimeSpentMinutes)
	}
	if progress.IsCompleted {
		t.Fatalf("watch time alone must not complete a lesson")
	}
}

func TestUpdateLessonWrongCourse(t *testing.T) {
	service, repo := fixtureService()
	ctx := context.Background()
	lesson, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	moved := repo.lessons[lesson.ID]
	moved.CourseID = 9
	repo.lessons[lesson.ID] = moved

	if _, err := service.Update(ctx, owner(), 1, lesson.ID, lessonInput("Intro", true)); !errors.Is(err, httpx.ErrNotFound) {
		t.Fatalf("cross-course update: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteLessonClosesOrderGap(t *testing.T) {
	service, _ := fixtureService()
	ctx := context.Background()
	first, err := service.Create(ctx, owner(), 1, lessonInput("Intro", true))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, owner(), 1, lessonInput("Types", true)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, owner(), 1, lessonInput("Funcs", true)); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := service.Delete(ctx, owner(), 1, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err := service.ListForCourse(ctx, owner(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].OrderIndex != 1 || list[1].OrderIndex != 2 {
		t.Fatalf("order gap not closed: %+v", list)
	}
}

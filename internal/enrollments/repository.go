package enrollments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/coursehub/internal/shared"
)

// RepositoryPort defines data access methods for enrollments.
type RepositoryPort interface {
	Insert(ctx context.Context, studentID, courseID int64) (*Enrollment, error)
	Delete(ctx context.Context, studentID, courseID int64) error
	Get(ctx context.Context, studentID, courseID int64) (*Enrollment, error)
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
	ListByStudent(ctx context.Context, studentID int64) ([]Enrollment, error)
	ListByCourse(ctx context.Context, courseID int64) ([]Enrollment, error)
}

// Repository provides PostgreSQL backed persistence for enrollments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const enrollmentColumns = `e.id, e.student_id, u.first_name || ' ' || u.last_name,
	e.course_id, c.title, e.enrolled_at, e.progress_percentage, e.is_completed, e.completed_at`

const enrollmentFrom = ` FROM enrollments e
	JOIN users u ON u.id = e.student_id
	JOIN courses c ON c.id = e.course_id `

// Insert creates the enrollment in one statement. The unique constraint on
// (student_id, course_id) turns a concurrent duplicate into a 23505, which
// maps to ErrAlreadyEnrolled; there is no separate existence check to race
// against.
func (r *Repository) Insert(ctx context.Context, studentID, courseID int64) (*Enrollment, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO enrollments (student_id, course_id) VALUES ($1, $2) RETURNING id`,
		studentID, courseID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("enrollments: insert: %w", err)
	}
	return r.Get(ctx, studentID, courseID)
}

// Delete removes the enrollment.
func (r *Repository) Delete(ctx context.Context, studentID, courseID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM enrollments WHERE student_id = $1 AND course_id = $2`, studentID, courseID)
	if err != nil {
		return fmt.Errorf("enrollments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotEnrolled
	}
	return nil
}

// Get fetches one enrollment by (student, course).
func (r *Repository) Get(ctx context.Context, studentID, courseID int64) (*Enrollment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+enrollmentColumns+enrollmentFrom+`WHERE e.student_id = $1 AND e.course_id = $2`,
		studentID, courseID)
	e, err := scanEnrollment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotEnrolled
		}
		return nil, err
	}
	return e, nil
}

// Exists reports whether the student is enrolled in the course.
func (r *Repository) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`,
		studentID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("enrollments: exists: %w", err)
	}
	return exists, nil
}

// ListByStudent returns the student's enrollments, newest first.
func (r *Repository) ListByStudent(ctx context.Context, studentID int64) ([]Enrollment, error) {
	return r.list(ctx, `WHERE e.student_id = $1`, studentID)
}

// ListByCourse returns the course roster, newest first.
func (r *Repository) ListByCourse(ctx context.Context, courseID int64) ([]Enrollment, error) {
	return r.list(ctx, `WHERE e.course_id = $1`, courseID)
}

func (r *Repository) list(ctx context.Context, where string, arg any) ([]Enrollment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+enrollmentColumns+enrollmentFrom+where+` ORDER BY e.enrolled_at DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("enrollments: list: %w", err)
	}
	defer rows.Close()

	list := []Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("enrollments: scan: %w", err)
		}
		list = append(list, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("enrollments: rows: %w", err)
	}
	return list, nil
}

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.StudentName, &e.CourseID, &e.CourseTitle,
		&e.EnrolledAt, &e.ProgressPercentage, &e.IsCompleted, &e.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

var _ RepositoryPort = (*Repository)(nil)

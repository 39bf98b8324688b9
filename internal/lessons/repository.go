package lessons

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/coursehub/internal/platform/db"
	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
)

// RepositoryPort defines data access methods for lessons and lesson
// progress.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Lesson, error)
	ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]Lesson, error)
	Create(ctx context.Context, l Lesson) (int64, error)
	Update(ctx context.Context, l Lesson) error
	Delete(ctx context.Context, id int64) error
	Complete(ctx context.Context, studentID, courseID, lessonID int64) (*Progress, error)
	RecordTime(ctx context.Context, studentID, courseID, lessonID int64, minutes int) (*Progress, error)
	ListProgress(ctx context.Context, studentID, courseID int64) ([]Progress, error)
}

// Repository provides PostgreSQL backed persistence for lessons.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const lessonColumns = `id, course_id, title, description, lesson_type, content, file_url,
	duration_minutes, order_index, is_published, created_at, updated_at`

// Get fetches one lesson by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Lesson, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
	lesson, err := scanLesson(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return lesson, nil
}

// ListByCourse returns the course's lessons in order. With publishedOnly set
// drafts are filtered out.
func (r *Repository) ListByCourse(ctx context.Context, courseID int64, publishedOnly bool) ([]Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE course_id = $1`
	if publishedOnly {
		query += ` AND is_published`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY order_index ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("lessons: list: %w", err)
	}
	defer rows.Close()

	list := []Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("lessons: scan: %w", err)
		}
		list = append(list, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lessons: rows: %w", err)
	}
	return list, nil
}

// Create inserts a lesson at the end of the course's ordering. The next
// order index is read and the row inserted in one transaction so two
// concurrent creates cannot claim the same slot.
func (r *Repository) Create(ctx context.Context, l Lesson) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(order_index), 0) + 1 FROM lessons WHERE course_id = $1`,
			l.CourseID).Scan(&next); err != nil {
			return fmt.Errorf("lessons: next order index: %w", err)
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO lessons (course_id, title, description, lesson_type, content, file_url, duration_minutes, order_index, is_published)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			l.CourseID, l.Title, l.Description, string(l.LessonType), l.Content, l.FileURL,
			l.DurationMinutes, next, l.IsPublished).Scan(&id); err != nil {
			return fmt.Errorf("lessons: create: %w", err)
		}
		return nil
	})
	return id, err
}

// Update rewrites the mutable fields of a lesson. Ordering is not changed
// here.
func (r *Repository) Update(ctx context.Context, l Lesson) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lessons
		 SET title = $2, description = $3, lesson_type = $4, content = $5,
		     file_url = $6, duration_minutes = $7, is_published = $8, updated_at = NOW()
		 WHERE id = $1`,
		l.ID, l.Title, l.Description, string(l.LessonType), l.Content, l.FileURL,
		l.DurationMinutes, l.IsPublished)
	if err != nil {
		return fmt.Errorf("lessons: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, l.ID)
	}
	return nil
}

// Delete removes a lesson and closes the order gap it leaves, in one
// transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var courseID int64
		var orderIndex int
		err := tx.QueryRow(ctx,
			`SELECT course_id, order_index FROM lessons WHERE id = $1`, id).Scan(&courseID, &orderIndex)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, id)
			}
			return fmt.Errorf("lessons: delete lookup: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
			return fmt.Errorf("lessons: delete: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE lessons SET order_index = order_index - 1 WHERE course_id = $1 AND order_index > $2`,
			courseID, orderIndex); err != nil {
			return fmt.Errorf("lessons: close order gap: %w", err)
		}
		return nil
	})
}

// Complete marks the lesson done for the student and recomputes the
// enrollment's progress. The upsert, the completion counts and the
// enrollment update run in one repeatable-read transaction so the counts
// cannot drift between the read and the write.
func (r *Repository) Complete(ctx context.Context, studentID, courseID, lessonID int64) (*Progress, error) {
	var progress *Progress
	err := db.WithRepeatableReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		enrollmentID, err := findEnrollmentID(ctx, tx, studentID, courseID)
		if err != nil {
			return err
		}
		if err := lessonInCourse(ctx, tx, lessonID, courseID); err != nil {
			return err
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO lesson_progress (enrollment_id, lesson_id, is_completed, completed_at, last_accessed_at)
			 VALUES ($1, $2, TRUE, NOW(), NOW())
			 ON CONFLICT ON CONSTRAINT lesson_progress_enrollment_lesson_key
			 DO UPDATE SET is_completed = TRUE,
			               completed_at = COALESCE(lesson_progress.completed_at, NOW()),
			               last_accessed_at = NOW()
			 RETURNING id, enrollment_id, lesson_id, is_completed, completed_at, time_spent_minutes, last_accessed_at`,
			enrollmentID, lessonID)
		progress, err = scanProgress(row)
		if err != nil {
			return fmt.Errorf("lessons: complete: %w", err)
		}
		return recomputeEnrollment(ctx, tx, enrollmentID, courseID)
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// RecordTime adds watch time to the student's progress on the lesson and
// refreshes the enrollment's progress figures.
func (r *Repository) RecordTime(ctx context.Context, studentID, courseID, lessonID int64, minutes int) (*Progress, error) {
	var progress *Progress
	err := db.WithRepeatableReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		enrollmentID, err := findEnrollmentID(ctx, tx, studentID, courseID)
		if err != nil {
			return err
		}
		if err := lessonInCourse(ctx, tx, lessonID, courseID); err != nil {
			return err
		}

		row := tx.QueryRow(ctx,
			`INSERT INTO lesson_progress (enrollment_id, lesson_id, time_spent_minutes, last_accessed_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT ON CONSTRAINT lesson_progress_enrollment_lesson_key
			 DO UPDATE SET time_spent_minutes = lesson_progress.time_spent_minutes + $3,
			               last_accessed_at = NOW()
			 RETURNING id, enrollment_id, lesson_id, is_completed, completed_at, time_spent_minutes, last_accessed_at`,
			enrollmentID, lessonID, minutes)
		progress, err = scanProgress(row)
		if err != nil {
			return fmt.Errorf("lessons: record time: %w", err)
		}
		return recomputeEnrollment(ctx, tx, enrollmentID, courseID)
	})
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// ListProgress returns the student's per-lesson progress for the course in
// lesson order.
func (r *Repository) ListProgress(ctx context.Context, studentID, courseID int64) ([]Progress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT lp.id, lp.enrollment_id, lp.lesson_id, l.title, l.order_index,
		        lp.is_completed, lp.completed_at, lp.time_spent_minutes, lp.last_accessed_at
		 FROM lesson_progress lp
		 JOIN lessons l ON l.id = lp.lesson_id
		 JOIN enrollments e ON e.id = lp.enrollment_id
		 WHERE e.student_id = $1 AND l.course_id = $2
		 ORDER BY l.order_index ASC`, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("lessons: list progress: %w", err)
	}
	defer rows.Close()

	list := []Progress{}
	for rows.Next() {
		var p Progress
		if err := rows.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.LessonTitle, &p.OrderIndex,
			&p.IsCompleted, &p.CompletedAt, &p.TimeSpentMinutes, &p.LastAccessedAt); err != nil {
			return nil, fmt.Errorf("lessons: scan progress: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lessons: progress rows: %w", err)
	}
	return list, nil
}

func findEnrollmentID(ctx context.Context, tx pgx.Tx, studentID, courseID int64) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM enrollments WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotEnrolled
		}
		return 0, fmt.Errorf("lessons: find enrollment: %w", err)
	}
	return id, nil
}

func lessonInCourse(ctx context.Context, tx pgx.Tx, lessonID, courseID int64) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1 AND course_id = $2)`,
		lessonID, courseID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lessons: lookup: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: lesson %d", httpx.ErrNotFound, lessonID)
	}
	return nil
}

func recomputeEnrollment(ctx context.Context, tx pgx.Tx, enrollmentID, courseID int64) error {
	var total, completed int
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id = $1`, courseID).Scan(&total)
	if err != nil {
		return fmt.Errorf("lessons: count: %w", err)
	}
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM lesson_progress lp
		 JOIN lessons l ON l.id = lp.lesson_id
		 WHERE lp.enrollment_id = $1 AND l.course_id = $2 AND lp.is_completed`,
		enrollmentID, courseID).Scan(&completed)
	if err != nil {
		return fmt.Errorf("lessons: count completed: %w", err)
	}

	pct, done := progressPercent(completed, total)
	_, err = tx.Exec(ctx,
		`UPDATE enrollments
		 SET progress_percentage = $2,
		     is_completed = $3,
		     completed_at = CASE WHEN $3 THEN COALESCE(completed_at, NOW()) ELSE completed_at END
		 WHERE id = $1`, enrollmentID, pct, done)
	if err != nil {
		return fmt.Errorf("lessons: update enrollment progress: %w", err)
	}
	return nil
}

func scanLesson(row pgx.Row) (*Lesson, error) {
	var l Lesson
	var lessonType string
	err := row.Scan(&l.ID, &l.CourseID, &l.Title, &l.Description, &lessonType, &l.Content,
		&l.FileURL, &l.DurationMinutes, &l.OrderIndex, &l.IsPublished, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.LessonType = LessonType(lessonType)
	return &l, nil
}

func scanProgress(row pgx.Row) (*Progress, error) {
	var p Progress
	err := row.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.IsCompleted, &p.CompletedAt,
		&p.TimeSpentMinutes, &p.LastAccessedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var _ RepositoryPort = (*Repository)(nil)

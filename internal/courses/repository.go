package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coursehub/coursehub/internal/platform/httpx"
	"github.com/coursehub/coursehub/internal/shared"
)

// RepositoryPort defines data access methods for courses.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Course, error)
	ListPublished(ctx context.Context, page shared.Pagination) ([]Course, int, error)
	SearchPublished(ctx context.Context, term string, page shared.Pagination) ([]Course, int, error)
	ListPublishedByCategory(ctx context.Context, category string, page shared.Pagination) ([]Course, int, error)
	ListPublishedByDifficulty(ctx context.Context, level DifficultyLevel, page shared.Pagination) ([]Course, int, error)
	ListFreePublished(ctx context.Context, page shared.Pagination) ([]Course, int, error)
	ListPopular(ctx context.Context, page shared.Pagination) ([]Course, int, error)
	ListByInstructor(ctx context.Context, instructorID int64) ([]Course, error)
	Create(ctx context.Context, c Course) (int64, error)
	Update(ctx context.Context, c Course) error
	Delete(ctx context.Context, id int64) error
	SetPublished(ctx context.Context, id int64, published bool) error
}

// Repository provides PostgreSQL backed persistence for courses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const courseColumns = `c.id, c.title, c.description, c.instructor_id,
	u.first_name || ' ' || u.last_name,
	c.category, c.difficulty_level, c.price, c.is_published, c.thumbnail_url,
	c.created_at, c.updated_at`

const courseFrom = ` FROM courses c JOIN users u ON u.id = c.instructor_id `

// Get fetches one course by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Course, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+courseColumns+courseFrom+`WHERE c.id = $1`, id)
	course, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: course %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return course, nil
}

const orderNewest = ` ORDER BY c.created_at DESC`

// orderByEnrollments ranks courses by roster size, ties broken newest first.
const orderByEnrollments = ` ORDER BY (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) DESC, c.created_at DESC`

// ListPublished returns a page of published courses, newest first.
func (r *Repository) ListPublished(ctx context.Context, page shared.Pagination) ([]Course, int, error) {
	return r.listWhere(ctx, `WHERE c.is_published`, orderNewest, nil, page)
}

// SearchPublished returns published courses whose title or description
// matches the term.
func (r *Repository) SearchPublished(ctx context.Context, term string, page shared.Pagination) ([]Course, int, error) {
	pattern := "%" + term + "%"
	return r.listWhere(ctx, `WHERE c.is_published AND (c.title ILIKE $1 OR c.description ILIKE $1)`, orderNewest, []any{pattern}, page)
}

// ListPublishedByCategory returns published courses in the category.
func (r *Repository) ListPublishedByCategory(ctx context.Context, category string, page shared.Pagination) ([]Course, int, error) {
	return r.listWhere(ctx, `WHERE c.is_published AND c.category = $1`, orderNewest, []any{category}, page)
}

// ListPublishedByDifficulty returns published courses at the difficulty
// level.
func (r *Repository) ListPublishedByDifficulty(ctx context.Context, level DifficultyLevel, page shared.Pagination) ([]Course, int, error) {
	return r.listWhere(ctx, `WHERE c.is_published AND c.difficulty_level = $1`, orderNewest, []any{string(level)}, page)
}

// ListFreePublished returns published courses with a zero price.
func (r *Repository) ListFreePublished(ctx context.Context, page shared.Pagination) ([]Course, int, error) {
	return r.listWhere(ctx, `WHERE c.is_published AND c.price = 0`, orderNewest, nil, page)
}

// ListPopular returns published courses ranked by enrollment count.
func (r *Repository) ListPopular(ctx context.Context, page shared.Pagination) ([]Course, int, error) {
	return r.listWhere(ctx, `WHERE c.is_published`, orderByEnrollments, nil, page)
}

func (r *Repository) listWhere(ctx context.Context, where, orderBy string, args []any, page shared.Pagination) ([]Course, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+courseFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("courses: count: %w", err)
	}

	limitArgs := append(args, page.PerPage, page.Offset())
	query := `SELECT ` + courseColumns + courseFrom + where + orderBy +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("courses: list: %w", err)
	}
	defer rows.Close()

	list, err := collectCourses(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// ListByInstructor returns every course owned by the instructor, drafts
// included.
func (r *Repository) ListByInstructor(ctx context.Context, instructorID int64) ([]Course, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+courseFrom+`WHERE c.instructor_id = $1 ORDER BY c.created_at DESC`, instructorID)
	if err != nil {
		return nil, fmt.Errorf("courses: list by instructor: %w", err)
	}
	defer rows.Close()
	return collectCourses(rows)
}

// Create inserts a new course.
func (r *Repository) Create(ctx context.Context, c Course) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO courses (title, description, instructor_id, category, difficulty_level, price, is_published, thumbnail_url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		c.Title, c.Description, c.InstructorID, c.Category, string(c.DifficultyLevel), c.Price, c.IsPublished, c.ThumbnailURL,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("courses: create: %w", err)
	}
	return id, nil
}

// Update rewrites the mutable fields of a course.
func (r *Repository) Update(ctx context.Context, c Course) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses
		 SET title = $2, description = $3, category = $4, difficulty_level = $5,
		     price = $6, is_published = $7, thumbnail_url = $8, updated_at = NOW()
		 WHERE id = $1`,
		c.ID, c.Title, c.Description, c.Category, string(c.DifficultyLevel), c.Price, c.IsPublished, c.ThumbnailURL)
	if err != nil {
		return fmt.Errorf("courses: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: course %d", httpx.ErrNotFound, c.ID)
	}
	return nil
}

// Delete removes a course and, via cascading constraints, its enrollments.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("courses: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: course %d", httpx.ErrNotFound, id)
	}
	return nil
}

// SetPublished flips the publication flag.
func (r *Repository) SetPublished(ctx context.Context, id int64, published bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE courses SET is_published = $2, updated_at = NOW() WHERE id = $1`, id, published)
	if err != nil {
		return fmt.Errorf("courses: set published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: course %d", httpx.ErrNotFound, id)
	}
	return nil
}

func scanCourse(row pgx.Row) (*Course, error) {
	var c Course
	var difficulty string
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.InstructorID, &c.InstructorName,
		&c.Category, &difficulty, &c.Price, &c.IsPublished, &c.ThumbnailURL,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.DifficultyLevel = DifficultyLevel(difficulty)
	return &c, nil
}

func collectCourses(rows pgx.Rows) ([]Course, error) {
	list := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("courses: scan: %w", err)
		}
		list = append(list, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("courses: rows: %w", err)
	}
	return list, nil
}

var _ RepositoryPort = (*Repository)(nil)

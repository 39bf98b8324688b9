package lessons

import (
	"fmt"
	"math"
	"time"
)

// LessonType classifies the primary content of a lesson.
type LessonType string

const (
	LessonText  LessonType = "TEXT"
	LessonVideo LessonType = "VIDEO"
	LessonAudio LessonType = "AUDIO"
	LessonPDF   LessonType = "PDF"
)

// ParseLessonType converts a wire value into a LessonType.
func ParseLessonType(s string) (LessonType, error) {
	switch LessonType(s) {
	case LessonText, LessonVideo, LessonAudio, LessonPDF:
		return LessonType(s), nil
	default:
		return "", fmt.Errorf("unknown lesson type %q", s)
	}
}

// Lesson is a single unit of course content. OrderIndex is 1-based and
// contiguous within a course; the repository keeps it so on insert and
// delete.
type Lesson struct {
	ID              int64
	CourseID        int64
	Title           string
	Description     string
	LessonType      LessonType
	Content         string
	FileURL         *string
	DurationMinutes int
	OrderIndex      int
	IsPublished     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Progress records one student's state on one lesson, keyed by the
// enrollment. The (EnrollmentID, LessonID) pair is unique in the store.
type Progress struct {
	ID               int64
	EnrollmentID     int64
	LessonID         int64
	LessonTitle      string
	OrderIndex       int
	IsCompleted      bool
	CompletedAt      *time.Time
	TimeSpentMinutes int
	LastAccessedAt   *time.Time
}

// progressPercent derives the enrollment-level progress from lesson
// completion counts. The percentage is rounded to two decimals; done is
// true only when every lesson of the course is completed.
func progressPercent(completed, total int) (pct float64, done bool) {
	if total <= 0 {
		return 0, false
	}
	pct = math.Round(float64(completed)/float64(total)*10000) / 100
	return pct, completed >= total
}

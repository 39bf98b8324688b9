package courses

import (
	"fmt"
	"time"
)

// DifficultyLevel classifies a course's intended audience.
type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "BEGINNER"
	DifficultyIntermediate DifficultyLevel = "INTERMEDIATE"
	DifficultyAdvanced     DifficultyLevel = "ADVANCED"
)

// ParseDifficulty converts a wire value into a DifficultyLevel.
func ParseDifficulty(s string) (DifficultyLevel, error) {
	switch DifficultyLevel(s) {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return DifficultyLevel(s), nil
	default:
		return "", fmt.Errorf("unknown difficulty level %q", s)
	}
}

// Course represents a course owned by an instructor. InstructorID is the
// ownership reference consulted by the policy evaluator; the full owner
// record is never loaded for authorization.
type Course struct {
	ID              int64
	Title           string
	Description     string
	InstructorID    int64
	InstructorName  string
	Category        string
	DifficultyLevel DifficultyLevel
	Price           float64
	IsPublished     bool
	ThumbnailURL    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

package enrollments

import "time"

// Enrollment links a student to a course. The (StudentID, CourseID) pair is
// unique in the store; that constraint is what makes enroll an atomic
// check-then-insert under concurrent requests.
type Enrollment struct {
	ID                 int64
	StudentID          int64
	StudentName        string
	CourseID           int64
	CourseTitle        string
	EnrolledAt         time.Time
	ProgressPercentage float64
	IsCompleted        bool
	CompletedAt        *time.Time
}

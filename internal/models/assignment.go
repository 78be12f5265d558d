package models

import "time"

// AssignmentStatus is the lifecycle of a student-section assignment.
// ENROLLED moves to COMPLETED or FAILED at term close, or to DROPPED by an
// explicit drop; DROPPED may return to ENROLLED on re-enrollment. COMPLETED
// and FAILED are terminal.
type AssignmentStatus string

const (
	AssignmentEnrolled  AssignmentStatus = "ENROLLED"
	AssignmentDropped   AssignmentStatus = "DROPPED"
	AssignmentCompleted AssignmentStatus = "COMPLETED"
	AssignmentFailed    AssignmentStatus = "FAILED"
)

// Assignment links a student to a section. Unique per (student, section);
// re-enrollment after a drop reactivates the same row.
type Assignment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     AssignmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt  *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// Active reports whether the assignment currently occupies a section seat.
func (a Assignment) Active() bool {
	return a.Status == AssignmentEnrolled
}

// AssignmentOutcome joins an assignment with its term-tagged grade, if any,
// for the term-close pass.
type AssignmentOutcome struct {
	Assignment
	GradeID *string  `db:"grade_id" json:"grade_id,omitempty"`
	Score   *float64 `db:"score" json:"score,omitempty"`
}

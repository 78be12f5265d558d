package models

import "time"

// ProgressStatus tracks per-course completion state for a student.
type ProgressStatus string

const (
	ProgressNotTaken   ProgressStatus = "NOT_TAKEN"
	ProgressInProgress ProgressStatus = "IN_PROGRESS"
	ProgressCompleted  ProgressStatus = "COMPLETED"
	ProgressFailed     ProgressStatus = "FAILED"
)

// Progress is the authoritative "has this student satisfied this
// requirement" record, one row per (student, course).
type Progress struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	CourseID  string         `db:"course_id" json:"course_id"`
	Status    ProgressStatus `db:"status" json:"status"`
	TermTaken *string        `db:"term_taken" json:"term_taken,omitempty"`
	GradeID   *string        `db:"grade_id" json:"grade_id,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

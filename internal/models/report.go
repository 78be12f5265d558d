package models

import "time"

// Skip reasons recorded by the batch pass.
const (
	SkipReasonNotEligible     = "NOT_ELIGIBLE"
	SkipReasonCapacity        = "CAPACITY_EXCEEDED"
	SkipReasonNoSlot          = "NO_CONFLICT_FREE_SLOT"
	SkipReasonTransient       = "TRANSIENT_ERROR"
	SkipReasonStopped         = "STOPPED"
	SkipReasonMissingPlanData = "CONSISTENCY_VIOLATION"
)

// SkipDetail records one student/course pair the batch pass could not enroll.
type SkipDetail struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id,omitempty"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

// ActivationReport summarises one term-activation batch pass.
type ActivationReport struct {
	TermID     string       `json:"term_id"`
	Processed  int          `json:"processed"`
	Enrolled   int          `json:"enrolled"`
	Skipped    int          `json:"skipped"`
	Skips      []SkipDetail `json:"skips,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// CloseReport summarises one term-close pass. Pending counts assignments
// that received the placeholder grade.
type CloseReport struct {
	TermID     string    `json:"term_id"`
	Processed  int       `json:"processed"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Pending    int       `json:"pending"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

package models

import "time"

// PlaceholderLetter marks the "not graded" sentinel applied at term close to
// assignments lacking a recorded grade.
const PlaceholderLetter = "PN"

// Grade is the recorded outcome for an assignment, tagged with the term it
// belongs to so historical grades bucket correctly.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	Score        float64   `db:"score" json:"score"`
	Letter       string    `db:"letter" json:"letter"`
	Points       float64   `db:"points" json:"points"`
	TermNumber   int       `db:"term_number" json:"term_number"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Placeholder reports whether the grade is the term-close sentinel.
func (g Grade) Placeholder() bool {
	return g.Letter == PlaceholderLetter
}

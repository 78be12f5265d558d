package models

import "time"

// Term models an academic scheduling period. Exactly one term may be current
// system-wide; the activation workflow owns that invariant.
type Term struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	AcademicYear int        `db:"academic_year" json:"academic_year"`
	TermNumber   int        `db:"term_number" json:"term_number"`
	IsCurrent    bool       `db:"is_current" json:"is_current"`
	IsClosed     bool       `db:"is_closed" json:"is_closed"`
	StartDate    *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Index converts the term to a linear position assuming two terms per
// academic year. Term numbers outside {1, 2} clamp rather than skew the
// position.
func (t Term) Index() int {
	return t.AcademicYear*2 + clampTermNumber(t.TermNumber)
}

func clampTermNumber(n int) int {
	if n < 1 {
		return 1
	}
	if n > 2 {
		return 2
	}
	return n
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	AcademicYear int
	IsCurrent    *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

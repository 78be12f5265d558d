package models

import "sort"

// EligibilityResult is the structured outcome of an enrollability check.
// Ineligibility is an expected business result, not an error.
type EligibilityResult struct {
	Eligible bool     `json:"eligible"`
	Reason   string   `json:"reason,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// Eligibility reasons.
const (
	ReasonMissingPrerequisites = "missing prerequisites"
	ReasonAlreadyCompleted     = "already completed"
	ReasonAlreadyEnrolled      = "already enrolled"
)

// CourseDemand is one still-needed course for a student, annotated with its
// plan placement.
type CourseDemand struct {
	CourseID   string `json:"course_id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Level      int    `json:"level"`
	Credits    int    `json:"credits"`
	Position   int    `json:"position"`
}

// DemandByLevel groups a student's outstanding courses by curriculum level.
type DemandByLevel map[int][]CourseDemand

// Levels returns the levels present in ascending order.
func (d DemandByLevel) Levels() []int {
	levels := make([]int, 0, len(d))
	for level := range d {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels
}

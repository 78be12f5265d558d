package service

import "github.com/campushq/enrollment-api/internal/models"

// DeriveLevel computes a student's academic level from the linear distance
// between their registration term and the active term, two terms per
// academic year. A student registering and activating in the same term is
// level 1. A current term preceding the registration term is a data
// inconsistency and clamps to 1 rather than erroring.
func DeriveLevel(student *models.Student, term *models.Term, maxLevel int) int {
	if maxLevel <= 0 {
		maxLevel = 8
	}

	level := term.Index() - student.RegistrationIndex() + 1
	if level < 1 {
		return 1
	}
	if level > maxLevel {
		return maxLevel
	}
	return level
}

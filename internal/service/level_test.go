package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushq/enrollment-api/internal/models"
)

func levelFor(regYear, regTerm, curYear, curTerm, maxLevel int) int {
	student := &models.Student{RegistrationYear: regYear, RegistrationTerm: regTerm}
	term := &models.Term{AcademicYear: curYear, TermNumber: curTerm}
	return DeriveLevel(student, term, maxLevel)
}

func TestDeriveLevel(t *testing.T) {
	// Registered 2024 term 2, now 2025 term 2: three terms elapsed inclusive.
	assert.Equal(t, 3, levelFor(2024, 2, 2025, 2, 8))

	// Same term as registration.
	assert.Equal(t, 1, levelFor(2025, 1, 2025, 1, 8))

	// Next term.
	assert.Equal(t, 2, levelFor(2025, 1, 2025, 2, 8))
	assert.Equal(t, 2, levelFor(2024, 2, 2025, 1, 8))
}

func TestDeriveLevelClampsLow(t *testing.T) {
	// Registration in the future never yields a level below 1.
	assert.Equal(t, 1, levelFor(2026, 1, 2025, 1, 8))
}

func TestDeriveLevelClampsHigh(t *testing.T) {
	assert.Equal(t, 8, levelFor(2018, 1, 2025, 2, 8))
	assert.Equal(t, 6, levelFor(2018, 1, 2025, 2, 6))
}

func TestDeriveLevelNormalizesTermNumber(t *testing.T) {
	// Out-of-range term numbers are clamped before indexing.
	assert.Equal(t, levelFor(2024, 2, 2025, 2, 8), levelFor(2024, 7, 2025, 9, 8))
}

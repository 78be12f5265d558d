package models

import "time"

// Student carries the identity fields the engine reads plus the cached
// academic level it maintains. Identity ownership lives elsewhere.
type Student struct {
	ID               string    `db:"id" json:"id"`
	FullName         string    `db:"full_name" json:"full_name"`
	Email            string    `db:"email" json:"email"`
	MajorID          string    `db:"major_id" json:"major_id"`
	RegistrationYear int       `db:"registration_year" json:"registration_year"`
	RegistrationTerm int       `db:"registration_term" json:"registration_term"`
	CurrentLevel     int       `db:"current_level" json:"current_level"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationIndex is the linear term position of the student's first
// enrollment, two terms per academic year.
func (s Student) RegistrationIndex() int {
	return s.RegistrationYear*2 + clampTermNumber(s.RegistrationTerm)
}

// Major groups students under a curriculum.
type Major struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

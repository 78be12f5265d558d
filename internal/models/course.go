package models

import "time"

// Course is a catalog entry; credit weight lives on the plan entry that
// places the course at a curriculum level.
type Course struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Prerequisite is a directed edge course -> required course.
type Prerequisite struct {
	ID               string `db:"id" json:"id"`
	CourseID         string `db:"course_id" json:"course_id"`
	RequiredCourseID string `db:"required_course_id" json:"required_course_id"`
}

// CurriculumPlan is the required course list for a major. One plan per major
// is active at a time.
type CurriculumPlan struct {
	ID        string    `db:"id" json:"id"`
	MajorID   string    `db:"major_id" json:"major_id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlanEntry pins a course to a level with its credit weight. Position keeps
// curriculum display order within a level.
type PlanEntry struct {
	ID       string `db:"id" json:"id"`
	PlanID   string `db:"plan_id" json:"plan_id"`
	CourseID string `db:"course_id" json:"course_id"`
	Level    int    `db:"level" json:"level"`
	Credits  int    `db:"credits" json:"credits"`
	Position int    `db:"position" json:"position"`

	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
}

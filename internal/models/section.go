package models

import "time"

// Section is a scheduled offering of a course within a term. Its load is the
// count of active assignments referencing it; capacity is a configured
// ceiling enforced at write time.
type Section struct {
	ID           string    `db:"id" json:"id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	TermID       string    `db:"term_id" json:"term_id"`
	Code         string    `db:"code" json:"code"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	RoomID       *string   `db:"room_id" json:"room_id,omitempty"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`

	Meetings []Meeting `json:"meetings,omitempty"`
}

// Meeting is one weekly time block of a section. Times are minutes from
// midnight; blocks never cross midnight.
type Meeting struct {
	ID          string `db:"id" json:"id"`
	SectionID   string `db:"section_id" json:"section_id"`
	DayOfWeek   int    `db:"day_of_week" json:"day_of_week"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
}

// SectionWithLoad pairs a section with its active assignment count.
type SectionWithLoad struct {
	Section
	ActiveCount int `db:"active_count" json:"active_count"`
}

// Faculty is an instructor available for section synthesis.
type Faculty struct {
	ID       string `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}

// FacultyAssignment associates an instructor with a course for a term.
type FacultyAssignment struct {
	ID        string `db:"id" json:"id"`
	FacultyID string `db:"faculty_id" json:"faculty_id"`
	CourseID  string `db:"course_id" json:"course_id"`
	TermID    string `db:"term_id" json:"term_id"`
}

// Room is a physical location a synthesized section may be placed in.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
}

// ScheduleEntry is one course row of a student's weekly timetable.
type ScheduleEntry struct {
	CourseID    string    `json:"course_id"`
	CourseCode  string    `json:"course_code"`
	CourseName  string    `json:"course_name"`
	SectionID   string    `json:"section_id"`
	SectionCode string    `json:"section_code"`
	Credits     int       `json:"credits"`
	Meetings    []Meeting `json:"meetings"`
}

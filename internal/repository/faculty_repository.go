package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// FacultyRepository reads the instructor and room collaborators used during
// section synthesis.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs the repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// ListActive returns available instructors ordered by ID for stable
// round-robin.
func (r *FacultyRepository) ListActive(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, full_name, active FROM faculty WHERE active = TRUE ORDER BY id`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// ListAssignedToCourse returns instructors already associated with the
// course for the term.
func (r *FacultyRepository) ListAssignedToCourse(ctx context.Context, courseID, termID string) ([]models.Faculty, error) {
	const query = `SELECT f.id, f.full_name, f.active
        FROM faculty f
        JOIN faculty_assignments fa ON fa.faculty_id = f.id
        WHERE fa.course_id = $1 AND fa.term_id = $2 AND f.active = TRUE
        ORDER BY f.id`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query, courseID, termID); err != nil {
		return nil, fmt.Errorf("list assigned faculty: %w", err)
	}
	return faculty, nil
}

// ListRooms returns rooms ordered by ID for stable round-robin.
func (r *FacultyRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	const query = `SELECT id, name, capacity FROM rooms ORDER BY id`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

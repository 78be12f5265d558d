package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// StudentRepository reads identity fields and maintains the cached level.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, full_name, email, major_id, registration_year, registration_term, current_level, active, created_at, updated_at`

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListActive returns every active student ordered by ID so batch passes are
// deterministic.
func (r *StudentRepository) ListActive(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE active = TRUE ORDER BY id`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list active students: %w", err)
	}
	return students, nil
}

// UpdateLevel persists a newly derived academic level.
func (r *StudentRepository) UpdateLevel(ctx context.Context, id string, level int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE students SET current_level = $2, updated_at = NOW() WHERE id = $1`, id, level); err != nil {
		return fmt.Errorf("update student level: %w", err)
	}
	return nil
}

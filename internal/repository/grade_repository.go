package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// GradeRepository persists recorded and placeholder grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

const gradeColumns = `id, assignment_id, score, letter, points, term_number, academic_year, created_at`

// FindByAssignmentAndTerm returns the assignment's grade tagged with the
// term, sql.ErrNoRows when no grade was recorded.
func (r *GradeRepository) FindByAssignmentAndTerm(ctx context.Context, assignmentID string, academicYear, termNumber int) (*models.Grade, error) {
	query := fmt.Sprintf(`SELECT %s FROM grades WHERE assignment_id = $1 AND academic_year = $2 AND term_number = $3`, gradeColumns)
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, assignmentID, academicYear, termNumber); err != nil {
		return nil, err
	}
	return &grade, nil
}

// CreateTx inserts a grade inside the caller's transaction. The unique key
// on (assignment_id, academic_year, term_number) blocks double placeholders.
func (r *GradeRepository) CreateTx(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grades (id, assignment_id, score, letter, points, term_number, academic_year, created_at)
        VALUES (:id, :assignment_id, :score, :letter, :points, :term_number, :academic_year, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

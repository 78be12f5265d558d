package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// ProgressRepository persists per-course completion state.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository constructs the repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `id, student_id, course_id, status, term_taken, grade_id, updated_at`

// MapByStudent returns every progress row for a student keyed by course ID.
func (r *ProgressRepository) MapByStudent(ctx context.Context, studentID string) (map[string]models.Progress, error) {
	query := fmt.Sprintf(`SELECT %s FROM progress WHERE student_id = $1`, progressColumns)
	var rows []models.Progress
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("map progress: %w", err)
	}
	result := make(map[string]models.Progress, len(rows))
	for _, row := range rows {
		result[row.CourseID] = row
	}
	return result, nil
}

// UpsertTx writes the (student, course) progress row inside the caller's
// transaction.
func (r *ProgressRepository) UpsertTx(ctx context.Context, exec sqlx.ExtContext, progress *models.Progress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	progress.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO progress (id, student_id, course_id, status, term_taken, grade_id, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :term_taken, :grade_id, :updated_at)
        ON CONFLICT (student_id, course_id) DO UPDATE
        SET status = EXCLUDED.status, term_taken = EXCLUDED.term_taken, grade_id = EXCLUDED.grade_id, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, progress); err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// AssignmentRepository persists student-section assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, student_id, section_id, course_id, status, enrolled_at, dropped_at`

// FindByID returns an assignment by its ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1`, assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindByStudentAndSectionTx reads the unique (student, section) row inside
// the caller's transaction, sql.ErrNoRows when absent.
func (r *AssignmentRepository) FindByStudentAndSectionTx(ctx context.Context, exec sqlx.ExtContext, studentID, sectionID string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE student_id = $1 AND section_id = $2`, assignmentColumns)
	var assignment models.Assignment
	if err := sqlx.GetContext(ctx, exec, &assignment, query, studentID, sectionID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CreateTx inserts a fresh ENROLLED assignment inside the caller's
// transaction.
func (r *AssignmentRepository) CreateTx(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.EnrolledAt.IsZero() {
		assignment.EnrolledAt = time.Now().UTC()
	}
	if assignment.Status == "" {
		assignment.Status = models.AssignmentEnrolled
	}
	const query = `INSERT INTO assignments (id, student_id, section_id, course_id, status, enrolled_at, dropped_at)
        VALUES (:id, :student_id, :section_id, :course_id, :status, :enrolled_at, :dropped_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// ReactivateTx flips a DROPPED row back to ENROLLED inside the caller's
// transaction.
func (r *AssignmentRepository) ReactivateTx(ctx context.Context, exec sqlx.ExtContext, id string) error {
	if _, err := exec.ExecContext(ctx, `UPDATE assignments SET status = 'ENROLLED', dropped_at = NULL, enrolled_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("reactivate assignment: %w", err)
	}
	return nil
}

// UpdateStatusTx records a terminal or drop transition inside the caller's
// transaction.
func (r *AssignmentRepository) UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus, droppedAt *time.Time) error {
	if _, err := exec.ExecContext(ctx, `UPDATE assignments SET status = $2, dropped_at = $3 WHERE id = $1`, id, status, droppedAt); err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return nil
}

// ListActiveByStudentAndTerm returns the student's ENROLLED assignments for
// sections of a term.
func (r *AssignmentRepository) ListActiveByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.Assignment, error) {
	const query = `SELECT a.id, a.student_id, a.section_id, a.course_id, a.status, a.enrolled_at, a.dropped_at
        FROM assignments a
        JOIN sections s ON s.id = a.section_id
        WHERE a.student_id = $1 AND s.term_id = $2 AND a.status = 'ENROLLED'
        ORDER BY a.enrolled_at`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return assignments, nil
}

// HasActiveForCourse reports whether the student already holds an ENROLLED
// assignment for the course in the term.
func (r *AssignmentRepository) HasActiveForCourse(ctx context.Context, studentID, courseID, termID string) (bool, error) {
	const query = `SELECT 1 FROM assignments a
        JOIN sections s ON s.id = a.section_id
        WHERE a.student_id = $1 AND a.course_id = $2 AND s.term_id = $3 AND a.status = 'ENROLLED' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, termID); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// ListOutcomesByTerm returns every assignment on a term's sections joined
// with its grade for that term, for the close pass. Ordered by student then
// section for reproducible runs.
func (r *AssignmentRepository) ListOutcomesByTerm(ctx context.Context, termID string, academicYear, termNumber int) ([]models.AssignmentOutcome, error) {
	const query = `SELECT a.id, a.student_id, a.section_id, a.course_id, a.status, a.enrolled_at, a.dropped_at,
        g.id AS grade_id, g.score AS score
        FROM assignments a
        JOIN sections s ON s.id = a.section_id
        LEFT JOIN grades g ON g.assignment_id = a.id AND g.academic_year = $2 AND g.term_number = $3
        WHERE s.term_id = $1 AND a.status <> 'DROPPED'
        ORDER BY a.student_id, a.section_id`
	var outcomes []models.AssignmentOutcome
	if err := r.db.SelectContext(ctx, &outcomes, query, termID, academicYear, termNumber); err != nil {
		return nil, fmt.Errorf("list term outcomes: %w", err)
	}
	return outcomes, nil
}

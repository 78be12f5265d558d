package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// CurriculumRepository reads majors' plans, plan entries and prerequisites.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// FindActivePlan returns the active curriculum plan for a major,
// sql.ErrNoRows when none is configured.
func (r *CurriculumRepository) FindActivePlan(ctx context.Context, majorID string) (*models.CurriculumPlan, error) {
	const query = `SELECT id, major_id, name, active, created_at FROM curriculum_plans WHERE major_id = $1 AND active = TRUE LIMIT 1`
	var plan models.CurriculumPlan
	if err := r.db.GetContext(ctx, &plan, query, majorID); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListEntriesUpToLevel returns plan entries at or below level, in curriculum
// display order.
func (r *CurriculumRepository) ListEntriesUpToLevel(ctx context.Context, planID string, level int) ([]models.PlanEntry, error) {
	const query = `SELECT pe.id, pe.plan_id, pe.course_id, pe.level, pe.credits, pe.position,
        c.code AS course_code, c.name AS course_name
        FROM plan_entries pe
        JOIN courses c ON c.id = pe.course_id
        WHERE pe.plan_id = $1 AND pe.level <= $2
        ORDER BY pe.level, pe.position`
	var entries []models.PlanEntry
	if err := r.db.SelectContext(ctx, &entries, query, planID, level); err != nil {
		return nil, fmt.Errorf("list plan entries: %w", err)
	}
	return entries, nil
}

// FindCourse returns a catalog course by ID.
func (r *CurriculumRepository) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, name, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListPrerequisites returns the direct prerequisite edges of a course.
func (r *CurriculumRepository) ListPrerequisites(ctx context.Context, courseID string) ([]models.Prerequisite, error) {
	const query = `SELECT id, course_id, required_course_id FROM prerequisites WHERE course_id = $1`
	var prereqs []models.Prerequisite
	if err := r.db.SelectContext(ctx, &prereqs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return prereqs, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/enrollment-api/internal/models"
)

// SectionRepository persists sections and their weekly meetings.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

const sectionColumns = `id, course_id, term_id, code, instructor_id, room_id, capacity, created_at`

// ListByCourseAndTerm returns sections with their active assignment count,
// ordered by creation time for stable allocation preference.
func (r *SectionRepository) ListByCourseAndTerm(ctx context.Context, courseID, termID string) ([]models.SectionWithLoad, error) {
	const query = `SELECT s.id, s.course_id, s.term_id, s.code, s.instructor_id, s.room_id, s.capacity, s.created_at,
        COUNT(a.id) FILTER (WHERE a.status = 'ENROLLED') AS active_count
        FROM sections s
        LEFT JOIN assignments a ON a.section_id = s.id
        WHERE s.course_id = $1 AND s.term_id = $2
        GROUP BY s.id
        ORDER BY s.created_at, s.id`
	var sections []models.SectionWithLoad
	if err := r.db.SelectContext(ctx, &sections, query, courseID, termID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	for i := range sections {
		meetings, err := r.ListMeetings(ctx, sections[i].ID)
		if err != nil {
			return nil, err
		}
		sections[i].Meetings = meetings
	}
	return sections, nil
}

// FindByID returns a section with its meetings.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1`, sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	meetings, err := r.ListMeetings(ctx, id)
	if err != nil {
		return nil, err
	}
	section.Meetings = meetings
	return &section, nil
}

// ListMeetings returns a section's weekly blocks ordered by day and start.
func (r *SectionRepository) ListMeetings(ctx context.Context, sectionID string) ([]models.Meeting, error) {
	const query = `SELECT id, section_id, day_of_week, start_minute, end_minute
        FROM meetings WHERE section_id = $1 ORDER BY day_of_week, start_minute`
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, sectionID); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}

// CountByCourseAndTerm returns how many sections already exist for the pair,
// used to derive the next generated section code.
func (r *SectionRepository) CountByCourseAndTerm(ctx context.Context, courseID, termID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM sections WHERE course_id = $1 AND term_id = $2`, courseID, termID); err != nil {
		return 0, fmt.Errorf("count sections: %w", err)
	}
	return count, nil
}

// LockForUpdateTx takes a row lock on the section so the capacity check and
// the assignment write form one atomic unit.
func (r *SectionRepository) LockForUpdateTx(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1 FOR UPDATE`, sectionColumns)
	var section models.Section
	if err := sqlx.GetContext(ctx, exec, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// CountActiveTx counts ENROLLED assignments inside the caller's transaction.
func (r *SectionRepository) CountActiveTx(ctx context.Context, exec sqlx.ExtContext, id string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, `SELECT COUNT(*) FROM assignments WHERE section_id = $1 AND status = 'ENROLLED'`, id); err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return count, nil
}

// CreateTx persists a synthesized section and its meetings inside the
// caller's transaction. The unique key on (course_id, term_id, code) makes
// concurrent synthesis lose cleanly.
func (r *SectionRepository) CreateTx(ctx context.Context, exec sqlx.ExtContext, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sections (id, course_id, term_id, code, instructor_id, room_id, capacity, created_at)
        VALUES (:id, :course_id, :term_id, :code, :instructor_id, :room_id, :capacity, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	for i := range section.Meetings {
		meeting := &section.Meetings[i]
		if meeting.ID == "" {
			meeting.ID = uuid.NewString()
		}
		meeting.SectionID = section.ID
		const meetingQuery = `INSERT INTO meetings (id, section_id, day_of_week, start_minute, end_minute)
            VALUES (:id, :section_id, :day_of_week, :start_minute, :end_minute)`
		if _, err := sqlx.NamedExecContext(ctx, exec, meetingQuery, meeting); err != nil {
			return fmt.Errorf("create meeting: %w", err)
		}
	}
	return nil
}

// ListStudentMeetings returns every meeting on the student's active schedule
// for a term.
func (r *SectionRepository) ListStudentMeetings(ctx context.Context, studentID, termID string) ([]models.Meeting, error) {
	const query = `SELECT m.id, m.section_id, m.day_of_week, m.start_minute, m.end_minute
        FROM meetings m
        JOIN sections s ON s.id = m.section_id
        JOIN assignments a ON a.section_id = s.id
        WHERE a.student_id = $1 AND s.term_id = $2 AND a.status = 'ENROLLED'
        ORDER BY m.day_of_week, m.start_minute`
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list student meetings: %w", err)
	}
	return meetings, nil
}

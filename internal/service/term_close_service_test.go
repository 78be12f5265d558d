package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/config"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type mockCloseTermRepo struct {
	term   *models.Term
	closed []string
}

func (m *mockCloseTermRepo) FindByID(ctx context.Context, id string) (*models.Term, error) {
	if m.term == nil || m.term.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.term, nil
}

func (m *mockCloseTermRepo) MarkClosed(ctx context.Context, id string) error {
	m.closed = append(m.closed, id)
	return nil
}

type mockCloseAssignmentRepo struct {
	outcomes []models.AssignmentOutcome
	statuses map[string]models.AssignmentStatus
}

func (m *mockCloseAssignmentRepo) ListOutcomesByTerm(ctx context.Context, termID string, academicYear, termNumber int) ([]models.AssignmentOutcome, error) {
	return m.outcomes, nil
}

func (m *mockCloseAssignmentRepo) UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus, droppedAt *time.Time) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.AssignmentStatus)
	}
	m.statuses[id] = status
	return nil
}

type mockCloseGradeRepo struct {
	existing map[string]*models.Grade // keyed by assignment ID
	created  []*models.Grade
}

func (m *mockCloseGradeRepo) FindByAssignmentAndTerm(ctx context.Context, assignmentID string, academicYear, termNumber int) (*models.Grade, error) {
	if g, ok := m.existing[assignmentID]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCloseGradeRepo) CreateTx(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = "g-" + grade.AssignmentID
	}
	m.created = append(m.created, grade)
	return nil
}

type closeFixture struct {
	mock        sqlmock.Sqlmock
	terms       *mockCloseTermRepo
	assignments *mockCloseAssignmentRepo
	grades      *mockCloseGradeRepo
	progress    *mockProgressWriter
	svc         *TermCloseService
}

func newCloseFixture(t *testing.T, outcomes []models.AssignmentOutcome) *closeFixture {
	t.Helper()
	rawDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	f := &closeFixture{
		mock:        mock,
		terms:       &mockCloseTermRepo{term: &models.Term{ID: "t1", AcademicYear: 2025, TermNumber: 2}},
		assignments: &mockCloseAssignmentRepo{outcomes: outcomes},
		grades:      &mockCloseGradeRepo{},
		progress:    &mockProgressWriter{},
	}
	f.svc = NewTermCloseService(
		sqlx.NewDb(rawDB, "sqlmock"), f.terms, f.assignments, f.grades, f.progress,
		config.EngineConfig{PassingGrade: 60},
		zap.NewNop(),
	)
	return f
}

func gradedOutcome(id string, score float64) models.AssignmentOutcome {
	gradeID := "g-" + id
	return models.AssignmentOutcome{
		Assignment: models.Assignment{ID: id, StudentID: "s1", CourseID: "c1", Status: models.AssignmentEnrolled},
		GradeID:    &gradeID,
		Score:      &score,
	}
}

func TestCloseTermFinalizesGradedAssignments(t *testing.T) {
	f := newCloseFixture(t, []models.AssignmentOutcome{
		gradedOutcome("pass", 75),
		gradedOutcome("edge", 60),
		gradedOutcome("fail", 59.5),
	})
	for i := 0; i < 3; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}

	report, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Pending)

	assert.Equal(t, models.AssignmentCompleted, f.assignments.statuses["pass"])
	assert.Equal(t, models.AssignmentCompleted, f.assignments.statuses["edge"])
	assert.Equal(t, models.AssignmentFailed, f.assignments.statuses["fail"])
	assert.Equal(t, []string{"t1"}, f.terms.closed)
	assert.Empty(t, f.grades.created)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCloseTermMintsPlaceholderForUngraded(t *testing.T) {
	f := newCloseFixture(t, []models.AssignmentOutcome{
		{Assignment: models.Assignment{ID: "a1", StudentID: "s1", CourseID: "c1", Status: models.AssignmentEnrolled}},
	})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	report, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Pending)

	require.Len(t, f.grades.created, 1)
	placeholder := f.grades.created[0]
	assert.Equal(t, models.PlaceholderLetter, placeholder.Letter)
	assert.Equal(t, float64(0), placeholder.Score)
	assert.Equal(t, 2025, placeholder.AcademicYear)
	assert.Equal(t, 2, placeholder.TermNumber)
	assert.Equal(t, models.AssignmentFailed, f.assignments.statuses["a1"])

	require.Len(t, f.progress.upserts, 1)
	assert.Equal(t, models.ProgressFailed, f.progress.upserts[0].Status)
}

func TestCloseTermRerunSkipsFinalized(t *testing.T) {
	f := newCloseFixture(t, []models.AssignmentOutcome{
		{Assignment: models.Assignment{ID: "done", StudentID: "s1", CourseID: "c1", Status: models.AssignmentCompleted}},
		{Assignment: models.Assignment{ID: "lost", StudentID: "s2", CourseID: "c1", Status: models.AssignmentFailed}},
	})
	f.terms.term.IsClosed = true

	report, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, f.assignments.statuses)
	assert.Empty(t, f.grades.created)
	assert.Empty(t, f.terms.closed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCloseTermPicksUpLateGrade(t *testing.T) {
	// Grade recorded between the outcome listing and finalization.
	f := newCloseFixture(t, []models.AssignmentOutcome{
		{Assignment: models.Assignment{ID: "a1", StudentID: "s1", CourseID: "c1", Status: models.AssignmentEnrolled}},
	})
	f.grades.existing = map[string]*models.Grade{
		"a1": {ID: "g-late", AssignmentID: "a1", Score: 82, Letter: "B"},
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	report, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Passed)
	assert.Empty(t, f.grades.created)
	assert.Equal(t, models.AssignmentCompleted, f.assignments.statuses["a1"])

	require.Len(t, f.progress.upserts, 1)
	require.NotNil(t, f.progress.upserts[0].GradeID)
	assert.Equal(t, "g-late", *f.progress.upserts[0].GradeID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCloseTermReusesPlaceholderFromInterruptedPass(t *testing.T) {
	// A previous pass minted the placeholder but never settled the
	// assignment; the rerun must not mint a second one.
	f := newCloseFixture(t, []models.AssignmentOutcome{
		{Assignment: models.Assignment{ID: "a1", StudentID: "s1", CourseID: "c1", Status: models.AssignmentEnrolled}},
	})
	f.grades.existing = map[string]*models.Grade{
		"a1": {ID: "g-pn", AssignmentID: "a1", Score: 0, Letter: models.PlaceholderLetter},
	}
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	report, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, f.grades.created)
	assert.Equal(t, models.AssignmentFailed, f.assignments.statuses["a1"])

	require.Len(t, f.progress.upserts, 1)
	assert.Equal(t, models.ProgressFailed, f.progress.upserts[0].Status)
	require.NotNil(t, f.progress.upserts[0].GradeID)
	assert.Equal(t, "g-pn", *f.progress.upserts[0].GradeID)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCloseTermUpdatesProgressOnPass(t *testing.T) {
	f := newCloseFixture(t, []models.AssignmentOutcome{gradedOutcome("a1", 90)})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.CloseTerm(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, f.progress.upserts, 1)
	progress := f.progress.upserts[0]
	assert.Equal(t, models.ProgressCompleted, progress.Status)
	require.NotNil(t, progress.GradeID)
	assert.Equal(t, "g-a1", *progress.GradeID)
}

func TestCloseTermNotFound(t *testing.T) {
	f := newCloseFixture(t, nil)

	_, err := f.svc.CloseTerm(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

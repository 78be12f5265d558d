package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type mockScheduleAssignments struct {
	assignments []models.Assignment
}

func (m *mockScheduleAssignments) ListActiveByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.Assignment, error) {
	return m.assignments, nil
}

type mockScheduleSections struct {
	sections map[string]*models.Section
}

func (m *mockScheduleSections) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := m.sections[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockScheduleCurriculum struct {
	plan    *models.CurriculumPlan
	entries []models.PlanEntry
	courses map[string]*models.Course
}

func (m *mockScheduleCurriculum) FindActivePlan(ctx context.Context, majorID string) (*models.CurriculumPlan, error) {
	if m.plan == nil {
		return nil, sql.ErrNoRows
	}
	return m.plan, nil
}

func (m *mockScheduleCurriculum) ListEntriesUpToLevel(ctx context.Context, planID string, level int) ([]models.PlanEntry, error) {
	return m.entries, nil
}

func (m *mockScheduleCurriculum) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func scheduleFixture() (*ScheduleService, *mockScheduleAssignments, *mockDemand) {
	students := &mockStudentRepo{
		students: map[string]*models.Student{
			"s1": {ID: "s1", MajorID: "cs", CurrentLevel: 2},
		},
		order: []string{"s1"},
	}
	term := &models.Term{ID: "t1", AcademicYear: 2025, TermNumber: 2, IsCurrent: true}
	terms := &mockTermRepo{terms: map[string]*models.Term{"t1": term}, current: term}
	assignments := &mockScheduleAssignments{
		assignments: []models.Assignment{
			{ID: "a1", StudentID: "s1", SectionID: "sec-late", CourseID: "c2", Status: models.AssignmentEnrolled},
			{ID: "a2", StudentID: "s1", SectionID: "sec-early", CourseID: "c1", Status: models.AssignmentEnrolled},
		},
	}
	sections := &mockScheduleSections{sections: map[string]*models.Section{
		"sec-early": {ID: "sec-early", Code: "CS101-S01", Meetings: meetingsFor(dayPair{1, 3}, 8*60)},
		"sec-late":  {ID: "sec-late", Code: "CS102-S01", Meetings: meetingsFor(dayPair{2, 4}, 13*60)},
	}}
	curriculum := &mockScheduleCurriculum{
		plan: &models.CurriculumPlan{ID: "plan-1", MajorID: "cs"},
		entries: []models.PlanEntry{
			{CourseID: "c1", Level: 1, Credits: 3},
			{CourseID: "c2", Level: 1, Credits: 4},
		},
		courses: map[string]*models.Course{
			"c1": {ID: "c1", Code: "CS101", Name: "Intro to Computing"},
			"c2": {ID: "c2", Code: "CS102", Name: "Programming"},
		},
	}
	demand := &mockDemand{demand: models.DemandByLevel{}}
	svc := NewScheduleService(students, terms, assignments, sections, curriculum, demand, 20, zap.NewNop())
	return svc, assignments, demand
}

func TestScheduleOrdersByFirstMeeting(t *testing.T) {
	svc, _, _ := scheduleFixture()

	entries, err := svc.Schedule(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CS101", entries[0].CourseCode)
	assert.Equal(t, "CS102", entries[1].CourseCode)
	assert.Equal(t, 3, entries[0].Credits)
	assert.Equal(t, 4, entries[1].Credits)
}

func TestScheduleUnknownStudent(t *testing.T) {
	svc, _, _ := scheduleFixture()

	_, err := svc.Schedule(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleEmpty(t *testing.T) {
	svc, assignments, _ := scheduleFixture()
	assignments.assignments = nil

	entries, err := svc.Schedule(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPreviewSumsSelectedCredits(t *testing.T) {
	svc, _, demand := scheduleFixture()
	demand.demand = models.DemandByLevel{
		1: {
			{CourseID: "c3", CourseCode: "CS103", Level: 1, Credits: 3, Position: 1},
			{CourseID: "c4", CourseCode: "CS104", Level: 1, Credits: 4, Position: 2},
		},
	}

	preview, err := svc.Preview(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "t1", preview.TermID)
	assert.Equal(t, 2, preview.Level)
	assert.Len(t, preview.Selected, 2)
	assert.Equal(t, 7, preview.TotalCredits)
}

func TestExportCSVContainsScheduleRows(t *testing.T) {
	svc, _, _ := scheduleFixture()

	data, err := svc.ExportCSV(context.Background(), "s1")
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "Course,Name,Section,Credits,Meetings"))
	assert.Contains(t, content, "CS101")
	assert.Contains(t, content, "Monday 08:00-08:50")
}

func TestExportPDFProducesDocument(t *testing.T) {
	svc, _, _ := scheduleFixture()

	data, err := svc.ExportPDF(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

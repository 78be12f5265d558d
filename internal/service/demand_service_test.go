package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type mockPlanReader struct {
	plan    *models.CurriculumPlan
	entries []models.PlanEntry
}

func (m *mockPlanReader) FindActivePlan(ctx context.Context, majorID string) (*models.CurriculumPlan, error) {
	if m.plan == nil {
		return nil, sql.ErrNoRows
	}
	return m.plan, nil
}

func (m *mockPlanReader) ListEntriesUpToLevel(ctx context.Context, planID string, level int) ([]models.PlanEntry, error) {
	var out []models.PlanEntry
	for _, e := range m.entries {
		if e.Level <= level {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockActiveChecker struct {
	active map[string]bool
}

func (m *mockActiveChecker) HasActiveForCourse(ctx context.Context, studentID, courseID, termID string) (bool, error) {
	return m.active[courseID], nil
}

type mockSectionLoads struct {
	sections map[string][]models.SectionWithLoad
}

func (m *mockSectionLoads) ListByCourseAndTerm(ctx context.Context, courseID, termID string) ([]models.SectionWithLoad, error) {
	return m.sections[courseID], nil
}

type mockEvaluator struct {
	ineligible map[string]string
}

func (m *mockEvaluator) Evaluate(ctx context.Context, studentID, courseID string, progressMap map[string]models.Progress) (*models.EligibilityResult, error) {
	if reason, ok := m.ineligible[courseID]; ok {
		return &models.EligibilityResult{Eligible: false, Reason: reason}, nil
	}
	return &models.EligibilityResult{Eligible: true}, nil
}

func demandFixture() (*DemandService, *mockPlanReader, *mockProgressReader, *mockActiveChecker, *mockSectionLoads, *mockEvaluator) {
	plans := &mockPlanReader{
		plan: &models.CurriculumPlan{ID: "plan-1", MajorID: "cs", Active: true},
		entries: []models.PlanEntry{
			{CourseID: "c1", Level: 1, Credits: 3, Position: 1, CourseCode: "CS101"},
			{CourseID: "c2", Level: 1, Credits: 3, Position: 2, CourseCode: "CS102"},
			{CourseID: "c3", Level: 2, Credits: 4, Position: 1, CourseCode: "CS201"},
		},
	}
	progress := &mockProgressReader{progress: map[string]models.Progress{}}
	assignments := &mockActiveChecker{active: map[string]bool{}}
	sections := &mockSectionLoads{sections: map[string][]models.SectionWithLoad{}}
	eligibility := &mockEvaluator{ineligible: map[string]string{}}
	svc := NewDemandService(plans, progress, assignments, sections, eligibility, zap.NewNop())
	return svc, plans, progress, assignments, sections, eligibility
}

func TestAnalyzeCollectsOutstandingCourses(t *testing.T) {
	svc, _, _, _, _, _ := demandFixture()
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 2}
	term := &models.Term{ID: "t1"}

	demand, err := svc.Analyze(context.Background(), student, term)
	require.NoError(t, err)
	assert.Len(t, demand[1], 2)
	assert.Len(t, demand[2], 1)
}

func TestAnalyzeRestrictsToCurrentLevel(t *testing.T) {
	svc, _, _, _, _, _ := demandFixture()
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 1}

	demand, err := svc.Analyze(context.Background(), student, &models.Term{ID: "t1"})
	require.NoError(t, err)
	assert.Len(t, demand[1], 2)
	assert.Empty(t, demand[2])
}

func TestAnalyzeSkipsCompletedAndActive(t *testing.T) {
	svc, _, progress, assignments, _, _ := demandFixture()
	progress.progress["c1"] = models.Progress{CourseID: "c1", Status: models.ProgressCompleted}
	assignments.active["c2"] = true
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 2}

	demand, err := svc.Analyze(context.Background(), student, &models.Term{ID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, demand[1])
	assert.Len(t, demand[2], 1)
}

func TestAnalyzeSkipsIneligible(t *testing.T) {
	svc, _, _, _, _, eligibility := demandFixture()
	eligibility.ineligible["c3"] = models.ReasonMissingPrerequisites
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 2}

	demand, err := svc.Analyze(context.Background(), student, &models.Term{ID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, demand[2])
}

func TestAnalyzeCapacityPreFilter(t *testing.T) {
	svc, _, _, _, sections, _ := demandFixture()
	// c1 has sections and all are full: filtered out.
	sections.sections["c1"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "sec1", Capacity: 30}, ActiveCount: 30},
	}
	// c2 has a section with a free seat: kept.
	sections.sections["c2"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "sec2", Capacity: 30}, ActiveCount: 29},
	}
	// c3 has no sections at all: kept, synthesis can serve it.
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 2}

	demand, err := svc.Analyze(context.Background(), student, &models.Term{ID: "t1"})
	require.NoError(t, err)
	assert.Len(t, demand[1], 1)
	assert.Equal(t, "c2", demand[1][0].CourseID)
	assert.Len(t, demand[2], 1)
}

func TestAnalyzeMissingPlanIsConsistencyViolation(t *testing.T) {
	svc, plans, _, _, _, _ := demandFixture()
	plans.plan = nil
	student := &models.Student{ID: "s1", MajorID: "cs", CurrentLevel: 1}

	_, err := svc.Analyze(context.Background(), student, &models.Term{ID: "t1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
}

func TestSelectWithinCeilingFirstFit(t *testing.T) {
	demand := models.DemandByLevel{
		1: {
			{CourseID: "a", Level: 1, Credits: 3, Position: 1},
			{CourseID: "b", Level: 1, Credits: 3, Position: 2},
			{CourseID: "c", Level: 1, Credits: 3, Position: 3},
			{CourseID: "d", Level: 1, Credits: 3, Position: 4},
			{CourseID: "e", Level: 1, Credits: 3, Position: 5},
			{CourseID: "f", Level: 1, Credits: 3, Position: 6},
		},
		2: {
			{CourseID: "g", Level: 2, Credits: 3, Position: 1},
			{CourseID: "h", Level: 2, Credits: 3, Position: 2},
		},
	}

	// Six level-1 courses fill 18 credits; the first level-2 course would
	// overflow the 20-credit ceiling, ending admission for that level.
	selected := SelectWithinCeiling(demand, 20)
	assert.Len(t, selected, 6)
	total := 0
	for _, course := range selected {
		assert.Equal(t, 1, course.Level)
		total += course.Credits
	}
	assert.Equal(t, 18, total)
}

func TestSelectWithinCeilingLevelPriority(t *testing.T) {
	demand := models.DemandByLevel{
		2: {{CourseID: "late", Level: 2, Credits: 3, Position: 1}},
		1: {{CourseID: "early", Level: 1, Credits: 3, Position: 1}},
	}

	selected := SelectWithinCeiling(demand, 20)
	require.Len(t, selected, 2)
	assert.Equal(t, "early", selected[0].CourseID)
	assert.Equal(t, "late", selected[1].CourseID)
}

func TestSelectWithinCeilingNeverExceeds(t *testing.T) {
	demand := models.DemandByLevel{
		1: {
			{CourseID: "a", Level: 1, Credits: 9, Position: 1},
			{CourseID: "b", Level: 1, Credits: 9, Position: 2},
			{CourseID: "c", Level: 1, Credits: 9, Position: 3},
		},
	}

	selected := SelectWithinCeiling(demand, 20)
	total := 0
	for _, course := range selected {
		total += course.Credits
	}
	assert.LessOrEqual(t, total, 20)
	assert.Len(t, selected, 2)
}

func TestSelectWithinCeilingEmptyDemand(t *testing.T) {
	assert.Empty(t, SelectWithinCeiling(models.DemandByLevel{}, 20))
}

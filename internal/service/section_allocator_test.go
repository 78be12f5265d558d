package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/config"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type mockSectionCatalog struct {
	sections map[string][]models.SectionWithLoad
}

func (m *mockSectionCatalog) ListByCourseAndTerm(ctx context.Context, courseID, termID string) ([]models.SectionWithLoad, error) {
	return m.sections[courseID], nil
}

func (m *mockSectionCatalog) CountByCourseAndTerm(ctx context.Context, courseID, termID string) (int, error) {
	return len(m.sections[courseID]), nil
}

type mockFacultyReader struct {
	assigned map[string][]models.Faculty
	active   []models.Faculty
	rooms    []models.Room
}

func (m *mockFacultyReader) ListAssignedToCourse(ctx context.Context, courseID, termID string) ([]models.Faculty, error) {
	return m.assigned[courseID], nil
}

func (m *mockFacultyReader) ListActive(ctx context.Context) ([]models.Faculty, error) {
	return m.active, nil
}

func (m *mockFacultyReader) ListRooms(ctx context.Context) ([]models.Room, error) {
	return m.rooms, nil
}

func allocatorFixture(policy string) (*AllocatorService, *mockSectionCatalog, *mockFacultyReader) {
	catalog := &mockSectionCatalog{sections: map[string][]models.SectionWithLoad{}}
	faculty := &mockFacultyReader{
		assigned: map[string][]models.Faculty{},
		active:   []models.Faculty{{ID: "f1"}, {ID: "f2"}},
		rooms:    []models.Room{{ID: "r1"}},
	}
	cfg := config.EngineConfig{
		SectionCapacity:    30,
		SlotAttempts:       20,
		SlotFallbackPolicy: policy,
	}
	return NewAllocatorService(catalog, faculty, cfg, 1, zap.NewNop()), catalog, faculty
}

func TestPlanPicksFirstFittingSection(t *testing.T) {
	svc, catalog, _ := allocatorFixture(config.SlotFallbackAcceptConflict)
	catalog.sections["c1"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "sec1", Capacity: 30, Meetings: meetingsFor(dayPair{1, 3}, 9*60)}, ActiveCount: 5},
		{Section: models.Section{ID: "sec2", Capacity: 30, Meetings: meetingsFor(dayPair{2, 4}, 9*60)}, ActiveCount: 0},
	}

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.NoError(t, err)
	assert.False(t, plan.Synthesized)
	assert.Equal(t, "sec1", plan.Section.ID)
}

func TestPlanSkipsFullAndConflicting(t *testing.T) {
	svc, catalog, _ := allocatorFixture(config.SlotFallbackAcceptConflict)
	catalog.sections["c1"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "full", Capacity: 30, Meetings: meetingsFor(dayPair{2, 4}, 9*60)}, ActiveCount: 30},
		{Section: models.Section{ID: "clash", Capacity: 30, Meetings: meetingsFor(dayPair{1, 3}, 9*60)}, ActiveCount: 1},
		{Section: models.Section{ID: "open", Capacity: 30, Meetings: meetingsFor(dayPair{2, 4}, 10*60)}, ActiveCount: 1},
	}
	accepted := meetingsFor(dayPair{1, 3}, 9*60)

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", accepted, nil)
	require.NoError(t, err)
	assert.Equal(t, "open", plan.Section.ID)
}

func TestPlanHonorsExcludeSet(t *testing.T) {
	svc, catalog, _ := allocatorFixture(config.SlotFallbackAcceptConflict)
	catalog.sections["c1"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "sec1", Capacity: 30, Meetings: meetingsFor(dayPair{1, 3}, 9*60)}, ActiveCount: 0},
		{Section: models.Section{ID: "sec2", Capacity: 30, Meetings: meetingsFor(dayPair{2, 4}, 9*60)}, ActiveCount: 0},
	}

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, map[string]bool{"sec1": true})
	require.NoError(t, err)
	assert.Equal(t, "sec2", plan.Section.ID)
}

func TestPlanSynthesizesWhenNoSections(t *testing.T) {
	svc, _, faculty := allocatorFixture(config.SlotFallbackAcceptConflict)
	faculty.assigned["c1"] = []models.Faculty{{ID: "prof"}}

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.NoError(t, err)
	assert.True(t, plan.Synthesized)
	assert.False(t, plan.ConflictAccepted)
	section := plan.Section
	assert.Equal(t, "prof", section.InstructorID)
	assert.Equal(t, "CS101-S01", section.Code)
	assert.Equal(t, 30, section.Capacity)
	require.NotNil(t, section.RoomID)
	assert.Equal(t, "r1", *section.RoomID)
	assert.Len(t, section.Meetings, 2)
	assert.False(t, ConflictsWithAny(section.Meetings, nil))
}

func TestPlanSynthesisRoundRobinInstructor(t *testing.T) {
	svc, _, _ := allocatorFixture(config.SlotFallbackAcceptConflict)

	first, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.NoError(t, err)
	second, err := svc.Plan(context.Background(), "c2", "CS102", "t1", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "f1", first.Section.InstructorID)
	assert.Equal(t, "f2", second.Section.InstructorID)
}

func TestPlanSynthesisAvoidsAcceptedMeetings(t *testing.T) {
	svc, _, _ := allocatorFixture(config.SlotFallbackAcceptConflict)
	accepted := meetingsFor(dayPair{1, 3}, 8*60)

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", accepted, nil)
	require.NoError(t, err)
	assert.True(t, plan.Synthesized)
	assert.False(t, plan.ConflictAccepted)
	assert.False(t, ConflictsWithAny(plan.Section.Meetings, accepted))
}

// blanketSchedule fills every weekday across the whole teaching window so no
// randomized attempt can find a free block.
func blanketSchedule() []models.Meeting {
	var meetings []models.Meeting
	for day := 1; day <= 5; day++ {
		meetings = append(meetings, models.Meeting{DayOfWeek: day, StartMinute: 8 * 60, EndMinute: 18 * 60})
	}
	return meetings
}

func TestPlanSynthesisFallbackAcceptsConflict(t *testing.T) {
	svc, _, _ := allocatorFixture(config.SlotFallbackAcceptConflict)

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", blanketSchedule(), nil)
	require.NoError(t, err)
	assert.True(t, plan.Synthesized)
	assert.True(t, plan.ConflictAccepted)
	require.Len(t, plan.Section.Meetings, 2)
	assert.Equal(t, 1, plan.Section.Meetings[0].DayOfWeek)
	assert.Equal(t, 8*60, plan.Section.Meetings[0].StartMinute)
}

func TestPlanSynthesisStrictRefuses(t *testing.T) {
	svc, _, _ := allocatorFixture(config.SlotFallbackStrict)

	_, err := svc.Plan(context.Background(), "c1", "CS101", "t1", blanketSchedule(), nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoConflictFreeSlot))
}

func TestPlanSynthesisNoFacultyIsConsistencyViolation(t *testing.T) {
	svc, _, faculty := allocatorFixture(config.SlotFallbackAcceptConflict)
	faculty.active = nil

	_, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
}

func TestPlanSynthesisNoRooms(t *testing.T) {
	svc, _, faculty := allocatorFixture(config.SlotFallbackAcceptConflict)
	faculty.rooms = nil

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, plan.Section.RoomID)
}

func TestPlanSectionCodeOrdinal(t *testing.T) {
	svc, catalog, _ := allocatorFixture(config.SlotFallbackAcceptConflict)
	catalog.sections["c1"] = []models.SectionWithLoad{
		{Section: models.Section{ID: "sec1", Capacity: 1, Meetings: meetingsFor(dayPair{1, 3}, 9*60)}, ActiveCount: 1},
	}

	plan, err := svc.Plan(context.Background(), "c1", "CS101", "t1", nil, nil)
	require.NoError(t, err)
	assert.True(t, plan.Synthesized)
	assert.Equal(t, "CS101-S02", plan.Section.Code)
}

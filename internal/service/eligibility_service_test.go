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

type mockCurriculumReader struct {
	courses map[string]*models.Course
	prereqs map[string][]models.Prerequisite
}

func (m *mockCurriculumReader) FindCourse(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCurriculumReader) ListPrerequisites(ctx context.Context, courseID string) ([]models.Prerequisite, error) {
	return m.prereqs[courseID], nil
}

type mockProgressReader struct {
	progress map[string]models.Progress
}

func (m *mockProgressReader) MapByStudent(ctx context.Context, studentID string) (map[string]models.Progress, error) {
	return m.progress, nil
}

func newEligibilityFixture(progress map[string]models.Progress, prereqs map[string][]models.Prerequisite) *EligibilityService {
	curriculum := &mockCurriculumReader{
		courses: map[string]*models.Course{
			"calc2": {ID: "calc2", Code: "MATH201"},
			"calc1": {ID: "calc1", Code: "MATH101"},
		},
		prereqs: prereqs,
	}
	return NewEligibilityService(curriculum, &mockProgressReader{progress: progress}, zap.NewNop())
}

func TestCanEnrollMissingPrerequisites(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{},
		map[string][]models.Prerequisite{"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}}},
	)

	result, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.ReasonMissingPrerequisites, result.Reason)
	assert.Equal(t, []string{"calc1"}, result.Missing)
}

func TestCanEnrollFailedPrerequisiteStillMissing(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{"calc1": {CourseID: "calc1", Status: models.ProgressFailed}},
		map[string][]models.Prerequisite{"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}}},
	)

	result, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.ReasonMissingPrerequisites, result.Reason)
}

func TestCanEnrollAlreadyCompleted(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{
			"calc1": {CourseID: "calc1", Status: models.ProgressCompleted},
			"calc2": {CourseID: "calc2", Status: models.ProgressCompleted},
		},
		map[string][]models.Prerequisite{"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}}},
	)

	result, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.ReasonAlreadyCompleted, result.Reason)
}

func TestCanEnrollAlreadyInProgress(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{
			"calc1": {CourseID: "calc1", Status: models.ProgressCompleted},
			"calc2": {CourseID: "calc2", Status: models.ProgressInProgress},
		},
		map[string][]models.Prerequisite{"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}}},
	)

	result, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, models.ReasonAlreadyEnrolled, result.Reason)
}

func TestCanEnrollEligible(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{"calc1": {CourseID: "calc1", Status: models.ProgressCompleted}},
		map[string][]models.Prerequisite{"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}}},
	)

	result, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Empty(t, result.Reason)
}

func TestCanEnrollCourseNotFound(t *testing.T) {
	svc := newEligibilityFixture(nil, nil)

	_, err := svc.CanEnroll(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestCanEnrollPrerequisiteCycle(t *testing.T) {
	svc := newEligibilityFixture(
		map[string]models.Progress{},
		map[string][]models.Prerequisite{
			"calc2": {{CourseID: "calc2", RequiredCourseID: "calc1"}},
			"calc1": {{CourseID: "calc1", RequiredCourseID: "calc2"}},
		},
	)

	_, err := svc.CanEnroll(context.Background(), "s1", "calc2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConsistency))
}

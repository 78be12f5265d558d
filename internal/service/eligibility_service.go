package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type prerequisiteReader interface {
	ListPrerequisites(ctx context.Context, courseID string) ([]models.Prerequisite, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type progressReader interface {
	MapByStudent(ctx context.Context, studentID string) (map[string]models.Progress, error)
}

// EligibilityService decides whether a student may enroll into a course. It
// has no side effects and is safe to call many times during a single pass.
type EligibilityService struct {
	curriculum prerequisiteReader
	progress   progressReader
	logger     *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(curriculum prerequisiteReader, progress progressReader, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{curriculum: curriculum, progress: progress, logger: logger}
}

// CanEnroll evaluates the rules in order, first failure wins:
// unmet prerequisites, then already completed, then already in progress.
func (s *EligibilityService) CanEnroll(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error) {
	if studentID == "" || courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and course are required")
	}
	if _, err := s.curriculum.FindCourse(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	progressMap, err := s.progress.MapByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	return s.evaluate(ctx, studentID, courseID, progressMap)
}

// Evaluate runs the same rules against a preloaded progress map so the
// batch pass avoids re-reading per course.
func (s *EligibilityService) Evaluate(ctx context.Context, studentID, courseID string, progressMap map[string]models.Progress) (*models.EligibilityResult, error) {
	return s.evaluate(ctx, studentID, courseID, progressMap)
}

func (s *EligibilityService) evaluate(ctx context.Context, studentID, courseID string, progressMap map[string]models.Progress) (*models.EligibilityResult, error) {
	if err := s.ensureAcyclic(ctx, courseID); err != nil {
		return nil, err
	}

	prereqs, err := s.curriculum.ListPrerequisites(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}

	var missing []string
	for _, prereq := range prereqs {
		progress, ok := progressMap[prereq.RequiredCourseID]
		if !ok || progress.Status != models.ProgressCompleted {
			missing = append(missing, prereq.RequiredCourseID)
		}
	}
	if len(missing) > 0 {
		return &models.EligibilityResult{Eligible: false, Reason: models.ReasonMissingPrerequisites, Missing: missing}, nil
	}

	if progress, ok := progressMap[courseID]; ok {
		switch progress.Status {
		case models.ProgressCompleted:
			return &models.EligibilityResult{Eligible: false, Reason: models.ReasonAlreadyCompleted}, nil
		case models.ProgressInProgress:
			return &models.EligibilityResult{Eligible: false, Reason: models.ReasonAlreadyEnrolled}, nil
		}
	}

	return &models.EligibilityResult{Eligible: true}, nil
}

// ensureAcyclic walks the prerequisite graph with a visited set. Plans are
// acyclic by curriculum design; a cycle here is malformed data and surfaces
// as a consistency violation instead of infinite recursion.
func (s *EligibilityService) ensureAcyclic(ctx context.Context, courseID string) error {
	visited := make(map[string]bool)
	var walk func(id string, path map[string]bool) error
	walk = func(id string, path map[string]bool) error {
		if path[id] {
			return appErrors.Clone(appErrors.ErrConsistency, fmt.Sprintf("prerequisite cycle detected at course %s", id))
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		path[id] = true
		defer delete(path, id)

		prereqs, err := s.curriculum.ListPrerequisites(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to walk prerequisites")
		}
		for _, prereq := range prereqs {
			if err := walk(prereq.RequiredCourseID, path); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(courseID, make(map[string]bool))
}

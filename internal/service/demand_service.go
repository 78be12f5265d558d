package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type planReader interface {
	FindActivePlan(ctx context.Context, majorID string) (*models.CurriculumPlan, error)
	ListEntriesUpToLevel(ctx context.Context, planID string, level int) ([]models.PlanEntry, error)
}

type activeAssignmentChecker interface {
	HasActiveForCourse(ctx context.Context, studentID, courseID, termID string) (bool, error)
}

type sectionLoadReader interface {
	ListByCourseAndTerm(ctx context.Context, courseID, termID string) ([]models.SectionWithLoad, error)
}

type eligibilityEvaluator interface {
	Evaluate(ctx context.Context, studentID, courseID string, progressMap map[string]models.Progress) (*models.EligibilityResult, error)
}

// DemandService walks the curriculum plan from level 1 up to the student's
// current level and produces the still-needed courses per level.
type DemandService struct {
	plans       planReader
	progress    progressReader
	assignments activeAssignmentChecker
	sections    sectionLoadReader
	eligibility eligibilityEvaluator
	logger      *zap.Logger
}

// NewDemandService constructs DemandService.
func NewDemandService(plans planReader, progress progressReader, assignments activeAssignmentChecker, sections sectionLoadReader, eligibility eligibilityEvaluator, logger *zap.Logger) *DemandService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemandService{plans: plans, progress: progress, assignments: assignments, sections: sections, eligibility: eligibility, logger: logger}
}

// Analyze returns the student's outstanding courses grouped by level,
// restricted to their major's active plan. An entry survives when progress
// is not COMPLETED, no active assignment exists, eligibility passes, and the
// capacity pre-filter does not rule the course out. The capacity check here
// is a pre-filter only; the authoritative check happens at write time.
func (s *DemandService) Analyze(ctx context.Context, student *models.Student, term *models.Term) (models.DemandByLevel, error) {
	plan, err := s.plans.FindActivePlan(ctx, student.MajorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConsistency, "no active curriculum plan for major "+student.MajorID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum plan")
	}

	entries, err := s.plans.ListEntriesUpToLevel(ctx, plan.ID, student.CurrentLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan entries")
	}

	progressMap, err := s.progress.MapByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	demand := make(models.DemandByLevel)
	for _, entry := range entries {
		if progress, ok := progressMap[entry.CourseID]; ok && progress.Status == models.ProgressCompleted {
			continue
		}

		active, err := s.assignments.HasActiveForCourse(ctx, student.ID, entry.CourseID, term.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active assignment")
		}
		if active {
			continue
		}

		result, err := s.eligibility.Evaluate(ctx, student.ID, entry.CourseID, progressMap)
		if err != nil {
			return nil, err
		}
		if !result.Eligible {
			continue
		}

		full, err := s.allSectionsFull(ctx, entry.CourseID, term.ID)
		if err != nil {
			return nil, err
		}
		if full {
			continue
		}

		demand[entry.Level] = append(demand[entry.Level], models.CourseDemand{
			CourseID:   entry.CourseID,
			CourseCode: entry.CourseCode,
			CourseName: entry.CourseName,
			Level:      entry.Level,
			Credits:    entry.Credits,
			Position:   entry.Position,
		})
	}

	return demand, nil
}

// allSectionsFull rules a course out only when sections exist and every one
// is at capacity. Zero sections means the allocator can synthesize one.
func (s *DemandService) allSectionsFull(ctx context.Context, courseID, termID string) (bool, error) {
	sections, err := s.sections.ListByCourseAndTerm(ctx, courseID, termID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}
	if len(sections) == 0 {
		return false, nil
	}
	for _, section := range sections {
		if section.ActiveCount < section.Capacity {
			return false, nil
		}
	}
	return true, nil
}

// SelectWithinCeiling converts the multi-level demand into a single term's
// course list, never exceeding ceiling. Levels are taken in ascending order;
// within a level courses are taken in plan order and the first entry that
// would overflow stops admission for that level. First-fit, not best-fit:
// course order governs admission so level priority stays intact.
func SelectWithinCeiling(demand models.DemandByLevel, ceiling int) []models.CourseDemand {
	if ceiling <= 0 {
		ceiling = 20
	}

	var selected []models.CourseDemand
	running := 0
	for _, level := range demand.Levels() {
		for _, course := range demand[level] {
			if running+course.Credits > ceiling {
				break
			}
			selected = append(selected, course)
			running += course.Credits
		}
		if running >= ceiling {
			break
		}
	}
	return selected
}

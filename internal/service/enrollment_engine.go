package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/config"
	"github.com/campushq/enrollment-api/pkg/database"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type txBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type engineStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListActive(ctx context.Context) ([]models.Student, error)
	UpdateLevel(ctx context.Context, id string, level int) error
}

type engineTermRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context) (*models.Term, error)
}

type engineSectionRepository interface {
	LockForUpdateTx(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Section, error)
	CountActiveTx(ctx context.Context, exec sqlx.ExtContext, id string) (int, error)
	CreateTx(ctx context.Context, exec sqlx.ExtContext, section *models.Section) error
	ListStudentMeetings(ctx context.Context, studentID, termID string) ([]models.Meeting, error)
}

type engineAssignmentRepository interface {
	FindByStudentAndSectionTx(ctx context.Context, exec sqlx.ExtContext, studentID, sectionID string) (*models.Assignment, error)
	CreateTx(ctx context.Context, exec sqlx.ExtContext, assignment *models.Assignment) error
	ReactivateTx(ctx context.Context, exec sqlx.ExtContext, id string) error
	UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus, droppedAt *time.Time) error
}

type engineProgressRepository interface {
	UpsertTx(ctx context.Context, exec sqlx.ExtContext, progress *models.Progress) error
}

type engineCourseRepository interface {
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type demandAnalyzer interface {
	Analyze(ctx context.Context, student *models.Student, term *models.Term) (models.DemandByLevel, error)
}

type sectionPlanner interface {
	Plan(ctx context.Context, courseID, courseCode, termID string, accepted []models.Meeting, exclude map[string]bool) (*AllocationPlan, error)
}

type eligibilityChecker interface {
	CanEnroll(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error)
}

type engineMetrics interface {
	RecordEnrollment(synthesized bool)
	RecordSkip(reason string)
	RecordTxRetry()
}

// EnrollmentEngine drives enrollment writes: the term activation batch, the
// single-enrollment endpoint, and drops. All seat-count decisions happen
// inside a transaction under a row lock on the section.
type EnrollmentEngine struct {
	db          txBeginner
	students    engineStudentRepository
	terms       engineTermRepository
	sections    engineSectionRepository
	assignments engineAssignmentRepository
	progress    engineProgressRepository
	courses     engineCourseRepository
	demand      demandAnalyzer
	allocator   sectionPlanner
	eligibility eligibilityChecker
	metrics     engineMetrics
	engineCfg   config.EngineConfig
	batchCfg    config.BatchConfig
	logger      *zap.Logger
}

// NewEnrollmentEngine constructs EnrollmentEngine.
func NewEnrollmentEngine(
	db txBeginner,
	students engineStudentRepository,
	terms engineTermRepository,
	sections engineSectionRepository,
	assignments engineAssignmentRepository,
	progress engineProgressRepository,
	courses engineCourseRepository,
	demand demandAnalyzer,
	allocator sectionPlanner,
	eligibility eligibilityChecker,
	metrics engineMetrics,
	engineCfg config.EngineConfig,
	batchCfg config.BatchConfig,
	logger *zap.Logger,
) *EnrollmentEngine {
	if batchCfg.Workers <= 0 {
		batchCfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentEngine{
		db:          db,
		students:    students,
		terms:       terms,
		sections:    sections,
		assignments: assignments,
		progress:    progress,
		courses:     courses,
		demand:      demand,
		allocator:   allocator,
		eligibility: eligibility,
		metrics:     metrics,
		engineCfg:   engineCfg,
		batchCfg:    batchCfg,
		logger:      logger,
	}
}

// ActivateTerm runs the batch pass for a term: every active student gets a
// recomputed level, a demand analysis, a credit-bounded selection, and one
// transactional enrollment per selected course. Students are independent and
// processed concurrently; a consistency violation stops the run, anything
// else skips the student or course and continues.
func (e *EnrollmentEngine) ActivateTerm(ctx context.Context, termID string) (*models.ActivationReport, error) {
	term, err := e.terms.FindByID(ctx, termID)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	if term.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term is closed")
	}

	students, err := e.students.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	report := &models.ActivationReport{TermID: termID, StartedAt: time.Now().UTC()}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		stopped  atomic.Bool
		fatalMu  sync.Mutex
		fatalErr error
	)

	jobs := make(chan models.Student)
	workers := e.batchCfg.Workers
	if workers > len(students) && len(students) > 0 {
		workers = len(students)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for student := range jobs {
				if stopped.Load() {
					mu.Lock()
					report.Processed++
					report.Skipped++
					report.Skips = append(report.Skips, models.SkipDetail{
						StudentID: student.ID,
						Reason:    models.SkipReasonStopped,
					})
					mu.Unlock()
					continue
				}

				enrolled, skips, err := e.processStudent(ctx, &student, term)
				if err != nil {
					stopped.Store(true)
					fatalMu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					fatalMu.Unlock()
					e.logger.Error("activation stopped",
						zap.String("student_id", student.ID),
						zap.Error(err))
					continue
				}

				mu.Lock()
				report.Processed++
				report.Enrolled += enrolled
				report.Skipped += len(skips)
				report.Skips = append(report.Skips, skips...)
				mu.Unlock()
			}
		}()
	}

	for _, student := range students {
		jobs <- student
	}
	close(jobs)
	wg.Wait()

	report.FinishedAt = time.Now().UTC()
	if fatalErr != nil {
		return report, fatalErr
	}

	e.logger.Info("term activation finished",
		zap.String("term_id", termID),
		zap.Int("processed", report.Processed),
		zap.Int("enrolled", report.Enrolled),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// processStudent handles one student within the batch. Returns a non-nil
// error only for consistency violations, which abort the whole run.
func (e *EnrollmentEngine) processStudent(ctx context.Context, student *models.Student, term *models.Term) (int, []models.SkipDetail, error) {
	level := DeriveLevel(student, term, e.engineCfg.MaxLevel)
	if level != student.CurrentLevel {
		if err := e.students.UpdateLevel(ctx, student.ID, level); err != nil {
			return 0, []models.SkipDetail{{
				StudentID: student.ID,
				Reason:    models.SkipReasonTransient,
				Detail:    "failed to persist level",
			}}, nil
		}
		student.CurrentLevel = level
	}

	demand, err := e.demand.Analyze(ctx, student, term)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrConsistency) {
			return 0, nil, err
		}
		return 0, []models.SkipDetail{{
			StudentID: student.ID,
			Reason:    skipReasonFor(err),
			Detail:    err.Error(),
		}}, nil
	}

	selected := SelectWithinCeiling(demand, e.engineCfg.CreditCeiling)
	if len(selected) == 0 {
		return 0, nil, nil
	}

	accepted, err := e.sections.ListStudentMeetings(ctx, student.ID, term.ID)
	if err != nil {
		return 0, []models.SkipDetail{{
			StudentID: student.ID,
			Reason:    models.SkipReasonTransient,
			Detail:    "failed to load existing schedule",
		}}, nil
	}

	var (
		enrolled int
		skips    []models.SkipDetail
	)
	for _, course := range selected {
		section, err := e.enrollCourse(ctx, student.ID, course.CourseID, course.CourseCode, term, accepted)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrConsistency) {
				return enrolled, skips, err
			}
			skips = append(skips, models.SkipDetail{
				StudentID: student.ID,
				CourseID:  course.CourseID,
				Reason:    skipReasonFor(err),
				Detail:    err.Error(),
			})
			if e.metrics != nil {
				e.metrics.RecordSkip(skipReasonFor(err))
			}
			continue
		}
		enrolled++
		accepted = append(accepted, section.Meetings...)
	}
	return enrolled, skips, nil
}

// enrollCourse allocates a section and commits the enrollment, re-planning
// with the losing section excluded when the in-transaction capacity check
// fails against a stale read.
func (e *EnrollmentEngine) enrollCourse(ctx context.Context, studentID, courseID, courseCode string, term *models.Term, accepted []models.Meeting) (*models.Section, error) {
	exclude := make(map[string]bool)
	attempts := e.engineCfg.ReselectAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		plan, err := e.allocator.Plan(ctx, courseID, courseCode, term.ID, accepted, exclude)
		if err != nil {
			return nil, err
		}

		err = e.commitEnrollment(ctx, studentID, courseID, term, plan)
		if err == nil {
			if e.metrics != nil {
				e.metrics.RecordEnrollment(plan.Synthesized)
			}
			return plan.Section, nil
		}
		if appErrors.Is(err, appErrors.ErrCapacityExceeded) {
			if !plan.Synthesized {
				exclude[plan.Section.ID] = true
			}
			continue
		}
		return nil, err
	}
	return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "no section with a free seat")
}

// commitEnrollment runs the enrollment transaction, retrying transient
// storage conflicts with linear backoff.
func (e *EnrollmentEngine) commitEnrollment(ctx context.Context, studentID, courseID string, term *models.Term, plan *AllocationPlan) error {
	var err error
	for try := 0; ; try++ {
		err = e.enrollTx(ctx, studentID, courseID, term, plan)
		if err == nil {
			return nil
		}
		if !isRetryable(err) || try >= e.batchCfg.MaxTxRetries {
			return err
		}
		if e.metrics != nil {
			e.metrics.RecordTxRetry()
		}
		backoff := e.batchCfg.RetryBackoff * time.Duration(try+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// enrollTx is one attempt at the enrollment write. Capacity is re-checked
// under FOR UPDATE; an existing assignment for the same (student, section)
// makes the write idempotent or reactivates a dropped row.
func (e *EnrollmentEngine) enrollTx(ctx context.Context, studentID, courseID string, term *models.Term, plan *AllocationPlan) error {
	if e.batchCfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.batchCfg.TxTimeout)
		defer cancel()
	}

	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback()

	section := plan.Section
	if plan.Synthesized {
		if err := e.sections.CreateTx(ctx, tx, section); err != nil {
			if database.IsUniqueViolation(err) {
				// Lost the code ordinal race; re-plan picks a fresh one.
				return appErrors.Clone(appErrors.ErrCapacityExceeded, "section code already taken")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create section")
		}
	} else {
		locked, err := e.sections.LockForUpdateTx(ctx, tx, section.ID)
		if err != nil {
			if isNoRowsErr(err) {
				return appErrors.Clone(appErrors.ErrCapacityExceeded, "section disappeared")
			}
			return err
		}
		active, err := e.sections.CountActiveTx(ctx, tx, section.ID)
		if err != nil {
			return err
		}
		if active >= locked.Capacity {
			return appErrors.Clone(appErrors.ErrCapacityExceeded, "")
		}
	}

	existing, err := e.assignments.FindByStudentAndSectionTx(ctx, tx, studentID, section.ID)
	switch {
	case err == nil:
		switch existing.Status {
		case models.AssignmentDropped:
			if err := e.assignments.ReactivateTx(ctx, tx, existing.ID); err != nil {
				return err
			}
		default:
			// ENROLLED, COMPLETED, or FAILED: the row stands as is.
			return tx.Commit()
		}
	case isNoRowsErr(err):
		assignment := &models.Assignment{
			StudentID: studentID,
			SectionID: section.ID,
			CourseID:  courseID,
			Status:    models.AssignmentEnrolled,
		}
		if err := e.assignments.CreateTx(ctx, tx, assignment); err != nil {
			if database.IsUniqueViolation(err) {
				// Concurrent insert of the same pair; retry finds the row.
				return appErrors.Clone(appErrors.ErrTransient, "concurrent enrollment")
			}
			return err
		}
	default:
		return err
	}

	termID := term.ID
	if err := e.progress.UpsertTx(ctx, tx, &models.Progress{
		StudentID: studentID,
		CourseID:  courseID,
		Status:    models.ProgressInProgress,
		TermTaken: &termID,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// EnrollSingle enrolls one student into one course in the current term,
// applying the same eligibility, conflict, and capacity rules as the batch.
func (e *EnrollmentEngine) EnrollSingle(ctx context.Context, studentID, courseID string) (*models.Section, error) {
	term, err := e.terms.FindCurrent(ctx)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	if term.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term is closed")
	}

	if _, err := e.students.FindByID(ctx, studentID); err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := e.courses.FindCourse(ctx, courseID)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	result, err := e.eligibility.CanEnroll(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if !result.Eligible {
		return nil, appErrors.Clone(appErrors.ErrNotEligible, result.Reason)
	}

	accepted, err := e.sections.ListStudentMeetings(ctx, studentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	return e.enrollCourse(ctx, studentID, courseID, course.Code, term, accepted)
}

// Drop marks an active assignment dropped and resets the course progress, so
// a later enrollment can reactivate the same row.
func (e *EnrollmentEngine) Drop(ctx context.Context, studentID, sectionID string) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback()

	assignment, err := e.assignments.FindByStudentAndSectionTx(ctx, tx, studentID, sectionID)
	if err != nil {
		if isNoRowsErr(err) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return err
	}
	if !assignment.Active() {
		return appErrors.Clone(appErrors.ErrConflict, "assignment is not active")
	}

	now := time.Now().UTC()
	if err := e.assignments.UpdateStatusTx(ctx, tx, assignment.ID, models.AssignmentDropped, &now); err != nil {
		return err
	}
	if err := e.progress.UpsertTx(ctx, tx, &models.Progress{
		StudentID: studentID,
		CourseID:  assignment.CourseID,
		Status:    models.ProgressNotTaken,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func isNoRowsErr(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isRetryable(err error) bool {
	return database.IsTransient(err) || appErrors.Is(err, appErrors.ErrTransient)
}

func skipReasonFor(err error) string {
	switch {
	case appErrors.Is(err, appErrors.ErrNotEligible):
		return models.SkipReasonNotEligible
	case appErrors.Is(err, appErrors.ErrCapacityExceeded):
		return models.SkipReasonCapacity
	case appErrors.Is(err, appErrors.ErrNoConflictFreeSlot):
		return models.SkipReasonNoSlot
	case appErrors.Is(err, appErrors.ErrConsistency):
		return models.SkipReasonMissingPlanData
	default:
		return models.SkipReasonTransient
	}
}

package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/config"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type closeTermRepository interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	MarkClosed(ctx context.Context, id string) error
}

type closeAssignmentRepository interface {
	ListOutcomesByTerm(ctx context.Context, termID string, academicYear, termNumber int) ([]models.AssignmentOutcome, error)
	UpdateStatusTx(ctx context.Context, exec sqlx.ExtContext, id string, status models.AssignmentStatus, droppedAt *time.Time) error
}

type closeGradeRepository interface {
	FindByAssignmentAndTerm(ctx context.Context, assignmentID string, academicYear, termNumber int) (*models.Grade, error)
	CreateTx(ctx context.Context, exec sqlx.ExtContext, grade *models.Grade) error
}

// TermCloseService finalizes a term: every non-dropped assignment becomes
// COMPLETED or FAILED, with a placeholder grade minted for assignments that
// were never graded. Safe to rerun; already-finalized assignments are
// counted but not rewritten.
type TermCloseService struct {
	db          txBeginner
	terms       closeTermRepository
	assignments closeAssignmentRepository
	grades      closeGradeRepository
	progress    engineProgressRepository
	cfg         config.EngineConfig
	logger      *zap.Logger
}

// NewTermCloseService constructs TermCloseService.
func NewTermCloseService(db txBeginner, terms closeTermRepository, assignments closeAssignmentRepository, grades closeGradeRepository, progress engineProgressRepository, cfg config.EngineConfig, logger *zap.Logger) *TermCloseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermCloseService{
		db:          db,
		terms:       terms,
		assignments: assignments,
		grades:      grades,
		progress:    progress,
		cfg:         cfg,
		logger:      logger,
	}
}

// CloseTerm runs the finalization pass and marks the term closed. Failures
// on individual assignments are logged and skipped so one bad row cannot
// hold the whole term open.
func (s *TermCloseService) CloseTerm(ctx context.Context, termID string) (*models.CloseReport, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}

	outcomes, err := s.assignments.ListOutcomesByTerm(ctx, termID, term.AcademicYear, term.TermNumber)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list term assignments")
	}

	report := &models.CloseReport{TermID: termID, StartedAt: time.Now().UTC()}

	for _, outcome := range outcomes {
		result, err := s.finalizeAssignment(ctx, term, outcome)
		if err != nil {
			s.logger.Error("failed to finalize assignment",
				zap.String("assignment_id", outcome.ID),
				zap.String("student_id", outcome.StudentID),
				zap.Error(err))
			continue
		}
		report.Processed++
		switch result {
		case models.AssignmentCompleted:
			report.Passed++
		case models.AssignmentFailed:
			report.Failed++
		}
		if outcome.GradeID == nil && outcome.Status == models.AssignmentEnrolled {
			report.Pending++
		}
	}

	if !term.IsClosed {
		if err := s.terms.MarkClosed(ctx, termID); err != nil {
			return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark term closed")
		}
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info("term closed",
		zap.String("term_id", termID),
		zap.Int("processed", report.Processed),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("pending", report.Pending))
	return report, nil
}

// finalizeAssignment settles one assignment in its own transaction and
// returns the terminal status it holds afterwards.
func (s *TermCloseService) finalizeAssignment(ctx context.Context, term *models.Term, outcome models.AssignmentOutcome) (models.AssignmentStatus, error) {
	// Rerun: already settled by a previous pass.
	if outcome.Status == models.AssignmentCompleted || outcome.Status == models.AssignmentFailed {
		return outcome.Status, nil
	}

	var (
		score   float64
		gradeID string
		graded  bool
	)
	if outcome.GradeID != nil {
		gradeID = *outcome.GradeID
		if outcome.Score != nil {
			score = *outcome.Score
		}
		graded = true
	} else {
		// Re-check: a grade may have landed after the outcome listing, or a
		// previous interrupted pass may have minted the placeholder already.
		existing, err := s.grades.FindByAssignmentAndTerm(ctx, outcome.ID, term.AcademicYear, term.TermNumber)
		switch {
		case err == nil:
			gradeID = existing.ID
			if !existing.Placeholder() {
				score = existing.Score
				graded = true
			}
		case isNoRowsErr(err):
		default:
			return "", err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer tx.Rollback()

	if gradeID == "" {
		placeholder := &models.Grade{
			AssignmentID: outcome.ID,
			Score:        0,
			Letter:       models.PlaceholderLetter,
			Points:       0,
			TermNumber:   term.TermNumber,
			AcademicYear: term.AcademicYear,
		}
		if err := s.grades.CreateTx(ctx, tx, placeholder); err != nil {
			return "", err
		}
		gradeID = placeholder.ID
	}

	status := models.AssignmentFailed
	progressStatus := models.ProgressFailed
	if graded && score >= s.cfg.PassingGrade {
		status = models.AssignmentCompleted
		progressStatus = models.ProgressCompleted
	}

	if err := s.assignments.UpdateStatusTx(ctx, tx, outcome.ID, status, nil); err != nil {
		return "", err
	}

	termID := term.ID
	if err := s.progress.UpsertTx(ctx, tx, &models.Progress{
		StudentID: outcome.StudentID,
		CourseID:  outcome.CourseID,
		Status:    progressStatus,
		TermTaken: &termID,
		GradeID:   &gradeID,
	}); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return status, nil
}

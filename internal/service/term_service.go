package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
	"github.com/campushq/enrollment-api/pkg/export"
	"github.com/campushq/enrollment-api/pkg/jobs"
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context) (*models.Term, error)
	ExistsByYearAndNumber(ctx context.Context, academicYear, termNumber int, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.Term) error
	Update(ctx context.Context, term *models.Term) error
	SetCurrent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type activationReportStore interface {
	SaveActivation(ctx context.Context, report *models.ActivationReport) error
	GetActivation(ctx context.Context, termID string) (*models.ActivationReport, error)
	SaveClose(ctx context.Context, report *models.CloseReport) error
	GetClose(ctx context.Context, termID string) (*models.CloseReport, error)
}

// CreateTermRequest describes payload for creating terms.
type CreateTermRequest struct {
	Name         string     `json:"name" validate:"required"`
	AcademicYear int        `json:"academic_year" validate:"required,min=1900"`
	TermNumber   int        `json:"term_number" validate:"required,min=1,max=2"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// UpdateTermRequest updates mutable fields on a term.
type UpdateTermRequest struct {
	Name         string     `json:"name" validate:"required"`
	AcademicYear int        `json:"academic_year" validate:"required,min=1900"`
	TermNumber   int        `json:"term_number" validate:"required,min=1,max=2"`
	StartDate    *time.Time `json:"start_date"`
	EndDate      *time.Time `json:"end_date"`
}

// TermService orchestrates term lifecycle: CRUD, activation, and close.
// Activation and close run as background jobs; their reports are retrievable
// once the pass finishes.
type TermService struct {
	repo      termRepository
	queue     jobDispatcher
	reports   activationReportStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, queue jobDispatcher, reports activationReportStore, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, queue: queue, reports: reports, validator: validate, logger: logger}
}

// List returns paginated terms.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.Term, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   size,
		TotalCount: total,
	}
	return terms, pagination, nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// GetCurrent returns the current term.
func (s *TermService) GetCurrent(ctx context.Context) (*models.Term, error) {
	term, err := s.repo.FindCurrent(ctx)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}

// Create adds a new term ensuring (year, number) uniqueness.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if req.StartDate != nil && req.EndDate != nil && !req.StartDate.Before(*req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	exists, err := s.repo.ExistsByYearAndNumber(ctx, req.AcademicYear, req.TermNumber, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for academic year and number")
	}

	term := &models.Term{
		Name:         req.Name,
		AcademicYear: req.AcademicYear,
		TermNumber:   req.TermNumber,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create term")
	}
	return term, nil
}

// Update modifies a term record. Closed terms are immutable.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid term payload")
	}
	if req.StartDate != nil && req.EndDate != nil && !req.StartDate.Before(*req.EndDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}

	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if term.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term is closed")
	}

	exists, err := s.repo.ExistsByYearAndNumber(ctx, req.AcademicYear, req.TermNumber, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check term uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for academic year and number")
	}

	term.Name = req.Name
	term.AcademicYear = req.AcademicYear
	term.TermNumber = req.TermNumber
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate

	if err := s.repo.Update(ctx, term); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update term")
	}
	return term, nil
}

// Delete removes a term that is neither current nor closed.
func (s *TermService) Delete(ctx context.Context, id string) error {
	term, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if term.IsCurrent {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete the current term")
	}
	if term.IsClosed {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete a closed term")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete term")
	}
	return nil
}

// Activate marks the term current and enqueues the enrollment batch pass.
func (s *TermService) Activate(ctx context.Context, id string) (*models.Term, error) {
	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if term.IsClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term is closed")
	}

	if err := s.repo.SetCurrent(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set current term")
	}
	term.IsCurrent = true

	if err := s.queue.Enqueue(jobs.Job{TermID: id, Pass: jobs.PassActivate}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue activation")
	}

	s.logger.Info("term activation enqueued", zap.String("term_id", id))
	return term, nil
}

// Close enqueues the grade finalization pass for the term.
func (s *TermService) Close(ctx context.Context, id string) error {
	term, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if term.IsClosed {
		return appErrors.Clone(appErrors.ErrConflict, "term is already closed")
	}

	if err := s.queue.Enqueue(jobs.Job{TermID: id, Pass: jobs.PassClose}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue close")
	}

	s.logger.Info("term close enqueued", zap.String("term_id", id))
	return nil
}

// ActivationReport returns the stored report of the latest activation pass.
func (s *TermService) ActivationReport(ctx context.Context, termID string) (*models.ActivationReport, error) {
	report, err := s.reports.GetActivation(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activation report")
	}
	if report == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no activation report for term")
	}
	return report, nil
}

// ActivationReportCSV renders the activation report's skip list as CSV.
func (s *TermService) ActivationReportCSV(ctx context.Context, termID string) ([]byte, error) {
	report, err := s.ActivationReport(ctx, termID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Course", "Reason", "Detail"},
		Rows:    make([]map[string]string, 0, len(report.Skips)),
	}
	for _, skip := range report.Skips {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": skip.StudentID,
			"Course":  skip.CourseID,
			"Reason":  skip.Reason,
			"Detail":  skip.Detail,
		})
	}

	data, err := export.NewCSVExporter().Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render activation report")
	}
	return data, nil
}

// CloseReport returns the stored report of the latest close pass.
func (s *TermService) CloseReport(ctx context.Context, termID string) (*models.CloseReport, error) {
	report, err := s.reports.GetClose(ctx, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load close report")
	}
	if report == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no close report for term")
	}
	return report, nil
}

type termActivator interface {
	ActivateTerm(ctx context.Context, termID string) (*models.ActivationReport, error)
}

type termCloser interface {
	CloseTerm(ctx context.Context, termID string) (*models.CloseReport, error)
}

type batchObserver interface {
	ObserveBatch(pass string, duration time.Duration)
}

// BatchWorker executes queued activation and close passes and persists their
// reports.
type BatchWorker struct {
	engine  termActivator
	closer  termCloser
	reports activationReportStore
	metrics batchObserver
	logger  *zap.Logger
}

// NewBatchWorker constructs BatchWorker.
func NewBatchWorker(engine termActivator, closer termCloser, reports activationReportStore, metrics batchObserver, logger *zap.Logger) *BatchWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchWorker{engine: engine, closer: closer, reports: reports, metrics: metrics, logger: logger}
}

// Handle dispatches one queued batch job.
func (w *BatchWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := time.Now()
	switch job.Pass {
	case jobs.PassActivate:
		report, err := w.engine.ActivateTerm(ctx, job.TermID)
		if report != nil {
			if saveErr := w.reports.SaveActivation(ctx, report); saveErr != nil {
				w.logger.Error("failed to store activation report", zap.String("term_id", job.TermID), zap.Error(saveErr))
			}
		}
		if w.metrics != nil {
			w.metrics.ObserveBatch(string(job.Pass), time.Since(started))
		}
		return err
	case jobs.PassClose:
		report, err := w.closer.CloseTerm(ctx, job.TermID)
		if report != nil {
			if saveErr := w.reports.SaveClose(ctx, report); saveErr != nil {
				w.logger.Error("failed to store close report", zap.String("term_id", job.TermID), zap.Error(saveErr))
			}
		}
		if w.metrics != nil {
			w.metrics.ObserveBatch(string(job.Pass), time.Since(started))
		}
		return err
	default:
		return fmt.Errorf("job %s: unknown pass", job.Key())
	}
}

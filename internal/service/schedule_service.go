package service

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
	"github.com/campushq/enrollment-api/pkg/export"
)

type scheduleAssignmentReader interface {
	ListActiveByStudentAndTerm(ctx context.Context, studentID, termID string) ([]models.Assignment, error)
}

type scheduleSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type scheduleCurriculumReader interface {
	FindActivePlan(ctx context.Context, majorID string) (*models.CurriculumPlan, error)
	ListEntriesUpToLevel(ctx context.Context, planID string, level int) ([]models.PlanEntry, error)
	FindCourse(ctx context.Context, id string) (*models.Course, error)
}

type scheduleStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type currentTermReader interface {
	FindCurrent(ctx context.Context) (*models.Term, error)
}

type demandPreviewer interface {
	Analyze(ctx context.Context, student *models.Student, term *models.Term) (models.DemandByLevel, error)
}

// DemandPreview is the dry-run view of what activation would enroll for one
// student.
type DemandPreview struct {
	StudentID    string                `json:"student_id"`
	TermID       string                `json:"term_id"`
	Level        int                   `json:"level"`
	Demand       models.DemandByLevel  `json:"demand"`
	Selected     []models.CourseDemand `json:"selected"`
	TotalCredits int                   `json:"total_credits"`
}

// ScheduleService assembles student timetable read models and their CSV and
// PDF exports.
type ScheduleService struct {
	students    scheduleStudentReader
	terms       currentTermReader
	assignments scheduleAssignmentReader
	sections    scheduleSectionReader
	curriculum  scheduleCurriculumReader
	demand      demandPreviewer
	ceiling     int
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewScheduleService constructs ScheduleService.
func NewScheduleService(students scheduleStudentReader, terms currentTermReader, assignments scheduleAssignmentReader, sections scheduleSectionReader, curriculum scheduleCurriculumReader, demand demandPreviewer, ceiling int, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		students:    students,
		terms:       terms,
		assignments: assignments,
		sections:    sections,
		curriculum:  curriculum,
		demand:      demand,
		ceiling:     ceiling,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Schedule returns the student's current-term timetable ordered by first
// meeting.
func (s *ScheduleService) Schedule(ctx context.Context, studentID string) ([]models.ScheduleEntry, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	term, err := s.terms.FindCurrent(ctx)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}

	assignments, err := s.assignments.ListActiveByStudentAndTerm(ctx, studentID, term.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	credits, err := s.creditsByCourse(ctx, student)
	if err != nil {
		return nil, err
	}

	entries := make([]models.ScheduleEntry, 0, len(assignments))
	for _, assignment := range assignments {
		section, err := s.sections.FindByID(ctx, assignment.SectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
		}
		course, err := s.curriculum.FindCourse(ctx, assignment.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		entries = append(entries, models.ScheduleEntry{
			CourseID:    course.ID,
			CourseCode:  course.Code,
			CourseName:  course.Name,
			SectionID:   section.ID,
			SectionCode: section.Code,
			Credits:     credits[course.ID],
			Meetings:    section.Meetings,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return firstMeetingKey(entries[i].Meetings) < firstMeetingKey(entries[j].Meetings)
	})
	return entries, nil
}

// Preview computes the demand and credit-bounded selection that activation
// would apply, without writing anything.
func (s *ScheduleService) Preview(ctx context.Context, studentID string) (*DemandPreview, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	term, err := s.terms.FindCurrent(ctx)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}

	demand, err := s.demand.Analyze(ctx, student, term)
	if err != nil {
		return nil, err
	}
	selected := SelectWithinCeiling(demand, s.ceiling)

	total := 0
	for _, course := range selected {
		total += course.Credits
	}

	return &DemandPreview{
		StudentID:    studentID,
		TermID:       term.ID,
		Level:        student.CurrentLevel,
		Demand:       demand,
		Selected:     selected,
		TotalCredits: total,
	}, nil
}

// ExportCSV renders the student's schedule as CSV.
func (s *ScheduleService) ExportCSV(ctx context.Context, studentID string) ([]byte, error) {
	entries, err := s.Schedule(ctx, studentID)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(scheduleDataset(entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// ExportPDF renders the student's schedule as a PDF document.
func (s *ScheduleService) ExportPDF(ctx context.Context, studentID string) ([]byte, error) {
	entries, err := s.Schedule(ctx, studentID)
	if err != nil {
		return nil, err
	}
	data, err := s.pdf.Render(scheduleDataset(entries), "Class Schedule")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func (s *ScheduleService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNoRowsErr(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// creditsByCourse maps course IDs to their plan credit weight for the
// student's major.
func (s *ScheduleService) creditsByCourse(ctx context.Context, student *models.Student) (map[string]int, error) {
	plan, err := s.curriculum.FindActivePlan(ctx, student.MajorID)
	if err != nil {
		if isNoRowsErr(err) {
			return map[string]int{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum plan")
	}
	entries, err := s.curriculum.ListEntriesUpToLevel(ctx, plan.ID, student.CurrentLevel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan entries")
	}
	credits := make(map[string]int, len(entries))
	for _, entry := range entries {
		credits[entry.CourseID] = entry.Credits
	}
	return credits, nil
}

func firstMeetingKey(meetings []models.Meeting) int {
	if len(meetings) == 0 {
		return 1 << 20
	}
	best := meetings[0].DayOfWeek*24*60 + meetings[0].StartMinute
	for _, m := range meetings[1:] {
		if key := m.DayOfWeek*24*60 + m.StartMinute; key < best {
			best = key
		}
	}
	return best
}

func scheduleDataset(entries []models.ScheduleEntry) export.Dataset {
	headers := []string{"Course", "Name", "Section", "Credits", "Meetings"}
	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		blocks := make([]string, 0, len(entry.Meetings))
		for _, m := range entry.Meetings {
			blocks = append(blocks, DayName(m.DayOfWeek)+" "+FormatMinute(m.StartMinute)+"-"+FormatMinute(m.EndMinute))
		}
		rows = append(rows, map[string]string{
			"Course":   entry.CourseCode,
			"Name":     entry.CourseName,
			"Section":  entry.SectionCode,
			"Credits":  strconv.Itoa(entry.Credits),
			"Meetings": strings.Join(blocks, "; "),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

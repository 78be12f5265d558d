package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/campushq/enrollment-api/internal/models"
	"github.com/campushq/enrollment-api/pkg/config"
	appErrors "github.com/campushq/enrollment-api/pkg/errors"
)

type sectionCatalogReader interface {
	ListByCourseAndTerm(ctx context.Context, courseID, termID string) ([]models.SectionWithLoad, error)
	CountByCourseAndTerm(ctx context.Context, courseID, termID string) (int, error)
}

type facultyReader interface {
	ListActive(ctx context.Context) ([]models.Faculty, error)
	ListAssignedToCourse(ctx context.Context, courseID, termID string) ([]models.Faculty, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
}

// AllocationPlan is the allocator's decision for one (student, course):
// either an existing section or a synthesized one to be created inside the
// enrollment transaction.
type AllocationPlan struct {
	Section          *models.Section
	Synthesized      bool
	ConflictAccepted bool
}

// AllocatorService finds a section whose meetings do not collide with the
// student's accepted schedule, synthesizing one when no candidate survives.
type AllocatorService struct {
	sections sectionCatalogReader
	faculty  facultyReader
	cfg      config.EngineConfig
	logger   *zap.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	facultyIdx int
	roomIdx    int
}

// NewAllocatorService constructs AllocatorService.
func NewAllocatorService(sections sectionCatalogReader, faculty facultyReader, cfg config.EngineConfig, seed int64, logger *zap.Logger) *AllocatorService {
	if cfg.SectionCapacity <= 0 {
		cfg.SectionCapacity = 30
	}
	if cfg.SlotAttempts <= 0 {
		cfg.SlotAttempts = 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocatorService{
		sections: sections,
		faculty:  faculty,
		cfg:      cfg,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Plan picks the first section of the course, in creation order, that has a
// free seat and no meeting collision with accepted. Sections in exclude have
// already failed the authoritative write-time capacity check this pass.
// When nothing survives it synthesizes a new section; the caller persists it
// inside the same transaction as the assignment write.
func (s *AllocatorService) Plan(ctx context.Context, courseID, courseCode, termID string, accepted []models.Meeting, exclude map[string]bool) (*AllocationPlan, error) {
	candidates, err := s.sections.ListByCourseAndTerm(ctx, courseID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sections")
	}

	for i := range candidates {
		candidate := &candidates[i]
		if exclude[candidate.ID] {
			continue
		}
		if candidate.ActiveCount >= candidate.Capacity {
			continue
		}
		if ConflictsWithAny(candidate.Meetings, accepted) {
			continue
		}
		section := candidate.Section
		return &AllocationPlan{Section: &section}, nil
	}

	return s.synthesize(ctx, courseID, courseCode, termID, accepted)
}

// synthesize assembles a new section: an instructor already associated with
// the course when one exists (otherwise round-robin over active faculty), a
// round-robin room when any are configured, and a bounded randomized search
// over the allowed (day-pair, start) catalog for a block free of collisions
// with accepted. When every attempt collides the fallback policy decides:
// accept-conflict places the section on the default block anyway, strict
// refuses with NO_CONFLICT_FREE_SLOT.
func (s *AllocatorService) synthesize(ctx context.Context, courseID, courseCode, termID string, accepted []models.Meeting) (*AllocationPlan, error) {
	instructor, err := s.pickInstructor(ctx, courseID, termID)
	if err != nil {
		return nil, err
	}
	roomID, err := s.pickRoom(ctx)
	if err != nil {
		return nil, err
	}

	ordinal, err := s.sections.CountByCourseAndTerm(ctx, courseID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count sections")
	}

	meetings, conflictAccepted, err := s.findSlot(accepted)
	if err != nil {
		return nil, err
	}

	section := &models.Section{
		CourseID:     courseID,
		TermID:       termID,
		Code:         fmt.Sprintf("%s-S%02d", courseCode, ordinal+1),
		InstructorID: instructor,
		RoomID:       roomID,
		Capacity:     s.cfg.SectionCapacity,
		Meetings:     meetings,
	}
	return &AllocationPlan{Section: section, Synthesized: true, ConflictAccepted: conflictAccepted}, nil
}

func (s *AllocatorService) findSlot(accepted []models.Meeting) ([]models.Meeting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < s.cfg.SlotAttempts; attempt++ {
		pair := allowedDayPairs[s.rng.Intn(len(allowedDayPairs))]
		start := allowedStartMinutes[s.rng.Intn(len(allowedStartMinutes))]
		meetings := meetingsFor(pair, start)
		if !ConflictsWithAny(meetings, accepted) {
			return meetings, false, nil
		}
	}

	if s.cfg.SlotFallbackPolicy == config.SlotFallbackStrict {
		return nil, false, appErrors.Clone(appErrors.ErrNoConflictFreeSlot, "")
	}
	return meetingsFor(defaultBlock.Pair, defaultBlock.Start), true, nil
}

func (s *AllocatorService) pickInstructor(ctx context.Context, courseID, termID string) (string, error) {
	assigned, err := s.faculty.ListAssignedToCourse(ctx, courseID, termID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course faculty")
	}
	if len(assigned) > 0 {
		return assigned[0].ID, nil
	}

	available, err := s.faculty.ListActive(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if len(available) == 0 {
		return "", appErrors.Clone(appErrors.ErrConsistency, "no active faculty available for section synthesis")
	}

	s.mu.Lock()
	instructor := available[s.facultyIdx%len(available)]
	s.facultyIdx++
	s.mu.Unlock()
	return instructor.ID, nil
}

func (s *AllocatorService) pickRoom(ctx context.Context) (*string, error) {
	rooms, err := s.faculty.ListRooms(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}
	if len(rooms) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	room := rooms[s.roomIdx%len(rooms)]
	s.roomIdx++
	s.mu.Unlock()
	return &room.ID, nil
}

package service

import (
	"fmt"

	"github.com/campushq/enrollment-api/internal/models"
)

// MeetingsOverlap reports whether two weekly blocks collide: same day and
// start1 < end2 && start2 < end1.
func MeetingsOverlap(a, b models.Meeting) bool {
	if a.DayOfWeek != b.DayOfWeek {
		return false
	}
	return a.StartMinute < b.EndMinute && b.StartMinute < a.EndMinute
}

// ConflictsWithAny reports whether any candidate meeting collides with any
// meeting already on the accepted schedule.
func ConflictsWithAny(candidate []models.Meeting, accepted []models.Meeting) bool {
	for _, c := range candidate {
		for _, a := range accepted {
			if MeetingsOverlap(c, a) {
				return true
			}
		}
	}
	return false
}

// meetingDuration is the fixed length of one weekly block.
const meetingDuration = 50

// dayPair is the two weekdays a synthesized section meets on.
type dayPair struct {
	First  int
	Second int
}

// Allowed (day-pair, start) combinations for synthesized sections. Starts
// are minutes from midnight, on the hour from 08:00 through 17:00.
var (
	allowedDayPairs = []dayPair{
		{1, 3}, // Mon/Wed
		{2, 4}, // Tue/Thu
		{3, 5}, // Wed/Fri
		{1, 4}, // Mon/Thu
		{2, 5}, // Tue/Fri
	}
	allowedStartMinutes = []int{
		8 * 60, 9 * 60, 10 * 60, 11 * 60, 12 * 60,
		13 * 60, 14 * 60, 15 * 60, 16 * 60, 17 * 60,
	}
)

// defaultBlock is the fallback when no randomized attempt finds a free slot.
var defaultBlock = struct {
	Pair  dayPair
	Start int
}{Pair: dayPair{1, 3}, Start: 8 * 60}

// meetingsFor expands a (day-pair, start) combination into the two weekly
// blocks of a synthesized section.
func meetingsFor(pair dayPair, startMinute int) []models.Meeting {
	return []models.Meeting{
		{DayOfWeek: pair.First, StartMinute: startMinute, EndMinute: startMinute + meetingDuration},
		{DayOfWeek: pair.Second, StartMinute: startMinute, EndMinute: startMinute + meetingDuration},
	}
}

// FormatMinute renders minutes-from-midnight as HH:MM for schedules and
// exports.
func FormatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

var dayNames = map[int]string{
	1: "Monday",
	2: "Tuesday",
	3: "Wednesday",
	4: "Thursday",
	5: "Friday",
	6: "Saturday",
	7: "Sunday",
}

// DayName returns the weekday label for a 1-based day index.
func DayName(day int) string {
	if name, ok := dayNames[day]; ok {
		return name
	}
	return "Unknown"
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campushq/enrollment-api/internal/models"
)

func TestMeetingsOverlap(t *testing.T) {
	a := models.Meeting{DayOfWeek: 1, StartMinute: 9 * 60, EndMinute: 9*60 + 50}

	// Same day, overlapping window.
	assert.True(t, MeetingsOverlap(a, models.Meeting{DayOfWeek: 1, StartMinute: 9*60 + 30, EndMinute: 10*60 + 20}))

	// Back to back blocks do not conflict.
	assert.False(t, MeetingsOverlap(a, models.Meeting{DayOfWeek: 1, StartMinute: 9*60 + 50, EndMinute: 10*60 + 40}))

	// Same window on a different day.
	assert.False(t, MeetingsOverlap(a, models.Meeting{DayOfWeek: 2, StartMinute: 9 * 60, EndMinute: 9*60 + 50}))

	// Containment.
	assert.True(t, MeetingsOverlap(a, models.Meeting{DayOfWeek: 1, StartMinute: 8 * 60, EndMinute: 11 * 60}))
}

func TestConflictsWithAny(t *testing.T) {
	accepted := []models.Meeting{
		{DayOfWeek: 1, StartMinute: 8 * 60, EndMinute: 8*60 + 50},
		{DayOfWeek: 3, StartMinute: 8 * 60, EndMinute: 8*60 + 50},
	}

	candidate := meetingsFor(dayPair{1, 3}, 8*60)
	assert.True(t, ConflictsWithAny(candidate, accepted))

	free := meetingsFor(dayPair{2, 4}, 8*60)
	assert.False(t, ConflictsWithAny(free, accepted))

	assert.False(t, ConflictsWithAny(nil, accepted))
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "08:00", FormatMinute(8*60))
	assert.Equal(t, "13:05", FormatMinute(13*60+5))
}

func TestMeetingsForDuration(t *testing.T) {
	meetings := meetingsFor(dayPair{2, 5}, 10*60)
	assert.Len(t, meetings, 2)
	for _, m := range meetings {
		assert.Equal(t, 50, m.EndMinute-m.StartMinute)
	}
	assert.Equal(t, 2, meetings[0].DayOfWeek)
	assert.Equal(t, 5, meetings[1].DayOfWeek)
}

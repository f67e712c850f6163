package quiz_test

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quazian/internal/quiz"
)

func montreal(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Montreal")
	require.NoError(t, err)
	return loc
}

func TestCurrentWeekSlot(t *testing.T) {
	loc := montreal(t)
	cases := []struct {
		name string
		at   time.Time
		want quiz.WeekSlot
	}{
		{"monday", time.Date(2026, 2, 9, 8, 0, 0, 0, loc), quiz.WeekSlot{WeekKey: "2026-W07", Slot: quiz.SlotA}},
		{"wednesday night", time.Date(2026, 2, 11, 23, 59, 0, 0, loc), quiz.WeekSlot{WeekKey: "2026-W07", Slot: quiz.SlotA}},
		{"thursday", time.Date(2026, 2, 12, 0, 0, 0, 0, loc), quiz.WeekSlot{WeekKey: "2026-W07", Slot: quiz.SlotB}},
		{"sunday", time.Date(2026, 2, 15, 12, 0, 0, 0, loc), quiz.WeekSlot{WeekKey: "2026-W07", Slot: quiz.SlotB}},
		// Monday 03:00 UTC is still Sunday evening in Montreal
		{"zone applied", time.Date(2026, 2, 16, 3, 0, 0, 0, time.UTC), quiz.WeekSlot{WeekKey: "2026-W07", Slot: quiz.SlotB}},
		{"iso year before", time.Date(2021, 1, 1, 12, 0, 0, 0, loc), quiz.WeekSlot{WeekKey: "2020-W53", Slot: quiz.SlotB}},
		{"iso year after", time.Date(2024, 12, 30, 12, 0, 0, 0, loc), quiz.WeekSlot{WeekKey: "2025-W01", Slot: quiz.SlotA}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, quiz.CurrentWeekSlot(tc.at, loc))
		})
	}
}

func TestPreviousSlotStart(t *testing.T) {
	loc := montreal(t)

	thu := time.Date(2026, 2, 12, 10, 0, 0, 0, loc)
	assert.True(t, time.Date(2026, 2, 9, 10, 0, 0, 0, loc).Equal(quiz.PreviousSlotStart(thu, quiz.SlotB, loc)))

	sat := time.Date(2026, 2, 14, 10, 0, 0, 0, loc)
	assert.True(t, time.Date(2026, 2, 9, 10, 0, 0, 0, loc).Equal(quiz.PreviousSlotStart(sat, quiz.SlotB, loc)))

	wed := time.Date(2026, 2, 11, 10, 0, 0, 0, loc)
	assert.True(t, time.Date(2026, 2, 5, 10, 0, 0, 0, loc).Equal(quiz.PreviousSlotStart(wed, quiz.SlotA, loc)))
}

func TestWeekStart(t *testing.T) {
	got, err := quiz.WeekStart("2026-W07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC), got)

	got, err = quiz.WeekStart("2020-W53")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 12, 28, 0, 0, 0, 0, time.UTC), got)

	_, err = quiz.WeekStart("2026-7")
	assert.Error(t, err)
}

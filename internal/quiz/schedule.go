package quiz

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const day = 24 * time.Hour

// WeekSlot identifies one quiz window.
type WeekSlot struct {
	WeekKey string `json:"weekKey"`
	Slot    Slot   `json:"slot"`
}

// isoWeekday returns 1 for Monday through 7 for Sunday.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// WeekKey formats the ISO 8601 week of t's calendar date in loc, e.g. "2026-W07".
func WeekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// CurrentWeekSlot maps a wall-clock instant to its week key and slot in loc.
func CurrentWeekSlot(now time.Time, loc *time.Location) WeekSlot {
	slot := SlotA
	if isoWeekday(now.In(loc)) > 3 {
		slot = SlotB
	}
	return WeekSlot{WeekKey: WeekKey(now, loc), Slot: slot}
}

// slotStart walks back from t to the first weekday of slot, keeping the time
// of day.
func slotStart(t time.Time, slot Slot, loc *time.Location) time.Time {
	wd := isoWeekday(t.In(loc))
	delta := wd - 1
	if slot == SlotB {
		delta = wd - 4
	}
	return t.Add(-time.Duration(delta) * day)
}

// PreviousSlotStart returns the start of the slot preceding slot, relative to
// now: Monday for B, the previous Thursday for A.
func PreviousSlotStart(now time.Time, slot Slot, loc *time.Location) time.Time {
	if slot == SlotB {
		return slotStart(now, SlotB, loc).Add(-3 * day)
	}
	return slotStart(now, SlotA, loc).Add(-4 * day)
}

var weekKeyRe = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// WeekStart returns Monday 00:00 UTC of the ISO week named by key.
func WeekStart(key string) (time.Time, error) {
	m := weekKeyRe.FindStringSubmatch(key)
	if m == nil {
		return time.Time{}, fmt.Errorf("invalid ISO week key: %s", key)
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday1 := jan4.AddDate(0, 0, -(isoWeekday(jan4) - 1))
	return monday1.AddDate(0, 0, (week-1)*7), nil
}

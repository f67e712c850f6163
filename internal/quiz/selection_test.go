package quiz_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/quazian/internal/quiz"
)

var selNow = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)

func m(v float64) *float64 { return &v }

func ids(cs []quiz.Concept) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestSelectConceptsPriority(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pool := []quiz.Concept{
		{ID: "old", Subject: "MATH", DateSeen: old, AvgMastery: m(0.95)},
		{ID: "feb7", Subject: "MATH", DateSeen: time.Date(2026, 2, 7, 0, 0, 0, 0, time.UTC), AvgMastery: m(0.95)},
		{ID: "feb10", Subject: "MATH", DateSeen: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), AvgMastery: m(0.95)},
		{ID: "unknown", Subject: "MATH", DateSeen: old},
		{ID: "fragile", Subject: "MATH", DateSeen: old, AvgMastery: m(0.6)},
	}

	boundary := time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"feb10", "fragile", "unknown", "old", "feb7"}, ids(quiz.SelectConcepts(pool, selNow, boundary)))

	// without a boundary the cutoff is a week back
	assert.Equal(t, []string{"feb7", "feb10", "fragile", "unknown", "old"}, ids(quiz.SelectConcepts(pool, selNow, time.Time{})))
}

func TestSelectConceptsCapsAtTen(t *testing.T) {
	var pool []quiz.Concept
	for i := 0; i < 15; i++ {
		pool = append(pool, quiz.Concept{ID: fmt.Sprintf("c%02d", i), Subject: "MATH", DateSeen: selNow.Add(-30 * 24 * time.Hour)})
	}
	pool[14].DateSeen = selNow

	got := quiz.SelectConcepts(pool, selNow, time.Time{})
	assert.Len(t, got, quiz.MaxConcepts)
	assert.Equal(t, "c14", got[0].ID)
	assert.Equal(t, "c00", got[1].ID)
}

func TestSelectConceptsForcesSubjects(t *testing.T) {
	var pool []quiz.Concept
	for i := 0; i < 10; i++ {
		pool = append(pool, quiz.Concept{ID: fmt.Sprintf("m%d", i), Subject: "MATH", DateSeen: selNow})
	}
	old := selNow.AddDate(0, -2, 0)
	pool = append(pool,
		quiz.Concept{ID: "philo", Subject: "PHILO", DateSeen: old, AvgMastery: m(0.95)},
		quiz.Concept{ID: "hlp", Subject: "HLP", DateSeen: old, AvgMastery: m(0.95)},
	)

	got := quiz.SelectConcepts(pool, selNow, time.Time{})
	assert.Len(t, got, quiz.MaxConcepts)
	assert.Equal(t, []string{"philo", "hlp", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9"}, ids(got))
}

func TestSelectConceptsHLPDoesNotEvictForcedPhilo(t *testing.T) {
	var pool []quiz.Concept
	for i := 0; i < 9; i++ {
		pool = append(pool, quiz.Concept{ID: fmt.Sprintf("m%d", i), Subject: "MATH", DateSeen: selNow})
	}
	old := selNow.AddDate(0, -2, 0)
	// philo fills the tenth slot on its own; hlp must then replace a MATH pick
	pool = append(pool,
		quiz.Concept{ID: "philo", Subject: "PHILO", DateSeen: old, AvgMastery: m(0.95)},
		quiz.Concept{ID: "hlp", Subject: "HLP", DateSeen: old, AvgMastery: m(0.95)},
	)

	got := ids(quiz.SelectConcepts(pool, selNow, time.Time{}))
	assert.Len(t, got, quiz.MaxConcepts)
	assert.Contains(t, got, "philo")
	assert.Contains(t, got, "hlp")
	assert.NotContains(t, got, "m0")
}

func TestSelectConceptsFillerKeepsPoolOrder(t *testing.T) {
	old := selNow.AddDate(0, -2, 0)
	pool := []quiz.Concept{
		{ID: "a", Subject: "MATH", DateSeen: selNow},
		{ID: "b", Subject: "MATH", DateSeen: selNow},
		{ID: "c", Subject: "MATH", DateSeen: selNow},
		{ID: "d", Subject: "HLP", DateSeen: old, AvgMastery: m(0.99)},
	}
	got := quiz.SelectConcepts(pool, selNow, time.Time{})
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
}

func TestSelectConceptsSparsePool(t *testing.T) {
	pool := []quiz.Concept{
		{ID: "x", Subject: "MATH"},
		{ID: "y", Subject: "MATH"},
		{ID: "z", Subject: "MATH"},
	}
	assert.Equal(t, []string{"x", "y", "z"}, ids(quiz.SelectConcepts(pool, selNow, time.Time{})))
	assert.Empty(t, quiz.SelectConcepts(nil, selNow, time.Time{}))
}

package quiz

import "time"

const (
	MinConcepts = 4
	MaxConcepts = 10

	// RecentSignatureQuizzes is how many of a class's previous quizzes are
	// checked for repeated option arrangements.
	RecentSignatureQuizzes = 4
	// MaxOptionAttempts bounds the salts tried per concept.
	MaxOptionAttempts = 10
)

// Subjects every quiz should cover when the pool has them.
var RequiredSubjects = []string{"PHILO", "HLP"}

// SelectConcepts picks the concepts for the next quiz: new material first,
// then fragile and unmastered concepts, then the rest of the pool, capped at
// MaxConcepts and forced to include each of RequiredSubjects present in the
// pool. lastSlotBoundary may be zero.
func SelectConcepts(pool []Concept, now, lastSlotBoundary time.Time) []Concept {
	cutoff := now.Add(-7 * day)
	if !lastSlotBoundary.IsZero() && lastSlotBoundary.After(cutoff) {
		cutoff = lastSlotBoundary
	}

	picked := make([]Concept, 0, MaxConcepts)
	seen := make(map[string]bool, len(pool))
	take := func(keep func(Concept) bool) {
		for _, c := range pool {
			if len(picked) >= MaxConcepts {
				return
			}
			if seen[c.ID] || !keep(c) {
				continue
			}
			seen[c.ID] = true
			picked = append(picked, c)
		}
	}

	take(func(c Concept) bool { return !c.DateSeen.Before(cutoff) })
	take(func(c Concept) bool {
		return c.AvgMastery != nil && *c.AvgMastery >= 0.5 && *c.AvgMastery < 0.85
	})
	take(func(c Concept) bool { return c.AvgMastery == nil || *c.AvgMastery < 0.8 })
	take(func(Concept) bool { return true })

	forced := map[string]bool{}
	for _, subject := range RequiredSubjects {
		picked = ensureSubject(picked, pool, subject, forced)
		forced[subject] = true
	}

	if len(picked) < MinConcepts {
		n := MinConcepts
		if len(pool) < n {
			n = len(pool)
		}
		return append([]Concept(nil), pool[:n]...)
	}
	return picked
}

func ensureSubject(selected, pool []Concept, subject string, forced map[string]bool) []Concept {
	for _, c := range selected {
		if c.Subject == subject {
			return selected
		}
	}
	var candidate *Concept
	for i := range pool {
		if pool[i].Subject == subject {
			candidate = &pool[i]
			break
		}
	}
	if candidate == nil {
		return selected
	}
	if len(selected) < MaxConcepts {
		return append(selected, *candidate)
	}

	counts := map[string]int{}
	for _, c := range selected {
		counts[c.Subject]++
	}
	for i, c := range selected {
		if c.Subject == subject {
			continue
		}
		// keep the only representative of a subject forced earlier
		if forced[c.Subject] && counts[c.Subject] == 1 {
			continue
		}
		selected[i] = *candidate
		return selected
	}
	return selected
}

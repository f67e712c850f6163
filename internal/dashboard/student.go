// Package dashboard aggregates grades and mastery for the student and
// professor views.
package dashboard

import (
	"sort"
	"time"
)

// StudentMasteryThreshold splits a student's concepts into mastered and to
// work on.
const StudentMasteryThreshold = 0.7

// HistoryLimit is how many recent attempts the student sees.
const HistoryLimit = 8

type ConceptSort string

const (
	SortSubject     ConceptSort = "subject"
	SortTitle       ConceptSort = "title"
	SortMasteryDesc ConceptSort = "p_mastery_desc"
	SortMasteryAsc  ConceptSort = "p_mastery_asc"
)

type ConceptFilter string

const (
	FilterAll      ConceptFilter = "all"
	FilterMastered ConceptFilter = "mastered"
	FilterToWorkOn ConceptFilter = "to_work_on"
)

// NormalizeSort maps unknown values to SortSubject.
func NormalizeSort(v string) ConceptSort {
	switch s := ConceptSort(v); s {
	case SortTitle, SortMasteryDesc, SortMasteryAsc:
		return s
	}
	return SortSubject
}

// NormalizeFilter maps unknown values to FilterAll.
func NormalizeFilter(v string) ConceptFilter {
	switch f := ConceptFilter(v); f {
	case FilterMastered, FilterToWorkOn:
		return f
	}
	return FilterAll
}

type MasteryConcept struct {
	ID       string  `json:"id"`
	Subject  string  `json:"subject"`
	Title    string  `json:"title"`
	PMastery float64 `json:"pMastery"`
}

type ConceptGroup struct {
	Subject  string           `json:"subject"`
	Concepts []MasteryConcept `json:"concepts"`
}

type ConceptLists struct {
	Mastered []ConceptGroup `json:"mastered"`
	ToWorkOn []ConceptGroup `json:"toWorkOn"`
}

func sortConcepts(in []MasteryConcept, by ConceptSort) []MasteryConcept {
	out := append([]MasteryConcept(nil), in...)
	bySubjectTitle := func(a, b MasteryConcept) bool {
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Title < b.Title
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch by {
		case SortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return a.Subject < b.Subject
		case SortMasteryDesc:
			if a.PMastery != b.PMastery {
				return a.PMastery > b.PMastery
			}
		case SortMasteryAsc:
			if a.PMastery != b.PMastery {
				return a.PMastery < b.PMastery
			}
		}
		return bySubjectTitle(a, b)
	})
	return out
}

// groupBySubject keeps the incoming order inside each group and orders the
// groups by subject.
func groupBySubject(in []MasteryConcept) []ConceptGroup {
	groups := []ConceptGroup{}
	index := map[string]int{}
	for _, c := range in {
		i, ok := index[c.Subject]
		if !ok {
			i = len(groups)
			index[c.Subject] = i
			groups = append(groups, ConceptGroup{Subject: c.Subject})
		}
		groups[i].Concepts = append(groups[i].Concepts, c)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Subject < groups[j].Subject })
	return groups
}

// BuildConceptLists sorts, splits at StudentMasteryThreshold and groups.
func BuildConceptLists(concepts []MasteryConcept, by ConceptSort, filter ConceptFilter) ConceptLists {
	var mastered, toWork []MasteryConcept
	for _, c := range sortConcepts(concepts, by) {
		if c.PMastery >= StudentMasteryThreshold {
			mastered = append(mastered, c)
		} else {
			toWork = append(toWork, c)
		}
	}
	out := ConceptLists{Mastered: []ConceptGroup{}, ToWorkOn: []ConceptGroup{}}
	if filter != FilterToWorkOn {
		out.Mastered = groupBySubject(mastered)
	}
	if filter != FilterMastered {
		out.ToWorkOn = groupBySubject(toWork)
	}
	return out
}

// AttemptSummary is one row of a student's history.
type AttemptSummary struct {
	CreatedAt time.Time `json:"createdAt"`
	WeekKey   string    `json:"weekKey"`
	Slot      string    `json:"slot"`
	Score     float64   `json:"score"`
	Z         float64   `json:"z"`
	NoteOn20  float64   `json:"noteOn20"`
}

// StudentStats is the grade summary shown to a student.
type StudentStats struct {
	FinalNoteOn20 *float64         `json:"finalNoteOn20"`
	ZMean         *float64         `json:"zMean"`
	Attempts      []AttemptSummary `json:"attempts"`
}

type StudentDashboard struct {
	Stats    StudentStats    `json:"stats"`
	Latest   *AttemptSummary `json:"latestAttempt"`
	Concepts ConceptLists    `json:"concepts"`
	Sort     ConceptSort     `json:"sort"`
	Filter   ConceptFilter   `json:"filter"`
}

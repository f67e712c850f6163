package dashboard

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mind-engage/quazian/internal/grading"
)

// ProfessorMasteryThreshold is the pMastery at which a professor counts a
// concept as mastered.
const ProfessorMasteryThreshold = 0.8

type StudentSort string

const (
	SortFinalNoteDesc   StudentSort = "finalNoteOn20_desc"
	SortZMeanDesc       StudentSort = "zMean_desc"
	SortLastAttemptDesc StudentSort = "lastAttempt_desc"
)

// NormalizeStudentSort maps unknown values to SortFinalNoteDesc.
func NormalizeStudentSort(v string) StudentSort {
	switch s := StudentSort(v); s {
	case SortZMeanDesc, SortLastAttemptDesc:
		return s
	}
	return SortFinalNoteDesc
}

// ResolveClass picks the dashboard class: the first class when none is
// requested, the requested one when the professor owns it. forbidden is set
// for a class owned by someone else.
func ResolveClass(classIDs []string, requested string) (classID string, forbidden bool) {
	if len(classIDs) == 0 {
		return "", false
	}
	if requested == "" {
		return classIDs[0], false
	}
	for _, id := range classIDs {
		if id == requested {
			return id, false
		}
	}
	return "", true
}

type ClassStudent struct {
	UserID string
	Name   string
	Email  string
}

type ClassAttempt struct {
	UserID          string
	QuizID          string
	NormalizedScore float64
	ZScore          *float64
	CreatedAt       time.Time
}

type ClassConcept struct {
	ID      string
	Subject string
	Title   string
}

// ClassData is everything the professor view aggregates for one class.
type ClassData struct {
	Students  []ClassStudent
	Attempts  []ClassAttempt
	Stats     map[string]grading.StudentMean // by user id
	Concepts  []ClassConcept
	Masteries map[string]map[string]float64 // user id -> concept id -> pMastery
}

type StudentRow struct {
	UserID                string     `json:"userId"`
	DisplayName           string     `json:"displayName"`
	Email                 string     `json:"email"`
	LastAttemptDate       *time.Time `json:"lastAttemptDate"`
	LastNormalizedScore   *float64   `json:"lastNormalizedScore"`
	LastZScore            *float64   `json:"lastZScore"`
	ZMean                 *float64   `json:"zMean"`
	FinalNoteOn20         *float64   `json:"finalNoteOn20"`
	MasteredCount         int        `json:"masteredCount"`
	TotalConceptsAssigned int        `json:"totalConceptsAssigned"`
	MasteryPercent        float64    `json:"masteryPercent"`
}

type ConceptRow struct {
	ID              string  `json:"id"`
	Subject         string  `json:"subject"`
	Title           string  `json:"title"`
	MasteredPercent float64 `json:"masteredPercent"`
	AvgPMastery     float64 `json:"avgPMastery"`
}

type ProfessorDashboard struct {
	ClassID               string       `json:"classId"`
	Sort                  StudentSort  `json:"sort"`
	StudentRows           []StudentRow `json:"studentRows"`
	ConceptRows           []ConceptRow `json:"conceptRows"`
	TotalConceptsAssigned int          `json:"totalConceptsAssigned"`
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func ptr(v float64) *float64 { return &v }

// attemptZ returns the stored z-score, or recomputes it against the other
// attempts on the same quiz.
func attemptZ(a ClassAttempt, byQuiz map[string][]float64) float64 {
	if a.ZScore != nil {
		return *a.ZScore
	}
	mean, std := grading.PopulationStats(byQuiz[a.QuizID])
	if std == 0 {
		return 0
	}
	return math.Round((a.NormalizedScore-mean)/std*1e6) / 1e6
}

// BuildProfessorDashboard computes per-student and per-concept rows.
func BuildProfessorDashboard(d ClassData, by StudentSort) ProfessorDashboard {
	total := len(d.Concepts)
	byQuiz := map[string][]float64{}
	byUser := map[string][]ClassAttempt{}
	for _, a := range d.Attempts {
		byQuiz[a.QuizID] = append(byQuiz[a.QuizID], a.NormalizedScore)
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}
	mastery := func(userID, conceptID string) float64 {
		return d.Masteries[userID][conceptID]
	}

	rows := make([]StudentRow, 0, len(d.Students))
	for _, s := range d.Students {
		attempts := append([]ClassAttempt(nil), byUser[s.UserID]...)
		sort.SliceStable(attempts, func(i, j int) bool { return attempts[i].CreatedAt.After(attempts[j].CreatedAt) })

		row := StudentRow{
			UserID:                s.UserID,
			DisplayName:           s.Name,
			Email:                 s.Email,
			TotalConceptsAssigned: total,
		}
		if strings.TrimSpace(s.Name) == "" {
			row.DisplayName = s.Email
		}
		if len(attempts) > 0 {
			last := attempts[0]
			at := last.CreatedAt
			row.LastAttemptDate = &at
			row.LastNormalizedScore = ptr(last.NormalizedScore)
			row.LastZScore = ptr(round2(attemptZ(last, byQuiz)))
		}

		if st, ok := d.Stats[s.UserID]; ok {
			row.ZMean = ptr(round2(st.ZMean))
			row.FinalNoteOn20 = ptr(round2(st.NoteOn20))
		} else if len(attempts) > 0 {
			var sum float64
			for _, a := range attempts {
				sum += attemptZ(a, byQuiz)
			}
			z := round2(sum / float64(len(attempts)))
			row.ZMean = ptr(z)
			row.FinalNoteOn20 = ptr(grading.ZMeanToNoteOn20(z))
		}

		for _, c := range d.Concepts {
			if mastery(s.UserID, c.ID) >= ProfessorMasteryThreshold {
				row.MasteredCount++
			}
		}
		if total > 0 {
			row.MasteryPercent = round2(float64(row.MasteredCount) / float64(total) * 100)
		}
		rows = append(rows, row)
	}

	key := func(r StudentRow) float64 {
		var p *float64
		switch by {
		case SortZMeanDesc:
			p = r.ZMean
		case SortLastAttemptDesc:
			if r.LastAttemptDate == nil {
				return math.Inf(-1)
			}
			return float64(r.LastAttemptDate.UnixMilli())
		default:
			p = r.FinalNoteOn20
		}
		if p == nil {
			return math.Inf(-1)
		}
		return *p
	}
	sort.SliceStable(rows, func(i, j int) bool { return key(rows[i]) > key(rows[j]) })

	concepts := make([]ConceptRow, 0, total)
	n := len(d.Students)
	for _, c := range d.Concepts {
		row := ConceptRow{ID: c.ID, Subject: c.Subject, Title: c.Title}
		var mastered int
		var sum float64
		for _, s := range d.Students {
			p := mastery(s.UserID, c.ID)
			sum += p
			if p >= ProfessorMasteryThreshold {
				mastered++
			}
		}
		if n > 0 {
			row.MasteredPercent = round2(float64(mastered) / float64(n) * 100)
			row.AvgPMastery = round2(sum / float64(n))
		}
		concepts = append(concepts, row)
	}
	sort.SliceStable(concepts, func(i, j int) bool {
		a, b := concepts[i], concepts[j]
		if a.MasteredPercent != b.MasteredPercent {
			return a.MasteredPercent < b.MasteredPercent
		}
		if a.AvgPMastery != b.AvgPMastery {
			return a.AvgPMastery < b.AvgPMastery
		}
		return a.Title < b.Title
	})

	return ProfessorDashboard{
		Sort:                  by,
		StudentRows:           rows,
		ConceptRows:           concepts,
		TotalConceptsAssigned: total,
	}
}

package http

import (
	"context"
	"net/http"
	"strings"

	auth "github.com/mind-engage/quazian/internal/auth/middleware"
	"github.com/mind-engage/quazian/internal/dashboard"
)

type Dashboards interface {
	StudentStats(ctx context.Context, userID string) (dashboard.StudentStats, error)
	StudentDashboard(ctx context.Context, userID string, by dashboard.ConceptSort, filter dashboard.ConceptFilter) (dashboard.StudentDashboard, error)
	ProfessorDashboard(ctx context.Context, profID, classID string, by dashboard.StudentSort) (dashboard.ProfessorDashboard, error)
}

// GET /api/student/stats
func StudentStatsHandler(d Dashboards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := d.StudentStats(r.Context(), auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, stats)
	}
}

// GET /api/student/dashboard?sort=&filter=
func StudentDashboardHandler(d Dashboards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := d.StudentDashboard(r.Context(), auth.SubjectFromContext(r.Context()),
			dashboard.NormalizeSort(q.Get("sort")), dashboard.NormalizeFilter(q.Get("filter")))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

// GET /api/prof/dashboard?classId=&sort=
func ProfessorDashboardHandler(d Dashboards) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := d.ProfessorDashboard(r.Context(), auth.SubjectFromContext(r.Context()),
			strings.TrimSpace(q.Get("classId")), dashboard.NormalizeStudentSort(q.Get("sort")))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, out)
	}
}

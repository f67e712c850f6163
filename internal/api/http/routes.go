package http

import (
	"database/sql"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	auth "github.com/mind-engage/quazian/internal/auth/middleware"
	"github.com/mind-engage/quazian/internal/platform/logger"
	"github.com/mind-engage/quazian/internal/quiz"
	"github.com/mind-engage/quazian/internal/rbac"
	"github.com/mind-engage/quazian/internal/roster"
)

// Deps are the services the API routes are built from.
type Deps struct {
	DB   *sql.DB // when set, every session is checked against the users table
	Auth *auth.AuthService

	Users       auth.UserFinder
	Quizzes     WeekQuizStore
	CurrentSlot func() quiz.WeekSlot
	Submitter   Submitter
	Generator   BatchGenerator
	CronSecret  string
	Concepts    ConceptStore
	Students    StudentStore
	Roster      RosterService
	Dashboards  Dashboards
	Log         *logger.Logger
}

// Mount registers the /api routes on r.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}

	// Public
	r.Post("/api/prof/login", auth.LoginHandler(d.Auth, d.Users, roster.RoleProf))
	r.Post("/api/student/login", auth.LoginHandler(d.Auth, d.Users, roster.RoleStudent))
	r.Post("/api/logout", auth.LogoutHandler(d.Auth))
	r.Get("/api/invite/{token}", GetInvitationHandler(d.Students))
	r.Post("/api/invite/{token}", AcceptInvitationHandler(d.Roster))

	// Cron (shared secret); generation of a whole slot can take a while
	r.With(middleware.Timeout(2*time.Minute)).
		Post("/api/internal/generate-quizzes", GenerateQuizzesHandler(d.Generator, d.CronSecret, d.Log))

	// Session → role → RBAC
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))
		if d.DB != nil {
			pr.Use(auth.AttachRoleFromDB(d.DB))
		}

		// Professor
		pr.With(rbac.Require(rbac.PermConceptManage)).Get("/api/prof/concepts", ListConceptsHandler(d.Concepts))
		pr.With(rbac.Require(rbac.PermConceptManage)).Post("/api/prof/concepts", CreateConceptHandler(d.Concepts))
		pr.With(rbac.Require(rbac.PermConceptManage)).Put("/api/prof/concepts/{conceptID}", UpdateConceptHandler(d.Concepts))
		pr.With(rbac.Require(rbac.PermConceptManage)).Delete("/api/prof/concepts/{conceptID}", DeleteConceptHandler(d.Concepts))

		pr.With(rbac.Require(rbac.PermRosterManage)).Get("/api/prof/students", ListStudentsHandler(d.Students))
		pr.With(rbac.Require(rbac.PermRosterManage)).Post("/api/prof/students/import", ImportStudentsHandler(d.Roster))
		pr.With(rbac.Require(rbac.PermRosterManage)).Post("/api/prof/students/{studentID}/resend", ResendInvitationHandler(d.Students))

		pr.With(rbac.Require(rbac.PermDashboardClass)).Get("/api/prof/dashboard", ProfessorDashboardHandler(d.Dashboards))

		// Student
		pr.With(rbac.Require(rbac.PermQuizTake)).Get("/api/quiz/week", WeekQuizHandler(d.Quizzes, d.CurrentSlot))
		pr.With(rbac.Require(rbac.PermQuizTake)).Post("/api/quiz/submit", SubmitQuizHandler(d.Submitter))
		pr.With(rbac.Require(rbac.PermStatsViewOwn)).Get("/api/student/stats", StudentStatsHandler(d.Dashboards))
		pr.With(rbac.Require(rbac.PermDashboardOwn)).Get("/api/student/dashboard", StudentDashboardHandler(d.Dashboards))
	})
}

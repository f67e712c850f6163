package roster_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quazian/internal/db"
	"github.com/mind-engage/quazian/internal/roster"
	"github.com/mind-engage/quazian/internal/storage"
)

var rosterNow = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := db.Open(context.Background(), db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func countRows(t *testing.T, sqlDB *sql.DB, q string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, sqlDB.QueryRow(q, args...).Scan(&n))
	return n
}

type fixture struct {
	db    *sql.DB
	store *roster.SQLStore
	svc   *roster.Service
	prof  roster.User
	blobs *storage.FSStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sqlDB := openTestDB(t)
	st := roster.NewSQLStore(sqlDB, nil).WithClock(func() time.Time { return rosterNow })
	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	svc := roster.NewService(st, blobs, nil)
	prof, err := svc.AddProfessor(context.Background(), "Prof@Example.com", "correct horse")
	require.NoError(t, err)
	return &fixture{db: sqlDB, store: st, svc: svc, prof: prof, blobs: blobs}
}

func (f *fixture) importCSV(t *testing.T, profID, body string) roster.ImportSummary {
	t.Helper()
	sum, err := f.svc.ImportStudents(context.Background(), profID, strings.NewReader(body))
	require.NoError(t, err)
	return sum
}

func tokenOf(link string) string { return strings.TrimPrefix(link, "/invite/") }

func TestAddProfessor(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "prof@example.com", f.prof.Email)
	assert.Equal(t, roster.RoleProf, f.prof.Role)

	u, err := f.store.UserByEmail(context.Background(), " PROF@example.com ")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))

	_, err = f.svc.AddProfessor(context.Background(), "prof@example.com", "another pass")
	assert.ErrorIs(t, err, roster.ErrEmailTaken)
	_, err = f.svc.AddProfessor(context.Background(), "x@example.com", "short")
	assert.ErrorIs(t, err, roster.ErrWeakPassword)
	_, err = f.svc.AddProfessor(context.Background(), "nope", "long enough")
	assert.Error(t, err)
}

func TestImportStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sum := f.importCSV(t, f.prof.ID, "name,class,email\nAna,Group A,ana@example.com\nBob,Group B,bob@example.com\nBad,Group A,bad\n")
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, 0, sum.Updated)
	require.Len(t, sum.Invitations, 2)
	assert.Equal(t, "ana@example.com", sum.Invitations[0].Email)
	assert.True(t, strings.HasPrefix(sum.Invitations[0].Link, "/invite/"))
	assert.Len(t, tokenOf(sum.Invitations[0].Link), 64)
	assert.Equal(t, []roster.InvalidRow{{Line: 4, Email: "bad", Reason: roster.ReasonInvalidEmail}}, sum.InvalidRows)
	assert.Equal(t, storage.RosterKey(f.prof.ID, rosterNow), sum.ArchiveKey)

	classes, err := f.store.ListClasses(ctx, f.prof.ID)
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "Group A", classes[0].Name)

	students, err := f.store.ListStudents(ctx, f.prof.ID, "")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ana", students[0].Name)
	assert.Equal(t, "invited", students[0].Status)
	require.NotNil(t, students[0].InvitationLink)
	assert.Equal(t, sum.Invitations[0].Link, *students[0].InvitationLink)

	// re-import moves Ana and leaves Bob alone
	sum = f.importCSV(t, f.prof.ID, "name,class,email\nAna Maria,Group B,ana@example.com\n")
	assert.Equal(t, 0, sum.Created)
	assert.Equal(t, 1, sum.Updated)
	assert.Empty(t, sum.Invitations)

	onlyB, err := f.store.ListStudents(ctx, f.prof.ID, classes[1].ID)
	require.NoError(t, err)
	require.Len(t, onlyB, 2)
	assert.Equal(t, "Ana Maria", onlyB[0].Name)
	assert.Equal(t, 2, countRows(t, f.db, `SELECT COUNT(*) FROM event_log WHERE typ=$1`, roster.EventRosterImported))
}

func TestImportStudentsRejectsOtherProfessorsEmails(t *testing.T) {
	f := newFixture(t)
	other, err := f.svc.AddProfessor(context.Background(), "other@example.com", "password123")
	require.NoError(t, err)
	f.importCSV(t, other.ID, "name,class,email\nAna,Other,ana@example.com\n")

	sum := f.importCSV(t, f.prof.ID, "name,class,email\nAna,Mine,ana@example.com\nOther,Mine,other@example.com\n")
	assert.Equal(t, 0, sum.Created)
	assert.Equal(t, []roster.InvalidRow{
		{Line: 2, Email: "ana@example.com", Reason: roster.ReasonEmailTaken},
		{Line: 3, Email: "other@example.com", Reason: roster.ReasonEmailTaken},
	}, sum.InvalidRows)

	classes, err := f.store.ListClasses(context.Background(), f.prof.ID)
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestImportStudentsMissingColumn(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ImportStudents(context.Background(), f.prof.ID, strings.NewReader("name,email\n"))
	assert.ErrorIs(t, err, roster.ErrMissingColumn)
}

func TestInvitationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sum := f.importCSV(t, f.prof.ID, "name,class,email\nAna,Group A,ana@example.com\n")
	first := tokenOf(sum.Invitations[0].Link)

	inv, err := f.store.LookupInvitation(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", inv.Email)
	assert.Equal(t, "Ana", inv.Name)
	assert.Equal(t, rosterNow.Add(roster.InvitationTTL), inv.ExpiresAt)

	students, err := f.store.ListStudents(ctx, f.prof.ID, "")
	require.NoError(t, err)
	studentID := students[0].ID

	link, err := f.store.RegenerateInvitation(ctx, f.prof.ID, studentID)
	require.NoError(t, err)
	second := tokenOf(link)
	assert.NotEqual(t, first, second)
	_, err = f.store.LookupInvitation(ctx, first)
	assert.ErrorIs(t, err, roster.ErrInvalidInvitation)

	_, err = f.store.RegenerateInvitation(ctx, "someone-else", studentID)
	assert.ErrorIs(t, err, roster.ErrNotFound)

	_, err = f.svc.AcceptInvitation(ctx, second, "short")
	assert.ErrorIs(t, err, roster.ErrWeakPassword)

	_, err = f.svc.AcceptInvitation(ctx, second, "long enough")
	require.NoError(t, err)
	u, err := f.store.UserByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, roster.StatusActive, u.Status)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("long enough")))

	_, err = f.svc.AcceptInvitation(ctx, second, "long enough")
	assert.ErrorIs(t, err, roster.ErrInvalidInvitation)

	// active students cannot be re-invited
	_, err = f.store.RegenerateInvitation(ctx, f.prof.ID, studentID)
	assert.ErrorIs(t, err, roster.ErrNotFound)

	students, err = f.store.ListStudents(ctx, f.prof.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "activated", students[0].Status)
	assert.Nil(t, students[0].InvitationLink)
}

func TestInvitationExpires(t *testing.T) {
	f := newFixture(t)
	sum := f.importCSV(t, f.prof.ID, "name,class,email\nAna,Group A,ana@example.com\n")
	token := tokenOf(sum.Invitations[0].Link)

	later := f.store.WithClock(func() time.Time { return rosterNow.Add(roster.InvitationTTL) })
	_, err := later.LookupInvitation(context.Background(), token)
	assert.ErrorIs(t, err, roster.ErrInvalidInvitation)
	_, err = later.AcceptInvitation(context.Background(), token, "hash")
	assert.ErrorIs(t, err, roster.ErrInvalidInvitation)

	_, err = f.store.LookupInvitation(context.Background(), "unknown")
	assert.ErrorIs(t, err, roster.ErrInvalidInvitation)
}

func TestConceptCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importCSV(t, f.prof.ID, "name,class,email\nAna,Group A,ana@example.com\nBob,Group B,bob@example.com\n")
	classes, err := f.store.ListClasses(ctx, f.prof.ID)
	require.NoError(t, err)
	a, b := classes[0].ID, classes[1].ID

	mk := func(title, subject, date string, classIDs ...string) roster.ConceptInput {
		in, err := roster.ValidateConcept(roster.ConceptPayload{
			ClassIDs: classIDs, Subject: subject, Title: title, CorrectAnswer: "r",
			Distractors: nineDistractors(), DateSeen: date,
		})
		require.NoError(t, err)
		return in
	}

	older, err := f.store.CreateConcept(ctx, f.prof.ID, mk("Derivatives", "MATH", "2026-02-01", a))
	require.NoError(t, err)
	newer, err := f.store.CreateConcept(ctx, f.prof.ID, mk("Kant", "PHILO", "2026-02-08", a, b))
	require.NoError(t, err)

	all, err := f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer, all[0].ID)
	assert.Len(t, all[0].Classes, 2)
	assert.Equal(t, nineDistractors(), all[0].Distractors)

	asc, err := f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{Sort: roster.SortDateSeenAsc})
	require.NoError(t, err)
	assert.Equal(t, older, asc[0].ID)

	byClass, err := f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{ClassID: b})
	require.NoError(t, err)
	require.Len(t, byClass, 1)
	assert.Equal(t, newer, byClass[0].ID)

	search, err := f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{Search: "deriv", Subject: "MATH"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, older, search[0].ID)

	recent, err := f.store.MostRecentClass(ctx, f.prof.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{a, b}, recent)

	require.NoError(t, f.store.UpdateConcept(ctx, f.prof.ID, older, mk("Derivatives II", "MATH", "2026-02-02", b)))
	byClass, err = f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{ClassID: b})
	require.NoError(t, err)
	assert.Len(t, byClass, 2)

	other, err := f.svc.AddProfessor(ctx, "other@example.com", "password123")
	require.NoError(t, err)
	_, err = f.store.CreateConcept(ctx, other.ID, mk("x", "MATH", "2026-02-02", a))
	assert.ErrorIs(t, err, roster.ErrForbiddenClass)
	assert.ErrorIs(t, f.store.UpdateConcept(ctx, f.prof.ID, "missing", mk("x", "MATH", "2026-02-02", a)), roster.ErrNotFound)
	assert.ErrorIs(t, f.store.DeleteConcept(ctx, other.ID, older), roster.ErrNotFound)

	require.NoError(t, f.store.DeleteConcept(ctx, f.prof.ID, older))
	all, err = f.store.ListConcepts(ctx, f.prof.ID, roster.ConceptFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 2, countRows(t, f.db, `SELECT COUNT(*) FROM class_concepts`))
}

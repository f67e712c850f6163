package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/quazian/internal/auth/middleware"
	"github.com/mind-engage/quazian/internal/platform/apierr"
	"github.com/mind-engage/quazian/internal/roster"
)

type ConceptStore interface {
	ListClasses(ctx context.Context, profID string) ([]roster.Class, error)
	MostRecentClass(ctx context.Context, profID string) (string, error)
	ListConcepts(ctx context.Context, profID string, f roster.ConceptFilter) ([]roster.ConceptRecord, error)
	CreateConcept(ctx context.Context, profID string, in roster.ConceptInput) (string, error)
	UpdateConcept(ctx context.Context, profID, conceptID string, in roster.ConceptInput) error
	DeleteConcept(ctx context.Context, profID, conceptID string) error
}

type StudentStore interface {
	ListClasses(ctx context.Context, profID string) ([]roster.Class, error)
	ListStudents(ctx context.Context, profID, classID string) ([]roster.StudentRow, error)
	RegenerateInvitation(ctx context.Context, profID, studentID string) (string, error)
	LookupInvitation(ctx context.Context, token string) (roster.Invitation, error)
}

type RosterService interface {
	ImportStudents(ctx context.Context, profID string, r io.Reader) (roster.ImportSummary, error)
	AcceptInvitation(ctx context.Context, token, password string) (roster.Invitation, error)
}

/* ---- concepts ---- */

// GET /api/prof/concepts?search=&classId=&subject=&sort=dateSeenAsc|dateSeenDesc
func ListConceptsHandler(store ConceptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profID := auth.SubjectFromContext(r.Context())
		q := r.URL.Query()
		f := roster.ConceptFilter{
			ClassID: strings.TrimSpace(q.Get("classId")),
			Search:  q.Get("search"),
			Subject: strings.TrimSpace(q.Get("subject")),
			Sort:    roster.SortDateSeenDesc,
		}
		if q.Get("sort") == string(roster.SortDateSeenAsc) {
			f.Sort = roster.SortDateSeenAsc
		}
		concepts, err := store.ListConcepts(r.Context(), profID, f)
		if err != nil {
			writeErr(w, err)
			return
		}
		classes, err := store.ListClasses(r.Context(), profID)
		if err != nil {
			writeErr(w, err)
			return
		}
		recent, err := store.MostRecentClass(r.Context(), profID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"concepts":          concepts,
			"classes":           classes,
			"mostRecentClassId": recent,
		})
	}
}

func decodeConcept(r *http.Request) (roster.ConceptInput, error) {
	var p roster.ConceptPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return roster.ConceptInput{}, &roster.ConceptValidationError{
			Message: "Invalid JSON.", Fields: map[string]string{"body": err.Error()},
		}
	}
	return roster.ValidateConcept(p)
}

// POST /api/prof/concepts
func CreateConceptHandler(store ConceptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeConcept(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		id, err := store.CreateConcept(r.Context(), auth.SubjectFromContext(r.Context()), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		apierr.WriteJSON(w, http.StatusCreated, map[string]string{"conceptId": id})
	}
}

// PUT /api/prof/concepts/{conceptID}
func UpdateConceptHandler(store ConceptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeConcept(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		conceptID := chi.URLParam(r, "conceptID")
		if err := store.UpdateConcept(r.Context(), auth.SubjectFromContext(r.Context()), conceptID, in); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"conceptId": conceptID})
	}
}

// DELETE /api/prof/concepts/{conceptID}
func DeleteConceptHandler(store ConceptStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteConcept(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "conceptID")); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

/* ---- students ---- */

// GET /api/prof/students?classId=
func ListStudentsHandler(store StudentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profID := auth.SubjectFromContext(r.Context())
		students, err := store.ListStudents(r.Context(), profID, strings.TrimSpace(r.URL.Query().Get("classId")))
		if err != nil {
			writeErr(w, err)
			return
		}
		classes, err := store.ListClasses(r.Context(), profID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"students": students, "classes": classes})
	}
}

// POST /api/prof/students/import
// Accepts multipart file= or a raw text/csv body.
func ImportStudentsHandler(svc RosterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, roster.MaxRosterBytes+1<<16)
		var body io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				apierr.Write(w, apierr.BadRequest("file_required"))
				return
			}
			defer f.Close()
			body = f
		}
		sum, err := svc.ImportStudents(r.Context(), auth.SubjectFromContext(r.Context()), body)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sum)
	}
}

// POST /api/prof/students/{studentID}/resend
func ResendInvitationHandler(store StudentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		link, err := store.RegenerateInvitation(r.Context(), auth.SubjectFromContext(r.Context()), chi.URLParam(r, "studentID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]string{"invitationLink": link})
	}
}

/* ---- invitations (public) ---- */

// GET /api/invite/{token}
func GetInvitationHandler(store StudentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := store.LookupInvitation(r.Context(), chi.URLParam(r, "token"))
		if errors.Is(err, roster.ErrInvalidInvitation) {
			apierr.WriteJSON(w, http.StatusNotFound, map[string]bool{"valid": false})
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]any{"valid": true, "email": inv.Email, "name": inv.Name})
	}
}

// POST /api/invite/{token}  { "password": "..." }
func AcceptInvitationHandler(svc RosterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.Write(w, apierr.BadRequest("invalid_payload"))
			return
		}
		_, err := svc.AcceptInvitation(r.Context(), chi.URLParam(r, "token"), req.Password)
		if errors.Is(err, roster.ErrInvalidInvitation) {
			apierr.Write(w, apierr.BadRequest("invalid_invitation"))
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

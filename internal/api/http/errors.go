package http

import (
	"encoding/csv"
	"errors"
	"net/http"

	"github.com/mind-engage/quazian/internal/dashboard"
	"github.com/mind-engage/quazian/internal/platform/apierr"
	"github.com/mind-engage/quazian/internal/quiz"
	"github.com/mind-engage/quazian/internal/roster"
)

// toAPI maps domain errors to status and code. Unknown errors become 500.
func toAPI(err error) error {
	var (
		ve  *quiz.ValidationError
		cve *roster.ConceptValidationError
		pe  *csv.ParseError
	)
	switch {
	case errors.As(err, &ve):
		return apierr.BadRequest(ve.Reason)
	case errors.As(err, &cve):
		e := apierr.BadRequest("invalid_concept")
		e.Fields = cve.Fields
		return e
	case errors.Is(err, quiz.ErrNotStudent), errors.Is(err, dashboard.ErrNotStudent):
		return apierr.Unauthorized()
	case errors.Is(err, quiz.ErrQuizNotFound):
		return apierr.NotFound("quiz_not_found")
	case errors.Is(err, quiz.ErrAlreadySubmitted):
		return apierr.Conflict("already_submitted")
	case errors.Is(err, roster.ErrForbiddenClass), errors.Is(err, dashboard.ErrForbiddenClass):
		return apierr.Forbidden("FORBIDDEN_CLASS")
	case errors.Is(err, roster.ErrNotFound):
		return apierr.NotFound("not_found")
	case errors.Is(err, roster.ErrInvalidInvitation):
		return apierr.NotFound("invalid_invitation")
	case errors.Is(err, roster.ErrWeakPassword):
		return apierr.BadRequest("weak_password")
	case errors.Is(err, roster.ErrRosterTooLarge):
		return apierr.New(http.StatusRequestEntityTooLarge, "file_too_large", err)
	case errors.Is(err, roster.ErrMissingColumn), errors.As(err, &pe):
		e := apierr.BadRequest("invalid_csv")
		e.Err = err
		e.Fields = map[string]string{"file": err.Error()}
		return e
	}
	return apierr.Internal(err)
}

func writeErr(w http.ResponseWriter, err error) { apierr.Write(w, toAPI(err)) }

func writeJSON(w http.ResponseWriter, v any) { apierr.WriteJSON(w, http.StatusOK, v) }

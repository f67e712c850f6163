package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	auth "github.com/mind-engage/quazian/internal/auth/middleware"
	"github.com/mind-engage/quazian/internal/platform/apierr"
	"github.com/mind-engage/quazian/internal/platform/logger"
	"github.com/mind-engage/quazian/internal/quiz"
)

// WeekQuizStore is what the week endpoint reads.
type WeekQuizStore interface {
	StudentClass(ctx context.Context, userID string) (string, error)
	FindQuiz(ctx context.Context, classID, weekKey string, slot quiz.Slot) (quiz.Quiz, error)
	HasAttempt(ctx context.Context, userID, quizID string) (bool, error)
}

type Submitter interface {
	Submit(ctx context.Context, userID string, req quiz.SubmitRequest) (quiz.SubmitResult, error)
}

type BatchGenerator interface {
	GenerateCurrentSlot(ctx context.Context) (quiz.BatchResult, error)
}

// GET /api/quiz/week
// The current slot's quiz for the student's class, without answer keys.
func WeekQuizHandler(store WeekQuizStore, current func() quiz.WeekSlot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.SubjectFromContext(r.Context())
		classID, err := store.StudentClass(r.Context(), userID)
		if err != nil {
			writeErr(w, err)
			return
		}
		ws := current()
		q, err := store.FindQuiz(r.Context(), classID, ws.WeekKey, ws.Slot)
		if errors.Is(err, quiz.ErrQuizNotFound) || (err == nil && len(q.Questions) == 0) {
			apierr.Write(w, apierr.NotFound("NO_QUIZ_YET"))
			return
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		submitted, err := store.HasAttempt(r.Context(), userID, q.ID)
		if err != nil {
			writeErr(w, err)
			return
		}
		view := q.StudentView()
		view.Submitted = submitted
		writeJSON(w, view)
	}
}

// POST /api/quiz/submit
func SubmitQuizHandler(sub Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quiz.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apierr.Write(w, apierr.BadRequest(quiz.ReasonInvalidPayload))
			return
		}
		res, err := sub.Submit(r.Context(), auth.SubjectFromContext(r.Context()), req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// POST /api/internal/generate-quizzes
// Guarded by the x-cron-secret header; an empty secret disables the endpoint.
func GenerateQuizzesHandler(gen BatchGenerator, secret string, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("x-cron-secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			apierr.Write(w, apierr.Unauthorized())
			return
		}
		res, err := gen.GenerateCurrentSlot(r.Context())
		if err != nil {
			log.Error("quiz generation failed", "err", err)
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

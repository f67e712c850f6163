package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quazian/internal/grading"
	"github.com/mind-engage/quazian/internal/mastery"
	"github.com/mind-engage/quazian/internal/platform/logger"
	"github.com/mind-engage/quazian/internal/platform/validate"
	"github.com/mind-engage/quazian/internal/probability"
)

// Event types appended by the quiz package.
const (
	EventQuizGenerated    = "QuizGenerated"
	EventAttemptSubmitted = "AttemptSubmitted"
)

type Answer struct {
	QuestionID string `json:"questionId" validate:"notblank"`
	// ConceptID is optional; when set it must match the question's concept.
	ConceptID    string    `json:"conceptId,omitempty"`
	Distribution []float64 `json:"distribution"`
}

type SubmitRequest struct {
	QuizID  string   `json:"quizId" validate:"notblank"`
	Answers []Answer `json:"answers" validate:"required,dive"`
}

type QuestionScore struct {
	QuestionID   string  `json:"questionId"`
	Score        float64 `json:"score"`
	CorrectIndex int     `json:"correctIndex"`
}

type SubmitResult struct {
	AttemptID            string          `json:"attemptId"`
	TotalScoreRaw        float64         `json:"totalScoreRaw"`
	TotalScoreNormalized float64         `json:"totalScoreNormalized"`
	ZScore               float64         `json:"zScore"`
	NoteOn20             float64         `json:"noteOn20"`
	PerQuestion          []QuestionScore `json:"perQuestion"`
}

// Submitter grades and records quiz attempts.
type Submitter struct {
	store  SubmissionStore
	grader grading.Grader
	now    func() time.Time
	log    *logger.Logger
}

func NewSubmitter(store SubmissionStore, grader grading.Grader, now func() time.Time, log *logger.Logger) *Submitter {
	if grader == nil {
		grader = grading.NewDefaultGrader()
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Submitter{store: store, grader: grader, now: now, log: log}
}

// Submit validates, grades and persists a student's answers. Validation
// failures are *ValidationError; ownership failures are ErrQuizNotFound or
// ErrNotStudent; a repeat is ErrAlreadySubmitted. Nothing is written unless
// every check passes.
func (s *Submitter) Submit(ctx context.Context, userID string, req SubmitRequest) (SubmitResult, error) {
	if err := validate.Struct(req); err != nil {
		return SubmitResult{}, invalid(ReasonInvalidPayload)
	}

	classID, err := s.store.StudentClass(ctx, userID)
	if err != nil {
		return SubmitResult{}, err
	}

	q, err := s.store.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}
	// an empty quiz was never served
	if q.ClassID != classID || len(q.Questions) == 0 {
		return SubmitResult{}, ErrQuizNotFound
	}

	done, err := s.store.HasAttempt(ctx, userID, q.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	if done {
		return SubmitResult{}, ErrAlreadySubmitted
	}

	if len(req.Answers) != len(q.Questions) {
		return SubmitResult{}, invalid(ReasonAnswerCountMismatch)
	}
	byID := make(map[string]Question, len(q.Questions))
	for _, qq := range q.Questions {
		byID[qq.ID] = qq
	}

	seen := make(map[string]bool, len(req.Answers))
	perQuestion := make([]QuestionScore, 0, len(req.Answers))
	scores := make([]float64, 0, len(req.Answers))
	obs := make([]mastery.Observation, 0, len(req.Answers))
	for _, a := range req.Answers {
		if seen[a.QuestionID] {
			return SubmitResult{}, invalid(ReasonDuplicateQuestion)
		}
		qq, ok := byID[a.QuestionID]
		if !ok || (a.ConceptID != "" && a.ConceptID != qq.ConceptID) {
			return SubmitResult{}, invalid(ReasonQuestionMismatch)
		}
		if !probability.Valid(a.Distribution) {
			return SubmitResult{}, invalid(ReasonDistributionInvalid)
		}
		dist := probability.Round(a.Distribution).Slice()

		res, err := s.grader.Grade(ctx, grading.Q{Type: grading.TypeProbabilityMCQ, CorrectIndex: qq.CorrectIndex}, dist)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("grade %s: %w", qq.ID, err)
		}
		seen[a.QuestionID] = true
		scores = append(scores, res.Score)
		perQuestion = append(perQuestion, QuestionScore{QuestionID: qq.ID, Score: res.Score, CorrectIndex: res.CorrectIndex})
		obs = append(obs, mastery.Observation{ConceptID: qq.ConceptID, PCorrect: float64(dist[qq.CorrectIndex]) / 100})
	}

	raw, normalized := s.grader.Total(scores)
	now := s.now()
	attempt := Attempt{
		ID:              uuid.NewString(),
		UserID:          userID,
		QuizID:          q.ID,
		Score:           raw,
		NormalizedScore: normalized,
		NoteOn20:        grading.ZMeanToNoteOn20(0),
		CreatedAt:       now,
	}

	err = s.store.WithStatsTx(ctx, classID, func(tx StatsTx) error {
		return s.persist(ctx, tx, classID, &attempt, obs, now)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) {
			return SubmitResult{}, ErrAlreadySubmitted
		}
		return SubmitResult{}, fmt.Errorf("persist submission: %w", err)
	}

	s.log.Info("attempt submitted",
		"attempt_id", attempt.ID, "quiz_id", q.ID, "class_id", classID,
		"normalized_score", normalized, "z_score", attempt.ZScore)

	return SubmitResult{
		AttemptID:            attempt.ID,
		TotalScoreRaw:        raw,
		TotalScoreNormalized: normalized,
		ZScore:               attempt.ZScore,
		NoteOn20:             attempt.NoteOn20,
		PerQuestion:          perQuestion,
	}, nil
}

// persist inserts the attempt and recomputes the quiz's z-scores, the class's
// student grades and the student's concept mastery.
func (s *Submitter) persist(ctx context.Context, tx StatsTx, classID string, a *Attempt, obs []mastery.Observation, now time.Time) error {
	if err := tx.InsertAttempt(ctx, *a); err != nil {
		return err
	}

	scores, err := tx.QuizAttemptScores(ctx, a.QuizID)
	if err != nil {
		return err
	}
	zs := grading.QuizZScores(scores)
	if err := tx.UpdateAttemptZ(ctx, zs); err != nil {
		return err
	}
	for _, z := range zs {
		if z.ID == a.ID {
			a.ZScore, a.NoteOn20 = z.ZScore, z.NoteOn20
		}
	}

	classZ, err := tx.ClassAttemptZs(ctx, classID)
	if err != nil {
		return err
	}
	if err := tx.UpsertStudentStats(ctx, classID, grading.StudentZMeans(classZ), now); err != nil {
		return err
	}

	order, pCorrect := mastery.PCorrectByConcept(obs)
	prev, err := tx.Masteries(ctx, a.UserID, order)
	if err != nil {
		return err
	}
	for _, conceptID := range order {
		var old *float64
		if v, ok := prev[conceptID]; ok {
			old = &v
		}
		if err := tx.UpsertMastery(ctx, a.UserID, conceptID, mastery.Update(old, pCorrect[conceptID]), now); err != nil {
			return err
		}
	}

	return tx.AppendEvent(ctx, EventAttemptSubmitted, a.ID, map[string]any{
		"quizId":          a.QuizID,
		"userId":          a.UserID,
		"normalizedScore": a.NormalizedScore,
	})
}

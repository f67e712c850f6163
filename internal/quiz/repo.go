package quiz

import (
	"context"
	"time"

	"github.com/mind-engage/quazian/internal/grading"
)

// GenerationStore is what the Generator needs from storage.
type GenerationStore interface {
	ListClassIDs(ctx context.Context) ([]string, error)
	// UpsertQuiz creates the (classID, weekKey, slot) quiz if absent and
	// returns it with its questions in order.
	UpsertQuiz(ctx context.Context, classID, weekKey string, slot Slot) (Quiz, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	// ConceptPool lists the concepts assigned to a class, each with the mean
	// mastery of the class's students.
	ConceptPool(ctx context.Context, classID string) ([]Concept, error)
	// RecentSignatures maps concept id to the option signatures used by the
	// class's limit most recent quizzes other than excludeQuizID.
	RecentSignatures(ctx context.Context, classID, excludeQuizID string, limit int) (map[string]map[string]bool, error)
	// PopulateQuiz inserts questions into an empty quiz, or fails with
	// ErrAlreadyPopulated.
	PopulateQuiz(ctx context.Context, q Quiz, questions []Question) error
}

// SubmissionStore is what the Submitter needs from storage.
type SubmissionStore interface {
	// StudentClass returns the student's class or ErrNotStudent.
	StudentClass(ctx context.Context, userID string) (string, error)
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	HasAttempt(ctx context.Context, userID, quizID string) (bool, error)
	// WithStatsTx runs fn in one transaction that serializes with other
	// statistics passes of the same class.
	WithStatsTx(ctx context.Context, classID string, fn func(StatsTx) error) error
}

// StatsTx is the transactional view used to persist a submission.
type StatsTx interface {
	// InsertAttempt fails with ErrAlreadySubmitted on a second attempt.
	InsertAttempt(ctx context.Context, a Attempt) error
	QuizAttemptScores(ctx context.Context, quizID string) ([]grading.AttemptScore, error)
	UpdateAttemptZ(ctx context.Context, zs []grading.AttemptZ) error
	ClassAttemptZs(ctx context.Context, classID string) ([]grading.StudentZ, error)
	UpsertStudentStats(ctx context.Context, classID string, means []grading.StudentMean, at time.Time) error
	Masteries(ctx context.Context, userID string, conceptIDs []string) (map[string]float64, error)
	UpsertMastery(ctx context.Context, userID, conceptID string, p float64, at time.Time) error
	AppendEvent(ctx context.Context, typ, key string, data any) error
}

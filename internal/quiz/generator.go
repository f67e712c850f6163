package quiz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quazian/internal/platform/logger"
)

// Generator builds the quizzes of a slot.
type Generator struct {
	store GenerationStore
	loc   *time.Location
	now   func() time.Time
	log   *logger.Logger
}

func NewGenerator(store GenerationStore, loc *time.Location, now func() time.Time, log *logger.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{store: store, loc: loc, now: now, log: log}
}

// ClassError is one class the batch could not generate.
type ClassError struct {
	ClassID string `json:"classId"`
	Error   string `json:"error"`
}

// BatchResult summarizes GenerateCurrentSlot.
type BatchResult struct {
	Generated int          `json:"generated"`
	Failed    int          `json:"failed"`
	WeekKey   string       `json:"weekKey"`
	Slot      Slot         `json:"slot"`
	Errors    []ClassError `json:"errors,omitempty"`
}

// CurrentSlot is the slot the generator's clock is in.
func (g *Generator) CurrentSlot() WeekSlot {
	return CurrentWeekSlot(g.now(), g.loc)
}

// GenerateForClass returns the class's quiz for (weekKey, slot), populating it
// on first call. Later calls return the stored quiz unchanged.
func (g *Generator) GenerateForClass(ctx context.Context, classID, weekKey string, slot Slot) (Quiz, error) {
	if !slot.Valid() {
		return Quiz{}, fmt.Errorf("invalid slot %q", slot)
	}
	if _, err := WeekStart(weekKey); err != nil {
		return Quiz{}, err
	}
	now := g.now()

	q, err := g.store.UpsertQuiz(ctx, classID, weekKey, slot)
	if err != nil {
		return Quiz{}, fmt.Errorf("upsert quiz: %w", err)
	}
	if len(q.Questions) > 0 {
		return q, nil
	}

	pool, err := g.store.ConceptPool(ctx, classID)
	if err != nil {
		return Quiz{}, fmt.Errorf("concept pool: %w", err)
	}
	if len(pool) == 0 {
		g.log.Warn("class has no concepts", "class_id", classID, "quiz_id", q.ID)
		return q, nil
	}

	selected := SelectConcepts(pool, now, PreviousSlotStart(now, slot, g.loc))

	recent, err := g.store.RecentSignatures(ctx, classID, q.ID, RecentSignatureQuizzes)
	if err != nil {
		return Quiz{}, fmt.Errorf("recent signatures: %w", err)
	}

	questions := buildQuestions(q.ID, selected, recent)
	if len(questions) == 0 {
		g.log.Warn("no buildable concepts", "class_id", classID, "quiz_id", q.ID)
		return q, nil
	}
	if dropped := len(selected) - len(questions); dropped > 0 {
		g.log.Debug("concepts dropped", "quiz_id", q.ID, "dropped", dropped)
	}

	err = g.store.PopulateQuiz(ctx, q, questions)
	switch {
	case errors.Is(err, ErrAlreadyPopulated):
		g.log.Debug("quiz populated concurrently", "quiz_id", q.ID)
	case err != nil:
		return Quiz{}, fmt.Errorf("populate quiz: %w", err)
	}
	return g.store.GetQuiz(ctx, q.ID)
}

// GenerateCurrentSlot generates the current slot's quiz for every class. A
// failing class is reported and does not stop the others.
func (g *Generator) GenerateCurrentSlot(ctx context.Context) (BatchResult, error) {
	ws := g.CurrentSlot()
	res := BatchResult{WeekKey: ws.WeekKey, Slot: ws.Slot}

	classIDs, err := g.store.ListClassIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list classes: %w", err)
	}
	for _, id := range classIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		q, err := g.GenerateForClass(ctx, id, ws.WeekKey, ws.Slot)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, ClassError{ClassID: id, Error: err.Error()})
			g.log.Error("quiz generation failed", "class_id", id, "week_key", ws.WeekKey, "slot", ws.Slot, "error", err)
			continue
		}
		res.Generated++
		g.log.Debug("quiz ready", "class_id", id, "quiz_id", q.ID, "questions", len(q.Questions))
	}
	g.log.Info("quiz generation finished",
		"week_key", ws.WeekKey, "slot", ws.Slot, "generated", res.Generated, "failed", res.Failed)
	return res, nil
}

// buildQuestions turns the selection into questions, retrying salts until an
// arrangement unseen in recent quizzes appears. Concepts that never yield one
// are dropped.
func buildQuestions(quizID string, selected []Concept, recent map[string]map[string]bool) []Question {
	out := make([]Question, 0, len(selected))
	for order, c := range selected {
		seen := recent[c.ID]
		for salt := 0; salt < MaxOptionAttempts; salt++ {
			built, ok := BuildQuestionOptions(c, quizID, salt)
			if !ok || seen[built.OptionSignature] {
				continue
			}
			out = append(out, Question{
				ID:              uuid.NewString(),
				QuizID:          quizID,
				ConceptID:       c.ID,
				Order:           order,
				Subject:         c.Subject,
				Title:           c.Title,
				Options:         built.Options,
				CorrectIndex:    built.CorrectIndex,
				OptionSignature: built.OptionSignature,
			})
			break
		}
	}
	return out
}

package quiz_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quazian/internal/quiz"
)

/* ---------------- In-memory fake that satisfies quiz.GenerationStore ---------------- */

type fakeGenStore struct {
	mu        sync.Mutex
	classes   []string
	quizzes   map[string]quiz.Quiz
	byKey     map[string]string
	pools     map[string][]quiz.Concept
	recent    map[string]map[string]bool
	failClass string
	seq       int

	populateCalls  int
	beforePopulate func(s *fakeGenStore, q quiz.Quiz)
}

func newFakeGenStore() *fakeGenStore {
	return &fakeGenStore{
		quizzes: map[string]quiz.Quiz{},
		byKey:   map[string]string{},
		pools:   map[string][]quiz.Concept{},
		recent:  map[string]map[string]bool{},
	}
}

func (s *fakeGenStore) ListClassIDs(context.Context) ([]string, error) {
	return s.classes, nil
}

func (s *fakeGenStore) UpsertQuiz(_ context.Context, classID, weekKey string, slot quiz.Slot) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := fmt.Sprintf("%s|%s|%s", classID, weekKey, slot)
	if id, ok := s.byKey[k]; ok {
		return s.quizzes[id], nil
	}
	s.seq++
	q := quiz.Quiz{ID: fmt.Sprintf("quiz-%d", s.seq), ClassID: classID, WeekKey: weekKey, Slot: slot}
	s.byKey[k] = q.ID
	s.quizzes[q.ID] = q
	return q, nil
}

func (s *fakeGenStore) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}

func (s *fakeGenStore) ConceptPool(_ context.Context, classID string) ([]quiz.Concept, error) {
	if classID == s.failClass {
		return nil, errors.New("boom")
	}
	return s.pools[classID], nil
}

func (s *fakeGenStore) RecentSignatures(context.Context, string, string, int) (map[string]map[string]bool, error) {
	return s.recent, nil
}

func (s *fakeGenStore) PopulateQuiz(_ context.Context, q quiz.Quiz, questions []quiz.Question) error {
	if s.beforePopulate != nil {
		s.beforePopulate(s, q)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.populateCalls++
	cur := s.quizzes[q.ID]
	if len(cur.Questions) > 0 {
		return quiz.ErrAlreadyPopulated
	}
	cur.Questions = append([]quiz.Question(nil), questions...)
	s.quizzes[q.ID] = cur
	return nil
}

/* ---------------- helpers ---------------- */

var genNow = time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC) // Thursday, 2026-W07 B

func concept(id, subject string) quiz.Concept {
	return quiz.Concept{
		ID:            id,
		Subject:       subject,
		Title:         "title " + id,
		CorrectAnswer: "right " + id,
		Distractors:   []string{"d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9"},
		DateSeen:      genNow.AddDate(0, 0, -1),
	}
}

func newGen(st quiz.GenerationStore) *quiz.Generator {
	return quiz.NewGenerator(st, time.UTC, func() time.Time { return genNow }, nil)
}

/* ---------------- tests ---------------- */

func TestGenerateForClassIsIdempotent(t *testing.T) {
	st := newFakeGenStore()
	st.pools["class-1"] = []quiz.Concept{
		concept("c1", "PHILO"), concept("c2", "HLP"), concept("c3", "MATH"), concept("c4", "MATH"), concept("c5", "MATH"),
	}
	g := newGen(st)
	ctx := context.Background()

	first, err := g.GenerateForClass(ctx, "class-1", "2026-W07", quiz.SlotB)
	require.NoError(t, err)
	require.Len(t, first.Questions, 5)
	for i, q := range first.Questions {
		assert.Equal(t, i, q.Order)
		assert.Equal(t, first.ID, q.QuizID)
		assert.Len(t, q.Options, 4)
		assert.Equal(t, "right "+q.ConceptID, q.Options[q.CorrectIndex])
	}

	second, err := g.GenerateForClass(ctx, "class-1", "2026-W07", quiz.SlotB)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, st.populateCalls)
}

func TestGenerateForClassEmptyPool(t *testing.T) {
	st := newFakeGenStore()
	q, err := newGen(st).GenerateForClass(context.Background(), "class-1", "2026-W07", quiz.SlotA)
	require.NoError(t, err)
	assert.Empty(t, q.Questions)
	assert.Zero(t, st.populateCalls)
}

func TestGenerateForClassAvoidsRecentArrangements(t *testing.T) {
	c := quiz.Concept{ID: "concept-1", Subject: "MATH", CorrectAnswer: "Correct", Distractors: []string{"A", "B", "C", "D", "E"}}
	st := newFakeGenStore()
	st.pools["class-1"] = []quiz.Concept{c}
	st.recent["concept-1"] = map[string]bool{
		"ddb1cf3108fb9ba2b437007bb3e18ce7f6260307b68fea4ff31916f1e47d4658": true,
	}

	q, err := newGen(st).GenerateForClass(context.Background(), "class-1", "2026-W07", quiz.SlotB)
	require.NoError(t, err)
	require.Equal(t, "quiz-1", q.ID)
	require.Len(t, q.Questions, 1)
	assert.Equal(t, []string{"B", "A", "E", "Correct"}, q.Questions[0].Options)
	assert.Equal(t, "2dc03344c73aa0c61590ea685d6c523e58a80d4c2ff11734eaae626d8868883e", q.Questions[0].OptionSignature)
}

func TestGenerateForClassDropsExhaustedConcept(t *testing.T) {
	stuck := concept("stuck", "MATH")
	st := newFakeGenStore()
	st.pools["class-1"] = []quiz.Concept{stuck, concept("ok1", "MATH"), concept("ok2", "MATH"), concept("ok3", "MATH")}
	seen := map[string]bool{}
	for salt := 0; salt < quiz.MaxOptionAttempts; salt++ {
		b, ok := quiz.BuildQuestionOptions(stuck, "quiz-1", salt)
		require.True(t, ok)
		seen[b.OptionSignature] = true
	}
	st.recent["stuck"] = seen

	q, err := newGen(st).GenerateForClass(context.Background(), "class-1", "2026-W07", quiz.SlotB)
	require.NoError(t, err)
	require.Len(t, q.Questions, 3)
	for _, qq := range q.Questions {
		assert.NotEqual(t, "stuck", qq.ConceptID)
	}
	// order keeps the selection index
	assert.Equal(t, 1, q.Questions[0].Order)
}

func TestGenerateForClassLosesRaceGracefully(t *testing.T) {
	st := newFakeGenStore()
	st.pools["class-1"] = []quiz.Concept{concept("c1", "MATH"), concept("c2", "MATH"), concept("c3", "MATH"), concept("c4", "MATH")}
	winner := []quiz.Question{{ID: "w1", ConceptID: "c1", Options: []string{"a", "b", "c", "d"}}}
	st.beforePopulate = func(s *fakeGenStore, q quiz.Quiz) {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur := s.quizzes[q.ID]
		cur.Questions = winner
		s.quizzes[q.ID] = cur
	}

	q, err := newGen(st).GenerateForClass(context.Background(), "class-1", "2026-W07", quiz.SlotB)
	require.NoError(t, err)
	assert.Equal(t, winner, q.Questions)
}

func TestGenerateForClassRejectsBadSlot(t *testing.T) {
	g := newGen(newFakeGenStore())
	_, err := g.GenerateForClass(context.Background(), "class-1", "2026-W07", quiz.Slot("C"))
	assert.Error(t, err)
	_, err = g.GenerateForClass(context.Background(), "class-1", "week 7", quiz.SlotA)
	assert.Error(t, err)
}

func TestGenerateCurrentSlotIsolatesFailures(t *testing.T) {
	st := newFakeGenStore()
	st.classes = []string{"c1", "bad", "c2"}
	st.failClass = "bad"
	st.pools["c1"] = []quiz.Concept{concept("a", "MATH"), concept("b", "MATH"), concept("c", "MATH"), concept("d", "MATH")}

	res, err := newGen(st).GenerateCurrentSlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "2026-W07", res.WeekKey)
	assert.Equal(t, quiz.SlotB, res.Slot)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "bad", res.Errors[0].ClassID)
}

package quiz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quazian/internal/grading"
	"github.com/mind-engage/quazian/internal/quiz"
)

/* ---------------- In-memory fake that satisfies quiz.SubmissionStore & quiz.StatsTx ---------------- */

type subState struct {
	attempts []quiz.Attempt
	stats    map[string]grading.StudentMean // user|class
	mastery  map[string]float64             // user|concept
	events   []string
}

func (s subState) clone() subState {
	cp := subState{
		attempts: append([]quiz.Attempt(nil), s.attempts...),
		stats:    map[string]grading.StudentMean{},
		mastery:  map[string]float64{},
		events:   append([]string(nil), s.events...),
	}
	for k, v := range s.stats {
		cp.stats[k] = v
	}
	for k, v := range s.mastery {
		cp.mastery[k] = v
	}
	return cp
}

type fakeSubStore struct {
	classOf map[string]string
	quizzes map[string]quiz.Quiz
	state   subState
	failAt  string
}

func newFakeSubStore() *fakeSubStore {
	return &fakeSubStore{
		classOf: map[string]string{},
		quizzes: map[string]quiz.Quiz{},
		state:   subState{stats: map[string]grading.StudentMean{}, mastery: map[string]float64{}},
	}
}

func (s *fakeSubStore) StudentClass(_ context.Context, userID string) (string, error) {
	c, ok := s.classOf[userID]
	if !ok {
		return "", quiz.ErrNotStudent
	}
	return c, nil
}

func (s *fakeSubStore) GetQuiz(_ context.Context, id string) (quiz.Quiz, error) {
	q, ok := s.quizzes[id]
	if !ok {
		return quiz.Quiz{}, quiz.ErrQuizNotFound
	}
	return q, nil
}

func (s *fakeSubStore) HasAttempt(_ context.Context, userID, quizID string) (bool, error) {
	for _, a := range s.state.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSubStore) WithStatsTx(_ context.Context, _ string, fn func(quiz.StatsTx) error) error {
	snapshot := s.state.clone()
	if err := fn(&fakeStatsTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

type fakeStatsTx struct{ s *fakeSubStore }

func (t *fakeStatsTx) fail(op string) error {
	if t.s.failAt == op {
		return errors.New(op + " failed")
	}
	return nil
}

func (t *fakeStatsTx) InsertAttempt(_ context.Context, a quiz.Attempt) error {
	for _, x := range t.s.state.attempts {
		if x.UserID == a.UserID && x.QuizID == a.QuizID {
			return quiz.ErrAlreadySubmitted
		}
	}
	t.s.state.attempts = append(t.s.state.attempts, a)
	return t.fail("InsertAttempt")
}

func (t *fakeStatsTx) QuizAttemptScores(_ context.Context, quizID string) ([]grading.AttemptScore, error) {
	var out []grading.AttemptScore
	for _, a := range t.s.state.attempts {
		if a.QuizID == quizID {
			out = append(out, grading.AttemptScore{ID: a.ID, NormalizedScore: a.NormalizedScore})
		}
	}
	return out, nil
}

func (t *fakeStatsTx) UpdateAttemptZ(_ context.Context, zs []grading.AttemptZ) error {
	for _, z := range zs {
		for i := range t.s.state.attempts {
			if t.s.state.attempts[i].ID == z.ID {
				t.s.state.attempts[i].ZScore = z.ZScore
				t.s.state.attempts[i].NoteOn20 = z.NoteOn20
			}
		}
	}
	return nil
}

func (t *fakeStatsTx) ClassAttemptZs(_ context.Context, classID string) ([]grading.StudentZ, error) {
	var out []grading.StudentZ
	for _, a := range t.s.state.attempts {
		if t.s.quizzes[a.QuizID].ClassID == classID {
			out = append(out, grading.StudentZ{UserID: a.UserID, ZScore: a.ZScore})
		}
	}
	return out, nil
}

func (t *fakeStatsTx) UpsertStudentStats(_ context.Context, classID string, means []grading.StudentMean, _ time.Time) error {
	for _, m := range means {
		t.s.state.stats[m.UserID+"|"+classID] = m
	}
	return nil
}

func (t *fakeStatsTx) Masteries(_ context.Context, userID string, conceptIDs []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, id := range conceptIDs {
		if v, ok := t.s.state.mastery[userID+"|"+id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (t *fakeStatsTx) UpsertMastery(_ context.Context, userID, conceptID string, p float64, _ time.Time) error {
	if err := t.fail("UpsertMastery"); err != nil {
		return err
	}
	t.s.state.mastery[userID+"|"+conceptID] = p
	return nil
}

func (t *fakeStatsTx) AppendEvent(_ context.Context, typ, key string, _ any) error {
	t.s.state.events = append(t.s.state.events, typ+":"+key)
	return nil
}

/* ---------------- helpers ---------------- */

func twoQuestionStore() *fakeSubStore {
	st := newFakeSubStore()
	st.classOf["s1"] = "class-1"
	st.classOf["s2"] = "class-1"
	st.classOf["outsider"] = "class-2"
	st.quizzes["quiz-1"] = quiz.Quiz{
		ID: "quiz-1", ClassID: "class-1", WeekKey: "2026-W07", Slot: quiz.SlotA,
		Questions: []quiz.Question{
			{ID: "q1", ConceptID: "c1", CorrectIndex: 2},
			{ID: "q2", ConceptID: "c2", CorrectIndex: 0},
		},
	}
	return st
}

func newSubmitter(st quiz.SubmissionStore) *quiz.Submitter {
	return quiz.NewSubmitter(st, nil, func() time.Time { return genNow }, nil)
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()
	var ve *quiz.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	return ve.Reason
}

/* ---------------- tests ---------------- */

func TestSubmitScoresAnswers(t *testing.T) {
	st := twoQuestionStore()
	res, err := newSubmitter(st).Submit(context.Background(), "s1", quiz.SubmitRequest{
		QuizID: "quiz-1",
		Answers: []quiz.Answer{
			{QuestionID: "q2", Distribution: []float64{100, 0, 0, 0}},
			{QuestionID: "q1", ConceptID: "c1", Distribution: []float64{10, 10, 70, 10}},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.94, res.TotalScoreRaw, 1e-9)
	assert.InDelta(t, 3.76, res.TotalScoreNormalized, 1e-9)
	require.Len(t, res.PerQuestion, 2)
	assert.Equal(t, "q2", res.PerQuestion[0].QuestionID)
	assert.InDelta(t, 1.0, res.PerQuestion[0].Score, 1e-9)
	assert.Equal(t, 2, res.PerQuestion[1].CorrectIndex)
	assert.InDelta(t, 0.88, res.PerQuestion[1].Score, 1e-9)

	// first attempt of the quiz sits at the mean
	assert.Equal(t, 0.0, res.ZScore)
	assert.Equal(t, 10.0, res.NoteOn20)
	require.Len(t, st.state.attempts, 1)
	assert.Equal(t, []string{quiz.EventAttemptSubmitted + ":" + res.AttemptID}, st.state.events)

	assert.InDelta(t, 0.9*0.5+0.1*0.7, st.state.mastery["s1|c1"], 1e-12)
	assert.InDelta(t, 0.55, st.state.mastery["s1|c2"], 1e-12)
}

func TestSubmitRejections(t *testing.T) {
	valid := func() []quiz.Answer {
		return []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		}
	}
	cases := []struct {
		name   string
		user   string
		req    quiz.SubmitRequest
		reason string
		err    error
	}{
		{name: "blank quiz id", user: "s1", req: quiz.SubmitRequest{QuizID: " ", Answers: valid()}, reason: quiz.ReasonInvalidPayload},
		{name: "missing answers", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1"}, reason: quiz.ReasonInvalidPayload},
		{name: "not a student", user: "prof", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: valid()}, err: quiz.ErrNotStudent},
		{name: "unknown quiz", user: "s1", req: quiz.SubmitRequest{QuizID: "nope", Answers: valid()}, err: quiz.ErrQuizNotFound},
		{name: "other class", user: "outsider", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: valid()}, err: quiz.ErrQuizNotFound},
		{name: "too few answers", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: valid()[:1]}, reason: quiz.ReasonAnswerCountMismatch},
		{name: "duplicate", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
			{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonDuplicateQuestion},
		{name: "unknown question", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
			{QuestionID: "q9", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonQuestionMismatch},
		{name: "wrong concept", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", ConceptID: "c2", Distribution: []float64{25, 25, 25, 25}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonQuestionMismatch},
		{name: "sum not 100", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{50, 50, 1, 0}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonDistributionInvalid},
		{name: "three entries", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{50, 50, 0}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonDistributionInvalid},
		{name: "negative", user: "s1", req: quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{-10, 60, 25, 25}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		}}, reason: quiz.ReasonDistributionInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := twoQuestionStore()
			_, err := newSubmitter(st).Submit(context.Background(), tc.user, tc.req)
			require.Error(t, err)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.False(t, quiz.IsValidation(err))
			} else {
				assert.Equal(t, tc.reason, reasonOf(t, err))
			}
			assert.Empty(t, st.state.attempts)
		})
	}
}

func TestSubmitRoundsFractionalDistribution(t *testing.T) {
	st := twoQuestionStore()
	res, err := newSubmitter(st).Submit(context.Background(), "s1", quiz.SubmitRequest{
		QuizID: "quiz-1",
		Answers: []quiz.Answer{
			{QuestionID: "q1", Distribution: []float64{24.6, 25.4, 25, 25}},
			{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.25, res.PerQuestion[0].Score, 1e-9)
}

func TestSubmitTwiceIsAlreadySubmitted(t *testing.T) {
	st := twoQuestionStore()
	sub := newSubmitter(st)
	req := quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
		{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
		{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
	}}

	_, err := sub.Submit(context.Background(), "s1", req)
	require.NoError(t, err)

	_, err = sub.Submit(context.Background(), "s1", req)
	assert.ErrorIs(t, err, quiz.ErrAlreadySubmitted)
	assert.False(t, quiz.IsValidation(err))
	assert.Len(t, st.state.attempts, 1)
}

func TestSubmitRollsBackOnFailure(t *testing.T) {
	st := twoQuestionStore()
	st.failAt = "UpsertMastery"
	_, err := newSubmitter(st).Submit(context.Background(), "s1", quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
		{QuestionID: "q1", Distribution: []float64{25, 25, 25, 25}},
		{QuestionID: "q2", Distribution: []float64{25, 25, 25, 25}},
	}})
	require.Error(t, err)
	assert.Empty(t, st.state.attempts)
	assert.Empty(t, st.state.stats)
	assert.Empty(t, st.state.events)
}

func TestSubmitClassRelativeGrades(t *testing.T) {
	st := newFakeSubStore()
	st.classOf["s1"] = "class-1"
	st.classOf["s2"] = "class-1"
	st.quizzes["quiz-1"] = quiz.Quiz{
		ID: "quiz-1", ClassID: "class-1",
		Questions: []quiz.Question{{ID: "q-1", ConceptID: "c-1", CorrectIndex: 0}},
	}
	sub := newSubmitter(st)
	ctx := context.Background()

	r1, err := sub.Submit(ctx, "s1", quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
		{QuestionID: "q-1", Distribution: []float64{100, 0, 0, 0}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r1.ZScore)
	assert.InDelta(t, 4.0, r1.TotalScoreNormalized, 1e-9)

	r2, err := sub.Submit(ctx, "s2", quiz.SubmitRequest{QuizID: "quiz-1", Answers: []quiz.Answer{
		{QuestionID: "q-1", Distribution: []float64{0, 100, 0, 0}},
	}})
	require.NoError(t, err)
	assert.InDelta(t, -4.0, r2.TotalScoreNormalized, 1e-9)
	assert.Equal(t, -1.0, r2.ZScore)
	assert.Equal(t, 6.0, r2.NoteOn20)

	s1 := st.state.stats["s1|class-1"]
	s2 := st.state.stats["s2|class-1"]
	assert.InDelta(t, 1.0, s1.ZMean, 1e-6)
	assert.Equal(t, 14.0, s1.NoteOn20)
	assert.InDelta(t, -1.0, s2.ZMean, 1e-6)
	assert.Equal(t, 6.0, s2.NoteOn20)

	for _, a := range st.state.attempts {
		if a.UserID == "s1" {
			assert.Equal(t, 1.0, a.ZScore)
			assert.Equal(t, 14.0, a.NoteOn20)
		}
	}
	assert.InDelta(t, 0.55, st.state.mastery["s1|c-1"], 1e-12)
	assert.InDelta(t, 0.45, st.state.mastery["s2|c-1"], 1e-12)
}

package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quazian/internal/db"
	"github.com/mind-engage/quazian/internal/grading"
	syncx "github.com/mind-engage/quazian/internal/sync"
)

// SQLStore implements GenerationStore and SubmissionStore over database/sql.
// Queries use $n placeholders, which both pgx and modernc sqlite accept.
type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(sqlDB *sql.DB, driver db.Driver, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo(sqlDB)
	}
	return &SQLStore{db: sqlDB, driver: driver, events: events, now: time.Now}
}

func (s *SQLStore) ListClassIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM classes ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) UpsertQuiz(ctx context.Context, classID, weekKey string, slot Slot) (Quiz, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quizzes (id, class_id, week_key, slot, created_at)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (class_id, week_key, slot) DO NOTHING`,
		uuid.NewString(), classID, weekKey, string(slot), db.Millis(s.now()))
	if err != nil {
		return Quiz{}, err
	}
	return s.FindQuiz(ctx, classID, weekKey, slot)
}

// FindQuiz returns the class's quiz for a slot, or ErrQuizNotFound.
func (s *SQLStore) FindQuiz(ctx context.Context, classID, weekKey string, slot Slot) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, class_id, week_key, slot, created_at FROM quizzes
		 WHERE class_id=$1 AND week_key=$2 AND slot=$3`, classID, weekKey, string(slot))
	q, err := scanQuiz(row)
	if err != nil {
		return Quiz{}, err
	}
	q.Questions, err = loadQuestions(ctx, s.db, q.ID)
	return q, err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, class_id, week_key, slot, created_at FROM quizzes WHERE id=$1`, id)
	q, err := scanQuiz(row)
	if err != nil {
		return Quiz{}, err
	}
	q.Questions, err = loadQuestions(ctx, s.db, q.ID)
	return q, err
}

func scanQuiz(row *sql.Row) (Quiz, error) {
	var (
		q       Quiz
		slot    string
		created int64
	)
	if err := row.Scan(&q.ID, &q.ClassID, &q.WeekKey, &slot, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	q.Slot = Slot(slot)
	q.CreatedAt = db.FromMillis(created)
	return q, nil
}

func loadQuestions(ctx context.Context, ex db.Execer, quizID string) ([]Question, error) {
	rows, err := ex.QueryContext(ctx,
		`SELECT id, quiz_id, concept_id, position, subject, title, options_json, correct_index, option_signature
		 FROM quiz_questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var (
			q    Question
			opts string
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.ConceptID, &q.Order, &q.Subject, &q.Title, &opts, &q.CorrectIndex, &q.OptionSignature); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ConceptPool(ctx context.Context, classID string) ([]Concept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.subject, c.title, c.correct_answer, c.distractors_json, c.date_seen,
		        (SELECT AVG(m.p_mastery) FROM concept_mastery m
		           JOIN student_profiles sp ON sp.user_id = m.user_id
		          WHERE m.concept_id = c.id AND sp.class_id = cc.class_id)
		   FROM class_concepts cc
		   JOIN concepts c ON c.id = cc.concept_id
		  WHERE cc.class_id = $1
		  ORDER BY c.created_at, c.id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Concept
	for rows.Next() {
		var (
			c           Concept
			distractors string
			seen        int64
			avg         sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.Subject, &c.Title, &c.CorrectAnswer, &distractors, &seen, &avg); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(distractors), &c.Distractors); err != nil {
			return nil, fmt.Errorf("concept %s distractors: %w", c.ID, err)
		}
		c.DateSeen = db.FromMillis(seen)
		if avg.Valid {
			v := avg.Float64
			c.AvgMastery = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) RecentSignatures(ctx context.Context, classID, excludeQuizID string, limit int) (map[string]map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT qq.concept_id, qq.option_signature FROM quiz_questions qq
		  WHERE qq.quiz_id IN (
		        SELECT id FROM quizzes WHERE class_id=$1 AND id<>$2
		         ORDER BY created_at DESC, id DESC LIMIT $3)`,
		classID, excludeQuizID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]map[string]bool{}
	for rows.Next() {
		var conceptID, sig string
		if err := rows.Scan(&conceptID, &sig); err != nil {
			return nil, err
		}
		if out[conceptID] == nil {
			out[conceptID] = map[string]bool{}
		}
		out[conceptID][sig] = true
	}
	return out, rows.Err()
}

func (s *SQLStore) PopulateQuiz(ctx context.Context, q Quiz, questions []Question) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM quiz_questions WHERE quiz_id=$1`, q.ID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrAlreadyPopulated
		}
		for _, qq := range questions {
			opts, err := json.Marshal(qq.Options)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO quiz_questions
				   (id, quiz_id, concept_id, position, subject, title, options_json, correct_index, option_signature)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				qq.ID, q.ID, qq.ConceptID, qq.Order, qq.Subject, qq.Title, string(opts), qq.CorrectIndex, qq.OptionSignature)
			if db.IsUniqueViolation(err) {
				return ErrAlreadyPopulated
			}
			if err != nil {
				return err
			}
		}
		return s.events.On(tx).Append(ctx, EventQuizGenerated, q.ID, map[string]any{
			"classId":   q.ClassID,
			"weekKey":   q.WeekKey,
			"slot":      q.Slot,
			"questions": len(questions),
		})
	})
}

func (s *SQLStore) StudentClass(ctx context.Context, userID string) (string, error) {
	var classID string
	err := s.db.QueryRowContext(ctx,
		`SELECT class_id FROM student_profiles WHERE user_id=$1`, userID).Scan(&classID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotStudent
	}
	return classID, err
}

func (s *SQLStore) HasAttempt(ctx context.Context, userID, quizID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attempts WHERE user_id=$1 AND quiz_id=$2`, userID, quizID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// WithStatsTx locks the class row on postgres so statistics passes of one
// class run one at a time; sqlite already has a single writer.
func (s *SQLStore) WithStatsTx(ctx context.Context, classID string, fn func(StatsTx) error) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		if s.driver == db.DriverPostgres {
			var id string
			if err := tx.QueryRowContext(ctx,
				`SELECT id FROM classes WHERE id=$1 FOR UPDATE`, classID).Scan(&id); err != nil {
				return fmt.Errorf("lock class: %w", err)
			}
		}
		return fn(&statsTx{tx: tx, events: s.events.On(tx)})
	})
}

type statsTx struct {
	tx     *sql.Tx
	events *syncx.EventRepo
}

func (t *statsTx) InsertAttempt(ctx context.Context, a Attempt) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO attempts (id, user_id, quiz_id, score, normalized_score, z_score, note_on20, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.UserID, a.QuizID, a.Score, a.NormalizedScore, a.ZScore, a.NoteOn20, db.Millis(a.CreatedAt))
	if db.IsUniqueViolation(err) {
		return ErrAlreadySubmitted
	}
	return err
}

func (t *statsTx) QuizAttemptScores(ctx context.Context, quizID string) ([]grading.AttemptScore, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, normalized_score FROM attempts WHERE quiz_id=$1 ORDER BY created_at, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.AttemptScore
	for rows.Next() {
		var a grading.AttemptScore
		if err := rows.Scan(&a.ID, &a.NormalizedScore); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (t *statsTx) UpdateAttemptZ(ctx context.Context, zs []grading.AttemptZ) error {
	for _, z := range zs {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE attempts SET z_score=$1, note_on20=$2 WHERE id=$3`, z.ZScore, z.NoteOn20, z.ID); err != nil {
			return err
		}
	}
	return nil
}

func (t *statsTx) ClassAttemptZs(ctx context.Context, classID string) ([]grading.StudentZ, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT a.user_id, a.z_score FROM attempts a
		   JOIN quizzes q ON q.id = a.quiz_id
		  WHERE q.class_id=$1
		  ORDER BY a.created_at, a.id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []grading.StudentZ
	for rows.Next() {
		var z grading.StudentZ
		if err := rows.Scan(&z.UserID, &z.ZScore); err != nil {
			return nil, err
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (t *statsTx) UpsertStudentStats(ctx context.Context, classID string, means []grading.StudentMean, at time.Time) error {
	for _, m := range means {
		if _, err := t.tx.ExecContext(ctx,
			`INSERT INTO student_stats (user_id, class_id, z_mean, note_on20, updated_at)
			 VALUES ($1,$2,$3,$4,$5)
			 ON CONFLICT (user_id, class_id) DO UPDATE
			   SET z_mean=excluded.z_mean, note_on20=excluded.note_on20, updated_at=excluded.updated_at`,
			m.UserID, classID, m.ZMean, m.NoteOn20, db.Millis(at)); err != nil {
			return err
		}
	}
	return nil
}

func (t *statsTx) Masteries(ctx context.Context, userID string, conceptIDs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(conceptIDs))
	if len(conceptIDs) == 0 {
		return out, nil
	}
	args := make([]any, 0, len(conceptIDs)+1)
	args = append(args, userID)
	marks := make([]string, len(conceptIDs))
	for i, id := range conceptIDs {
		args = append(args, id)
		marks[i] = fmt.Sprintf("$%d", i+2)
	}
	rows, err := t.tx.QueryContext(ctx,
		`SELECT concept_id, p_mastery FROM concept_mastery
		  WHERE user_id=$1 AND concept_id IN (`+strings.Join(marks, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			p  float64
		)
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (t *statsTx) UpsertMastery(ctx context.Context, userID, conceptID string, p float64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO concept_mastery (user_id, concept_id, p_mastery, updated_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (user_id, concept_id) DO UPDATE
		   SET p_mastery=excluded.p_mastery, updated_at=excluded.updated_at`,
		userID, conceptID, p, db.Millis(at))
	return err
}

func (t *statsTx) AppendEvent(ctx context.Context, typ, key string, data any) error {
	return t.events.Append(ctx, typ, key, data)
}

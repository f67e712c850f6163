package dashboard

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/quazian/internal/db"
	"github.com/mind-engage/quazian/internal/grading"
)

var (
	ErrNotStudent     = errors.New("unauthorized")
	ErrForbiddenClass = errors.New("forbidden class")
)

// SQLStore reads dashboard data. Independent reads run concurrently.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(sqlDB *sql.DB) *SQLStore { return &SQLStore{db: sqlDB} }

func (s *SQLStore) studentClass(ctx context.Context, userID string) (string, error) {
	var classID string
	err := s.db.QueryRowContext(ctx, `SELECT class_id FROM student_profiles WHERE user_id=$1`, userID).Scan(&classID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotStudent
	}
	return classID, err
}

// StudentStats returns the student's class grade and latest attempts.
func (s *SQLStore) StudentStats(ctx context.Context, userID string) (StudentStats, error) {
	classID, err := s.studentClass(ctx, userID)
	if err != nil {
		return StudentStats{}, err
	}
	return s.studentStats(ctx, userID, classID)
}

func (s *SQLStore) studentStats(ctx context.Context, userID, classID string) (StudentStats, error) {
	out := StudentStats{Attempts: []AttemptSummary{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var zMean, note float64
		err := s.db.QueryRowContext(gctx,
			`SELECT z_mean, note_on20 FROM student_stats WHERE user_id=$1 AND class_id=$2`,
			userID, classID).Scan(&zMean, &note)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out.ZMean, out.FinalNoteOn20 = &zMean, &note
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT a.created_at, q.week_key, q.slot, a.normalized_score, a.z_score, a.note_on20
			 FROM attempts a JOIN quizzes q ON q.id = a.quiz_id
			 WHERE a.user_id=$1 ORDER BY a.created_at DESC, a.id DESC LIMIT $2`, userID, HistoryLimit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				a  AttemptSummary
				ms int64
			)
			if err := rows.Scan(&ms, &a.WeekKey, &a.Slot, &a.Score, &a.Z, &a.NoteOn20); err != nil {
				return err
			}
			a.CreatedAt = db.FromMillis(ms)
			out.Attempts = append(out.Attempts, a)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return StudentStats{}, err
	}
	return out, nil
}

// StudentDashboard combines the grade summary with mastery lists for the
// concepts of the student's class the student has been assessed on.
func (s *SQLStore) StudentDashboard(ctx context.Context, userID string, by ConceptSort, filter ConceptFilter) (StudentDashboard, error) {
	classID, err := s.studentClass(ctx, userID)
	if err != nil {
		return StudentDashboard{}, err
	}

	var (
		stats    StudentStats
		concepts []MasteryConcept
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = s.studentStats(gctx, userID, classID)
		return err
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT c.id, c.subject, c.title, cm.p_mastery
			 FROM concept_mastery cm
			 JOIN concepts c ON c.id = cm.concept_id
			 JOIN class_concepts cc ON cc.concept_id = c.id AND cc.class_id = $2
			 WHERE cm.user_id = $1`, userID, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c MasteryConcept
			if err := rows.Scan(&c.ID, &c.Subject, &c.Title, &c.PMastery); err != nil {
				return err
			}
			concepts = append(concepts, c)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return StudentDashboard{}, err
	}

	out := StudentDashboard{
		Stats:    stats,
		Concepts: BuildConceptLists(concepts, by, filter),
		Sort:     by,
		Filter:   filter,
	}
	if len(stats.Attempts) > 0 {
		latest := stats.Attempts[0]
		out.Latest = &latest
	}
	return out, nil
}

// ProfessorDashboard aggregates one of the professor's classes. An empty
// classID selects the first class by name; a class the professor does not
// own yields ErrForbiddenClass. A professor without classes gets an empty
// dashboard.
func (s *SQLStore) ProfessorDashboard(ctx context.Context, profID, classID string, by StudentSort) (ProfessorDashboard, error) {
	classIDs, err := s.profClasses(ctx, profID)
	if err != nil {
		return ProfessorDashboard{}, err
	}
	resolved, forbidden := ResolveClass(classIDs, classID)
	if forbidden {
		return ProfessorDashboard{}, ErrForbiddenClass
	}
	if resolved == "" {
		return ProfessorDashboard{Sort: by, StudentRows: []StudentRow{}, ConceptRows: []ConceptRow{}}, nil
	}
	data, err := s.classData(ctx, resolved)
	if err != nil {
		return ProfessorDashboard{}, err
	}
	out := BuildProfessorDashboard(data, by)
	out.ClassID = resolved
	return out, nil
}

func (s *SQLStore) profClasses(ctx context.Context, profID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM classes WHERE prof_id=$1 ORDER BY name, id`, profID)
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

func (s *SQLStore) classData(ctx context.Context, classID string) (ClassData, error) {
	d := ClassData{
		Stats:     map[string]grading.StudentMean{},
		Masteries: map[string]map[string]float64{},
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT u.id, sp.name, u.email FROM student_profiles sp
			 JOIN users u ON u.id = sp.user_id
			 WHERE sp.class_id=$1 ORDER BY sp.name, u.id`, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var st ClassStudent
			if err := rows.Scan(&st.UserID, &st.Name, &st.Email); err != nil {
				return err
			}
			d.Students = append(d.Students, st)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT a.user_id, a.quiz_id, a.normalized_score, a.z_score, a.created_at
			 FROM attempts a JOIN quizzes q ON q.id = a.quiz_id
			 WHERE q.class_id=$1`, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				a  ClassAttempt
				z  sql.NullFloat64
				ms int64
			)
			if err := rows.Scan(&a.UserID, &a.QuizID, &a.NormalizedScore, &z, &ms); err != nil {
				return err
			}
			if z.Valid {
				a.ZScore = &z.Float64
			}
			a.CreatedAt = db.FromMillis(ms)
			d.Attempts = append(d.Attempts, a)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT user_id, z_mean, note_on20 FROM student_stats WHERE class_id=$1`, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m grading.StudentMean
			if err := rows.Scan(&m.UserID, &m.ZMean, &m.NoteOn20); err != nil {
				return err
			}
			d.Stats[m.UserID] = m
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT c.id, c.subject, c.title FROM concepts c
			 JOIN class_concepts cc ON cc.concept_id = c.id
			 WHERE cc.class_id=$1 ORDER BY c.subject, c.title, c.id`, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c ClassConcept
			if err := rows.Scan(&c.ID, &c.Subject, &c.Title); err != nil {
				return err
			}
			d.Concepts = append(d.Concepts, c)
		}
		return rows.Err()
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx,
			`SELECT cm.user_id, cm.concept_id, cm.p_mastery FROM concept_mastery cm
			 JOIN student_profiles sp ON sp.user_id = cm.user_id
			 JOIN class_concepts cc ON cc.concept_id = cm.concept_id AND cc.class_id = sp.class_id
			 WHERE sp.class_id=$1`, classID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				userID, conceptID string
				p                 float64
			)
			if err := rows.Scan(&userID, &conceptID, &p); err != nil {
				return err
			}
			if d.Masteries[userID] == nil {
				d.Masteries[userID] = map[string]float64{}
			}
			d.Masteries[userID][conceptID] = p
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return ClassData{}, err
	}
	return d, nil
}

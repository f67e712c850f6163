package roster

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/quazian/internal/db"
	syncx "github.com/mind-engage/quazian/internal/sync"
)

const (
	EventRosterImported   = "roster.imported"
	EventStudentActivated = "student.activated"
	EventConceptSaved     = "concept.saved"
	EventConceptDeleted   = "concept.deleted"
)

// NewInvitationToken returns 32 random bytes, hex encoded.
func NewInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	now    func() time.Time
	token  func() (string, error)
}

func NewSQLStore(sqlDB *sql.DB, events *syncx.EventRepo) *SQLStore {
	if events == nil {
		events = syncx.NewEventRepo(sqlDB)
	}
	return &SQLStore{db: sqlDB, events: events, now: time.Now, token: NewInvitationToken}
}

// WithClock returns a copy using now for timestamps and expiry checks.
func (s *SQLStore) WithClock(now func() time.Time) *SQLStore {
	cp := *s
	cp.now = now
	return &cp
}

/* ---- users ---- */

func (s *SQLStore) UserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, status, created_at FROM users WHERE email=$1`,
		strings.ToLower(strings.TrimSpace(email))))
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, status, created_at FROM users WHERE id=$1`, id))
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u       User
		role    string
		status  string
		created int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &status, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	u.Role, u.Status, u.CreatedAt = Role(role), Status(status), db.FromMillis(created)
	return u, nil
}

// CreateProfessor inserts an active professor account.
func (s *SQLStore) CreateProfessor(ctx context.Context, email, passwordHash string) (User, error) {
	u := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Role:         RoleProf,
		Status:       StatusActive,
		CreatedAt:    s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, status, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), string(u.Status), db.Millis(u.CreatedAt))
	if db.IsUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	return u, err
}

/* ---- classes & students ---- */

func (s *SQLStore) ListClasses(ctx context.Context, profID string) ([]Class, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM classes WHERE prof_id=$1 ORDER BY name, id`, profID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Class{}
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// OwnsClass reports whether classID belongs to profID.
func (s *SQLStore) OwnsClass(ctx context.Context, profID, classID string) (bool, error) {
	return ownsClasses(ctx, s.db, profID, []string{classID})
}

func ownsClasses(ctx context.Context, ex db.Execer, profID string, classIDs []string) (bool, error) {
	for _, id := range classIDs {
		var n int
		err := ex.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM classes WHERE id=$1 AND prof_id=$2`, id, profID).Scan(&n)
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
	}
	return true, nil
}

// ListStudents returns the professor's students ordered by class then name,
// optionally restricted to one class.
func (s *SQLStore) ListStudents(ctx context.Context, profID, classID string) ([]StudentRow, error) {
	q := `SELECT u.id, sp.name, c.id, c.name, u.email, u.status,
	        (SELECT i.token FROM invitations i
	          WHERE i.user_id = u.id AND i.used_at IS NULL
	          ORDER BY i.created_at DESC LIMIT 1)
	      FROM student_profiles sp
	      JOIN users u ON u.id = sp.user_id
	      JOIN classes c ON c.id = sp.class_id
	      WHERE c.prof_id = $1`
	args := []any{profID}
	if classID != "" {
		q += ` AND c.id = $2`
		args = append(args, classID)
	}
	q += ` ORDER BY c.name, sp.name, u.id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StudentRow{}
	for rows.Next() {
		var (
			r      StudentRow
			status string
			token  sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.ClassID, &r.ClassName, &r.Email, &status, &token); err != nil {
			return nil, err
		}
		r.Status = "activated"
		if Status(status) == StatusInvited {
			r.Status = "invited"
			if token.Valid {
				link := InvitationLink(token.String)
				r.InvitationLink = &link
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ImportStudents applies parsed roster rows in one transaction. Classes are
// created by name; new students get an INVITED account and an invitation;
// existing students of the same professor are moved and renamed.
func (s *SQLStore) ImportStudents(ctx context.Context, profID string, rows []ImportRow) (ImportSummary, error) {
	sum := ImportSummary{InvalidRows: []InvalidRow{}, Invitations: []IssuedInvitation{}}
	now := s.now()
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		classes := map[string]string{}
		for _, r := range rows {
			var (
				userID, role string
				owner        sql.NullString
			)
			err := tx.QueryRowContext(ctx,
				`SELECT u.id, u.role, c.prof_id FROM users u
				 LEFT JOIN student_profiles sp ON sp.user_id = u.id
				 LEFT JOIN classes c ON c.id = sp.class_id
				 WHERE u.email=$1`, r.Email).Scan(&userID, &role, &owner)
			exists := err == nil
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if exists && (Role(role) != RoleStudent || (owner.Valid && owner.String != profID)) {
				sum.InvalidRows = append(sum.InvalidRows, InvalidRow{Line: r.Line, Email: r.Email, Reason: ReasonEmailTaken})
				continue
			}

			classID, ok := classes[r.ClassName]
			if !ok {
				if classID, err = upsertClass(ctx, tx, profID, r.ClassName, now); err != nil {
					return err
				}
				classes[r.ClassName] = classID
			}

			if !exists {
				inv, err := s.createStudent(ctx, tx, r, classID, now)
				if err != nil {
					return err
				}
				sum.Created++
				sum.Invitations = append(sum.Invitations, inv)
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO student_profiles (user_id, class_id, name) VALUES ($1,$2,$3)
				 ON CONFLICT (user_id) DO UPDATE SET class_id=excluded.class_id, name=excluded.name`,
				userID, classID, r.Name); err != nil {
				return err
			}
			sum.Updated++
		}
		return s.events.On(tx).Append(ctx, EventRosterImported, profID, map[string]int{
			"created": sum.Created, "updated": sum.Updated,
		})
	})
	if err != nil {
		return ImportSummary{}, err
	}
	return sum, nil
}

func upsertClass(ctx context.Context, tx *sql.Tx, profID, name string, now time.Time) (string, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO classes (id, name, prof_id, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (prof_id, name) DO NOTHING`,
		uuid.NewString(), name, profID, db.Millis(now)); err != nil {
		return "", err
	}
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM classes WHERE prof_id=$1 AND name=$2`, profID, name).Scan(&id)
	return id, err
}

func (s *SQLStore) createStudent(ctx context.Context, tx *sql.Tx, r ImportRow, classID string, now time.Time) (IssuedInvitation, error) {
	userID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, status, created_at) VALUES ($1,$2,'',$3,$4,$5)`,
		userID, r.Email, string(RoleStudent), string(StatusInvited), db.Millis(now)); err != nil {
		return IssuedInvitation{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO student_profiles (user_id, class_id, name) VALUES ($1,$2,$3)`,
		userID, classID, r.Name); err != nil {
		return IssuedInvitation{}, err
	}
	token, err := s.issueInvitation(ctx, tx, userID, now)
	if err != nil {
		return IssuedInvitation{}, err
	}
	return IssuedInvitation{Email: r.Email, Link: InvitationLink(token)}, nil
}

func (s *SQLStore) issueInvitation(ctx context.Context, ex db.Execer, userID string, now time.Time) (string, error) {
	token, err := s.token()
	if err != nil {
		return "", fmt.Errorf("invitation token: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO invitations (token, user_id, expires_at, created_at) VALUES ($1,$2,$3,$4)`,
		token, userID, db.Millis(now.Add(InvitationTTL)), db.Millis(now))
	return token, err
}

/* ---- invitations ---- */

// RegenerateInvitation retires the student's unused tokens and issues a new
// one. Only INVITED students of the professor's classes qualify.
func (s *SQLStore) RegenerateInvitation(ctx context.Context, profID, studentID string) (string, error) {
	now := s.now()
	var link string
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users u
			 JOIN student_profiles sp ON sp.user_id = u.id
			 JOIN classes c ON c.id = sp.class_id
			 WHERE u.id=$1 AND c.prof_id=$2 AND u.status=$3`,
			studentID, profID, string(StatusInvited)).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE invitations SET used_at=$1 WHERE user_id=$2 AND used_at IS NULL`,
			db.Millis(now), studentID); err != nil {
			return err
		}
		token, err := s.issueInvitation(ctx, tx, studentID, now)
		if err != nil {
			return err
		}
		link = InvitationLink(token)
		return nil
	})
	return link, err
}

// LookupInvitation returns a pending invitation, or ErrInvalidInvitation when
// the token is unknown, used or expired.
func (s *SQLStore) LookupInvitation(ctx context.Context, token string) (Invitation, error) {
	return lookupInvitation(ctx, s.db, token, s.now())
}

func lookupInvitation(ctx context.Context, ex db.Execer, token string, now time.Time) (Invitation, error) {
	var (
		inv     Invitation
		expires int64
		usedAt  sql.NullInt64
		name    sql.NullString
	)
	err := ex.QueryRowContext(ctx,
		`SELECT i.token, i.user_id, u.email, sp.name, i.expires_at, i.used_at
		 FROM invitations i
		 JOIN users u ON u.id = i.user_id
		 LEFT JOIN student_profiles sp ON sp.user_id = u.id
		 WHERE i.token=$1`, token).Scan(&inv.Token, &inv.UserID, &inv.Email, &name, &expires, &usedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invitation{}, ErrInvalidInvitation
	}
	if err != nil {
		return Invitation{}, err
	}
	inv.Name = name.String
	inv.ExpiresAt = db.FromMillis(expires)
	if usedAt.Valid || !now.Before(inv.ExpiresAt) {
		return Invitation{}, ErrInvalidInvitation
	}
	return inv, nil
}

// HasPendingInvitation reports whether the user holds an unused, unexpired
// invitation.
func (s *SQLStore) HasPendingInvitation(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invitations WHERE user_id=$1 AND used_at IS NULL AND expires_at > $2`,
		userID, db.Millis(s.now())).Scan(&n)
	return n > 0, err
}

// AcceptInvitation sets the password, activates the account and consumes
// the token atomically.
func (s *SQLStore) AcceptInvitation(ctx context.Context, token, passwordHash string) (Invitation, error) {
	now := s.now()
	var inv Invitation
	err := db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		var err error
		if inv, err = lookupInvitation(ctx, tx, token, now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE invitations SET used_at=$1 WHERE token=$2 AND used_at IS NULL`, db.Millis(now), token)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrInvalidInvitation
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET password_hash=$1, status=$2 WHERE id=$3`,
			passwordHash, string(StatusActive), inv.UserID); err != nil {
			return err
		}
		return s.events.On(tx).Append(ctx, EventStudentActivated, inv.UserID, map[string]string{"email": inv.Email})
	})
	return inv, err
}

/* ---- concepts ---- */

func (s *SQLStore) CreateConcept(ctx context.Context, profID string, in ConceptInput) (string, error) {
	id := uuid.NewString()
	now := db.Millis(s.now())
	distractors, err := json.Marshal(in.Distractors)
	if err != nil {
		return "", err
	}
	err = db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		ok, err := ownsClasses(ctx, tx, profID, in.ClassIDs)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbiddenClass
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO concepts (id, prof_id, subject, title, correct_answer, distractors_json, date_seen, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
			id, profID, in.Subject, in.Title, in.CorrectAnswer, string(distractors), db.Millis(in.DateSeen), now); err != nil {
			return err
		}
		if err := assignClasses(ctx, tx, id, in.ClassIDs); err != nil {
			return err
		}
		return s.events.On(tx).Append(ctx, EventConceptSaved, id, map[string]any{"classIds": in.ClassIDs})
	})
	return id, err
}

func (s *SQLStore) UpdateConcept(ctx context.Context, profID, conceptID string, in ConceptInput) error {
	distractors, err := json.Marshal(in.Distractors)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		ok, err := ownsClasses(ctx, tx, profID, in.ClassIDs)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbiddenClass
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE concepts SET subject=$1, title=$2, correct_answer=$3, distractors_json=$4, date_seen=$5, updated_at=$6
			 WHERE id=$7 AND prof_id=$8`,
			in.Subject, in.Title, in.CorrectAnswer, string(distractors), db.Millis(in.DateSeen), db.Millis(s.now()),
			conceptID, profID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM class_concepts WHERE concept_id=$1`, conceptID); err != nil {
			return err
		}
		if err := assignClasses(ctx, tx, conceptID, in.ClassIDs); err != nil {
			return err
		}
		return s.events.On(tx).Append(ctx, EventConceptSaved, conceptID, map[string]any{"classIds": in.ClassIDs})
	})
}

func assignClasses(ctx context.Context, tx *sql.Tx, conceptID string, classIDs []string) error {
	for _, c := range classIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO class_concepts (class_id, concept_id) VALUES ($1,$2)`, c, conceptID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteConcept removes the concept and its mastery rows. Questions already
// generated from it keep their copied text.
func (s *SQLStore) DeleteConcept(ctx context.Context, profID, conceptID string) error {
	return db.WithTx(ctx, s.db, nil, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM concepts WHERE id=$1 AND prof_id=$2`, conceptID, profID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM concept_mastery WHERE concept_id=$1`, conceptID); err != nil {
			return err
		}
		return s.events.On(tx).Append(ctx, EventConceptDeleted, conceptID, map[string]string{"profId": profID})
	})
}

func (s *SQLStore) ListConcepts(ctx context.Context, profID string, f ConceptFilter) ([]ConceptRecord, error) {
	q := `SELECT id, subject, title, correct_answer, distractors_json, date_seen, created_at
	      FROM concepts WHERE prof_id=$1`
	args := []any{profID}
	if f.ClassID != "" {
		args = append(args, f.ClassID)
		q += fmt.Sprintf(` AND EXISTS (SELECT 1 FROM class_concepts cc WHERE cc.concept_id = concepts.id AND cc.class_id=$%d)`, len(args))
	}
	if f.Subject != "" {
		args = append(args, f.Subject)
		q += fmt.Sprintf(` AND subject=$%d`, len(args))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		q += fmt.Sprintf(` AND LOWER(title) LIKE $%d`, len(args))
	}
	if f.Sort == SortDateSeenAsc {
		q += ` ORDER BY date_seen ASC, created_at ASC, id`
	} else {
		q += ` ORDER BY date_seen DESC, created_at DESC, id`
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []ConceptRecord{}
	index := map[string]int{}
	for rows.Next() {
		var (
			c             ConceptRecord
			raw           string
			seen, created int64
		)
		if err := rows.Scan(&c.ID, &c.Subject, &c.Title, &c.CorrectAnswer, &raw, &seen, &created); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &c.Distractors); err != nil {
			rows.Close()
			return nil, fmt.Errorf("concept %s distractors: %w", c.ID, err)
		}
		c.DateSeen, c.CreatedAt = db.FromMillis(seen), db.FromMillis(created)
		c.Classes = []Class{}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links, err := s.db.QueryContext(ctx,
		`SELECT cc.concept_id, c.id, c.name FROM class_concepts cc
		 JOIN classes c ON c.id = cc.class_id
		 WHERE c.prof_id=$1 ORDER BY c.name, c.id`, profID)
	if err != nil {
		return nil, err
	}
	defer links.Close()
	for links.Next() {
		var (
			conceptID string
			c         Class
		)
		if err := links.Scan(&conceptID, &c.ID, &c.Name); err != nil {
			return nil, err
		}
		if i, ok := index[conceptID]; ok {
			out[i].Classes = append(out[i].Classes, c)
		}
	}
	return out, links.Err()
}

// MostRecentClass is the class whose concept was added last, used to
// preselect the concept form. Empty when the professor has no concepts.
func (s *SQLStore) MostRecentClass(ctx context.Context, profID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT cc.class_id FROM concepts co
		 JOIN class_concepts cc ON cc.concept_id = co.id
		 WHERE co.prof_id=$1 ORDER BY co.created_at DESC, co.id DESC LIMIT 1`, profID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

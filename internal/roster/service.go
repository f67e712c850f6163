package roster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/quazian/internal/platform/logger"
	"github.com/mind-engage/quazian/internal/platform/validate"
	"github.com/mind-engage/quazian/internal/storage"
)

// MinPasswordLen applies to invited students and professors alike.
const MinPasswordLen = 8

// MaxRosterBytes caps a roster upload.
const MaxRosterBytes = 2 << 20

// Service wraps the store with the steps that are not pure SQL: parsing and
// archiving uploads, and hashing passwords.
type Service struct {
	Store *SQLStore
	blobs storage.BlobStore
	log   *logger.Logger
	now   func() time.Time
}

// NewService builds a roster service. blobs may be nil to skip archiving.
func NewService(store *SQLStore, blobs storage.BlobStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{Store: store, blobs: blobs, log: log, now: store.now}
}

// ImportStudents archives the raw upload, parses it and applies the valid rows.
func (s *Service) ImportStudents(ctx context.Context, profID string, r io.Reader) (ImportSummary, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxRosterBytes+1))
	if err != nil {
		return ImportSummary{}, err
	}
	if len(raw) > MaxRosterBytes {
		return ImportSummary{}, ErrRosterTooLarge
	}

	rows, invalid, err := ParseStudentsCSV(bytes.NewReader(raw))
	if err != nil {
		return ImportSummary{}, err
	}

	var archiveKey string
	if s.blobs != nil {
		archiveKey, err = s.blobs.Put(ctx, storage.RosterKey(profID, s.now()), bytes.NewReader(raw))
		if err != nil {
			s.log.Warn("roster archive failed", "prof", profID, "err", err)
			archiveKey = ""
		}
	}

	sum, err := s.Store.ImportStudents(ctx, profID, rows)
	if err != nil {
		return ImportSummary{}, err
	}
	sum.InvalidRows = append(sum.InvalidRows, invalid...)
	sort.SliceStable(sum.InvalidRows, func(i, j int) bool { return sum.InvalidRows[i].Line < sum.InvalidRows[j].Line })
	sum.ArchiveKey = archiveKey

	s.log.Info("roster imported", "prof", profID, "created", sum.Created, "updated", sum.Updated, "invalid", len(sum.InvalidRows))
	return sum, nil
}

// AcceptInvitation sets the student's password and activates the account.
func (s *Service) AcceptInvitation(ctx context.Context, token, password string) (Invitation, error) {
	if len(password) < MinPasswordLen {
		return Invitation{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Invitation{}, err
	}
	inv, err := s.Store.AcceptInvitation(ctx, token, string(hash))
	if err != nil {
		return Invitation{}, err
	}
	s.log.Info("student activated", "user", inv.UserID)
	return inv, nil
}

// AddProfessor creates an active professor account.
func (s *Service) AddProfessor(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Validate.Var(email, "required,email"); err != nil {
		return User{}, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < MinPasswordLen {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.Store.CreateProfessor(ctx, email, string(hash))
}

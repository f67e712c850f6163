// Package roster manages professors' classes, students, invitations and
// concept banks.
package roster

import (
	"errors"
	"time"
)

type Role string

const (
	RoleProf    Role = "PROF"
	RoleStudent Role = "STUDENT"
)

type Status string

const (
	StatusInvited Status = "INVITED"
	StatusActive  Status = "ACTIVE"
)

// InvitationTTL is how long an invitation link stays valid.
const InvitationTTL = 14 * 24 * time.Hour

// MinDistractors is the smallest distractor bank a concept may have.
const MinDistractors = 9

var (
	ErrNotFound          = errors.New("not found")
	ErrForbiddenClass    = errors.New("class does not belong to professor")
	ErrEmailTaken        = errors.New("email already in use")
	ErrInvalidInvitation = errors.New("invitation token is invalid or expired")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
	ErrMissingColumn     = errors.New("missing column")
	ErrRosterTooLarge    = errors.New("roster file too large")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Class struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StudentRow is one student as listed to their professor.
type StudentRow struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	ClassID        string  `json:"classId"`
	ClassName      string  `json:"className"`
	Email          string  `json:"email"`
	Status         string  `json:"status"` // invited | activated
	InvitationLink *string `json:"invitationLink"`
}

// Invitation is a pending invitation as shown on the accept page.
type Invitation struct {
	Token     string    `json:"-"`
	UserID    string    `json:"-"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// InvitationLink is the relative URL students open to set a password.
func InvitationLink(token string) string { return "/invite/" + token }

type InvalidRow struct {
	Line   int    `json:"line"`
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

type IssuedInvitation struct {
	Email string `json:"email"`
	Link  string `json:"link"`
}

type ImportSummary struct {
	Created     int                `json:"created"`
	Updated     int                `json:"updated"`
	InvalidRows []InvalidRow       `json:"invalidRows"`
	Invitations []IssuedInvitation `json:"invitations"`
	ArchiveKey  string             `json:"archiveKey,omitempty"`
}

// ConceptRecord is a concept as listed to its professor.
type ConceptRecord struct {
	ID            string    `json:"id"`
	Classes       []Class   `json:"classes"`
	Subject       string    `json:"subject"`
	Title         string    `json:"title"`
	CorrectAnswer string    `json:"correctAnswer"`
	Distractors   []string  `json:"distractors"`
	DateSeen      time.Time `json:"dateSeen"`
	CreatedAt     time.Time `json:"createdAt"`
}

type ConceptSort string

const (
	SortDateSeenDesc ConceptSort = "dateSeenDesc"
	SortDateSeenAsc  ConceptSort = "dateSeenAsc"
)

type ConceptFilter struct {
	ClassID string
	Search  string
	Subject string
	Sort    ConceptSort
}

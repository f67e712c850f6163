package roster

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mind-engage/quazian/internal/platform/validate"
)

// DistractorList accepts either a JSON array of strings or one
// newline-separated string.
type DistractorList []string

func (d *DistractorList) UnmarshalJSON(b []byte) error {
	var arr []string
	if err := json.Unmarshal(b, &arr); err == nil {
		*d = arr
		return nil
	}
	var text string
	if err := json.Unmarshal(b, &text); err != nil {
		return fmt.Errorf("distractors: expected array or string")
	}
	*d = strings.Split(text, "\n")
	return nil
}

// ConceptPayload is the body of a concept create or update.
type ConceptPayload struct {
	ClassID       string         `json:"classId"`
	ClassIDs      []string       `json:"classIds"`
	Subject       string         `json:"subject"`
	Title         string         `json:"title"`
	CorrectAnswer string         `json:"correctAnswer"`
	Distractors   DistractorList `json:"distractors"`
	DateSeen      string         `json:"dateSeen"`
}

// ConceptInput is a validated, normalized concept.
type ConceptInput struct {
	ClassIDs      []string  `json:"classIds" validate:"min=1,dive,notblank"`
	Subject       string    `json:"subject" validate:"notblank"`
	Title         string    `json:"title" validate:"notblank"`
	CorrectAnswer string    `json:"correctAnswer" validate:"notblank"`
	Distractors   []string  `json:"distractors" validate:"min=9"`
	DateSeen      time.Time `json:"dateSeen"`
}

// ConceptValidationError lists the offending fields.
type ConceptValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ConceptValidationError) Error() string { return e.Message }

// ValidateConcept trims fields, splits and drops blank distractors, merges
// classId into classIds and parses dateSeen (RFC 3339 or YYYY-MM-DD).
func ValidateConcept(p ConceptPayload) (ConceptInput, error) {
	in := ConceptInput{
		Subject:       strings.TrimSpace(p.Subject),
		Title:         strings.TrimSpace(p.Title),
		CorrectAnswer: strings.TrimSpace(p.CorrectAnswer),
	}
	seen := map[string]bool{}
	for _, id := range append([]string{p.ClassID}, p.ClassIDs...) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		in.ClassIDs = append(in.ClassIDs, id)
	}
	for _, d := range p.Distractors {
		if d = strings.TrimSpace(d); d != "" {
			in.Distractors = append(in.Distractors, d)
		}
	}

	if err := validate.Struct(in); err != nil {
		fields := validate.Fields(err)
		msg := "Missing required fields."
		if _, ok := fields["distractors"]; ok && len(fields) == 1 {
			msg = fmt.Sprintf("At least %d distractors are required.", MinDistractors)
		}
		return ConceptInput{}, &ConceptValidationError{Message: msg, Fields: fields}
	}

	raw := strings.TrimSpace(p.DateSeen)
	if raw == "" {
		return ConceptInput{}, &ConceptValidationError{Message: "Missing required fields.", Fields: map[string]string{"dateSeen": "dateSeen is a required field"}}
	}
	t, err := parseDate(raw)
	if err != nil {
		return ConceptInput{}, &ConceptValidationError{Message: "Invalid dateSeen.", Fields: map[string]string{"dateSeen": err.Error()}}
	}
	in.DateSeen = t
	return in, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

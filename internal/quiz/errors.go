package quiz

import "errors"

// Submission rejection reasons, returned verbatim to clients.
const (
	ReasonInvalidPayload      = "invalid_payload"
	ReasonAnswerCountMismatch = "answer_count_mismatch"
	ReasonDuplicateQuestion   = "duplicate_question"
	ReasonQuestionMismatch    = "question_mismatch"
	ReasonDistributionInvalid = "distribution_invalid"
)

var (
	ErrQuizNotFound     = errors.New("quiz_not_found")
	ErrAlreadySubmitted = errors.New("already_submitted")
	ErrNotStudent       = errors.New("unauthorized")
	ErrAlreadyPopulated = errors.New("quiz already populated")
)

// ValidationError rejects a submission before any state change.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// IsValidation reports whether err is a submission validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

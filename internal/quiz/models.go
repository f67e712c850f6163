package quiz

import "time"

// Slot is one of the two quiz windows of an ISO week.
type Slot string

const (
	SlotA Slot = "A" // Monday to Wednesday
	SlotB Slot = "B" // Thursday to Sunday
)

func (s Slot) Valid() bool { return s == SlotA || s == SlotB }

// Concept is a concept from a class's pool, annotated for selection.
type Concept struct {
	ID            string
	Subject       string
	Title         string
	CorrectAnswer string
	Distractors   []string
	DateSeen      time.Time
	// AvgMastery is the mean pMastery across the class's students, nil when
	// nobody has a mastery record yet.
	AvgMastery *float64
}

type Question struct {
	ID              string   `json:"id"`
	QuizID          string   `json:"quizId"`
	ConceptID       string   `json:"conceptId"`
	Order           int      `json:"order"`
	Subject         string   `json:"subject"`
	Title           string   `json:"title"`
	Options         []string `json:"options"`
	CorrectIndex    int      `json:"correctIndex"`
	OptionSignature string   `json:"optionSignature"`
}

type Quiz struct {
	ID        string     `json:"id"`
	ClassID   string     `json:"classId"`
	WeekKey   string     `json:"weekKey"`
	Slot      Slot       `json:"slot"`
	CreatedAt time.Time  `json:"createdAt"`
	Questions []Question `json:"questions,omitempty"`
}

type Attempt struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	QuizID          string    `json:"quizId"`
	Score           float64   `json:"score"`
	NormalizedScore float64   `json:"normalizedScore"`
	ZScore          float64   `json:"zScore"`
	NoteOn20        float64   `json:"noteOn20"`
	CreatedAt       time.Time `json:"createdAt"`
}

// StudentQuestion is a question as served to students, without its key.
type StudentQuestion struct {
	ID        string   `json:"id"`
	ConceptID string   `json:"conceptId"`
	Order     int      `json:"order"`
	Subject   string   `json:"subject"`
	Title     string   `json:"title"`
	Options   []string `json:"options"`
}

type StudentQuiz struct {
	QuizID    string            `json:"quizId"`
	WeekKey   string            `json:"weekKey"`
	Slot      Slot              `json:"slot"`
	CreatedAt time.Time         `json:"createdAt"`
	Submitted bool              `json:"submitted"`
	Questions []StudentQuestion `json:"questions"`
}

// StudentView strips correct indexes and signatures.
func (q Quiz) StudentView() StudentQuiz {
	out := StudentQuiz{
		QuizID:    q.ID,
		WeekKey:   q.WeekKey,
		Slot:      q.Slot,
		CreatedAt: q.CreatedAt,
		Questions: make([]StudentQuestion, 0, len(q.Questions)),
	}
	for _, qq := range q.Questions {
		out.Questions = append(out.Questions, StudentQuestion{
			ID:        qq.ID,
			ConceptID: qq.ConceptID,
			Order:     qq.Order,
			Subject:   qq.Subject,
			Title:     qq.Title,
			Options:   qq.Options,
		})
	}
	return out
}

package quiz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// BuiltOptions is one concrete arrangement of a concept's answer options.
type BuiltOptions struct {
	Options         []string
	CorrectIndex    int
	OptionSignature string
}

// BuildQuestionOptions deterministically picks three distractors and shuffles
// them with the correct answer, seeded by quizID, the concept id and salt.
// ok is false when the concept cannot yield four distinct options.
func BuildQuestionOptions(c Concept, quizID string, salt int) (BuiltOptions, bool) {
	rng := NewSeededRNG(fmt.Sprintf("%s:%s:%d", quizID, c.ID, salt))

	pool := distractorPool(c.Distractors, c.CorrectAnswer)
	picked := sampleUnique(pool, 3, rng)
	if len(picked) < 3 {
		return BuiltOptions{}, false
	}

	options := shuffle(append([]string{c.CorrectAnswer}, picked...), rng)
	distinct := make(map[string]struct{}, len(options))
	for _, o := range options {
		distinct[o] = struct{}{}
	}
	if len(distinct) != 4 {
		return BuiltOptions{}, false
	}

	correct := -1
	for i, o := range options {
		if o == c.CorrectAnswer {
			correct = i
			break
		}
	}
	if correct < 0 {
		return BuiltOptions{}, false
	}
	return BuiltOptions{
		Options:         options,
		CorrectIndex:    correct,
		OptionSignature: OptionSignature(c.ID, options),
	}, true
}

// OptionSignature identifies a concept's option arrangement.
func OptionSignature(conceptID string, options []string) string {
	sum := sha256.Sum256([]byte(conceptID + ":" + strings.Join(options, "|")))
	return hex.EncodeToString(sum[:])
}

// distractorPool dedupes the non-blank distractors in order, minus the
// correct answer.
func distractorPool(distractors []string, correct string) []string {
	seen := make(map[string]bool, len(distractors))
	out := make([]string, 0, len(distractors))
	for _, d := range distractors {
		if strings.TrimSpace(d) == "" || seen[d] {
			continue
		}
		seen[d] = true
		if d == correct {
			continue
		}
		out = append(out, d)
	}
	return out
}

func sampleUnique(items []string, count int, rng *SeededRNG) []string {
	pool := append([]string(nil), items...)
	selected := make([]string, 0, count)
	for len(pool) > 0 && len(selected) < count {
		i := rng.Intn(len(pool))
		selected = append(selected, pool[i])
		pool = append(pool[:i], pool[i+1:]...)
	}
	return selected
}

func shuffle(items []string, rng *SeededRNG) []string {
	out := append([]string(nil), items...)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

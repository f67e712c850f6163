package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/mind-engage/quazian/internal/probability"
)

// TypeProbabilityMCQ is a four-option question answered with a probability
// distribution.
const TypeProbabilityMCQ = "probability_mcq"

// DefaultScale multiplies a quiz's mean question score into normalizedScore.
const DefaultScale = probability.Size

var (
	ErrBadDistribution = errors.New("distribution must have four entries")
	ErrBadCorrectIndex = errors.New("correct index out of range")
)

// Q is the view of a question needed for grading.
type Q struct {
	Type         string
	CorrectIndex int
}

// Result is the outcome of grading one answer.
type Result struct {
	Score        float64
	CorrectIndex int
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, distribution []int) (Result, error)
}

// Grader routes by question type to the correct Strategy and totals quizzes.
type Grader interface {
	Grade(ctx context.Context, q Q, distribution []int) (Result, error)
	Total(scores []float64) (raw, normalized float64)
}

type defaultGrader struct {
	strategies map[string]Strategy
	scale      float64
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, distribution []int) (Result, error) {
	typ := q.Type
	if typ == "" {
		typ = TypeProbabilityMCQ
	}
	s, ok := g.strategies[typ]
	if !ok {
		return Result{}, fmt.Errorf("no strategy for question type %q", typ)
	}
	return s.Grade(ctx, q, distribution)
}

// Total returns the mean question score and that mean times the scale.
// An empty quiz totals zero.
func (g *defaultGrader) Total(scores []float64) (float64, float64) {
	if len(scores) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	raw := sum / float64(len(scores))
	return raw, raw * g.scale
}

// Engine options

type Option func(*config)

type config struct {
	Scale float64
}

func WithScale(f float64) Option { return func(c *config) { c.Scale = f } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{Scale: DefaultScale}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeProbabilityMCQ: brierStrategy{},
		},
		scale: cfg.Scale,
	}
}

// --- Strategies ---

type brierStrategy struct{}

func (brierStrategy) Grade(_ context.Context, q Q, distribution []int) (Result, error) {
	if len(distribution) != probability.Size {
		return Result{}, ErrBadDistribution
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= probability.Size {
		return Result{}, ErrBadCorrectIndex
	}
	return Result{Score: Brier(distribution, q.CorrectIndex), CorrectIndex: q.CorrectIndex}, nil
}

// Brier returns one minus the squared distance between the distribution (in
// percent) and the one-hot vector of correctIndex. For distributions summing
// to 100 the result lies in [-1, 1].
func Brier(distribution []int, correctIndex int) float64 {
	sq := 0.0
	for i, v := range distribution {
		target := 0.0
		if i == correctIndex {
			target = 1
		}
		d := float64(v)/100 - target
		sq += d * d
	}
	return 1 - sq
}

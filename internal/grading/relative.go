package grading

import "math"

// AttemptScore is one attempt's normalized score within a quiz.
type AttemptScore struct {
	ID              string
	NormalizedScore float64
}

// AttemptZ is an attempt's standing within its quiz.
type AttemptZ struct {
	ID       string
	ZScore   float64
	NoteOn20 float64
}

// StudentZ is one z-score earned by a student in a class.
type StudentZ struct {
	UserID string
	ZScore float64
}

// StudentMean is a student's mean z-score across a class's quizzes.
type StudentMean struct {
	UserID   string
	ZMean    float64
	NoteOn20 float64
}

// PopulationStats returns the mean and population standard deviation
// (divided by N). std is 0 for fewer than two values.
func PopulationStats(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) == 1 {
		return mean, 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// QuizZScores standardizes the attempts of one quiz. z is rounded to six
// decimals and is 0 when every score is equal.
func QuizZScores(attempts []AttemptScore) []AttemptZ {
	values := make([]float64, len(attempts))
	for i, a := range attempts {
		values[i] = a.NormalizedScore
	}
	mean, std := PopulationStats(values)

	out := make([]AttemptZ, len(attempts))
	for i, a := range attempts {
		z := 0.0
		if std != 0 {
			z = roundTo((a.NormalizedScore-mean)/std, 6)
		}
		out[i] = AttemptZ{ID: a.ID, ZScore: z, NoteOn20: ZMeanToNoteOn20(z)}
	}
	return out
}

// StudentZMeans averages each student's z-scores, in first-seen order.
func StudentZMeans(zs []StudentZ) []StudentMean {
	type acc struct {
		sum float64
		n   int
	}
	order := make([]string, 0)
	by := map[string]*acc{}
	for _, z := range zs {
		a, ok := by[z.UserID]
		if !ok {
			a = &acc{}
			by[z.UserID] = a
			order = append(order, z.UserID)
		}
		a.sum += z.ZScore
		a.n++
	}
	out := make([]StudentMean, 0, len(order))
	for _, id := range order {
		a := by[id]
		m := a.sum / float64(a.n)
		out = append(out, StudentMean{UserID: id, ZMean: m, NoteOn20: ZMeanToNoteOn20(m)})
	}
	return out
}

// ZMeanToNoteOn20 maps a mean z-score onto the 0–20 scale: 10 at the class
// mean, 4 points per standard deviation, clamped, rounded to 2 decimals.
func ZMeanToNoteOn20(zMean float64) float64 {
	return roundTo(math.Max(0, math.Min(20, 10+4*zMean)), 2)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

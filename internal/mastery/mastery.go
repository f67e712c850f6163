// Package mastery keeps a smoothed estimate of how well each student knows
// each concept.
package mastery

import "math"

const (
	// Default is assumed for a concept the student has never been tested on.
	Default = 0.5
	// Weight is the share of a new observation in the running estimate.
	Weight = 0.1
)

// Observation is the probability a student put on the correct option of a
// question testing ConceptID.
type Observation struct {
	ConceptID string
	PCorrect  float64
}

// Update folds one observation into the previous estimate. old is nil when
// there is no prior record.
func Update(old *float64, pCorrect float64) float64 {
	prev := Default
	if old != nil {
		prev = *old
	}
	return clamp((1-Weight)*prev + Weight*pCorrect)
}

// PCorrectByConcept averages observations per concept, in first-seen order.
func PCorrectByConcept(obs []Observation) ([]string, map[string]float64) {
	sums := map[string]float64{}
	counts := map[string]int{}
	order := make([]string, 0, len(obs))
	for _, o := range obs {
		if _, ok := counts[o.ConceptID]; !ok {
			order = append(order, o.ConceptID)
		}
		sums[o.ConceptID] += o.PCorrect
		counts[o.ConceptID]++
	}
	out := make(map[string]float64, len(order))
	for _, id := range order {
		out[id] = sums[id] / float64(counts[id])
	}
	return order, out
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return Default
	}
	return math.Max(0, math.Min(1, v))
}

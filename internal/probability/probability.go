// Package probability holds helpers for the four-way percentage
// distributions students submit as answers.
package probability

import (
	"math"
	"sort"
)

// Size is the number of answer options every distribution covers.
const Size = 4

// Distribution is a four-way split of 100 percentage points.
type Distribution [Size]int

// Slice returns the distribution as a plain slice.
func (d Distribution) Slice() []int { return d[:] }

func clampToPercent(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r := int(math.Floor(v + 0.5))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

// IsSum100 reports whether the entries add up to exactly 100.
func IsSum100(values []int) bool {
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum == 100
}

// NormalizeTo100 clamps up to four raw values to integers in [0,100] and
// rescales them so they sum to 100, handing out the leftover points by
// largest fractional remainder. An all-zero input yields the uniform split.
func NormalizeTo100(values []float64) Distribution {
	var clamped [Size]int
	for i := 0; i < Size && i < len(values); i++ {
		clamped[i] = clampToPercent(values[i])
	}
	return normalizeClamped(clamped)
}

func normalizeClamped(clamped [Size]int) Distribution {
	total := 0
	for _, v := range clamped {
		total += v
	}
	if total == 0 {
		return Distribution{25, 25, 25, 25}
	}

	type remainder struct {
		index    int
		fraction float64
	}
	var out Distribution
	fractions := make([]remainder, Size)
	assigned := 0
	for i, v := range clamped {
		scaled := float64(v) / float64(total) * 100
		floor := math.Floor(scaled)
		out[i] = int(floor)
		assigned += out[i]
		fractions[i] = remainder{index: i, fraction: scaled - floor}
	}
	sort.SliceStable(fractions, func(a, b int) bool {
		return fractions[a].fraction > fractions[b].fraction
	})
	remaining := 100 - assigned
	for i := 0; i < len(fractions) && remaining > 0; i++ {
		out[fractions[i].index]++
		remaining--
	}
	return out
}

// UpdateDistribution sets the slot at index to next (clamped) and keeps the
// total at 100 by rewriting the last slot. When the edited slot is the last
// one, or the last slot would go negative, the whole distribution is
// renormalized instead.
func UpdateDistribution(values []float64, index int, next float64) Distribution {
	var clamped [Size]int
	for i := 0; i < Size && i < len(values); i++ {
		clamped[i] = clampToPercent(values[i])
	}

	target := index
	if target < 0 {
		target = 0
	}
	if target > Size-1 {
		target = Size - 1
	}
	clamped[target] = clampToPercent(next)

	last := Size - 1
	if target != last {
		sumExceptLast := 0
		for i := 0; i < last; i++ {
			sumExceptLast += clamped[i]
		}
		if adjusted := 100 - sumExceptLast; adjusted >= 0 {
			clamped[last] = adjusted
			return Distribution(clamped)
		}
	}
	return normalizeClamped(clamped)
}

// Valid reports whether values form a submittable distribution: exactly four
// entries, each rounding to an integer in [0,100], with the rounded entries
// summing to 100.
func Valid(values []float64) bool {
	if len(values) != Size {
		return false
	}
	sum := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		r := int(math.Floor(v + 0.5))
		if r < 0 || r > 100 {
			return false
		}
		sum += r
	}
	return sum == 100
}

// Round converts a validated submission into integer percentages.
func Round(values []float64) Distribution {
	var d Distribution
	for i := 0; i < Size && i < len(values); i++ {
		d[i] = int(math.Floor(values[i] + 0.5))
	}
	return d
}

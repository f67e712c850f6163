package mastery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/quazian/internal/mastery"
)

func ptr(v float64) *float64 { return &v }

func TestUpdate(t *testing.T) {
	assert.InDelta(t, 0.55, mastery.Update(nil, 1.0), 1e-12)
	assert.InDelta(t, 0.55, mastery.Update(ptr(0.5), 1.0), 1e-12)
	assert.InDelta(t, 0.81, mastery.Update(ptr(0.9), 0), 1e-12)
	assert.InDelta(t, 1.0, mastery.Update(ptr(1.0), 1.0), 1e-12)
	assert.Equal(t, 1.0, mastery.Update(ptr(1.5), 1.0))
	assert.Equal(t, 0.0, mastery.Update(ptr(-1), 0))
}

func TestPCorrectByConcept(t *testing.T) {
	order, p := mastery.PCorrectByConcept([]mastery.Observation{
		{ConceptID: "c2", PCorrect: 0.7},
		{ConceptID: "c1", PCorrect: 1},
		{ConceptID: "c2", PCorrect: 0.3},
	})
	assert.Equal(t, []string{"c2", "c1"}, order)
	assert.InDelta(t, 0.5, p["c2"], 1e-12)
	assert.InDelta(t, 1.0, p["c1"], 1e-12)
}

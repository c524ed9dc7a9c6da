package vector_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/vector"
)

func TestChromemOrdering(t *testing.T) {
	idx, err := vector.NewChromem("ordering")
	gt.NoError(t, err)

	gt.NoError(t, idx.Insert("x", []float32{1, 0}))
	gt.NoError(t, idx.Insert("y", []float32{0, 1}))

	hits := idx.Search([]float32{1, 0.1}, 2)
	gt.A(t, hits).Length(2)
	gt.Equal(t, hits[0].ID, "x")
	gt.Equal(t, hits[1].ID, "y")

	// Cosine distance keeps the Similarity contract: near-identical
	// vectors land near zero
	gt.True(t, hits[0].Distance < 0.01)
	gt.True(t, hits[1].Distance > hits[0].Distance)
}

func TestChromemKClamp(t *testing.T) {
	idx, err := vector.NewChromem("clamp")
	gt.NoError(t, err)

	gt.NoError(t, idx.Insert("only", []float32{1, 0}))

	hits := idx.Search([]float32{1, 0}, 10)
	gt.A(t, hits).Length(1)
	gt.Equal(t, idx.Size(), 1)
}

func TestChromemEmpty(t *testing.T) {
	idx, err := vector.NewChromem("empty")
	gt.NoError(t, err)

	hits := idx.Search([]float32{1, 0}, 5)
	gt.V(t, hits).NotNil()
	gt.A(t, hits).Length(0)
}

// The memory bank accepts any Index through its factory option; this
// pins the chromem backend to the same interface
func TestChromemSatisfiesIndex(t *testing.T) {
	idx, err := vector.NewChromem("iface")
	gt.NoError(t, err)

	var _ vector.Index = idx
}

package vector_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/vector"
)

func TestBruteForceSearchOrdering(t *testing.T) {
	idx := vector.NewBruteForce(2)

	gt.NoError(t, idx.Insert("far", []float32{10, 0}))
	gt.NoError(t, idx.Insert("near", []float32{1, 0}))
	gt.NoError(t, idx.Insert("mid", []float32{5, 0}))

	hits := idx.Search([]float32{0, 0}, 3)
	gt.A(t, hits).Length(3)
	gt.Equal(t, hits[0].ID, "near")
	gt.Equal(t, hits[1].ID, "mid")
	gt.Equal(t, hits[2].ID, "far")

	// Distances never decrease along the ranking
	for i := 1; i < len(hits); i++ {
		gt.True(t, hits[i].Distance >= hits[i-1].Distance)
	}
}

func TestBruteForceKClamp(t *testing.T) {
	idx := vector.NewBruteForce(2)
	gt.NoError(t, idx.Insert("a", []float32{1, 1}))
	gt.NoError(t, idx.Insert("b", []float32{2, 2}))

	hits := idx.Search([]float32{0, 0}, 10)
	gt.A(t, hits).Length(2)
}

func TestBruteForceEmpty(t *testing.T) {
	idx := vector.NewBruteForce(3)

	hits := idx.Search([]float32{1, 2, 3}, 5)
	gt.V(t, hits).NotNil()
	gt.A(t, hits).Length(0)
	gt.Equal(t, idx.Size(), 0)
}

func TestBruteForceDimensionMismatch(t *testing.T) {
	idx := vector.NewBruteForce(3)

	err := idx.Insert("bad", []float32{1, 2})
	gt.Error(t, err)
}

func TestBruteForceInsertionOrderStable(t *testing.T) {
	idx := vector.NewBruteForce(1)

	// Equal distances keep insertion order
	gt.NoError(t, idx.Insert("first", []float32{1}))
	gt.NoError(t, idx.Insert("second", []float32{-1}))

	hits := idx.Search([]float32{0}, 2)
	gt.Equal(t, hits[0].ID, "first")
	gt.Equal(t, hits[1].ID, "second")
}

func TestSimilarity(t *testing.T) {
	gt.Equal(t, vector.Similarity(0), 1.0)
	gt.Equal(t, vector.Similarity(1), 0.5)
	gt.Equal(t, vector.Similarity(3), 0.25)

	// Monotonically decreasing in distance
	gt.True(t, vector.Similarity(0.5) > vector.Similarity(2.0))
}

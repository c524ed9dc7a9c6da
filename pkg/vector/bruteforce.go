package vector

import (
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

var ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

// BruteForce is an exhaustive-scan index using squared L2 distance.
// Rows are kept in insertion order so that row position corresponds
// to the owning store's record position.
type BruteForce struct {
	dimensions int
	ids        []string
	rows       [][]float32
}

// NewBruteForce creates an empty index for vectors of the given size
func NewBruteForce(dimensions int) *BruteForce {
	return &BruteForce{
		dimensions: dimensions,
	}
}

func (x *BruteForce) Insert(id string, vec []float32) error {
	if len(vec) != x.dimensions {
		return goerr.Wrap(ErrDimensionMismatch, "cannot insert vector",
			goerr.V("id", id), goerr.V("got", len(vec)), goerr.V("want", x.dimensions))
	}

	x.ids = append(x.ids, id)
	x.rows = append(x.rows, vec)
	return nil
}

func (x *BruteForce) Search(vec []float32, k int) []Hit {
	if len(x.rows) == 0 || k <= 0 {
		return []Hit{}
	}
	if k > len(x.rows) {
		k = len(x.rows)
	}

	hits := make([]Hit, 0, len(x.rows))
	for i, row := range x.rows {
		hits = append(hits, Hit{
			ID:       x.ids[i],
			Distance: squaredL2(row, vec),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	return hits[:k]
}

func (x *BruteForce) Size() int {
	return len(x.rows)
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

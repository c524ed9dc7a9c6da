// Package vector provides nearest-neighbor search over fixed-size
// embeddings. The Index interface decouples the memory and question
// stores from any particular backend; the default backend is an
// in-process brute-force scan whose row order mirrors insertion
// order.
package vector

// Hit is a single ranked search result. Distance is a
// monotonically-decreasing similarity proxy: 0 means an exact match.
type Hit struct {
	ID       string
	Distance float64
}

// Index is a nearest-neighbor index over embedding vectors
type Index interface {
	// Insert adds a vector under the given ID. Rows grow
	// monotonically; there is no update or delete.
	Insert(id string, vec []float32) error

	// Search returns up to k hits ranked by ascending distance.
	// k is clamped to Size(); an empty index yields an empty slice.
	Search(vec []float32, k int) []Hit

	// Size returns the number of rows in the index
	Size() int
}

// Similarity derives the [0, 1] similarity score from a distance.
// An exact match (distance 0) scores 1.0 and the score asymptotically
// approaches 0 as distance grows. It is not a normalized probability.
func Similarity(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

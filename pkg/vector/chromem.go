package vector

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	chromem "github.com/philippgille/chromem-go"
)

// Chromem is an Index backed by chromem-go, an embedded pure-Go
// vector database with cosine similarity. It exists as a drop-in
// alternative to BruteForce for large banks; distances are derived
// as cosine distance (1 - similarity) so Similarity() keeps its
// contract of 1.0 at an exact match.
type Chromem struct {
	collection *chromem.Collection
	size       int
}

// NewChromem creates a chromem-backed index with its own collection
func NewChromem(name string) (*Chromem, error) {
	db := chromem.NewDB()

	collection, err := db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chromem collection", goerr.V("name", name))
	}

	return &Chromem{
		collection: collection,
	}, nil
}

func (x *Chromem) Insert(id string, vec []float32) error {
	doc := chromem.Document{
		ID:        id,
		Embedding: vec,
	}

	if err := x.collection.AddDocument(context.Background(), doc); err != nil {
		return goerr.Wrap(err, "failed to add document to chromem", goerr.V("id", id))
	}

	x.size++
	return nil
}

func (x *Chromem) Search(vec []float32, k int) []Hit {
	if x.size == 0 || k <= 0 {
		return []Hit{}
	}
	if k > x.size {
		k = x.size
	}

	results, err := x.collection.QueryEmbedding(context.Background(), vec, k, nil, nil)
	if err != nil {
		return []Hit{}
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{
			ID:       r.ID,
			Distance: 1.0 - float64(r.Similarity),
		})
	}
	return hits
}

func (x *Chromem) Size() int {
	return x.size
}

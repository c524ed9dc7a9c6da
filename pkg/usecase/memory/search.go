package memory

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/vector"
)

const DefaultSearchLimit = 5

// Search returns at most k memories ranked by non-increasing
// similarity. An empty bank yields an empty slice for any query; k is
// clamped to the bank size.
func (b *Bank) Search(ctx context.Context, query string, k int) ([]model.MemorySearchResult, error) {
	if len(b.records) == 0 {
		return []model.MemorySearchResult{}, nil
	}
	if k <= 0 {
		k = DefaultSearchLimit
	}

	if err := b.reconcile(ctx); err != nil {
		return nil, err
	}

	vec, err := b.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	hits := b.index.Search(vec, k)
	results := make([]model.MemorySearchResult, 0, len(hits))
	for _, hit := range hits {
		mem, ok := b.byID[model.MemoryID(hit.ID)]
		if !ok {
			return nil, goerr.New("index returned unknown memory", goerr.V("id", hit.ID))
		}
		results = append(results, model.MemorySearchResult{
			Memory:     mem,
			Similarity: vector.Similarity(hit.Distance),
		})
	}

	return results, nil
}

// reconcile restores the invariant that the index holds exactly one
// row per record with a resolved embedding. Records may lack vectors
// after a partial persist; they are re-embedded here, before any
// search, and the index is rebuilt in record order.
func (b *Bank) reconcile(ctx context.Context) error {
	missing := false
	for _, m := range b.records {
		if len(m.Embedding) == 0 {
			missing = true
			break
		}
	}
	if !missing && b.index.Size() == len(b.records) {
		return nil
	}

	index := b.newIndex()
	for _, m := range b.records {
		if len(m.Embedding) == 0 {
			vec, err := b.embedder.Embed(ctx, m.Title+"\n"+m.Text)
			if err != nil {
				return goerr.Wrap(err, "failed to re-embed memory", goerr.V("memory_id", m.ID))
			}
			m.Embedding = firestore.Vector32(vec)
		}
		if err := index.Insert(string(m.ID), m.Embedding); err != nil {
			return goerr.Wrap(err, "failed to rebuild index", goerr.V("memory_id", m.ID))
		}
	}

	b.index = index
	return nil
}

package question

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/vector"
)

const DefaultSearchLimit = 5

// Search returns at most k prior questions ranked by non-increasing
// similarity. An empty store yields an empty slice for any query.
func (s *Store) Search(ctx context.Context, query string, k int) ([]model.QuestionSearchResult, error) {
	if len(s.records) == 0 {
		return []model.QuestionSearchResult{}, nil
	}
	if k <= 0 {
		k = DefaultSearchLimit
	}

	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	hits := s.index.Search(vec, k)
	results := make([]model.QuestionSearchResult, 0, len(hits))
	for _, hit := range hits {
		q, ok := s.byID[model.QuestionID(hit.ID)]
		if !ok {
			return nil, goerr.New("index returned unknown question", goerr.V("id", hit.ID))
		}
		results = append(results, model.QuestionSearchResult{
			Question:   q,
			Similarity: vector.Similarity(hit.Distance),
		})
	}

	return results, nil
}

func (s *Store) reconcile(ctx context.Context) error {
	missing := false
	for _, q := range s.records {
		if len(q.Embedding) == 0 {
			missing = true
			break
		}
	}
	if !missing && s.index.Size() == len(s.records) {
		return nil
	}

	index := s.newIndex()
	for _, q := range s.records {
		if len(q.Embedding) == 0 {
			vec, err := s.embedder.Embed(ctx, q.Content)
			if err != nil {
				return goerr.Wrap(err, "failed to re-embed question", goerr.V("question_id", q.ID))
			}
			q.Embedding = firestore.Vector32(vec)
		}
		if err := index.Insert(string(q.ID), q.Embedding); err != nil {
			return goerr.Wrap(err, "failed to rebuild index", goerr.V("question_id", q.ID))
		}
	}

	s.index = index
	return nil
}

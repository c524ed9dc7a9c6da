package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/repository"
)

// Save persists all records and embeddings through the repository.
// The in-memory bank stays authoritative until the write succeeds.
func (b *Bank) Save(ctx context.Context, repo repository.Repository) error {
	if err := repo.SaveMemories(ctx, b.userID, b.records); err != nil {
		return goerr.Wrap(err, "failed to save memory bank", goerr.V("user_id", b.userID))
	}
	return nil
}

// Load reconstructs a bank from persisted content, rebuilding the
// vector index in record order. Missing files yield an empty but
// valid bank so first-time users succeed.
func Load(ctx context.Context, repo repository.Repository, userID string, embedder adapter.Embedder, opts ...Option) (*Bank, error) {
	records, err := repo.LoadMemories(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory bank", goerr.V("user_id", userID))
	}

	b := New(userID, embedder, opts...)
	for _, m := range records {
		if len(m.Embedding) > 0 {
			if err := b.index.Insert(string(m.ID), m.Embedding); err != nil {
				return nil, goerr.Wrap(err, "failed to rebuild index", goerr.V("memory_id", m.ID))
			}
		}
		b.records = append(b.records, m)
		b.byID[m.ID] = m
	}

	return b, nil
}

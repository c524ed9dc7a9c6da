// Package memory implements the vector-indexed memory bank: typed
// records, embedding storage, similarity search, and per-user
// persistence through the repository.
package memory

import (
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/vector"
)

// Bank owns all Memory records of one user together with their
// vector index. Records are kept in insertion order and the index is
// rebuilt in the same order on load. Bank is not safe for concurrent
// use; callers serialize access per user.
type Bank struct {
	userID   string
	embedder adapter.Embedder
	newIndex func() vector.Index

	records []*model.Memory
	byID    map[model.MemoryID]*model.Memory
	index   vector.Index
}

// Option is a functional option for New
type Option func(*Bank)

// WithIndexFactory swaps the nearest-neighbor backend. The factory is
// invoked whenever the index has to be rebuilt from scratch.
func WithIndexFactory(factory func() vector.Index) Option {
	return func(b *Bank) {
		b.newIndex = factory
	}
}

// New creates an empty memory bank for the user
func New(userID string, embedder adapter.Embedder, opts ...Option) *Bank {
	b := &Bank{
		userID:   userID,
		embedder: embedder,
		byID:     make(map[model.MemoryID]*model.Memory),
	}
	b.newIndex = func() vector.Index {
		return vector.NewBruteForce(embedder.Dimensions())
	}

	for _, opt := range opts {
		opt(b)
	}

	b.index = b.newIndex()
	return b
}

// UserID returns the owning user of this bank
func (b *Bank) UserID() string {
	return b.userID
}

// Count returns the number of memories in the bank
func (b *Bank) Count() int {
	return len(b.records)
}

// Get returns the memory with the given ID, nil if absent
func (b *Bank) Get(id model.MemoryID) *model.Memory {
	return b.byID[id]
}

// All returns the records in insertion order. The slice is shared;
// callers must not mutate it.
func (b *Bank) All() []*model.Memory {
	return b.records
}

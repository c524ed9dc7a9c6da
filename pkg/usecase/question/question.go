// Package question implements the interview question store: a
// vector-indexed collection parallel to the memory bank, used for
// question-level duplicate avoidance.
package question

import (
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/vector"
)

// Store owns all Question records of one user with their vector
// index. Same ownership and ordering rules as the memory bank: not
// safe for concurrent use, insertion order preserved.
type Store struct {
	userID   string
	embedder adapter.Embedder
	gemini   adapter.Gemini
	newIndex func() vector.Index

	records []*model.Question
	byID    map[model.QuestionID]*model.Question
	index   vector.Index
}

// Option is a functional option for New
type Option func(*Store)

// WithIndexFactory swaps the nearest-neighbor backend
func WithIndexFactory(factory func() vector.Index) Option {
	return func(s *Store) {
		s.newIndex = factory
	}
}

// WithGemini attaches the LLM used by the duplicate oracle. Without
// it, CheckDuplicate falls back to similarity retrieval only.
func WithGemini(gemini adapter.Gemini) Option {
	return func(s *Store) {
		s.gemini = gemini
	}
}

// New creates an empty question store for the user
func New(userID string, embedder adapter.Embedder, opts ...Option) *Store {
	s := &Store{
		userID:   userID,
		embedder: embedder,
		byID:     make(map[model.QuestionID]*model.Question),
	}
	s.newIndex = func() vector.Index {
		return vector.NewBruteForce(embedder.Dimensions())
	}

	for _, opt := range opts {
		opt(s)
	}

	s.index = s.newIndex()
	return s
}

// UserID returns the owning user of this store
func (s *Store) UserID() string {
	return s.userID
}

// Count returns the number of questions in the store
func (s *Store) Count() int {
	return len(s.records)
}

// Get returns the question with the given ID, nil if absent
func (s *Store) Get(id model.QuestionID) *model.Question {
	return s.byID[id]
}

// All returns the records in insertion order. The slice is shared;
// callers must not mutate it.
func (s *Store) All() []*model.Question {
	return s.records
}

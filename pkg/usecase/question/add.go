package question

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
)

// Add embeds the question content, appends the record, and inserts
// its vector into the index
func (s *Store) Add(ctx context.Context, content string, memoryIDs []model.MemoryID) (*model.Question, error) {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed question")
	}

	q := &model.Question{
		ID:        model.NewQuestionID(),
		Content:   content,
		MemoryIDs: memoryIDs,
		CreatedAt: time.Now(),
		Embedding: firestore.Vector32(vec),
	}

	if err := s.index.Insert(string(q.ID), vec); err != nil {
		return nil, goerr.Wrap(err, "failed to index question", goerr.V("question_id", q.ID))
	}

	s.records = append(s.records, q)
	s.byID[q.ID] = q
	return q, nil
}

// LinkMemories associates extracted memory IDs with the question that
// elicited them
func (s *Store) LinkMemories(id model.QuestionID, memoryIDs []model.MemoryID) error {
	q := s.byID[id]
	if q == nil {
		return goerr.New("question not found", goerr.V("question_id", id))
	}
	q.MemoryIDs = append(q.MemoryIDs, memoryIDs...)
	return nil
}

// Save persists all records and embeddings through the repository
func (s *Store) Save(ctx context.Context, repo repository.Repository) error {
	if err := repo.SaveQuestions(ctx, s.userID, s.records); err != nil {
		return goerr.Wrap(err, "failed to save question store", goerr.V("user_id", s.userID))
	}
	return nil
}

// Load reconstructs a store from persisted content, rebuilding the
// vector index in record order. Missing files yield an empty but
// valid store.
func Load(ctx context.Context, repo repository.Repository, userID string, embedder adapter.Embedder, opts ...Option) (*Store, error) {
	records, err := repo.LoadQuestions(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load question store", goerr.V("user_id", userID))
	}

	s := New(userID, embedder, opts...)
	for _, q := range records {
		if len(q.Embedding) > 0 {
			if err := s.index.Insert(string(q.ID), q.Embedding); err != nil {
				return nil, goerr.Wrap(err, "failed to rebuild index", goerr.V("question_id", q.ID))
			}
		}
		s.records = append(s.records, q)
		s.byID[q.ID] = q
	}

	return s, nil
}

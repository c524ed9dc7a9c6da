package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

// EmbeddingDimensions is the fixed vector size for all embeddings.
// Every entity in a store has at most one embedding of this size.
const EmbeddingDimensions = 1536

type MemoryID string

// NewMemoryID generates a new unique MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// Memory represents a discrete fact or narrative fragment extracted
// from an interview. A Memory is immutable once created; it is removed
// only when the whole bank is deleted or rebuilt.
type Memory struct {
	ID              MemoryID           `json:"id"`
	Title           string             `json:"title"`
	Text            string             `json:"text"`
	Metadata        map[string]string  `json:"metadata,omitempty"`
	ImportanceScore int                `json:"importance_score"`
	CreatedAt       time.Time          `json:"created_at"`
	SourceResponse  string             `json:"source_interview_response,omitempty"`
	QuestionIDs     []QuestionID       `json:"question_ids,omitempty"`
	Embedding       firestore.Vector32 `json:"-"`
}

// MemorySearchResult is a Memory with its derived similarity score.
// Similarity is in [0, 1] and is never persisted.
type MemorySearchResult struct {
	Memory     *Memory
	Similarity float64
}

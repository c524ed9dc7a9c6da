package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type QuestionID string

// NewQuestionID generates a new unique QuestionID
func NewQuestionID() QuestionID {
	return QuestionID(uuid.New().String())
}

// Question represents an interview question that was asked to the
// user. Questions are immutable once created and are owned by the
// question store.
type Question struct {
	ID        QuestionID         `json:"id"`
	Content   string             `json:"content"`
	MemoryIDs []MemoryID         `json:"memory_ids,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	Embedding firestore.Vector32 `json:"-"`
}

// QuestionSearchResult is a Question with its derived similarity score.
type QuestionSearchResult struct {
	Question   *Question
	Similarity float64
}

// DuplicateCheck is the structured judgment of the duplicate-question
// oracle. MatchedQuestion is empty when no prior question is an
// effective duplicate.
type DuplicateCheck struct {
	IsDuplicate     bool   `json:"is_duplicate"`
	MatchedQuestion string `json:"matched_question"`
	Explanation     string `json:"explanation"`
}

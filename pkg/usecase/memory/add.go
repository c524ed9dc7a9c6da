package memory

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
)

// AddInput contains the fields of a proposed memory. No deduplication
// happens at this layer; avoiding near-duplicate memories is the
// caller's responsibility.
type AddInput struct {
	Title           string
	Text            string
	ImportanceScore int
	SourceResponse  string
	Metadata        map[string]string
	QuestionIDs     []model.QuestionID
}

// Add embeds the memory, appends it to the bank, and inserts its
// vector into the index. An embedding failure propagates and leaves
// the bank unchanged; a silently unindexed memory would break search.
func (b *Bank) Add(ctx context.Context, input AddInput) (*model.Memory, error) {
	vec, err := b.embedder.Embed(ctx, input.Title+"\n"+input.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed memory", goerr.V("title", input.Title))
	}

	mem := &model.Memory{
		ID:              model.NewMemoryID(),
		Title:           input.Title,
		Text:            input.Text,
		Metadata:        input.Metadata,
		ImportanceScore: input.ImportanceScore,
		CreatedAt:       time.Now(),
		SourceResponse:  input.SourceResponse,
		QuestionIDs:     input.QuestionIDs,
		Embedding:       firestore.Vector32(vec),
	}

	if err := b.index.Insert(string(mem.ID), vec); err != nil {
		return nil, goerr.Wrap(err, "failed to index memory", goerr.V("memory_id", mem.ID))
	}

	b.records = append(b.records, mem)
	b.byID[mem.ID] = mem
	return mem, nil
}

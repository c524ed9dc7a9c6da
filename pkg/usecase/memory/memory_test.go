package memory_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
)

// stubEmbedder returns canned vectors keyed by exact input text and a
// zero vector for anything else. Deterministic, so rankings are stable
// across save and load.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 0}, nil
}

func (s *stubEmbedder) Dimensions() int {
	return 3
}

func newStub() *stubEmbedder {
	return &stubEmbedder{vectors: map[string][]float32{
		"Dog\nWe had a collie named Rex":        {1, 0, 0},
		"Cat\nThe neighbor's cat visited daily": {0.9, 0.1, 0},
		"Tax\nFiled late in 1987":               {0, 0, 1},
		"pets":                                  {1, 0, 0},
	}}
}

func TestAddAndSearchOrdering(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", newStub())

	_, err := bank.Add(ctx, memory.AddInput{Title: "Tax", Text: "Filed late in 1987", ImportanceScore: 2})
	gt.NoError(t, err)
	dog, err := bank.Add(ctx, memory.AddInput{Title: "Dog", Text: "We had a collie named Rex", ImportanceScore: 6})
	gt.NoError(t, err)
	cat, err := bank.Add(ctx, memory.AddInput{Title: "Cat", Text: "The neighbor's cat visited daily", ImportanceScore: 4})
	gt.NoError(t, err)

	results, err := bank.Search(ctx, "pets", 2)
	gt.NoError(t, err)
	gt.A(t, results).Length(2)

	// Nearest first, similarity non-increasing
	gt.Equal(t, results[0].Memory.ID, dog.ID)
	gt.Equal(t, results[1].Memory.ID, cat.ID)
	gt.Equal(t, results[0].Similarity, 1.0)
	gt.True(t, results[0].Similarity >= results[1].Similarity)
}

func TestSearchEmptyBank(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", newStub())

	results, err := bank.Search(ctx, "anything", 5)
	gt.NoError(t, err)
	gt.V(t, results).NotNil()
	gt.A(t, results).Length(0)
}

func TestSearchKClamp(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", newStub())

	_, err := bank.Add(ctx, memory.AddInput{Title: "Dog", Text: "We had a collie named Rex"})
	gt.NoError(t, err)

	results, err := bank.Search(ctx, "pets", 10)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestSearchDefaultLimit(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", newStub())

	_, err := bank.Add(ctx, memory.AddInput{Title: "Dog", Text: "We had a collie named Rex"})
	gt.NoError(t, err)

	// k <= 0 falls back to the default limit instead of failing
	results, err := bank.Search(ctx, "pets", 0)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
}

func TestInsertionOrderAndLookup(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", newStub())

	first, err := bank.Add(ctx, memory.AddInput{Title: "Dog", Text: "We had a collie named Rex"})
	gt.NoError(t, err)
	second, err := bank.Add(ctx, memory.AddInput{Title: "Tax", Text: "Filed late in 1987"})
	gt.NoError(t, err)

	all := bank.All()
	gt.A(t, all).Length(2)
	gt.Equal(t, all[0].ID, first.ID)
	gt.Equal(t, all[1].ID, second.ID)

	gt.V(t, bank.Get(first.ID)).NotNil()
	gt.V(t, bank.Get(model.MemoryID("missing"))).Nil()
	gt.Equal(t, bank.Count(), 2)
}

func TestSaveLoadKeepsRanking(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLocal(t.TempDir())
	embedder := newStub()

	bank := memory.New("user-1", embedder)
	_, err := bank.Add(ctx, memory.AddInput{Title: "Dog", Text: "We had a collie named Rex"})
	gt.NoError(t, err)
	_, err = bank.Add(ctx, memory.AddInput{Title: "Cat", Text: "The neighbor's cat visited daily"})
	gt.NoError(t, err)
	_, err = bank.Add(ctx, memory.AddInput{Title: "Tax", Text: "Filed late in 1987"})
	gt.NoError(t, err)

	before, err := bank.Search(ctx, "pets", 3)
	gt.NoError(t, err)

	gt.NoError(t, bank.Save(ctx, repo))

	reloaded, err := memory.Load(ctx, repo, "user-1", embedder)
	gt.NoError(t, err)
	gt.Equal(t, reloaded.Count(), 3)

	after, err := reloaded.Search(ctx, "pets", 3)
	gt.NoError(t, err)
	gt.A(t, after).Length(3)
	for i := range before {
		gt.Equal(t, after[i].Memory.ID, before[i].Memory.ID)
		gt.Equal(t, after[i].Similarity, before[i].Similarity)
	}
}

func TestSearchReembedsMissingVectors(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLocal(t.TempDir())

	// Persist a record without its embedding, as a crash between the
	// content write and the embeddings write would leave it
	orphan := &model.Memory{
		ID:    model.NewMemoryID(),
		Title: "Dog",
		Text:  "We had a collie named Rex",
	}
	gt.NoError(t, repo.SaveMemories(ctx, "user-1", []*model.Memory{orphan}))

	bank, err := memory.Load(ctx, repo, "user-1", newStub())
	gt.NoError(t, err)
	gt.Equal(t, bank.Count(), 1)

	results, err := bank.Search(ctx, "pets", 1)
	gt.NoError(t, err)
	gt.A(t, results).Length(1)
	gt.Equal(t, results[0].Memory.ID, orphan.ID)
	gt.A(t, []float32(results[0].Memory.Embedding)).Length(3)
}

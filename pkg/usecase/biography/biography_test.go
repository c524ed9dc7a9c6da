package biography_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
)

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (s *stubEmbedder) Dimensions() int {
	return 2
}

func TestGetFreshBiography(t *testing.T) {
	ctx := context.Background()
	uc := biography.New(repository.NewLocal(t.TempDir()))

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.Equal(t, bio.UserID, "user-1")
	gt.Equal(t, bio.Version, 0)
	gt.A(t, bio.Root.Subsections).Length(0)
}

func TestSessionCommit(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLocal(t.TempDir())
	uc := biography.New(repo)

	session, err := uc.Open(ctx, "user-1")
	gt.NoError(t, err)

	_, err = session.Biography().AddSection("Career", "Career", "Shipping clerk.")
	gt.NoError(t, err)
	gt.NoError(t, session.Commit(ctx))

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.Equal(t, bio.Version, 1)
	gt.V(t, bio.SectionByPath("Career")).NotNil()
}

func TestSessionVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLocal(t.TempDir())
	uc := biography.New(repo)

	session, err := uc.Open(ctx, "user-1")
	gt.NoError(t, err)
	defer session.Abort()

	// A writer bypassing the lock bumps the persisted version behind
	// the session's back
	rogue := model.NewBiography("user-1")
	rogue.Version = 7
	gt.NoError(t, repo.SaveBiography(ctx, rogue))

	_, err = session.Biography().AddSection("Career", "Career", "")
	gt.NoError(t, err)

	err = session.Commit(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, biography.ErrVersionConflict))
}

func TestSessionAbort(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewLocal(t.TempDir())
	uc := biography.New(repo)

	session, err := uc.Open(ctx, "user-1")
	gt.NoError(t, err)
	_, err = session.Biography().AddSection("Career", "Career", "")
	gt.NoError(t, err)
	session.Abort()

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.Equal(t, bio.Version, 0)
	gt.V(t, bio.SectionByPath("Career")).Nil()
}

func TestSessionClosedCommit(t *testing.T) {
	ctx := context.Background()
	uc := biography.New(repository.NewLocal(t.TempDir()))

	session, err := uc.Open(ctx, "user-1")
	gt.NoError(t, err)
	gt.NoError(t, session.Commit(ctx))

	err = session.Commit(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, biography.ErrSessionClosed))
}

func TestApplyEditsTimestampOrder(t *testing.T) {
	ctx := context.Background()
	uc := biography.New(repository.NewLocal(t.TempDir()))

	base := time.Now()
	// Passed in reverse: the content change depends on the add having
	// run first, so only timestamp ordering makes the batch succeed
	edits := []model.EditRequest{
		{Type: model.EditTypeContentChange, Path: "Career", Content: "Dock worker, then clerk.", Timestamp: base.Add(time.Second)},
		{Type: model.EditTypeAdd, Path: "Career", Title: "Career", Timestamp: base},
	}

	results := uc.ApplyEdits(ctx, "user-1", edits)
	gt.A(t, results).Length(2)
	gt.Equal(t, results[0].Request.Type, model.EditTypeAdd)
	gt.NoError(t, results[0].Err)
	gt.Equal(t, results[1].Request.Type, model.EditTypeContentChange)
	gt.NoError(t, results[1].Err)

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.Equal(t, bio.SectionByPath("Career").Content, "Dock worker, then clerk.")
	// One version bump per applied edit
	gt.Equal(t, bio.Version, 2)
}

func TestApplyEditsFailureContinues(t *testing.T) {
	ctx := context.Background()
	uc := biography.New(repository.NewLocal(t.TempDir()))

	base := time.Now()
	edits := []model.EditRequest{
		{Type: model.EditTypeContentChange, Path: "Nowhere", Content: "x", Timestamp: base},
		{Type: model.EditTypeAdd, Path: "Career", Title: "Career", Timestamp: base.Add(time.Second)},
	}

	results := uc.ApplyEdits(ctx, "user-1", edits)
	gt.A(t, results).Length(2)
	gt.Error(t, results[0].Err)
	gt.True(t, errors.Is(results[0].Err, model.ErrSectionNotFound))
	gt.NoError(t, results[1].Err)

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.V(t, bio.SectionByPath("Career")).NotNil()
}

func TestApplyEditsMemoryRefsDeduplicated(t *testing.T) {
	ctx := context.Background()
	uc := biography.New(repository.NewLocal(t.TempDir()))

	base := time.Now()
	edits := []model.EditRequest{
		{Type: model.EditTypeAdd, Path: "Career", Title: "Career", MemoryIDs: []model.MemoryID{"m1", "m2"}, Timestamp: base},
		{Type: model.EditTypeContentChange, Path: "Career", Content: "x", MemoryIDs: []model.MemoryID{"m2", "m3"}, Timestamp: base.Add(time.Second)},
	}

	results := uc.ApplyEdits(ctx, "user-1", edits)
	for _, r := range results {
		gt.NoError(t, r.Err)
	}

	bio, err := uc.Get(ctx, "user-1")
	gt.NoError(t, err)
	gt.A(t, bio.SectionByPath("Career").MemoryIDs).Length(3)
}

func TestCompleteness(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", &stubEmbedder{})

	m1, err := bank.Add(ctx, memory.AddInput{Title: "First job", Text: "Shipping clerk", ImportanceScore: 5})
	gt.NoError(t, err)
	m2, err := bank.Add(ctx, memory.AddInput{Title: "Wedding", Text: "Lake house", ImportanceScore: 9})
	gt.NoError(t, err)

	bio := model.NewBiography("user-1")
	section, err := bio.AddSection("Career", "Career", "Worked as a clerk.")
	gt.NoError(t, err)
	section.MemoryIDs = []model.MemoryID{m1.ID}

	report := biography.Completeness(bio, bank)
	gt.Equal(t, report.Recall, 50.0)
	gt.Equal(t, report.TotalMemories, 2)
	gt.Equal(t, report.ReferencedCount, 1)
	gt.Equal(t, report.UnreferencedCount, 1)
	gt.A(t, report.Unreferenced).Length(1)
	gt.Equal(t, report.Unreferenced[0].ID, m2.ID)
}

func TestCompletenessEmptyBank(t *testing.T) {
	bank := memory.New("user-1", &stubEmbedder{})
	bio := model.NewBiography("user-1")

	report := biography.Completeness(bio, bank)
	gt.Equal(t, report.Recall, 0.0)
	gt.Equal(t, report.TotalMemories, 0)
	gt.A(t, report.Unreferenced).Length(0)
}

func TestCompletenessUnreferencedSortedByImportance(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", &stubEmbedder{})

	low, err := bank.Add(ctx, memory.AddInput{Title: "Minor", Text: "a", ImportanceScore: 2})
	gt.NoError(t, err)
	high, err := bank.Add(ctx, memory.AddInput{Title: "Major", Text: "b", ImportanceScore: 8})
	gt.NoError(t, err)

	report := biography.Completeness(model.NewBiography("user-1"), bank)
	gt.A(t, report.Unreferenced).Length(2)
	gt.Equal(t, report.Unreferenced[0].ID, high.ID)
	gt.Equal(t, report.Unreferenced[1].ID, low.ID)
}

func TestStaleMemoryRefsTolerated(t *testing.T) {
	ctx := context.Background()
	bank := memory.New("user-1", &stubEmbedder{})

	m1, err := bank.Add(ctx, memory.AddInput{Title: "First job", Text: "clerk", ImportanceScore: 5})
	gt.NoError(t, err)

	bio := model.NewBiography("user-1")
	section, err := bio.AddSection("Career", "Career", "")
	gt.NoError(t, err)
	// One live reference, one pointing at a memory the bank no longer
	// holds
	section.MemoryIDs = []model.MemoryID{m1.ID, "gone"}

	report := biography.Completeness(bio, bank)
	gt.Equal(t, report.Recall, 100.0)
	gt.Equal(t, report.ReferencedCount, 1)
}

// Package repository persists per-user interview data. Each user owns
// one logical storage unit; writers must hold the user lock for the
// whole persist+reload cycle so that two in-progress mutations never
// interleave.
package repository

import (
	"context"

	"github.com/m-mizutani/memoir/pkg/model"
)

// Repository defines the interface for per-user data persistence.
// Load operations treat missing data as an empty valid state so that
// first-time users succeed; write failures are always surfaced.
type Repository interface {
	// SaveMemories persists memory records and their embeddings.
	// Embeddings are written only after the records succeed, so a
	// reload never sees vectors without their owning records.
	SaveMemories(ctx context.Context, userID string, memories []*model.Memory) error

	// LoadMemories reconstructs memory records in their original
	// insertion order, attaching persisted embeddings by ID
	LoadMemories(ctx context.Context, userID string) ([]*model.Memory, error)

	// SaveQuestions persists question records and their embeddings
	SaveQuestions(ctx context.Context, userID string, questions []*model.Question) error

	// LoadQuestions reconstructs question records in insertion order
	LoadQuestions(ctx context.Context, userID string) ([]*model.Question, error)

	// SaveBiography persists a full-tree snapshot of the biography
	SaveBiography(ctx context.Context, bio *model.Biography) error

	// LoadBiography loads the biography snapshot; a missing snapshot
	// yields a fresh empty biography with Version 0
	LoadBiography(ctx context.Context, userID string) (*model.Biography, error)

	// Lock acquires the per-user exclusive lock and returns the
	// release function. It guards the persistence boundary against
	// concurrent writers from other processes.
	Lock(ctx context.Context, userID string) (func(), error)
}

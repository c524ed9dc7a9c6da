// Package biography maintains the per-user biography document:
// versioned edit sessions against the section tree, batch edit
// application, and completeness statistics against the memory bank.
package biography

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
)

// UseCase provides biography document operations
type UseCase struct {
	repo    repository.Repository
	bioOpts []model.BiographyOption
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithOverwrite makes AddSection replace colliding sibling titles
// instead of rejecting them. The policy applies to every biography
// this use case loads.
func WithOverwrite() Option {
	return func(uc *UseCase) {
		uc.bioOpts = append(uc.bioOpts, model.WithOverwrite())
	}
}

// New creates a new biography UseCase instance
func New(repo repository.Repository, opts ...Option) *UseCase {
	uc := &UseCase{
		repo: repo,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Get loads the current biography snapshot for read-only use. A user
// without a persisted biography gets a fresh empty one with
// Version 0.
func (u *UseCase) Get(ctx context.Context, userID string) (*model.Biography, error) {
	bio, err := u.repo.LoadBiography(ctx, userID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load biography", goerr.V("user_id", userID))
	}
	bio.Configure(u.bioOpts...)
	return bio, nil
}

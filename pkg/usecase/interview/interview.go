// Package interview runs the LLM-driven interview loop: planning the
// next question from biography coverage gaps, extracting memories
// from responses, and folding accepted memories back into the
// biography document.
package interview

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/m-mizutani/memoir/pkg/tool"
	biographytool "github.com/m-mizutani/memoir/pkg/tool/biography"
	memorytool "github.com/m-mizutani/memoir/pkg/tool/memory"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/m-mizutani/memoir/pkg/usecase/question"
	"github.com/m-mizutani/memoir/pkg/vector"
	"github.com/m-mizutani/memoir/pkg/workflow"
)

// Session is one user's interview: the memory bank, the question
// store, and the biography use case, plus the tool registry the LLM
// can call during planning. Like the stores it wraps, a session is
// single-writer; the CLI drives it from one goroutine.
type Session struct {
	userID string
	repo   repository.Repository
	gemini adapter.Gemini

	bank     *memory.Bank
	store    *question.Store
	bioUC    *biography.UseCase
	intake   *workflow.Engine
	registry *tool.Registry
}

// NewInput contains parameters for creating an interview session
type NewInput struct {
	Repo     repository.Repository
	Gemini   adapter.Gemini
	Embedder adapter.Embedder
	UserID   string

	// Intake gates extracted memories; nil accepts everything
	Intake *workflow.Engine

	// IndexFactory overrides the nearest-neighbor backend of both
	// stores; nil keeps the brute-force default
	IndexFactory func() vector.Index

	// ExtraTools are appended to the built-in tools, typically MCP
	// providers
	ExtraTools []tool.Tool

	// BiographyOptions configure the document policy, e.g. overwrite
	BiographyOptions []biography.Option
}

// New loads the user's stores and prepares the tool registry
func New(ctx context.Context, input NewInput) (*Session, error) {
	var bankOpts []memory.Option
	storeOpts := []question.Option{question.WithGemini(input.Gemini)}
	if input.IndexFactory != nil {
		bankOpts = append(bankOpts, memory.WithIndexFactory(input.IndexFactory))
		storeOpts = append(storeOpts, question.WithIndexFactory(input.IndexFactory))
	}

	bank, err := memory.Load(ctx, input.Repo, input.UserID, input.Embedder, bankOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memory bank")
	}

	store, err := question.Load(ctx, input.Repo, input.UserID, input.Embedder, storeOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load question store")
	}

	bioUC := biography.New(input.Repo, input.BiographyOptions...)
	bio, err := bioUC.Get(ctx, input.UserID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load biography")
	}

	intake := input.Intake
	if intake == nil {
		intake, err = workflow.New(ctx, "")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create intake engine")
		}
	}

	tools := []tool.Tool{
		memorytool.NewSearch(bank),
		biographytool.NewRead(bio),
	}
	tools = append(tools, input.ExtraTools...)

	registry := tool.New(tools...)
	if err := registry.Init(ctx, &tool.Client{
		Repo:     input.Repo,
		Gemini:   input.Gemini,
		Embedder: input.Embedder,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize tool registry")
	}

	return &Session{
		userID:   input.UserID,
		repo:     input.Repo,
		gemini:   input.Gemini,
		bank:     bank,
		store:    store,
		bioUC:    bioUC,
		intake:   intake,
		registry: registry,
	}, nil
}

// Bank returns the session's memory bank
func (s *Session) Bank() *memory.Bank {
	return s.bank
}

// Questions returns the session's question store
func (s *Session) Questions() *question.Store {
	return s.store
}

// persist writes the bank and question store under the user lock. The
// biography persists through its own edit sessions and is not touched
// here.
func (s *Session) persist(ctx context.Context) error {
	unlock, err := s.repo.Lock(ctx, s.userID)
	if err != nil {
		return goerr.Wrap(err, "failed to lock user", goerr.V("user_id", s.userID))
	}
	defer unlock()

	if err := s.bank.Save(ctx, s.repo); err != nil {
		return err
	}
	return s.store.Save(ctx, s.repo)
}

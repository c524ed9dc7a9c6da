package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/m-mizutani/memoir/pkg/usecase/question"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
	"github.com/m-mizutani/memoir/pkg/vector"
	"github.com/m-mizutani/memoir/pkg/workflow"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Storage
	baseDir string
	bucket  string

	// Interview subject
	user string

	// Adapters
	geminiProject  string
	geminiLocation string
	index          string

	// Policies
	policyDir string
	overwrite bool

	logLevel string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "base-dir",
			Aliases:     []string{"d"},
			Usage:       "Directory holding per-user interview data",
			Value:       defaultBaseDir(),
			Sources:     cli.EnvVars("MEMOIR_BASE_DIR"),
			Destination: &cfg.baseDir,
		},
		&cli.StringFlag{
			Name:        "user",
			Aliases:     []string{"u"},
			Usage:       "User ID of the interviewee",
			Sources:     cli.EnvVars("MEMOIR_USER"),
			Destination: &cfg.user,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("MEMOIR_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "index",
			Usage:       "Vector index backend (bruteforce, chromem)",
			Value:       "bruteforce",
			Sources:     cli.EnvVars("MEMOIR_INDEX"),
			Destination: &cfg.index,
		},
	}
}

// policyFlags returns flags controlling intake and document policies
func policyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego intake policies",
			Sources:     cli.EnvVars("MEMOIR_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.BoolFlag{
			Name:        "overwrite",
			Usage:       "Let biography edits replace sections with colliding titles",
			Sources:     cli.EnvVars("MEMOIR_OVERWRITE"),
			Destination: &cfg.overwrite,
		},
	}
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".memoir"
	}
	return filepath.Join(home, ".memoir")
}

// context attaches the configured logger so downstream code logs at
// the requested level
func (cfg *config) context(ctx context.Context) context.Context {
	return logging.With(ctx, logging.New(cfg.logLevel, os.Stderr))
}

// newRepository creates a new repository instance
func (cfg *config) newRepository() (repository.Repository, error) {
	if cfg.baseDir == "" {
		return nil, goerr.New("base-dir is required")
	}
	return repository.NewLocal(cfg.baseDir), nil
}

// newGemini creates a new Gemini adapter instance. It serves both
// generation and embedding.
func (cfg *config) newGemini(ctx context.Context) (*adapter.GeminiClient, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation)
}

// newStorage creates the snapshot export backend: Cloud Storage when a
// bucket is set, a local directory below base-dir otherwise
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket != "" {
		return adapter.NewCloudStorage(ctx, cfg.bucket)
	}
	return adapter.NewLocalStorage(filepath.Join(cfg.baseDir, "exports")), nil
}

// indexFactory translates the index flag into a vector index factory.
// nil means the store default, brute force.
func (cfg *config) indexFactory(ctx context.Context) (func() vector.Index, error) {
	switch cfg.index {
	case "", "bruteforce":
		return nil, nil

	case "chromem":
		logger := logging.From(ctx)
		return func() vector.Index {
			idx, err := vector.NewChromem(uuid.NewString())
			if err != nil {
				logger.Warn("chromem index unavailable, using brute force", "error", err)
				return vector.NewBruteForce(model.EmbeddingDimensions)
			}
			return idx
		}, nil

	default:
		return nil, goerr.New("unknown index backend", goerr.V("index", cfg.index))
	}
}

// bankOptions wraps the index factory for the memory bank loader
func (cfg *config) bankOptions(ctx context.Context) ([]memory.Option, error) {
	factory, err := cfg.indexFactory(ctx)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, nil
	}
	return []memory.Option{memory.WithIndexFactory(factory)}, nil
}

// storeOptions wraps the index factory for the question store loader
func (cfg *config) storeOptions(ctx context.Context) ([]question.Option, error) {
	factory, err := cfg.indexFactory(ctx)
	if err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, nil
	}
	return []question.Option{question.WithIndexFactory(factory)}, nil
}

// newIntake creates the Rego intake engine; without a policy dir it
// accepts every proposal
func (cfg *config) newIntake(ctx context.Context) (*workflow.Engine, error) {
	return workflow.New(ctx, cfg.policyDir)
}

// biographyOptions translates CLI policy flags into biography options
func (cfg *config) biographyOptions() []biography.Option {
	var opts []biography.Option
	if cfg.overwrite {
		opts = append(opts, biography.WithOverwrite())
	}
	return opts
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func biographyCommand() *cli.Command {
	return &cli.Command{
		Name:  "biography",
		Usage: "Inspect and edit the biography document",
		Commands: []*cli.Command{
			biographyShowCommand(),
			biographyCoverageCommand(),
			biographyEditCommand(),
			biographyExportCommand(),
		},
	}
}

func biographyShowCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Print the biography document",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			bio, err := biography.New(repo, cfg.biographyOptions()...).Get(ctx, cfg.user)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(bio.Root.Subsections) == 0 {
				fmt.Fprintf(w, "Biography of %s is empty\n", cfg.user)
				return nil
			}

			writeMarkdown(w, bio)
			return nil
		},
	}
}

func biographyCoverageCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "coverage",
		Usage: "Report how much of the memory bank the biography covers",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			bankOpts, err := cfg.bankOptions(ctx)
			if err != nil {
				return err
			}
			bank, err := memory.Load(ctx, repo, cfg.user, gemini, bankOpts...)
			if err != nil {
				return err
			}
			bio, err := biography.New(repo).Get(ctx, cfg.user)
			if err != nil {
				return err
			}

			report := biography.Completeness(bio, bank)

			w := c.Root().Writer
			fmt.Fprintf(w, "Recall: %.1f%% (%d of %d memories referenced)\n",
				report.Recall, report.ReferencedCount, report.TotalMemories)

			if report.UnreferencedCount > 0 {
				fmt.Fprintf(w, "\nNot yet covered:\n")
				for _, mem := range report.Unreferenced {
					fmt.Fprintf(w, "  [%d] %s: %s\n", mem.ImportanceScore, mem.Title, mem.Text)
				}
			}
			return nil
		},
	}
}

func biographyEditCommand() *cli.Command {
	var (
		cfg  config
		file string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Path to JSON file with an array of edit requests",
			Destination: &file,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:  "edit",
		Usage: "Apply a batch of edit requests to the biography",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			data, err := os.ReadFile(file)
			if err != nil {
				return goerr.Wrap(err, "failed to read edit file", goerr.V("path", file))
			}

			var edits []model.EditRequest
			if err := json.Unmarshal(data, &edits); err != nil {
				return goerr.Wrap(err, "failed to parse edit file", goerr.V("path", file))
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}

			uc := biography.New(repo, cfg.biographyOptions()...)
			results := uc.ApplyEdits(ctx, cfg.user, edits)

			w := c.Root().Writer
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(w, "FAIL %s %s: %v\n", r.Request.Type, r.Request.Path, r.Err)
					continue
				}
				fmt.Fprintf(w, "OK   %s %s\n", r.Request.Type, r.Request.Path)
			}

			if failed > 0 {
				return goerr.New("some edits failed",
					goerr.V("failed", failed), goerr.V("total", len(results)))
			}
			return nil
		},
	}
}

func biographyExportCommand() *cli.Command {
	var cfg config

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket to export to (local exports dir when empty)",
			Sources:     cli.EnvVars("MEMOIR_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "export",
		Usage: "Export the biography as a Markdown snapshot",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			bio, err := biography.New(repo).Get(ctx, cfg.user)
			if err != nil {
				return err
			}

			key := cfg.user + "/biography.md"
			writer, err := storage.Put(ctx, key)
			if err != nil {
				return err
			}

			writeMarkdown(writer, bio)
			if err := writer.Close(); err != nil {
				return goerr.Wrap(err, "failed to finish export", goerr.V("key", key))
			}

			fmt.Fprintf(c.Root().Writer, "Exported biography to %s\n", key)
			return nil
		},
	}
}

// writeMarkdown renders the section tree with heading depth matching
// tree depth
func writeMarkdown(w io.Writer, bio *model.Biography) {
	var walk func(s *model.Section, depth int)
	walk = func(s *model.Section, depth int) {
		for _, sub := range s.Subsections {
			fmt.Fprintf(w, "%s %s\n\n", strings.Repeat("#", depth), sub.Title)
			if sub.Content != "" {
				fmt.Fprintf(w, "%s\n\n", sub.Content)
			}
			walk(sub, depth+1)
		}
	}
	walk(bio.Root, 1)
}

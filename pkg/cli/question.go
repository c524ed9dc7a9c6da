package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/usecase/question"
	"github.com/urfave/cli/v3"
)

func questionCommand() *cli.Command {
	return &cli.Command{
		Name:  "question",
		Usage: "Inspect the interview question store",
		Commands: []*cli.Command{
			questionCheckCommand(),
			questionListCommand(),
		},
	}
}

func questionCheckCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "How many prior questions the oracle compares against",
			Value:       5,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "check",
		Usage:     "Check whether a question duplicates one already asked",
		ArgsUsage: "<question>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			candidate := strings.Join(c.Args().Slice(), " ")
			if candidate == "" {
				return goerr.New("question text is required")
			}

			repo, err := cfg.newRepository()
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			storeOpts, err := cfg.storeOptions(ctx)
			if err != nil {
				return err
			}
			storeOpts = append(storeOpts, question.WithGemini(gemini))
			store, err := question.Load(ctx, repo, cfg.user, gemini, storeOpts...)
			if err != nil {
				return err
			}

			check, err := store.CheckDuplicate(ctx, candidate, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to check for duplicates")
			}

			w := c.Root().Writer
			if check.IsDuplicate {
				fmt.Fprintf(w, "Duplicate of: %s\n", check.MatchedQuestion)
			} else {
				fmt.Fprintf(w, "Not a duplicate\n")
			}
			if check.Explanation != "" {
				fmt.Fprintf(w, "Reason: %s\n", check.Explanation)
			}
			return nil
		},
	}
}

func questionListCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List all asked questions in order",
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

			storeOpts, err := cfg.storeOptions(ctx)
			if err != nil {
				return err
			}
			store, err := question.Load(ctx, repo, cfg.user, gemini, storeOpts...)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if store.Count() == 0 {
				fmt.Fprintf(w, "No questions asked yet\n")
				return nil
			}

			for _, q := range store.All() {
				fmt.Fprintf(w, "%s  %s (%d memories)\n",
					q.CreatedAt.Format("2006-01-02"), q.Content, len(q.MemoryIDs))
			}
			return nil
		},
	}
}

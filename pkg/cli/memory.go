package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
)

func memoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "memory",
		Usage: "Inspect and manage the memory bank",
		Commands: []*cli.Command{
			memoryAddCommand(),
			memorySearchCommand(),
			memoryListCommand(),
		},
	}
}

func memoryAddCommand() *cli.Command {
	var (
		cfg        config
		title      string
		text       string
		importance int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "title",
			Aliases:     []string{"t"},
			Usage:       "Short label for the memory",
			Destination: &title,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "text",
			Usage:       "Self-contained statement of the fact",
			Destination: &text,
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "importance",
			Aliases:     []string{"i"},
			Usage:       "Importance score, 1 (trivia) to 10 (life-defining)",
			Value:       5,
			Destination: &importance,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "add",
		Usage: "Add a memory directly, bypassing the interview",
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

			unlock, err := repo.Lock(ctx, cfg.user)
			if err != nil {
				return err
			}
			defer unlock()

			bankOpts, err := cfg.bankOptions(ctx)
			if err != nil {
				return err
			}
			bank, err := memory.Load(ctx, repo, cfg.user, gemini, bankOpts...)
			if err != nil {
				return err
			}

			mem, err := bank.Add(ctx, memory.AddInput{
				Title:           title,
				Text:            text,
				ImportanceScore: int(importance),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to add memory")
			}

			if err := bank.Save(ctx, repo); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Added memory %s\n", mem.ID)
			return nil
		},
	}
}

func memorySearchCommand() *cli.Command {
	var (
		cfg   config
		limit int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Max results",
			Value:       memory.DefaultSearchLimit,
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search memories by semantic similarity",
		ArgsUsage: "<query>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.context(ctx)

			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return goerr.New("query is required")
			}

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

			results, err := bank.Search(ctx, query, int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to search memories")
			}

			w := c.Root().Writer
			if len(results) == 0 {
				fmt.Fprintf(w, "No memories found\n")
				return nil
			}

			for i, r := range results {
				fmt.Fprintf(w, "%d. %s (similarity %.3f, importance %d)\n",
					i+1, r.Memory.Title, r.Similarity, r.Memory.ImportanceScore)
				fmt.Fprintf(w, "   %s\n", r.Memory.Text)
			}
			return nil
		},
	}
}

func memoryListCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List all memories in insertion order",
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

			w := c.Root().Writer
			if bank.Count() == 0 {
				fmt.Fprintf(w, "No memories stored\n")
				return nil
			}

			for _, mem := range bank.All() {
				fmt.Fprintf(w, "%s  [%d] %s: %s\n",
					mem.CreatedAt.Format("2006-01-02"), mem.ImportanceScore, mem.Title, mem.Text)
			}
			return nil
		},
	}
}

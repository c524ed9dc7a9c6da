package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/service/mcp"
	"github.com/m-mizutani/memoir/pkg/tool"
	"github.com/m-mizutani/memoir/pkg/usecase/interview"
	"github.com/urfave/cli/v3"
)

func interviewCommand() *cli.Command {
	var (
		cfg             config
		mcpConfig       string
		responseTimeout time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "Path to MCP server configuration file",
			Sources:     cli.EnvVars("MEMOIR_MCP_CONFIG"),
			Destination: &mcpConfig,
		},
		&cli.DurationFlag{
			Name:        "response-timeout",
			Usage:       "How long to wait for an answer before ending the session",
			Value:       10 * time.Minute,
			Sources:     cli.EnvVars("MEMOIR_RESPONSE_TIMEOUT"),
			Destination: &responseTimeout,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, policyFlags(&cfg)...)

	return &cli.Command{
		Name:  "interview",
		Usage: "Run an interactive interview session",
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

			intake, err := cfg.newIntake(ctx)
			if err != nil {
				return err
			}

			indexFactory, err := cfg.indexFactory(ctx)
			if err != nil {
				return err
			}

			var extraTools []tool.Tool
			mcpProvider, err := mcp.LoadAndConnect(ctx, mcpConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to set up MCP tools")
			}
			if mcpProvider != nil {
				extraTools = append(extraTools, mcpProvider)
			}

			session, err := interview.New(ctx, interview.NewInput{
				Repo:             repo,
				Gemini:           gemini,
				Embedder:         gemini,
				UserID:           cfg.user,
				Intake:           intake,
				IndexFactory:     indexFactory,
				ExtraTools:       extraTools,
				BiographyOptions: cfg.biographyOptions(),
			})
			if err != nil {
				return goerr.Wrap(err, "failed to create interview session")
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			responses := make(chan string)
			go func() {
				defer close(responses)
				for {
					line, err := rl.Readline()
					if err != nil {
						// Ctrl-C and Ctrl-D both end the interview
						return
					}
					responses <- line
				}
			}()

			w := c.Root().Writer
			fmt.Fprintf(w, "Interview session for %s. Empty line or Ctrl-D to finish.\n\n", cfg.user)

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

			for {
				sp.Suffix = " thinking of a question..."
				sp.Start()
				q, err := session.NextQuestion(ctx)
				sp.Stop()
				if err != nil {
					if errors.Is(err, interview.ErrNoFreshQuestion) {
						fmt.Fprintf(w, "I'm out of fresh questions for now. Thank you!\n")
						return nil
					}
					return goerr.Wrap(err, "failed to plan next question")
				}

				fmt.Fprintf(w, "\n%s\n", q.Content)

				answer, ok := session.AwaitResponse(ctx, responses, responseTimeout)
				if !ok || answer == "" {
					fmt.Fprintf(w, "\nInterview session completed\n")
					return nil
				}

				sp.Suffix = " taking notes..."
				sp.Start()
				result, err := session.RecordResponse(ctx, q.ID, answer)
				sp.Stop()
				if err != nil {
					return goerr.Wrap(err, "failed to record response")
				}

				printRecordResult(w, result)
			}
		},
	}
}

func printRecordResult(w io.Writer, result *interview.RecordResult) {
	for _, mem := range result.Added {
		fmt.Fprintf(w, "  + remembered: %s (importance %d)\n", mem.Title, mem.ImportanceScore)
	}
	for _, rej := range result.Rejected {
		if rej.Reason != "" {
			fmt.Fprintf(w, "  - skipped: %s (%s)\n", rej.Title, rej.Reason)
		} else {
			fmt.Fprintf(w, "  - skipped: %s\n", rej.Title)
		}
	}
	for _, edit := range result.Edits {
		if edit.Err != nil {
			fmt.Fprintf(w, "  ! biography edit failed: %s %s: %v\n", edit.Request.Type, edit.Request.Path, edit.Err)
			continue
		}
		fmt.Fprintf(w, "  * biography updated: %s %s\n", edit.Request.Type, edit.Request.Path)
	}
}

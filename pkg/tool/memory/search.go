// Package memory exposes the memory bank to the LLM as a
// function-calling tool.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/tool"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

type searchMemoriesInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// Search lets the LLM look up stored memories by semantic similarity.
// The bank is session-scoped, so the tool is constructed per session
// rather than discovered through Client.
type Search struct {
	bank *memory.Bank
}

// NewSearch creates a new search_memories tool over the given bank
func NewSearch(bank *memory.Bank) *Search {
	return &Search{bank: bank}
}

// Init enables the tool only when a bank is attached
func (s *Search) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return s.bank != nil, nil
}

// Flags returns CLI flags for this tool
func (s *Search) Flags() []cli.Flag {
	return nil
}

// Prompt returns additional information to be added to the system prompt
func (s *Search) Prompt(ctx context.Context) string {
	return `Before asking about a topic, you can use the search_memories tool to check what the interviewee has already told you about it. Use it to avoid re-asking for facts you already have and to find threads worth following up.`
}

// Spec returns the tool specification for Gemini function calling
func (s *Search) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "search_memories",
				Description: "Search the interviewee's stored memories by semantic similarity to a natural language query",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"query": {
							Type:        genai.TypeString,
							Description: "Natural language description of what to look for, e.g. \"childhood home\" or \"first job after college\"",
						},
						"limit": {
							Type:        genai.TypeInteger,
							Description: fmt.Sprintf("Max results (default: %d)", memory.DefaultSearchLimit),
						},
					},
					Required: []string{"query"},
				},
			},
		},
	}
}

// Execute runs the tool with the given function call
func (s *Search) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	paramsJSON, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input searchMemoriesInput
	if err := json.Unmarshal(paramsJSON, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse input parameters")
	}

	results, err := s.bank.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search memories")
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": formatResults(results)},
	}, nil
}

// formatResults formats the search result as a human-readable string
func formatResults(results []model.MemorySearchResult) string {
	if len(results) == 0 {
		return "No stored memories match the query."
	}

	out := fmt.Sprintf("Found %d memory(ies):\n\n", len(results))
	for i, r := range results {
		out += fmt.Sprintf("%d. [%s] %s (importance %d, similarity %.3f)\n",
			i+1, r.Memory.ID, r.Memory.Title, r.Memory.ImportanceScore, r.Similarity)
		out += fmt.Sprintf("   %s\n\n", r.Memory.Text)
	}

	return out
}

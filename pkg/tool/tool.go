// Package tool defines the function-calling tools exposed to the LLM
// during interview sessions, and the registry that routes calls to
// them.
package tool

import (
	"context"

	"github.com/m-mizutani/memoir/pkg/adapter"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Tool represents a capability that can be called by the LLM
type Tool interface {
	// Init prepares the tool with shared resources. Returning false
	// disables the tool for this session without error.
	Init(ctx context.Context, client *Client) (bool, error)

	// Spec returns the tool specification for Gemini function calling
	Spec() *genai.Tool

	// Execute runs the tool with the given function call and returns the response
	Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error)

	// Prompt returns additional information to be added to the system prompt
	// Returns empty string if no additional prompt is needed
	Prompt(ctx context.Context) string

	// Flags returns CLI flags for this tool
	// Returns nil if no flags are needed
	Flags() []cli.Flag
}

// Client contains shared resources that tools can use
type Client struct {
	Repo     repository.Repository
	Gemini   adapter.Gemini
	Embedder adapter.Embedder
}

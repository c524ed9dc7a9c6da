package tool

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

var errToolNotFound = goerr.New("tool not found")

// Registry manages the tools available to the LLM. Tools are
// registered up front, but only the ones whose Init reports enabled
// are dispatched to.
type Registry struct {
	registered []Tool
	enabled    []Tool
	byName     map[string]Tool
}

// New creates a new tool registry with the given tools. Init must run
// before Specs, Prompts, or Execute.
func New(tools ...Tool) *Registry {
	return &Registry{
		registered: tools,
		byName:     make(map[string]Tool),
	}
}

// Init initializes every registered tool and keeps the enabled ones.
// A tool that declines (Init returns false) is skipped silently; an
// Init error aborts the whole registry.
func (r *Registry) Init(ctx context.Context, client *Client) error {
	r.enabled = r.enabled[:0]
	r.byName = make(map[string]Tool)

	for _, t := range r.registered {
		ok, err := t.Init(ctx, client)
		if err != nil {
			return goerr.Wrap(err, "failed to initialize tool")
		}
		if !ok {
			continue
		}

		spec := t.Spec()
		if spec == nil || len(spec.FunctionDeclarations) == 0 {
			continue
		}

		r.enabled = append(r.enabled, t)
		for _, fd := range spec.FunctionDeclarations {
			if _, exists := r.byName[fd.Name]; exists {
				return goerr.New("duplicate tool name", goerr.V("name", fd.Name))
			}
			r.byName[fd.Name] = t
			logging.From(ctx).Debug("tool enabled", "name", fd.Name)
		}
	}

	return nil
}

// Specs returns the specifications of enabled tools for Gemini
// function calling
func (r *Registry) Specs() []*genai.Tool {
	specs := make([]*genai.Tool, 0, len(r.enabled))
	for _, t := range r.enabled {
		specs = append(specs, t.Spec())
	}
	return specs
}

// Prompts returns the system prompt additions of enabled tools
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.enabled {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Flags returns the CLI flags of all registered tools, enabled or not.
// Flags must be collectable before Init because flag values feed Init.
func (r *Registry) Flags() []cli.Flag {
	var flags []cli.Flag
	for _, t := range r.registered {
		if toolFlags := t.Flags(); toolFlags != nil {
			flags = append(flags, toolFlags...)
		}
	}
	return flags
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	tool, ok := r.byName[fc.Name]
	if !ok {
		return nil, goerr.Wrap(errToolNotFound, "cannot execute", goerr.V("name", fc.Name))
	}

	return tool.Execute(ctx, fc)
}

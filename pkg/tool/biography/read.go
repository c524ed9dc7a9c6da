// Package biography exposes the biography document to the LLM as a
// read-only function-calling tool.
package biography

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/tool"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

type readSectionInput struct {
	Path string `json:"path"`
}

// Read lets the LLM inspect the biography under construction. Like the
// memory search tool it is bound to one session's document snapshot.
type Read struct {
	bio *model.Biography
}

// NewRead creates a new read_biography tool over the given document
func NewRead(bio *model.Biography) *Read {
	return &Read{bio: bio}
}

// Init enables the tool only when a document is attached
func (r *Read) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return r.bio != nil, nil
}

// Flags returns CLI flags for this tool
func (r *Read) Flags() []cli.Flag {
	return nil
}

// Prompt returns additional information to be added to the system prompt
func (r *Read) Prompt(ctx context.Context) string {
	return `You can use the read_biography tool to inspect the biography draft. Pass an empty path for the table of contents, or a slash-separated path like "Early Life/School Years" for one section.`
}

// Spec returns the tool specification for Gemini function calling
func (r *Read) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "read_biography",
				Description: "Read a section of the biography draft, or its table of contents",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"path": {
							Type:        genai.TypeString,
							Description: `Slash-separated section path, e.g. "Early Life/School Years". Empty for the document outline.`,
						},
					},
				},
			},
		},
	}
}

// Execute runs the tool with the given function call
func (r *Read) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	paramsJSON, err := json.Marshal(fc.Args)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal function arguments")
	}

	var input readSectionInput
	if err := json.Unmarshal(paramsJSON, &input); err != nil {
		return nil, goerr.Wrap(err, "failed to parse input parameters")
	}

	section := r.bio.SectionByPath(input.Path)
	if section == nil {
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"error": fmt.Sprintf("no section at path %q", input.Path)},
		}, nil
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": formatSection(section)},
	}, nil
}

// formatSection renders a section with its direct outline. The root
// renders as the table of contents.
func formatSection(s *model.Section) string {
	var sb strings.Builder

	if s.Parent() == nil {
		sb.WriteString("Biography outline:\n")
	} else {
		fmt.Fprintf(&sb, "Section: %s\n", s.Path())
		if s.Content != "" {
			fmt.Fprintf(&sb, "\n%s\n", s.Content)
		}
		if len(s.Comments) > 0 {
			sb.WriteString("\nComments:\n")
			for _, c := range s.Comments {
				fmt.Fprintf(&sb, "- %s\n", c)
			}
		}
	}

	if len(s.Subsections) == 0 {
		if s.Parent() == nil {
			sb.WriteString("(empty document)\n")
		}
		return sb.String()
	}

	sb.WriteString("\nSubsections:\n")
	writeOutline(&sb, s, 0)
	return sb.String()
}

func writeOutline(sb *strings.Builder, s *model.Section, depth int) {
	for _, sub := range s.Subsections {
		fmt.Fprintf(sb, "%s- %s\n", strings.Repeat("  ", depth), sub.Title)
		writeOutline(sb, sub, depth+1)
	}
}

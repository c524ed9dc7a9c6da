package question

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/duplicate.md
var duplicatePromptRaw string

var duplicatePromptTmpl = template.Must(template.New("duplicate").Parse(duplicatePromptRaw))

// noMatchSentinel is what the oracle returns in matched_question when
// no prior question is an effective duplicate
const noMatchSentinel = "NONE"

// CheckDuplicate judges whether the candidate question would elicit
// essentially the same answer as a prior question. It retrieves the k
// nearest prior questions by embedding similarity and asks the LLM
// oracle for a semantic equivalence judgment. An empty store is never
// a duplicate and costs no LLM call.
func (s *Store) CheckDuplicate(ctx context.Context, candidate string, k int) (*model.DuplicateCheck, error) {
	neighbors, err := s.Search(ctx, candidate, k)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search prior questions")
	}

	if len(neighbors) == 0 {
		return &model.DuplicateCheck{
			IsDuplicate: false,
			Explanation: "no prior questions to compare against",
		}, nil
	}

	if s.gemini == nil {
		return nil, goerr.New("duplicate oracle requires a gemini client")
	}

	priors := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		priors = append(priors, n.Question.Content)
	}

	var buf bytes.Buffer
	if err := duplicatePromptTmpl.Execute(&buf, map[string]any{
		"Target":     candidate,
		"Candidates": priors,
		"NoMatch":    noMatchSentinel,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute duplicate prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"is_duplicate": {
					Type:        genai.TypeBoolean,
					Description: "true if a prior question effectively asks the same thing",
				},
				"matched_question": {
					Type:        genai.TypeString,
					Description: "the matching prior question verbatim, or " + noMatchSentinel,
				},
				"explanation": {
					Type:        genai.TypeString,
					Description: "brief explanation of the judgment",
				},
			},
			Required: []string{"is_duplicate", "matched_question", "explanation"},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate duplicate judgment")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var check model.DuplicateCheck
	if err := json.Unmarshal([]byte(rawJSON), &check); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal duplicate judgment", goerr.V("json", rawJSON))
	}

	if check.MatchedQuestion == noMatchSentinel {
		check.MatchedQuestion = ""
	}

	return &check, nil
}

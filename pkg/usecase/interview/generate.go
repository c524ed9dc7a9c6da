package interview

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
	"google.golang.org/genai"
)

// maxToolIterations bounds the function-calling loop so a confused
// model cannot spin forever
const maxToolIterations = 16

// generate runs one generation with the tool loop: the model may call
// registry tools any number of times up to the iteration bound, and
// the last text part of the final turn is the result.
func (s *Session) generate(ctx context.Context, systemInstruction string, userMessage string, config *genai.GenerateContentConfig) (string, error) {
	logger := logging.From(ctx)

	if config == nil {
		config = &genai.GenerateContentConfig{}
	}
	config.SystemInstruction = genai.NewContentFromText(systemInstruction, "")

	// Structured-output calls cannot carry tools; only plain text
	// generations get the registry.
	if config.ResponseMIMEType == "" && s.registry != nil {
		config.Tools = s.registry.Specs()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(userMessage, genai.RoleUser),
	}

	var finalResult string

	for i := 0; i < maxToolIterations; i++ {
		resp, err := s.gemini.GenerateContent(ctx, contents, config)
		if err != nil {
			return "", goerr.Wrap(err, "failed to generate content")
		}

		hasFunctionCall := false
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}

			contents = append(contents, candidate.Content)

			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					finalResult = part.Text
				}

				if part.FunctionCall != nil {
					hasFunctionCall = true
					logger.Debug("tool call", "name", part.FunctionCall.Name)

					funcResp, execErr := s.registry.Execute(ctx, *part.FunctionCall)
					if execErr != nil {
						funcResp = &genai.FunctionResponse{
							Name:     part.FunctionCall.Name,
							Response: map[string]any{"error": execErr.Error()},
						}
					}

					contents = append(contents, &genai.Content{
						Role:  genai.RoleUser,
						Parts: []*genai.Part{{FunctionResponse: funcResp}},
					})
				}
			}
		}

		if !hasFunctionCall {
			break
		}
	}

	if finalResult == "" {
		return "", goerr.New("model produced no text output")
	}

	return finalResult, nil
}

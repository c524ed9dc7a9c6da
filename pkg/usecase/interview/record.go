package interview

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/extract.md
var extractPromptRaw string

//go:embed prompt/update.md
var updatePromptRaw string

var (
	extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))
	updatePromptTmpl  = template.Must(template.New("update").Parse(updatePromptRaw))
)

// RejectedMemory reports a proposal the intake policy turned away
type RejectedMemory struct {
	Title  string
	Reason string
}

// RecordResult summarizes what one interview exchange produced
type RecordResult struct {
	Added    []*model.Memory
	Rejected []RejectedMemory
	Edits    []biography.EditResult
}

type memoryProposal struct {
	Title      string `json:"title"`
	Text       string `json:"text"`
	Importance int    `json:"importance"`
}

type editProposal struct {
	Type      string   `json:"type"`
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	MemoryIDs []string `json:"memory_ids"`
}

// RecordResponse processes the interviewee's answer to a question:
// extracts memory proposals, gates each through the intake policy,
// stores the accepted ones linked to the question, and folds them into
// the biography through an edit batch. An empty or evasive response
// legitimately yields an empty result.
func (s *Session) RecordResponse(ctx context.Context, questionID model.QuestionID, response string) (*RecordResult, error) {
	logger := logging.From(ctx)

	q := s.store.Get(questionID)
	if q == nil {
		return nil, goerr.New("unknown question", goerr.V("question_id", questionID))
	}

	proposals, err := s.extractMemories(ctx, q.Content, response)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{}
	addedIDs := make([]model.MemoryID, 0, len(proposals))

	for _, p := range proposals {
		decision, err := s.intake.Evaluate(ctx, &model.Memory{
			Title:           p.Title,
			Text:            p.Text,
			ImportanceScore: p.Importance,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to evaluate intake policy", goerr.V("title", p.Title))
		}

		if !decision.Accept {
			logger.Info("memory rejected by intake policy",
				"title", p.Title, "reason", decision.Reason)
			result.Rejected = append(result.Rejected, RejectedMemory{
				Title:  p.Title,
				Reason: decision.Reason,
			})
			continue
		}

		mem, err := s.bank.Add(ctx, memory.AddInput{
			Title:           p.Title,
			Text:            p.Text,
			ImportanceScore: decision.Importance,
			SourceResponse:  response,
			QuestionIDs:     []model.QuestionID{questionID},
		})
		if err != nil {
			return nil, err
		}
		result.Added = append(result.Added, mem)
		addedIDs = append(addedIDs, mem.ID)
	}

	if len(addedIDs) > 0 {
		if err := s.store.LinkMemories(questionID, addedIDs); err != nil {
			return nil, err
		}
	}

	if err := s.persist(ctx); err != nil {
		return nil, err
	}

	if len(result.Added) > 0 {
		edits, err := s.updateBiography(ctx, result.Added)
		if err != nil {
			return nil, err
		}
		result.Edits = edits
	}

	return result, nil
}

// extractMemories asks the model for structured memory proposals
func (s *Session) extractMemories(ctx context.Context, questionText, response string) ([]memoryProposal, error) {
	var buf bytes.Buffer
	if err := extractPromptTmpl.Execute(&buf, map[string]any{
		"Question": questionText,
		"Response": response,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute extract prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {
						Type:        genai.TypeString,
						Description: "short label for the fact",
					},
					"text": {
						Type:        genai.TypeString,
						Description: "self-contained statement of the fact",
					},
					"importance": {
						Type:        genai.TypeInteger,
						Description: "1 (trivia) to 10 (life-defining)",
					},
				},
				Required: []string{"title", "text", "importance"},
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to extract memories")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var proposals []memoryProposal
	if err := json.Unmarshal([]byte(rawJSON), &proposals); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory proposals", goerr.V("json", rawJSON))
	}

	return proposals, nil
}

// updateBiography asks the model where the new memories belong and
// applies the resulting edit batch
func (s *Session) updateBiography(ctx context.Context, added []*model.Memory) ([]biography.EditResult, error) {
	bio, err := s.bioUC.Get(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := updatePromptTmpl.Execute(&buf, map[string]any{
		"Document": renderDocument(bio),
		"Memories": added,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute update prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"type": {
						Type: genai.TypeString,
						Enum: []string{string(model.EditTypeAdd), string(model.EditTypeContentChange)},
					},
					"path": {
						Type:        genai.TypeString,
						Description: "slash-separated section path",
					},
					"title": {
						Type:        genai.TypeString,
						Description: "section title, required for ADD",
					},
					"content": {
						Type:        genai.TypeString,
						Description: "full section text",
					},
					"memory_ids": {
						Type:  genai.TypeArray,
						Items: &genai.Schema{Type: genai.TypeString},
					},
				},
				Required: []string{"type", "path", "content"},
			},
		},
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buf.String(), genai.RoleUser),
	}

	resp, err := s.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to plan biography update")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid response structure from gemini")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var proposals []editProposal
	if err := json.Unmarshal([]byte(rawJSON), &proposals); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal edit proposals", goerr.V("json", rawJSON))
	}

	// Only ids of memories added in this exchange are linkable; the
	// model sometimes invents ids
	known := make(map[string]model.MemoryID, len(added))
	for _, m := range added {
		known[string(m.ID)] = m.ID
	}

	now := time.Now()
	edits := make([]model.EditRequest, 0, len(proposals))
	for i, p := range proposals {
		var ids []model.MemoryID
		for _, raw := range p.MemoryIDs {
			if id, ok := known[raw]; ok {
				ids = append(ids, id)
			}
		}

		// ADD without an explicit title takes the last path segment
		if model.EditType(p.Type) == model.EditTypeAdd && p.Title == "" {
			segments := strings.Split(p.Path, model.PathSeparator)
			p.Title = segments[len(segments)-1]
		}

		edits = append(edits, model.EditRequest{
			Type:      model.EditType(p.Type),
			Path:      p.Path,
			Title:     p.Title,
			Content:   p.Content,
			MemoryIDs: ids,
			Timestamp: now.Add(time.Duration(i) * time.Nanosecond),
		})
	}

	return s.bioUC.ApplyEdits(ctx, s.userID, edits), nil
}

// renderDocument flattens the section tree into a prompt-friendly
// plain text form
func renderDocument(bio *model.Biography) string {
	var sb strings.Builder
	renderSections(&sb, bio.Root)
	if sb.Len() == 0 {
		return "(empty document)"
	}
	return sb.String()
}

func renderSections(sb *strings.Builder, s *model.Section) {
	for _, sub := range s.Subsections {
		fmt.Fprintf(sb, "## %s\n", sub.Path())
		if sub.Content != "" {
			fmt.Fprintf(sb, "%s\n", sub.Content)
		}
		sb.WriteString("\n")
		renderSections(sb, sub)
	}
}

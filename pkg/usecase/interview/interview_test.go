package interview_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/repository"
	"github.com/m-mizutani/memoir/pkg/usecase/interview"
	"github.com/m-mizutani/memoir/pkg/workflow"
	"google.golang.org/genai"
)

// hashEmbedder derives a small deterministic vector from the text so
// that distinct inputs land on distinct points
type hashEmbedder struct{}

func (h *hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return []float32{float32(sum % 97), float32(len(text) % 31)}, nil
}

func (h *hashEmbedder) Dimensions() int {
	return 2
}

// scriptedGemini returns queued response bodies in order and records
// every prompt it saw
type scriptedGemini struct {
	responses []string
	prompts   []string
}

func (g *scriptedGemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				g.prompts = append(g.prompts, p.Text)
			}
		}
	}
	if config != nil && config.SystemInstruction != nil {
		for _, p := range config.SystemInstruction.Parts {
			if p.Text != "" {
				g.prompts = append(g.prompts, p.Text)
			}
		}
	}

	if len(g.responses) == 0 {
		return nil, goerr.New("script exhausted")
	}
	body := g.responses[0]
	g.responses = g.responses[1:]

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: body}},
				},
			},
		},
	}, nil
}

func (g *scriptedGemini) Embedding(ctx context.Context, text string) (*genai.EmbedContentResponse, error) {
	return &genai.EmbedContentResponse{}, nil
}

func newSession(t *testing.T, gemini *scriptedGemini, intake *workflow.Engine) *interview.Session {
	t.Helper()
	ctx := context.Background()

	session, err := interview.New(ctx, interview.NewInput{
		Repo:     repository.NewLocal(t.TempDir()),
		Gemini:   gemini,
		Embedder: &hashEmbedder{},
		UserID:   "user-1",
		Intake:   intake,
	})
	gt.NoError(t, err)
	return session
}

func TestAwaitResponse(t *testing.T) {
	ctx := context.Background()
	session := newSession(t, &scriptedGemini{}, nil)

	t.Run("delivered", func(t *testing.T) {
		responses := make(chan string, 1)
		responses <- "I grew up near the harbor."

		line, ok := session.AwaitResponse(ctx, responses, time.Second)
		gt.True(t, ok)
		gt.Equal(t, line, "I grew up near the harbor.")
	})

	t.Run("closed channel", func(t *testing.T) {
		responses := make(chan string)
		close(responses)

		_, ok := session.AwaitResponse(ctx, responses, time.Second)
		gt.False(t, ok)
	})

	t.Run("timeout", func(t *testing.T) {
		responses := make(chan string)

		_, ok := session.AwaitResponse(ctx, responses, 10*time.Millisecond)
		gt.False(t, ok)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		responses := make(chan string)

		_, ok := session.AwaitResponse(cancelled, responses, time.Second)
		gt.False(t, ok)
	})
}

func TestNextQuestionFreshStore(t *testing.T) {
	ctx := context.Background()
	gemini := &scriptedGemini{responses: []string{
		"What was your first job?\n",
	}}
	session := newSession(t, gemini, nil)

	// Empty store: the draft needs no oracle call and is stored as-is
	q, err := session.NextQuestion(ctx)
	gt.NoError(t, err)
	gt.Equal(t, q.Content, "What was your first job?")
	gt.Equal(t, session.Questions().Count(), 1)
	gt.A(t, gemini.responses).Length(0)
}

func TestNextQuestionRegeneratesOnDuplicate(t *testing.T) {
	ctx := context.Background()
	gemini := &scriptedGemini{responses: []string{
		// First draft collides with the stored question
		"What was your first job?",
		`{"is_duplicate": true, "matched_question": "What was your first job?", "explanation": "same topic"}`,
		// Second draft is fresh
		"Where did you grow up?",
		`{"is_duplicate": false, "matched_question": "NONE", "explanation": "new topic"}`,
	}}
	session := newSession(t, gemini, nil)

	_, err := session.Questions().Add(ctx, "What was your first job?", nil)
	gt.NoError(t, err)

	q, err := session.NextQuestion(ctx)
	gt.NoError(t, err)
	gt.Equal(t, q.Content, "Where did you grow up?")
	gt.Equal(t, session.Questions().Count(), 2)

	// The regeneration prompt carries the oracle's feedback
	joined := ""
	for _, p := range gemini.prompts {
		joined += p + "\n"
	}
	gt.S(t, joined).Contains("same topic")
}

func TestNextQuestionExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	gemini := &scriptedGemini{responses: []string{
		"What was your first job?",
		`{"is_duplicate": true, "matched_question": "What was your first job?", "explanation": "same"}`,
		"Tell me about your first job.",
		`{"is_duplicate": true, "matched_question": "What was your first job?", "explanation": "same"}`,
		"How did your working life begin?",
		`{"is_duplicate": true, "matched_question": "What was your first job?", "explanation": "same"}`,
	}}
	session := newSession(t, gemini, nil)

	_, err := session.Questions().Add(ctx, "What was your first job?", nil)
	gt.NoError(t, err)

	_, err = session.NextQuestion(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, interview.ErrNoFreshQuestion))

	// Nothing beyond the pre-existing question was stored
	gt.Equal(t, session.Questions().Count(), 1)
}

func TestRecordResponse(t *testing.T) {
	ctx := context.Background()
	gemini := &scriptedGemini{responses: []string{
		// Extraction proposals
		`[
			{"title": "First job", "text": "Started as a line cook in 1998", "importance": 6},
			{"title": "Harbor town", "text": "Grew up near the harbor", "importance": 5}
		]`,
		// Biography edit plan; the invented memory id must be dropped
		`[
			{"type": "ADD", "path": "Career", "content": "Started as a line cook in 1998.", "memory_ids": ["invented"]}
		]`,
	}}
	session := newSession(t, gemini, nil)

	q, err := session.Questions().Add(ctx, "What was your first job?", nil)
	gt.NoError(t, err)

	result, err := session.RecordResponse(ctx, q.ID, "I started as a line cook in 1998, in the harbor town where I grew up.")
	gt.NoError(t, err)
	gt.A(t, result.Added).Length(2)
	gt.A(t, result.Rejected).Length(0)
	gt.A(t, result.Edits).Length(1)
	gt.NoError(t, result.Edits[0].Err)

	// Memories landed in the bank, linked back to the question
	gt.Equal(t, session.Bank().Count(), 2)
	gt.A(t, session.Questions().Get(q.ID).MemoryIDs).Length(2)

	// ADD without an explicit title takes the last path segment; the
	// invented memory id is filtered out
	gt.Equal(t, result.Edits[0].Request.Title, "Career")
	gt.A(t, result.Edits[0].Request.MemoryIDs).Length(0)
}

func TestRecordResponseUnknownQuestion(t *testing.T) {
	ctx := context.Background()
	session := newSession(t, &scriptedGemini{}, nil)

	_, err := session.RecordResponse(ctx, model.QuestionID("missing"), "anything")
	gt.Error(t, err)
}

func TestRecordResponseEmptyExtraction(t *testing.T) {
	ctx := context.Background()
	gemini := &scriptedGemini{responses: []string{`[]`}}
	session := newSession(t, gemini, nil)

	q, err := session.Questions().Add(ctx, "What was your first job?", nil)
	gt.NoError(t, err)

	// An evasive answer produces nothing, and no biography update runs
	result, err := session.RecordResponse(ctx, q.ID, "I'd rather not say.")
	gt.NoError(t, err)
	gt.A(t, result.Added).Length(0)
	gt.A(t, result.Edits).Length(0)
	gt.Equal(t, session.Bank().Count(), 0)
}

func TestRecordResponseIntakeRejection(t *testing.T) {
	ctx := context.Background()

	policyDir := t.TempDir()
	intakePolicy := `package intake

default accept = false
default reason = "below importance threshold"

accept if {
	input.importance >= 3
}

reason = "" if {
	input.importance >= 3
}
`
	gt.NoError(t, os.WriteFile(filepath.Join(policyDir, "intake.rego"), []byte(intakePolicy), 0644))
	intake, err := workflow.New(ctx, policyDir)
	gt.NoError(t, err)

	gemini := &scriptedGemini{responses: []string{
		// One keeper, one below the policy threshold; no biography
		// update script is needed for the rejected one alone
		`[
			{"title": "First job", "text": "Started as a line cook in 1998", "importance": 6},
			{"title": "Weather remark", "text": "It was raining that day", "importance": 1}
		]`,
		`[]`,
	}}
	session := newSession(t, gemini, intake)

	q, err := session.Questions().Add(ctx, "What was your first job?", nil)
	gt.NoError(t, err)

	result, err := session.RecordResponse(ctx, q.ID, "It was raining the day I started as a line cook in 1998.")
	gt.NoError(t, err)
	gt.A(t, result.Added).Length(1)
	gt.A(t, result.Rejected).Length(1)
	gt.Equal(t, result.Rejected[0].Title, "Weather remark")
	gt.Equal(t, result.Rejected[0].Reason, "below importance threshold")
	gt.Equal(t, session.Bank().Count(), 1)
}

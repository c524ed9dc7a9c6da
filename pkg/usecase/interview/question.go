package interview

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/usecase/biography"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
)

//go:embed prompt/plan.md
var planPromptRaw string

var planPromptTmpl = template.Must(template.New("plan").Parse(planPromptRaw))

var ErrNoFreshQuestion = goerr.New("could not plan a non-duplicate question")

const (
	// maxPlanAttempts bounds regeneration when drafts keep colliding
	// with prior questions
	maxPlanAttempts = 3

	// coverageGapLimit caps how many unreferenced memories feed the
	// planner prompt
	coverageGapLimit = 10

	recentQuestionLimit = 10
)

// NextQuestion plans the next interview question. The planner sees the
// coverage report so unreferenced memories drive the agenda, drafts a
// question, and runs it through the duplicate oracle. Duplicates are
// regenerated with the oracle's explanation as feedback; if every
// attempt collides, ErrNoFreshQuestion is returned. The accepted
// question is stored before it is returned.
func (s *Session) NextQuestion(ctx context.Context) (*model.Question, error) {
	logger := logging.From(ctx)

	bio, err := s.bioUC.Get(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	report := biography.Completeness(bio, s.bank)

	gaps := report.Unreferenced
	if len(gaps) > coverageGapLimit {
		gaps = gaps[:coverageGapLimit]
	}

	recent := make([]string, 0, recentQuestionLimit)
	records := s.store.All()
	for i := len(records) - 1; i >= 0 && len(recent) < recentQuestionLimit; i-- {
		recent = append(recent, records[i].Content)
	}

	feedback := ""
	for attempt := 0; attempt < maxPlanAttempts; attempt++ {
		var buf bytes.Buffer
		if err := planPromptTmpl.Execute(&buf, map[string]any{
			"Recall":          report.Recall,
			"ReferencedCount": report.ReferencedCount,
			"TotalMemories":   report.TotalMemories,
			"Unreferenced":    gaps,
			"RecentQuestions": recent,
			"Feedback":        feedback,
		}); err != nil {
			return nil, goerr.Wrap(err, "failed to execute plan prompt template")
		}

		draft, err := s.generate(ctx, buf.String(), "Propose the next interview question.", nil)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to draft question")
		}
		draft = strings.TrimSpace(draft)

		check, err := s.store.CheckDuplicate(ctx, draft, 5)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to check question for duplicates")
		}

		if !check.IsDuplicate {
			q, err := s.store.Add(ctx, draft, nil)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to store question")
			}
			if err := s.persist(ctx); err != nil {
				return nil, err
			}
			return q, nil
		}

		logger.Debug("question draft duplicates prior",
			"draft", draft,
			"matched", check.MatchedQuestion,
			"attempt", attempt+1)
		feedback = fmt.Sprintf("Draft: %s\nDuplicates: %s\nReason: %s",
			draft, check.MatchedQuestion, check.Explanation)
	}

	return nil, goerr.Wrap(ErrNoFreshQuestion, "cannot continue",
		goerr.V("user_id", s.userID), goerr.V("attempts", maxPlanAttempts))
}

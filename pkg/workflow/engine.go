// Package workflow evaluates Rego intake policies against memories
// proposed by the extraction step, deciding whether each proposal is
// stored and allowing the policy to override its importance score.
package workflow

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

// regoPrintHook implements print.Hook interface for Rego print() statements
type regoPrintHook struct{}

func (h *regoPrintHook) Print(ctx print.Context, message string) error {
	logging.From(ctx.Context).Info("rego print", "message", message)
	return nil
}

// Decision is the outcome of evaluating the intake policy for one
// proposed memory
type Decision struct {
	Accept     bool
	Importance int
	Reason     string
}

// Engine holds the prepared intake policy query. A nil query means no
// policy was loaded and every proposal is accepted unchanged.
type Engine struct {
	intakePolicy *rego.PreparedEvalQuery
}

// New creates a new intake policy engine. An empty policyDir disables
// policy evaluation entirely.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	if policyDir == "" {
		return &Engine{}, nil
	}

	intake, err := loadPolicy(ctx, policyDir)
	if err != nil {
		return nil, err
	}

	return &Engine{intakePolicy: intake}, nil
}

// Evaluate runs the intake policy against a proposed memory. Without a
// policy the proposal is accepted with its importance unchanged. With
// a policy, a missing or false accept rule rejects the proposal, and a
// valid importance value in the policy output replaces the proposed
// score.
func (e *Engine) Evaluate(ctx context.Context, proposal *model.Memory) (*Decision, error) {
	if e.intakePolicy == nil {
		return &Decision{Accept: true, Importance: proposal.ImportanceScore}, nil
	}

	input := map[string]any{
		"title":      proposal.Title,
		"text":       proposal.Text,
		"importance": proposal.ImportanceScore,
		"metadata":   proposal.Metadata,
	}

	rs, err := e.intakePolicy.Eval(ctx, rego.EvalInput(input), rego.EvalPrintHook(&regoPrintHook{}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate intake policy", goerr.V("title", proposal.Title))
	}

	decision := &Decision{Importance: proposal.ImportanceScore}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		decision.Reason = "intake policy produced no result"
		return decision, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid intake result: not an object")
	}

	decision.Accept = getBool(data, "accept")
	decision.Reason = getString(data, "reason")

	if imp, ok := getInt(data, "importance"); ok && imp >= 1 && imp <= 10 {
		decision.Importance = imp
	}

	return decision, nil
}

// Helper functions
func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getInt(m map[string]any, key string) (int, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}

	// Rego numbers arrive as json.Number or float64 depending on the
	// evaluation path
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

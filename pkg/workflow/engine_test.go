package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/workflow"
)

func TestIntakePolicy(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()

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
	gt.NoError(t, os.WriteFile(filepath.Join(tmpDir, "intake.rego"), []byte(intakePolicy), 0644))

	engine, err := workflow.New(ctx, tmpDir)
	gt.NoError(t, err)

	// Proposal above the threshold
	accepted, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "First job",
		Text:            "Started as a line cook in 1998",
		ImportanceScore: 7,
	})
	gt.NoError(t, err)
	gt.True(t, accepted.Accept)
	gt.Equal(t, accepted.Importance, 7)

	// Proposal below the threshold
	rejected, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "Weather remark",
		Text:            "It was raining that day",
		ImportanceScore: 1,
	})
	gt.NoError(t, err)
	gt.False(t, rejected.Accept)
	gt.Equal(t, rejected.Reason, "below importance threshold")
}

func TestIntakeImportanceOverride(t *testing.T) {
	ctx := context.Background()

	tmpDir := t.TempDir()

	intakePolicy := `package intake

default accept = true

importance = 9 if {
	contains(input.text, "wedding")
}
`
	gt.NoError(t, os.WriteFile(filepath.Join(tmpDir, "intake.rego"), []byte(intakePolicy), 0644))

	engine, err := workflow.New(ctx, tmpDir)
	gt.NoError(t, err)

	decision, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "Wedding day",
		Text:            "Their wedding was held at the lake house",
		ImportanceScore: 4,
	})
	gt.NoError(t, err)
	gt.True(t, decision.Accept)
	gt.Equal(t, decision.Importance, 9)

	// No override rule matched, proposed score stands
	decision2, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "Commute",
		Text:            "Took the 6am train every day",
		ImportanceScore: 4,
	})
	gt.NoError(t, err)
	gt.True(t, decision2.Accept)
	gt.Equal(t, decision2.Importance, 4)
}

func TestNoPolicyFiles(t *testing.T) {
	ctx := context.Background()

	// Empty directory means no intake gate
	tmpDir := t.TempDir()

	engine, err := workflow.New(ctx, tmpDir)
	gt.NoError(t, err)

	decision, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "Anything",
		Text:            "Everything is accepted without a policy",
		ImportanceScore: 2,
	})
	gt.NoError(t, err)
	gt.True(t, decision.Accept)
	gt.Equal(t, decision.Importance, 2)
}

func TestNoPolicyDir(t *testing.T) {
	ctx := context.Background()

	engine, err := workflow.New(ctx, "")
	gt.NoError(t, err)

	decision, err := engine.Evaluate(ctx, &model.Memory{
		Title:           "Anything",
		Text:            "No policy directory configured",
		ImportanceScore: 5,
	})
	gt.NoError(t, err)
	gt.True(t, decision.Accept)
}

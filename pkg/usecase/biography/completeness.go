package biography

import (
	"sort"

	"github.com/m-mizutani/memoir/pkg/model"
	"github.com/m-mizutani/memoir/pkg/usecase/memory"
)

// CompletenessReport measures how much of the memory bank the
// biography document covers. Recall is a percentage; Unreferenced
// lists the memories the planner should address next, most important
// first.
type CompletenessReport struct {
	Recall            float64
	TotalMemories     int
	ReferencedCount   int
	UnreferencedCount int
	Unreferenced      []*model.Memory
}

// Completeness collects every memory ID referenced anywhere in the
// section tree and compares the set against the bank. References to
// memories the bank no longer holds are tolerated and simply do not
// count. An empty bank yields recall 0, not a division error.
func Completeness(bio *model.Biography, bank *memory.Bank) *CompletenessReport {
	refs := bio.MemoryRefs()

	report := &CompletenessReport{
		TotalMemories: bank.Count(),
	}

	for _, mem := range bank.All() {
		if _, ok := refs[mem.ID]; ok {
			report.ReferencedCount++
		} else {
			report.Unreferenced = append(report.Unreferenced, mem)
		}
	}
	report.UnreferencedCount = len(report.Unreferenced)

	if report.TotalMemories > 0 {
		report.Recall = 100.0 * float64(report.ReferencedCount) / float64(report.TotalMemories)
	}

	sort.SliceStable(report.Unreferenced, func(i, j int) bool {
		return report.Unreferenced[i].ImportanceScore > report.Unreferenced[j].ImportanceScore
	})

	return report
}

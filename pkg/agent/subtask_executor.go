// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/retrieval"
	"github.com/aiteam0/rag-lab/pkg/store"
)

// SubtaskExecution is the control handed to the retriever node after a
// subtask executor invocation completes (spec §4.4 step 5): the query
// variations (each independently language-tagged), the generated filter,
// and the subtask the retrieval result must be attached to.
type SubtaskExecution struct {
	SubtaskID  string
	Variations []retrieval.Variation
	Filter     store.Filter
}

// SubtaskExecutor runs the five ordered steps of spec §4.4 against the
// subtask at TurnState.CurrentSubtaskIdx: metadata fetch, query variation,
// extraction, filter generation, then emits the retrieval control. It is
// grounded on the teacher's Rewriter/Planner step-preparation idiom,
// generalized into the multi-stage pipeline the expanded subtask contract
// requires.
type SubtaskExecutor struct {
	metadata   *retrieval.MetadataCache
	variations *VariationGenerator
	extractor  *Extractor
	filterCfg  retrieval.FilterGeneratorConfig
	llm        llm.Provider
}

// NewSubtaskExecutor constructs a subtask executor bound to a metadata
// cache and the LLM-backed variation generator and filter generator.
func NewSubtaskExecutor(metadata *retrieval.MetadataCache, variations *VariationGenerator, llmProvider llm.Provider, filterCfg retrieval.FilterGeneratorConfig) *SubtaskExecutor {
	return &SubtaskExecutor{
		metadata:   metadata,
		variations: variations,
		extractor:  NewExtractor(),
		filterCfg:  filterCfg,
		llm:        llmProvider,
	}
}

// ExecuteSubtask runs the five steps for subtaskID/query and returns the
// retrieval control. Fails the subtask (non-nil error) only when zero query
// variations can be produced (spec §4.4 step 2) — every other step degrades
// gracefully (empty filter, stale metadata, heuristic language detection).
func (e *SubtaskExecutor) ExecuteSubtask(ctx context.Context, subtaskID, query string, deadline time.Time) (SubtaskExecution, error) {
	snapshot, err := e.metadata.Get(ctx)
	if err != nil {
		snapshot = store.MetadataSnapshot{}
	}

	variationStrs, err := e.variations.Generate(ctx, query, deadline)
	if err != nil || len(variationStrs) == 0 {
		return SubtaskExecution{}, fmt.Errorf("subtask %s: no query variations produced", subtaskID)
	}

	hint := e.extractor.Extract(query, snapshot)

	filter, err := retrieval.GenerateFilter(ctx, e.llm, query, hint, snapshot, e.filterCfg, deadline)
	if err != nil {
		filter = store.Filter{}
	}

	variations := make([]retrieval.Variation, 0, len(variationStrs))
	for _, v := range variationStrs {
		variations = append(variations, retrieval.Variation{
			Query:    v,
			Language: retrieval.DetectLanguage(v),
		})
	}

	return SubtaskExecution{
		SubtaskID:  subtaskID,
		Variations: variations,
		Filter:     filter,
	}, nil
}

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package nodes wraps the pkg/agent components as workflow.Node
// implementations: each Execute is a pure function of (ctx, TurnState)
// returning a StateDelta, per the orchestrator contract of spec §4.1. This
// replaces the teacher's in-place `Execute(state *State) (*NodeResult,
// error)` wrappers (pkg/nodes/nodes.go) one for one, generalized from the
// teacher's eight-node linear loop to the ten-node branching topology.
package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/aiteam0/rag-lab/pkg/agent"
	"github.com/aiteam0/rag-lab/pkg/retrieval"
	"github.com/aiteam0/rag-lab/pkg/store"
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// RouterNode wraps agent.Router: classifies query_type (spec §4.2).
type RouterNode struct {
	router *agent.Router
}

// NewRouterNode creates a new router node.
func NewRouterNode(router *agent.Router) *RouterNode {
	return &RouterNode{router: router}
}

// Execute classifies state.Query's retrieval requirement.
func (n *RouterNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	qt, err := n.router.Classify(ctx, state.Query, state.Messages, deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}
	return workflow.StateDelta{QueryType: workflow.QueryTypePtr(qt)}, nil
}

// Name returns the node name.
func (n *RouterNode) Name() string { return "router" }

// ContextResolverNode wraps agent.ContextResolver: rewrites a
// history_required query into a self-contained form (spec §4.2).
type ContextResolverNode struct {
	resolver *agent.ContextResolver
}

// NewContextResolverNode creates a new context resolver node.
func NewContextResolverNode(resolver *agent.ContextResolver) *ContextResolverNode {
	return &ContextResolverNode{resolver: resolver}
}

// Execute resolves unresolved references in state.Query.
func (n *ContextResolverNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	resolved, err := n.resolver.Resolve(ctx, state.Query, state.Messages, deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}
	return workflow.StateDelta{EnhancedQuery: workflow.StringPtr(resolved)}, nil
}

// Name returns the node name.
func (n *ContextResolverNode) Name() string { return "context_resolver" }

// DirectResponderNode wraps agent.DirectResponder: answers "simple"
// queries directly without retrieval (spec §4.2).
type DirectResponderNode struct {
	responder *agent.DirectResponder
}

// NewDirectResponderNode creates a new direct responder node.
func NewDirectResponderNode(responder *agent.DirectResponder) *DirectResponderNode {
	return &DirectResponderNode{responder: responder}
}

// Execute answers the effective query directly; the turn ends here.
func (n *DirectResponderNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	answer, err := n.responder.Respond(ctx, state.EffectiveQuery(), deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}
	return workflow.StateDelta{
		FinalAnswer:    workflow.StringPtr(answer),
		Confidence:     workflow.Float64Ptr(1.0),
		WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusCompleted),
		Messages:       []workflow.Message{{Role: "assistant", Text: answer}},
	}, nil
}

// Name returns the node name.
func (n *DirectResponderNode) Name() string { return "direct_responder" }

// PlannerNode wraps agent.Planner: decomposes the effective query into
// subtasks (spec §4.3).
type PlannerNode struct {
	planner *agent.Planner
}

// NewPlannerNode creates a new planner node.
func NewPlannerNode(planner *agent.Planner) *PlannerNode {
	return &PlannerNode{planner: planner}
}

// Execute plans subtasks for state.EffectiveQuery() and resets the subtask
// cursor to 0.
func (n *PlannerNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	subtasks, err := n.planner.Plan(ctx, state.EffectiveQuery(), deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}
	return workflow.StateDelta{
		Subtasks:          subtasks,
		CurrentSubtaskIdx: workflow.IntPtr(0),
	}, nil
}

// Name returns the node name.
func (n *PlannerNode) Name() string { return "planner" }

// SubtaskExecutorNode wraps agent.SubtaskExecutor (spec §4.4). On entry it
// first advances CurrentSubtaskIdx past any subtask the retriever has
// already completed, then prepares the new current subtask. This is the
// node responsible for the "advances the index by exactly one on success"
// contract of spec §4.4 — the retriever populates a subtask's documents
// but never moves the cursor, so _needs_web (evaluated right after the
// retriever) still observes the subtask that was just retrieved for.
type SubtaskExecutorNode struct {
	executor *agent.SubtaskExecutor
}

// NewSubtaskExecutorNode creates a new subtask executor node.
func NewSubtaskExecutorNode(executor *agent.SubtaskExecutor) *SubtaskExecutorNode {
	return &SubtaskExecutorNode{executor: executor}
}

// Execute advances past any completed subtask and prepares the next one.
func (n *SubtaskExecutorNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	idx := state.CurrentSubtaskIdx
	if idx >= 0 && idx < len(state.Subtasks) && state.Subtasks[idx].Status == workflow.SubtaskCompleted {
		idx++
	}

	if idx >= len(state.Subtasks) {
		return workflow.StateDelta{CurrentSubtaskIdx: workflow.IntPtr(idx)}, nil
	}

	subtask := state.Subtasks[idx]
	deadline, _ := ctx.Deadline()

	execution, err := n.executor.ExecuteSubtask(ctx, subtask.ID, subtask.Query, deadline)
	if err != nil {
		updated := cloneSubtasks(state.Subtasks)
		updated[idx].Status = workflow.SubtaskFailed
		return workflow.StateDelta{
			Subtasks:       updated,
			Err:            err,
			WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed),
		}, nil
	}

	queries := make([]string, len(execution.Variations))
	for i, v := range execution.Variations {
		queries[i] = v.Query
	}

	updated := cloneSubtasks(state.Subtasks)
	updated[idx].Variations = queries
	updated[idx].Filter = execution.Filter
	updated[idx].Status = workflow.SubtaskExecuting

	return workflow.StateDelta{
		Subtasks:          updated,
		CurrentSubtaskIdx: workflow.IntPtr(idx),
		Metadata: map[string]interface{}{
			"pending_variations": execution.Variations,
			"pending_filter":     execution.Filter,
		},
	}, nil
}

// Name returns the node name.
func (n *SubtaskExecutorNode) Name() string { return "subtask_executor" }

func cloneSubtasks(subtasks []workflow.Subtask) []workflow.Subtask {
	return append([]workflow.Subtask{}, subtasks...)
}

// RetrieverNode wraps retrieval.HybridRetriever: runs the hybrid search for
// the subtask the subtask executor just prepared (spec §4.6).
type RetrieverNode struct {
	retriever *retrieval.HybridRetriever
}

// NewRetrieverNode creates a new retriever node.
func NewRetrieverNode(retriever *retrieval.HybridRetriever) *RetrieverNode {
	return &RetrieverNode{retriever: retriever}
}

// Execute runs the hybrid retrieval pass for the current subtask using the
// variations/filter control the subtask executor left in TurnState.Metadata.
func (n *RetrieverNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	idx := state.CurrentSubtaskIdx
	if idx < 0 || idx >= len(state.Subtasks) {
		return workflow.StateDelta{Warnings: []string{"retriever invoked with no current subtask"}}, nil
	}

	variations, _ := state.Metadata["pending_variations"].([]retrieval.Variation)
	filter, _ := state.Metadata["pending_filter"].(store.Filter)
	if len(variations) == 0 {
		return workflow.StateDelta{Warnings: []string{"retriever invoked with no pending query variations"}}, nil
	}

	docs, warnings, err := n.retriever.Search(ctx, variations, filter)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}

	updated := cloneSubtasks(state.Subtasks)
	updated[idx].Documents = docs
	updated[idx].Status = workflow.SubtaskCompleted

	return workflow.StateDelta{
		Subtasks:  updated,
		Documents: docs,
		Warnings:  warnings,
	}, nil
}

// Name returns the node name.
func (n *RetrieverNode) Name() string { return "retriever" }

// WebFallbackNode wraps agent.WebFallback: augments a sparse subtask result
// with web search results (spec §4.7).
type WebFallbackNode struct {
	tool *agent.WebFallback
}

// NewWebFallbackNode creates a new web fallback node.
func NewWebFallbackNode(tool *agent.WebFallback) *WebFallbackNode {
	return &WebFallbackNode{tool: tool}
}

// Execute searches the web for the current subtask's query (or the
// effective query, if no subtask is current) and merges any results in,
// clearing a lingering error on success (spec §7 "a successful web
// fallback explicitly clears any lingering error").
func (n *WebFallbackNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	query := state.EffectiveQuery()
	sub := state.CurrentSubtask()
	if sub != nil {
		query = sub.Query
	}

	docs, err := n.tool.Search(ctx, query, 5)
	if err != nil {
		return workflow.StateDelta{Warnings: []string{"web fallback failed: " + err.Error()}}, nil
	}
	if len(docs) == 0 {
		return workflow.StateDelta{Warnings: []string{"web fallback returned zero documents"}}, nil
	}

	delta := workflow.StateDelta{Documents: docs, ClearError: true}

	if sub != nil {
		idx := state.CurrentSubtaskIdx
		updated := cloneSubtasks(state.Subtasks)
		updated[idx].Documents = append(append([]store.Document{}, sub.Documents...), docs...)
		delta.Subtasks = updated
	}

	return delta, nil
}

// Name returns the node name.
func (n *WebFallbackNode) Name() string { return "web_fallback" }

// SynthesizerNode wraps agent.Synthesizer (spec §4.8). It selects the
// retry mode from the most recent quality report: a failed hallucination
// check takes priority over a failed grade (matching the graph topology,
// where hallucination_checker always runs before answer_grader).
type SynthesizerNode struct {
	synthesizer *agent.Synthesizer
}

// NewSynthesizerNode creates a new synthesizer node.
func NewSynthesizerNode(synthesizer *agent.Synthesizer) *SynthesizerNode {
	return &SynthesizerNode{synthesizer: synthesizer}
}

// Execute synthesizes an answer from state.Documents.
func (n *SynthesizerNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	mode := agent.RetryNone
	var suggestions []string

	switch {
	case state.HallucinationReport != nil && !state.HallucinationReport.IsValid:
		mode = agent.RetryCorrective
	case state.GradeReport != nil && !state.GradeReport.IsValid:
		mode = agent.RetryImproved
		suggestions = state.GradeReport.Suggestions
	}

	deadline, _ := ctx.Deadline()
	answer, err := n.synthesizer.Synthesize(ctx, state.EffectiveQuery(), state.Documents, mode, suggestions, deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}

	delta := workflow.StateDelta{
		FinalAnswer: workflow.StringPtr(answer.Text),
		Confidence:  workflow.Float64Ptr(answer.Confidence),
		Warnings:    answer.Warnings,
		Metadata: map[string]interface{}{
			"sources_used":        answer.SourcesUsed,
			"key_points":          answer.KeyPoints,
			"references_table":    answer.ReferencesTable,
			"entity_references":   answer.EntityReferences,
			"human_feedback_used": answer.HumanFeedbackUsed,
		},
	}
	if mode != agent.RetryNone {
		delta.RetryCountDelta = workflow.IntPtr(1)
	}
	return delta, nil
}

// Name returns the node name.
func (n *SynthesizerNode) Name() string { return "synthesizer" }

// HallucinationCheckerNode wraps agent.HallucinationChecker (spec §4.9).
type HallucinationCheckerNode struct {
	checker   *agent.HallucinationChecker
	threshold float64
}

// NewHallucinationCheckerNode creates a new hallucination checker node.
func NewHallucinationCheckerNode(checker *agent.HallucinationChecker, threshold float64) *HallucinationCheckerNode {
	return &HallucinationCheckerNode{checker: checker, threshold: threshold}
}

// Execute checks state.FinalAnswer against state.Documents. When the
// report is invalid and retries are exhausted, the node itself marks the
// turn failed — the conditional edge that follows would otherwise route to
// "end" indistinguishably from a valid/accept outcome.
func (n *HallucinationCheckerNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	report, err := n.checker.Check(ctx, state.FinalAnswer, state.Documents, n.threshold, deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}

	delta := workflow.StateDelta{HallucinationReport: &report}
	if !report.IsValid && !(report.NeedsRetry && state.RetryCount < state.MaxRetries) {
		delta.WorkflowStatus = workflow.WorkflowStatusPtr(workflow.StatusFailed)
		delta.Err = fmt.Errorf("hallucination check failed: %s", strings.Join(report.Reasons, "; "))
	}
	return delta, nil
}

// Name returns the node name.
func (n *HallucinationCheckerNode) Name() string { return "hallucination_checker" }

// AnswerGraderNode wraps agent.AnswerGrader (spec §4.10).
type AnswerGraderNode struct {
	grader    *agent.AnswerGrader
	threshold float64
}

// NewAnswerGraderNode creates a new answer grader node.
func NewAnswerGraderNode(grader *agent.AnswerGrader, threshold float64) *AnswerGraderNode {
	return &AnswerGraderNode{grader: grader, threshold: threshold}
}

// Execute grades state.FinalAnswer against state.Query. A valid grade ends
// the turn successfully; an invalid, unretryable grade ends it as a
// failure — both are "end" edges that would otherwise be indistinguishable
// to the engine's generic terminal-status promotion.
func (n *AnswerGraderNode) Execute(ctx context.Context, state workflow.TurnState) (workflow.StateDelta, error) {
	deadline, _ := ctx.Deadline()

	report, err := n.grader.Grade(ctx, state.EffectiveQuery(), state.FinalAnswer, n.threshold, deadline)
	if err != nil {
		return workflow.StateDelta{Err: err, WorkflowStatus: workflow.WorkflowStatusPtr(workflow.StatusFailed)}, nil
	}

	delta := workflow.StateDelta{GradeReport: &report}
	switch {
	case report.IsValid:
		delta.WorkflowStatus = workflow.WorkflowStatusPtr(workflow.StatusCompleted)
	case !(report.NeedsRetry && state.RetryCount < state.MaxRetries):
		delta.WorkflowStatus = workflow.WorkflowStatusPtr(workflow.StatusFailed)
		delta.Err = fmt.Errorf("answer grading failed after exhausting retries")
	}
	return delta, nil
}

// Name returns the node name.
func (n *AnswerGraderNode) Name() string { return "answer_grader" }

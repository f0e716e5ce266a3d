// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

// NewPredicates builds the four conditional-edge functions of spec §4.1
// plus the router's query_type dispatch, closing over opts so thresholds
// and feature flags do not need to be threaded through every node.
func NewPredicates(opts RunOptions) Predicates {
	return Predicates{
		RouteByQueryType:      routeByQueryType,
		SubtaskAdvance:        subtaskAdvance,
		NeedsWeb:              needsWeb(opts),
		HallucinationDecision: hallucinationDecision(opts),
		GradeDecision:         gradeDecision(opts),
	}
}

// routeByQueryType implements spec §4.1's router dispatch: simple ->
// direct_responder -> end; history_required -> context_resolver ->
// planner; rag_required -> planner.
func routeByQueryType(state TurnState) string {
	switch state.QueryType {
	case QuerySimple:
		return "direct_responder"
	case QueryHistoryRequired:
		return "context_resolver"
	default:
		return "planner"
	}
}

// subtaskAdvance implements spec §4.1's _subtask_advance: failed if
// error != nil; complete if current_subtask_idx >= len(subtasks) or
// workflow_status == completed; else continue.
func subtaskAdvance(state TurnState) string {
	if state.Error != nil {
		return ""
	}
	if state.WorkflowStatus == StatusCompleted || state.CurrentSubtaskIdx >= len(state.Subtasks) {
		return "synthesizer"
	}
	return "retriever"
}

// needsWeb implements spec §4.1's _needs_web: search if the effective
// retrieved-document count for the current subtask is below
// web_fallback_threshold or metadata.require_web = true, and web fallback
// is enabled; else continue straight to subtask_executor.
func needsWeb(opts RunOptions) Router {
	return func(state TurnState) string {
		if !opts.WebEnabled {
			return "subtask_executor"
		}
		requireWeb, _ := state.Metadata["require_web"].(bool)
		sub := state.CurrentSubtask()
		count := 0
		if sub != nil {
			count = len(sub.Documents)
		}
		if requireWeb || count < opts.WebFallbackThreshold {
			return "web_fallback"
		}
		return "subtask_executor"
	}
}

// hallucinationDecision implements spec §4.1's _hallucination_decision:
// valid if hallucination_report.is_valid; retry if
// needs_retry ∧ retry_count < max_retries; else failed.
func hallucinationDecision(opts RunOptions) Router {
	return func(state TurnState) string {
		report := state.HallucinationReport
		if report == nil {
			return ""
		}
		if report.IsValid {
			return "answer_grader"
		}
		if report.NeedsRetry && state.RetryCount < state.MaxRetries {
			return "synthesizer"
		}
		return ""
	}
}

// gradeDecision implements spec §4.1's _grade_decision: accept if
// grade_report.is_valid; retry if needs_retry ∧ retry_count < max_retries;
// else failed.
func gradeDecision(opts RunOptions) Router {
	return func(state TurnState) string {
		report := state.GradeReport
		if report == nil {
			return ""
		}
		if report.IsValid {
			return ""
		}
		if report.NeedsRetry && state.RetryCount < state.MaxRetries {
			return "synthesizer"
		}
		return ""
	}
}

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import "errors"

// Sentinel errors the orchestrator sets on TurnState.Error or returns from
// Execute/Run. String values match spec §4.1/§4.9's literal error tokens
// where the spec names one explicitly ("step_budget_exceeded").
var (
	// ErrStepBudgetExceeded is set when the orchestrator's global step
	// count exceeds StepBudget(max_subtasks, max_retries) (spec §4.1).
	ErrStepBudgetExceeded = errors.New("step_budget_exceeded")

	// ErrNoGroundTruth names the "no ground truth" failure category. The
	// hallucination checker does not return it: for an empty document set it
	// returns a report with is_valid=false, needs_retry=false and a nil error.
	ErrNoGroundTruth = errors.New("no_ground_truth")

	// ErrGraphMisconfigured wraps the error BuildOrchestratorGraph returns
	// when a required node is missing, distinct from a runtime turn failure.
	ErrGraphMisconfigured = errors.New("graph_misconfigured")
)

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package workflow

import (
	"time"

	"github.com/aiteam0/rag-lab/pkg/store"
)

// QueryType classifies a turn's query for routing (spec §4.2).
type QueryType string

const (
	QuerySimple          QueryType = "simple"
	QueryRAGRequired      QueryType = "rag_required"
	QueryHistoryRequired QueryType = "history_required"
)

// SubtaskStatus tracks a single subtask's lifecycle.
type SubtaskStatus string

const (
	SubtaskPending   SubtaskStatus = "pending"
	SubtaskExecuting SubtaskStatus = "executing"
	SubtaskCompleted SubtaskStatus = "completed"
	SubtaskFailed    SubtaskStatus = "failed"
)

// WorkflowStatus is TurnState's terminal/non-terminal status.
type WorkflowStatus string

const (
	StatusRunning   WorkflowStatus = "running"
	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
)

// Subtask is a unit of planned work (spec §3).
type Subtask struct {
	ID           string
	Query        string
	Priority     int // 1..5
	Dependencies []string
	Status       SubtaskStatus
	Documents    []store.Document
	Variations   []string
	Filter       store.Filter
}

// QualityReport is the uniform verdict shape produced by the hallucination
// checker and the answer grader (spec §3, §4.9, §4.10).
type QualityReport struct {
	IsValid bool
	Score   float64 // meaning depends on producer: hallucination score, or overall grade
	Reasons []string
	Suggestions []string
	NeedsRetry bool

	// Dimensions holds the answer grader's per-dimension sub-scores
	// (completeness, relevance, clarity, accuracy). Left nil when produced
	// by the hallucination checker.
	Dimensions map[string]float64
}

// Message is one entry in the turn's conversational log.
type Message struct {
	Role string // "user" or "assistant"
	Text string
}

// TurnState is the single evolving record passed between nodes (spec §3).
// It is re-architected from the teacher's mutable *State into a plain,
// orchestrator-owned value: nodes never see or mutate it directly, they
// receive a copy and return a StateDelta (see Merge below).
type TurnState struct {
	Query         string
	EnhancedQuery string
	QueryType     QueryType

	Subtasks          []Subtask
	CurrentSubtaskIdx int

	Documents []store.Document

	IntermediateAnswer string
	FinalAnswer        string
	Confidence         float64

	HallucinationReport *QualityReport
	GradeReport         *QualityReport

	RetryCount     int
	MaxRetries     int
	IterationCount int

	WorkflowStatus WorkflowStatus
	Error          error
	Warnings       []string

	Messages []Message

	Metadata map[string]interface{}
}

// NewTurnState creates the initial state for a turn (spec §3 Lifecycle).
func NewTurnState(query string, maxRetries int) TurnState {
	return TurnState{
		Query:          query,
		QueryType:      "",
		MaxRetries:     maxRetries,
		WorkflowStatus: StatusRunning,
		Metadata:       make(map[string]interface{}),
	}
}

// EffectiveQuery returns EnhancedQuery when set, else Query (spec §4.3/§4.4).
func (s TurnState) EffectiveQuery() string {
	if s.EnhancedQuery != "" {
		return s.EnhancedQuery
	}
	return s.Query
}

// CurrentSubtask returns the subtask at CurrentSubtaskIdx, or nil past the end.
func (s TurnState) CurrentSubtask() *Subtask {
	if s.CurrentSubtaskIdx < 0 || s.CurrentSubtaskIdx >= len(s.Subtasks) {
		return nil
	}
	return &s.Subtasks[s.CurrentSubtaskIdx]
}

// StateDelta is the partial, optional-field output a node returns. Pointer
// and nil-slice fields mean "untouched" — the orchestrator's Merge leaves
// the corresponding TurnState field unchanged when a StateDelta field is nil.
// Setting ClearError to true clears TurnState.Error (the
// "explicit-nil-clears-error" semantics of spec §4.1).
type StateDelta struct {
	EnhancedQuery *string
	QueryType     *QueryType

	Subtasks          []Subtask // last-writer-wins whole-slice replace when non-nil
	CurrentSubtaskIdx *int

	Documents []store.Document // additive-dedup by id

	IntermediateAnswer *string
	FinalAnswer         *string
	Confidence          *float64

	HallucinationReport *QualityReport
	GradeReport         *QualityReport

	RetryCountDelta *int // added to RetryCount (synthesizer-only increment)
	IterationDelta  *int

	WorkflowStatus *WorkflowStatus

	// ClearError, when true, sets TurnState.Error to nil regardless of Err.
	ClearError bool
	Err        error // last-writer-wins when ClearError is false and Err != nil

	Warnings []string // append-only
	Messages []Message // append-only

	Metadata map[string]interface{} // merged key-by-key, last-writer-wins per key
}

// Merge applies delta onto state and returns the new TurnState, implementing
// spec §4.1's merge semantics exactly: additive-dedup for documents,
// append-only for messages/warnings, last-writer-wins for scalars, and
// explicit-nil-clears-error for the error field.
func Merge(state TurnState, delta StateDelta) TurnState {
	next := state

	if delta.EnhancedQuery != nil {
		next.EnhancedQuery = *delta.EnhancedQuery
	}
	if delta.QueryType != nil {
		next.QueryType = *delta.QueryType
	}
	if delta.Subtasks != nil {
		next.Subtasks = delta.Subtasks
	}
	if delta.CurrentSubtaskIdx != nil {
		next.CurrentSubtaskIdx = *delta.CurrentSubtaskIdx
	}
	if delta.Documents != nil {
		next.Documents = mergeDocuments(next.Documents, delta.Documents)
	}
	if delta.IntermediateAnswer != nil {
		next.IntermediateAnswer = *delta.IntermediateAnswer
	}
	if delta.FinalAnswer != nil {
		next.FinalAnswer = *delta.FinalAnswer
	}
	if delta.Confidence != nil {
		next.Confidence = *delta.Confidence
	}
	if delta.HallucinationReport != nil {
		next.HallucinationReport = delta.HallucinationReport
	}
	if delta.GradeReport != nil {
		next.GradeReport = delta.GradeReport
	}
	if delta.RetryCountDelta != nil {
		next.RetryCount += *delta.RetryCountDelta
	}
	if delta.IterationDelta != nil {
		next.IterationCount += *delta.IterationDelta
	}
	if delta.WorkflowStatus != nil {
		next.WorkflowStatus = *delta.WorkflowStatus
	}
	if delta.ClearError {
		next.Error = nil
	} else if delta.Err != nil {
		next.Error = delta.Err
	}
	if len(delta.Warnings) > 0 {
		next.Warnings = append(append([]string{}, next.Warnings...), delta.Warnings...)
	}
	if len(delta.Messages) > 0 {
		next.Messages = append(append([]Message{}, next.Messages...), delta.Messages...)
	}
	if len(delta.Metadata) > 0 {
		merged := make(map[string]interface{}, len(next.Metadata)+len(delta.Metadata))
		for k, v := range next.Metadata {
			merged[k] = v
		}
		for k, v := range delta.Metadata {
			merged[k] = v
		}
		next.Metadata = merged
	}

	return next
}

// mergeDocuments appends incoming documents whose id is not already present,
// preserving first-appearance order (spec §3 invariant).
func mergeDocuments(existing []store.Document, incoming []store.Document) []store.Document {
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d.ID] = true
	}
	out := existing
	for _, d := range incoming {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out
}

// StringPtr, Float64Ptr, IntPtr and QueryTypePtr are small helpers nodes use
// to populate StateDelta's optional-field pointers without an inline
// address-of-literal, which Go does not permit directly.
func StringPtr(v string) *string               { return &v }
func Float64Ptr(v float64) *float64             { return &v }
func IntPtr(v int) *int                         { return &v }
func QueryTypePtr(v QueryType) *QueryType       { return &v }
func WorkflowStatusPtr(v WorkflowStatus) *WorkflowStatus { return &v }

// StepBudget computes the orchestrator's global step-budget ceiling
// (spec §4.1): (max_subtasks*3) + (max_retries*4) + 30.
func StepBudget(maxSubtasks, maxRetries int) int {
	return maxSubtasks*3 + maxRetries*4 + 30
}

// RunOptions configures a single turn (spec §6 Configuration).
type RunOptions struct {
	MaxSubtasks           int
	MaxRetries            int
	TopK                  int
	RRFK                  int
	SemanticWeight        float64
	KeywordWeight         float64
	WebFallbackThreshold  int
	ThresholdHallucination float64
	ThresholdGrade        float64
	RoutingEnabled        bool
	WebEnabled            bool
	TurnDeadline          time.Duration
}

// DefaultRunOptions returns spec §6's defaults.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxSubtasks:            5,
		MaxRetries:             3,
		TopK:                   10,
		RRFK:                   60,
		SemanticWeight:         0.5,
		KeywordWeight:          0.5,
		WebFallbackThreshold:   3,
		ThresholdHallucination: 0.7,
		ThresholdGrade:         0.6,
		RoutingEnabled:         true,
		WebEnabled:             false,
		TurnDeadline:           60 * time.Second,
	}
}

// Result is the synchronous run() entry-point's return value (spec §6).
type Result struct {
	Answer     string
	Confidence float64
	Warnings   []string
	Metadata   map[string]interface{}
}

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package nodes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aiteam0/rag-lab/pkg/agent"
	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/retrieval"
	"github.com/aiteam0/rag-lab/pkg/store"
	"github.com/aiteam0/rag-lab/pkg/store/memory"
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// scriptedLLM implements llm.Provider, returning canned content chosen by
// matching a keyword against the outgoing prompt. This lets one fake drive
// every node under test without per-test boilerplate providers.
type scriptedLLM struct {
	responses map[string]string
	fallback  string
}

func (s *scriptedLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	prompt := req.Messages[0].Content
	for keyword, content := range s.responses {
		if strings.Contains(prompt, keyword) {
			return &llm.CompletionResponse{Content: content, FinishReason: "stop", Model: "mock"}, nil
		}
	}
	return &llm.CompletionResponse{Content: s.fallback, FinishReason: "stop", Model: "mock"}, nil
}

func (s *scriptedLLM) Name() string            { return "mock" }
func (s *scriptedLLM) ModelName() string       { return "mock-model" }
func (s *scriptedLLM) SupportsStreaming() bool { return false }

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		responses: map[string]string{
			"retrieval requirement": `{"type": "rag_required", "confidence": 0.9, "reasoning": "needs documents"}`,
			"self-contained question": "What is the capital of France?",
			"ordered list of sub-tasks": `{"subtasks": [{"index": 0, "query": "What is the capital of France?", "priority": 3, "dependencies": []}]}`,
			"\"variations\"":             `{"variations": ["capital of France", "France's capital city"]}`,
			"caption_contains":           `{"sources": [], "pages": [], "categories": []}`,
			"unsupported_claims":         `{"unsupported_claims": [], "score": 0.1, "reasons": ["all claims grounded"]}`,
			"completeness":               `{"completeness": 0.9, "relevance": 0.9, "clarity": 0.9, "accuracy": 0.9, "suggestions": []}`,
			"sources_used":               `{"text": "Paris is the capital of France [1].", "confidence": 0.9, "sources_used": ["[1]"], "key_points": ["Paris is the capital"]}`,
		},
		fallback: `{}`,
	}
}

// fakeEmbedder is a deterministic stand-in for embedding.Embedder.
type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, req *embedding.EmbedRequest) (*embedding.EmbedResponse, error) {
	vectors := make([]embedding.Vector, len(req.Texts))
	for i, t := range req.Texts {
		vectors[i] = embedding.Vector{Embedding: []float32{float32(len(t)), 1, 0}, Text: t}
	}
	return &embedding.EmbedResponse{Vectors: vectors}, nil
}
func (f *fakeEmbedder) Dimensions() int   { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

func testDeadline() time.Time { return time.Now().Add(time.Minute) }

func allNodes(t *testing.T) []interface{ Name() string } {
	t.Helper()
	llmProvider := newScriptedLLM()

	st := memory.New(nil)
	st.Insert(store.Document{ID: "doc-1", Content: "Paris is the capital of France.", Metadata: store.Metadata{Source: "geo.pdf", Page: 1}})

	metadataCache := retrieval.NewMetadataCache(st, time.Minute)
	variations := agent.NewVariationGenerator(llmProvider, nil)
	subtaskExec := agent.NewSubtaskExecutor(metadataCache, variations, llmProvider, retrieval.FilterGeneratorConfig{})
	hybrid := retrieval.NewHybridRetriever(st, &fakeEmbedder{}, retrieval.HybridConfig{TopK: 5})
	webFallback := agent.NewWebFallback(agent.WebFallbackConfig{})

	return []interface{ Name() string }{
		NewRouterNode(agent.NewRouter(llmProvider, nil)),
		NewContextResolverNode(agent.NewContextResolver(llmProvider, nil)),
		NewDirectResponderNode(agent.NewDirectResponder(llmProvider, nil, nil)),
		NewPlannerNode(agent.NewPlanner(llmProvider, nil)),
		NewSubtaskExecutorNode(subtaskExec),
		NewRetrieverNode(hybrid),
		NewWebFallbackNode(webFallback),
		NewSynthesizerNode(agent.NewSynthesizer(llmProvider, nil)),
		NewHallucinationCheckerNode(agent.NewHallucinationChecker(llmProvider, nil), 0.5),
		NewAnswerGraderNode(agent.NewAnswerGrader(llmProvider, nil), 0.6),
	}
}

func TestNodeNamesAreUniqueAndComplete(t *testing.T) {
	expected := []string{
		"router", "context_resolver", "direct_responder", "planner",
		"subtask_executor", "retriever", "web_fallback", "synthesizer",
		"hallucination_checker", "answer_grader",
	}

	seen := make(map[string]bool)
	for _, n := range allNodes(t) {
		if seen[n.Name()] {
			t.Errorf("duplicate node name: %s", n.Name())
		}
		seen[n.Name()] = true
	}

	if len(seen) != len(expected) {
		t.Fatalf("expected %d unique node names, got %d", len(expected), len(seen))
	}
	for _, name := range expected {
		if !seen[name] {
			t.Errorf("missing expected node name: %s", name)
		}
	}
}

func TestRouterNode_Execute(t *testing.T) {
	node := NewRouterNode(agent.NewRouter(newScriptedLLM(), nil))
	state := workflow.NewTurnState("What is the capital of France?", 2)

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.QueryType == nil || *delta.QueryType != workflow.QueryRAGRequired {
		t.Errorf("expected query_type rag_required, got %+v", delta.QueryType)
	}
}

func TestDirectResponderNode_Execute_SetsCompleted(t *testing.T) {
	llmProvider := &scriptedLLM{responses: map[string]string{}, fallback: "Paris."}
	node := NewDirectResponderNode(agent.NewDirectResponder(llmProvider, nil, nil))
	state := workflow.NewTurnState("What is the capital of France?", 2)

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.FinalAnswer == nil || *delta.FinalAnswer == "" {
		t.Error("expected a non-empty final answer")
	}
	if delta.WorkflowStatus == nil || *delta.WorkflowStatus != workflow.StatusCompleted {
		t.Error("expected direct_responder to mark the turn completed")
	}
}

func TestPlannerNode_Execute(t *testing.T) {
	node := NewPlannerNode(agent.NewPlanner(newScriptedLLM(), nil))
	state := workflow.NewTurnState("What is the capital of France?", 2)

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if len(delta.Subtasks) == 0 {
		t.Fatal("expected at least one subtask")
	}
	if delta.CurrentSubtaskIdx == nil || *delta.CurrentSubtaskIdx != 0 {
		t.Error("expected planner to reset the subtask cursor to 0")
	}
}

func TestSubtaskExecutorNode_AdvancesPastCompleted(t *testing.T) {
	llmProvider := newScriptedLLM()
	st := memory.New(nil)
	metadataCache := retrieval.NewMetadataCache(st, time.Minute)
	variationGen := agent.NewVariationGenerator(llmProvider, nil)
	executor := agent.NewSubtaskExecutor(metadataCache, variationGen, llmProvider, retrieval.FilterGeneratorConfig{})
	node := NewSubtaskExecutorNode(executor)

	state := workflow.NewTurnState("two-part question", 2)
	state.Subtasks = []workflow.Subtask{
		{ID: "s0", Query: "first part", Status: workflow.SubtaskCompleted},
		{ID: "s1", Query: "second part", Status: workflow.SubtaskPending},
	}
	state.CurrentSubtaskIdx = 0

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.CurrentSubtaskIdx == nil || *delta.CurrentSubtaskIdx != 1 {
		t.Fatalf("expected cursor to advance to index 1, got %+v", delta.CurrentSubtaskIdx)
	}
	if len(delta.Subtasks) != 2 || delta.Subtasks[1].Status != workflow.SubtaskExecuting {
		t.Errorf("expected subtask 1 to be marked executing, got %+v", delta.Subtasks)
	}
	if _, ok := delta.Metadata["pending_variations"]; !ok {
		t.Error("expected pending_variations to be staged in metadata for the retriever")
	}
}

func TestSubtaskExecutorNode_EndOfSubtasksAdvancesOnly(t *testing.T) {
	node := NewSubtaskExecutorNode(agent.NewSubtaskExecutor(
		retrieval.NewMetadataCache(memory.New(nil), time.Minute),
		agent.NewVariationGenerator(newScriptedLLM(), nil),
		newScriptedLLM(),
		retrieval.FilterGeneratorConfig{},
	))

	state := workflow.NewTurnState("question", 2)
	state.Subtasks = []workflow.Subtask{{ID: "s0", Query: "only part", Status: workflow.SubtaskCompleted}}
	state.CurrentSubtaskIdx = 0

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.CurrentSubtaskIdx == nil || *delta.CurrentSubtaskIdx != 1 {
		t.Fatalf("expected cursor to advance past the end, got %+v", delta.CurrentSubtaskIdx)
	}
	if delta.Subtasks != nil {
		t.Error("expected no subtask mutation once every subtask is already completed")
	}
}

func TestRetrieverNode_NoPendingVariationsWarns(t *testing.T) {
	st := memory.New(nil)
	hybrid := retrieval.NewHybridRetriever(st, &fakeEmbedder{}, retrieval.HybridConfig{TopK: 5})
	node := NewRetrieverNode(hybrid)

	state := workflow.NewTurnState("question", 2)
	state.Subtasks = []workflow.Subtask{{ID: "s0", Query: "question"}}
	state.CurrentSubtaskIdx = 0

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if len(delta.Warnings) == 0 {
		t.Error("expected a warning when no pending variations are staged")
	}
}

func TestHallucinationCheckerNode_EmptyDocsIsFatal(t *testing.T) {
	node := NewHallucinationCheckerNode(agent.NewHallucinationChecker(newScriptedLLM(), nil), 0.5)
	state := workflow.NewTurnState("question", 2)
	state.FinalAnswer = "Paris is the capital of France."

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.HallucinationReport == nil || delta.HallucinationReport.IsValid {
		t.Fatal("expected an invalid report when there are no documents to check against")
	}
	if delta.WorkflowStatus == nil || *delta.WorkflowStatus != workflow.StatusFailed {
		t.Error("expected the turn to fail outright: no documents means no retry can help")
	}
}

func TestHallucinationCheckerNode_ValidLeavesStatusRunning(t *testing.T) {
	node := NewHallucinationCheckerNode(agent.NewHallucinationChecker(newScriptedLLM(), nil), 0.5)
	state := workflow.NewTurnState("question", 2)
	state.FinalAnswer = "Paris is the capital of France."
	state.Documents = []store.Document{{ID: "d1", Content: "Paris is the capital of France."}}

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.HallucinationReport == nil || !delta.HallucinationReport.IsValid {
		t.Fatal("expected a valid report for a fully-grounded answer")
	}
	if delta.WorkflowStatus != nil {
		t.Error("a valid report should not set a terminal status; the edge routes to answer_grader")
	}
}

func TestAnswerGraderNode_ValidSetsCompleted(t *testing.T) {
	node := NewAnswerGraderNode(agent.NewAnswerGrader(newScriptedLLM(), nil), 0.6)
	state := workflow.NewTurnState("What is the capital of France?", 2)
	state.FinalAnswer = "Paris is the capital of France."

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.WorkflowStatus == nil || *delta.WorkflowStatus != workflow.StatusCompleted {
		t.Error("expected a valid grade to complete the turn")
	}
}

func TestAnswerGraderNode_ExhaustedRetriesFails(t *testing.T) {
	llmProvider := &scriptedLLM{
		responses: map[string]string{
			"completeness": `{"completeness": 0.2, "relevance": 0.2, "clarity": 0.2, "accuracy": 0.2, "suggestions": ["be more specific"]}`,
		},
	}
	node := NewAnswerGraderNode(agent.NewAnswerGrader(llmProvider, nil), 0.6)

	state := workflow.NewTurnState("What is the capital of France?", 2)
	state.FinalAnswer = "Something vague."
	state.RetryCount = 2

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.WorkflowStatus == nil || *delta.WorkflowStatus != workflow.StatusFailed {
		t.Error("expected an invalid grade with no retries left to fail the turn")
	}
	if delta.Err == nil {
		t.Error("expected an explanatory error on exhaustion")
	}
}

func TestSynthesizerNode_SelectsRetryModeFromReports(t *testing.T) {
	node := NewSynthesizerNode(agent.NewSynthesizer(newScriptedLLM(), nil))
	state := workflow.NewTurnState("What is the capital of France?", 2)
	state.Documents = []store.Document{{ID: "d1", Content: "Paris is the capital of France."}}
	state.HallucinationReport = &workflow.QualityReport{IsValid: false, NeedsRetry: true}

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.RetryCountDelta == nil || *delta.RetryCountDelta != 1 {
		t.Error("expected retry_count to increment exactly once on a corrective retry invocation")
	}
}

func TestSynthesizerNode_FirstPassDoesNotIncrementRetryCount(t *testing.T) {
	node := NewSynthesizerNode(agent.NewSynthesizer(newScriptedLLM(), nil))
	state := workflow.NewTurnState("What is the capital of France?", 2)
	state.Documents = []store.Document{{ID: "d1", Content: "Paris is the capital of France."}}

	ctx, cancel := context.WithDeadline(context.Background(), testDeadline())
	defer cancel()

	delta, err := node.Execute(ctx, state)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}
	if delta.RetryCountDelta != nil {
		t.Error("expected no retry_count increment on the initial synthesis call")
	}
}

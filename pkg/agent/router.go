// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"strings"
	"time"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// Router classifies a query's query_type (spec §4.2), grounded on the
// teacher's Supervisor: a schema-constrained classification call with a
// lenient, safe-default fallback on failure.
type Router struct {
	llm         llm.Provider
	temperature float32
}

// RouterConfig configures the router agent.
type RouterConfig struct {
	Temperature float32
}

// NewRouter creates a new router agent.
func NewRouter(llmProvider llm.Provider, config *RouterConfig) *Router {
	if config == nil {
		config = &RouterConfig{Temperature: 0.2}
	}
	return &Router{llm: llmProvider, temperature: config.Temperature}
}

type routeResponse struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

var routeSchema = llm.Schema{
	Name:        "query_route",
	Description: "Classification of a query's retrieval requirements",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"type":       map[string]interface{}{"type": "string", "enum": []string{"simple", "rag_required", "history_required"}},
			"confidence": map[string]interface{}{"type": "number"},
			"reasoning":  map[string]interface{}{"type": "string"},
		},
	},
}

// Classify assigns exactly one query_type to query given the last ≤10
// conversational messages (spec §4.2). On classifier failure, defaults to
// rag_required — the safe path.
func (r *Router) Classify(ctx context.Context, query string, history []workflow.Message, deadline time.Time) (workflow.QueryType, error) {
	prompt := r.buildPrompt(query, recentMessages(history, 10))

	resp, err := llm.GenerateStructured[routeResponse](ctx, r.llm, prompt, routeSchema, r.temperature, deadline)
	if err != nil {
		return workflow.QueryRAGRequired, nil
	}

	switch strings.ToLower(strings.TrimSpace(resp.Type)) {
	case string(workflow.QuerySimple):
		return workflow.QuerySimple, nil
	case string(workflow.QueryHistoryRequired):
		return workflow.QueryHistoryRequired, nil
	case string(workflow.QueryRAGRequired):
		return workflow.QueryRAGRequired, nil
	default:
		return workflow.QueryRAGRequired, nil
	}
}

func (r *Router) buildPrompt(query string, history []workflow.Message) string {
	var b strings.Builder
	b.WriteString("Classify this query's retrieval requirement.\n\n")
	b.WriteString("Query: " + query + "\n\n")
	if len(history) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range history {
			b.WriteString(m.Role + ": " + m.Text + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(`Classify as exactly one of:
- "simple": general-knowledge or social query, answerable without document retrieval
- "history_required": the query contains unresolved references to prior turns ("it", "that", "the one you mentioned")
- "rag_required": everything else requiring document retrieval`)
	return b.String()
}

// recentMessages returns the last n messages, or all of them if fewer exist.
func recentMessages(history []workflow.Message, n int) []workflow.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

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

// ContextResolver rewrites a history_required query into a self-contained
// form by substituting referents with their antecedents (spec §4.2),
// grounded on the teacher's Rewriter (query enhancement from past context).
type ContextResolver struct {
	llm         llm.Provider
	temperature float32
}

// ContextResolverConfig configures the context resolver agent.
type ContextResolverConfig struct {
	Temperature float32
}

// NewContextResolver creates a new context resolver agent.
func NewContextResolver(llmProvider llm.Provider, config *ContextResolverConfig) *ContextResolver {
	if config == nil {
		config = &ContextResolverConfig{Temperature: 0.3}
	}
	return &ContextResolver{llm: llmProvider, temperature: config.Temperature}
}

// Resolve substitutes unresolved references in query with their antecedents
// from history, returning a self-contained rewritten string. On failure or
// an empty model response it falls back to the original query.
func (c *ContextResolver) Resolve(ctx context.Context, query string, history []workflow.Message, deadline time.Time) (string, error) {
	prompt := c.buildPrompt(query, recentMessages(history, 10))

	resp, err := llm.Generate(ctx, c.llm, prompt, c.temperature, deadline)
	if err != nil {
		return query, nil
	}

	rewritten := strings.TrimSpace(resp)
	if rewritten == "" {
		return query, nil
	}
	return rewritten, nil
}

func (c *ContextResolver) buildPrompt(query string, history []workflow.Message) string {
	var b strings.Builder
	b.WriteString("Rewrite the query below into a fully self-contained question by substituting every pronoun or implicit reference with its antecedent from the conversation.\n\n")
	b.WriteString("Conversation:\n")
	for _, m := range history {
		b.WriteString(m.Role + ": " + m.Text + "\n")
	}
	b.WriteString("\nQuery: " + query + "\n\n")
	b.WriteString("Return only the rewritten, self-contained query, nothing else.")
	return b.String()
}

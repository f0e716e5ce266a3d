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
)

// timeSensitiveMarkers are lexical cues that a "simple" query still needs a
// current-events check. Grounded on the conservative string-matching idiom
// the teacher's Supervisor uses to keep classification deterministic and
// auditable rather than itself model-driven.
var timeSensitiveMarkers = []string{
	"today", "currently", "latest", "this week", "this year", "right now",
	"as of now", "recent", "current price", "current version",
}

// DirectResponder answers "simple" queries directly (spec §4.2), reusing
// the teacher's Distiller's single-call shape at moderate temperature, with
// an optional web-search tool call for explicitly time-sensitive queries.
type DirectResponder struct {
	llm         llm.Provider
	webTool     WebTool
	temperature float32
}

// DirectResponderConfig configures the direct responder agent.
type DirectResponderConfig struct {
	Temperature float32 // default 0.7
}

// NewDirectResponder creates a new direct responder agent. webTool may be
// nil, in which case time-sensitive queries are answered without web
// augmentation.
func NewDirectResponder(llmProvider llm.Provider, webTool WebTool, config *DirectResponderConfig) *DirectResponder {
	if config == nil {
		config = &DirectResponderConfig{Temperature: 0.7}
	}
	return &DirectResponder{llm: llmProvider, webTool: webTool, temperature: config.Temperature}
}

// Respond answers query directly, optionally augmenting with a web search
// when the query is explicitly time-sensitive (spec §4.2).
func (d *DirectResponder) Respond(ctx context.Context, query string, deadline time.Time) (string, error) {
	webContext := ""
	if d.webTool != nil && isTimeSensitive(query) {
		docs, err := d.webTool.Search(ctx, query, 3)
		if err == nil && len(docs) > 0 {
			var b strings.Builder
			b.WriteString("Recent web results:\n")
			for _, doc := range docs {
				b.WriteString("- " + doc.Content + " (" + doc.Metadata.Source + ")\n")
			}
			webContext = b.String()
		}
	}

	prompt := buildDirectResponsePrompt(query, webContext)
	resp, err := llm.Generate(ctx, d.llm, prompt, d.temperature, deadline)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

func isTimeSensitive(query string) bool {
	lower := strings.ToLower(query)
	for _, marker := range timeSensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func buildDirectResponsePrompt(query, webContext string) string {
	if webContext == "" {
		return "Answer the following question directly and conversationally, using your general knowledge.\n\nQuestion: " + query
	}
	return "Answer the following question directly and conversationally. Use the web results below where they are relevant, and cite them inline.\n\n" +
		webContext + "\nQuestion: " + query
}

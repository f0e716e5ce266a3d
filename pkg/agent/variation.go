// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aiteam0/rag-lab/pkg/llm"
)

// VariationGenerator produces a small set of lexically diverse rewrites of a
// subtask query (spec §4.4 step 2), grounded on the teacher's Rewriter's
// single-call enhancement shape but generalized from one rewrite to a bounded
// list.
type VariationGenerator struct {
	llm         llm.Provider
	temperature float32
	minCount    int
	maxCount    int
}

// VariationConfig configures the variation generator.
type VariationConfig struct {
	Temperature float32
	MinCount    int // default 3
	MaxCount    int // default 5
}

// NewVariationGenerator creates a new query variation agent.
func NewVariationGenerator(llmProvider llm.Provider, config *VariationConfig) *VariationGenerator {
	if config == nil {
		config = &VariationConfig{Temperature: 0.6, MinCount: 3, MaxCount: 5}
	}
	if config.MinCount <= 0 {
		config.MinCount = 3
	}
	if config.MaxCount < config.MinCount {
		config.MaxCount = 5
	}
	return &VariationGenerator{
		llm:         llmProvider,
		temperature: config.Temperature,
		minCount:    config.MinCount,
		maxCount:    config.MaxCount,
	}
}

type variationResponse struct {
	Variations []string `json:"variations"`
}

var variationSchema = llm.Schema{
	Name:        "query_variations",
	Description: "Lexically diverse rewrites of a retrieval query",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"variations": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
		},
	},
}

// Generate returns at most maxCount variations of query, always including
// the original query itself first (spec §4.4 step 2). minCount is only
// passed to the prompt; fewer than minCount are returned when the model
// yields fewer distinct rewrites. If the model call fails or yields nothing
// usable, the original query alone is returned.
func (v *VariationGenerator) Generate(ctx context.Context, query string, deadline time.Time) ([]string, error) {
	prompt := v.buildPrompt(query)

	resp, err := llm.GenerateStructured[variationResponse](ctx, v.llm, prompt, variationSchema, v.temperature, deadline)
	if err != nil {
		return []string{query}, nil
	}

	variations := []string{query}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}

	for _, cand := range resp.Variations {
		cand = strings.TrimSpace(cand)
		if cand == "" {
			continue
		}
		key := strings.ToLower(cand)
		if seen[key] {
			continue
		}
		seen[key] = true
		variations = append(variations, cand)
		if len(variations) >= v.maxCount {
			break
		}
	}

	return variations, nil
}

func (v *VariationGenerator) buildPrompt(query string) string {
	return fmt.Sprintf(`Generate %d-%d alternative phrasings of the query below that preserve its meaning but use different wording, synonyms, or phrasing structure. These will be used to broaden document retrieval recall.

Query: %s

Return a JSON object with a "variations" array of strings. Do not include the original query itself in the array.`, v.minCount, v.maxCount-1, query)
}

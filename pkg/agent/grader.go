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
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// dimensions are the four sub-scores the grader produces (spec §4.10).
var dimensions = []string{"completeness", "relevance", "clarity", "accuracy"}

// AnswerGrader evaluates a final answer's quality along four dimensions
// (spec §4.10), grounded on the teacher's Policy agent's hard-limit
// short-circuit idiom, generalized from a single continue/finish decision
// to a per-dimension QualityReport via a schema-constrained call.
type AnswerGrader struct {
	llm         llm.Provider
	temperature float32
}

// AnswerGraderConfig configures the grader.
type AnswerGraderConfig struct {
	Temperature float32 // default 0.2, low for consistent grading
}

// NewAnswerGrader creates a new answer grader agent.
func NewAnswerGrader(llmProvider llm.Provider, config *AnswerGraderConfig) *AnswerGrader {
	if config == nil {
		config = &AnswerGraderConfig{Temperature: 0.2}
	}
	return &AnswerGrader{llm: llmProvider, temperature: config.Temperature}
}

type gradeResponse struct {
	Completeness float64  `json:"completeness"`
	Relevance    float64  `json:"relevance"`
	Clarity      float64  `json:"clarity"`
	Accuracy     float64  `json:"accuracy"`
	Suggestions  []string `json:"suggestions"`
}

var gradeSchema = llm.Schema{
	Name:        "answer_grade",
	Description: "Dimensional quality assessment of a synthesized answer",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"completeness": map[string]interface{}{"type": "number"},
			"relevance":    map[string]interface{}{"type": "number"},
			"clarity":      map[string]interface{}{"type": "number"},
			"accuracy":     map[string]interface{}{"type": "number"},
			"suggestions":  map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
		},
	},
}

// Grade evaluates finalAnswer against query and returns a QualityReport
// whose overall_score is the mean of the four dimensions. is_valid
// requires overall_score >= threshold AND every dimension >= 0.5 (spec
// §4.10) — a single weak dimension fails the gate even with a high mean.
func (g *AnswerGrader) Grade(ctx context.Context, query, finalAnswer string, threshold float64, deadline time.Time) (workflow.QualityReport, error) {
	prompt := g.buildPrompt(query, finalAnswer)

	resp, err := llm.GenerateStructured[gradeResponse](ctx, g.llm, prompt, gradeSchema, g.temperature, deadline)
	if err != nil {
		return workflow.QualityReport{}, fmt.Errorf("answer grading failed: %w", err)
	}

	dims := map[string]float64{
		"completeness": clamp01(resp.Completeness),
		"relevance":    clamp01(resp.Relevance),
		"clarity":      clamp01(resp.Clarity),
		"accuracy":     clamp01(resp.Accuracy),
	}

	var sum float64
	minDim := 1.0
	for _, name := range dimensions {
		sum += dims[name]
		if dims[name] < minDim {
			minDim = dims[name]
		}
	}
	overall := sum / float64(len(dimensions))

	isValid := overall >= threshold && minDim >= 0.5
	return workflow.QualityReport{
		IsValid:     isValid,
		Score:       overall,
		Dimensions:  dims,
		Suggestions: resp.Suggestions,
		NeedsRetry:  !isValid,
	}, nil
}

func (g *AnswerGrader) buildPrompt(query, finalAnswer string) string {
	return "Grade the answer below against the query on four dimensions, each 0-1:\n" +
		"- completeness: does it fully address the query?\n" +
		"- relevance: does it stay on-topic?\n" +
		"- clarity: is it well-organized and easy to follow?\n" +
		"- accuracy: are its claims plausible and internally consistent?\n\n" +
		"Query: " + query + "\n\n" +
		"Answer: " + finalAnswer + "\n\n" +
		"Return a JSON object with completeness, relevance, clarity, accuracy (each 0-1), and suggestions (array of specific improvement hints for each weak dimension)."
}

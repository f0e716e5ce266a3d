// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/neurosnap/sentences/english"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/store"
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// HallucinationChecker validates a synthesized answer against its source
// documents (spec §4.9), grounded on the teacher's Reflector's
// structured-parsing idiom, upgraded from free-text summarization to a
// full workflow.QualityReport and claim-level decomposition.
type HallucinationChecker struct {
	llm         llm.Provider
	temperature float32
	tokenizer   *english.SentenceTokenizer
}

// HallucinationCheckerConfig configures the checker.
type HallucinationCheckerConfig struct {
	Temperature float32 // default 0.0, deterministic grading
}

// NewHallucinationChecker creates a new hallucination checker agent.
func NewHallucinationChecker(llmProvider llm.Provider, config *HallucinationCheckerConfig) *HallucinationChecker {
	if config == nil {
		config = &HallucinationCheckerConfig{Temperature: 0.0}
	}
	tokenizer, _ := english.NewSentenceTokenizer(nil)
	return &HallucinationChecker{llm: llmProvider, temperature: config.Temperature, tokenizer: tokenizer}
}

type hallucinationResponse struct {
	UnsupportedClaims []string `json:"unsupported_claims"`
	Score             float64  `json:"score"`
	Reasons           []string `json:"reasons"`
}

var hallucinationSchema = llm.Schema{
	Name:        "hallucination_check",
	Description: "Claim-level grounding assessment of an answer against its documents",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"unsupported_claims": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"score":              map[string]interface{}{"type": "number"},
			"reasons":            map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
		},
	},
}

// Check decomposes answer into atomic claims and evaluates each against
// docs, returning a QualityReport whose score is a hallucination score
// (higher = more unsupported). Per spec §4.9, an empty document set is
// fatal: is_valid=false, needs_retry=false (no ground truth to check).
func (h *HallucinationChecker) Check(ctx context.Context, answer string, docs []store.Document, threshold float64, deadline time.Time) (workflow.QualityReport, error) {
	if len(docs) == 0 {
		return workflow.QualityReport{
			IsValid:    false,
			Score:      1.0,
			Reasons:    []string{"no documents available to check the answer against"},
			NeedsRetry: false,
		}, nil
	}

	claims := h.decomposeClaims(answer)
	prompt := h.buildPrompt(claims, docs)

	resp, err := llm.GenerateStructured[hallucinationResponse](ctx, h.llm, prompt, hallucinationSchema, h.temperature, deadline)
	if err != nil {
		// conservative: treat a checker failure as maximally unsupported
		// rather than silently passing a possibly-hallucinated answer.
		return workflow.QualityReport{
			IsValid:    false,
			Score:      1.0,
			Reasons:    []string{"hallucination checker call failed: " + err.Error()},
			NeedsRetry: true,
		}, nil
	}

	score := clamp01(resp.Score)
	isValid := score <= threshold
	report := workflow.QualityReport{
		IsValid:    isValid,
		Score:      score,
		Reasons:    resp.Reasons,
		NeedsRetry: !isValid,
	}
	if len(resp.UnsupportedClaims) > 0 {
		report.Suggestions = append(report.Suggestions, "remove or re-ground these unsupported claims: "+strings.Join(resp.UnsupportedClaims, "; "))
	}
	return report, nil
}

// decomposeClaims splits answer into atomic, sentence-level claims using a
// sentence tokenizer (stand-in for full claim extraction, since no claim
// decomposition library exists anywhere in the retrieved corpus). Falls
// back to whole-answer-as-one-claim if the tokenizer could not be built.
func (h *HallucinationChecker) decomposeClaims(answer string) []string {
	if h.tokenizer == nil {
		return []string{answer}
	}
	sents := h.tokenizer.Tokenize(answer)
	claims := make([]string, 0, len(sents))
	for _, s := range sents {
		text := strings.TrimSpace(s.Text)
		if text != "" {
			claims = append(claims, text)
		}
	}
	if len(claims) == 0 {
		return []string{answer}
	}
	return claims
}

func (h *HallucinationChecker) buildPrompt(claims []string, docs []store.Document) string {
	var b strings.Builder
	b.WriteString("Check each claim below against the supporting documents. An entity's structured fields (type, title, details, keywords) count as ground truth when the claim references that entity.\n\n")
	b.WriteString("Claims:\n")
	for i, c := range claims {
		b.WriteString(strconv.Itoa(i + 1) + ". " + c + "\n")
	}
	b.WriteString("\nDocuments:\n")
	for i, d := range docs {
		b.WriteString(strconv.Itoa(i + 1) + ". " + d.Content)
		if d.Metadata.Entity != nil {
			b.WriteString(" [entity: " + describeEntity(d.Metadata.Entity) + "]")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nReturn a JSON object with: unsupported_claims (array of claim texts not grounded in the documents), score (0-1, higher means more unsupported), reasons (array of short explanations).")
	return b.String()
}

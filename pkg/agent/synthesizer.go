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

	"github.com/pkoukk/tiktoken-go"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/store"
)

// Answer is the structured record the synthesizer produces (spec §4.8).
type Answer struct {
	Text              string
	Confidence        float64
	SourcesUsed       []string
	KeyPoints         []string
	ReferencesTable   string
	Warnings          []string
	EntityReferences  []string
	HumanFeedbackUsed []string
}

// RetryMode selects the synthesizer's retry posture (spec §4.8).
type RetryMode int

const (
	// RetryNone is a first-pass synthesis: no prior answer to react to.
	RetryNone RetryMode = iota
	// RetryCorrective reacts to a failed hallucination check: lower
	// temperature, explicit within-documents instruction, cite every
	// sentence.
	RetryCorrective
	// RetryImproved reacts to a failed grade: incorporate the grader's
	// suggestions.
	RetryImproved
)

const maxPromptTokens = 6000

// Synthesizer produces a structured Answer from an effective query and the
// accumulated documents (spec §4.8), grounded on the teacher's Distiller
// single-call shape, extended with the document-preparation ordering rules,
// token-budget truncation retry, and corrective/improved retry modes.
type Synthesizer struct {
	llm       llm.Provider
	maxTokens int
	encoding  *tiktoken.Tiktoken
}

// SynthesizerConfig configures the synthesizer.
type SynthesizerConfig struct {
	MaxTokens int // default 1500, response budget (not the prompt budget)
}

// NewSynthesizer creates a new synthesizer agent. If the cl100k_base
// tiktoken encoding cannot be loaded, token-budget checks degrade to a
// conservative character-count estimate.
func NewSynthesizer(llmProvider llm.Provider, config *SynthesizerConfig) *Synthesizer {
	if config == nil {
		config = &SynthesizerConfig{MaxTokens: 1500}
	}
	enc, _ := tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
	return &Synthesizer{llm: llmProvider, maxTokens: config.MaxTokens, encoding: enc}
}

// Synthesize produces an Answer for query against docs under the given
// retry mode. retryCount/maxRetries/suggestions inform corrective and
// improved prompts; suggestions is only used in RetryImproved mode.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, docs []store.Document, mode RetryMode, suggestions []string, deadline time.Time) (Answer, error) {
	if len(docs) == 0 {
		return Answer{}, fmt.Errorf("synthesizer invoked with zero documents")
	}

	prepared := prepareDocuments(docs)

	temperature := synthesisTemperature(mode)
	prompt := s.buildPrompt(query, prepared, mode, suggestions)

	if s.tokenCount(prompt) > maxPromptTokens {
		truncated := truncateDocuments(prepared, 500)
		prompt = s.buildPrompt(query, truncated, mode, suggestions)
		if s.tokenCount(prompt) > maxPromptTokens {
			return Answer{}, fmt.Errorf("synthesizer prompt exceeds token budget even after truncation")
		}
	}

	resp, err := llm.GenerateStructured[answerResponse](ctx, s.llm, prompt, answerSchema, temperature, deadline)
	if err != nil {
		return Answer{}, fmt.Errorf("synthesis failed: %w", err)
	}

	answer := Answer{
		Text:              strings.TrimSpace(resp.Text),
		Confidence:        clamp01(resp.Confidence),
		SourcesUsed:       resp.SourcesUsed,
		KeyPoints:         resp.KeyPoints,
		ReferencesTable:   buildReferencesTable(prepared),
		EntityReferences:  collectEntityReferences(prepared),
		HumanFeedbackUsed: collectHumanFeedbackSources(prepared),
	}
	return answer, nil
}

func synthesisTemperature(mode RetryMode) float32 {
	switch mode {
	case RetryCorrective:
		return 0.1
	case RetryImproved:
		return 0.4
	default:
		return 0.5
	}
}

// preparedDocument is a document annotated with the document-preparation
// rules of spec §4.8: human-feedback priority, entity expansion, raw text.
type preparedDocument struct {
	doc         store.Document
	index       int
	humanVerified bool
	entityDesc  string
}

// prepareDocuments applies spec §4.8's three-tier ordering: human-feedback
// documents first, then entity-annotated documents, then raw text — stable
// within each tier, first occurrence wins (documents are already
// deduplicated by id upstream in workflow.Merge).
func prepareDocuments(docs []store.Document) []preparedDocument {
	var humanTier, entityTier, rawTier []preparedDocument

	for _, d := range docs {
		pd := preparedDocument{doc: d}
		switch {
		case d.Metadata.HumanFeedback != "":
			pd.humanVerified = true
			humanTier = append(humanTier, pd)
		case d.Metadata.Entity != nil:
			pd.entityDesc = describeEntity(d.Metadata.Entity)
			entityTier = append(entityTier, pd)
		default:
			rawTier = append(rawTier, pd)
		}
	}

	all := make([]preparedDocument, 0, len(docs))
	all = append(all, humanTier...)
	all = append(all, entityTier...)
	all = append(all, rawTier...)
	for i := range all {
		all[i].index = i + 1
	}
	return all
}

func describeEntity(e *store.Entity) string {
	var b strings.Builder
	if e.Type == "embedded_doc" {
		b.WriteString("[embedded document] ")
	}
	b.WriteString(e.Title)
	if e.Details != "" {
		b.WriteString(": " + e.Details)
	}
	if len(e.Keywords) > 0 {
		b.WriteString(" (keywords: " + strings.Join(e.Keywords, ", ") + ")")
	}
	return b.String()
}

// truncateDocuments caps each document's content at maxChars while
// preserving metadata, for the token-budget retry (spec §4.8).
func truncateDocuments(docs []preparedDocument, maxChars int) []preparedDocument {
	out := make([]preparedDocument, len(docs))
	for i, d := range docs {
		if len(d.doc.Content) > maxChars {
			d.doc.Content = d.doc.Content[:maxChars]
		}
		out[i] = d
	}
	return out
}

func (s *Synthesizer) buildPrompt(query string, docs []preparedDocument, mode RetryMode, suggestions []string) string {
	var b strings.Builder
	b.WriteString("Answer the query using only the documents below. Cite sources inline as [1], [2], etc., matching the document numbers.\n\n")

	switch mode {
	case RetryCorrective:
		b.WriteString("This is a corrective retry: a prior answer contained unsupported claims. Stay strictly within the documents below and cite every sentence.\n\n")
	case RetryImproved:
		b.WriteString("This is an improvement retry. Address the following suggestions:\n")
		for _, sug := range suggestions {
			b.WriteString("- " + sug + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Query: " + query + "\n\n")
	b.WriteString("Documents:\n")
	for _, pd := range docs {
		b.WriteString(fmt.Sprintf("[%d] ", pd.index))
		if pd.humanVerified {
			b.WriteString("(Human Verified) ")
		}
		if pd.entityDesc != "" {
			b.WriteString(pd.entityDesc + "\n")
		} else {
			b.WriteString(pd.doc.Content + "\n")
		}
	}

	b.WriteString("\nRespond with a JSON object containing: text, confidence (0-1), sources_used (array of citation keys like \"[1]\"), key_points (array).")
	return b.String()
}

func buildReferencesTable(docs []preparedDocument) string {
	var b strings.Builder
	b.WriteString("| # | Source | Page |\n|---|---|---|\n")
	for _, pd := range docs {
		b.WriteString(fmt.Sprintf("| %d | %s | %d |\n", pd.index, pd.doc.Metadata.Source, pd.doc.Metadata.Page))
	}
	return b.String()
}

func collectEntityReferences(docs []preparedDocument) []string {
	var refs []string
	for _, pd := range docs {
		if pd.entityDesc != "" {
			refs = append(refs, pd.entityDesc)
		}
	}
	return refs
}

func collectHumanFeedbackSources(docs []preparedDocument) []string {
	var refs []string
	for _, pd := range docs {
		if pd.humanVerified {
			refs = append(refs, pd.doc.Metadata.Source)
		}
	}
	return refs
}

func (s *Synthesizer) tokenCount(text string) int {
	if s.encoding == nil {
		return len(text) / 4
	}
	return len(s.encoding.Encode(text, nil, nil))
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

type answerResponse struct {
	Text        string   `json:"text"`
	Confidence  float64  `json:"confidence"`
	SourcesUsed []string `json:"sources_used"`
	KeyPoints   []string `json:"key_points"`
}

var answerSchema = llm.Schema{
	Name:        "answer",
	Description: "A synthesized, cited answer",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text":         map[string]interface{}{"type": "string"},
			"confidence":   map[string]interface{}{"type": "number"},
			"sources_used": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"key_points":   map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
		},
	},
}

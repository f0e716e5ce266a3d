// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Schema is a JSON-Schema-shaped description of the structured output a
// GenerateStructured call expects. Providers that support native
// schema-constrained decoding (e.g. OpenAI JSON mode) may use it directly;
// others treat it as prompt guidance only.
type Schema struct {
	Name        string
	Description string
	JSON        map[string]interface{}
}

// StructuredProvider is an optional upgrade a Provider may implement to
// answer a structured-generation request with native schema/JSON-mode
// decoding (e.g. OpenAI's response_format: json_object) instead of relying
// on prompt-stuffing the schema and brace-matching JSON out of free text.
// GenerateStructured type-asserts for this and falls back to the baseline
// Complete path when a provider doesn't implement it.
type StructuredProvider interface {
	CompleteJSON(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// Generate is the package-level binding for the core's "generate" operation
// (spec §6): free-form text at a given temperature, bounded by deadline.
func Generate(ctx context.Context, provider Provider, prompt string, temperature float32, deadline time.Time) (string, error) {
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	resp, err := provider.Complete(ctx, &CompletionRequest{
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}
	return resp.Content, nil
}

// GenerateStructured is the core's "generate_structured" operation (spec
// §6), generalizing the JSON-substring-extraction-then-tolerant-unmarshal
// idiom the teacher repeats by hand in pkg/agent/planner.go into one
// reusable, type-parameterized helper. Go interface methods cannot be
// generic, so this lives as a free function over the Provider interface.
//
// Unparseable output is a model failure, retried once (per spec §6
// "the core treats unparseable output as a model failure, retriable once").
func GenerateStructured[T any](ctx context.Context, provider Provider, prompt string, schema Schema, temperature float32, deadline time.Time) (T, error) {
	var zero T

	if !deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	fullPrompt := prompt
	if schema.JSON != nil {
		schemaBytes, _ := json.Marshal(schema.JSON)
		fullPrompt = fmt.Sprintf("%s\n\nRespond with valid JSON matching this schema:\n%s", prompt, string(schemaBytes))
	}

	structured, supportsJSONMode := provider.(StructuredProvider)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		completionReq := &CompletionRequest{
			Messages:    []Message{{Role: "user", Content: fullPrompt}},
			Temperature: temperature,
		}

		var resp *CompletionResponse
		var err error
		if supportsJSONMode {
			resp, err = structured.CompleteJSON(ctx, completionReq)
		} else {
			resp, err = provider.Complete(ctx, completionReq)
		}
		if err != nil {
			lastErr = fmt.Errorf("structured generation failed: %w", err)
			continue
		}

		jsonStr, ok := extractJSONObject(resp.Content)
		if !ok {
			lastErr = fmt.Errorf("no valid JSON object found in model response")
			continue
		}

		var out T
		if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
			lastErr = fmt.Errorf("failed to parse structured response: %w", err)
			continue
		}
		return out, nil
	}

	return zero, lastErr
}

// extractJSONObject finds the first balanced {...} substring in text,
// tolerating surrounding explanatory prose from the model.
func extractJSONObject(text string) (string, bool) {
	start := -1
	depth := 0
	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

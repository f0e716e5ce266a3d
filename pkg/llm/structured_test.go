// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package llm

import (
	"context"
	"testing"
	"time"
)

type plainProvider struct {
	content string
}

func (p *plainProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Content: p.content}, nil
}
func (p *plainProvider) Name() string            { return "plain" }
func (p *plainProvider) ModelName() string       { return "plain-model" }
func (p *plainProvider) SupportsStreaming() bool { return false }

// jsonModeProvider implements StructuredProvider; CompleteJSON and Complete
// return different content so tests can tell which path GenerateStructured took.
type jsonModeProvider struct {
	plainProvider
	jsonContent string
}

func (p *jsonModeProvider) CompleteJSON(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{Content: p.jsonContent}, nil
}

type testPayload struct {
	Value string `json:"value"`
}

func TestGenerateStructured_PrefersStructuredProvider(t *testing.T) {
	provider := &jsonModeProvider{
		plainProvider: plainProvider{content: `{"value":"from-complete"}`},
		jsonContent:   `{"value":"from-json-mode"}`,
	}

	out, err := GenerateStructured[testPayload](context.Background(), provider, "say something", Schema{}, 0, time.Time{})
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	if out.Value != "from-json-mode" {
		t.Fatalf("expected CompleteJSON path to be used, got %q", out.Value)
	}
}

func TestGenerateStructured_FallsBackWithoutStructuredProvider(t *testing.T) {
	provider := &plainProvider{content: `{"value":"from-complete"}`}

	out, err := GenerateStructured[testPayload](context.Background(), provider, "say something", Schema{}, 0, time.Time{})
	if err != nil {
		t.Fatalf("GenerateStructured failed: %v", err)
	}
	if out.Value != "from-complete" {
		t.Fatalf("expected Complete fallback path, got %q", out.Value)
	}
}

func TestGenerateStructured_RetriesOnUnparseableOutput(t *testing.T) {
	provider := &plainProvider{content: "no json here"}

	if _, err := GenerateStructured[testPayload](context.Background(), provider, "say something", Schema{}, 0, time.Time{}); err == nil {
		t.Fatal("expected error for unparseable output, got nil")
	}
}

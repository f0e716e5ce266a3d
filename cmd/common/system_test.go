// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	"context"
	"testing"

	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/store/memory"
)

// fakeEmbedder returns a fixed-length zero vector per text, avoiding network
// calls in tests that only exercise the ingestion/store plumbing.
type fakeEmbedder struct{ dims int }

func (f *fakeEmbedder) Embed(ctx context.Context, req *embedding.EmbedRequest) (*embedding.EmbedResponse, error) {
	vectors := make([]embedding.Vector, len(req.Texts))
	for i, text := range req.Texts {
		vectors[i] = embedding.Vector{Embedding: make([]float32, f.dims), Text: text}
	}
	return &embedding.EmbedResponse{Vectors: vectors, Model: "fake"}, nil
}

func (f *fakeEmbedder) Dimensions() int   { return f.dims }
func (f *fakeEmbedder) ModelName() string { return "fake" }

func testSystemConfig() *Config {
	cfg := DefaultConfig()
	cfg.LLM.ReasoningLLM.Provider = "openai"
	cfg.LLM.ReasoningLLM.Model = "gpt-4o"
	cfg.LLM.ReasoningLLM.APIKey = "test-key"
	cfg.LLM.FastLLM.Provider = "openai"
	cfg.LLM.FastLLM.Model = "gpt-4o-mini"
	cfg.LLM.FastLLM.APIKey = "test-key"
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-small"
	cfg.Embedding.APIKey = "test-key"
	cfg.VectorStore.Type = "memory"
	return cfg
}

// TestInitializeSystem_Memory verifies that the memory store backend wires
// up without requiring network access, and that the resulting engine has
// every mandatory node bound.
func TestInitializeSystem_Memory(t *testing.T) {
	sys, err := InitializeSystem(testSystemConfig())
	if err != nil {
		t.Fatalf("InitializeSystem failed: %v", err)
	}
	defer sys.Close()

	if _, ok := sys.Store.(*memory.Store); !ok {
		t.Fatalf("expected memory.Store, got %T", sys.Store)
	}
	if sys.Engine == nil {
		t.Fatal("expected non-nil Engine")
	}
}

// TestInitializeSystem_UnsupportedStore checks that an unrecognized store
// type fails initialization with a clear error rather than silently
// defaulting to some backend.
func TestInitializeSystem_UnsupportedStore(t *testing.T) {
	cfg := testSystemConfig()
	cfg.VectorStore.Type = "nope"

	if _, err := InitializeSystem(cfg); err == nil {
		t.Fatal("expected error for unsupported store type, got nil")
	}
}

// TestInitializeSystem_WebFallbackDisabled exercises the code path where
// web search is configured off: DirectResponder must receive a nil WebTool
// without the engine constructing a web_fallback node.
func TestInitializeSystem_WebFallbackDisabled(t *testing.T) {
	cfg := testSystemConfig()
	cfg.Workflow.WebEnabled = false
	cfg.WebSearch = nil

	sys, err := InitializeSystem(cfg)
	if err != nil {
		t.Fatalf("InitializeSystem failed: %v", err)
	}
	defer sys.Close()

	if sys.Engine == nil {
		t.Fatal("expected non-nil Engine")
	}
}

// TestIngestDocument_Memory ingests a short document into the memory store
// and checks the chunk count is sane. Uses a fake embedder so the test
// never makes a network call.
func TestIngestDocument_Memory(t *testing.T) {
	sys := &System{
		Config:   testSystemConfig(),
		Embedder: &fakeEmbedder{dims: 8},
		Store:    memory.New(nil),
	}
	defer sys.Close()

	content := "line one\nline two\nline three"
	n, err := sys.IngestDocument(context.Background(), "doc-1", content)
	if err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one chunk")
	}
}

func TestSplitIntoChunks(t *testing.T) {
	chunks := splitIntoChunks("a\nb\nc", 2)
	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
}

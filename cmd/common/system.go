// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aiteam0/rag-lab/pkg/agent"
	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/llm/openai"
	"github.com/aiteam0/rag-lab/pkg/nodes"
	"github.com/aiteam0/rag-lab/pkg/retrieval"
	"github.com/aiteam0/rag-lab/pkg/store"
	"github.com/aiteam0/rag-lab/pkg/store/chromem"
	"github.com/aiteam0/rag-lab/pkg/store/memory"
	"github.com/aiteam0/rag-lab/pkg/store/qdrant"
	"github.com/aiteam0/rag-lab/pkg/workflow"

	"github.com/google/uuid"
)

// System encapsulates all components of the RAG orchestrator: the two LLM
// tiers, the embedder, the document store, and the workflow Engine wired
// with the ten spec §4.1 nodes.
type System struct {
	Config       *Config
	ReasoningLLM llm.Provider
	FastLLM      llm.Provider
	Embedder     embedding.Embedder
	Store        store.Store
	Engine       *workflow.Engine
}

// InitializeSystem creates and initializes all system components based on configuration.
func InitializeSystem(config *Config) (*System, error) {
	sys := &System{Config: config}

	if err := sys.initLLMs(); err != nil {
		return nil, fmt.Errorf("failed to initialize LLMs: %w", err)
	}

	if err := sys.initEmbedder(); err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	if err := sys.initStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := sys.initEngine(); err != nil {
		return nil, fmt.Errorf("failed to initialize workflow engine: %w", err)
	}

	return sys, nil
}

func (s *System) initLLMs() error {
	switch s.Config.LLM.ReasoningLLM.Provider {
	case "openai":
		provider, err := openai.NewProvider(
			s.Config.LLM.ReasoningLLM.APIKey,
			s.Config.LLM.ReasoningLLM.Model,
			&llm.Config{
				DefaultTemperature: s.Config.LLM.ReasoningLLM.DefaultTemperature,
				DefaultMaxTokens:   2000,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create reasoning LLM: %w", err)
		}
		s.ReasoningLLM = provider
	default:
		return fmt.Errorf("unsupported reasoning LLM provider: %s", s.Config.LLM.ReasoningLLM.Provider)
	}

	switch s.Config.LLM.FastLLM.Provider {
	case "openai":
		provider, err := openai.NewProvider(
			s.Config.LLM.FastLLM.APIKey,
			s.Config.LLM.FastLLM.Model,
			&llm.Config{
				DefaultTemperature: s.Config.LLM.FastLLM.DefaultTemperature,
				DefaultMaxTokens:   1000,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to create fast LLM: %w", err)
		}
		s.FastLLM = provider
	default:
		return fmt.Errorf("unsupported fast LLM provider: %s", s.Config.LLM.FastLLM.Provider)
	}

	return nil
}

func (s *System) initEmbedder() error {
	switch s.Config.Embedding.Provider {
	case "openai":
		embedder, err := embedding.NewOpenAIEmbedder(
			s.Config.Embedding.APIKey,
			s.Config.Embedding.Model,
			&embedding.Config{BatchSize: 100},
		)
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		s.Embedder = embedder
	default:
		return fmt.Errorf("unsupported embedding provider: %s", s.Config.Embedding.Provider)
	}

	return nil
}

// initStore selects the document store backend. "qdrant" dials a running
// Qdrant collection; "chromem" opens an embedded chromem-go collection
// (persisted if Address names a directory, in-memory otherwise); "memory"
// uses the in-process BM25 store meant for tests and small demos.
func (s *System) initStore() error {
	switch s.Config.VectorStore.Type {
	case "qdrant":
		st, err := qdrant.NewStore(s.Config.VectorStore.Address, &qdrant.Config{
			APIKey:         s.Config.VectorStore.APIKey,
			TimeoutSeconds: s.Config.VectorStore.TimeoutSeconds,
			Collection:     s.Config.VectorStore.DefaultCollection,
		})
		if err != nil {
			return fmt.Errorf("failed to create qdrant store: %w", err)
		}
		s.Store = st
	case "chromem":
		st, err := chromem.New(context.Background(), s.Config.VectorStore.Address, s.Config.VectorStore.DefaultCollection)
		if err != nil {
			return fmt.Errorf("failed to create chromem store: %w", err)
		}
		s.Store = st
	case "memory":
		s.Store = memory.New(nil)
	default:
		return fmt.Errorf("unsupported vector store type: %s", s.Config.VectorStore.Type)
	}

	return nil
}

// initEngine wires the ten spec §4.1 nodes around the configured LLMs,
// embedder, and store, builds the branching orchestrator graph, and binds
// it to a workflow.Engine.
func (s *System) initEngine() error {
	opts := s.Config.Workflow.ToRunOptions()

	router := agent.NewRouter(s.FastLLM, nil)
	contextResolver := agent.NewContextResolver(s.FastLLM, nil)

	webEnabled := opts.WebEnabled && s.Config.WebSearch != nil && s.Config.WebSearch.Enabled
	var webTool agent.WebTool
	var webFallback *agent.WebFallback
	if webEnabled {
		webFallback = agent.NewWebFallback(agent.WebFallbackConfig{
			Endpoint:   s.Config.WebSearch.Endpoint,
			APIKey:     s.Config.WebSearch.APIKey,
			MaxResults: s.Config.WebSearch.MaxResults,
			DailyQuota: s.Config.WebSearch.DailyQuota,
		})
		webTool = webFallback
	}

	directResponder := agent.NewDirectResponder(s.ReasoningLLM, webTool, nil)

	planner := agent.NewPlanner(s.ReasoningLLM, &agent.PlannerConfig{
		Temperature: s.Config.LLM.ReasoningLLM.DefaultTemperature,
		MaxSubtasks: opts.MaxSubtasks,
	})

	metadataCache := retrieval.NewMetadataCache(s.Store, 5*time.Minute)
	variationGenerator := agent.NewVariationGenerator(s.FastLLM, nil)
	subtaskExecutor := agent.NewSubtaskExecutor(metadataCache, variationGenerator, s.FastLLM, retrieval.FilterGeneratorConfig{
		Temperature: 0.2,
	})

	hybridRetriever := retrieval.NewHybridRetriever(s.Store, s.Embedder, retrieval.HybridConfig{
		TopK: opts.TopK,
		RRFK: opts.RRFK,
	})

	synthesizer := agent.NewSynthesizer(s.ReasoningLLM, &agent.SynthesizerConfig{
		MaxTokens: 1500,
	})

	hallucinationChecker := agent.NewHallucinationChecker(s.FastLLM, nil)
	answerGrader := agent.NewAnswerGrader(s.FastLLM, nil)

	nodeMap := map[string]workflow.Node{
		"router":                nodes.NewRouterNode(router),
		"context_resolver":      nodes.NewContextResolverNode(contextResolver),
		"direct_responder":      nodes.NewDirectResponderNode(directResponder),
		"planner":               nodes.NewPlannerNode(planner),
		"subtask_executor":      nodes.NewSubtaskExecutorNode(subtaskExecutor),
		"retriever":             nodes.NewRetrieverNode(hybridRetriever),
		"synthesizer":           nodes.NewSynthesizerNode(synthesizer),
		"hallucination_checker": nodes.NewHallucinationCheckerNode(hallucinationChecker, opts.ThresholdHallucination),
		"answer_grader":         nodes.NewAnswerGraderNode(answerGrader, opts.ThresholdGrade),
	}
	if webEnabled {
		nodeMap["web_fallback"] = nodes.NewWebFallbackNode(webFallback)
	}

	predicates := workflow.NewPredicates(opts)
	graph, err := workflow.BuildOrchestratorGraph(nodeMap, opts, predicates)
	if err != nil {
		return fmt.Errorf("failed to build orchestrator graph: %w", err)
	}

	s.Engine = workflow.NewEngine(graph, opts, nil)

	return nil
}

// IngestDocument splits content into paragraph-sized chunks, embeds each
// chunk, and inserts it into the configured store under docID. Insert
// signatures differ per backend (qdrant needs a language tag, memory needs
// none), so this dispatches on the concrete store type rather than widening
// store.Store with a backend-specific method.
func (s *System) IngestDocument(ctx context.Context, docID string, content string) (int, error) {
	chunks := splitIntoChunks(content, 512)
	if len(chunks) == 0 {
		return 0, nil
	}

	embedResp, err := s.Embedder.Embed(ctx, &embedding.EmbedRequest{Texts: chunks})
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	lang := retrieval.DetectLanguage(content)

	for i, chunk := range chunks {
		doc := store.Document{
			ID:      uuid.New().String(),
			Content: chunk,
			Metadata: store.Metadata{
				Source: docID,
			},
		}

		switch st := s.Store.(type) {
		case *qdrant.Store:
			if _, err := st.Insert(ctx, doc, embedResp.Vectors[i].Embedding, lang); err != nil {
				return 0, fmt.Errorf("failed to insert chunk: %w", err)
			}
		case *chromem.Store:
			if _, err := st.Insert(ctx, doc, embedResp.Vectors[i].Embedding); err != nil {
				return 0, fmt.Errorf("failed to insert chunk: %w", err)
			}
		case *memory.Store:
			st.Insert(doc)
		default:
			return 0, fmt.Errorf("unsupported store type for ingestion: %T", s.Store)
		}
	}

	return len(chunks), nil
}

// splitIntoChunks splits text into chunks of approximately maxSize characters.
func splitIntoChunks(text string, maxSize int) []string {
	var chunks []string
	var currentChunk string

	lines := strings.Split(text, "\n")

	for _, line := range lines {
		if len(currentChunk)+len(line)+1 > maxSize && len(currentChunk) > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk))
			currentChunk = line
		} else {
			if len(currentChunk) > 0 {
				currentChunk += "\n"
			}
			currentChunk += line
		}
	}

	if len(currentChunk) > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk))
	}

	return chunks
}

// Close releases all system resources.
func (s *System) Close() error {
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}

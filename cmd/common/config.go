// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// Config represents the complete application configuration.
type Config struct {
	LLM         LLMConfig         `json:"llm"`
	Embedding   EmbeddingConfig   `json:"embedding"`
	VectorStore VectorStoreConfig `json:"vector_store"`
	WebSearch   *WebSearchConfig  `json:"web_search,omitempty"`
	Workflow    WorkflowConfig    `json:"workflow"`
}

// LLMConfig contains configuration for LLM providers.
type LLMConfig struct {
	ReasoningLLM LLMProviderConfig `json:"reasoning_llm"`
	FastLLM      LLMProviderConfig `json:"fast_llm"`
}

// LLMProviderConfig contains configuration for a specific LLM provider.
type LLMProviderConfig struct {
	Provider           string  `json:"provider"`
	Model              string  `json:"model"`
	APIKey             string  `json:"api_key,omitempty"`
	DefaultTemperature float32 `json:"default_temperature"`
}

// EmbeddingConfig contains configuration for embedding generation.
type EmbeddingConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
}

// VectorStoreConfig contains configuration for the document store backend
// ("qdrant", "chromem", or "memory").
type VectorStoreConfig struct {
	Type              string `json:"type"`
	Address           string `json:"address"`
	APIKey            string `json:"api_key,omitempty"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
	DefaultCollection string `json:"default_collection"`
}

// WebSearchConfig contains configuration for the web_fallback node's search tool.
type WebSearchConfig struct {
	Enabled    bool   `json:"enabled"`
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key,omitempty"`
	MaxResults int    `json:"max_results"`
	DailyQuota int    `json:"daily_quota"`
}

// WorkflowConfig mirrors workflow.RunOptions (spec §6 Configuration).
type WorkflowConfig struct {
	MaxSubtasks            int     `json:"max_subtasks"`
	MaxRetries             int     `json:"max_retries"`
	TopK                   int     `json:"top_k"`
	RRFK                   int     `json:"rrf_k"`
	SemanticWeight         float64 `json:"semantic_weight"`
	KeywordWeight          float64 `json:"keyword_weight"`
	WebFallbackThreshold   int     `json:"web_fallback_threshold"`
	ThresholdHallucination float64 `json:"threshold_hallucination"`
	ThresholdGrade         float64 `json:"threshold_grade"`
	RoutingEnabled         bool    `json:"routing_enabled"`
	WebEnabled             bool    `json:"web_enabled"`
	TurnDeadlineSeconds    int     `json:"turn_deadline_seconds"`
}

// ToRunOptions converts WorkflowConfig to workflow.RunOptions.
func (w WorkflowConfig) ToRunOptions() workflow.RunOptions {
	return workflow.RunOptions{
		MaxSubtasks:            w.MaxSubtasks,
		MaxRetries:             w.MaxRetries,
		TopK:                   w.TopK,
		RRFK:                   w.RRFK,
		SemanticWeight:         w.SemanticWeight,
		KeywordWeight:          w.KeywordWeight,
		WebFallbackThreshold:   w.WebFallbackThreshold,
		ThresholdHallucination: w.ThresholdHallucination,
		ThresholdGrade:         w.ThresholdGrade,
		RoutingEnabled:         w.RoutingEnabled,
		WebEnabled:             w.WebEnabled,
		TurnDeadline:           time.Duration(w.TurnDeadlineSeconds) * time.Second,
	}
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Load API keys from environment if not in config
	if config.LLM.ReasoningLLM.APIKey == "" {
		config.LLM.ReasoningLLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.LLM.FastLLM.APIKey == "" {
		config.LLM.FastLLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.Embedding.APIKey == "" {
		config.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &config, nil
}

// DefaultConfig returns a default configuration suitable for initial setup.
func DefaultConfig() *Config {
	defaults := workflow.DefaultRunOptions()
	return &Config{
		LLM: LLMConfig{
			ReasoningLLM: LLMProviderConfig{
				Provider:           "openai",
				Model:              "gpt-4o", // Fast and capable model
				DefaultTemperature: 0.7,
			},
			FastLLM: LLMProviderConfig{
				Provider:           "openai",
				Model:              "gpt-4o-mini", // Fast model for simple tasks
				DefaultTemperature: 0.5,
			},
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		VectorStore: VectorStoreConfig{
			Type:              "qdrant",
			Address:           "localhost:6334",
			DefaultCollection: "documents",
		},
		Workflow: WorkflowConfig{
			MaxSubtasks:            defaults.MaxSubtasks,
			MaxRetries:             defaults.MaxRetries,
			TopK:                   defaults.TopK,
			RRFK:                   defaults.RRFK,
			SemanticWeight:         defaults.SemanticWeight,
			KeywordWeight:          defaults.KeywordWeight,
			WebFallbackThreshold:   defaults.WebFallbackThreshold,
			ThresholdHallucination: defaults.ThresholdHallucination,
			ThresholdGrade:         defaults.ThresholdGrade,
			RoutingEnabled:         defaults.RoutingEnabled,
			WebEnabled:             defaults.WebEnabled,
			TurnDeadlineSeconds:    int(defaults.TurnDeadline.Seconds()),
		},
	}
}

func loadEnvFiles() {
	envFiles := []string{".env", ".env.local"}
	merged := make(map[string]string)

	for _, file := range envFiles {
		envMap, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			// Ignore other read errors to avoid blocking config loading.
			continue
		}
		for key, value := range envMap {
			merged[key] = value
		}
	}

	for key, value := range merged {
		current, exists := os.LookupEnv(key)
		if !exists || current == "" {
			_ = os.Setenv(key, value)
		}
	}
}

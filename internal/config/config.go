// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/workflow"
)

// Config represents the complete configuration for the RAG orchestrator.
type Config struct {
	// LLM configuration
	LLM LLMConfig `json:"llm"`

	// Embedding configuration
	Embedding EmbeddingConfig `json:"embedding"`

	// Store configuration
	Store StoreConfig `json:"store"`

	// WebSearch configuration (optional, backs the web_fallback node)
	WebSearch *WebSearchConfig `json:"web_search,omitempty"`

	// Workflow configuration
	Workflow WorkflowConfig `json:"workflow"`
}

// LLMConfig contains settings for LLM providers.
type LLMConfig struct {
	// ReasoningLLM is used for complex reasoning tasks (planning, synthesis,
	// direct responses)
	ReasoningLLM LLMProviderConfig `json:"reasoning_llm"`

	// FastLLM is used for quick tasks (routing, context resolution, query
	// variation, filter generation, hallucination checking, grading)
	FastLLM LLMProviderConfig `json:"fast_llm"`
}

// LLMProviderConfig contains settings for a specific LLM provider.
type LLMProviderConfig struct {
	Provider           string  `json:"provider"` // "openai", "anthropic", "ollama"
	APIKey             string  `json:"api_key,omitempty"`
	BaseURL            string  `json:"base_url,omitempty"`
	Model              string  `json:"model"`
	DefaultTemperature float32 `json:"default_temperature"`
	DefaultMaxTokens   int     `json:"default_max_tokens"`
	TimeoutSeconds     int     `json:"timeout_seconds"`
}

// EmbeddingConfig contains settings for embedding generation.
type EmbeddingConfig struct {
	Provider       string `json:"provider"` // "openai", "local"
	APIKey         string `json:"api_key,omitempty"`
	BaseURL        string `json:"base_url,omitempty"`
	Model          string `json:"model"`
	BatchSize      int    `json:"batch_size"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// StoreConfig contains settings for the document store backend.
type StoreConfig struct {
	Type              string                 `json:"type"` // "qdrant", "chromem", "memory"
	Address           string                 `json:"address"`
	APIKey            string                 `json:"api_key,omitempty"`
	TimeoutSeconds    int                    `json:"timeout_seconds"`
	DefaultCollection string                 `json:"default_collection"`
	PersistPath       string                 `json:"persist_path,omitempty"` // chromem on-disk path
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// WebSearchConfig contains settings for the web_fallback node's search tool.
type WebSearchConfig struct {
	Enabled    bool   `json:"enabled"`
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"api_key,omitempty"`
	MaxResults int    `json:"max_results"`
	DailyQuota int    `json:"daily_quota"`
}

// WorkflowConfig mirrors workflow.RunOptions (spec §6 Configuration) in a
// JSON/env-friendly shape; ToRunOptions converts it for the engine.
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

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables.
// This is useful for containerized deployments.
func LoadFromEnv() *Config {
	loadEnvFiles()

	defaults := workflow.DefaultRunOptions()

	config := &Config{
		LLM: LLMConfig{
			ReasoningLLM: LLMProviderConfig{
				Provider:           getEnv("REASONING_LLM_PROVIDER", "openai"),
				APIKey:             getEnv("REASONING_LLM_API_KEY", ""),
				Model:              getEnv("REASONING_LLM_MODEL", "gpt-4o"),
				DefaultTemperature: 0.5,
				DefaultMaxTokens:   2048,
				TimeoutSeconds:     60,
			},
			FastLLM: LLMProviderConfig{
				Provider:           getEnv("FAST_LLM_PROVIDER", "openai"),
				APIKey:             getEnv("FAST_LLM_API_KEY", ""),
				Model:              getEnv("FAST_LLM_MODEL", "gpt-4o-mini"),
				DefaultTemperature: 0.3,
				DefaultMaxTokens:   1024,
				TimeoutSeconds:     30,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:       getEnv("EMBEDDING_PROVIDER", "openai"),
			APIKey:         getEnv("EMBEDDING_API_KEY", ""),
			Model:          getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			BatchSize:      100,
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Type:              getEnv("STORE_TYPE", "qdrant"),
			Address:           getEnv("STORE_ADDRESS", "localhost:6334"),
			DefaultCollection: getEnv("STORE_COLLECTION", "documents"),
			PersistPath:       getEnv("STORE_PERSIST_PATH", ""),
			TimeoutSeconds:    30,
		},
		WebSearch: &WebSearchConfig{
			Enabled:    getEnv("WEB_SEARCH_ENABLED", "") == "true",
			Endpoint:   getEnv("WEB_SEARCH_ENDPOINT", ""),
			APIKey:     getEnv("WEB_SEARCH_API_KEY", ""),
			MaxResults: 5,
			DailyQuota: 100,
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

	return config
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ToLLMConfig converts to llm.Config for the reasoning LLM.
func (c *Config) ToLLMConfig() *llm.Config {
	return &llm.Config{
		Provider:           c.LLM.ReasoningLLM.Provider,
		APIKey:             c.LLM.ReasoningLLM.APIKey,
		BaseURL:            c.LLM.ReasoningLLM.BaseURL,
		Model:              c.LLM.ReasoningLLM.Model,
		DefaultTemperature: c.LLM.ReasoningLLM.DefaultTemperature,
		DefaultMaxTokens:   c.LLM.ReasoningLLM.DefaultMaxTokens,
		TimeoutSeconds:     c.LLM.ReasoningLLM.TimeoutSeconds,
	}
}

// ToFastLLMConfig converts to llm.Config for the fast LLM.
func (c *Config) ToFastLLMConfig() *llm.Config {
	return &llm.Config{
		Provider:           c.LLM.FastLLM.Provider,
		APIKey:             c.LLM.FastLLM.APIKey,
		BaseURL:            c.LLM.FastLLM.BaseURL,
		Model:              c.LLM.FastLLM.Model,
		DefaultTemperature: c.LLM.FastLLM.DefaultTemperature,
		DefaultMaxTokens:   c.LLM.FastLLM.DefaultMaxTokens,
		TimeoutSeconds:     c.LLM.FastLLM.TimeoutSeconds,
	}
}

// ToEmbeddingConfig converts to embedding.Config.
func (c *Config) ToEmbeddingConfig() *embedding.Config {
	return &embedding.Config{
		Provider:       c.Embedding.Provider,
		APIKey:         c.Embedding.APIKey,
		BaseURL:        c.Embedding.BaseURL,
		Model:          c.Embedding.Model,
		BatchSize:      c.Embedding.BatchSize,
		TimeoutSeconds: c.Embedding.TimeoutSeconds,
	}
}

// applyDefaults fills in default values for unspecified config fields.
func applyDefaults(config *Config) {
	if config.LLM.ReasoningLLM.DefaultMaxTokens == 0 {
		config.LLM.ReasoningLLM.DefaultMaxTokens = 2048
	}
	if config.LLM.ReasoningLLM.TimeoutSeconds == 0 {
		config.LLM.ReasoningLLM.TimeoutSeconds = 60
	}

	if config.LLM.FastLLM.DefaultMaxTokens == 0 {
		config.LLM.FastLLM.DefaultMaxTokens = 1024
	}
	if config.LLM.FastLLM.TimeoutSeconds == 0 {
		config.LLM.FastLLM.TimeoutSeconds = 30
	}

	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 100
	}
	if config.Embedding.TimeoutSeconds == 0 {
		config.Embedding.TimeoutSeconds = 30
	}

	if config.Store.TimeoutSeconds == 0 {
		config.Store.TimeoutSeconds = 30
	}
	if config.Store.DefaultCollection == "" {
		config.Store.DefaultCollection = "documents"
	}

	defaults := workflow.DefaultRunOptions()
	if config.Workflow.MaxSubtasks == 0 {
		config.Workflow.MaxSubtasks = defaults.MaxSubtasks
	}
	if config.Workflow.MaxRetries == 0 {
		config.Workflow.MaxRetries = defaults.MaxRetries
	}
	if config.Workflow.TopK == 0 {
		config.Workflow.TopK = defaults.TopK
	}
	if config.Workflow.RRFK == 0 {
		config.Workflow.RRFK = defaults.RRFK
	}
	if config.Workflow.SemanticWeight == 0 && config.Workflow.KeywordWeight == 0 {
		config.Workflow.SemanticWeight = defaults.SemanticWeight
		config.Workflow.KeywordWeight = defaults.KeywordWeight
	}
	if config.Workflow.WebFallbackThreshold == 0 {
		config.Workflow.WebFallbackThreshold = defaults.WebFallbackThreshold
	}
	if config.Workflow.ThresholdHallucination == 0 {
		config.Workflow.ThresholdHallucination = defaults.ThresholdHallucination
	}
	if config.Workflow.ThresholdGrade == 0 {
		config.Workflow.ThresholdGrade = defaults.ThresholdGrade
	}
	if config.Workflow.TurnDeadlineSeconds == 0 {
		config.Workflow.TurnDeadlineSeconds = int(defaults.TurnDeadline.Seconds())
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

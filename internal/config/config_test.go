// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestLoadFromFile tests loading configuration from a JSON file.
func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantErr  bool
		validate func(*testing.T, *Config)
	}{
		{
			name: "valid minimal config",
			content: `{
				"llm": {
					"reasoning_llm": {
						"provider": "openai",
						"model": "gpt-5"
					},
					"fast_llm": {
						"provider": "openai",
						"model": "gpt-5-mini"
					}
				},
				"embedding": {
					"provider": "openai",
					"model": "text-embedding-3-small"
				},
				"store": {
					"type": "qdrant",
					"address": "localhost:6334"
				},
				"workflow": {}
			}`,
			wantErr: false,
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.Provider != "openai" {
					t.Errorf("expected provider openai, got %s", c.LLM.ReasoningLLM.Provider)
				}
				if c.LLM.ReasoningLLM.DefaultMaxTokens != 2048 {
					t.Errorf("expected default max tokens 2048, got %d", c.LLM.ReasoningLLM.DefaultMaxTokens)
				}
				if c.Workflow.MaxSubtasks != 5 {
					t.Errorf("expected default max subtasks 5, got %d", c.Workflow.MaxSubtasks)
				}
			},
		},
		{
			name: "valid complete config",
			content: `{
				"llm": {
					"reasoning_llm": {
						"provider": "anthropic",
						"api_key": "test-key",
						"model": "claude-3-5-sonnet-20241022",
						"default_temperature": 0.8,
						"default_max_tokens": 4096,
						"timeout_seconds": 90
					},
					"fast_llm": {
						"provider": "openai",
						"model": "gpt-5-mini",
						"default_temperature": 0.3,
						"default_max_tokens": 512,
						"timeout_seconds": 20
					}
				},
				"embedding": {
					"provider": "openai",
					"api_key": "embed-key",
					"model": "text-embedding-3-large",
					"batch_size": 50,
					"timeout_seconds": 45
				},
				"store": {
					"type": "qdrant",
					"address": "qdrant:6334",
					"api_key": "qdrant-key",
					"timeout_seconds": 60,
					"default_collection": "my_docs"
				},
				"web_search": {
					"enabled": true,
					"endpoint": "https://search.example.com",
					"api_key": "search-key",
					"max_results": 5
				},
				"workflow": {
					"max_subtasks": 8,
					"max_retries": 2,
					"top_k": 20,
					"rrf_k": 60,
					"semantic_weight": 0.6,
					"keyword_weight": 0.4,
					"web_fallback_threshold": 3,
					"threshold_hallucination": 0.8,
					"threshold_grade": 0.65,
					"routing_enabled": true,
					"web_enabled": true,
					"turn_deadline_seconds": 90
				}
			}`,
			wantErr: false,
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.DefaultTemperature != 0.8 {
					t.Errorf("expected temperature 0.8, got %f", c.LLM.ReasoningLLM.DefaultTemperature)
				}
				if c.Embedding.BatchSize != 50 {
					t.Errorf("expected batch size 50, got %d", c.Embedding.BatchSize)
				}
				if c.Workflow.MaxSubtasks != 8 {
					t.Errorf("expected max subtasks 8, got %d", c.Workflow.MaxSubtasks)
				}
				if c.WebSearch == nil {
					t.Error("expected web search config, got nil")
				} else if !c.WebSearch.Enabled {
					t.Error("expected web search enabled")
				}
			},
		},
		{
			name:    "invalid JSON",
			content: `{invalid json}`,
			wantErr: true,
		},
		{
			name:    "empty file",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			tmpFile := filepath.Join(tmpDir, "config.json")

			if err := os.WriteFile(tmpFile, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write test file: %v", err)
			}

			config, err := LoadFromFile(tmpFile)

			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if config == nil {
				t.Fatal("expected config, got nil")
			}

			if tt.validate != nil {
				tt.validate(t, config)
			}
		})
	}
}

// TestLoadFromFile_MissingFile tests loading from non-existent file.
func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.json")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

// TestLoadFromEnv tests loading configuration from environment variables.
func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name:    "default values with no env vars",
			envVars: map[string]string{},
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.Provider != "openai" {
					t.Errorf("expected default provider openai, got %s", c.LLM.ReasoningLLM.Provider)
				}
				if c.LLM.ReasoningLLM.Model != "gpt-4o" {
					t.Errorf("expected default model gpt-4o, got %s", c.LLM.ReasoningLLM.Model)
				}
				if c.LLM.FastLLM.Model != "gpt-4o-mini" {
					t.Errorf("expected default fast model gpt-4o-mini, got %s", c.LLM.FastLLM.Model)
				}
				if c.Embedding.Model != "text-embedding-3-small" {
					t.Errorf("expected default embedding model, got %s", c.Embedding.Model)
				}
				if c.Store.Type != "qdrant" {
					t.Errorf("expected default store qdrant, got %s", c.Store.Type)
				}
				if c.Store.Address != "localhost:6334" {
					t.Errorf("expected default address localhost:6334, got %s", c.Store.Address)
				}
				if c.Workflow.MaxSubtasks != 5 {
					t.Errorf("expected default max subtasks 5, got %d", c.Workflow.MaxSubtasks)
				}
			},
		},
		{
			name: "custom env vars",
			envVars: map[string]string{
				"REASONING_LLM_PROVIDER": "anthropic",
				"REASONING_LLM_API_KEY":  "test-key-reasoning",
				"REASONING_LLM_MODEL":    "claude-3-5-sonnet-20241022",
				"FAST_LLM_PROVIDER":      "openai",
				"FAST_LLM_API_KEY":       "test-key-fast",
				"FAST_LLM_MODEL":         "gpt-5-mini",
				"EMBEDDING_PROVIDER":     "openai",
				"EMBEDDING_API_KEY":      "test-key-embed",
				"EMBEDDING_MODEL":        "text-embedding-3-large",
				"STORE_TYPE":             "chromem",
				"STORE_ADDRESS":          "./data/chromem",
				"STORE_COLLECTION":       "custom_docs",
			},
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.Provider != "anthropic" {
					t.Errorf("expected provider anthropic, got %s", c.LLM.ReasoningLLM.Provider)
				}
				if c.LLM.ReasoningLLM.APIKey != "test-key-reasoning" {
					t.Errorf("expected reasoning API key, got %s", c.LLM.ReasoningLLM.APIKey)
				}
				if c.LLM.FastLLM.APIKey != "test-key-fast" {
					t.Errorf("expected fast API key, got %s", c.LLM.FastLLM.APIKey)
				}
				if c.Store.Type != "chromem" {
					t.Errorf("expected store type chromem, got %s", c.Store.Type)
				}
				if c.Store.DefaultCollection != "custom_docs" {
					t.Errorf("expected collection custom_docs, got %s", c.Store.DefaultCollection)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnv := make(map[string]string)
			envKeys := []string{
				"REASONING_LLM_PROVIDER", "REASONING_LLM_API_KEY", "REASONING_LLM_MODEL",
				"FAST_LLM_PROVIDER", "FAST_LLM_API_KEY", "FAST_LLM_MODEL",
				"EMBEDDING_PROVIDER", "EMBEDDING_API_KEY", "EMBEDDING_MODEL",
				"STORE_TYPE", "STORE_ADDRESS", "STORE_COLLECTION",
			}
			for _, key := range envKeys {
				oldEnv[key] = os.Getenv(key)
				os.Unsetenv(key)
			}
			defer func() {
				for key, val := range oldEnv {
					if val != "" {
						os.Setenv(key, val)
					} else {
						os.Unsetenv(key)
					}
				}
			}()

			for key, val := range tt.envVars {
				os.Setenv(key, val)
			}

			config := LoadFromEnv()

			if config == nil {
				t.Fatal("expected config, got nil")
			}

			if tt.validate != nil {
				tt.validate(t, config)
			}
		})
	}
}

// TestLoadFromEnv_EnvFiles verifies that .env files populate configuration
// values when environment variables are otherwise unset.
func TestLoadFromEnv_EnvFiles(t *testing.T) {
	tmpDir := t.TempDir()

	envKeys := []string{
		"REASONING_LLM_PROVIDER",
		"REASONING_LLM_API_KEY",
		"REASONING_LLM_MODEL",
		"FAST_LLM_PROVIDER",
		"FAST_LLM_API_KEY",
		"FAST_LLM_MODEL",
		"EMBEDDING_PROVIDER",
		"EMBEDDING_API_KEY",
		"EMBEDDING_MODEL",
		"STORE_TYPE",
		"STORE_ADDRESS",
		"STORE_COLLECTION",
	}

	for _, key := range envKeys {
		t.Setenv(key, "")
	}

	envContent := "REASONING_LLM_PROVIDER=openai\nREASONING_LLM_API_KEY=base-key\nFAST_LLM_PROVIDER=openai\nFAST_LLM_API_KEY=base-key\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(envContent), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	localContent := "REASONING_LLM_PROVIDER=anthropic\nREASONING_LLM_API_KEY=local-key\nFAST_LLM_PROVIDER=anthropic\nFAST_LLM_API_KEY=local-key\nEMBEDDING_PROVIDER=openai\nEMBEDDING_API_KEY=embed-key\nEMBEDDING_MODEL=text-embedding-3-large\nSTORE_TYPE=chromem\nSTORE_ADDRESS=./data/chromem\nSTORE_COLLECTION=custom_docs\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env.local"), []byte(localContent), 0o600); err != nil {
		t.Fatalf("failed to write .env.local: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	defer func() {
		_ = os.Chdir(wd)
	}()

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}

	cfg := LoadFromEnv()

	if cfg.LLM.ReasoningLLM.Provider != "anthropic" {
		t.Fatalf("expected reasoning provider from .env.local, got %s", cfg.LLM.ReasoningLLM.Provider)
	}
	if cfg.LLM.ReasoningLLM.APIKey != "local-key" {
		t.Fatalf("expected reasoning API key from .env.local, got %s", cfg.LLM.ReasoningLLM.APIKey)
	}
	if cfg.LLM.FastLLM.Provider != "anthropic" {
		t.Fatalf("expected fast provider from .env.local, got %s", cfg.LLM.FastLLM.Provider)
	}
	if cfg.Embedding.APIKey != "embed-key" {
		t.Fatalf("expected embedding API key from .env.local, got %s", cfg.Embedding.APIKey)
	}
	if cfg.Store.Type != "chromem" {
		t.Fatalf("expected store type from .env.local, got %s", cfg.Store.Type)
	}
	if cfg.Store.Address != "./data/chromem" {
		t.Fatalf("expected store address from .env.local, got %s", cfg.Store.Address)
	}
	if cfg.Store.DefaultCollection != "custom_docs" {
		t.Fatalf("expected store collection from .env.local, got %s", cfg.Store.DefaultCollection)
	}
}

// TestSaveToFile tests saving configuration to a JSON file.
func TestSaveToFile(t *testing.T) {
	config := &Config{
		LLM: LLMConfig{
			ReasoningLLM: LLMProviderConfig{
				Provider:           "openai",
				Model:              "gpt-5",
				DefaultTemperature: 0.7,
				DefaultMaxTokens:   2048,
				TimeoutSeconds:     60,
			},
			FastLLM: LLMProviderConfig{
				Provider:           "openai",
				Model:              "gpt-5-mini",
				DefaultTemperature: 0.5,
				DefaultMaxTokens:   1024,
				TimeoutSeconds:     30,
			},
		},
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			Model:          "text-embedding-3-small",
			BatchSize:      100,
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Type:              "qdrant",
			Address:           "localhost:6334",
			DefaultCollection: "documents",
			TimeoutSeconds:    30,
		},
		Workflow: WorkflowConfig{
			MaxSubtasks:            5,
			MaxRetries:             3,
			TopK:                   10,
			RRFK:                   60,
			SemanticWeight:         0.5,
			KeywordWeight:          0.5,
			WebFallbackThreshold:   3,
			ThresholdHallucination: 0.7,
			ThresholdGrade:         0.6,
			TurnDeadlineSeconds:    60,
		},
	}

	t.Run("successful save", func(t *testing.T) {
		tmpDir := t.TempDir()
		tmpFile := filepath.Join(tmpDir, "config.json")

		if err := config.SaveToFile(tmpFile); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		data, err := os.ReadFile(tmpFile)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}

		var loaded Config
		if err := json.Unmarshal(data, &loaded); err != nil {
			t.Fatalf("failed to unmarshal saved config: %v", err)
		}

		if loaded.LLM.ReasoningLLM.Provider != "openai" {
			t.Errorf("expected provider openai, got %s", loaded.LLM.ReasoningLLM.Provider)
		}
		if loaded.Workflow.MaxSubtasks != 5 {
			t.Errorf("expected max subtasks 5, got %d", loaded.Workflow.MaxSubtasks)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		err := config.SaveToFile("/nonexistent/dir/config.json")
		if err == nil {
			t.Error("expected error for invalid path, got nil")
		}
	})
}

// TestToLLMConfig tests conversion to LLM config.
func TestToLLMConfig(t *testing.T) {
	config := &Config{
		LLM: LLMConfig{
			ReasoningLLM: LLMProviderConfig{
				Provider:           "openai",
				APIKey:             "test-key",
				BaseURL:            "https://api.openai.com",
				Model:              "gpt-5",
				DefaultTemperature: 0.8,
				DefaultMaxTokens:   3000,
				TimeoutSeconds:     90,
			},
		},
	}

	llmConfig := config.ToLLMConfig()

	if llmConfig.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", llmConfig.Provider)
	}
	if llmConfig.APIKey != "test-key" {
		t.Errorf("expected API key test-key, got %s", llmConfig.APIKey)
	}
	if llmConfig.Model != "gpt-5" {
		t.Errorf("expected model gpt-5, got %s", llmConfig.Model)
	}
	if llmConfig.DefaultTemperature != 0.8 {
		t.Errorf("expected temperature 0.8, got %f", llmConfig.DefaultTemperature)
	}
	if llmConfig.DefaultMaxTokens != 3000 {
		t.Errorf("expected max tokens 3000, got %d", llmConfig.DefaultMaxTokens)
	}
}

// TestToFastLLMConfig tests conversion to fast LLM config.
func TestToFastLLMConfig(t *testing.T) {
	config := &Config{
		LLM: LLMConfig{
			FastLLM: LLMProviderConfig{
				Provider:           "anthropic",
				APIKey:             "fast-key",
				Model:              "claude-3-5-haiku-20241022",
				DefaultTemperature: 0.3,
				DefaultMaxTokens:   1000,
				TimeoutSeconds:     20,
			},
		},
	}

	llmConfig := config.ToFastLLMConfig()

	if llmConfig.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", llmConfig.Provider)
	}
	if llmConfig.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("expected model claude-3-5-haiku-20241022, got %s", llmConfig.Model)
	}
	if llmConfig.DefaultTemperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %f", llmConfig.DefaultTemperature)
	}
}

// TestToEmbeddingConfig tests conversion to embedding config.
func TestToEmbeddingConfig(t *testing.T) {
	config := &Config{
		Embedding: EmbeddingConfig{
			Provider:       "openai",
			APIKey:         "embed-key",
			BaseURL:        "https://api.openai.com",
			Model:          "text-embedding-3-large",
			BatchSize:      50,
			TimeoutSeconds: 45,
		},
	}

	embedConfig := config.ToEmbeddingConfig()

	if embedConfig.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", embedConfig.Provider)
	}
	if embedConfig.Model != "text-embedding-3-large" {
		t.Errorf("expected model text-embedding-3-large, got %s", embedConfig.Model)
	}
	if embedConfig.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", embedConfig.BatchSize)
	}
}

// TestToRunOptions tests conversion of WorkflowConfig to workflow.RunOptions.
func TestToRunOptions(t *testing.T) {
	wf := WorkflowConfig{
		MaxSubtasks:            7,
		MaxRetries:             2,
		TopK:                   15,
		RRFK:                   50,
		SemanticWeight:         0.6,
		KeywordWeight:          0.4,
		WebFallbackThreshold:   2,
		ThresholdHallucination: 0.75,
		ThresholdGrade:         0.65,
		RoutingEnabled:         true,
		WebEnabled:             true,
		TurnDeadlineSeconds:    45,
	}

	opts := wf.ToRunOptions()

	if opts.MaxSubtasks != 7 {
		t.Errorf("expected max subtasks 7, got %d", opts.MaxSubtasks)
	}
	if opts.TopK != 15 {
		t.Errorf("expected top k 15, got %d", opts.TopK)
	}
	if !opts.WebEnabled {
		t.Error("expected web enabled")
	}
	if opts.TurnDeadline.Seconds() != 45 {
		t.Errorf("expected turn deadline 45s, got %v", opts.TurnDeadline)
	}
}

// TestApplyDefaults tests the default value application logic.
func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		validate func(*testing.T, *Config)
	}{
		{
			name: "empty config gets all defaults",
			config: &Config{
				LLM: LLMConfig{
					ReasoningLLM: LLMProviderConfig{Provider: "openai"},
					FastLLM:      LLMProviderConfig{Provider: "openai"},
				},
				Embedding: EmbeddingConfig{},
				Store:     StoreConfig{},
				Workflow:  WorkflowConfig{},
			},
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.DefaultMaxTokens != 2048 {
					t.Errorf("expected default max tokens 2048, got %d", c.LLM.ReasoningLLM.DefaultMaxTokens)
				}
				if c.LLM.FastLLM.DefaultMaxTokens != 1024 {
					t.Errorf("expected fast default max tokens 1024, got %d", c.LLM.FastLLM.DefaultMaxTokens)
				}

				if c.Embedding.BatchSize != 100 {
					t.Errorf("expected batch size 100, got %d", c.Embedding.BatchSize)
				}
				if c.Embedding.TimeoutSeconds != 30 {
					t.Errorf("expected timeout 30, got %d", c.Embedding.TimeoutSeconds)
				}

				if c.Store.DefaultCollection != "documents" {
					t.Errorf("expected collection documents, got %s", c.Store.DefaultCollection)
				}

				if c.Workflow.MaxSubtasks != 5 {
					t.Errorf("expected max subtasks 5, got %d", c.Workflow.MaxSubtasks)
				}
				if c.Workflow.ThresholdGrade != 0.6 {
					t.Errorf("expected threshold grade 0.6, got %f", c.Workflow.ThresholdGrade)
				}
			},
		},
		{
			name: "custom values not overridden",
			config: &Config{
				LLM: LLMConfig{
					ReasoningLLM: LLMProviderConfig{
						DefaultTemperature: 0.9,
						DefaultMaxTokens:   4000,
						TimeoutSeconds:     120,
					},
					FastLLM: LLMProviderConfig{
						DefaultTemperature: 0.2,
						DefaultMaxTokens:   500,
						TimeoutSeconds:     15,
					},
				},
				Embedding: EmbeddingConfig{
					BatchSize:      200,
					TimeoutSeconds: 60,
				},
				Store: StoreConfig{
					DefaultCollection: "custom",
					TimeoutSeconds:    90,
				},
				Workflow: WorkflowConfig{
					MaxSubtasks: 20,
					TopK:        30,
				},
			},
			validate: func(t *testing.T, c *Config) {
				if c.LLM.ReasoningLLM.DefaultTemperature != 0.9 {
					t.Errorf("custom temperature was overridden")
				}
				if c.Embedding.BatchSize != 200 {
					t.Errorf("custom batch size was overridden")
				}
				if c.Workflow.MaxSubtasks != 20 {
					t.Errorf("custom max subtasks was overridden")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applyDefaults(tt.config)
			if tt.validate != nil {
				tt.validate(t, tt.config)
			}
		})
	}
}

// TestGetEnv tests the environment variable retrieval helper.
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		expected     string
	}{
		{
			name:         "env var set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			expected:     "custom",
		},
		{
			name:         "env var not set",
			key:          "UNSET_VAR",
			defaultValue: "default",
			envValue:     "",
			expected:     "default",
		},
		{
			name:         "empty default",
			key:          "ANOTHER_UNSET",
			defaultValue: "",
			envValue:     "",
			expected:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := os.Getenv(tt.key)
			defer func() {
				if orig != "" {
					os.Setenv(tt.key, orig)
				} else {
					os.Unsetenv(tt.key)
				}
			}()

			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			result := getEnv(tt.key, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

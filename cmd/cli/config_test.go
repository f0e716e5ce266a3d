// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package main

import (
	"testing"

	"github.com/aiteam0/rag-lab/cmd/common"
)

func validWorkflowConfig() common.WorkflowConfig {
	return common.WorkflowConfig{
		MaxSubtasks:            5,
		MaxRetries:             3,
		TopK:                   10,
		RRFK:                   60,
		SemanticWeight:         0.5,
		KeywordWeight:          0.5,
		WebFallbackThreshold:   2,
		ThresholdHallucination: 0.7,
		ThresholdGrade:         0.6,
		TurnDeadlineSeconds:    30,
	}
}

func TestValidateWorkflowConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(w *common.WorkflowConfig)
		wantError string
	}{
		{
			name:   "valid config",
			mutate: func(w *common.WorkflowConfig) {},
		},
		{
			name:      "non-positive max_subtasks",
			mutate:    func(w *common.WorkflowConfig) { w.MaxSubtasks = 0 },
			wantError: "workflow.max_subtasks must be positive",
		},
		{
			name:      "negative max_retries",
			mutate:    func(w *common.WorkflowConfig) { w.MaxRetries = -1 },
			wantError: "workflow.max_retries must not be negative",
		},
		{
			name:      "non-positive top_k",
			mutate:    func(w *common.WorkflowConfig) { w.TopK = 0 },
			wantError: "workflow.top_k must be positive",
		},
		{
			name:      "non-positive rrf_k",
			mutate:    func(w *common.WorkflowConfig) { w.RRFK = -5 },
			wantError: "workflow.rrf_k must be positive",
		},
		{
			name:      "semantic_weight out of range",
			mutate:    func(w *common.WorkflowConfig) { w.SemanticWeight = 1.5 },
			wantError: "workflow.semantic_weight must be between 0 and 1",
		},
		{
			name:      "keyword_weight out of range",
			mutate:    func(w *common.WorkflowConfig) { w.KeywordWeight = -0.1 },
			wantError: "workflow.keyword_weight must be between 0 and 1",
		},
		{
			name:      "negative web_fallback_threshold",
			mutate:    func(w *common.WorkflowConfig) { w.WebFallbackThreshold = -1 },
			wantError: "workflow.web_fallback_threshold must not be negative",
		},
		{
			name:      "threshold_hallucination out of range",
			mutate:    func(w *common.WorkflowConfig) { w.ThresholdHallucination = 1.2 },
			wantError: "workflow.threshold_hallucination must be between 0 and 1",
		},
		{
			name:      "threshold_grade out of range",
			mutate:    func(w *common.WorkflowConfig) { w.ThresholdGrade = -0.3 },
			wantError: "workflow.threshold_grade must be between 0 and 1",
		},
		{
			name:      "non-positive turn_deadline_seconds",
			mutate:    func(w *common.WorkflowConfig) { w.TurnDeadlineSeconds = 0 },
			wantError: "workflow.turn_deadline_seconds must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validWorkflowConfig()
			tt.mutate(&w)

			errs := validateWorkflowConfig(w)

			if tt.wantError == "" {
				if len(errs) != 0 {
					t.Fatalf("expected no errors, got %v", errs)
				}
				return
			}

			found := false
			for _, e := range errs {
				if e == tt.wantError {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("expected error %q, got %v", tt.wantError, errs)
			}
		})
	}
}

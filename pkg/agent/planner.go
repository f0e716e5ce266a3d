// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/workflow"

	"github.com/google/uuid"
)

// Planner decomposes a query into an ordered list of subtasks.
type Planner struct {
	llm         llm.Provider
	temperature float32
	maxSubtasks int
}

// PlannerConfig contains configuration for the planner agent.
type PlannerConfig struct {
	Temperature float32
	MaxSubtasks int // spec §4.3: N <= 5 by configuration
}

// NewPlanner creates a new planner agent.
func NewPlanner(llmProvider llm.Provider, config *PlannerConfig) *Planner {
	if config == nil {
		config = &PlannerConfig{Temperature: 0.7, MaxSubtasks: 5}
	}
	if config.MaxSubtasks <= 0 {
		config.MaxSubtasks = 5
	}
	return &Planner{llm: llmProvider, temperature: config.Temperature, maxSubtasks: config.MaxSubtasks}
}

// Plan decomposes question into 1..maxSubtasks ordered subtasks (spec §4.3).
// Ordering invariants enforced after parsing: dependencies reference only
// strictly lower indices (forward references are dropped), redundant
// subtasks are collapsed, and the list is capped to maxSubtasks. On any
// model failure, Plan falls back to a single subtask equal to question.
func (p *Planner) Plan(ctx context.Context, question string, deadline time.Time) ([]workflow.Subtask, error) {
	prompt := p.buildPlanningPrompt(question)

	var dl time.Time
	if !deadline.IsZero() {
		dl = deadline
	}
	resp, err := llm.Generate(ctx, p.llm, systemPromptPlanner+"\n\n"+prompt, p.temperature, dl)
	if err != nil {
		return p.fallbackPlan(question), nil
	}

	subtasks, err := p.parsePlanResponse(resp)
	if err != nil || len(subtasks) == 0 {
		return p.fallbackPlan(question), nil
	}

	subtasks = collapseRedundant(subtasks)
	subtasks = enforceForwardOnlyDependencies(subtasks)
	if len(subtasks) > p.maxSubtasks {
		subtasks = subtasks[:p.maxSubtasks]
	}
	return subtasks, nil
}

func (p *Planner) fallbackPlan(question string) []workflow.Subtask {
	return []workflow.Subtask{{
		ID:       uuid.New().String(),
		Query:    question,
		Priority: 3,
		Status:   workflow.SubtaskPending,
	}}
}

func (p *Planner) buildPlanningPrompt(question string) string {
	return fmt.Sprintf(`Decompose the following question into an ordered list of sub-tasks.

Question: %s

Create 1-%d sub-tasks. Each sub-task should:
1. Focus on one specific sub-question
2. Have a priority from 1 (low) to 5 (high)
3. List the indices of any earlier sub-tasks it logically depends on

If the question is atomic and cannot usefully be decomposed, return exactly one sub-task equal to the original question.
If two sub-tasks would be redundant, merge them into one.

CRITICAL: Respond with ONLY valid JSON. Do not add markdown, explanations, or extra text.

JSON SCHEMA REQUIREMENTS:
- "dependencies" MUST be an array of integers: [0, 1, 2]
- Use empty array [] if no dependencies (NEVER use null, {}, or empty string)
- Each dependency is a sub-task index (integer) that must complete first

Respond with valid JSON in this EXACT format:
{
  "subtasks": [
    {
      "index": 0,
      "query": "focused sub-question",
      "priority": 3,
      "dependencies": []
    }
  ]
}`, question, p.maxSubtasks)
}

type subtaskJSON struct {
	Index        int             `json:"index"`
	Query        string          `json:"query"`
	Priority     int             `json:"priority"`
	Dependencies json.RawMessage `json:"dependencies"`
}

func (p *Planner) parsePlanResponse(response string) ([]workflow.Subtask, error) {
	jsonStart := strings.Index(response, "{")
	jsonEnd := strings.LastIndex(response, "}")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd < jsonStart {
		return nil, fmt.Errorf("no JSON found in planner response")
	}

	var parsed struct {
		Subtasks []subtaskJSON `json:"subtasks"`
	}
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse planner JSON: %w", err)
	}

	subtasks := make([]workflow.Subtask, len(parsed.Subtasks))
	byIndex := make([]string, len(parsed.Subtasks))
	for i, s := range parsed.Subtasks {
		id := uuid.New().String()
		byIndex[i] = id
		priority := s.Priority
		if priority < 1 {
			priority = 1
		}
		if priority > 5 {
			priority = 5
		}
		subtasks[i] = workflow.Subtask{
			ID:       id,
			Query:    s.Query,
			Priority: priority,
			Status:   workflow.SubtaskPending,
		}
	}

	for i, s := range parsed.Subtasks {
		deps, err := parseDependencies(s.Dependencies)
		if err != nil {
			deps = []int{}
		}
		for _, depIdx := range deps {
			if depIdx >= 0 && depIdx < len(byIndex) && depIdx != i {
				subtasks[i].Dependencies = append(subtasks[i].Dependencies, byIndex[depIdx])
			}
		}
	}

	return subtasks, nil
}

// collapseRedundant merges subtasks whose query is a case-insensitive
// duplicate of an earlier one (spec §4.3: "if a subtask is purely
// redundant with another, the planner must collapse it").
func collapseRedundant(subtasks []workflow.Subtask) []workflow.Subtask {
	seen := make(map[string]bool)
	out := make([]workflow.Subtask, 0, len(subtasks))
	for _, s := range subtasks {
		key := strings.ToLower(strings.TrimSpace(s.Query))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// enforceForwardOnlyDependencies drops any dependency id that does not
// correspond to a strictly-earlier subtask, guaranteeing the invariant
// "a subtask's dependencies appear at strictly lower indices; no cycles".
func enforceForwardOnlyDependencies(subtasks []workflow.Subtask) []workflow.Subtask {
	validIDs := make(map[string]bool)
	for i := range subtasks {
		var kept []string
		for _, dep := range subtasks[i].Dependencies {
			if validIDs[dep] {
				kept = append(kept, dep)
			}
		}
		subtasks[i].Dependencies = kept
		validIDs[subtasks[i].ID] = true
	}
	return subtasks
}

// parseDependencies converts various JSON shapes different model providers
// emit for a "dependencies" field into []int. Directly reused from the
// original planner's tolerant-parsing chain, which already handled the
// cross-provider format drift this design still needs.
func parseDependencies(raw json.RawMessage) ([]int, error) {
	if len(raw) == 0 {
		return []int{}, nil
	}
	rawStr := string(raw)
	if rawStr == "null" {
		return []int{}, nil
	}

	var arr []int
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if len(obj) == 0 {
			return []int{}, nil
		}
		if indices, ok := obj["indices"]; ok {
			if ifaceArr, ok := indices.([]interface{}); ok {
				return parseInterfaceArray(ifaceArr), nil
			}
		}
		return extractDepsFromMap(obj), nil
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return parseArrayString(str), nil
	}

	return []int{}, nil
}

func parseInterfaceArray(arr []interface{}) []int {
	result := make([]int, 0, len(arr))
	for _, v := range arr {
		switch val := v.(type) {
		case float64:
			result = append(result, int(val))
		case int:
			result = append(result, val)
		case string:
			var num int
			if _, err := fmt.Sscanf(val, "%d", &num); err == nil {
				result = append(result, num)
			}
		}
	}
	return result
}

func extractDepsFromMap(obj map[string]interface{}) []int {
	result := []int{}
	for _, v := range obj {
		if arr, ok := v.([]interface{}); ok {
			result = append(result, parseInterfaceArray(arr)...)
		}
	}
	return result
}

func parseArrayString(str string) []int {
	str = strings.TrimSpace(str)
	if !strings.HasPrefix(str, "[") || !strings.HasSuffix(str, "]") {
		return []int{}
	}
	var arr []int
	if err := json.Unmarshal([]byte(str), &arr); err != nil {
		return []int{}
	}
	return arr
}

const systemPromptPlanner = `You are an expert query planner for a retrieval-augmented answering system.

Your task is to decompose a question into an ordered list of focused sub-tasks.

Guidelines:
- Prefer 1 sub-task for atomic questions; use up to the configured maximum for multi-hop questions
- Each sub-task should have a clear, focused query
- Assign a priority 1-5 reflecting how central the sub-task is to answering the question
- List dependencies as indices of earlier sub-tasks whose results this one needs
- Never introduce a dependency cycle
- Collapse sub-tasks that would be redundant with one another

Always respond with valid JSON matching the requested format.`

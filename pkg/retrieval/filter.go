// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrieval

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aiteam0/rag-lab/pkg/llm"
	"github.com/aiteam0/rag-lab/pkg/store"
)

// ExtractionHint is the structured hint the subtask executor's extraction
// step (pkg/agent/extraction.go) derives from a subtask query: mentioned
// pages, mentioned categories, entity-type references, and salient
// keywords (spec §4.4 step 3). It lives here, not in pkg/agent, so the
// filter generator can depend on its shape without pkg/retrieval importing
// pkg/agent.
type ExtractionHint struct {
	MentionedPages      []int
	MentionedCategories []store.Category
	EntityTypeRef       string // set only when an entity type is explicitly named
	Keywords            []string
	MentionsDocumentArtifact bool // true if the query names a document artifact ("manual", "guide", "document", ...)
}

// FilterGeneratorConfig tunes the dynamic filter generator.
type FilterGeneratorConfig struct {
	Temperature float32 // spec requires near-zero temperature to minimize stochasticity
	// AggressiveEntityMatch resolves the Open Question in spec.md §9 about
	// how aggressively to emit entity filters when the type is named but
	// extraction confidence is uncertain. Default false (conservative).
	// GenerateFilter does not read this field; setting it has no effect.
	AggressiveEntityMatch bool
}

type filterModelResponse struct {
	Sources             []string `json:"sources"`
	Pages               []int    `json:"pages"`
	Categories          []string `json:"categories"`
	CaptionContains     string   `json:"caption_contains"`
	EntityType          string   `json:"entity_type"`
	EntityKeywords       []string `json:"entity_keywords"`
	EntityTitleContains string   `json:"entity_title_contains"`
}

var filterSchema = llm.Schema{
	Name:        "dynamic_filter",
	Description: "A maximally-empty document filter derived from a query",
	JSON: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sources":                map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"pages":                  map[string]interface{}{"type": "array", "items": map[string]string{"type": "integer"}},
			"categories":             map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"caption_contains":       map[string]interface{}{"type": "string"},
			"entity_type":            map[string]interface{}{"type": "string"},
			"entity_keywords":        map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
			"entity_title_contains":  map[string]interface{}{"type": "string"},
		},
	},
}

// GenerateFilter derives a store.Filter per spec §4.5: a schema-constrained
// model call followed by validation against live metadata (unknown
// sources/pages/categories/entity-types are dropped), with a deterministic
// override that re-adds a clearly-named, live entity type even if the
// model's result ends up empty after validation.
func GenerateFilter(ctx context.Context, provider llm.Provider, query string, hint ExtractionHint, snapshot store.MetadataSnapshot, cfg FilterGeneratorConfig, deadline time.Time) (store.Filter, error) {
	prompt := buildFilterPrompt(query, hint, snapshot)

	resp, err := llm.GenerateStructured[filterModelResponse](ctx, provider, prompt, filterSchema, cfg.Temperature, deadline)
	if err != nil {
		// on model failure, the conservative fallback is the empty filter;
		// the deterministic override below still applies.
		resp = filterModelResponse{}
	}

	filter := validateFilter(resp, hint, snapshot)

	if filter.IsEmpty() && hint.EntityTypeRef != "" && containsString(snapshot.EntityTypes, hint.EntityTypeRef) {
		filter.Entity = &store.EntityFilter{Types: []string{hint.EntityTypeRef}}
	}

	return filter, nil
}

func buildFilterPrompt(query string, hint ExtractionHint, snapshot store.MetadataSnapshot) string {
	return "Derive a maximally-empty document filter for this query. Add a predicate only when there is strong textual evidence.\n" +
		"Query: " + query + "\n" +
		"Known sources: " + joinStrings(snapshot.Sources) + "\n" +
		"Known categories: " + joinCategories(snapshot.Categories) + "\n" +
		"Known entity types: " + joinStrings(snapshot.EntityTypes) + "\n" +
		"Page range: " + strconv.Itoa(snapshot.PageMin) + "-" + strconv.Itoa(snapshot.PageMax) + "\n" +
		"Extraction hint keywords: " + joinStrings(hint.Keywords)
}

// validateFilter drops any predicate value not present in the live
// metadata snapshot (spec §4.5's post-validation step). A sources
// predicate is further dropped unless the extraction step flagged the
// query as naming a document artifact — a product/model name alone is
// not evidence, so the model's guess is re-checked against that signal too.
func validateFilter(resp filterModelResponse, hint ExtractionHint, snapshot store.MetadataSnapshot) store.Filter {
	var filter store.Filter

	if hint.MentionsDocumentArtifact {
		for _, s := range resp.Sources {
			if containsString(snapshot.Sources, s) {
				filter.Sources = append(filter.Sources, s)
			}
		}
	}

	for _, p := range resp.Pages {
		if p >= snapshot.PageMin && p <= snapshot.PageMax {
			filter.Pages = append(filter.Pages, p)
		}
	}

	for _, c := range resp.Categories {
		for _, known := range snapshot.Categories {
			if string(known) == c {
				filter.Categories = append(filter.Categories, known)
				break
			}
		}
	}

	if resp.CaptionContains != "" {
		filter.CaptionContains = resp.CaptionContains
	}

	if resp.EntityType != "" && containsString(snapshot.EntityTypes, resp.EntityType) {
		filter.Entity = &store.EntityFilter{
			Types:         []string{resp.EntityType},
			Keywords:      resp.EntityKeywords,
			TitleContains: resp.EntityTitleContains,
		}
	}

	return filter
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func joinStrings(ss []string) string {
	return strings.Join(ss, ", ")
}

func joinCategories(cs []store.Category) string {
	ss := make([]string, len(cs))
	for i, c := range cs {
		ss[i] = string(c)
	}
	return joinStrings(ss)
}

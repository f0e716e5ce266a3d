// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aiteam0/rag-lab/pkg/retrieval"
	"github.com/aiteam0/rag-lab/pkg/store"
)

// documentArtifactWords are lexical cues that a query is asking about a
// named document itself (not merely a product or entity it describes),
// gating the filter generator's source predicate (see
// retrieval.ExtractionHint.MentionsDocumentArtifact).
var documentArtifactWords = []string{
	"manual", "guide", "document", "datasheet", "spec sheet", "report",
	"whitepaper", "brochure", "catalog", "handbook",
}

var pagePattern = regexp.MustCompile(`(?i)page\s+(\d+)`)

// extractionStopwords mirrors pkg/retrieval's filter but is kept separate since the
// extraction hint's keyword set feeds the filter generator prompt, not the
// lexical search expression — the two steps are allowed to diverge.
var extractionStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "was": true,
	"are": true, "were": true, "be": true, "this": true, "that": true,
	"what": true, "which": true, "how": true, "does": true, "do": true,
}

// Extractor derives a retrieval.ExtractionHint from a subtask query (spec
// §4.4 step 3): mentioned pages, mentioned categories, an entity-type
// reference when one is named, and salient keywords. It is a deterministic,
// regex/lexicon pass — no model call — grounded on the teacher's
// keyword-extraction idiom (pkg/retrieval/lexical.go's extractKeywords),
// here applied against the live category/entity-type vocabulary instead of
// a fixed list.
type Extractor struct{}

// NewExtractor creates a new extraction-hint derivation agent.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives an ExtractionHint for query against the live metadata
// snapshot's category and entity-type vocabulary.
func (e *Extractor) Extract(query string, snapshot store.MetadataSnapshot) retrieval.ExtractionHint {
	lower := strings.ToLower(query)

	hint := retrieval.ExtractionHint{
		MentionedPages:      extractPages(lower),
		MentionedCategories: extractCategories(lower, snapshot.Categories),
		EntityTypeRef:       extractEntityType(lower, snapshot.EntityTypes),
		Keywords:            extractSalientKeywords(query),
	}
	hint.MentionsDocumentArtifact = mentionsDocumentArtifact(lower)

	return hint
}

func extractPages(lower string) []int {
	var pages []int
	for _, m := range pagePattern.FindAllStringSubmatch(lower, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			pages = append(pages, n)
		}
	}
	return pages
}

func extractCategories(lower string, known []store.Category) []store.Category {
	var matched []store.Category
	for _, c := range known {
		label := strings.ReplaceAll(string(c), "_", " ")
		if strings.Contains(lower, label) {
			matched = append(matched, c)
		}
	}
	return matched
}

// extractEntityType matches a known entity type by substring against the
// query, case-insensitively. Returns "" when no known type is named —
// callers must never guess an entity type outside the live vocabulary.
func extractEntityType(lower string, known []string) string {
	for _, t := range known {
		if t == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t)) {
			return t
		}
	}
	return ""
}

func mentionsDocumentArtifact(lower string) bool {
	for _, w := range documentArtifactWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// extractSalientKeywords returns up to 6 content-bearing tokens from query,
// stopword-filtered and length-gated, preserving first-occurrence order.
func extractSalientKeywords(query string) []string {
	var keywords []string
	seen := map[string]bool{}

	for _, field := range strings.Fields(query) {
		term := strings.ToLower(strings.Trim(field, ".,;:!?\"'()[]"))
		if term == "" || extractionStopwords[term] || len([]rune(term)) <= 2 {
			continue
		}
		if seen[term] {
			continue
		}
		seen[term] = true
		keywords = append(keywords, term)
		if len(keywords) >= 6 {
			break
		}
	}

	return keywords
}

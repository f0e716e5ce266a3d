// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/aiteam0/rag-lab/pkg/store"
)

// englishStopwords filters out function words before keyword extraction, reviving
// the teacher's pkg/retrieval/keyword.go stopword list (previously dead
// code behind an unimplemented Search).
var englishStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "was": true, "are": true, "were": true, "be": true,
	"this": true, "that": true, "these": true, "those": true,
}

var koreanParticles = []string{"은", "는", "이", "가", "을", "를", "의", "에", "에서", "으로", "로", "와", "과", "도"}

// extractKeywords produces at most 4 content keywords from query in the given
// language (spec §4.6); a query with fewer qualifying terms yields fewer,
// possibly none. English extraction approximates POS-aware noun/
// verb/adjective/proper-noun extraction by stopword-filtering tokens of
// length > 2; Korean extraction strips common trailing particles as a
// stand-in for morphological analysis, since no Korean morphological
// analyzer exists anywhere in the retrieved example corpus.
func extractKeywords(query string, language store.Language) []string {
	var raw []string
	for _, field := range strings.Fields(query) {
		raw = append(raw, strings.ToLower(strings.Trim(field, ".,;:!?\"'()[]")))
	}

	var keywords []string
	for _, term := range raw {
		if term == "" {
			continue
		}
		if language == store.LanguageKorean {
			term = stripKoreanParticle(term)
		} else if englishStopwords[term] {
			continue
		}
		if len([]rune(term)) <= 2 {
			continue
		}
		keywords = append(keywords, term)
	}

	if len(keywords) > 4 {
		keywords = keywords[:4]
	}
	return keywords
}

func stripKoreanParticle(term string) string {
	for _, particle := range koreanParticles {
		if strings.HasSuffix(term, particle) && len([]rune(term)) > len([]rune(particle))+1 {
			return strings.TrimSuffix(term, particle)
		}
	}
	return term
}

// buildExpression builds the boolean search expression from keywords per
// spec §4.6: ≤2 keywords are all conjoined; ≥3 keywords conjoin the first
// two and disjoin the rest, e.g. "(a AND b) OR c OR d".
func buildExpression(keywords []string) string {
	switch {
	case len(keywords) == 0:
		return ""
	case len(keywords) <= 2:
		return strings.Join(keywords, " AND ")
	default:
		head := fmt.Sprintf("(%s AND %s)", keywords[0], keywords[1])
		rest := keywords[2:]
		return strings.Join(append([]string{head}, rest...), " OR ")
	}
}

// DetectLanguage classifies text as korean or english using a
// deterministic script-ratio heuristic: if any Hangul syllable is
// present, the text is Korean. This is the fallback path spec §4.4
// describes ("deterministic script-ratio heuristic") used when no model
// call is made for language detection.
func DetectLanguage(text string) store.Language {
	for _, r := range text {
		if unicode.In(r, unicode.Hangul) {
			return store.LanguageKorean
		}
	}
	return store.LanguageEnglish
}

// lexicalSearch tokenizes query in language, builds the boolean
// expression, and runs Store.LexicalSearch with retry.
func lexicalSearch(ctx context.Context, st store.Store, query string, language store.Language, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	keywords := extractKeywords(query, language)
	if len(keywords) == 0 {
		return nil, nil
	}
	expression := buildExpression(keywords)

	docs, err := withRetry(ctx, func() ([]store.RankedDocument, error) {
		return st.LexicalSearch(ctx, language, expression, filter, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}
	return docs, nil
}

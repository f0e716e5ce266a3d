// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package memory implements store.Store entirely in process memory. It
// exists to make the retrieval core testable without a live backend (see
// Design Notes, "Stateless components with injected interfaces") and to
// serve as a lightweight backend for local demos.
//
// Its BM25 lexical scoring revives code the teacher wrote but never wired
// up: pkg/retrieval/keyword.go computed BM25 scores with a correctly
// shaped formula but KeywordRetriever.Search returned an empty slice
// unconditionally, leaving calculateAvgDocLength/scoreBM25 dead. Here the
// same formula is the store's actual lexical search path.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/aiteam0/rag-lab/pkg/store"
)

const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// embedder computes a dense vector for a document's content at insert time,
// so DenseSearch can score by cosine similarity without a live embedding
// provider. Tests typically supply a deterministic hashing embedder.
type embedder interface {
	Embed(text string) []float32
}

// Store is an in-memory, mutex-guarded implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	docs     map[string]store.Document
	vectors  map[string][]float32
	embedder embedder
}

// New returns an empty in-memory store. If emb is nil, DenseSearch treats
// every document as having a zero vector (similarity 0 for all results) —
// suitable for lexical-only tests.
func New(emb embedder) *Store {
	return &Store{
		docs:     make(map[string]store.Document),
		vectors:  make(map[string][]float32),
		embedder: emb,
	}
}

// Insert adds or replaces a document, computing its dense vector via the
// configured embedder (if any). Not part of store.Store; this is the
// test/demo population path, analogous to cmd/cli's ingest helper.
func (s *Store) Insert(doc store.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	if s.embedder != nil {
		s.vectors[doc.ID] = s.embedder.Embed(doc.Content)
	}
}

func (s *Store) DenseSearch(ctx context.Context, language store.Language, embedding []float32, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		doc store.Document
		sim float32
	}
	var candidates []scored
	for id, doc := range s.docs {
		if !matches(doc, filter) {
			continue
		}
		sim := cosine(embedding, s.vectors[id])
		candidates = append(candidates, scored{doc: doc, sim: sim})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].sim > candidates[j].sim })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]store.RankedDocument, len(candidates))
	for i, c := range candidates {
		d := c.doc
		d.Similarity = c.sim
		out[i] = store.RankedDocument{Document: d, Rank: i + 1}
	}
	return out, nil
}

func (s *Store) LexicalSearch(ctx context.Context, language store.Language, expression string, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queryTerms := evaluableTerms(expression)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	var pool []store.Document
	for _, doc := range s.docs {
		if matches(doc, filter) {
			pool = append(pool, doc)
		}
	}
	avgLen := avgDocLength(pool)
	docFreq := documentFrequency(pool)

	type scored struct {
		doc   store.Document
		score float64
	}
	var candidates []scored
	for _, doc := range pool {
		if !satisfiesExpression(expression, tokenize(doc.Content)) {
			continue
		}
		score := scoreBM25(queryTerms, doc.Content, avgLen, len(pool), docFreq)
		candidates = append(candidates, scored{doc: doc, score: score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]store.RankedDocument, len(candidates))
	for i, c := range candidates {
		out[i] = store.RankedDocument{Document: c.doc, Rank: i + 1}
	}
	return out, nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.Document{}, errNotFound(id)
	}
	return doc, nil
}

func (s *Store) GetMetadata(ctx context.Context) (store.MetadataSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sources := make(map[string]bool)
	categories := make(map[store.Category]bool)
	entityTypes := make(map[string]bool)
	snap := store.MetadataSnapshot{}
	first := true

	for _, doc := range s.docs {
		if doc.Metadata.Source != "" {
			sources[doc.Metadata.Source] = true
		}
		categories[doc.Metadata.Category] = true
		if doc.Metadata.Entity != nil && doc.Metadata.Entity.Type != "" {
			entityTypes[doc.Metadata.Entity.Type] = true
		}
		if first {
			snap.PageMin, snap.PageMax = doc.Metadata.Page, doc.Metadata.Page
			first = false
		} else if doc.Metadata.Page < snap.PageMin {
			snap.PageMin = doc.Metadata.Page
		} else if doc.Metadata.Page > snap.PageMax {
			snap.PageMax = doc.Metadata.Page
		}
	}
	for k := range sources {
		snap.Sources = append(snap.Sources, k)
	}
	for k := range categories {
		snap.Categories = append(snap.Categories, k)
	}
	for k := range entityTypes {
		snap.EntityTypes = append(snap.EntityTypes, k)
	}
	return snap, nil
}

func (s *Store) Close() error { return nil }
func (s *Store) Name() string { return "memory" }

type notFoundError string

func errNotFound(id string) error { return notFoundError(id) }
func (e notFoundError) Error() string { return "document not found: " + string(e) }

func matches(doc store.Document, filter store.Filter) bool {
	if len(filter.Sources) > 0 && !containsStr(filter.Sources, doc.Metadata.Source) {
		return false
	}
	if len(filter.Pages) > 0 && !containsInt(filter.Pages, doc.Metadata.Page) {
		return false
	}
	if len(filter.Categories) > 0 && !containsCategory(filter.Categories, doc.Metadata.Category) {
		return false
	}
	if filter.CaptionContains != "" && !strings.Contains(strings.ToLower(doc.Metadata.Caption), strings.ToLower(filter.CaptionContains)) {
		return false
	}
	if filter.Entity != nil {
		if doc.Metadata.Entity == nil {
			return false
		}
		if len(filter.Entity.Types) > 0 && !containsStr(filter.Entity.Types, doc.Metadata.Entity.Type) {
			return false
		}
		if filter.Entity.TitleContains != "" && !strings.Contains(strings.ToLower(doc.Metadata.Entity.Title), strings.ToLower(filter.Entity.TitleContains)) {
			return false
		}
		if len(filter.Entity.Keywords) > 0 {
			found := false
			for _, kw := range filter.Entity.Keywords {
				if containsStr(doc.Metadata.Entity.Keywords, kw) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}

func containsStr(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsCategory(list []store.Category, v store.Category) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "was": true, "are": true, "were": true, "be": true,
}

func tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()\"'")
		if !stopwords[w] && len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func avgDocLength(docs []store.Document) float64 {
	if len(docs) == 0 {
		return 0
	}
	total := 0
	for _, d := range docs {
		total += len(tokenize(d.Content))
	}
	return float64(total) / float64(len(docs))
}

func documentFrequency(docs []store.Document) map[string]int {
	df := make(map[string]int)
	for _, d := range docs {
		seen := make(map[string]bool)
		for _, term := range tokenize(d.Content) {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}
	return df
}

func scoreBM25(queryTerms []string, content string, avgDocLen float64, corpusSize int, docFreq map[string]int) float64 {
	docTerms := tokenize(content)
	docLength := float64(len(docTerms))

	termFreq := make(map[string]int)
	for _, t := range docTerms {
		termFreq[t]++
	}

	score := 0.0
	for _, term := range queryTerms {
		tf := float64(termFreq[term])
		if tf == 0 {
			continue
		}
		df := float64(docFreq[term])
		idf := math.Log(1 + (float64(corpusSize)-df+0.5)/(df+0.5))

		numerator := tf * (bm25K1 + 1.0)
		denominator := tf + bm25K1*(1.0-bm25B+bm25B*(docLength/maxFloat(avgDocLen, 1)))
		score += idf * (numerator / denominator)
	}
	return score
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// evaluableTerms extracts the bare terms from a boolean expression of the
// form produced by pkg/retrieval's lexical expression builder, e.g.
// "(a AND b) OR c OR d".
func evaluableTerms(expression string) []string {
	var terms []string
	for _, tok := range strings.Fields(expression) {
		tok = strings.Trim(tok, "()")
		if tok == "AND" || tok == "OR" || tok == "" {
			continue
		}
		terms = append(terms, strings.ToLower(tok))
	}
	return terms
}

// satisfiesExpression evaluates the "(a AND b) OR c OR d"-shaped expression
// against a document's tokens: conjuncts inside one parenthesized group
// must all be present; any one disjunct satisfies the whole expression.
func satisfiesExpression(expression string, docTokens []string) bool {
	present := make(map[string]bool, len(docTokens))
	for _, t := range docTokens {
		present[t] = true
	}

	disjuncts := strings.Split(expression, " OR ")
	for _, d := range disjuncts {
		d = strings.TrimSpace(strings.Trim(d, "()"))
		if d == "" {
			continue
		}
		conjuncts := strings.Split(d, " AND ")
		all := true
		for _, c := range conjuncts {
			c = strings.ToLower(strings.TrimSpace(c))
			if c == "" || !present[c] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package chromem implements store.Store against an embedded chromem-go
// collection — a pure-Go alternative to the Qdrant backend for local
// demos, selected by the "chromem" vector store type, without requiring a
// running Qdrant server.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aiteam0/rag-lab/pkg/store"

	chromem "github.com/philippgille/chromem-go"
	"github.com/google/uuid"
)

// Store wraps a single chromem-go collection.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	name       string
}

// New opens (creating if absent) a chromem-go collection persisted under path.
// An empty path keeps the collection in memory only.
func New(ctx context.Context, path, collectionName string) (*Store, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open chromem db: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem collection: %w", err)
	}

	return &Store{db: db, collection: col, name: collectionName}, nil
}

// Insert adds a document with a precomputed embedding to the collection.
func (s *Store) Insert(ctx context.Context, doc store.Document, embedding []float32) (string, error) {
	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	meta := map[string]string{
		"source":         doc.Metadata.Source,
		"page":           fmt.Sprintf("%d", doc.Metadata.Page),
		"category":       string(doc.Metadata.Category),
		"caption":        doc.Metadata.Caption,
		"human_feedback": doc.Metadata.HumanFeedback,
		"image_path":     doc.Metadata.ImagePath,
	}
	if doc.Metadata.Entity != nil {
		meta["entity_type"] = doc.Metadata.Entity.Type
		meta["entity_title"] = doc.Metadata.Entity.Title
		meta["entity_details"] = doc.Metadata.Entity.Details
		meta["entity_keywords"] = strings.Join(doc.Metadata.Entity.Keywords, ",")
	}

	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   doc.Content,
		Metadata:  meta,
		Embedding: embedding,
	})
	if err != nil {
		return "", fmt.Errorf("chromem insert failed: %w", err)
	}
	return id, nil
}

func (s *Store) DenseSearch(ctx context.Context, language store.Language, embedding []float32, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	// chromem-go's Where clause only supports equality; any-of predicates
	// are applied as a post-filter over the over-fetched candidate set,
	// which stays within the store boundary (this function, not the
	// retrieval core) rather than leaking into the retriever.
	overfetch := limit * 4
	if n := s.collection.Count(); overfetch > n {
		overfetch = n
	}
	if overfetch == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, overfetch, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	out := make([]store.RankedDocument, 0, limit)
	for _, r := range results {
		doc := fromChromem(r.ID, r.Content, r.Metadata)
		if !matches(doc, filter) {
			continue
		}
		doc.Similarity = r.Similarity
		out = append(out, store.RankedDocument{Document: doc, Rank: len(out) + 1})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LexicalSearch has no native counterpart in chromem-go (it is a
// dense-only store); it degrades to a substring match over document
// content, ranked by match count, which is sufficient for the CLI demo
// mode this backend targets. Production lexical search should use the
// qdrant or memory (BM25) backend instead.
func (s *Store) LexicalSearch(ctx context.Context, language store.Language, expression string, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	terms := extractTerms(expression)
	if len(terms) == 0 {
		return nil, nil
	}

	all, err := s.collection.QueryEmbedding(ctx, nil, s.collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem scan failed: %w", err)
	}

	type scored struct {
		doc   store.Document
		count int
	}
	var candidates []scored
	for _, r := range all {
		doc := fromChromem(r.ID, r.Content, r.Metadata)
		if !matches(doc, filter) {
			continue
		}
		lower := strings.ToLower(doc.Content)
		count := 0
		for _, t := range terms {
			count += strings.Count(lower, t)
		}
		if count > 0 {
			candidates = append(candidates, scored{doc: doc, count: count})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].count > candidates[j].count })
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
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return store.Document{}, fmt.Errorf("chromem get failed: %w", err)
	}
	return fromChromem(doc.ID, doc.Content, doc.Metadata), nil
}

func (s *Store) GetMetadata(ctx context.Context) (store.MetadataSnapshot, error) {
	all, err := s.collection.QueryEmbedding(ctx, nil, s.collection.Count(), nil, nil)
	if err != nil {
		return store.MetadataSnapshot{}, fmt.Errorf("chromem scan failed: %w", err)
	}

	sources := map[string]bool{}
	categories := map[store.Category]bool{}
	entityTypes := map[string]bool{}
	snap := store.MetadataSnapshot{}
	first := true

	for _, r := range all {
		doc := fromChromem(r.ID, r.Content, r.Metadata)
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
func (s *Store) Name() string { return "chromem" }

func fromChromem(id, content string, meta map[string]string) store.Document {
	doc := store.Document{
		ID:      id,
		Content: content,
		Metadata: store.Metadata{
			Source:        meta["source"],
			Category:      store.Category(meta["category"]),
			Caption:       meta["caption"],
			HumanFeedback: meta["human_feedback"],
			ImagePath:     meta["image_path"],
		},
	}
	fmt.Sscanf(meta["page"], "%d", &doc.Metadata.Page)
	if entityType := meta["entity_type"]; entityType != "" {
		var keywords []string
		if kw := meta["entity_keywords"]; kw != "" {
			keywords = strings.Split(kw, ",")
		}
		doc.Metadata.Entity = &store.Entity{
			Type:     entityType,
			Title:    meta["entity_title"],
			Details:  meta["entity_details"],
			Keywords: keywords,
		}
	}
	return doc
}

func matches(doc store.Document, filter store.Filter) bool {
	if len(filter.Sources) > 0 && !contains(filter.Sources, doc.Metadata.Source) {
		return false
	}
	if len(filter.Pages) > 0 {
		found := false
		for _, p := range filter.Pages {
			if p == doc.Metadata.Page {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Categories) > 0 {
		found := false
		for _, c := range filter.Categories {
			if c == doc.Metadata.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CaptionContains != "" && !strings.Contains(strings.ToLower(doc.Metadata.Caption), strings.ToLower(filter.CaptionContains)) {
		return false
	}
	if filter.Entity != nil {
		if doc.Metadata.Entity == nil {
			return false
		}
		if len(filter.Entity.Types) > 0 && !contains(filter.Entity.Types, doc.Metadata.Entity.Type) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func extractTerms(expression string) []string {
	var terms []string
	for _, tok := range strings.Fields(expression) {
		tok = strings.ToLower(strings.Trim(tok, "()"))
		if tok == "and" || tok == "or" || tok == "" {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

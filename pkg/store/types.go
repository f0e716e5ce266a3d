// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package store defines the document store contract the retrieval core
// consumes: dense-vector search, lexical full-text search, document
// lookup, and live metadata discovery. Implementations (qdrant, chromem,
// memory) live in subpackages.
package store

import "context"

// Language selects which dense column and lexical tokenizer a query
// targets. The vocabulary is intentionally small and closed at the
// language-detection layer (pkg/agent); the store only needs to route on it.
type Language string

const (
	LanguageKorean  Language = "korean"
	LanguageEnglish Language = "english"
)

// Category is one of the 14 fixed structural tags a document chunk may carry.
type Category string

const (
	CategoryHeading1  Category = "heading_1"
	CategoryHeading2  Category = "heading_2"
	CategoryHeading3  Category = "heading_3"
	CategoryParagraph Category = "paragraph"
	CategoryList      Category = "list"
	CategoryTable     Category = "table"
	CategoryFigure    Category = "figure"
	CategoryChart     Category = "chart"
	CategoryEquation  Category = "equation"
	CategoryCaption   Category = "caption"
	CategoryFootnote  Category = "footnote"
	CategoryHeader    Category = "header"
	CategoryFooter    Category = "footer"
	CategoryReference Category = "reference"
	// CategoryWeb tags documents synthesized from the web-fallback tool.
	CategoryWeb Category = "web"
)

// EntityBearingCategories lists the categories whose documents may carry
// a structured Entity annotation. Used by the hybrid retriever's dual-filter
// pass to decide which categories the entity-scoped leg should search.
var EntityBearingCategories = []Category{CategoryFigure, CategoryTable}

// Entity is an optional structured annotation attached to a document.
// Type comes from a closed vocabulary discovered at runtime from store
// metadata; no entity-type literal is ever embedded in code.
type Entity struct {
	Type                  string
	Title                 string
	Details               string
	Keywords              []string
	HypotheticalQuestions []string
}

// Metadata is the structured record carried by every Document.
type Metadata struct {
	Source        string
	Page          int
	Category      Category
	Caption       string
	Entity        *Entity
	HumanFeedback string
	ImagePath     string
}

// Document is the unit returned by retrieval and consumed by synthesis.
type Document struct {
	ID       string
	Content  string
	Metadata Metadata

	// Derived per-result fields, set by the retriever. Zero value means unset.
	Similarity  float32 // dense cosine similarity, [0,1]
	LexicalRank int     // 1-based ordinal from lexical search, 0 = unset
	RRFScore    float64 // fused score after RRF merge
	SearchType  string  // "entity" when produced by the entity-scoped dual-filter pass
}

// EntityFilter constrains documents by their Entity annotation.
type EntityFilter struct {
	Types           []string
	Keywords        []string
	TitleContains   string
}

// Filter is an immutable conjunction of optional predicates. An empty
// Filter matches all documents. Callers must never mutate a Filter they
// were given; all "With*" helpers return a new value.
type Filter struct {
	Sources         []string
	Pages           []int
	Categories      []Category
	CaptionContains string
	Entity          *EntityFilter
}

// IsEmpty reports whether the filter has no active predicates.
func (f Filter) IsEmpty() bool {
	return len(f.Sources) == 0 && len(f.Pages) == 0 && len(f.Categories) == 0 &&
		f.CaptionContains == "" && f.Entity == nil
}

// WithoutEntity returns a copy of f with the Entity predicate cleared —
// used by the hybrid retriever's broadened dual-filter pass.
func (f Filter) WithoutEntity() Filter {
	f.Entity = nil
	return f
}

// WithCategories returns a copy of f restricted to the given categories,
// replacing any existing Categories predicate — used by the entity-scoped
// dual-filter pass.
func (f Filter) WithCategories(categories []Category) Filter {
	f.Categories = categories
	return f
}

// RankedDocument is a Document carrying the rank (1-based) it occupied in
// the single ranked list a dense or lexical search produced, prior to RRF.
type RankedDocument struct {
	Document Document
	Rank     int
}

// MetadataSnapshot is the live store metadata the dynamic filter generator
// and subtask executor validate against. Fetched through Store.GetMetadata
// and cached with a TTL (pkg/retrieval.MetadataCache).
type MetadataSnapshot struct {
	Sources     []string
	PageMin     int
	PageMax     int
	Categories  []Category
	EntityTypes []string
}

// Store is the contract the retrieval core consumes. Implementations are
// responsible for applying the filter server-side; the core never
// post-filters results.
type Store interface {
	DenseSearch(ctx context.Context, language Language, embedding []float32, filter Filter, limit int) ([]RankedDocument, error)
	LexicalSearch(ctx context.Context, language Language, expression string, filter Filter, limit int) ([]RankedDocument, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	GetMetadata(ctx context.Context) (MetadataSnapshot, error)
	Close() error
	Name() string
}

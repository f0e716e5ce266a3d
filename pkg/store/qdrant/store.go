// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package qdrant implements store.Store against a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aiteam0/rag-lab/pkg/store"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds Qdrant connection settings.
type Config struct {
	Address        string
	APIKey         string
	TimeoutSeconds int
	Collection     string
	// DenseVectorNames maps a language to the named dense vector in the
	// collection's vector config (Qdrant supports multiple named vectors
	// per point, used here to hold one column per language).
	DenseVectorNames map[store.Language]string
}

func (c *Config) vectorName(lang store.Language) string {
	if c.DenseVectorNames != nil {
		if name, ok := c.DenseVectorNames[lang]; ok {
			return name
		}
	}
	return string(lang)
}

// Store implements store.Store against a Qdrant collection.
type Store struct {
	points      pb.PointsClient
	collections pb.CollectionsClient
	conn        *grpc.ClientConn
	config      *Config
}

// NewStore dials the given Qdrant address and returns a Store bound to config.Collection.
func NewStore(address string, config *Config) (*Store, error) {
	if address == "" {
		return nil, errors.New("qdrant address is required")
	}
	if config == nil {
		config = &Config{Address: address, TimeoutSeconds: 30, Collection: "documents"}
	}
	if config.Collection == "" {
		config.Collection = "documents"
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &Store{
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		conn:        conn,
		config:      config,
	}, nil
}

// Insert upserts a document with its embedding into the configured collection.
// This is the minimal write path used by cmd/cli's ingest helper (§1.4 of
// SPEC_FULL.md); document-schema derivation is out of scope.
func (s *Store) Insert(ctx context.Context, doc store.Document, embedding []float32, language store.Language) (string, error) {
	id := doc.ID
	if id == "" {
		id = uuid.New().String()
	}

	payload := map[string]*pb.Value{
		"content":         strVal(doc.Content),
		"source":          strVal(doc.Metadata.Source),
		"page":            intVal(doc.Metadata.Page),
		"category":        strVal(string(doc.Metadata.Category)),
		"caption":         strVal(doc.Metadata.Caption),
		"human_feedback":  strVal(doc.Metadata.HumanFeedback),
		"image_path":      strVal(doc.Metadata.ImagePath),
	}
	if doc.Metadata.Entity != nil {
		payload["entity_type"] = strVal(doc.Metadata.Entity.Type)
		payload["entity_title"] = strVal(doc.Metadata.Entity.Title)
		payload["entity_details"] = strVal(doc.Metadata.Entity.Details)
		payload["entity_keywords"] = strListVal(doc.Metadata.Entity.Keywords)
	}

	point := &pb.PointStruct{
		Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vectors{Vectors: &pb.NamedVectors{
			Vectors: map[string]*pb.Vector{s.config.vectorName(language): {Data: embedding}},
		}}},
		Payload: payload,
	}

	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         []*pb.PointStruct{point},
	}); err != nil {
		return "", fmt.Errorf("qdrant insert failed: %w", err)
	}
	return id, nil
}

// DenseSearch runs a cosine-similarity search against the named dense
// column for language, applying filter server-side.
func (s *Store) DenseSearch(ctx context.Context, language store.Language, embedding []float32, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	if len(embedding) == 0 {
		return nil, errors.New("dense search embedding cannot be empty")
	}

	req := &pb.SearchPoints{
		CollectionName: s.config.Collection,
		Vector:         embedding,
		VectorName:     ptr(s.config.vectorName(language)),
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if !filter.IsEmpty() {
		req.Filter = toQdrantFilter(filter)
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant dense search failed: %w", err)
	}

	out := make([]store.RankedDocument, 0, len(resp.Result))
	for i, hit := range resp.Result {
		doc := fromPayload(hit.Id.GetUuid(), hit.Payload)
		doc.Similarity = hit.Score
		out = append(out, store.RankedDocument{Document: doc, Rank: i + 1})
	}
	return out, nil
}

// LexicalSearch runs a full-text match against the "content" payload field
// using the boolean expression built by pkg/retrieval's lexical tokenizer.
// Qdrant's text-match condition does not itself understand the expression's
// AND/OR structure, so the expression's disjuncts are queried independently
// and the results are ordinal-merged by first appearance — the fused rank
// this function returns is local to this one call, prior to RRF.
func (s *Store) LexicalSearch(ctx context.Context, language store.Language, expression string, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	clauses := splitDisjuncts(expression)
	if len(clauses) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	out := make([]store.RankedDocument, 0, limit)

	for _, clause := range clauses {
		qdFilter := toQdrantFilter(filter)
		for _, term := range strings.Fields(clause) {
			if term == "AND" || term == "OR" || term == "(" || term == ")" {
				continue
			}
			qdFilter.Must = append(qdFilter.Must, &pb.Condition{
				ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
					Key:   "content",
					Match: &pb.Match{MatchValue: &pb.Match_Text{Text: term}},
				}},
			})
		}

		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.config.Collection,
			Filter:         qdFilter,
			Limit:          ptrU32(uint32(limit)),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant lexical search failed: %w", err)
		}
		for _, p := range resp.Result {
			id := p.Id.GetUuid()
			if seen[id] {
				continue
			}
			seen[id] = true
			doc := fromPayload(id, p.Payload)
			out = append(out, store.RankedDocument{Document: doc, Rank: len(out) + 1})
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// GetDocument fetches a single document by id, with payload only (no vector).
func (s *Store) GetDocument(ctx context.Context, id string) (store.Document, error) {
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.config.Collection,
		Ids:            []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("qdrant get failed: %w", err)
	}
	if len(resp.Result) == 0 {
		return store.Document{}, fmt.Errorf("document %s not found", id)
	}
	return fromPayload(resp.Result[0].Id.GetUuid(), resp.Result[0].Payload), nil
}

// GetMetadata scrolls the collection to discover the live vocabulary of
// sources, categories, entity types, and page range. This is a bounded,
// best-effort scan (capped at metadataScanLimit points) suitable for the
// ≤300s-TTL cache in pkg/retrieval; it is not a full collection aggregation.
const metadataScanLimit = 10_000

func (s *Store) GetMetadata(ctx context.Context) (store.MetadataSnapshot, error) {
	sources := make(map[string]bool)
	categories := make(map[string]bool)
	entityTypes := make(map[string]bool)
	snap := store.MetadataSnapshot{}
	first := true

	var offset *pb.PointId
	scanned := 0
	for scanned < metadataScanLimit {
		req := &pb.ScrollPoints{
			CollectionName: s.config.Collection,
			Limit:          ptrU32(256),
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
			Offset:         offset,
		}
		resp, err := s.points.Scroll(ctx, req)
		if err != nil {
			return snap, fmt.Errorf("qdrant metadata scroll failed: %w", err)
		}
		if len(resp.Result) == 0 {
			break
		}
		for _, p := range resp.Result {
			doc := fromPayload(p.Id.GetUuid(), p.Payload)
			if doc.Metadata.Source != "" {
				sources[doc.Metadata.Source] = true
			}
			if doc.Metadata.Category != "" {
				categories[string(doc.Metadata.Category)] = true
			}
			if doc.Metadata.Entity != nil && doc.Metadata.Entity.Type != "" {
				entityTypes[doc.Metadata.Entity.Type] = true
			}
			if first {
				snap.PageMin, snap.PageMax = doc.Metadata.Page, doc.Metadata.Page
				first = false
			} else {
				if doc.Metadata.Page < snap.PageMin {
					snap.PageMin = doc.Metadata.Page
				}
				if doc.Metadata.Page > snap.PageMax {
					snap.PageMax = doc.Metadata.Page
				}
			}
		}
		scanned += len(resp.Result)
		if resp.NextPageOffset == nil {
			break
		}
		offset = resp.NextPageOffset
	}

	for k := range sources {
		snap.Sources = append(snap.Sources, k)
	}
	for k := range categories {
		snap.Categories = append(snap.Categories, store.Category(k))
	}
	for k := range entityTypes {
		snap.EntityTypes = append(snap.EntityTypes, k)
	}
	return snap, nil
}

func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Store) Name() string { return "qdrant" }

func strVal(v string) *pb.Value  { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}} }
func intVal(v int) *pb.Value     { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(v)}} }
func ptr(s string) *string       { return &s }
func ptrU32(v uint32) *uint32    { return &v }

func strListVal(ss []string) *pb.Value {
	values := make([]*pb.Value, len(ss))
	for i, s := range ss {
		values[i] = strVal(s)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
}

func stringField(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(payload map[string]*pb.Value, key string) int {
	if v, ok := payload[key]; ok {
		return int(v.GetIntegerValue())
	}
	return 0
}

func fromPayload(id string, payload map[string]*pb.Value) store.Document {
	doc := store.Document{
		ID:      id,
		Content: stringField(payload, "content"),
		Metadata: store.Metadata{
			Source:        stringField(payload, "source"),
			Page:          intField(payload, "page"),
			Category:      store.Category(stringField(payload, "category")),
			Caption:       stringField(payload, "caption"),
			HumanFeedback: stringField(payload, "human_feedback"),
			ImagePath:     stringField(payload, "image_path"),
		},
	}
	if entityType := stringField(payload, "entity_type"); entityType != "" {
		var keywords []string
		if v, ok := payload["entity_keywords"]; ok {
			for _, item := range v.GetListValue().GetValues() {
				keywords = append(keywords, item.GetStringValue())
			}
		}
		doc.Metadata.Entity = &store.Entity{
			Type:     entityType,
			Title:    stringField(payload, "entity_title"),
			Details:  stringField(payload, "entity_details"),
			Keywords: keywords,
		}
	}
	return doc
}

// toQdrantFilter translates a store.Filter into Qdrant's conjunctive filter:
// one "must" condition per predicate, with each any-of predicate expressed as
// a single keywords (match-any) condition — this corrects the teacher's
// equality-only filter conversion, which had no any-of/list support.
func toQdrantFilter(filter store.Filter) *pb.Filter {
	var must []*pb.Condition

	if len(filter.Sources) > 0 {
		must = append(must, anyOfKeyword("source", filter.Sources))
	}
	if len(filter.Pages) > 0 {
		values := make([]string, len(filter.Pages))
		for i, p := range filter.Pages {
			values[i] = strconv.Itoa(p)
		}
		must = append(must, anyOfKeyword("page", values))
	}
	if len(filter.Categories) > 0 {
		values := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			values[i] = string(c)
		}
		must = append(must, anyOfKeyword("category", values))
	}
	if filter.CaptionContains != "" {
		must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   "caption",
			Match: &pb.Match{MatchValue: &pb.Match_Text{Text: filter.CaptionContains}},
		}}})
	}
	if filter.Entity != nil {
		if len(filter.Entity.Types) > 0 {
			must = append(must, anyOfKeyword("entity_type", filter.Entity.Types))
		}
		if filter.Entity.TitleContains != "" {
			must = append(must, &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
				Key:   "entity_title",
				Match: &pb.Match{MatchValue: &pb.Match_Text{Text: filter.Entity.TitleContains}},
			}}})
		}
	}

	return &pb.Filter{Must: must}
}

func anyOfKeyword(key string, values []string) *pb.Condition {
	kws := make([]string, len(values))
	copy(kws, values)
	return &pb.Condition{ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
		Key:   key,
		Match: &pb.Match{MatchValue: &pb.Match_Keywords{Keywords: &pb.RepeatedStrings{Strings: kws}}},
	}}}
}

func splitDisjuncts(expression string) []string {
	parts := strings.Split(expression, " OR ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, "()"))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

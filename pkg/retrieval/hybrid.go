// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrieval

import (
	"context"
	"sort"

	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/store"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// HybridConfig configures the retriever. Generalizes the teacher's
// pkg/retrieval/hybrid.go (single hardcoded rrfK, sequential dense-then-
// keyword) into the concurrent, multi-variation design spec §4.6 requires.
type HybridConfig struct {
	TopK       int
	RRFK       int // default 60
	WorkerPool int // default 3, bounds concurrent (variation × {dense,lexical}) searches
}

func (c HybridConfig) withDefaults() HybridConfig {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.RRFK <= 0 {
		c.RRFK = 60
	}
	if c.WorkerPool <= 0 {
		c.WorkerPool = 3
	}
	return c
}

// Variation is one query rewrite produced by the subtask executor's query
// variation step, tagged with its independently detected language.
type Variation struct {
	Query    string
	Language store.Language
}

// HybridRetriever executes (variations × {dense, lexical}) searches
// concurrently, bounded by a fixed worker pool, and merges the resulting
// ranked lists via Reciprocal Rank Fusion.
type HybridRetriever struct {
	store    store.Store
	embedder embedding.Embedder
	config   HybridConfig
}

// NewHybridRetriever constructs a retriever bound to a store and embedder.
func NewHybridRetriever(st store.Store, embedder embedding.Embedder, config HybridConfig) *HybridRetriever {
	return &HybridRetriever{store: st, embedder: embedder, config: config.withDefaults()}
}

// rankedList is one contributing ranked list into the RRF merge, tagged
// with whether it came from the entity-scoped dual-filter pass.
type rankedList struct {
	docs       []store.RankedDocument
	entityPass bool
}

// Search runs the full hybrid retrieval contract of spec §4.6: per
// variation, dense + lexical searches in parallel; if filter carries an
// Entity predicate, both a stripped-entity pass and an entity-scoped pass
// run and are merged together into one RRF result.
func (h *HybridRetriever) Search(ctx context.Context, variations []Variation, filter store.Filter) ([]store.Document, []string, error) {
	var warnings []string

	broadFilter := filter
	var passes []store.Filter
	if filter.Entity != nil {
		broadFilter = filter.WithoutEntity()
		passes = []store.Filter{broadFilter, filter.WithCategories(store.EntityBearingCategories)}
	} else {
		passes = []store.Filter{filter}
	}

	var allLists []rankedList
	for i, passFilter := range passes {
		isEntityPass := filter.Entity != nil && i == len(passes)-1
		lists, err := h.fanOut(ctx, variations, passFilter)
		if err != nil {
			warnings = append(warnings, "retrieval pass failed: "+err.Error())
			continue
		}
		for _, l := range lists {
			allLists = append(allLists, rankedList{docs: l, entityPass: isEntityPass})
		}
	}

	merged := fuseRRF(allLists, h.config.RRFK, h.config.TopK)
	if len(merged) == 0 {
		warnings = append(warnings, "retrieval returned zero documents for all variations")
	}
	return merged, warnings, nil
}

// fanOut runs dense + lexical searches for every variation concurrently,
// bounded by a semaphore sized to config.WorkerPool — the single fan-out
// point permitted anywhere in the design (spec §5).
func (h *HybridRetriever) fanOut(ctx context.Context, variations []Variation, filter store.Filter) ([][]store.RankedDocument, error) {
	sem := semaphore.NewWeighted(int64(h.config.WorkerPool))
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]store.RankedDocument, len(variations)*2)

	for i, v := range variations {
		i, v := i, v

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			docs, err := denseSearch(gctx, h.store, h.embedder, v.Query, v.Language, filter, h.config.TopK*2)
			if err != nil {
				return nil // transient failures degrade to an empty list, not a hard failure
			}
			results[i*2] = docs
			return nil
		})

		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			docs, err := lexicalSearch(gctx, h.store, v.Query, v.Language, filter, h.config.TopK*2)
			if err != nil {
				return nil
			}
			results[i*2+1] = docs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fuseRRF computes, per document id, a fused score summing 1/(k+rank)
// across every contributing ranked list, then sorts by: score desc, list
// count desc, best (lowest) rank in any list asc, id asc — the rank key
// ignores list order, so the result does not depend on the order of lists
// (spec §4.6's three-key tie-break,
// which the teacher's original merge — pure score-descending — does not
// implement).
func fuseRRF(lists []rankedList, k, topK int) []store.Document {
	type acc struct {
		doc           store.Document
		score         float64
		listCount     int
		firstSeenRank int
		searchType    string
	}

	byID := make(map[string]*acc)
	var order []string

	for _, rl := range lists {
		for _, rd := range rl.docs {
			id := rd.Document.ID
			if id == "" {
				continue
			}
			a, ok := byID[id]
			if !ok {
				a = &acc{doc: rd.Document, firstSeenRank: rd.Rank}
				if rl.entityPass {
					a.searchType = "entity"
				}
				byID[id] = a
				order = append(order, id)
			}
			a.score += 1.0 / float64(k+rd.Rank)
			a.listCount++
			if rd.Rank < a.firstSeenRank {
				a.firstSeenRank = rd.Rank
			}
			if rd.Document.Similarity > a.doc.Similarity {
				a.doc.Similarity = rd.Document.Similarity
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := byID[order[i]], byID[order[j]]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.listCount != b.listCount {
			return a.listCount > b.listCount
		}
		if a.firstSeenRank != b.firstSeenRank {
			return a.firstSeenRank < b.firstSeenRank
		}
		return order[i] < order[j]
	})

	if topK > 0 && len(order) > topK {
		order = order[:topK]
	}

	out := make([]store.Document, len(order))
	for i, id := range order {
		a := byID[id]
		doc := a.doc
		doc.RRFScore = a.score
		doc.SearchType = a.searchType
		out[i] = doc
	}
	return out
}

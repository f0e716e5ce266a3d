// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

// Package retrieval implements the hybrid (dense + lexical) retriever, its
// RRF merge, the dynamic filter generator, and the metadata cache the
// subtask executor reads from.
package retrieval

import (
	"context"
	"fmt"

	"github.com/aiteam0/rag-lab/pkg/embedding"
	"github.com/aiteam0/rag-lab/pkg/store"
)

// denseSearch embeds query in the given language and runs Store.DenseSearch,
// mirroring the teacher's pkg/retrieval/vector.go embed-then-search shape.
func denseSearch(ctx context.Context, st store.Store, embedder embedding.Embedder, query string, language store.Language, filter store.Filter, limit int) ([]store.RankedDocument, error) {
	resp, err := embedder.Embed(ctx, &embedding.EmbedRequest{Texts: []string{query}, Language: string(language)})
	if err != nil {
		return nil, fmt.Errorf("dense search embedding failed: %w", err)
	}
	if len(resp.Vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	docs, err := withRetry(ctx, func() ([]store.RankedDocument, error) {
		return st.DenseSearch(ctx, language, resp.Vectors[0].Embedding, filter, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("dense search failed: %w", err)
	}
	return docs, nil
}

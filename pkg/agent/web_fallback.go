// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aiteam0/rag-lab/pkg/store"
)

// WebTool is the uniform external-search collaborator of spec §4.7 / §6:
// search(query) -> list<Document>. Adapters are responsible for quota and
// caching; the core never special-cases a concrete implementation.
type WebTool interface {
	Search(ctx context.Context, query string, maxResults int) ([]store.Document, error)
}

// WebFallbackConfig tunes the fallback tool.
type WebFallbackConfig struct {
	DailyQuota int           // default 100
	CacheTTL   time.Duration // default 1h
	Endpoint   string        // search API base URL
	APIKey     string
	MaxResults int // default 5
}

func (c WebFallbackConfig) withDefaults() WebFallbackConfig {
	if c.DailyQuota <= 0 {
		c.DailyQuota = 100
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	return c
}

type cacheEntry struct {
	docs    []store.Document
	storedAt time.Time
}

// WebFallback implements WebTool against a generic HTTP search API (no
// ecosystem search SDK exists anywhere in the retrieved corpus, so this is
// built on net/http directly — see DESIGN.md). The TTL+mutex result cache
// and quota counter are grounded on the teacher's pkg/schema/resolver.go
// SchemaCache (map + TTL) idiom, with the mutex the teacher's version is
// missing added here since the cache is shared across subtasks within a
// turn (spec §5).
type WebFallback struct {
	config WebFallbackConfig
	client *http.Client

	mu          sync.Mutex
	cache       map[string]cacheEntry
	quotaDay    string
	quotaUsed   int
}

// NewWebFallback constructs a WebFallback tool.
func NewWebFallback(config WebFallbackConfig) *WebFallback {
	return &WebFallback{
		config: config.withDefaults(),
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  make(map[string]cacheEntry),
	}
}

// Search implements WebTool. On quota exhaustion or upstream failure it
// returns an empty list and does not raise (spec §4.7): the caller treats
// an empty result as a signal, not an error.
func (w *WebFallback) Search(ctx context.Context, query string, maxResults int) ([]store.Document, error) {
	if maxResults <= 0 {
		maxResults = w.config.MaxResults
	}

	if docs, ok := w.cached(query); ok {
		return docs, nil
	}

	if !w.takeQuota() {
		return nil, nil
	}

	docs, err := w.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, nil
	}

	w.store(query, docs)
	return docs, nil
}

func (w *WebFallback) cached(query string) ([]store.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry, ok := w.cache[query]
	if !ok || time.Since(entry.storedAt) > w.config.CacheTTL {
		return nil, false
	}
	return entry.docs, true
}

func (w *WebFallback) store(query string, docs []store.Document) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cache[query] = cacheEntry{docs: docs, storedAt: time.Now()}
}

// takeQuota atomically consumes one unit of the daily quota, resetting the
// counter when the calendar day rolls over.
func (w *WebFallback) takeQuota() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	if w.quotaDay != today {
		w.quotaDay = today
		w.quotaUsed = 0
	}
	if w.quotaUsed >= w.config.DailyQuota {
		return false
	}
	w.quotaUsed++
	return true
}

type searchAPIResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

type searchAPIResponse struct {
	Results []searchAPIResult `json:"results"`
}

// fetch performs the actual HTTP call against the configured search
// endpoint, converting results to Documents with source=URL, category=web,
// and a rank-proportional similarity (spec §4.7).
func (w *WebFallback) fetch(ctx context.Context, query string, maxResults int) ([]store.Document, error) {
	if w.config.Endpoint == "" {
		return nil, fmt.Errorf("web fallback endpoint not configured")
	}

	reqURL := fmt.Sprintf("%s?q=%s&max_results=%d", w.config.Endpoint, url.QueryEscape(query), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if w.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.config.APIKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed searchAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	docs := make([]store.Document, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		rank := i + 1
		docs = append(docs, store.Document{
			ID:      r.URL,
			Content: r.Snippet,
			Metadata: store.Metadata{
				Source:   r.URL,
				Category: store.CategoryWeb,
				Caption:  r.Title,
			},
			Similarity:  1.0 / float32(rank),
			LexicalRank: rank,
		})
	}
	return docs, nil
}

// Copyright 2025 Gerry Miller <gerry@gerrymiller.com>
//
// Licensed under the MIT License.
// See LICENSE file in the project root for full license information.

package retrieval

import (
	"context"
	"time"
)

// storeRetryBackoff is the resilience schedule for transient store errors
// (spec §4.6): up to 3 retries after the first attempt (4 attempts total),
// waiting 1s, 2s, 4s between them.
var storeRetryBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// withRetry runs op up to len(storeRetryBackoff)+1 times, sleeping the
// configured backoff between attempts. The caller's context still governs
// cancellation — a cancelled context aborts immediately without sleeping.
func withRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; ; attempt++ {
		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt >= len(storeRetryBackoff) {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(storeRetryBackoff[attempt]):
		}
	}
	return zero, lastErr
}

// Package cache provides time-bounded memoization of per-user completion
// sets. A cached copy is never authoritative beyond its TTL; a read after
// expiry reports a miss and the caller refetches from the store.
// Read-through is the caller's responsibility.
package cache

import (
	"context"
	"time"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// DefaultTTL is the staleness window applied when none is configured
const DefaultTTL = 120 * time.Second

// Cache stores completion sets keyed per user
type Cache interface {
	// Read returns the cached set and true, or a miss (false) when the
	// entry is absent or older than the TTL. A miss is not an error.
	Read(ctx context.Context, userID string) (models.CompletionSet, bool, error)

	// Write stores the set with a fresh timestamp
	Write(ctx context.Context, userID string, set models.CompletionSet) error

	// Invalidate forces the next Read for the user to miss
	Invalidate(ctx context.Context, userID string) error

	Close() error
}

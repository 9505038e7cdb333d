// Package completion owns the per-user completion state of roadmap
// exercises: the store adapters that talk to the source of truth and the
// transaction manager that applies optimistic, reversible toggles on top.
package completion

import (
	"context"
	"errors"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// Common errors
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrStoreUnavailable = errors.New("completion store unavailable")
)

// Store adapts the backend that owns the ground-truth completion sets.
// Mutations are idempotent and return the authoritative post-mutation set,
// which may reflect concurrent changes made elsewhere. Implementations
// never touch the cache; that is the Manager's job.
type Store interface {
	// Completed returns the user's completed exercise ids.
	// Fails with ErrUserNotFound when the user record is absent and
	// ErrStoreUnavailable on transport failure.
	Completed(ctx context.Context, userID string) (models.CompletionSet, error)

	// MarkCompleted records the exercise as completed. Already-completed
	// exercises succeed with the current set unchanged. Fails with
	// ErrExerciseNotFound when no roadmap carries the exercise id.
	MarkCompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error)

	// MarkUncompleted removes the exercise from the set. Absent entries
	// succeed with the current set unchanged. Fails with
	// ErrExerciseNotFound when no roadmap carries the exercise id.
	MarkUncompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error)
}

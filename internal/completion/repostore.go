package completion

import (
	"context"
	"fmt"

	"github.com/pathlearn/roadmap-engine/internal/models"
	"github.com/pathlearn/roadmap-engine/internal/storage"
)

// RepositoryStore implements Store over the engine's own Postgres
// repository. This is the default backend when the engine owns its data.
type RepositoryStore struct {
	repo storage.Repository
}

// NewRepositoryStore creates a Store backed by the given repository
func NewRepositoryStore(repo storage.Repository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

// Completed returns the user's completion set from the database
func (s *RepositoryStore) Completed(ctx context.Context, userID string) (models.CompletionSet, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	ids, err := s.repo.GetCompletedExercises(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return models.NewCompletionSet(ids...), nil
}

// checkRecords verifies both sides of a completion row exist; a toggle for
// an unknown exercise id must fail instead of inserting a dangling row
func (s *RepositoryStore) checkRecords(ctx context.Context, userID, exerciseID string) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return ErrUserNotFound
	}

	exists, err = s.repo.ExerciseExists(ctx, exerciseID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !exists {
		return fmt.Errorf("exercise %s: %w", exerciseID, ErrExerciseNotFound)
	}
	return nil
}

// MarkCompleted inserts the completion row (idempotent upsert) and reads
// back the authoritative set
func (s *RepositoryStore) MarkCompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error) {
	if err := s.checkRecords(ctx, userID, exerciseID); err != nil {
		return nil, err
	}

	if err := s.repo.AddCompletion(ctx, userID, exerciseID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ids, err := s.repo.GetCompletedExercises(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return models.NewCompletionSet(ids...), nil
}

// MarkUncompleted deletes the completion row (no-op when absent) and reads
// back the authoritative set
func (s *RepositoryStore) MarkUncompleted(ctx context.Context, userID, exerciseID string) (models.CompletionSet, error) {
	if err := s.checkRecords(ctx, userID, exerciseID); err != nil {
		return nil, err
	}

	if err := s.repo.RemoveCompletion(ctx, userID, exerciseID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ids, err := s.repo.GetCompletedExercises(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return models.NewCompletionSet(ids...), nil
}

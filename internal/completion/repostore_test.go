package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// fakeRepository implements storage.Repository over maps; only the
// user/exercise/completion methods carry behavior
type fakeRepository struct {
	users       map[string]bool
	exercises   map[string]bool
	completions map[string]map[string]bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:       make(map[string]bool),
		exercises:   make(map[string]bool),
		completions: make(map[string]map[string]bool),
	}
}

func (r *fakeRepository) UpsertRoadmap(ctx context.Context, g *models.RoadmapGraph) error { return nil }
func (r *fakeRepository) GetRoadmap(ctx context.Context, id string) (*models.RoadmapGraph, error) {
	return nil, nil
}
func (r *fakeRepository) ListRoadmaps(ctx context.Context) ([]models.RoadmapSummary, error) {
	return nil, nil
}
func (r *fakeRepository) DeleteRoadmap(ctx context.Context, id string) error { return nil }

func (r *fakeRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	return r.users[userID], nil
}

func (r *fakeRepository) ExerciseExists(ctx context.Context, exerciseID string) (bool, error) {
	return r.exercises[exerciseID], nil
}

func (r *fakeRepository) EnsureUser(ctx context.Context, userID string) error {
	r.users[userID] = true
	return nil
}

func (r *fakeRepository) GetCompletedExercises(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id := range r.completions[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeRepository) AddCompletion(ctx context.Context, userID, exerciseID string) error {
	if r.completions[userID] == nil {
		r.completions[userID] = make(map[string]bool)
	}
	r.completions[userID][exerciseID] = true
	return nil
}

func (r *fakeRepository) RemoveCompletion(ctx context.Context, userID, exerciseID string) error {
	delete(r.completions[userID], exerciseID)
	return nil
}

func (r *fakeRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	return nil, nil
}
func (r *fakeRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error { return nil }
func (r *fakeRepository) Ping(ctx context.Context) error                                { return nil }
func (r *fakeRepository) Close() error                                                  { return nil }

func TestRepositoryStoreMarkCompleted(t *testing.T) {
	repo := newFakeRepository()
	repo.users["u1"] = true
	repo.exercises["e1"] = true
	store := NewRepositoryStore(repo)
	ctx := context.Background()

	set, err := store.MarkCompleted(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	if !set.Contains("e1") {
		t.Errorf("returned set lacks e1: %v", set.IDs())
	}

	set, err = store.MarkUncompleted(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("mark uncompleted: %v", err)
	}
	if set.Contains("e1") {
		t.Errorf("returned set still holds e1: %v", set.IDs())
	}
}

func TestRepositoryStoreUnknownUser(t *testing.T) {
	repo := newFakeRepository()
	repo.exercises["e1"] = true
	store := NewRepositoryStore(repo)
	ctx := context.Background()

	if _, err := store.Completed(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Completed: got %v, want ErrUserNotFound", err)
	}
	if _, err := store.MarkCompleted(ctx, "ghost", "e1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("MarkCompleted: got %v, want ErrUserNotFound", err)
	}
}

func TestRepositoryStoreUnknownExercise(t *testing.T) {
	repo := newFakeRepository()
	repo.users["u1"] = true
	store := NewRepositoryStore(repo)
	ctx := context.Background()

	// Toggling an exercise no roadmap carries must fail instead of
	// recording a dangling completion row
	_, err := store.MarkCompleted(ctx, "u1", "nope")
	if !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("MarkCompleted: got %v, want ErrExerciseNotFound", err)
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound = false for %v", err)
	}
	if _, err := store.MarkUncompleted(ctx, "u1", "nope"); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("MarkUncompleted: got %v, want ErrExerciseNotFound", err)
	}
	if len(repo.completions["u1"]) != 0 {
		t.Errorf("completion row recorded for unknown exercise: %v", repo.completions["u1"])
	}
}

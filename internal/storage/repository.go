package storage

import (
	"context"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// Repository defines the interface for roadmap and completion persistence
type Repository interface {
	// Roadmaps
	UpsertRoadmap(ctx context.Context, g *models.RoadmapGraph) error
	GetRoadmap(ctx context.Context, id string) (*models.RoadmapGraph, error)
	ListRoadmaps(ctx context.Context) ([]models.RoadmapSummary, error)
	DeleteRoadmap(ctx context.Context, id string) error

	// Users & completions
	UserExists(ctx context.Context, userID string) (bool, error)
	ExerciseExists(ctx context.Context, exerciseID string) (bool, error)
	EnsureUser(ctx context.Context, userID string) error
	GetCompletedExercises(ctx context.Context, userID string) ([]string, error)
	AddCompletion(ctx context.Context, userID, exerciseID string) error
	RemoveCompletion(ctx context.Context, userID, exerciseID string) error

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

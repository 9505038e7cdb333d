// Package content loads roadmap definitions from YAML files. Authoring
// happens outside the engine; the loader is the ingestion point that
// validates definitions and hands them to storage at startup.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pathlearn/roadmap-engine/internal/models"
	"github.com/pathlearn/roadmap-engine/internal/storage"
)

// Loader manages loading and caching of roadmap definitions
type Loader struct {
	mu       sync.RWMutex
	roadmaps map[string]*models.RoadmapGraph
}

// NewLoader creates a new roadmap loader
func NewLoader() *Loader {
	return &Loader{
		roadmaps: make(map[string]*models.RoadmapGraph),
	}
}

// LoadFromDir loads all YAML roadmap definitions from a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading roadmap definitions", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load roadmap", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("roadmap definitions loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single roadmap definition from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var g models.RoadmapGraph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := normalize(&g); err != nil {
		return err
	}

	l.mu.Lock()
	l.roadmaps[g.ID] = &g
	l.mu.Unlock()

	slog.Debug("roadmap loaded", "id", g.ID, "nodes", len(g.Nodes), "exercises", g.ExerciseCount())
	return nil
}

// normalize validates a parsed definition and fills in defaults
func normalize(g *models.RoadmapGraph) error {
	if g.ID == "" {
		return fmt.Errorf("roadmap id is required")
	}
	if g.Title == "" {
		return fmt.Errorf("roadmap %s: title is required", g.ID)
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		node := &g.Nodes[i]
		if node.ID == "" {
			return fmt.Errorf("roadmap %s: node %d has no id", g.ID, i)
		}
		if nodeIDs[node.ID] {
			return fmt.Errorf("roadmap %s: duplicate node id %s", g.ID, node.ID)
		}
		nodeIDs[node.ID] = true

		if node.Label == "" {
			node.Label = node.ID
		}

		for j := range node.Exercises {
			ex := &node.Exercises[j]
			if ex.ID == "" {
				return fmt.Errorf("roadmap %s: node %s: exercise %d has no id", g.ID, node.ID, j)
			}
			if ex.Difficulty == "" {
				ex.Difficulty = models.DifficultyMedium
			}
			if !ex.Difficulty.Valid() {
				return fmt.Errorf("roadmap %s: exercise %s: unknown difficulty %q", g.ID, ex.ID, ex.Difficulty)
			}
		}
	}

	for i := range g.Edges {
		edge := &g.Edges[i]
		if edge.ID == "" {
			edge.ID = uuid.New().String()[:12]
		}
		if !nodeIDs[edge.Source] {
			return fmt.Errorf("roadmap %s: edge %s: unknown source node %s", g.ID, edge.ID, edge.Source)
		}
		if !nodeIDs[edge.Target] {
			return fmt.Errorf("roadmap %s: edge %s: unknown target node %s", g.ID, edge.ID, edge.Target)
		}
	}

	return nil
}

// Get retrieves a loaded roadmap by id, or nil
func (l *Loader) Get(id string) *models.RoadmapGraph {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.roadmaps[id]
}

// List returns summaries of all loaded roadmaps
func (l *Loader) List() []models.RoadmapSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summaries := make([]models.RoadmapSummary, 0, len(l.roadmaps))
	for _, g := range l.roadmaps {
		summaries = append(summaries, models.RoadmapSummary{
			ID:            g.ID,
			Title:         g.Title,
			NodeCount:     len(g.Nodes),
			ExerciseCount: g.ExerciseCount(),
		})
	}
	return summaries
}

// SeedRepository upserts every loaded roadmap into storage
func (l *Loader) SeedRepository(ctx context.Context, repo storage.Repository) error {
	l.mu.RLock()
	graphs := make([]*models.RoadmapGraph, 0, len(l.roadmaps))
	for _, g := range l.roadmaps {
		graphs = append(graphs, g)
	}
	l.mu.RUnlock()

	for _, g := range graphs {
		if err := repo.UpsertRoadmap(ctx, g); err != nil {
			return fmt.Errorf("failed to seed roadmap %s: %w", g.ID, err)
		}
		slog.Info("roadmap seeded", "id", g.ID, "nodes", len(g.Nodes))
	}
	return nil
}

package progress

import (
	"testing"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

func node(id string, exerciseIDs ...string) models.RoadmapNode {
	n := models.RoadmapNode{ID: id, Label: id}
	for _, eid := range exerciseIDs {
		n.Exercises = append(n.Exercises, models.Exercise{
			ID: eid, Name: eid, Difficulty: models.DifficultyEasy,
		})
	}
	return n
}

func TestNodeProgress(t *testing.T) {
	tests := []struct {
		name      string
		node      models.RoadmapNode
		completed models.CompletionSet
		total     int
		done      int
		pct       int
	}{
		{
			name:      "half complete",
			node:      node("n1", "e1", "e2", "e3", "e4"),
			completed: models.NewCompletionSet("e1", "e3"),
			total:     4, done: 2, pct: 50,
		},
		{
			name:      "empty node",
			node:      node("n1"),
			completed: models.NewCompletionSet("e1"),
			total:     0, done: 0, pct: 0,
		},
		{
			name:      "none complete",
			node:      node("n1", "e1", "e2"),
			completed: models.NewCompletionSet(),
			total:     2, done: 0, pct: 0,
		},
		{
			name:      "all complete",
			node:      node("n1", "e1", "e2", "e3"),
			completed: models.NewCompletionSet("e1", "e2", "e3"),
			total:     3, done: 3, pct: 100,
		},
		{
			name:      "rounds half up",
			node:      node("n1", "e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8"),
			completed: models.NewCompletionSet("e1", "e2", "e3", "e4"),
			total:     8, done: 4, pct: 50,
		},
		{
			name:      "one of three rounds to 33",
			node:      node("n1", "e1", "e2", "e3"),
			completed: models.NewCompletionSet("e1"),
			total:     3, done: 1, pct: 33,
		},
		{
			name:      "two of three rounds to 67",
			node:      node("n1", "e1", "e2", "e3"),
			completed: models.NewCompletionSet("e1", "e2"),
			total:     3, done: 2, pct: 67,
		},
		{
			name:      "completed ids outside node ignored",
			node:      node("n1", "e1", "e2"),
			completed: models.NewCompletionSet("e1", "other-1", "other-2", "other-3"),
			total:     2, done: 1, pct: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NodeProgress(tt.node, tt.completed)
			if snap.Total != tt.total || snap.Completed != tt.done || snap.Percentage != tt.pct {
				t.Errorf("got {total:%d completed:%d pct:%d}, want {total:%d completed:%d pct:%d}",
					snap.Total, snap.Completed, snap.Percentage, tt.total, tt.done, tt.pct)
			}
			if snap.ScopeID != tt.node.ID {
				t.Errorf("scope id: got %s, want %s", snap.ScopeID, tt.node.ID)
			}
			if snap.Percentage < 0 || snap.Percentage > 100 {
				t.Errorf("percentage %d out of bounds", snap.Percentage)
			}
			if snap.Completed > snap.Total {
				t.Errorf("completed %d exceeds total %d", snap.Completed, snap.Total)
			}
		})
	}
}

func TestRoadmapProgressAcrossNodes(t *testing.T) {
	g := &models.RoadmapGraph{
		ID: "rm1",
		Nodes: []models.RoadmapNode{
			node("n1", "e1", "e2"),
			node("n2", "e3", "e4", "e5"),
		},
	}

	// Both exercises in n1 complete, none in n2: 2 of 5 => 40
	snap := RoadmapProgress(g, models.NewCompletionSet("e1", "e2"))
	if snap.Total != 5 || snap.Completed != 2 || snap.Percentage != 40 {
		t.Errorf("got {total:%d completed:%d pct:%d}, want {total:5 completed:2 pct:40}",
			snap.Total, snap.Completed, snap.Percentage)
	}
	if snap.ScopeID != "rm1" {
		t.Errorf("scope id: got %s, want rm1", snap.ScopeID)
	}
}

func TestRoadmapProgressCountsSharedIDPerOccurrence(t *testing.T) {
	g := &models.RoadmapGraph{
		ID: "rm1",
		Nodes: []models.RoadmapNode{
			node("n1", "e1", "e2"),
			node("n2", "e1", "e3"), // e1 appears in both nodes
		},
	}

	snap := RoadmapProgress(g, models.NewCompletionSet("e1"))
	if snap.Total != 4 {
		t.Fatalf("total: got %d, want 4", snap.Total)
	}
	if snap.Completed != 2 {
		t.Errorf("completed: got %d, want 2 (one per occurrence)", snap.Completed)
	}
	if snap.Percentage != 50 {
		t.Errorf("percentage: got %d, want 50", snap.Percentage)
	}
}

func TestRoadmapProgressEmptyGraph(t *testing.T) {
	snap := RoadmapProgress(&models.RoadmapGraph{ID: "rm1"}, models.NewCompletionSet("e1"))
	if snap.Total != 0 || snap.Completed != 0 || snap.Percentage != 0 {
		t.Errorf("empty graph: got {total:%d completed:%d pct:%d}, want zeros",
			snap.Total, snap.Completed, snap.Percentage)
	}
}

func TestRoadmapProgressDeterministic(t *testing.T) {
	g := &models.RoadmapGraph{
		ID:    "rm1",
		Nodes: []models.RoadmapNode{node("n1", "e1", "e2", "e3", "e4", "e5", "e6", "e7")},
	}
	set := models.NewCompletionSet("e2", "e5")

	first := RoadmapProgress(g, set)
	for i := 0; i < 100; i++ {
		if got := RoadmapProgress(g, set); got != first {
			t.Fatalf("iteration %d diverged: %+v vs %+v", i, got, first)
		}
	}
}

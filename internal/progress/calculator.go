// Package progress derives node-level and roadmap-level completion
// percentages from a roadmap graph and a user's completion set.
// All functions here are pure; snapshots are always recomputed from
// scratch, never incremented, so counters cannot drift.
package progress

import (
	"math"

	"github.com/pathlearn/roadmap-engine/internal/graph"
	"github.com/pathlearn/roadmap-engine/internal/models"
)

// NodeProgress computes the completion snapshot for a single node
func NodeProgress(node models.RoadmapNode, completed models.CompletionSet) models.ProgressSnapshot {
	done := 0
	for _, ex := range node.Exercises {
		if completed.Contains(ex.ID) {
			done++
		}
	}

	return models.ProgressSnapshot{
		ScopeID:    node.ID,
		Total:      len(node.Exercises),
		Completed:  done,
		Percentage: percentage(done, len(node.Exercises)),
	}
}

// RoadmapProgress computes the aggregate snapshot across all nodes.
// Exercises are not deduplicated across nodes: an id shared by two nodes
// is counted once per occurrence.
func RoadmapProgress(g *models.RoadmapGraph, completed models.CompletionSet) models.ProgressSnapshot {
	refs := graph.FlattenExercises(g)

	done := 0
	for _, ref := range refs {
		if completed.Contains(ref.Exercise.ID) {
			done++
		}
	}

	snap := models.ProgressSnapshot{
		Total:     len(refs),
		Completed: done,
	}
	if g != nil {
		snap.ScopeID = g.ID
	}
	snap.Percentage = percentage(done, len(refs))
	return snap
}

// percentage rounds half-up with a single division so repeated calls over
// identical inputs cannot diverge
func percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(100*completed) / float64(total)))
}

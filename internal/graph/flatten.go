package graph

import (
	"github.com/pathlearn/roadmap-engine/internal/models"
)

// ExerciseRef pairs an exercise with the node that contains it
type ExerciseRef struct {
	NodeID   string
	Exercise models.Exercise
}

// FlattenExercises flattens a roadmap's node/exercise structure into an
// iterable list of (nodeID, exercise) pairs. Order is stable: node list
// order, then per-node exercise list order. An exercise id shared by two
// nodes appears once per occurrence. No caching; cheap to recompute.
func FlattenExercises(g *models.RoadmapGraph) []ExerciseRef {
	if g == nil {
		return nil
	}

	refs := make([]ExerciseRef, 0, g.ExerciseCount())
	for _, node := range g.Nodes {
		for _, ex := range node.Exercises {
			refs = append(refs, ExerciseRef{NodeID: node.ID, Exercise: ex})
		}
	}
	return refs
}

// CountByDifficulty returns a histogram of exercises per difficulty rating
func CountByDifficulty(g *models.RoadmapGraph) map[models.Difficulty]int {
	counts := make(map[models.Difficulty]int)
	for _, ref := range FlattenExercises(g) {
		counts[ref.Exercise.Difficulty]++
	}
	return counts
}

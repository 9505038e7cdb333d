package models

import (
	"sort"
	"time"
)

// CompletionSet holds the exercise ids a user has completed.
// The remote store owns the ground truth; everything held in this process
// is a cached or derived copy.
type CompletionSet map[string]struct{}

// NewCompletionSet builds a set from a list of exercise ids
func NewCompletionSet(ids ...string) CompletionSet {
	s := make(CompletionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether the exercise id is in the set
func (s CompletionSet) Contains(exerciseID string) bool {
	_, ok := s[exerciseID]
	return ok
}

// Add inserts an exercise id
func (s CompletionSet) Add(exerciseID string) {
	s[exerciseID] = struct{}{}
}

// Remove deletes an exercise id; no-op if absent
func (s CompletionSet) Remove(exerciseID string) {
	delete(s, exerciseID)
}

// Clone returns an independent copy of the set
func (s CompletionSet) Clone() CompletionSet {
	c := make(CompletionSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// IDs returns the sorted exercise ids for stable serialization
func (s CompletionSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProgressSnapshot is a derived, never-persisted progress reading for a
// node or a whole roadmap. Percentage is always in [0,100] and always
// recomputed from scratch off the current set and graph.
type ProgressSnapshot struct {
	ScopeID    string `json:"scope_id"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	Percentage int    `json:"percentage"`
}

// MilestoneEvent is fired exactly once per upward threshold crossing
type MilestoneEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RoadmapID  string    `json:"roadmap_id"`
	Threshold  int       `json:"threshold"`
	Percentage int       `json:"percentage"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ToggleRequest is the payload for toggling an exercise's completion state
type ToggleRequest struct {
	UserID     string `json:"user_id"`
	ExerciseID string `json:"exercise_id"`
	Completed  bool   `json:"completed"`
}

// ProgressReport is the full per-user progress view for one roadmap
type ProgressReport struct {
	Roadmap   ProgressSnapshot   `json:"roadmap"`
	Nodes     []ProgressSnapshot `json:"nodes"`
	Completed []string           `json:"completed_exercise_ids"`
}

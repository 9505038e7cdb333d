package progress

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

// DefaultThresholds are the celebration percentages fired on upward crossings
var DefaultThresholds = []int{25, 50, 75, 100}

// MilestoneFunc receives celebration events
type MilestoneFunc func(models.MilestoneEvent)

// Detector tracks the last observed roadmap percentage per (user, roadmap)
// and fires each configured threshold exactly once per upward crossing.
// Downward moves reset the baseline without firing, so re-crossing a
// threshold after an uncompletion celebrates again.
type Detector struct {
	mu         sync.Mutex
	thresholds []int
	baselines  map[baselineKey]int
	listeners  []MilestoneFunc
}

type baselineKey struct {
	userID    string
	roadmapID string
}

// NewDetector creates a detector with the given thresholds. The detector
// keeps its own ascending copy, so callers may pass them in any order.
// Nil or empty thresholds fall back to DefaultThresholds.
func NewDetector(thresholds []int) *Detector {
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}
	sorted := make([]int, len(thresholds))
	copy(sorted, thresholds)
	sort.Ints(sorted)

	return &Detector{
		thresholds: sorted,
		baselines:  make(map[baselineKey]int),
	}
}

// OnMilestone registers a callback for celebration events. Callbacks run
// synchronously in Observe call order; keep them fast or hand off.
func (d *Detector) OnMilestone(fn MilestoneFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Observe compares the previous percentage against the new one and fires
// every threshold crossed upward, ascending. The baseline updates
// unconditionally, including on decreases.
func (d *Detector) Observe(userID, roadmapID string, newPercentage int) {
	key := baselineKey{userID: userID, roadmapID: roadmapID}

	d.mu.Lock()
	previous := d.baselines[key]
	d.baselines[key] = newPercentage

	var fired []models.MilestoneEvent
	for _, t := range d.thresholds {
		if previous < t && t <= newPercentage {
			fired = append(fired, models.MilestoneEvent{
				ID:         uuid.New().String(),
				UserID:     userID,
				RoadmapID:  roadmapID,
				Threshold:  t,
				Percentage: newPercentage,
				OccurredAt: time.Now().UTC(),
			})
		}
	}
	listeners := d.listeners
	d.mu.Unlock()

	for _, ev := range fired {
		slog.Info("milestone reached",
			"user", ev.UserID,
			"roadmap", ev.RoadmapID,
			"threshold", ev.Threshold,
			"percentage", ev.Percentage,
		)
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// Reset forgets the baseline for a (user, roadmap) pair. Used when a
// roadmap's content changes and percentages are recomputed from a new graph.
func (d *Detector) Reset(userID, roadmapID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.baselines, baselineKey{userID: userID, roadmapID: roadmapID})
}

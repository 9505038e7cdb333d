package progress

import (
	"sync"
	"testing"

	"github.com/pathlearn/roadmap-engine/internal/models"
)

func collect(d *Detector) *[]models.MilestoneEvent {
	events := &[]models.MilestoneEvent{}
	d.OnMilestone(func(ev models.MilestoneEvent) {
		*events = append(*events, ev)
	})
	return events
}

func thresholdsOf(events []models.MilestoneEvent) []int {
	out := make([]int, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Threshold)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDetectorFiresEachThresholdOnce(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	for _, pct := range []int{0, 30, 60, 100} {
		d.Observe("u1", "rm1", pct)
	}

	got := thresholdsOf(*events)
	if !equalInts(got, []int{25, 50, 75, 100}) {
		t.Errorf("thresholds: got %v, want [25 50 75 100]", got)
	}
}

func TestDetectorJumpFiresIntermediatesAscending(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	d.Observe("u1", "rm1", 80)

	got := thresholdsOf(*events)
	if !equalInts(got, []int{25, 50, 75}) {
		t.Errorf("thresholds: got %v, want [25 50 75]", got)
	}
}

func TestDetectorDecreaseFiresNothingButResetsBaseline(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	d.Observe("u1", "rm1", 80)
	before := len(*events)

	d.Observe("u1", "rm1", 20)
	if len(*events) != before {
		t.Fatalf("decrease fired %d events", len(*events)-before)
	}

	// The baseline dropped with the decrease, so climbing back re-fires
	d.Observe("u1", "rm1", 60)
	got := thresholdsOf((*events)[before:])
	if !equalInts(got, []int{25, 50}) {
		t.Errorf("re-crossing: got %v, want [25 50]", got)
	}
}

func TestDetectorExactThresholdCrossing(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	d.Observe("u1", "rm1", 25)
	d.Observe("u1", "rm1", 25) // repeat at the threshold must not re-fire

	got := thresholdsOf(*events)
	if !equalInts(got, []int{25}) {
		t.Errorf("thresholds: got %v, want [25]", got)
	}
}

func TestDetectorIsolatesUsersAndRoadmaps(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	d.Observe("u1", "rm1", 50)
	d.Observe("u2", "rm1", 50)
	d.Observe("u1", "rm2", 50)

	if len(*events) != 6 {
		t.Fatalf("expected 6 events (2 per pair), got %d", len(*events))
	}
	for _, ev := range *events {
		if ev.Threshold != 25 && ev.Threshold != 50 {
			t.Errorf("unexpected threshold %d", ev.Threshold)
		}
	}
}

func TestDetectorCustomThresholds(t *testing.T) {
	d := NewDetector([]int{10, 90})
	events := collect(d)

	d.Observe("u1", "rm1", 50)
	d.Observe("u1", "rm1", 95)

	got := thresholdsOf(*events)
	if !equalInts(got, []int{10, 90}) {
		t.Errorf("thresholds: got %v, want [10 90]", got)
	}
}

func TestDetectorUnsortedThresholdsFireAscending(t *testing.T) {
	// Thresholds may arrive in any order (e.g. from configuration); the
	// detector must still fire crossings low to high
	d := NewDetector([]int{100, 25, 75, 50})
	events := collect(d)

	d.Observe("u1", "rm1", 100)

	got := thresholdsOf(*events)
	if !equalInts(got, []int{25, 50, 75, 100}) {
		t.Errorf("thresholds: got %v, want [25 50 75 100]", got)
	}
}

func TestDetectorConcurrentObserve(t *testing.T) {
	d := NewDetector(nil)

	var mu sync.Mutex
	count := 0
	d.OnMilestone(func(models.MilestoneEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.Observe("u1", "rm1", 100)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 4 {
		t.Errorf("expected the 4 thresholds to fire exactly once total, got %d events", count)
	}
}

func TestDetectorEventFields(t *testing.T) {
	d := NewDetector(nil)
	events := collect(d)

	d.Observe("u9", "rm9", 30)

	if len(*events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(*events))
	}
	ev := (*events)[0]
	if ev.UserID != "u9" || ev.RoadmapID != "rm9" || ev.Threshold != 25 || ev.Percentage != 30 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.ID == "" {
		t.Error("event id is empty")
	}
	if ev.OccurredAt.IsZero() {
		t.Error("event timestamp is zero")
	}
}

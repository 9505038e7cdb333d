package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pathlearn/roadmap-engine/internal/cache"
	"github.com/pathlearn/roadmap-engine/internal/models"
	"github.com/pathlearn/roadmap-engine/internal/progress"
)

// ErrRoadmapNotFound reports a roadmap id unknown to the graph source
var ErrRoadmapNotFound = errors.New("roadmap not found")

// GraphSource supplies roadmap graphs for recomputation. A nil graph with
// a nil error means the roadmap does not exist.
type GraphSource interface {
	GetRoadmap(ctx context.Context, id string) (*models.RoadmapGraph, error)
}

// ViewUpdate is published to subscribers after every change to a user's
// derived progress view, optimistic or settled
type ViewUpdate struct {
	UserID    string                    `json:"user_id"`
	RoadmapID string                    `json:"roadmap_id"`
	Roadmap   models.ProgressSnapshot   `json:"roadmap"`
	Nodes     []models.ProgressSnapshot `json:"nodes"`
}

// ViewFunc receives view updates
type ViewFunc func(ViewUpdate)

// pendingToggle is the ephemeral transaction record held for the duration
// of an in-flight store call. Rollback reverts only this exercise's bit on
// the current view; concurrent commits for other exercises stay intact.
type pendingToggle struct {
	exerciseID    string
	previousState bool
	targetState   bool
}

// Manager orchestrates completion toggles: optimistic local mutation,
// store call, reconciliation or rollback, cache coherence. The cache is
// the only local view of a user's completion set, so its TTL bounds how
// stale a read can be before the store is consulted again; percentages are
// always recomputed from scratch off that view, never incremented.
type Manager struct {
	store    Store
	cache    cache.Cache
	graphs   GraphSource
	detector *progress.Detector

	// per-(user, exercise) serialization of in-flight toggles
	lockMu sync.Mutex
	locks  map[toggleKey]*toggleLock

	subMu       sync.RWMutex
	subscribers []ViewFunc
}

type toggleKey struct {
	userID     string
	exerciseID string
}

type toggleLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager wires the transaction manager
func NewManager(store Store, c cache.Cache, graphs GraphSource, detector *progress.Detector) *Manager {
	return &Manager{
		store:    store,
		cache:    c,
		graphs:   graphs,
		detector: detector,
		locks:    make(map[toggleKey]*toggleLock),
	}
}

// OnViewUpdate registers a subscriber for derived-view changes
func (m *Manager) OnViewUpdate(fn ViewFunc) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// OnMilestone registers a subscriber for celebration events
func (m *Manager) OnMilestone(fn progress.MilestoneFunc) {
	m.detector.OnMilestone(fn)
}

// acquireToggle serializes toggles for one (user, exercise) pair. A second
// toggle for the same pair queues behind the first; different pairs run
// concurrently. The returned release func drops the lock entry once idle.
func (m *Manager) acquireToggle(key toggleKey) func() {
	m.lockMu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &toggleLock{}
		m.locks[key] = l
	}
	l.refs++
	m.lockMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		m.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.lockMu.Unlock()
	}
}

// loadGraph resolves the roadmap or fails with ErrRoadmapNotFound
func (m *Manager) loadGraph(ctx context.Context, roadmapID string) (*models.RoadmapGraph, error) {
	g, err := m.graphs.GetRoadmap(ctx, roadmapID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roadmap %s: %w", roadmapID, err)
	}
	if g == nil {
		return nil, fmt.Errorf("roadmap %s: %w", roadmapID, ErrRoadmapNotFound)
	}
	return g, nil
}

// Toggle applies a completion toggle as an optimistic, reversible
// transaction: the cached view changes immediately, then the store call
// settles the transaction. On success the store's authoritative set
// overwrites the tentative state; on failure only the toggled exercise
// reverts and the error surfaces to the caller. No automatic retry.
func (m *Manager) Toggle(ctx context.Context, userID, roadmapID, exerciseID string, desired bool) error {
	release := m.acquireToggle(toggleKey{userID: userID, exerciseID: exerciseID})
	defer release()

	// Resolve the roadmap before touching any state; an unknown id must
	// fail cleanly without reaching the store
	g, err := m.loadGraph(ctx, roadmapID)
	if err != nil {
		return err
	}

	current, err := m.loadSet(ctx, userID)
	if err != nil {
		return err
	}

	pending := &pendingToggle{
		exerciseID:    exerciseID,
		previousState: current.Contains(exerciseID),
		targetState:   desired,
	}

	// Optimistic mutation: the cached view reflects the target state before
	// the store call so the caller's next read sees it immediately
	optimistic := current.Clone()
	if desired {
		optimistic.Add(exerciseID)
	} else {
		optimistic.Remove(exerciseID)
	}
	if err := m.cache.Write(ctx, userID, optimistic); err != nil {
		slog.Warn("tentative cache write failed", "error", err, "user", userID)
	}
	m.publish(ctx, userID, roadmapID, g, optimistic, false)

	// The store call must settle even if the caller goes away; a
	// subsequent read has to see the committed state
	storeCtx := context.WithoutCancel(ctx)

	var authoritative models.CompletionSet
	if desired {
		authoritative, err = m.store.MarkCompleted(storeCtx, userID, exerciseID)
	} else {
		authoritative, err = m.store.MarkUncompleted(storeCtx, userID, exerciseID)
	}

	if err != nil {
		m.rollback(storeCtx, userID, roadmapID, g, pending)
		return fmt.Errorf("toggle %s for user %s failed: %w", exerciseID, userID, err)
	}

	// Committed: the store's returned set is ground truth and may reflect
	// concurrent changes from other clients; it replaces the optimistic guess
	if err := m.cache.Write(storeCtx, userID, authoritative); err != nil {
		slog.Warn("cache write after commit failed", "error", err, "user", userID)
	}
	m.publish(storeCtx, userID, roadmapID, g, authoritative, true)

	slog.Info("exercise toggle committed",
		"user", userID,
		"roadmap", roadmapID,
		"exercise", exerciseID,
		"completed", desired,
	)
	return nil
}

// rollback reverts the toggled exercise to its pre-toggle state after a
// failed store call. Only the pending exercise's bit changes: another
// toggle for a different exercise may have committed meanwhile, and its
// result must survive.
func (m *Manager) rollback(ctx context.Context, userID, roadmapID string, g *models.RoadmapGraph, pending *pendingToggle) {
	restored, err := m.loadSet(ctx, userID)
	if err != nil {
		// No usable view; drop the cache entry so the tentative state
		// cannot be served and the next read refetches
		if ierr := m.cache.Invalidate(ctx, userID); ierr != nil {
			slog.Error("failed to invalidate cache on rollback", "error", ierr, "user", userID)
		}
		slog.Warn("exercise toggle rolled back without local view",
			"user", userID, "exercise", pending.exerciseID, "error", err)
		return
	}

	if pending.previousState {
		restored.Add(pending.exerciseID)
	} else {
		restored.Remove(pending.exerciseID)
	}
	if err := m.cache.Write(ctx, userID, restored); err != nil {
		if ierr := m.cache.Invalidate(ctx, userID); ierr != nil {
			slog.Error("failed to restore cache on rollback", "error", ierr, "user", userID)
		}
	}
	m.publish(ctx, userID, roadmapID, g, restored, false)

	slog.Warn("exercise toggle rolled back",
		"user", userID,
		"roadmap", roadmapID,
		"exercise", pending.exerciseID,
		"restored_state", pending.previousState,
	)
}

// Report builds the full per-user progress view for a roadmap
func (m *Manager) Report(ctx context.Context, userID, roadmapID string) (*models.ProgressReport, error) {
	g, err := m.loadGraph(ctx, roadmapID)
	if err != nil {
		return nil, err
	}

	set, err := m.loadSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	roadmapSnap := progress.RoadmapProgress(g, set)
	if violated(roadmapSnap) {
		// Defensive: discard the view and recompute off fresh store state
		// rather than propagate a corrupted snapshot
		set, err = m.refetch(ctx, userID)
		if err != nil {
			return nil, err
		}
		roadmapSnap = progress.RoadmapProgress(g, set)
	}

	nodes := make([]models.ProgressSnapshot, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, progress.NodeProgress(n, set))
	}

	return &models.ProgressReport{
		Roadmap:   roadmapSnap,
		Nodes:     nodes,
		Completed: set.IDs(),
	}, nil
}

// Annotate attaches the derived per-user completed flag to every exercise
// of a graph copy; the stored graph itself is never mutated
func (m *Manager) Annotate(ctx context.Context, userID string, g *models.RoadmapGraph) (*models.RoadmapGraph, error) {
	set, err := m.loadSet(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := *g
	out.Nodes = make([]models.RoadmapNode, len(g.Nodes))
	for i, n := range g.Nodes {
		node := n
		node.Exercises = make([]models.Exercise, len(n.Exercises))
		for j, ex := range n.Exercises {
			ex.Completed = set.Contains(ex.ID)
			node.Exercises[j] = ex
		}
		out.Nodes[i] = node
	}
	return &out, nil
}

// InvalidateUser drops the cached view so the next read refetches from the
// store. Exposed for the two recompute triggers: completion-set changes
// made elsewhere and roadmap content changes.
func (m *Manager) InvalidateUser(ctx context.Context, userID string) error {
	return m.cache.Invalidate(ctx, userID)
}

// loadSet returns the user's completion set: cache first, then store
// (read-through). The cache miss after TTL expiry is what bounds staleness
// against changes made by other clients.
func (m *Manager) loadSet(ctx context.Context, userID string) (models.CompletionSet, error) {
	cached, hit, err := m.cache.Read(ctx, userID)
	if err != nil {
		slog.Warn("cache read failed, falling through to store", "error", err, "user", userID)
	} else if hit {
		return cached, nil
	}

	return m.refetch(ctx, userID)
}

// refetch loads fresh state from the store and repopulates the cache
func (m *Manager) refetch(ctx context.Context, userID string) (models.CompletionSet, error) {
	set, err := m.store.Completed(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completions for user %s: %w", userID, err)
	}

	if err := m.cache.Write(ctx, userID, set); err != nil {
		slog.Warn("cache write after refetch failed", "error", err, "user", userID)
	}
	return set.Clone(), nil
}

// publish recomputes snapshots off the given fully-consistent set and
// notifies subscribers. Milestones are only evaluated on settled state so
// an optimistic guess that later rolls back cannot celebrate.
func (m *Manager) publish(ctx context.Context, userID, roadmapID string, g *models.RoadmapGraph, set models.CompletionSet, settled bool) {
	roadmapSnap := progress.RoadmapProgress(g, set)
	if violated(roadmapSnap) {
		slog.Error("progress snapshot violates completed<=total, discarding view",
			"user", userID, "roadmap", roadmapID,
			"completed", roadmapSnap.Completed, "total", roadmapSnap.Total,
		)
		fresh, err := m.refetch(ctx, userID)
		if err != nil {
			return
		}
		set = fresh
		roadmapSnap = progress.RoadmapProgress(g, set)
	}

	update := ViewUpdate{
		UserID:    userID,
		RoadmapID: roadmapID,
		Roadmap:   roadmapSnap,
	}
	for _, n := range g.Nodes {
		update.Nodes = append(update.Nodes, progress.NodeProgress(n, set))
	}

	m.subMu.RLock()
	subscribers := m.subscribers
	m.subMu.RUnlock()
	for _, fn := range subscribers {
		fn(update)
	}

	if settled {
		m.detector.Observe(userID, roadmapID, roadmapSnap.Percentage)
	}
}

func violated(snap models.ProgressSnapshot) bool {
	return snap.Completed > snap.Total || snap.Percentage < 0 || snap.Percentage > 100
}

// IsNotFound reports whether the error is a missing user, exercise, or
// roadmap record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrExerciseNotFound) ||
		errors.Is(err, ErrRoadmapNotFound)
}

// IsUnavailable reports whether the error is a transient store failure
// that the caller may retry manually
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// Package progress keeps an in-memory snapshot of each check's run, fed by
// stage events, for polling clients.
package progress

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/stage"
)

// Default retention for snapshots of finished and abandoned runs.
const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Snapshot is the latest known state of one check's run.
type Snapshot struct {
	CheckID   string                  `json:"check_id"`
	Status    model.CheckStatus       `json:"status"`
	Progress  int                     `json:"progress"`
	Stages    []model.ProcessingStage `json:"stages"`
	Done      bool                    `json:"done"`
	Error     string                  `json:"error,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (s *Snapshot) clone() Snapshot {
	out := *s
	out.Stages = make([]model.ProcessingStage, len(s.Stages))
	for i, st := range s.Stages {
		out.Stages[i] = st.Clone()
	}
	return out
}

// Tracker stores snapshots keyed by check ID.
type Tracker struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewTracker creates a Tracker. Zero durations select the defaults.
func NewTracker(ttl, cleanupInterval time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Tracker{cache: gocache.New(ttl, cleanupInterval), ttl: ttl}
}

// Consume applies events until ctx is done or events is closed.
func (t *Tracker) Consume(ctx context.Context, events <-chan stage.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Apply(ev)
		}
	}
}

// Apply folds one event into the check's snapshot.
func (t *Tracker) Apply(ev stage.Event) {
	if ev.CheckID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.load(ev.CheckID)
	switch ev.Kind {
	case stage.EventStage:
		if ev.Stage == nil {
			return
		}
		// A new run starts at ingestion; drop whatever the last run left.
		if ev.Stage.Name == model.StageIngestion && ev.Stage.Status == model.StageStatusProcessing {
			snap = newSnapshot(ev.CheckID)
		}
		snap.Status = model.CheckStatusProcessing
		setStage(snap, ev.Stage.Clone())
		snap.Progress = overall(snap.Stages)
	case stage.EventComplete:
		snap.Status = ev.Status
		snap.Progress = 100
		snap.Done = true
	case stage.EventError:
		snap.Status = model.CheckStatusError
		snap.Error = ev.Error
		snap.Done = true
	default:
		zap.L().Debug("progress: unknown event kind", zap.String("kind", string(ev.Kind)))
		return
	}
	snap.UpdatedAt = ev.At
	t.cache.Set(ev.CheckID, snap, t.ttl)
}

// Get returns a copy of the check's snapshot.
func (t *Tracker) Get(checkID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.cache.Get(checkID)
	if !ok {
		return Snapshot{}, false
	}
	return v.(*Snapshot).clone(), true
}

// Forget drops the check's snapshot.
func (t *Tracker) Forget(checkID string) {
	t.cache.Delete(checkID)
}

func (t *Tracker) load(checkID string) *Snapshot {
	if v, ok := t.cache.Get(checkID); ok {
		return v.(*Snapshot)
	}
	return newSnapshot(checkID)
}

func newSnapshot(checkID string) *Snapshot {
	defs := model.StageDefinitions()
	snap := &Snapshot{CheckID: checkID, Stages: make([]model.ProcessingStage, 0, len(defs))}
	for _, d := range defs {
		snap.Stages = append(snap.Stages, model.ProcessingStage{Name: d.Name, Order: d.Order, Status: model.StageStatusPending})
	}
	return snap
}

func setStage(snap *Snapshot, s model.ProcessingStage) {
	for i := range snap.Stages {
		if snap.Stages[i].Name == s.Name {
			snap.Stages[i] = s
			return
		}
	}
	snap.Stages = append(snap.Stages, s)
}

// overall is the share of stages that reached a terminal state.
func overall(stages []model.ProcessingStage) int {
	if len(stages) == 0 {
		return 0
	}
	done := 0
	for _, s := range stages {
		if s.Status.Terminal() {
			done++
		}
	}
	return done * 100 / len(stages)
}

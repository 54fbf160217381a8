// Package stage tracks the lifecycle of the named pipeline stages for a
// single check and publishes every transition as an Event.
package stage

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
)

// Saver persists stage records. Save failures never interrupt processing.
type Saver interface {
	SaveProcessingStage(ctx context.Context, checkID string, s model.ProcessingStage) error
}

// Manager records stage transitions for one check. It is safe for
// concurrent use, since the two extraction stages run side by side.
type Manager struct {
	checkID string
	saver   Saver
	events  chan<- Event
	now     func() time.Time
	log     *zap.Logger

	mu     sync.Mutex
	stages map[model.StageName]*model.ProcessingStage
	order  []model.StageName
	active []model.StageName
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEvents publishes transitions on ch. Sends never block: when ch is full
// the event is dropped.
func WithEvents(ch chan<- Event) Option {
	return func(m *Manager) { m.events = ch }
}

// NewManager creates a Manager with every defined stage pending. saver may be nil.
func NewManager(checkID string, saver Saver, opts ...Option) *Manager {
	m := &Manager{
		checkID: checkID,
		saver:   saver,
		now:     time.Now,
		stages:  make(map[model.StageName]*model.ProcessingStage),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = zap.L().With(zap.String("check_id", checkID))
	for _, def := range model.StageDefinitions() {
		m.stages[def.Name] = &model.ProcessingStage{
			Name:   def.Name,
			Order:  def.Order,
			Status: model.StageStatusPending,
		}
		m.order = append(m.order, def.Name)
	}
	return m
}

// CheckID returns the check this manager tracks.
func (m *Manager) CheckID() string { return m.checkID }

// Init persists the pending record of every stage.
func (m *Manager) Init(ctx context.Context) {
	for _, s := range m.Stages() {
		m.save(ctx, s)
	}
}

// Start moves a pending stage to processing. Unknown and finished stages
// are left alone.
func (m *Manager) Start(ctx context.Context, name model.StageName) {
	m.transition(ctx, name, func(s *model.ProcessingStage, now time.Time) bool {
		if s.Status != model.StageStatusPending {
			return false
		}
		s.Status = model.StageStatusProcessing
		s.Progress = 0
		s.StartedAt = &now
		m.active = append(m.active, name)
		return true
	})
}

// UpdateProgress sets the progress percentage and merges data into the
// stage's accumulated data. The status is unchanged.
func (m *Manager) UpdateProgress(ctx context.Context, name model.StageName, pct int, data map[string]any) {
	m.transition(ctx, name, func(s *model.ProcessingStage, _ time.Time) bool {
		if s.Status.Terminal() {
			return false
		}
		s.Progress = min(max(pct, 0), 100)
		mergeData(s, data)
		return true
	})
}

// Complete marks a stage complete. A stage that never started completes
// with a zero duration.
func (m *Manager) Complete(ctx context.Context, name model.StageName, data map[string]any) {
	m.transition(ctx, name, func(s *model.ProcessingStage, now time.Time) bool {
		if s.Status.Terminal() {
			return false
		}
		m.finish(s, now)
		s.Status = model.StageStatusComplete
		s.Progress = 100
		mergeData(s, data)
		return true
	})
}

// Fail marks a stage as failed with message. Other stages are untouched.
func (m *Manager) Fail(ctx context.Context, name model.StageName, message string) {
	m.transition(ctx, name, func(s *model.ProcessingStage, now time.Time) bool {
		if s.Status.Terminal() {
			return false
		}
		m.finish(s, now)
		s.Status = model.StageStatusError
		s.ErrorMessage = message
		return true
	})
}

// Skip marks a stage that will not run.
func (m *Manager) Skip(ctx context.Context, name model.StageName, reason string) {
	m.transition(ctx, name, func(s *model.ProcessingStage, now time.Time) bool {
		if s.Status.Terminal() {
			return false
		}
		m.finish(s, now)
		s.Status = model.StageStatusSkipped
		mergeData(s, map[string]any{"reason": reason})
		return true
	})
}

// Current returns the most recently started stage that is still processing.
func (m *Manager) Current() (model.StageName, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.active) == 0 {
		return "", false
	}
	return m.active[len(m.active)-1], true
}

// FailCurrent fails every stage still processing, most recent first, and
// returns the one that was current.
func (m *Manager) FailCurrent(ctx context.Context, message string) (model.StageName, bool) {
	m.mu.Lock()
	active := append([]model.StageName(nil), m.active...)
	m.mu.Unlock()
	if len(active) == 0 {
		return "", false
	}
	for i := len(active) - 1; i >= 0; i-- {
		m.Fail(ctx, active[i], message)
	}
	return active[len(active)-1], true
}

// Get returns a copy of the named stage.
func (m *Manager) Get(name model.StageName) (model.ProcessingStage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stages[name]
	if !ok {
		return model.ProcessingStage{}, false
	}
	return s.Clone(), true
}

// Stages returns a copy of every stage in execution order.
func (m *Manager) Stages() []model.ProcessingStage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ProcessingStage, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.stages[name].Clone())
	}
	return out
}

// Publish sends a check-level event such as completion or failure.
func (m *Manager) Publish(ev Event) {
	if ev.CheckID == "" {
		ev.CheckID = m.checkID
	}
	if ev.At.IsZero() {
		ev.At = m.now()
	}
	if m.events == nil {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.log.Debug("stage: event dropped, channel full", zap.String("kind", string(ev.Kind)))
	}
}

// transition applies fn to the named stage under the lock and, when fn
// reports a change, persists and publishes the new state.
func (m *Manager) transition(ctx context.Context, name model.StageName, fn func(*model.ProcessingStage, time.Time) bool) {
	m.mu.Lock()
	s, ok := m.stages[name]
	if !ok {
		m.mu.Unlock()
		m.log.Debug("stage: unknown stage", zap.String("stage", string(name)))
		return
	}
	now := m.now()
	if !fn(s, now) {
		m.mu.Unlock()
		return
	}
	snapshot := s.Clone()
	m.mu.Unlock()

	m.save(ctx, snapshot)
	m.Publish(Event{Kind: EventStage, Stage: &snapshot, At: now})
}

// finish stamps completion time and duration and drops the stage from the
// active list. Callers hold m.mu.
func (m *Manager) finish(s *model.ProcessingStage, now time.Time) {
	s.CompletedAt = &now
	if s.StartedAt != nil {
		s.DurationMs = now.Sub(*s.StartedAt).Milliseconds()
	}
	for i, name := range m.active {
		if name == s.Name {
			m.active = append(m.active[:i], m.active[i+1:]...)
			break
		}
	}
}

func (m *Manager) save(ctx context.Context, s model.ProcessingStage) {
	if m.saver == nil {
		return
	}
	if err := m.saver.SaveProcessingStage(ctx, m.checkID, s); err != nil {
		m.log.Warn("stage: save failed",
			zap.String("stage", string(s.Name)),
			zap.String("status", string(s.Status)),
			zap.Error(err),
		)
	}
}

func mergeData(s *model.ProcessingStage, data map[string]any) {
	if len(data) == 0 {
		return
	}
	if s.Data == nil {
		s.Data = make(map[string]any, len(data))
	}
	maps.Copy(s.Data, data)
}

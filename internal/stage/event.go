package stage

import (
	"time"

	"github.com/sells-group/check-cli/internal/model"
)

// EventKind distinguishes stage transitions from check-level outcomes.
type EventKind string

const (
	EventStage    EventKind = "stage"
	EventComplete EventKind = "processing_complete"
	EventError    EventKind = "processing_error"
)

// Event is a progress notification for one check.
type Event struct {
	Kind    EventKind              `json:"kind"`
	CheckID string                 `json:"check_id"`
	Stage   *model.ProcessingStage `json:"stage,omitempty"`
	Status  model.CheckStatus      `json:"status,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]any         `json:"data,omitempty"`
	At      time.Time              `json:"at"`
}

// NewEvents creates a buffered channel sized for a few concurrent checks.
func NewEvents(checks int) chan Event {
	return make(chan Event, max(checks, 1)*len(model.StageDefinitions())*4)
}

package model

import "time"

// StageName identifies a pipeline stage.
type StageName string

const (
	StageIngestion       StageName = "ingestion"
	StagePreprocessing   StageName = "preprocessing"
	StageSegmentation    StageName = "segmentation"
	StageEngineA         StageName = "engine_a_extraction"
	StageEngineB         StageName = "engine_b_extraction"
	StageHybridSelection StageName = "hybrid_selection"
	StageValidation      StageName = "validation"
	StageComplete        StageName = "complete"
)

// StageDefinition pairs a stage name with its execution order.
type StageDefinition struct {
	Name  StageName
	Order int
}

// StageDefinitions returns the ordered stages every check passes through.
func StageDefinitions() []StageDefinition {
	return []StageDefinition{
		{StageIngestion, 1},
		{StagePreprocessing, 2},
		{StageSegmentation, 3},
		{StageEngineA, 4},
		{StageEngineB, 5},
		{StageHybridSelection, 6},
		{StageValidation, 7},
		{StageComplete, 8},
	}
}

// StageStatus is the state of a single stage.
type StageStatus string

const (
	StageStatusPending    StageStatus = "pending"
	StageStatusProcessing StageStatus = "processing"
	StageStatusComplete   StageStatus = "complete"
	StageStatusError      StageStatus = "error"
	StageStatusSkipped    StageStatus = "skipped"
)

// Terminal reports whether no further transition is allowed.
func (s StageStatus) Terminal() bool {
	return s == StageStatusComplete || s == StageStatusError || s == StageStatusSkipped
}

// ProcessingStage is the progress record of one stage for one check.
type ProcessingStage struct {
	Name         StageName      `json:"name"`
	Order        int            `json:"order"`
	Status       StageStatus    `json:"status"`
	Progress     int            `json:"progress"`
	Data         map[string]any `json:"data,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	ErrorMessage string         `json:"error_message,omitempty"`
}

// Clone returns a deep-enough copy safe to hand to other goroutines.
func (s ProcessingStage) Clone() ProcessingStage {
	out := s
	if s.Data != nil {
		out.Data = make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

package pipeline

import (
	"time"
)

// Stage identifiers, in execution order.
const (
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageExtract   = "extract"
	StageLong      = "long"
	StagePivot     = "pivot"
	StageRemark    = "remark"
	StageFlatten   = "flatten"
)

var stageNames = map[string]string{
	StageNormalize: "Ingestion Normalizer",
	StageResolve:   "Column Resolver",
	StageExtract:   "Role Projection",
	StageLong:      "Long Reshape",
	StagePivot:     "Re-pivot",
	StageRemark:    "Remark Engine",
	StageFlatten:   "Flatten",
}

// StageStatus represents the current status of a stage
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusActive    StageStatus = "active"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageState is the runtime record of one stage of a run.
type StageState struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    StageStatus `json:"status"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// NewStageState creates a pending stage.
func NewStageState(id string) *StageState {
	return &StageState{
		ID:     id,
		Name:   stageNames[id],
		Status: StageStatusPending,
	}
}

// Start marks the stage as active and sets the start time
func (s *StageState) Start() {
	now := time.Now()
	s.StartTime = &now
	s.Status = StageStatusActive
}

// Complete marks the stage as completed and sets the end time
func (s *StageState) Complete() {
	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusCompleted
}

// Fail marks the stage as failed with the given error
func (s *StageState) Fail(err error) {
	now := time.Now()
	s.EndTime = &now
	s.Status = StageStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Duration returns the duration of the stage execution
func (s *StageState) Duration() time.Duration {
	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

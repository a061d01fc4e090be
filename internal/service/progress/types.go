// Package progress provides real-time export state and progress tracking with
// subscriber broadcast. Snapshots handed to observers are immutable clones,
// so the single writer (the export worker) never races its readers.
package progress

import "time"

// State represents the current state of an export operation.
type State string

const (
	// StateIdle indicates the operation has not started.
	StateIdle State = "idle"
	// StatePreparing indicates source inspection and output setup.
	StatePreparing State = "preparing"
	// StateExporting indicates samples are being copied.
	StateExporting State = "exporting"
	// StateCompleted indicates the operation produced its output file.
	StateCompleted State = "completed"
	// StateError indicates the operation failed.
	StateError State = "error"
	// StateCancelled indicates the operation was cancelled by the caller.
	StateCancelled State = "cancelled"
)

// IsTerminal returns true for completed, error, or cancelled.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// IsActive returns true while the operation is running.
func (s State) IsActive() bool {
	return s != StateIdle && !s.IsTerminal()
}

// OperationType identifies the type of operation being tracked.
type OperationType string

// Operation types.
const (
	// OpVideoExport is a full export of a source container.
	OpVideoExport OperationType = "video_export"
)

// StageInfo describes a single stage within an operation. The overall
// progress is the weight-normalized sum of stage progress, so a video stage
// with weight 0.7 followed by an audio stage with weight 0.3 yields the
// fixed 70/30 split without any mapping code in the copy loop.
type StageInfo struct {
	// ID is the unique identifier for the stage.
	ID string `json:"id"`
	// Name is the human-readable stage name.
	Name string `json:"name"`
	// Weight determines the relative progress contribution (0.0 to 1.0).
	Weight float64 `json:"weight"`
	// State is the current state of the stage.
	State State `json:"state"`
	// Progress is the completion fraction within this stage (0.0 to 1.0).
	Progress float64 `json:"progress"`
	// Message describes the current activity.
	Message string `json:"message"`
	// StartedAt is when the stage started.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the stage completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Operation represents the complete progress of one export operation.
type Operation struct {
	// OperationID is the unique identifier for this operation.
	OperationID string `json:"operation_id"`
	// OperationType identifies what kind of operation this is.
	OperationType OperationType `json:"operation_type"`
	// OwnerKey identifies the resource that owns this operation, typically
	// the output path. Only one active operation may exist per owner.
	OwnerKey string `json:"owner_key"`
	// State is the overall operation state.
	State State `json:"state"`
	// Progress is the overall completion fraction (0.0 to 1.0). It is
	// monotonically non-decreasing within one operation.
	Progress float64 `json:"progress"`
	// Message is the current status message.
	Message string `json:"message"`
	// Stages contains progress for each stage.
	Stages []StageInfo `json:"stages"`
	// CurrentStageIndex is the index of the currently executing stage.
	CurrentStageIndex int `json:"current_stage_index"`
	// StartedAt is when the operation started.
	StartedAt time.Time `json:"started_at"`
	// UpdatedAt is when the progress was last updated.
	UpdatedAt time.Time `json:"updated_at"`
	// CompletedAt is when the operation completed (if terminal).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error contains error details if State is StateError.
	Error string `json:"error,omitempty"`
}

// Clone creates a deep copy of the operation for thread-safe reading.
func (p *Operation) Clone() *Operation {
	clone := *p
	clone.Stages = make([]StageInfo, len(p.Stages))
	copy(clone.Stages, p.Stages)
	return &clone
}

// CurrentStage returns the currently active stage, if any.
func (p *Operation) CurrentStage() *StageInfo {
	if p.CurrentStageIndex >= 0 && p.CurrentStageIndex < len(p.Stages) {
		return &p.Stages[p.CurrentStageIndex]
	}
	return nil
}

// Event is sent to subscribers when progress changes.
type Event struct {
	// EventType identifies the type of event.
	EventType string `json:"event_type"`
	// Operation contains the progress snapshot.
	Operation *Operation `json:"operation"`
	// Timestamp is when the event was generated.
	Timestamp time.Time `json:"timestamp"`
}

// Event types.
const (
	EventTypeProgress  = "progress"
	EventTypeCompleted = "completed"
	EventTypeError     = "error"
	EventTypeCancelled = "cancelled"
)

// eventTypeForState returns the event type matching a state.
func eventTypeForState(state State) string {
	switch state {
	case StateCompleted:
		return EventTypeCompleted
	case StateError:
		return EventTypeError
	case StateCancelled:
		return EventTypeCancelled
	default:
		return EventTypeProgress
	}
}

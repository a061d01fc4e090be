package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/astralstream/mediaexport/internal/observability"
)

// ErrOperationActive indicates an owner already has a running operation.
var ErrOperationActive = errors.New("operation already active for owner")

// Service tracks export operations and broadcasts progress events to
// subscribers. All snapshots returned from the service are clones.
type Service struct {
	mu          sync.RWMutex
	operations  map[string]*Operation
	activeOwner map[string]string
	subscribers map[string]chan *Event
	logger      *slog.Logger
}

// NewService creates a progress tracking service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		operations:  make(map[string]*Operation),
		activeOwner: make(map[string]string),
		subscribers: make(map[string]chan *Event),
		logger:      observability.WithComponent(logger, "progress"),
	}
}

// StartOperation registers a new operation for the given owner and returns a
// manager for updating it. Fails if the owner already has an active operation.
func (s *Service) StartOperation(opType OperationType, ownerKey string, stages []StageInfo) (*OperationManager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opID, ok := s.activeOwner[ownerKey]; ok {
		if op, exists := s.operations[opID]; exists && op.State.IsActive() {
			return nil, fmt.Errorf("%w: %s", ErrOperationActive, ownerKey)
		}
	}

	now := time.Now()
	stageCopy := make([]StageInfo, len(stages))
	copy(stageCopy, stages)
	for i := range stageCopy {
		stageCopy[i].State = StateIdle
		stageCopy[i].Progress = 0
	}

	op := &Operation{
		OperationID:       ulid.Make().String(),
		OperationType:     opType,
		OwnerKey:          ownerKey,
		State:             StatePreparing,
		Stages:            stageCopy,
		CurrentStageIndex: -1,
		StartedAt:         now,
		UpdatedAt:         now,
	}
	s.operations[op.OperationID] = op
	s.activeOwner[ownerKey] = op.OperationID

	s.logger.Debug("operation started",
		"operation_id", op.OperationID,
		"operation_type", opType,
		"owner_key", ownerKey)

	s.broadcastLocked(op)
	return &OperationManager{service: s, operationID: op.OperationID}, nil
}

// GetOperation returns a snapshot of an operation by ID.
func (s *Service) GetOperation(operationID string) (*Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	op, ok := s.operations[operationID]
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}

// GetActiveForOwner returns the active operation for an owner, if any.
func (s *Service) GetActiveForOwner(ownerKey string) (*Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	opID, ok := s.activeOwner[ownerKey]
	if !ok {
		return nil, false
	}
	op, exists := s.operations[opID]
	if !exists || !op.State.IsActive() {
		return nil, false
	}
	return op.Clone(), true
}

// ListOperations returns snapshots of all tracked operations.
func (s *Service) ListOperations() []*Operation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Operation, 0, len(s.operations))
	for _, op := range s.operations {
		out = append(out, op.Clone())
	}
	return out
}

// Subscribe registers a progress event channel and returns its ID. Events
// are dropped for subscribers that cannot keep up.
func (s *Service) Subscribe(buffer int) (string, <-chan *Event) {
	if buffer <= 0 {
		buffer = 16
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ulid.Make().String()
	ch := make(chan *Event, buffer)
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Service) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

// broadcastLocked sends a snapshot to all subscribers. Callers must hold mu.
func (s *Service) broadcastLocked(op *Operation) {
	if len(s.subscribers) == 0 {
		return
	}
	event := &Event{
		EventType: eventTypeForState(op.State),
		Operation: op.Clone(),
		Timestamp: time.Now(),
	}
	for id, ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			s.logger.Debug("dropping progress event for slow subscriber", "subscriber_id", id)
		}
	}
}

// recalculateLocked recomputes overall progress as the weight-normalized sum
// of stage progress. Overall progress never decreases within an operation.
func (s *Service) recalculateLocked(op *Operation) {
	var totalWeight, weighted float64
	for i := range op.Stages {
		totalWeight += op.Stages[i].Weight
		weighted += op.Stages[i].Weight * op.Stages[i].Progress
	}
	if totalWeight > 0 {
		overall := weighted / totalWeight
		if overall > op.Progress {
			op.Progress = overall
		}
	}
	op.UpdatedAt = time.Now()
}

// finishLocked moves an operation to a terminal state. Callers must hold mu.
func (s *Service) finishLocked(op *Operation, state State, errMsg string) {
	now := time.Now()
	op.State = state
	op.CompletedAt = &now
	op.UpdatedAt = now
	op.Error = errMsg
	if state == StateCompleted {
		op.Progress = 1.0
		for i := range op.Stages {
			op.Stages[i].State = StateCompleted
			op.Stages[i].Progress = 1.0
			if op.Stages[i].CompletedAt == nil {
				op.Stages[i].CompletedAt = &now
			}
		}
	}
	if cur := op.CurrentStage(); cur != nil && !cur.State.IsTerminal() {
		cur.State = state
		cur.CompletedAt = &now
	}
	delete(s.activeOwner, op.OwnerKey)
	s.broadcastLocked(op)
}

// OperationManager updates a single operation. Obtained from StartOperation
// and used by exactly one worker goroutine.
type OperationManager struct {
	service     *Service
	operationID string
}

// OperationID returns the ID of the managed operation.
func (m *OperationManager) OperationID() string {
	return m.operationID
}

// StartStage marks the stage at the given index as running and returns an
// updater for it. Any previously running stage is marked completed.
func (m *OperationManager) StartStage(index int, message string) *StageUpdater {
	s := m.service
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[m.operationID]
	if !ok || index < 0 || index >= len(op.Stages) {
		return &StageUpdater{manager: m, stageIndex: -1}
	}

	now := time.Now()
	if cur := op.CurrentStage(); cur != nil && cur.State == StateExporting {
		cur.State = StateCompleted
		cur.Progress = 1.0
		cur.CompletedAt = &now
	}

	stage := &op.Stages[index]
	stage.State = StateExporting
	stage.Message = message
	stage.StartedAt = &now
	op.CurrentStageIndex = index
	op.State = StateExporting
	op.Message = message

	s.recalculateLocked(op)
	s.broadcastLocked(op)
	return &StageUpdater{manager: m, stageIndex: index}
}

// Complete marks the operation as successfully finished.
func (m *OperationManager) Complete(message string) {
	s := m.service
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.operations[m.operationID]; ok && !op.State.IsTerminal() {
		op.Message = message
		s.finishLocked(op, StateCompleted, "")
	}
}

// Fail marks the operation as failed.
func (m *OperationManager) Fail(err error) {
	s := m.service
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.operations[m.operationID]; ok && !op.State.IsTerminal() {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		op.Message = "export failed"
		s.finishLocked(op, StateError, msg)
	}
}

// Cancel marks the operation as cancelled.
func (m *OperationManager) Cancel() {
	s := m.service
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.operations[m.operationID]; ok && !op.State.IsTerminal() {
		op.Message = "export cancelled"
		s.finishLocked(op, StateCancelled, "")
	}
}

// Snapshot returns the current state of the managed operation.
func (m *OperationManager) Snapshot() (*Operation, bool) {
	return m.service.GetOperation(m.operationID)
}

// StageUpdater reports progress within a single stage.
type StageUpdater struct {
	manager    *OperationManager
	stageIndex int
}

// SetProgress updates the stage's completion fraction. Values are clamped to
// [0,1] and the stage never moves backwards.
func (u *StageUpdater) SetProgress(fraction float64, message string) {
	if u.stageIndex < 0 {
		return
	}
	s := u.manager.service
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[u.manager.operationID]
	if !ok || op.State.IsTerminal() || u.stageIndex >= len(op.Stages) {
		return
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	stage := &op.Stages[u.stageIndex]
	if fraction > stage.Progress {
		stage.Progress = fraction
	}
	if message != "" {
		stage.Message = message
		op.Message = message
	}

	s.recalculateLocked(op)
	s.broadcastLocked(op)
}

// Done marks the stage as completed.
func (u *StageUpdater) Done() {
	if u.stageIndex < 0 {
		return
	}
	s := u.manager.service
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.operations[u.manager.operationID]
	if !ok || op.State.IsTerminal() || u.stageIndex >= len(op.Stages) {
		return
	}

	now := time.Now()
	stage := &op.Stages[u.stageIndex]
	stage.State = StateCompleted
	stage.Progress = 1.0
	stage.CompletedAt = &now

	s.recalculateLocked(op)
	s.broadcastLocked(op)
}

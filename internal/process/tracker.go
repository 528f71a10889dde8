// Package process holds the absence follow-up state machine: process grouping,
// step progression, pending checks, deletion rules and field requirements.
// Every function here is a pure computation over a Snapshot.
package process

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

// Snapshot is a read-only set of absence actions as delivered by the store.
// Functions in this package never modify a Snapshot or the slices they return from it.
type Snapshot []models.AbsenceAction

// NewSnapshot copies actions so later mutations by the caller are not observed.
func NewSnapshot(actions []models.AbsenceAction) Snapshot {
	out := make(Snapshot, len(actions))
	copy(out, actions)
	return out
}

// ForStudent returns the actions owned by studentID.
func (s Snapshot) ForStudent(studentID string) []models.AbsenceAction {
	out := make([]models.AbsenceAction, 0)
	for _, action := range s {
		if action.StudentID == studentID {
			out = append(out, action)
		}
	}
	return out
}

// ForProcess returns the actions that belong to processID.
func (s Snapshot) ForProcess(processID string) []models.AbsenceAction {
	out := make([]models.AbsenceAction, 0)
	for _, action := range s {
		if action.ProcessID == processID {
			out = append(out, action)
		}
	}
	return out
}

// Process is one escalation cycle of a student.
type Process struct {
	ID        string                 `json:"process_id"`
	StudentID string                 `json:"student_id"`
	Actions   []models.AbsenceAction `json:"actions"`
}

// Concluded reports whether the process reached analise.
func (p Process) Concluded() bool {
	for _, action := range p.Actions {
		if action.ActionType == models.ActionAnalysis {
			return true
		}
	}
	return false
}

// LastActivity is the newest created_at in the process.
func (p Process) LastActivity() time.Time {
	var latest time.Time
	for _, action := range p.Actions {
		if action.CreatedAt.After(latest) {
			latest = action.CreatedAt
		}
	}
	return latest
}

// Last returns the most recent action of the process.
func (p Process) Last() (models.AbsenceAction, bool) {
	if len(p.Actions) == 0 {
		return models.AbsenceAction{}, false
	}
	return p.Actions[len(p.Actions)-1], true
}

// Consistent checks that every type appears once and ranks grow with creation order.
func (p Process) Consistent() error {
	seen := make(map[models.AbsenceActionType]struct{}, len(p.Actions))
	prev := -1
	for _, action := range p.Actions {
		rank := action.ActionType.Rank()
		if rank < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownActionType, action.ActionType)
		}
		if _, dup := seen[action.ActionType]; dup {
			return fmt.Errorf("process %s has duplicate %s", p.ID, action.ActionType)
		}
		seen[action.ActionType] = struct{}{}
		if rank < prev {
			return fmt.Errorf("process %s has %s after a later step", p.ID, action.ActionType)
		}
		prev = rank
	}
	return nil
}

// SortActions returns a copy of actions ordered by created_at, then rank.
func SortActions(actions []models.AbsenceAction) []models.AbsenceAction {
	out := make([]models.AbsenceAction, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ActionType.Rank() < out[j].ActionType.Rank()
	})
	return out
}

// GroupProcesses splits a student's actions by process id. Processes are ordered
// oldest first by last activity; ties fall back to process id.
func GroupProcesses(studentID string, snapshot Snapshot) []Process {
	byID := make(map[string][]models.AbsenceAction)
	for _, action := range snapshot.ForStudent(studentID) {
		byID[action.ProcessID] = append(byID[action.ProcessID], action)
	}
	processes := make([]Process, 0, len(byID))
	for id, actions := range byID {
		processes = append(processes, Process{ID: id, StudentID: studentID, Actions: SortActions(actions)})
	}
	sort.Slice(processes, func(i, j int) bool {
		li, lj := processes[i].LastActivity(), processes[j].LastActivity()
		if !li.Equal(lj) {
			return li.Before(lj)
		}
		return processes[i].ID < processes[j].ID
	})
	return processes
}

// IDGenerator yields new process identifiers.
type IDGenerator func() string

// Tracker resolves the current process of a student.
type Tracker struct {
	newID IDGenerator
}

// NewTracker builds a Tracker. A nil generator falls back to random UUIDs.
func NewTracker(newID IDGenerator) *Tracker {
	if newID == nil {
		newID = uuid.NewString
	}
	return &Tracker{newID: newID}
}

// ProcessInfo describes where the next action of a student belongs.
type ProcessInfo struct {
	StudentID  string                 `json:"student_id"`
	ProcessID  string                 `json:"process_id"`
	NewProcess bool                   `json:"new_process"`
	Actions    []models.AbsenceAction `json:"actions"`
}

// StudentProcessInfo returns the open process of a student with its actions in
// creation order. When the latest process is concluded, or none exists, Actions
// is empty and ProcessID is a freshly generated id for the next cycle.
func (t *Tracker) StudentProcessInfo(studentID string, snapshot Snapshot) ProcessInfo {
	processes := GroupProcesses(studentID, snapshot)
	if len(processes) > 0 {
		latest := processes[len(processes)-1]
		if !latest.Concluded() {
			return ProcessInfo{StudentID: studentID, ProcessID: latest.ID, Actions: latest.Actions}
		}
	}
	return ProcessInfo{
		StudentID:  studentID,
		ProcessID:  t.newID(),
		NewProcess: true,
		Actions:    []models.AbsenceAction{},
	}
}

// NextActionForStudent returns the step the student's next action must have.
func (t *Tracker) NextActionForStudent(studentID string, snapshot Snapshot) (models.AbsenceActionType, error) {
	info := t.StudentProcessInfo(studentID, snapshot)
	return NextActionInProcess(info.Actions)
}

// NextActionInProcess returns the successor of the last action in actions,
// which must already be in creation order. An empty cycle starts at tentativa_1.
func NextActionInProcess(actions []models.AbsenceAction) (models.AbsenceActionType, error) {
	if len(actions) == 0 {
		return models.ActionAttempt1, nil
	}
	last := actions[len(actions)-1]
	if !last.ActionType.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownActionType, last.ActionType)
	}
	next, ok := last.ActionType.Next()
	if !ok {
		return "", ErrProcessConcluded
	}
	return next, nil
}

// ValidateTransition checks that requested may be appended to actions.
func ValidateTransition(actions []models.AbsenceAction, requested models.AbsenceActionType) error {
	expected, err := NextActionInProcess(actions)
	if err != nil {
		return err
	}
	if requested != expected {
		return &TransitionError{Requested: requested, Expected: expected}
	}
	return nil
}

// PendingStatus reports whether the last step still blocks progression.
type PendingStatus struct {
	Pending    bool                     `json:"pending"`
	ActionID   string                   `json:"action_id,omitempty"`
	ActionType models.AbsenceActionType `json:"action_type,omitempty"`
	Missing    []Field                  `json:"missing_fields,omitempty"`
	Reason     string                   `json:"reason,omitempty"`
}

// Err converts a pending status into a *PendingStepError, or nil.
func (s PendingStatus) Err() error {
	if !s.Pending {
		return nil
	}
	return &PendingStepError{Status: s}
}

// LastActionPending inspects the last action of a cycle in creation order.
func LastActionPending(actions []models.AbsenceAction) PendingStatus {
	if len(actions) == 0 {
		return PendingStatus{}
	}
	last := actions[len(actions)-1]
	missing := MissingOutcomes(last)
	if len(missing) == 0 {
		return PendingStatus{}
	}
	return PendingStatus{
		Pending:    true,
		ActionID:   last.ID,
		ActionType: last.ActionType,
		Missing:    missing,
		Reason:     fmt.Sprintf("%s is pending: fill in %s before registering the next step", last.ActionType.Label(), joinFields(missing)),
	}
}

// MissingOutcomes lists the outcome fields of action that are still unanswered.
func MissingOutcomes(action models.AbsenceAction) []Field {
	missing := make([]Field, 0, 2)
	for _, field := range outcomeFields(action.ActionType) {
		if !filled(action, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

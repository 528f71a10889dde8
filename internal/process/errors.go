package process

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

var (
	// ErrProcessConcluded is returned when a successor is requested for a process that already has an analise step.
	ErrProcessConcluded = errors.New("process already concluded")
	// ErrInvalidTransition is matched by *TransitionError.
	ErrInvalidTransition = errors.New("invalid process transition")
	// ErrStepPending is matched by *PendingStepError.
	ErrStepPending = errors.New("last step is pending")
	// ErrDeletionBlocked is matched by *DeletionBlockedError.
	ErrDeletionBlocked = errors.New("deletion blocked by later step")
	// ErrUnknownActionType flags a record whose type is outside the sequence.
	ErrUnknownActionType = errors.New("unknown absence action type")
)

// TransitionError reports a requested step that is not the expected successor.
type TransitionError struct {
	Requested models.AbsenceActionType
	Expected  models.AbsenceActionType
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot register %s: next step is %s", e.Requested, e.Expected)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// PendingStepError wraps the pending status that blocked a new step.
type PendingStepError struct {
	Status PendingStatus
}

func (e *PendingStepError) Error() string {
	return e.Status.Reason
}

// Is lets errors.Is match ErrStepPending.
func (e *PendingStepError) Is(target error) bool {
	return target == ErrStepPending
}

// DeletionBlockedError names the step that prevents a deletion.
type DeletionBlockedError struct {
	Target    models.AbsenceActionType
	BlockedBy models.AbsenceActionType
}

func (e *DeletionBlockedError) Error() string {
	return fmt.Sprintf("cannot delete %s while %s exists in the same process; delete later steps first", e.Target, e.BlockedBy)
}

// Is lets errors.Is match ErrDeletionBlocked.
func (e *DeletionBlockedError) Is(target error) bool {
	return target == ErrDeletionBlocked
}

func joinFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

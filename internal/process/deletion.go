package process

import "github.com/noah-isme/busca-ativa-api/internal/models"

// DeletionVerdict is the outcome of CanDelete.
type DeletionVerdict int

const (
	DeletionAllowed DeletionVerdict = iota
	DeletionBlockedByLaterStep
)

func (v DeletionVerdict) String() string {
	if v == DeletionBlockedByLaterStep {
		return "blocked_by_later_step"
	}
	return "allowed"
}

// DeletionDecision carries the verdict and, when blocked, the latest later step.
type DeletionDecision struct {
	Verdict  DeletionVerdict
	Target   models.AbsenceAction
	Blocking *models.AbsenceAction
}

// Allowed reports whether the deletion may go ahead.
func (d DeletionDecision) Allowed() bool {
	return d.Verdict == DeletionAllowed
}

// Err returns a *DeletionBlockedError for blocked decisions.
func (d DeletionDecision) Err() error {
	if d.Allowed() || d.Blocking == nil {
		return nil
	}
	return &DeletionBlockedError{Target: d.Target.ActionType, BlockedBy: d.Blocking.ActionType}
}

// dependentOf maps a step to the step that is deleted along with it.
var dependentOf = map[models.AbsenceActionType]models.AbsenceActionType{
	models.ActionCouncilReport: models.ActionAnalysis,
}

// CanDelete refuses to delete target while a later step of the same process
// exists. A dependent step that PlanDeletion would cascade does not block.
func CanDelete(target models.AbsenceAction, processActions []models.AbsenceAction) DeletionDecision {
	targetRank := target.ActionType.Rank()
	dependent, hasDependent := dependentOf[target.ActionType]

	var blocking *models.AbsenceAction
	for i := range processActions {
		sibling := processActions[i]
		if sibling.ID == target.ID || sibling.ProcessID != target.ProcessID {
			continue
		}
		if sibling.ActionType.Rank() <= targetRank {
			continue
		}
		if hasDependent && sibling.ActionType == dependent {
			continue
		}
		if blocking == nil || sibling.ActionType.Rank() > blocking.ActionType.Rank() {
			blocking = &processActions[i]
		}
	}
	if blocking != nil {
		found := *blocking
		return DeletionDecision{Verdict: DeletionBlockedByLaterStep, Target: target, Blocking: &found}
	}
	return DeletionDecision{Verdict: DeletionAllowed, Target: target}
}

// DeletionPlan lists the records removed together. A non-empty CascadeID means
// both ids must be deleted in one atomic batch.
type DeletionPlan struct {
	PrimaryID string `json:"primary_id"`
	CascadeID string `json:"cascade_id,omitempty"`
}

// Atomic reports whether the plan spans two records.
func (p DeletionPlan) Atomic() bool {
	return p.CascadeID != ""
}

// IDs returns the primary id followed by the cascade id when present.
func (p DeletionPlan) IDs() []string {
	if p.Atomic() {
		return []string{p.PrimaryID, p.CascadeID}
	}
	return []string{p.PrimaryID}
}

// PlanDeletion resolves the records to delete for target. Deleting an
// encaminhamento_ct takes the analise of the same process with it.
func PlanDeletion(target models.AbsenceAction, processActions []models.AbsenceAction) DeletionPlan {
	plan := DeletionPlan{PrimaryID: target.ID}
	dependent, ok := dependentOf[target.ActionType]
	if !ok {
		return plan
	}
	for _, sibling := range processActions {
		if sibling.ID == target.ID || sibling.ProcessID != target.ProcessID {
			continue
		}
		if sibling.ActionType == dependent {
			plan.CascadeID = sibling.ID
			break
		}
	}
	return plan
}

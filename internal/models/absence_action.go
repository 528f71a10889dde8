package models

import "time"

// AbsenceActionType identifies a step of the absence follow-up process.
type AbsenceActionType string

const (
	ActionAttempt1      AbsenceActionType = "tentativa_1"
	ActionAttempt2      AbsenceActionType = "tentativa_2"
	ActionAttempt3      AbsenceActionType = "tentativa_3"
	ActionHomeVisit     AbsenceActionType = "visita"
	ActionCouncilReport AbsenceActionType = "encaminhamento_ct"
	ActionAnalysis      AbsenceActionType = "analise"
)

// AbsenceActionSequence is the fixed escalation order. Index is rank.
var AbsenceActionSequence = []AbsenceActionType{
	ActionAttempt1,
	ActionAttempt2,
	ActionAttempt3,
	ActionHomeVisit,
	ActionCouncilReport,
	ActionAnalysis,
}

// Rank returns the position in AbsenceActionSequence, or -1 for unknown types.
func (t AbsenceActionType) Rank() int {
	for i, candidate := range AbsenceActionSequence {
		if candidate == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t belongs to the sequence.
func (t AbsenceActionType) Valid() bool {
	return t.Rank() >= 0
}

// Next returns the step that follows t. ok is false for analise and unknown types.
func (t AbsenceActionType) Next() (AbsenceActionType, bool) {
	rank := t.Rank()
	if rank < 0 || rank+1 >= len(AbsenceActionSequence) {
		return "", false
	}
	return AbsenceActionSequence[rank+1], true
}

// Before reports whether t comes strictly earlier than other.
func (t AbsenceActionType) Before(other AbsenceActionType) bool {
	return t.Rank() < other.Rank()
}

// IsContactAttempt reports whether t is one of the three contact tries.
func (t AbsenceActionType) IsContactAttempt() bool {
	return t == ActionAttempt1 || t == ActionAttempt2 || t == ActionAttempt3
}

// Label returns a human readable step name.
func (t AbsenceActionType) Label() string {
	switch t {
	case ActionAttempt1:
		return "1ª tentativa de contato"
	case ActionAttempt2:
		return "2ª tentativa de contato"
	case ActionAttempt3:
		return "3ª tentativa de contato"
	case ActionHomeVisit:
		return "Visita domiciliar"
	case ActionCouncilReport:
		return "Encaminhamento ao Conselho Tutelar"
	case ActionAnalysis:
		return "Análise"
	default:
		return string(t)
	}
}

// AbsenceAction is one step of a student's absence follow-up process.
type AbsenceAction struct {
	ID         string            `db:"id" json:"id"`
	StudentID  string            `db:"student_id" json:"student_id"`
	ProcessID  string            `db:"process_id" json:"process_id"`
	ActionType AbsenceActionType `db:"action_type" json:"action_type"`

	PeriodStart  *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd    *time.Time `db:"period_end" json:"period_end,omitempty"`
	AbsenceCount *int       `db:"absence_count" json:"absence_count,omitempty"`

	MeetingDate *time.Time `db:"meeting_date" json:"meeting_date,omitempty"`
	MeetingTime string     `db:"meeting_time" json:"meeting_time,omitempty"`

	ContactSucceeded Answer     `db:"contact_succeeded" json:"contact_succeeded"`
	ContactPerson    string     `db:"contact_person" json:"contact_person,omitempty"`
	ContactDate      *time.Time `db:"contact_date" json:"contact_date,omitempty"`
	ContactReason    string     `db:"contact_reason" json:"contact_reason,omitempty"`
	ContactReturned  Answer     `db:"contact_returned" json:"contact_returned"`

	VisitAgent         string     `db:"visit_agent" json:"visit_agent,omitempty"`
	VisitDate          *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	VisitSucceeded     Answer     `db:"visit_succeeded" json:"visit_succeeded"`
	VisitContactPerson string     `db:"visit_contact_person" json:"visit_contact_person,omitempty"`
	VisitReason        string     `db:"visit_reason" json:"visit_reason,omitempty"`
	VisitReturned      Answer     `db:"visit_returned" json:"visit_returned"`

	CTSentDate *time.Time `db:"ct_sent_date" json:"ct_sent_date,omitempty"`
	CTFeedback string     `db:"ct_feedback" json:"ct_feedback,omitempty"`
	CTReturned Answer     `db:"ct_returned" json:"ct_returned"`

	AnalysisNotes string `db:"analysis_notes" json:"analysis_notes,omitempty"`

	CreatedBy string    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AbsenceActionFilter narrows absence action listings.
type AbsenceActionFilter struct {
	StudentID   string
	ProcessID   string
	ActionTypes []AbsenceActionType
	Page        int
	PageSize    int
}

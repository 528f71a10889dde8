package process

import (
	"strings"

	"github.com/noah-isme/busca-ativa-api/internal/models"
)

// Field names a form field of an absence action. Values match the JSON keys.
type Field string

const (
	FieldPeriodStart        Field = "period_start"
	FieldPeriodEnd          Field = "period_end"
	FieldAbsenceCount       Field = "absence_count"
	FieldMeetingDate        Field = "meeting_date"
	FieldMeetingTime        Field = "meeting_time"
	FieldContactSucceeded   Field = "contact_succeeded"
	FieldContactPerson      Field = "contact_person"
	FieldContactDate        Field = "contact_date"
	FieldContactReason      Field = "contact_reason"
	FieldContactReturned    Field = "contact_returned"
	FieldVisitAgent         Field = "visit_agent"
	FieldVisitDate          Field = "visit_date"
	FieldVisitSucceeded     Field = "visit_succeeded"
	FieldVisitContactPerson Field = "visit_contact_person"
	FieldVisitReason        Field = "visit_reason"
	FieldVisitReturned      Field = "visit_returned"
	FieldCTSentDate         Field = "ct_sent_date"
	FieldCTFeedback         Field = "ct_feedback"
	FieldCTReturned         Field = "ct_returned"
	FieldAnalysisNotes      Field = "analysis_notes"
)

var absenceDataFields = []Field{FieldPeriodStart, FieldPeriodEnd, FieldAbsenceCount}

var requiredByType = map[models.AbsenceActionType][]Field{
	models.ActionAttempt1:      {FieldMeetingDate, FieldMeetingTime},
	models.ActionAttempt2:      {FieldMeetingDate, FieldMeetingTime},
	models.ActionAttempt3:      {FieldMeetingDate, FieldMeetingTime},
	models.ActionHomeVisit:     {FieldVisitAgent, FieldVisitDate},
	models.ActionCouncilReport: {FieldCTSentDate},
	models.ActionAnalysis:      {},
}

// ConditionalRule activates Fields while Trigger holds a yes answer.
type ConditionalRule struct {
	Trigger Field   `json:"trigger"`
	Fields  []Field `json:"fields"`
}

// ConditionalRules returns the trigger rules of a step type.
func ConditionalRules(t models.AbsenceActionType) []ConditionalRule {
	rules := conditionalByType[t]
	out := make([]ConditionalRule, len(rules))
	copy(out, rules)
	return out
}

var conditionalByType = map[models.AbsenceActionType][]ConditionalRule{
	models.ActionAttempt1:  {{Trigger: FieldContactSucceeded, Fields: []Field{FieldContactPerson, FieldContactDate, FieldContactReason}}},
	models.ActionAttempt2:  {{Trigger: FieldContactSucceeded, Fields: []Field{FieldContactPerson, FieldContactDate, FieldContactReason}}},
	models.ActionAttempt3:  {{Trigger: FieldContactSucceeded, Fields: []Field{FieldContactPerson, FieldContactDate, FieldContactReason}}},
	models.ActionHomeVisit: {{Trigger: FieldVisitSucceeded, Fields: []Field{FieldVisitContactPerson, FieldVisitReason}}},
}

// outcomeFields lists what must be answered before the step stops being pending.
func outcomeFields(t models.AbsenceActionType) []Field {
	switch {
	case t.IsContactAttempt():
		return []Field{FieldContactSucceeded, FieldContactReturned}
	case t == models.ActionHomeVisit:
		return []Field{FieldVisitSucceeded, FieldVisitReturned}
	case t == models.ActionCouncilReport:
		return []Field{FieldCTFeedback, FieldCTReturned}
	default:
		return nil
	}
}

// RequiredFields returns the fields a step cannot be saved without. Contact
// attempts that open a cycle also carry the absence period and count.
func RequiredFields(t models.AbsenceActionType, firstInCycle bool) []Field {
	base := requiredByType[t]
	out := make([]Field, 0, len(base)+len(absenceDataFields))
	out = append(out, base...)
	if firstInCycle && t.IsContactAttempt() {
		out = append(out, absenceDataFields...)
	}
	return out
}

// ConditionalFields returns the sub-fields switched on by the current answers in action.
func ConditionalFields(action models.AbsenceAction) []Field {
	out := make([]Field, 0)
	for _, rule := range conditionalByType[action.ActionType] {
		if answerOf(action, rule.Trigger) == models.AnswerYes {
			out = append(out, rule.Fields...)
		}
	}
	return out
}

// ActiveRequirements is RequiredFields plus ConditionalFields for the form state in action.
func ActiveRequirements(action models.AbsenceAction, firstInCycle bool) []Field {
	return append(RequiredFields(action.ActionType, firstInCycle), ConditionalFields(action)...)
}

// MissingFields lists active requirements that are still blank in action.
func MissingFields(action models.AbsenceAction, firstInCycle bool) []Field {
	missing := make([]Field, 0)
	for _, field := range ActiveRequirements(action, firstInCycle) {
		if !filled(action, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// ClearInactiveFields returns a copy of action with conditional sub-fields
// blanked whenever their trigger is not a yes answer.
func ClearInactiveFields(action models.AbsenceAction) models.AbsenceAction {
	for _, rule := range conditionalByType[action.ActionType] {
		if answerOf(action, rule.Trigger) == models.AnswerYes {
			continue
		}
		for _, field := range rule.Fields {
			clearField(&action, field)
		}
	}
	return action
}

// IsFirstInCycle reports whether action is the earliest step of its process.
func IsFirstInCycle(action models.AbsenceAction, processActions []models.AbsenceAction) bool {
	for _, sibling := range processActions {
		if sibling.ID == action.ID || sibling.ProcessID != action.ProcessID {
			continue
		}
		if sibling.ActionType.Before(action.ActionType) {
			return false
		}
	}
	return true
}

func answerOf(action models.AbsenceAction, field Field) models.Answer {
	switch field {
	case FieldContactSucceeded:
		return action.ContactSucceeded
	case FieldContactReturned:
		return action.ContactReturned
	case FieldVisitSucceeded:
		return action.VisitSucceeded
	case FieldVisitReturned:
		return action.VisitReturned
	case FieldCTReturned:
		return action.CTReturned
	default:
		return models.AnswerUnanswered
	}
}

func filled(action models.AbsenceAction, field Field) bool {
	switch field {
	case FieldPeriodStart:
		return action.PeriodStart != nil
	case FieldPeriodEnd:
		return action.PeriodEnd != nil
	case FieldAbsenceCount:
		return action.AbsenceCount != nil
	case FieldMeetingDate:
		return action.MeetingDate != nil
	case FieldMeetingTime:
		return notBlank(action.MeetingTime)
	case FieldContactPerson:
		return notBlank(action.ContactPerson)
	case FieldContactDate:
		return action.ContactDate != nil
	case FieldContactReason:
		return notBlank(action.ContactReason)
	case FieldVisitAgent:
		return notBlank(action.VisitAgent)
	case FieldVisitDate:
		return action.VisitDate != nil
	case FieldVisitContactPerson:
		return notBlank(action.VisitContactPerson)
	case FieldVisitReason:
		return notBlank(action.VisitReason)
	case FieldCTSentDate:
		return action.CTSentDate != nil
	case FieldCTFeedback:
		return notBlank(action.CTFeedback)
	case FieldAnalysisNotes:
		return notBlank(action.AnalysisNotes)
	case FieldContactSucceeded, FieldContactReturned, FieldVisitSucceeded, FieldVisitReturned, FieldCTReturned:
		return answerOf(action, field).Answered()
	default:
		return false
	}
}

func clearField(action *models.AbsenceAction, field Field) {
	switch field {
	case FieldContactPerson:
		action.ContactPerson = ""
	case FieldContactDate:
		action.ContactDate = nil
	case FieldContactReason:
		action.ContactReason = ""
	case FieldVisitContactPerson:
		action.VisitContactPerson = ""
	case FieldVisitReason:
		action.VisitReason = ""
	}
}

func notBlank(value string) bool {
	return strings.TrimSpace(value) != ""
}

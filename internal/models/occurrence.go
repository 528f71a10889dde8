package models

import "time"

// OccurrenceSeverity grades a disciplinary occurrence.
type OccurrenceSeverity string

const (
	SeverityMinor    OccurrenceSeverity = "leve"
	SeverityModerate OccurrenceSeverity = "moderada"
	SeveritySerious  OccurrenceSeverity = "grave"
)

// Valid reports whether s is a known severity.
func (s OccurrenceSeverity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityModerate, SeveritySerious:
		return true
	default:
		return false
	}
}

// Occurrence captures a disciplinary incident for a student.
type Occurrence struct {
	ID               string             `db:"id" json:"id"`
	StudentID        string             `db:"student_id" json:"student_id"`
	OccurredAt       time.Time          `db:"occurred_at" json:"occurred_at"`
	Category         string             `db:"category" json:"category"`
	Severity         OccurrenceSeverity `db:"severity" json:"severity"`
	Description      string             `db:"description" json:"description"`
	MeasuresTaken    string             `db:"measures_taken" json:"measures_taken,omitempty"`
	GuardianNotified Answer             `db:"guardian_notified" json:"guardian_notified"`
	CreatedBy        string             `db:"created_by" json:"created_by"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// OccurrenceFilter allows listing occurrences.
type OccurrenceFilter struct {
	StudentID  string
	DateFrom   *time.Time
	DateTo     *time.Time
	Severities []OccurrenceSeverity
	Page       int
	PageSize   int
}

// OccurrenceSummary aggregates occurrence counts for a student.
type OccurrenceSummary struct {
	StudentID      string     `json:"student_id"`
	Total          int        `json:"total"`
	MinorCount     int        `json:"minor_count"`
	ModerateCount  int        `json:"moderate_count"`
	SeriousCount   int        `json:"serious_count"`
	LastOccurredAt *time.Time `json:"last_occurred_at,omitempty"`
}

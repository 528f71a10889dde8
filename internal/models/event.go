package models

import "time"

// RecordType names a persisted collection that emits change events.
type RecordType string

const (
	RecordAbsenceAction RecordType = "absence_action"
	RecordOccurrence    RecordType = "occurrence"
)

// ChangeKind describes what happened to a record.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// RecordEvent tells subscribers that their snapshot of a collection is outdated.
type RecordEvent struct {
	ID         string     `json:"id"`
	RecordType RecordType `json:"record_type"`
	Change     ChangeKind `json:"change"`
	RecordIDs  []string   `json:"record_ids"`
	StudentID  string     `json:"student_id,omitempty"`
	ProcessID  string     `json:"process_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

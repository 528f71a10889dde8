package models

import "time"

// Student is a learner listed in the school directory.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Enrollment   string    `db:"enrollment" json:"enrollment"`
	FullName     string    `db:"full_name" json:"full_name"`
	ClassName    string    `db:"class_name" json:"class_name"`
	Shift        string    `db:"shift" json:"shift,omitempty"`
	GuardianName string    `db:"guardian_name" json:"guardian_name,omitempty"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ClassName string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

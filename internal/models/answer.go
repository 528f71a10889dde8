package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Answer is the tri-state outcome of a yes/no question on a follow-up form.
type Answer string

const (
	AnswerUnanswered Answer = ""
	AnswerYes        Answer = "yes"
	AnswerNo         Answer = "no"
)

// ParseAnswer normalises raw input. Blank input is Unanswered.
func ParseAnswer(raw string) (Answer, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "unanswered":
		return AnswerUnanswered, nil
	case "yes", "sim":
		return AnswerYes, nil
	case "no", "nao", "não":
		return AnswerNo, nil
	default:
		return AnswerUnanswered, fmt.Errorf("invalid answer %q", raw)
	}
}

// Answered reports whether a yes or no has been recorded.
func (a Answer) Answered() bool {
	return a == AnswerYes || a == AnswerNo
}

// Valid reports whether a holds one of the three states.
func (a Answer) Valid() bool {
	return a == AnswerUnanswered || a.Answered()
}

// MarshalJSON encodes Unanswered as null.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a == AnswerUnanswered {
		return []byte("null"), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON accepts null, "", "yes" and "no".
func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = AnswerUnanswered
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("answer must be a string: %w", err)
	}
	parsed, err := ParseAnswer(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Scan implements sql.Scanner. NULL scans to Unanswered.
func (a *Answer) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = AnswerUnanswered
		return nil
	case string:
		parsed, err := ParseAnswer(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := ParseAnswer(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Answer", src)
	}
}

// Value implements driver.Valuer. Unanswered is stored as NULL.
func (a Answer) Value() (driver.Value, error) {
	if a == AnswerUnanswered {
		return nil, nil
	}
	return string(a), nil
}

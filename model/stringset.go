package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/memoria-dev/memoria/helper"
)

// StringSet represents a set of surface forms stored as a JSONB array in
// PostgreSQL. Membership is case-insensitive; insertion order is kept so
// the stored aliases stay readable.
type StringSet []string

// Contains reports whether the set holds value, ignoring case.
func (s StringSet) Contains(value string) bool {
	for _, v := range s {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}

// Add appends value if it is not already present (case-insensitive).
func (s StringSet) Add(value string) StringSet {
	if s.Contains(value) {
		return s
	}
	return append(s, value)
}

// Value implements the driver.Valuer interface for database storage
func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// Scan implements the sql.Scanner interface for database retrieval
func (s *StringSet) Scan(value interface{}) error {
	if value == nil {
		*s = StringSet{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, s)
}

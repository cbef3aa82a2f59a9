package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Criterion operators
const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// Criterion is one field test inside a scoring rule.
type Criterion struct {
	Field    string      `json:"field" yaml:"field"`
	Operator string      `json:"operator" yaml:"operator"`
	Value    interface{} `json:"value" yaml:"value"`
	Points   int         `json:"points" yaml:"points"`
}

// Criteria is stored as a JSON array.
type Criteria []Criterion

// Value implements driver.Valuer for Criteria. JSON goes out as text so
// the driver does not encode it as bytea.
func (c Criteria) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for Criteria
func (c *Criteria) Scan(value interface{}) error {
	if value == nil {
		*c = Criteria{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Criteria", value)
	}

	return json.Unmarshal(data, c)
}

// ScoringRule is a named, toggleable set of criteria.
type ScoringRule struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Criteria    Criteria   `json:"criteria" db:"criteria"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ScoringRuleForm is the create/update payload for a rule.
type ScoringRuleForm struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Criteria    Criteria `json:"criteria" binding:"required"`
	IsActive    *bool    `json:"is_active"`
}

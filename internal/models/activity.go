package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity types
const (
	ActivityCall    = "Call"
	ActivityEmail   = "Email"
	ActivityMeeting = "Meeting"
	ActivityTask    = "Task"
)

// Activity statuses
const (
	ActivityPlanned   = "Planned"
	ActivityCompleted = "Completed"
	ActivityCancelled = "Cancelled"
)

// Activity is a logged or planned interaction.
type Activity struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Subject       string     `json:"subject" db:"subject"`
	Type          string     `json:"type" db:"type"`
	Status        string     `json:"status" db:"status"`
	Priority      string     `json:"priority" db:"priority"`
	Description   string     `json:"description,omitempty" db:"description"`
	DueDate       *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedDate *time.Time `json:"completed_date,omitempty" db:"completed_date"`
	LeadID        *uuid.UUID `json:"lead_id,omitempty" db:"lead_id"`
	OpportunityID *uuid.UUID `json:"opportunity_id,omitempty" db:"opportunity_id"`
	AccountID     *uuid.UUID `json:"account_id,omitempty" db:"account_id"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

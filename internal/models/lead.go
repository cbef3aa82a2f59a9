package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lead statuses
const (
	LeadStatusNew       = "New"
	LeadStatusContacted = "Contacted"
	LeadStatusQualified = "Qualified"
	LeadStatusNurturing = "Nurturing"
	LeadStatusConverted = "Converted"
	LeadStatusLost      = "Lost"
)

// DefaultLeadSource is used when a lead is created without a source.
const DefaultLeadSource = "Manual"

var leadStatuses = map[string]bool{
	LeadStatusNew:       true,
	LeadStatusContacted: true,
	LeadStatusQualified: true,
	LeadStatusNurturing: true,
	LeadStatusConverted: true,
	LeadStatusLost:      true,
}

// IsValidLeadStatus reports whether s is a known lead status.
func IsValidLeadStatus(s string) bool {
	return leadStatuses[s]
}

// Lead is a prospective customer.
type Lead struct {
	ID             uuid.UUID           `json:"id" db:"id"`
	FirstName      string              `json:"first_name" db:"first_name"`
	LastName       string              `json:"last_name" db:"last_name"`
	Email          string              `json:"email" db:"email"`
	Phone          string              `json:"phone,omitempty" db:"phone"`
	Company        string              `json:"company,omitempty" db:"company"`
	JobTitle       string              `json:"job_title,omitempty" db:"job_title"`
	Industry       string              `json:"industry,omitempty" db:"industry"`
	Source         string              `json:"source" db:"source"`
	Status         string              `json:"status" db:"status"`
	Score          int                 `json:"score" db:"score"`
	Budget         decimal.NullDecimal `json:"budget" db:"budget"`
	Timeline       string              `json:"timeline,omitempty" db:"timeline"`
	Notes          string              `json:"notes,omitempty" db:"notes"`
	Website        string              `json:"website,omitempty" db:"website"`
	WebsiteSummary string              `json:"website_summary,omitempty" db:"website_summary"`
	AssignedTo     *uuid.UUID          `json:"assigned_to,omitempty" db:"assigned_to"`
	ScoredAt       *time.Time          `json:"scored_at,omitempty" db:"scored_at"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

// FullName joins first and last name.
func (l *Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// IsConverted returns true once the lead has become a customer.
func (l *Lead) IsConverted() bool {
	return l.Status == LeadStatusConverted
}

// LeadInput carries writable lead fields for create and update. Nil pointers
// leave the existing value untouched on update.
type LeadInput struct {
	FirstName  *string          `json:"first_name"`
	LastName   *string          `json:"last_name"`
	Email      *string          `json:"email"`
	Phone      *string          `json:"phone"`
	Company    *string          `json:"company"`
	JobTitle   *string          `json:"job_title"`
	Industry   *string          `json:"industry"`
	Source     *string          `json:"source"`
	Status     *string          `json:"status"`
	Budget     *decimal.Decimal `json:"budget"`
	Timeline   *string          `json:"timeline"`
	Notes      *string          `json:"notes"`
	Website    *string          `json:"website"`
	AssignedTo *uuid.UUID       `json:"assigned_to"`
}

// Apply copies the non-nil fields of in onto l.
func (in LeadInput) Apply(l *Lead) {
	setString(&l.FirstName, in.FirstName)
	setString(&l.LastName, in.LastName)
	setString(&l.Email, in.Email)
	setString(&l.Phone, in.Phone)
	setString(&l.Company, in.Company)
	setString(&l.JobTitle, in.JobTitle)
	setString(&l.Industry, in.Industry)
	setString(&l.Source, in.Source)
	setString(&l.Status, in.Status)
	setString(&l.Timeline, in.Timeline)
	setString(&l.Notes, in.Notes)
	setString(&l.Website, in.Website)
	if in.Budget != nil {
		l.Budget = decimal.NewNullDecimal(*in.Budget)
	}
	if in.AssignedTo != nil {
		id := *in.AssignedTo
		l.AssignedTo = &id
	}
	l.Email = strings.ToLower(strings.TrimSpace(l.Email))
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

// LeadFilters narrows lead listings.
type LeadFilters struct {
	Status   string `form:"status"`
	Source   string `form:"source"`
	Industry string `form:"industry"`
	Search   string `form:"search"`
	MinScore *int   `form:"min_score"`
	MaxScore *int   `form:"max_score"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

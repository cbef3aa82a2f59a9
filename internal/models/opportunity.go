package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Opportunity stages
const (
	StageProspecting   = "Prospecting"
	StageQualification = "Qualification"
	StageProposal      = "Proposal"
	StageNegotiation   = "Negotiation"
	StageClosedWon     = "Closed Won"
	StageClosedLost    = "Closed Lost"
)

// Stages lists the pipeline stages in order.
var Stages = []string{
	StageProspecting,
	StageQualification,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

// OpenStages are stages that still count toward the forecast.
var OpenStages = map[string]bool{
	StageProspecting:   true,
	StageQualification: true,
	StageProposal:      true,
	StageNegotiation:   true,
}

// StageIndex returns the position of stage in Stages, or -1.
func StageIndex(stage string) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}

// IsClosedStage reports whether stage ends the opportunity.
func IsClosedStage(stage string) bool {
	return stage == StageClosedWon || stage == StageClosedLost
}

// Opportunity is a potential deal in the pipeline.
type Opportunity struct {
	ID                uuid.UUID           `json:"id" db:"id"`
	Name              string              `json:"name" db:"name"`
	AccountID         *uuid.UUID          `json:"account_id,omitempty" db:"account_id"`
	ContactID         *uuid.UUID          `json:"contact_id,omitempty" db:"contact_id"`
	LeadID            *uuid.UUID          `json:"lead_id,omitempty" db:"lead_id"`
	Stage             string              `json:"stage" db:"stage"`
	Amount            decimal.NullDecimal `json:"amount" db:"amount"`
	Probability       int                 `json:"probability" db:"probability"`
	ExpectedCloseDate *time.Time          `json:"expected_close_date,omitempty" db:"expected_close_date"`
	ActualCloseDate   *time.Time          `json:"actual_close_date,omitempty" db:"actual_close_date"`
	Type              string              `json:"type,omitempty" db:"type"`
	Source            string              `json:"source,omitempty" db:"source"`
	Description       string              `json:"description,omitempty" db:"description"`
	AssignedTo        *uuid.UUID          `json:"assigned_to,omitempty" db:"assigned_to"`
	CreatedAt         time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at" db:"updated_at"`
}

// OpportunityInput carries writable opportunity fields.
type OpportunityInput struct {
	Name              *string          `json:"name"`
	AccountID         *uuid.UUID       `json:"account_id"`
	ContactID         *uuid.UUID       `json:"contact_id"`
	LeadID            *uuid.UUID       `json:"lead_id"`
	Stage             *string          `json:"stage"`
	Amount            *decimal.Decimal `json:"amount"`
	Probability       *int             `json:"probability"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	Type              *string          `json:"type"`
	Source            *string          `json:"source"`
	Description       *string          `json:"description"`
	AssignedTo        *uuid.UUID       `json:"assigned_to"`
}

// Apply copies the non-nil fields of in onto o.
func (in OpportunityInput) Apply(o *Opportunity) {
	setString(&o.Name, in.Name)
	setString(&o.Stage, in.Stage)
	setString(&o.Type, in.Type)
	setString(&o.Source, in.Source)
	setString(&o.Description, in.Description)
	if in.AccountID != nil {
		o.AccountID = in.AccountID
	}
	if in.ContactID != nil {
		o.ContactID = in.ContactID
	}
	if in.LeadID != nil {
		o.LeadID = in.LeadID
	}
	if in.Amount != nil {
		o.Amount = decimal.NewNullDecimal(*in.Amount)
	}
	if in.Probability != nil {
		o.Probability = *in.Probability
	}
	if in.ExpectedCloseDate != nil {
		o.ExpectedCloseDate = in.ExpectedCloseDate
	}
	if in.AssignedTo != nil {
		o.AssignedTo = in.AssignedTo
	}
}

// OpportunityFilters narrows opportunity listings.
type OpportunityFilters struct {
	Stage     string     `form:"stage"`
	AccountID *uuid.UUID `form:"account_id"`
	Limit     int        `form:"limit"`
	Offset    int        `form:"offset"`
}

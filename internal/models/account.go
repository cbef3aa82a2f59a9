package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a customer organization.
type Account struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	Name          string              `json:"name" db:"name"`
	Industry      string              `json:"industry,omitempty" db:"industry"`
	Website       string              `json:"website,omitempty" db:"website"`
	AnnualRevenue decimal.NullDecimal `json:"annual_revenue" db:"annual_revenue"`
	EmployeeCount *int                `json:"employee_count,omitempty" db:"employee_count"`
	Status        string              `json:"status" db:"status"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

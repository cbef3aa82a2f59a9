// Package analytics computes pipeline and conversion metrics from lead and
// opportunity collections. Every function is pure over its inputs and the
// injected clock.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// DaysPerMonth is the month length used for forecast horizons.
const DaysPerMonth = 30

var hundred = decimal.NewFromInt(100)

// Clock returns the current time.
type Clock func() time.Time

// Aggregator computes CRM metrics.
type Aggregator struct {
	now Clock
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides time.Now, mainly for tests.
func WithClock(c Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.now = c
		}
	}
}

// NewAggregator creates an Aggregator using the wall clock in UTC.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StageBucket summarizes the opportunities in one stage.
type StageBucket struct {
	Stage       string          `json:"stage"`
	Count       int             `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// ConversionResult is the lead conversion rate over a window.
type ConversionResult struct {
	TotalLeads     int     `json:"total_leads"`
	ConvertedLeads int     `json:"converted_leads"`
	ConversionRate float64 `json:"conversion_rate"`
	PeriodDays     int     `json:"period_days"`
}

// CLVResult is the average revenue per won customer.
type CLVResult struct {
	TotalRevenue          decimal.Decimal `json:"total_revenue"`
	CustomerCount         int             `json:"customer_count"`
	CustomerLifetimeValue decimal.Decimal `json:"customer_lifetime_value"`
}

// ForecastResult is the probability-weighted value of open opportunities
// expected to close within the horizon.
type ForecastResult struct {
	ForecastAmount   decimal.Decimal `json:"forecast_amount"`
	OpportunityCount int             `json:"opportunity_count"`
	Period           string          `json:"period"`
	PeriodEnd        time.Time       `json:"period_end"`
}

// PipelineByStage groups opportunities by stage. Null amounts count toward
// the stage but add nothing to its total. Buckets come back in pipeline order
// with unknown stages last, alphabetically.
func (a *Aggregator) PipelineByStage(opps []models.Opportunity) []StageBucket {
	index := make(map[string]int)
	buckets := make([]StageBucket, 0)

	for _, o := range opps {
		i, ok := index[o.Stage]
		if !ok {
			i = len(buckets)
			index[o.Stage] = i
			buckets = append(buckets, StageBucket{Stage: o.Stage, TotalAmount: decimal.Zero})
		}
		buckets[i].Count++
		if o.Amount.Valid {
			buckets[i].TotalAmount = buckets[i].TotalAmount.Add(o.Amount.Decimal)
		}
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return stageLess(buckets[i].Stage, buckets[j].Stage)
	})
	return buckets
}

func stageLess(a, b string) bool {
	ia, ib := models.StageIndex(a), models.StageIndex(b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia < ib
	case ia >= 0:
		return true
	case ib >= 0:
		return false
	default:
		return a < b
	}
}

// LeadConversionRate is the share of leads created within the last windowDays
// that are Converted, as a percentage rounded to two decimals.
func (a *Aggregator) LeadConversionRate(leads []models.Lead, windowDays int) ConversionResult {
	start := a.now().AddDate(0, 0, -windowDays)

	res := ConversionResult{PeriodDays: windowDays}
	for _, l := range leads {
		if l.CreatedAt.Before(start) {
			continue
		}
		res.TotalLeads++
		if l.Status == models.LeadStatusConverted {
			res.ConvertedLeads++
		}
	}

	res.ConversionRate = percent(res.ConvertedLeads, res.TotalLeads)
	return res
}

// CustomerLifetimeValue divides won revenue by the number of distinct
// accounts that produced it.
func (a *Aggregator) CustomerLifetimeValue(opps []models.Opportunity) CLVResult {
	revenue := decimal.Zero
	accounts := make(map[uuid.UUID]struct{})

	for _, o := range opps {
		if o.Stage != models.StageClosedWon || !o.Amount.Valid {
			continue
		}
		revenue = revenue.Add(o.Amount.Decimal)
		if o.AccountID != nil {
			accounts[*o.AccountID] = struct{}{}
		}
	}

	res := CLVResult{
		TotalRevenue:          revenue,
		CustomerCount:         len(accounts),
		CustomerLifetimeValue: decimal.Zero,
	}
	if res.CustomerCount > 0 {
		res.CustomerLifetimeValue = revenue.Div(decimal.NewFromInt(int64(res.CustomerCount))).Round(2)
	}
	return res
}

// SalesForecast sums amount*probability/100 over open opportunities whose
// expected close date falls within months*30 days from now. Opportunities
// without an expected close date are outside every horizon.
func (a *Aggregator) SalesForecast(opps []models.Opportunity, months int) ForecastResult {
	end := a.now().AddDate(0, 0, months*DaysPerMonth)

	total := decimal.Zero
	count := 0
	for _, o := range opps {
		if !models.OpenStages[o.Stage] {
			continue
		}
		if o.ExpectedCloseDate == nil || o.ExpectedCloseDate.After(end) {
			continue
		}
		count++
		if o.Amount.Valid {
			total = total.Add(weighted(o))
		}
	}

	return ForecastResult{
		ForecastAmount:   total.Round(2),
		OpportunityCount: count,
		Period:           fmt.Sprintf("%d months", months),
		PeriodEnd:        end,
	}
}

func weighted(o models.Opportunity) decimal.Decimal {
	return o.Amount.Decimal.Mul(decimal.NewFromInt(int64(o.Probability))).Div(hundred)
}

// percent returns part/whole*100 rounded to two decimals, or 0 if whole is 0.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(hundred).
		Div(decimal.NewFromInt(int64(whole))).
		Round(2).
		InexactFloat64()
}

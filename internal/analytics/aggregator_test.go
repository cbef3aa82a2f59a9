package analytics

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestAggregator() *Aggregator {
	return NewAggregator(WithClock(func() time.Time { return fixedNow }))
}

func amount(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func daysFromNow(d int) *time.Time {
	t := fixedNow.AddDate(0, 0, d)
	return &t
}

func opp(stage string, amt decimal.NullDecimal, prob int, account *uuid.UUID, closeIn *time.Time) models.Opportunity {
	return models.Opportunity{
		ID:                uuid.New(),
		Stage:             stage,
		Amount:            amt,
		Probability:       prob,
		AccountID:         account,
		ExpectedCloseDate: closeIn,
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestPipelineByStage(t *testing.T) {
	Convey("Given opportunities across stages", t, func() {
		agg := newTestAggregator()
		opps := []models.Opportunity{
			opp(models.StageProposal, amount(1000), 50, nil, nil),
			opp(models.StageProspecting, amount(250), 10, nil, nil),
			opp(models.StageProposal, decimal.NullDecimal{}, 50, nil, nil),
			opp(models.StageProposal, amount(500), 50, nil, nil),
			opp("Parked", amount(7), 0, nil, nil),
		}

		Convey("When grouped by stage", func() {
			buckets := agg.PipelineByStage(opps)

			Convey("Then counts sum to the input size", func() {
				total := 0
				for _, b := range buckets {
					total += b.Count
				}
				So(total, ShouldEqual, len(opps))
			})

			Convey("Then null amounts count but add nothing", func() {
				So(buckets[1].Stage, ShouldEqual, models.StageProposal)
				So(buckets[1].Count, ShouldEqual, 3)
				So(buckets[1].TotalAmount.Equal(decimal.NewFromInt(1500)), ShouldBeTrue)
			})

			Convey("Then known stages come first in pipeline order", func() {
				So(buckets[0].Stage, ShouldEqual, models.StageProspecting)
				So(buckets[len(buckets)-1].Stage, ShouldEqual, "Parked")
			})
		})

		Convey("When there are no opportunities", func() {
			So(agg.PipelineByStage(nil), ShouldBeEmpty)
		})
	})
}

func TestLeadConversionRate(t *testing.T) {
	Convey("Given leads inside and outside a 30 day window", t, func() {
		agg := newTestAggregator()
		var leads []models.Lead
		for i := 0; i < 10; i++ {
			status := models.LeadStatusNew
			if i < 3 {
				status = models.LeadStatusConverted
			}
			leads = append(leads, models.Lead{Status: status, CreatedAt: fixedNow.AddDate(0, 0, -i)})
		}
		// Converted but too old to count.
		leads = append(leads, models.Lead{Status: models.LeadStatusConverted, CreatedAt: fixedNow.AddDate(0, 0, -45)})

		Convey("When the rate is computed", func() {
			res := agg.LeadConversionRate(leads, 30)

			Convey("Then only windowed leads are counted", func() {
				So(res.TotalLeads, ShouldEqual, 10)
				So(res.ConvertedLeads, ShouldEqual, 3)
				So(res.ConversionRate, ShouldEqual, 30.0)
				So(res.PeriodDays, ShouldEqual, 30)
			})
		})

		Convey("When a lead sits exactly on the window start", func() {
			edge := []models.Lead{{Status: models.LeadStatusConverted, CreatedAt: fixedNow.AddDate(0, 0, -30)}}
			So(agg.LeadConversionRate(edge, 30).TotalLeads, ShouldEqual, 1)
		})

		Convey("When no lead falls in the window", func() {
			res := agg.LeadConversionRate(nil, 30)
			So(res.TotalLeads, ShouldEqual, 0)
			So(res.ConversionRate, ShouldEqual, 0)
		})

		Convey("When the rate is a repeating fraction", func() {
			three := []models.Lead{
				{Status: models.LeadStatusConverted, CreatedAt: fixedNow},
				{Status: models.LeadStatusNew, CreatedAt: fixedNow},
				{Status: models.LeadStatusNew, CreatedAt: fixedNow},
			}
			So(agg.LeadConversionRate(three, 30).ConversionRate, ShouldEqual, 33.33)
		})
	})
}

func TestCustomerLifetimeValue(t *testing.T) {
	Convey("Given won opportunities for two accounts", t, func() {
		agg := newTestAggregator()
		acme, globex := uuid.New(), uuid.New()
		opps := []models.Opportunity{
			opp(models.StageClosedWon, amount(10000), 100, ptr(acme), nil),
			opp(models.StageClosedWon, amount(20000), 100, ptr(globex), nil),
			opp(models.StageClosedLost, amount(99999), 0, ptr(uuid.New()), nil),
			opp(models.StageClosedWon, decimal.NullDecimal{}, 100, ptr(uuid.New()), nil),
		}

		Convey("When CLV is computed", func() {
			res := agg.CustomerLifetimeValue(opps)

			So(res.TotalRevenue.Equal(decimal.NewFromInt(30000)), ShouldBeTrue)
			So(res.CustomerCount, ShouldEqual, 2)
			So(res.CustomerLifetimeValue.Equal(decimal.NewFromInt(15000)), ShouldBeTrue)
		})

		Convey("When a won deal has no account", func() {
			res := agg.CustomerLifetimeValue(append(opps, opp(models.StageClosedWon, amount(3000), 100, nil, nil)))

			So(res.TotalRevenue.Equal(decimal.NewFromInt(33000)), ShouldBeTrue)
			So(res.CustomerCount, ShouldEqual, 2)
			So(res.CustomerLifetimeValue.Equal(decimal.NewFromInt(16500)), ShouldBeTrue)
		})

		Convey("When there are no won opportunities", func() {
			res := agg.CustomerLifetimeValue(opps[2:3])
			So(res.CustomerCount, ShouldEqual, 0)
			So(res.CustomerLifetimeValue.IsZero(), ShouldBeTrue)
		})
	})
}

func TestSalesForecast(t *testing.T) {
	Convey("Given open and closed opportunities", t, func() {
		agg := newTestAggregator()

		Convey("When one Qualification deal closes within three months", func() {
			opps := []models.Opportunity{
				opp(models.StageQualification, amount(100000), 40, nil, daysFromNow(30)),
			}
			res := agg.SalesForecast(opps, 3)

			So(res.ForecastAmount.Equal(decimal.NewFromInt(40000)), ShouldBeTrue)
			So(res.OpportunityCount, ShouldEqual, 1)
			So(res.Period, ShouldEqual, "3 months")
		})

		Convey("When opportunities are closed, undated or beyond the horizon", func() {
			opps := []models.Opportunity{
				opp(models.StageNegotiation, amount(1000), 75, nil, daysFromNow(90)),
				opp(models.StageNegotiation, amount(1000), 75, nil, daysFromNow(91)),
				opp(models.StageClosedWon, amount(5000), 100, nil, daysFromNow(1)),
				opp(models.StageProspecting, amount(5000), 10, nil, nil),
				opp(models.StageQualification, decimal.NullDecimal{}, 25, nil, daysFromNow(-5)),
			}
			res := agg.SalesForecast(opps, 3)

			Convey("Then only open, dated, in-horizon deals count", func() {
				So(res.OpportunityCount, ShouldEqual, 2)
				So(res.ForecastAmount.Equal(decimal.NewFromInt(750)), ShouldBeTrue)
			})
		})

		Convey("When weighted amounts need rounding", func() {
			opps := []models.Opportunity{
				opp(models.StageProposal, decimal.NewNullDecimal(decimal.RequireFromString("333.33")), 33, nil, daysFromNow(1)),
			}
			res := agg.SalesForecast(opps, 1)
			So(res.ForecastAmount.String(), ShouldEqual, "110")
		})

		Convey("When there is nothing to forecast", func() {
			res := agg.SalesForecast(nil, 3)
			So(res.ForecastAmount.IsZero(), ShouldBeTrue)
			So(res.OpportunityCount, ShouldEqual, 0)
		})
	})
}

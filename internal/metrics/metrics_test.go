package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
)

func TestManagerCounters(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := NewManager()

		Convey("When domain events are recorded", func() {
			m.LeadScored()
			m.LeadScored()
			m.RescoreLead("updated")
			m.RescoreLead("failed")
			m.RescoreLead("updated")
			m.RescoreCycle(time.Unix(1700000000, 0))
			m.EnrichmentResult("success")
			m.EventPublished("lead.created", nil)
			m.EventPublished("lead.created", errors.New("broker down"))

			Convey("Then the counters reflect them", func() {
				So(testutil.ToFloat64(m.leadsScored), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rescoreLeads.WithLabelValues("updated")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.rescoreLeads.WithLabelValues("failed")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.rescoreCycles), ShouldEqual, 1)
				So(testutil.ToFloat64(m.rescoreLast), ShouldEqual, 1700000000)
				So(testutil.ToFloat64(m.enrichmentRequests.WithLabelValues("success")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsPublished.WithLabelValues("lead.created", "failure")), ShouldEqual, 1)
			})
		})

		Convey("When two managers exist", func() {
			other := NewManager(WithNamespace("other"))

			Convey("Then they do not share registries", func() {
				So(other.Registry(), ShouldNotEqual, m.Registry())
			})
		})
	})
}

func TestScoringObserver(t *testing.T) {
	Convey("Given an engine wired to the scoring observer", t, func() {
		m := NewManager()
		engine := scoring.NewEngine(scoring.WithObserver(NewScoringObserver(m, logger.NewNop())))

		rules := []models.ScoringRule{{
			Name:     "broken",
			IsActive: true,
			Criteria: models.Criteria{
				{Field: "industry", Operator: "starts_with", Value: "Tech", Points: 5},
				{Field: "shoe_size", Operator: "equals", Value: 42.0, Points: 5},
			},
		}}

		Convey("When a lead is scored", func() {
			score := engine.Score(&models.Lead{Industry: "Technology"}, rules)

			Convey("Then both skips are counted and nothing is awarded", func() {
				So(score, ShouldEqual, 0)
				So(testutil.ToFloat64(m.unknownOperators.WithLabelValues("starts_with")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.unknownFields.WithLabelValues("shoe_size")), ShouldEqual, 1)
			})
		})
	})
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	Convey("Given a router instrumented with the middleware", t, func() {
		m := NewManager()
		r := gin.New()
		r.Use(m.GinMiddleware())
		r.GET("/leads/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		r.GET("/metrics", gin.WrapH(m.Handler()))

		Convey("When requests are served", func() {
			for _, id := range []string{"a", "b"} {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/leads/"+id, nil))
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

			Convey("Then requests are grouped by route template", func() {
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/leads/:id", "204")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")), ShouldEqual, 1)
			})

			Convey("Then the metrics endpoint exposes them", func() {
				w := httptest.NewRecorder()
				r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(w.Body.String(), "crm_http_requests_total"), ShouldBeTrue)
			})
		})
	})
}

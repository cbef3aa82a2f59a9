package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

type countingRecorder struct {
	nopRecorder
	mu      sync.Mutex
	results map[string]int
	cycles  int
}

func (r *countingRecorder) RescoreLead(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result]++
}

func (r *countingRecorder) RescoreCycle(time.Time) { r.cycles++ }

func TestPipelineConfig_Validate(t *testing.T) {
	valid := PipelineConfig{BatchSize: 100, IntervalMinutes: 60, MaxConcurrent: 4}
	require.NoError(t, valid.Validate())

	tests := map[string]func(*PipelineConfig){
		"zero batch":     func(c *PipelineConfig) { c.BatchSize = 0 },
		"huge batch":     func(c *PipelineConfig) { c.BatchSize = 501 },
		"zero interval":  func(c *PipelineConfig) { c.IntervalMinutes = 0 },
		"no workers":     func(c *PipelineConfig) { c.MaxConcurrent = 0 },
		"negative age":   func(c *PipelineConfig) { c.RescoreOlderThanDays = -1 },
		"too many works": func(c *PipelineConfig) { c.MaxConcurrent = 65 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.Code(cfg.Validate()))
		})
	}
}

func TestRescorePipeline_RunOncePagesThroughLeads(t *testing.T) {
	rec := &countingRecorder{results: map[string]int{}}
	f := newFixture(func(d *Dependencies) { d.Recorder = rec })
	f.store.addRule(techRule())

	earlier := fixedNow.Add(-time.Hour)
	for i := 0; i < 3; i++ {
		f.store.addLead(models.Lead{FirstName: "T", LastName: "L", Email: "t@example.com", Industry: "Technology"})
	}
	for i := 0; i < 2; i++ {
		f.store.addLead(models.Lead{FirstName: "O", LastName: "L", Email: "o@example.com", ScoredAt: &earlier})
	}
	broken := f.store.addLead(models.Lead{FirstName: "B", LastName: "L", Email: "b@example.com", Industry: "Technology"})
	f.store.failUpdateScore[broken.ID] = true

	stats, err := f.services.Rescore.RunOnce(context.Background(), PipelineConfig{BatchSize: 2, IntervalMinutes: 1, MaxConcurrent: 2})
	require.NoError(t, err)

	assert.Equal(t, 6, stats.LeadsFound)
	assert.Equal(t, 6, stats.LeadsProcessed)
	assert.Equal(t, 3, stats.LeadsUpdated)
	assert.Equal(t, 2, stats.LeadsUnchanged)
	assert.Equal(t, 1, stats.LeadsFailed)
	assert.Equal(t, 1, stats.RulesApplied)
	assert.Equal(t, map[string]int{"updated": 3, "unchanged": 2, "failed": 1}, rec.results)
	assert.Equal(t, 1, rec.cycles)
	assert.Same(t, stats, f.services.Rescore.LastStats())

	for _, l := range f.store.leads {
		if l.ID == broken.ID {
			continue
		}
		require.NotNil(t, l.ScoredAt)
		assert.Equal(t, fixedNow, *l.ScoredAt)
	}
}

func TestRescorePipeline_NewOnly(t *testing.T) {
	f := newFixture()
	earlier := fixedNow.Add(-time.Hour)
	f.store.addLead(models.Lead{FirstName: "A", LastName: "B", Email: "a@example.com"})
	f.store.addLead(models.Lead{FirstName: "C", LastName: "D", Email: "c@example.com", ScoredAt: &earlier})

	stats, err := f.services.Rescore.RunOnce(context.Background(), PipelineConfig{BatchSize: 10, IntervalMinutes: 1, MaxConcurrent: 1, ProcessNewOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LeadsProcessed)
}

func TestRescorePipeline_OlderThanDays(t *testing.T) {
	f := newFixture()
	recent := fixedNow.AddDate(0, 0, -1)
	old := fixedNow.AddDate(0, 0, -10)
	f.store.addLead(models.Lead{FirstName: "A", LastName: "B", Email: "a@example.com", ScoredAt: &recent})
	f.store.addLead(models.Lead{FirstName: "C", LastName: "D", Email: "c@example.com", ScoredAt: &old})

	stats, err := f.services.Rescore.RunOnce(context.Background(), PipelineConfig{BatchSize: 10, IntervalMinutes: 1, MaxConcurrent: 1, RescoreOlderThanDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.LeadsProcessed)
}

func TestRescorePipeline_StartStop(t *testing.T) {
	f := newFixture()
	p := f.services.Rescore
	cfg := PipelineConfig{BatchSize: 10, IntervalMinutes: 60, MaxConcurrent: 1}

	assert.False(t, p.IsRunning())
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(p.Stop()))

	require.NoError(t, p.Start(cfg))
	assert.True(t, p.IsRunning())
	assert.Equal(t, errors.ErrCodeConflict, errors.Code(p.Start(cfg)))
	assert.Equal(t, cfg, p.Config())

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())

	require.NoError(t, p.Start(cfg))
	require.NoError(t, p.Stop())
}

func TestRescorePipeline_Status(t *testing.T) {
	f := newFixture()
	f.store.addLead(models.Lead{FirstName: "A", LastName: "B", Email: "a@example.com"})

	status, err := f.services.Rescore.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.IsRunning)
	assert.Equal(t, 1, status.TotalLeads)
	assert.Nil(t, status.LastRun)
	assert.Equal(t, 100, status.Config.BatchSize)
}

func TestPipelineStats_Summary(t *testing.T) {
	s := &PipelineStats{LeadsProcessed: 5, LeadsUpdated: 2, LeadsUnchanged: 2, LeadsFailed: 1, RulesApplied: 3, Duration: 1500 * time.Millisecond}
	assert.Equal(t, "processed=5, updated=2, unchanged=2, failed=1, rules=3, duration=1.5s", s.Summary())
}

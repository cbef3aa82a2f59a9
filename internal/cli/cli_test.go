package cli

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

type fakeEnricher struct {
	err   error
	calls []uuid.UUID
}

func (f *fakeEnricher) Enrich(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	f.calls = append(f.calls, id)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id, Score: 40}, nil
}

func TestEnrichHandler(t *testing.T) {
	leadID := uuid.New()
	event := events.ForLead(events.LeadEnrichmentRequested, leadID)

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"enriched", nil, false},
		{"lead deleted", errors.NotFound("lead not found", nil), false},
		{"no website", errors.InvalidInput("lead has no website", nil), false},
		{"fetch failed", errors.ServiceError("failed to enrich lead", stderrors.New("timeout")), true},
		{"plain error", stderrors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enricher := &fakeEnricher{err: tt.err}
			err := enrichHandler(enricher, logger.NewNop())(context.Background(), event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []uuid.UUID{leadID}, enricher.calls)
		})
	}
}

func TestEnrichHandlerRequiresLeadID(t *testing.T) {
	enricher := &fakeEnricher{}
	event, err := events.New(events.LeadEnrichmentRequested, nil, nil)
	require.NoError(t, err)

	assert.Error(t, enrichHandler(enricher, logger.NewNop())(context.Background(), event))
	assert.Empty(t, enricher.calls)
}

type fakeRunner struct {
	config services.PipelineConfig
	ran    []services.PipelineConfig
	err    error
}

func (f *fakeRunner) Config() services.PipelineConfig { return f.config }

func (f *fakeRunner) RunOnce(_ context.Context, cfg services.PipelineConfig) (*services.PipelineStats, error) {
	f.ran = append(f.ran, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return &services.PipelineStats{LeadsProcessed: 2, LeadsUpdated: 1}, nil
}

func TestRescoreHandler(t *testing.T) {
	event, err := events.New(events.ScoringRulesChanged, nil, map[string]string{"rule": "Tech"})
	require.NoError(t, err)

	runner := &fakeRunner{config: services.PipelineConfig{BatchSize: 50, IntervalMinutes: 60, MaxConcurrent: 2}}
	require.NoError(t, rescoreHandler(runner, logger.NewNop())(context.Background(), event))
	require.Len(t, runner.ran, 1)
	assert.Equal(t, 50, runner.ran[0].BatchSize)

	runner.err = errors.Conflict("cycle failed", nil)
	assert.Error(t, rescoreHandler(runner, logger.NewNop())(context.Background(), event))
}

func TestApplyRescoreFlags(t *testing.T) {
	base := services.PipelineConfig{BatchSize: 100, IntervalMinutes: 60, MaxConcurrent: 4, RescoreOlderThanDays: 7}

	flags := pflag.NewFlagSet("rescore", pflag.ContinueOnError)
	flags.AddFlagSet(rescoreCmd.Flags())
	require.NoError(t, flags.Parse([]string{"--batch-size", "25", "--new-only"}))
	t.Cleanup(func() {
		rescoreBatchSize, rescoreNewOnly = 0, false
	})

	got := applyRescoreFlags(flags, base)
	assert.Equal(t, 25, got.BatchSize)
	assert.True(t, got.ProcessNewOnly)
	assert.Equal(t, 60, got.IntervalMinutes)
	assert.Equal(t, 4, got.MaxConcurrent)
	assert.Equal(t, 7, got.RescoreOlderThanDays)
}

func TestLoadSeedRules(t *testing.T) {
	t.Cleanup(func() { seedDefaults = false })

	seedDefaults = true
	rules, err := loadSeedRules(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rules)

	_, err = loadSeedRules([]string{"rules.yaml"})
	assert.ErrorContains(t, err, "not both")

	seedDefaults = false
	_, err = loadSeedRules(nil)
	assert.ErrorContains(t, err, "required")

	path := filepath.Join(t.TempDir(), "rules.yaml")
	yaml := `
rules:
  - name: Enterprise budget
    criteria:
      - field: budget
        operator: greater_than
        value: 50000
        points: 25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	rules, err = loadSeedRules([]string{path})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "Enterprise budget", rules[0].Name)
	assert.Equal(t, 25, rules[0].Criteria[0].Points)

	_, err = loadSeedRules([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "open rules file")
}

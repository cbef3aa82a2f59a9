package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
)

// RescorePipeline periodically re-applies the active scoring rules to
// stored leads.
type RescorePipeline struct {
	deps     Dependencies
	leads    *leadServiceImpl
	config   PipelineConfig
	last     *PipelineStats
	running  bool
	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	cycleMu  sync.Mutex
}

// PipelineConfig contains configuration for the rescore pipeline
type PipelineConfig struct {
	BatchSize       int  `json:"batch_size"`       // Leads fetched per page
	IntervalMinutes int  `json:"interval_minutes"` // How often a cycle runs
	MaxConcurrent   int  `json:"max_concurrent"`   // Concurrent score writes
	ProcessNewOnly  bool `json:"process_new_only"` // Only leads never scored
	// RescoreOlderThanDays skips leads scored more recently. 0 rescores
	// every lead not already touched by the current cycle.
	RescoreOlderThanDays int `json:"rescore_older_than_days"`
}

// DefaultPipelineConfig returns the configured defaults.
func DefaultPipelineConfig(batchSize, intervalMinutes, maxConcurrent int) PipelineConfig {
	return PipelineConfig{
		BatchSize:       batchSize,
		IntervalMinutes: intervalMinutes,
		MaxConcurrent:   maxConcurrent,
	}
}

// Validate checks the config bounds.
func (c PipelineConfig) Validate() error {
	switch {
	case c.BatchSize < 1 || c.BatchSize > 500:
		return errors.InvalidInput("batch_size must be between 1 and 500", nil)
	case c.IntervalMinutes < 1:
		return errors.InvalidInput("interval_minutes must be at least 1", nil)
	case c.MaxConcurrent < 1 || c.MaxConcurrent > 64:
		return errors.InvalidInput("max_concurrent must be between 1 and 64", nil)
	case c.RescoreOlderThanDays < 0:
		return errors.InvalidInput("rescore_older_than_days must not be negative", nil)
	}
	return nil
}

// PipelineStats describes one rescore cycle.
type PipelineStats struct {
	StartTime      time.Time     `json:"start_time"`
	EndTime        time.Time     `json:"end_time"`
	Duration       time.Duration `json:"duration"`
	BatchSize      int           `json:"batch_size"`
	RulesApplied   int           `json:"rules_applied"`
	LeadsFound     int           `json:"leads_found"`
	LeadsProcessed int           `json:"leads_processed"`
	LeadsUpdated   int           `json:"leads_updated"`
	LeadsUnchanged int           `json:"leads_unchanged"`
	LeadsFailed    int           `json:"leads_failed"`
}

func (s *PipelineStats) Summary() string {
	return fmt.Sprintf("processed=%d, updated=%d, unchanged=%d, failed=%d, rules=%d, duration=%v",
		s.LeadsProcessed, s.LeadsUpdated, s.LeadsUnchanged, s.LeadsFailed, s.RulesApplied, s.Duration.Round(time.Millisecond))
}

// PipelineStatus is reported by the pipeline status endpoint.
type PipelineStatus struct {
	IsRunning  bool           `json:"is_running"`
	Config     PipelineConfig `json:"config"`
	LastRun    *PipelineStats `json:"last_run,omitempty"`
	TotalLeads int            `json:"total_leads"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewRescorePipeline creates a stopped pipeline.
func NewRescorePipeline(deps Dependencies, leads *leadServiceImpl) *RescorePipeline {
	cfg := PipelineConfig{BatchSize: 100, IntervalMinutes: 60, MaxConcurrent: 4}
	if c := deps.Config; c != nil {
		cfg = DefaultPipelineConfig(c.RescoreBatchSize, c.RescoreIntervalMinutes, c.RescoreMaxConcurrent)
	}
	return &RescorePipeline{deps: deps, leads: leads, config: cfg}
}

// Config returns the config of the running pipeline, or the defaults.
func (p *RescorePipeline) Config() PipelineConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.config
}

// Start begins periodic rescoring. The first cycle runs immediately.
func (p *RescorePipeline) Start(config PipelineConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return errors.Conflict("pipeline is already running", nil).WithOperation("StartPipeline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.config = config
	p.cancel = cancel
	p.stopChan = make(chan struct{})

	p.wg.Add(1)
	go p.runPipeline(ctx, config, p.stopChan)

	p.deps.Logger.Info("Rescore pipeline started",
		"batch_size", config.BatchSize, "interval_minutes", config.IntervalMinutes, "max_concurrent", config.MaxConcurrent)
	return nil
}

// Stop cancels the current cycle and waits for the loop to exit
func (p *RescorePipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return errors.Conflict("pipeline is not running", nil).WithOperation("StopPipeline")
	}
	close(p.stopChan)
	p.cancel()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.deps.Logger.Info("Rescore pipeline stopped")
	return nil
}

// IsRunning returns whether the pipeline is currently running
func (p *RescorePipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// LastStats returns the most recent cycle, if any.
func (p *RescorePipeline) LastStats() *PipelineStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// RunOnce executes a single rescore cycle
func (p *RescorePipeline) RunOnce(ctx context.Context, config PipelineConfig) (*PipelineStats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return p.executeCycle(ctx, config)
}

// Status reports whether the loop runs, its config and the last cycle.
func (p *RescorePipeline) Status(ctx context.Context) (*PipelineStatus, error) {
	status := &PipelineStatus{
		IsRunning: p.IsRunning(),
		Config:    p.Config(),
		LastRun:   p.LastStats(),
		Timestamp: p.deps.Now().UTC(),
	}
	counts, err := p.deps.Repos.Stats.Counts(ctx)
	if err != nil {
		return nil, repoError(err, "lead counts", "PipelineStatus")
	}
	status.TotalLeads = counts.TotalLeads
	return status, nil
}

func (p *RescorePipeline) runPipeline(ctx context.Context, config PipelineConfig, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Duration(config.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	p.logCycle(p.executeCycle(ctx, config))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.logCycle(p.executeCycle(ctx, config))
		}
	}
}

func (p *RescorePipeline) logCycle(stats *PipelineStats, err error) {
	if err != nil {
		p.deps.Logger.Error("Rescore cycle failed", err)
		return
	}
	p.deps.Logger.Info("Rescore cycle completed", "summary", stats.Summary())
}

// executeCycle pages through eligible leads by id and rescores them with at
// most MaxConcurrent writes in flight. Cycles never overlap.
func (p *RescorePipeline) executeCycle(ctx context.Context, config PipelineConfig) (*PipelineStats, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	stats := &PipelineStats{StartTime: p.deps.Now().UTC(), BatchSize: config.BatchSize}

	rules, err := p.deps.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return stats, repoError(err, "scoring rules", "RescoreCycle")
	}
	stats.RulesApplied = len(rules)

	criteria := repository.RescoreCriteria{Limit: config.BatchSize, UnscoredOnly: config.ProcessNewOnly}
	if !config.ProcessNewOnly {
		before := stats.StartTime.AddDate(0, 0, -config.RescoreOlderThanDays)
		criteria.ScoredBefore = &before
	}

	semaphore := make(chan struct{}, config.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for ctx.Err() == nil {
		batch, err := p.deps.Repos.Leads.ListForRescore(ctx, criteria)
		if err != nil {
			wg.Wait()
			return stats, repoError(err, "leads", "RescoreCycle")
		}
		stats.LeadsFound += len(batch)

		for i := range batch {
			lead := batch[i]
			semaphore <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-semaphore }()

				changed, err := p.leads.rescore(ctx, &lead, rules)
				result := "unchanged"
				switch {
				case err != nil:
					result = "failed"
					p.deps.Logger.Warn("Failed to rescore lead", "lead_id", lead.ID, "error", err)
				case changed:
					result = "updated"
				}
				p.deps.Recorder.RescoreLead(result)

				mu.Lock()
				defer mu.Unlock()
				stats.LeadsProcessed++
				switch result {
				case "failed":
					stats.LeadsFailed++
				case "updated":
					stats.LeadsUpdated++
				default:
					stats.LeadsUnchanged++
				}
			}()
		}

		if len(batch) < config.BatchSize {
			break
		}
		criteria.AfterID = batch[len(batch)-1].ID
	}
	wg.Wait()

	stats.EndTime = p.deps.Now().UTC()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	p.deps.Recorder.RescoreCycle(stats.EndTime)

	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()
	return stats, ctx.Err()
}

// RescoreLead rescores a single stored lead.
func (p *RescorePipeline) RescoreLead(ctx context.Context, lead *models.Lead) error {
	rules, err := p.deps.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return repoError(err, "scoring rules", "RescoreLead")
	}
	_, err = p.leads.rescore(ctx, lead, rules)
	if err != nil {
		return repoError(err, "lead", "RescoreLead")
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
)

// statsRepository implements StatsRepository
type statsRepository struct {
	db dbExecutor
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db dbExecutor) StatsRepository {
	return &statsRepository{db: db}
}

// Counts gathers dashboard totals in a single round trip.
func (r *statsRepository) Counts(ctx context.Context) (*CRMCounts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM leads),
			(SELECT COUNT(*) FROM leads WHERE status IN ('New', 'Qualified', 'Nurturing')),
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM opportunities),
			(SELECT COUNT(*) FROM opportunities WHERE stage = 'Closed Won'),
			(SELECT COUNT(*) FROM activities),
			(SELECT COUNT(*) FROM activities WHERE status = 'Planned'),
			(SELECT COUNT(*) FROM scoring_rules WHERE is_active = true)
	`

	c := &CRMCounts{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&c.TotalLeads, &c.ActiveLeads, &c.TotalAccounts, &c.TotalOpportunities,
		&c.WonOpportunities, &c.TotalActivities, &c.PendingActivities, &c.ActiveScoringRules,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load CRM counts: %w", err)
	}
	return c, nil
}

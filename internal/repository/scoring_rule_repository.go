package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const scoringRuleColumns = `id, name, COALESCE(description, ''), criteria, is_active, created_by, created_at, updated_at`

// scoringRuleRepository implements ScoringRuleRepository
type scoringRuleRepository struct {
	db dbExecutor
}

// NewScoringRuleRepository creates a new scoring rule repository
func NewScoringRuleRepository(db dbExecutor) ScoringRuleRepository {
	return &scoringRuleRepository{db: db}
}

func scanScoringRule(row rowScanner) (*models.ScoringRule, error) {
	r := &models.ScoringRule{}
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &r.Criteria, &r.IsActive,
		&r.CreatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *scoringRuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.ScoringRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scoring rules: %w", err)
	}
	defer rows.Close()

	rules := []models.ScoringRule{}
	for rows.Next() {
		rule, err := scanScoringRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scoring rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scoring rules: %w", err)
	}
	return rules, nil
}

// GetActive retrieves all active scoring rules
func (r *scoringRuleRepository) GetActive(ctx context.Context) ([]models.ScoringRule, error) {
	return r.query(ctx, `SELECT `+scoringRuleColumns+` FROM scoring_rules WHERE is_active = true ORDER BY created_at, id`)
}

// GetAll retrieves every scoring rule, active or not
func (r *scoringRuleRepository) GetAll(ctx context.Context) ([]models.ScoringRule, error) {
	return r.query(ctx, `SELECT `+scoringRuleColumns+` FROM scoring_rules ORDER BY created_at, id`)
}

// GetByID retrieves a specific scoring rule by ID
func (r *scoringRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScoringRule, error) {
	rule, err := scanScoringRule(r.db.QueryRowContext(ctx,
		`SELECT `+scoringRuleColumns+` FROM scoring_rules WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get scoring rule "+id.String())
	}
	return rule, nil
}

// Create inserts a new scoring rule
func (r *scoringRuleRepository) Create(ctx context.Context, rule *models.ScoringRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	query := `
		INSERT INTO scoring_rules (id, name, description, criteria, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rule.ID, rule.Name, nullString(rule.Description), rule.Criteria, rule.IsActive, rule.CreatedBy,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return mapError(err, "create scoring rule")
	}
	return nil
}

// Update updates an existing scoring rule
func (r *scoringRuleRepository) Update(ctx context.Context, rule *models.ScoringRule) error {
	query := `
		UPDATE scoring_rules
		SET name = $2, description = $3, criteria = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rule.ID, rule.Name, nullString(rule.Description), rule.Criteria, rule.IsActive,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		return mapError(err, "update scoring rule "+rule.ID.String())
	}
	return nil
}

// Delete soft deletes a scoring rule (sets is_active = false)
func (r *scoringRuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scoring_rules SET is_active = false, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete scoring rule "+id.String())
	}
	return checkAffected(res, "delete scoring rule "+id.String())
}

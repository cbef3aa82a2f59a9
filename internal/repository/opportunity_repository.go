package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const opportunityColumns = `
	id, name, account_id, contact_id, lead_id, stage, amount, probability,
	expected_close_date, actual_close_date, COALESCE(type, ''), COALESCE(source, ''),
	COALESCE(description, ''), assigned_to, created_at, updated_at`

// opportunityRepository implements OpportunityRepository
type opportunityRepository struct {
	db dbExecutor
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db dbExecutor) OpportunityRepository {
	return &opportunityRepository{db: db}
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	o := &models.Opportunity{}
	err := row.Scan(
		&o.ID, &o.Name, &o.AccountID, &o.ContactID, &o.LeadID, &o.Stage, &o.Amount,
		&o.Probability, &o.ExpectedCloseDate, &o.ActualCloseDate, &o.Type, &o.Source,
		&o.Description, &o.AssignedTo, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *opportunityRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Opportunity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}
	defer rows.Close()

	opps := []models.Opportunity{}
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan opportunity: %w", err)
		}
		opps = append(opps, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate opportunities: %w", err)
	}
	return opps, nil
}

// GetByID retrieves an opportunity by ID
func (r *opportunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	o, err := scanOpportunity(r.db.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get opportunity "+id.String())
	}
	return o, nil
}

// Create inserts an opportunity
func (r *opportunityRepository) Create(ctx context.Context, o *models.Opportunity) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	query := `
		INSERT INTO opportunities (
			id, name, account_id, contact_id, lead_id, stage, amount, probability,
			expected_close_date, actual_close_date, type, source, description, assigned_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		o.ID, o.Name, o.AccountID, o.ContactID, o.LeadID, o.Stage, o.Amount, o.Probability,
		o.ExpectedCloseDate, o.ActualCloseDate, nullString(o.Type), nullString(o.Source),
		nullString(o.Description), o.AssignedTo,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return mapError(err, "create opportunity")
	}
	return nil
}

// Update writes every mutable column
func (r *opportunityRepository) Update(ctx context.Context, o *models.Opportunity) error {
	query := `
		UPDATE opportunities SET
			name = $2, account_id = $3, contact_id = $4, lead_id = $5, stage = $6,
			amount = $7, probability = $8, expected_close_date = $9,
			actual_close_date = $10, type = $11, source = $12, description = $13,
			assigned_to = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		o.ID, o.Name, o.AccountID, o.ContactID, o.LeadID, o.Stage, o.Amount, o.Probability,
		o.ExpectedCloseDate, o.ActualCloseDate, nullString(o.Type), nullString(o.Source),
		nullString(o.Description), o.AssignedTo,
	).Scan(&o.UpdatedAt)
	if err != nil {
		return mapError(err, "update opportunity "+o.ID.String())
	}
	return nil
}

// Delete removes an opportunity
func (r *opportunityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM opportunities WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete opportunity "+id.String())
	}
	return checkAffected(res, "delete opportunity "+id.String())
}

// List returns a filtered page and the total match count.
func (r *opportunityRepository) List(ctx context.Context, f models.OpportunityFilters) ([]models.Opportunity, int, error) {
	var conds []string
	var args []interface{}
	if f.Stage != "" {
		args = append(args, f.Stage)
		conds = append(conds, fmt.Sprintf("stage = $%d", len(args)))
	}
	if f.AccountID != nil {
		args = append(args, *f.AccountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count opportunities: %w", err)
	}

	limit, offset := normalizePage(f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM opportunities%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		opportunityColumns, where, len(args)+1, len(args)+2)
	opps, err := r.query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return opps, total, nil
}

// ListAll returns every opportunity.
func (r *opportunityRepository) ListAll(ctx context.Context) ([]models.Opportunity, error) {
	return r.query(ctx, `SELECT `+opportunityColumns+` FROM opportunities ORDER BY created_at`)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const activityColumns = `
	id, subject, type, status, priority, COALESCE(description, ''), due_date,
	completed_date, lead_id, opportunity_id, account_id, created_by, created_at, updated_at`

// activityRepository implements ActivityRepository
type activityRepository struct {
	db dbExecutor
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db dbExecutor) ActivityRepository {
	return &activityRepository{db: db}
}

// Create inserts an activity
func (r *activityRepository) Create(ctx context.Context, a *models.Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	query := `
		INSERT INTO activities (
			id, subject, type, status, priority, description, due_date, completed_date,
			lead_id, opportunity_id, account_id, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Subject, a.Type, a.Status, a.Priority, nullString(a.Description),
		a.DueDate, a.CompletedDate, a.LeadID, a.OpportunityID, a.AccountID, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapError(err, "create activity")
	}
	return nil
}

func (r *activityRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Activity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	activities := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(
			&a.ID, &a.Subject, &a.Type, &a.Status, &a.Priority, &a.Description, &a.DueDate,
			&a.CompletedDate, &a.LeadID, &a.OpportunityID, &a.AccountID, &a.CreatedBy,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// ListByLead returns a lead's activities, newest first.
func (r *activityRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]models.Activity, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities WHERE lead_id = $1 ORDER BY created_at DESC`, leadID)
}

// ListCreatedSince returns activities created at or after since.
func (r *activityRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Activity, error) {
	return r.query(ctx, `SELECT `+activityColumns+` FROM activities WHERE created_at >= $1 ORDER BY created_at`, since)
}

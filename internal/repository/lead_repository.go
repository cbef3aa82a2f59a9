package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const leadColumns = `
	id, first_name, last_name, email, COALESCE(phone, ''), COALESCE(company, ''),
	COALESCE(job_title, ''), COALESCE(industry, ''), source, status, score, budget,
	COALESCE(timeline, ''), COALESCE(notes, ''), COALESCE(website, ''),
	COALESCE(website_summary, ''), assigned_to, scored_at, created_at, updated_at`

// leadRepository implements LeadRepository
type leadRepository struct {
	db dbExecutor
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db dbExecutor) LeadRepository {
	return &leadRepository{db: db}
}

func scanLead(row rowScanner) (*models.Lead, error) {
	l := &models.Lead{}
	err := row.Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Company,
		&l.JobTitle, &l.Industry, &l.Source, &l.Status, &l.Score, &l.Budget,
		&l.Timeline, &l.Notes, &l.Website, &l.WebsiteSummary, &l.AssignedTo,
		&l.ScoredAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *leadRepository) queryLeads(ctx context.Context, query string, args ...interface{}) ([]models.Lead, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, nil
}

// GetByID retrieves a lead by ID
func (r *leadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	l, err := scanLead(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(err, "get lead "+id.String())
	}
	return l, nil
}

// GetByEmail retrieves a lead by email
func (r *leadRepository) GetByEmail(ctx context.Context, email string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE email = $1`

	l, err := scanLead(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		return nil, mapError(err, "get lead by email")
	}
	return l, nil
}

// Create inserts a lead, assigning an ID if none is set.
func (r *leadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = lead.CreatedAt
	}
	query := `
		INSERT INTO leads (
			id, first_name, last_name, email, phone, company, job_title, industry,
			source, status, score, budget, timeline, notes, website, website_summary,
			assigned_to, scored_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.ExecContext(ctx, query,
		lead.ID, lead.FirstName, lead.LastName, lead.Email, nullString(lead.Phone),
		nullString(lead.Company), nullString(lead.JobTitle), nullString(lead.Industry),
		lead.Source, lead.Status, lead.Score, lead.Budget, nullString(lead.Timeline),
		nullString(lead.Notes), nullString(lead.Website), nullString(lead.WebsiteSummary),
		lead.AssignedTo, lead.ScoredAt, lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "create lead")
	}
	return nil
}

// Update writes every mutable column of lead.
func (r *leadRepository) Update(ctx context.Context, lead *models.Lead) error {
	query := `
		UPDATE leads SET
			first_name = $2, last_name = $3, email = $4, phone = $5, company = $6,
			job_title = $7, industry = $8, source = $9, status = $10, score = $11,
			budget = $12, timeline = $13, notes = $14, website = $15,
			website_summary = $16, assigned_to = $17, scored_at = $18,
			updated_at = $19
		WHERE id = $1
	`

	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, query,
		lead.ID, lead.FirstName, lead.LastName, lead.Email, nullString(lead.Phone),
		nullString(lead.Company), nullString(lead.JobTitle), nullString(lead.Industry),
		lead.Source, lead.Status, lead.Score, lead.Budget, nullString(lead.Timeline),
		nullString(lead.Notes), nullString(lead.Website), nullString(lead.WebsiteSummary),
		lead.AssignedTo, lead.ScoredAt, lead.UpdatedAt,
	)
	if err != nil {
		return mapError(err, "update lead "+lead.ID.String())
	}
	return checkAffected(res, "update lead "+lead.ID.String())
}

// Delete removes a lead
func (r *leadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "delete lead "+id.String())
	}
	return checkAffected(res, "delete lead "+id.String())
}

// List returns a filtered page of leads and the total match count.
func (r *leadRepository) List(ctx context.Context, filters models.LeadFilters) ([]models.Lead, int, error) {
	where, args := leadWhere(filters)
	limit, offset := normalizePage(filters.Limit, filters.Offset)

	var total int
	countQuery := `SELECT COUNT(*) FROM leads` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM leads%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		leadColumns, where, len(args)+1, len(args)+2)
	leads, err := r.queryLeads(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func leadWhere(f models.LeadFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if f.Industry != "" {
		add("industry = $%d", f.Industry)
	}
	if f.MinScore != nil {
		add("score >= $%d", *f.MinScore)
	}
	if f.MaxScore != nil {
		add("score <= $%d", *f.MaxScore)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR email ILIKE $%[1]d OR company ILIKE $%[1]d)", n))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAll returns every lead.
func (r *leadRepository) ListAll(ctx context.Context) ([]models.Lead, error) {
	return r.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at`)
}

// ListCreatedSince returns leads created at or after since.
func (r *leadRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Lead, error) {
	return r.queryLeads(ctx, `SELECT `+leadColumns+` FROM leads WHERE created_at >= $1 ORDER BY created_at`, since)
}

// ListForRescore returns the next batch of leads due for scoring.
func (r *leadRepository) ListForRescore(ctx context.Context, c RescoreCriteria) ([]models.Lead, error) {
	limit, _ := normalizePage(c.Limit, 0)

	conds := []string{"id > $1"}
	args := []interface{}{c.AfterID}
	switch {
	case c.UnscoredOnly:
		conds = append(conds, "scored_at IS NULL")
	case c.ScoredBefore != nil:
		args = append(args, *c.ScoredBefore)
		conds = append(conds, fmt.Sprintf("(scored_at IS NULL OR scored_at < $%d)", len(args)))
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY id LIMIT $%d`,
		leadColumns, strings.Join(conds, " AND "), len(args))
	return r.queryLeads(ctx, query, args...)
}

// UpdateScore persists a computed score without touching updated_at.
func (r *leadRepository) UpdateScore(ctx context.Context, id uuid.UUID, score int, scoredAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE leads SET score = $2, scored_at = $3 WHERE id = $1`, id, score, scoredAt)
	if err != nil {
		return mapError(err, "update lead score")
	}
	return checkAffected(res, "update lead score "+id.String())
}

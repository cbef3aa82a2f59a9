package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const accountColumns = `
	id, name, COALESCE(industry, ''), COALESCE(website, ''), annual_revenue,
	employee_count, status, created_at, updated_at`

// accountRepository implements AccountRepository
type accountRepository struct {
	db dbExecutor
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db dbExecutor) AccountRepository {
	return &accountRepository{db: db}
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	if err := row.Scan(&a.ID, &a.Name, &a.Industry, &a.Website, &a.AnnualRevenue,
		&a.EmployeeCount, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an account by ID
func (r *accountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get account "+id.String())
	}
	return a, nil
}

// Create inserts an account
func (r *accountRepository) Create(ctx context.Context, a *models.Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = "Active"
	}
	query := `
		INSERT INTO accounts (id, name, industry, website, annual_revenue, employee_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Name, nullString(a.Industry), nullString(a.Website), a.AnnualRevenue,
		a.EmployeeCount, a.Status,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return mapError(err, "create account")
	}
	return nil
}

// List returns a page of accounts ordered by name.
func (r *accountRepository) List(ctx context.Context, limit, offset int) ([]models.Account, error) {
	limit, offset = normalizePage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

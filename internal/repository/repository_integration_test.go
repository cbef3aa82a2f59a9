package repository

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ajharbinger/crm-pipeline/internal/database"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

var testDB *sql.DB

// TestMain starts a throwaway postgres for the integration tests. When Docker
// is unavailable or -short is set the tests skip instead of failing.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "crm",
				"POSTGRES_PASSWORD": "crm",
				"POSTGRES_DB":       "crm_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Printf("postgres container unavailable, integration tests will skip: %v", err)
		os.Exit(m.Run())
	}

	host, err := container.Host(ctx)
	if err != nil || host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://crm:crm@%s:%s/crm_test?sslmode=disable", host, port.Port())
	if err := database.RunMigrations(url); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	db, err := database.New(url)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	testDB = db.DB

	code := m.Run()

	_ = db.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func requireDB(t *testing.T) *Repositories {
	t.Helper()
	if testDB == nil {
		t.Skip("Skipping integration test - no database available")
	}
	return NewRepositories(testDB)
}

func newLead(email string) *models.Lead {
	return &models.Lead{
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     email,
		Company:   "Navy",
		Industry:  "Technology",
		Source:    models.DefaultLeadSource,
		Status:    models.LeadStatusNew,
		Budget:    decimal.NewNullDecimal(decimal.NewFromInt(25000)),
	}
}

func TestLeadRepository_CRUD(t *testing.T) {
	repos := requireDB(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	lead := newLead("grace-" + uuid.NewString() + "@example.com")
	lead.CreatedAt = created
	require.NoError(t, repos.Leads.Create(ctx, lead))
	assert.NotEqual(t, uuid.Nil, lead.ID)
	assert.Equal(t, created, lead.UpdatedAt)

	got, err := repos.Leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created), "created_at %v", got.CreatedAt)
	assert.Equal(t, lead.Email, got.Email)
	assert.True(t, got.Budget.Decimal.Equal(decimal.NewFromInt(25000)))
	assert.Empty(t, got.Phone)

	got.Status = models.LeadStatusQualified
	got.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, repos.Leads.Update(ctx, got))

	byEmail, err := repos.Leads.GetByEmail(ctx, lead.Email)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusQualified, byEmail.Status)
	assert.True(t, byEmail.UpdatedAt.Equal(created.Add(time.Hour)), "updated_at %v", byEmail.UpdatedAt)

	dup := newLead(lead.Email)
	err = repos.Leads.Create(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicate), "expected duplicate error, got %v", err)

	require.NoError(t, repos.Leads.Delete(ctx, lead.ID))
	_, err = repos.Leads.GetByID(ctx, lead.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(repos.Leads.Delete(ctx, lead.ID), ErrNotFound))
}

func TestLeadRepository_ListAndRescore(t *testing.T) {
	repos := requireDB(t)
	ctx := context.Background()

	tag := uuid.NewString()[:8]
	for i := 0; i < 3; i++ {
		l := newLead(fmt.Sprintf("list-%s-%d@example.com", tag, i))
		l.Company = "Company " + tag
		require.NoError(t, repos.Leads.Create(ctx, l))
	}

	leads, total, err := repos.Leads.List(ctx, models.LeadFilters{Search: tag, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, leads, 2)

	require.NoError(t, repos.Leads.UpdateScore(ctx, leads[0].ID, 42, time.Now().UTC()))
	scored, err := repos.Leads.GetByID(ctx, leads[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 42, scored.Score)
	assert.NotNil(t, scored.ScoredAt)

	batch, err := repos.Leads.ListForRescore(ctx, RescoreCriteria{UnscoredOnly: true, Limit: 500})
	require.NoError(t, err)
	for _, l := range batch {
		assert.NotEqual(t, leads[0].ID, l.ID, "scored lead should not be returned")
	}
}

func TestOpportunityAndRules_Transaction(t *testing.T) {
	repos := requireDB(t)
	ctx := context.Background()

	acct := &models.Account{Name: "Acme"}
	require.NoError(t, repos.Accounts.Create(ctx, acct))

	closeDate := time.Now().UTC().AddDate(0, 1, 0).Truncate(time.Second)
	err := repos.Tx.WithTransaction(ctx, func(tx *Repositories) error {
		opp := &models.Opportunity{
			Name:              "Acme expansion",
			AccountID:         &acct.ID,
			Stage:             models.StageProposal,
			Amount:            decimal.NewNullDecimal(decimal.NewFromInt(100000)),
			Probability:       40,
			ExpectedCloseDate: &closeDate,
		}
		if err := tx.Opportunities.Create(ctx, opp); err != nil {
			return err
		}
		return tx.ScoringRules.Create(ctx, &models.ScoringRule{
			Name:     "Tech " + acct.ID.String(),
			IsActive: true,
			Criteria: models.Criteria{{Field: "industry", Operator: "equals", Value: "Technology", Points: 20}},
		})
	})
	require.NoError(t, err)

	opps, total, err := repos.Opportunities.List(ctx, models.OpportunityFilters{AccountID: &acct.ID})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, 40, opps[0].Probability)

	rules, err := repos.ScoringRules.GetActive(ctx)
	require.NoError(t, err)
	var found *models.ScoringRule
	for i := range rules {
		if rules[i].Name == "Tech "+acct.ID.String() {
			found = &rules[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "Technology", found.Criteria[0].Value)

	require.NoError(t, repos.ScoringRules.Delete(ctx, found.ID))
	got, err := repos.ScoringRules.GetByID(ctx, found.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	counts, err := repos.Stats.Counts(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts.TotalOpportunities, 1)
}

func TestTransaction_RollsBack(t *testing.T) {
	repos := requireDB(t)
	ctx := context.Background()

	email := "rollback-" + uuid.NewString() + "@example.com"
	boom := errors.New("boom")
	err := repos.Tx.WithTransaction(ctx, func(tx *Repositories) error {
		if err := tx.Leads.Create(ctx, newLead(email)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repos.Leads.GetByEmail(ctx, email)
	assert.ErrorIs(t, err, ErrNotFound)
}

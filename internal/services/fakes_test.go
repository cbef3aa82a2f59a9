package services

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// store is an in-memory backing for every repository the services use.
type store struct {
	mu            sync.Mutex
	leads         map[uuid.UUID]models.Lead
	opportunities map[uuid.UUID]models.Opportunity
	rules         map[uuid.UUID]models.ScoringRule
	activities    []models.Activity
	users         map[uuid.UUID]models.User
	accounts      map[uuid.UUID]models.Account

	failUpdateScore map[uuid.UUID]bool
}

func newStore() *store {
	return &store{
		leads:           map[uuid.UUID]models.Lead{},
		opportunities:   map[uuid.UUID]models.Opportunity{},
		rules:           map[uuid.UUID]models.ScoringRule{},
		users:           map[uuid.UUID]models.User{},
		accounts:        map[uuid.UUID]models.Account{},
		failUpdateScore: map[uuid.UUID]bool{},
	}
}

func (s *store) repositories() *repository.Repositories {
	repos := &repository.Repositories{
		Leads:         leadRepo{s},
		Opportunities: oppRepo{s},
		ScoringRules:  ruleRepo{s},
		Activities:    activityRepo{s},
		Users:         userRepo{s},
		Accounts:      accountRepo{s},
		Stats:         statsRepo{s},
	}
	repos.Tx = txManager{repos}
	return repos
}

func (s *store) addLead(l models.Lead) models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Status == "" {
		l.Status = models.LeadStatusNew
	}
	s.leads[l.ID] = l
	return l
}

func (s *store) lead(id uuid.UUID) models.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leads[id]
}

func (s *store) addRule(r models.ScoringRule) models.ScoringRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.rules[r.ID] = r
	return r
}

type txManager struct{ repos *repository.Repositories }

func (t txManager) WithTransaction(_ context.Context, fn func(*repository.Repositories) error) error {
	return fn(t.repos)
}

type leadRepo struct{ s *store }

func (r leadRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r leadRepo) GetByEmail(_ context.Context, email string) (*models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.leads {
		if l.Email == email {
			found := l
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r leadRepo) Create(_ context.Context, lead *models.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = fixedNow
	}
	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = lead.CreatedAt
	}
	r.s.leads[lead.ID] = *lead
	return nil
}

func (r leadRepo) Update(_ context.Context, lead *models.Lead) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[lead.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.leads[lead.ID] = *lead
	return nil
}

func (r leadRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.leads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.leads, id)
	return nil
}

func (r leadRepo) sorted() []models.Lead {
	out := make([]models.Lead, 0, len(r.s.leads))
	for _, l := range r.s.leads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out
}

func (r leadRepo) List(_ context.Context, f models.LeadFilters) ([]models.Lead, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Lead
	for _, l := range r.sorted() {
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	total := len(out)
	if f.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r leadRepo) ListAll(_ context.Context) ([]models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.sorted(), nil
}

func (r leadRepo) ListCreatedSince(_ context.Context, since time.Time) ([]models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Lead
	for _, l := range r.sorted() {
		if !l.CreatedAt.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r leadRepo) ListForRescore(_ context.Context, c repository.RescoreCriteria) ([]models.Lead, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Lead
	for _, l := range r.sorted() {
		if bytes.Compare(l.ID[:], c.AfterID[:]) <= 0 {
			continue
		}
		if c.UnscoredOnly && l.ScoredAt != nil {
			continue
		}
		if c.ScoredBefore != nil && l.ScoredAt != nil && !l.ScoredAt.Before(*c.ScoredBefore) {
			continue
		}
		out = append(out, l)
		if len(out) == c.Limit {
			break
		}
	}
	return out, nil
}

func (r leadRepo) UpdateScore(_ context.Context, id uuid.UUID, score int, scoredAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failUpdateScore[id] {
		return context.DeadlineExceeded
	}
	l, ok := r.s.leads[id]
	if !ok {
		return repository.ErrNotFound
	}
	l.Score = score
	l.ScoredAt = &scoredAt
	r.s.leads[id] = l
	return nil
}

type oppRepo struct{ s *store }

func (r oppRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.opportunities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &o, nil
}

func (r oppRepo) Create(_ context.Context, opp *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	r.s.opportunities[opp.ID] = *opp
	return nil
}

func (r oppRepo) Update(_ context.Context, opp *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.opportunities[opp.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.opportunities[opp.ID] = *opp
	return nil
}

func (r oppRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.opportunities[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.opportunities, id)
	return nil
}

func (r oppRepo) List(ctx context.Context, f models.OpportunityFilters) ([]models.Opportunity, int, error) {
	all, _ := r.ListAll(ctx)
	var out []models.Opportunity
	for _, o := range all {
		if f.Stage == "" || o.Stage == f.Stage {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (r oppRepo) ListAll(_ context.Context) ([]models.Opportunity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Opportunity, 0, len(r.s.opportunities))
	for _, o := range r.s.opportunities {
		out = append(out, o)
	}
	return out, nil
}

type ruleRepo struct{ s *store }

func (r ruleRepo) GetActive(ctx context.Context) ([]models.ScoringRule, error) {
	all, _ := r.GetAll(ctx)
	var out []models.ScoringRule
	for _, rule := range all {
		if rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r ruleRepo) GetAll(_ context.Context) ([]models.ScoringRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.ScoringRule, 0, len(r.s.rules))
	for _, rule := range r.s.rules {
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r ruleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ScoringRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rule, nil
}

func (r ruleRepo) Create(_ context.Context, rule *models.ScoringRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rules {
		if existing.Name == rule.Name {
			return repository.ErrDuplicate
		}
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r ruleRepo) Update(_ context.Context, rule *models.ScoringRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.rules[rule.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.rules[rule.ID] = *rule
	return nil
}

func (r ruleRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rule, ok := r.s.rules[id]
	if !ok {
		return repository.ErrNotFound
	}
	rule.IsActive = false
	r.s.rules[id] = rule
	return nil
}

type activityRepo struct{ s *store }

func (r activityRepo) Create(_ context.Context, a *models.Activity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = fixedNow
	r.s.activities = append(r.s.activities, *a)
	return nil
}

func (r activityRepo) ListByLead(_ context.Context, leadID uuid.UUID) ([]models.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Activity
	for _, a := range r.s.activities {
		if a.LeadID != nil && *a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r activityRepo) ListCreatedSince(_ context.Context, since time.Time) ([]models.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Activity
	for _, a := range r.s.activities {
		if !a.CreatedAt.Before(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

type userRepo struct{ s *store }

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == strings.ToLower(email) {
			found := u
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) Create(_ context.Context, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt, u.UpdatedAt = fixedNow, fixedNow
	r.s.users[u.ID] = *u
	return nil
}

type accountRepo struct{ s *store }

func (r accountRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r accountRepo) Create(_ context.Context, a *models.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt, a.UpdatedAt = fixedNow, fixedNow
	r.s.accounts[a.ID] = *a
	return nil
}

func (r accountRepo) List(_ context.Context, limit, offset int) ([]models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, a)
	}
	if offset >= len(out) {
		return []models.Account{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type statsRepo struct{ s *store }

func (r statsRepo) Counts(_ context.Context) (*repository.CRMCounts, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return &repository.CRMCounts{
		TotalLeads:         len(r.s.leads),
		TotalOpportunities: len(r.s.opportunities),
		TotalActivities:    len(r.s.activities),
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type notice struct {
	kind string
	lead uuid.UUID
	to   string
}

type recordingNotifier struct {
	notices []notice
}

func (n *recordingNotifier) LeadQualified(_ context.Context, lead *models.Lead, to string) error {
	n.notices = append(n.notices, notice{"qualified", lead.ID, to})
	return nil
}

func (n *recordingNotifier) LeadConverted(_ context.Context, lead *models.Lead, _ *models.Opportunity, to string) error {
	n.notices = append(n.notices, notice{"converted", lead.ID, to})
	return nil
}

type fakeEnricher struct {
	industry string
	err      error
}

func (f fakeEnricher) EnrichLead(_ context.Context, lead *models.Lead) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if lead.Industry != "" {
		return false, nil
	}
	lead.Industry = f.industry
	lead.WebsiteSummary = "summary of " + lead.Website
	return true, nil
}

type fixture struct {
	store     *store
	publisher *recordingPublisher
	notifier  *recordingNotifier
	deps      Dependencies
	services  *Services
}

func newFixture(opts ...func(*Dependencies)) *fixture {
	f := &fixture{
		store:     newStore(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	deps := Dependencies{
		Repos:     f.store.repositories(),
		Config:    config.New(),
		Publisher: f.publisher,
		Notifier:  f.notifier,
		Logger:    logger.NewNop(),
		Now:       func() time.Time { return fixedNow },
	}
	deps.Config.JWTSecret = "test-secret"
	for _, opt := range opts {
		opt(&deps)
	}
	f.services = NewServices(deps)
	deps.setDefaults()
	f.deps = deps
	return f
}

func strPtr(s string) *string { return &s }

func techRule() models.ScoringRule {
	return models.ScoringRule{
		Name:     "Tech",
		IsActive: true,
		Criteria: models.Criteria{
			{Field: "industry", Operator: models.OpEquals, Value: "Technology", Points: 20},
			{Field: "job_title", Operator: models.OpContains, Value: "VP", Points: 15},
		},
	}
}

func leadInput(first, last, email string) models.LeadInput {
	return models.LeadInput{FirstName: strPtr(first), LastName: strPtr(last), Email: strPtr(email)}
}

package scoring

import (
	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// Observer is told about criteria the engine could not evaluate. Scoring
// itself never fails; these are diagnostics only.
type Observer interface {
	UnknownOperator(rule models.ScoringRule, c models.Criterion)
	UnknownField(rule models.ScoringRule, c models.Criterion)
}

type nopObserver struct{}

func (nopObserver) UnknownOperator(models.ScoringRule, models.Criterion) {}
func (nopObserver) UnknownField(models.ScoringRule, models.Criterion)    {}

// Engine scores leads against rule-based criteria. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	fields   FieldRegistry
	observer Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver installs a diagnostics observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithFields replaces the lead field registry.
func WithFields(r FieldRegistry) Option {
	return func(e *Engine) {
		if r != nil {
			e.fields = r
		}
	}
}

// NewEngine creates a new scoring engine instance
func NewEngine(opts ...Option) *Engine {
	e := &Engine{fields: LeadFields(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fields returns the registry used to resolve rule fields.
func (e *Engine) Fields() FieldRegistry {
	return e.fields
}

// CriterionResult records how one criterion evaluated.
type CriterionResult struct {
	RuleID   uuid.UUID   `json:"rule_id"`
	RuleName string      `json:"rule_name"`
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Expected interface{} `json:"expected"`
	Actual   interface{} `json:"actual"`
	Matched  bool        `json:"matched"`
	Points   int         `json:"points"`
}

// Result is a score with its per-criterion breakdown.
type Result struct {
	Score     int               `json:"score"`
	Breakdown []CriterionResult `json:"breakdown"`
}

// Score sums the points of every matching criterion across the active rules.
// Inactive rules are skipped. The total is not clamped.
func (e *Engine) Score(lead *models.Lead, rules []models.ScoringRule) int {
	total := 0
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		for _, c := range rule.Criteria {
			if matched, _ := e.match(lead, rule, c); matched {
				total += c.Points
			}
		}
	}
	return total
}

// Evaluate is Score with a breakdown of every criterion of every active rule.
func (e *Engine) Evaluate(lead *models.Lead, rules []models.ScoringRule) Result {
	res := Result{Breakdown: []CriterionResult{}}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		for _, c := range rule.Criteria {
			matched, actual := e.match(lead, rule, c)
			cr := CriterionResult{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Field:    c.Field,
				Operator: c.Operator,
				Expected: c.Value,
				Actual:   actual,
				Matched:  matched,
			}
			if matched {
				cr.Points = c.Points
				res.Score += c.Points
			}
			res.Breakdown = append(res.Breakdown, cr)
		}
	}
	return res
}

// match evaluates one criterion. Absent fields, nil values, unknown
// operators and unordered comparisons are all non-matches.
func (e *Engine) match(lead *models.Lead, rule models.ScoringRule, c models.Criterion) (bool, interface{}) {
	raw, known := e.fields.Lookup(lead, c.Field)
	if !known {
		e.observer.UnknownField(rule, c)
		return false, nil
	}
	if !IsKnownOperator(c.Operator) {
		e.observer.UnknownOperator(rule, c)
		return false, raw
	}

	actual, ok := normalize(raw)
	if !ok {
		return false, nil
	}
	expected, ok := normalize(c.Value)
	if !ok {
		return false, raw
	}

	switch c.Operator {
	case models.OpEquals:
		return equalValues(actual, expected), raw
	case models.OpContains:
		return containsValue(actual, expected), raw
	case models.OpGreaterThan:
		cmp, ok := compareValues(actual, expected)
		return ok && cmp > 0, raw
	case models.OpLessThan:
		cmp, ok := compareValues(actual, expected)
		return ok && cmp < 0, raw
	}
	return false, raw
}

// ActiveOnly filters rules down to the active ones.
func ActiveOnly(rules []models.ScoringRule) []models.ScoringRule {
	out := make([]models.ScoringRule, 0, len(rules))
	for _, r := range rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

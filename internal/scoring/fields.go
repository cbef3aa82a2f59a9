package scoring

import (
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// Accessor reads one scorable field from a lead. It returns nil when the
// field has no value.
type Accessor func(lead *models.Lead) interface{}

// FieldRegistry maps rule field names to accessors.
type FieldRegistry map[string]Accessor

var knownOperators = map[string]bool{
	models.OpEquals:      true,
	models.OpContains:    true,
	models.OpGreaterThan: true,
	models.OpLessThan:    true,
}

// IsKnownOperator reports whether op is evaluated by the engine.
func IsKnownOperator(op string) bool {
	return knownOperators[op]
}

// LeadFields returns the registry of lead fields that rules may reference.
// An empty string or a zero time reads as absent, so no criterion on it
// matches; in particular `equals ""` never matches.
func LeadFields() FieldRegistry {
	return FieldRegistry{
		"first_name":      stringField(func(l *models.Lead) string { return l.FirstName }),
		"last_name":       stringField(func(l *models.Lead) string { return l.LastName }),
		"full_name":       stringField(func(l *models.Lead) string { return l.FullName() }),
		"email":           stringField(func(l *models.Lead) string { return l.Email }),
		"phone":           stringField(func(l *models.Lead) string { return l.Phone }),
		"company":         stringField(func(l *models.Lead) string { return l.Company }),
		"job_title":       stringField(func(l *models.Lead) string { return l.JobTitle }),
		"industry":        stringField(func(l *models.Lead) string { return l.Industry }),
		"source":          stringField(func(l *models.Lead) string { return l.Source }),
		"status":          stringField(func(l *models.Lead) string { return l.Status }),
		"timeline":        stringField(func(l *models.Lead) string { return l.Timeline }),
		"notes":           stringField(func(l *models.Lead) string { return l.Notes }),
		"website":         stringField(func(l *models.Lead) string { return l.Website }),
		"website_summary": stringField(func(l *models.Lead) string { return l.WebsiteSummary }),
		"score": func(l *models.Lead) interface{} {
			return l.Score
		},
		"budget": func(l *models.Lead) interface{} {
			if !l.Budget.Valid {
				return nil
			}
			return l.Budget.Decimal
		},
		"created_at": timeField(func(l *models.Lead) time.Time { return l.CreatedAt }),
		"updated_at": timeField(func(l *models.Lead) time.Time { return l.UpdatedAt }),
		"assigned_to": func(l *models.Lead) interface{} {
			if l.AssignedTo == nil {
				return nil
			}
			return l.AssignedTo.String()
		},
	}
}

func stringField(get func(*models.Lead) string) Accessor {
	return func(l *models.Lead) interface{} {
		if v := get(l); v != "" {
			return v
		}
		return nil
	}
}

func timeField(get func(*models.Lead) time.Time) Accessor {
	return func(l *models.Lead) interface{} {
		if v := get(l); !v.IsZero() {
			return v
		}
		return nil
	}
}

// Names returns the registered field names, sorted.
func (r FieldRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the value of field on lead and whether the field is known.
func (r FieldRegistry) Lookup(lead *models.Lead, field string) (interface{}, bool) {
	get, ok := r[field]
	if !ok {
		return nil, false
	}
	if lead == nil {
		return nil, true
	}
	return get(lead), true
}

// Validate checks that every criterion of every rule names a registered
// field and a supported operator.
func (r FieldRegistry) Validate(rules []models.ScoringRule) error {
	var errs []error
	for _, rule := range rules {
		errs = append(errs, r.ValidateCriteria(rule.Name, rule.Criteria))
	}
	return stderrors.Join(errs...)
}

// ValidateCriteria checks one rule's criteria.
func (r FieldRegistry) ValidateCriteria(ruleName string, criteria models.Criteria) error {
	var errs []error
	for i, c := range criteria {
		if _, ok := r[c.Field]; !ok {
			errs = append(errs, fmt.Errorf("rule %q criterion %d: unknown field %q", ruleName, i, c.Field))
		}
		if !IsKnownOperator(c.Operator) {
			errs = append(errs, fmt.Errorf("rule %q criterion %d: unknown operator %q", ruleName, i, c.Operator))
		}
		if c.Value == nil {
			errs = append(errs, fmt.Errorf("rule %q criterion %d: value is required", ruleName, i))
		}
	}
	return stderrors.Join(errs...)
}

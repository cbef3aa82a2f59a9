package metrics

import (
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// ScoringObserver logs and counts criteria the scoring engine skipped.
type ScoringObserver struct {
	metrics *Manager
	logger  logger.Logger
}

func NewScoringObserver(m *Manager, log logger.Logger) *ScoringObserver {
	return &ScoringObserver{metrics: m, logger: log}
}

func (o *ScoringObserver) UnknownOperator(rule models.ScoringRule, c models.Criterion) {
	o.metrics.unknownOperators.WithLabelValues(c.Operator).Inc()
	o.logger.Warn("Scoring criterion has unknown operator",
		"rule_id", rule.ID, "rule", rule.Name, "field", c.Field, "operator", c.Operator)
}

func (o *ScoringObserver) UnknownField(rule models.ScoringRule, c models.Criterion) {
	o.metrics.unknownFields.WithLabelValues(c.Field).Inc()
	o.logger.Warn("Scoring criterion references unknown field",
		"rule_id", rule.ID, "rule", rule.Name, "field", c.Field)
}

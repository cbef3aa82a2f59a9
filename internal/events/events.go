// Package events publishes and consumes lead lifecycle events over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types. They double as routing keys on the topic exchange.
const (
	LeadCreated             = "lead.created"
	LeadUpdated             = "lead.updated"
	LeadQualified           = "lead.qualified"
	LeadConverted           = "lead.converted"
	LeadEnrichmentRequested = "lead.enrichment_requested"
	ScoringRulesChanged     = "scoring.rules_changed"
)

// Event is the JSON envelope on the wire.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	LeadID     *uuid.UUID      `json:"lead_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// New builds an event. data is marshalled to JSON when non-nil.
func New(eventType string, leadID *uuid.UUID, data interface{}) (Event, error) {
	e := Event{
		ID:         uuid.New(),
		Type:       eventType,
		LeadID:     leadID,
		OccurredAt: time.Now().UTC(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Event{}, err
		}
		e.Data = raw
	}
	return e, nil
}

// ForLead is New for events without a payload.
func ForLead(eventType string, leadID uuid.UUID) Event {
	id := leadID
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		LeadID:     &id,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

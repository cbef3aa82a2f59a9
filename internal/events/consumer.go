package events

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ajharbinger/crm-pipeline/internal/logger"
)

// Handler processes one event. A returned error dead-letters the message.
type Handler func(ctx context.Context, event Event) error

// Consumer dispatches messages from the work queue to registered handlers.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	prefetch int
	handlers map[string]Handler
	logger   logger.Logger
}

// NewConsumer creates a consumer on the broker's work queue.
func NewConsumer(b *Broker, prefetch int, log logger.Logger) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		ch:       b.Ch,
		queue:    QueueName,
		prefetch: prefetch,
		handlers: make(map[string]Handler),
		logger:   log,
	}
}

// Handle registers h for eventType, replacing any previous handler.
func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Worker waiting for events", "queue", c.queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.settle(ctx, d)
		}
	}
}

// settle processes one delivery and acks it, or nacks it without requeue
// when processing fails.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery) {
	if err := c.process(ctx, d.Body); err != nil {
		if nerr := d.Nack(false, false); nerr != nil {
			c.logger.Error("Failed to nack event", nerr, "delivery_tag", d.DeliveryTag)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("Failed to ack event", err, "delivery_tag", d.DeliveryTag)
	}
}

// process decodes and dispatches one message body. Events with no handler
// are accepted and ignored.
func (c *Consumer) process(ctx context.Context, body []byte) error {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error("Discarding malformed event", err)
		return err
	}

	h, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug("No handler for event", "type", event.Type, "event_id", event.ID)
		return nil
	}

	if err := h(ctx, event); err != nil {
		c.logger.Error("Event handler failed", err, "type", event.Type, "event_id", event.ID)
		return err
	}
	c.logger.Debug("Event handled", "type", event.Type, "event_id", event.ID)
	return nil
}

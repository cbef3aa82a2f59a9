package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "crm.leads"
	DLXName      = "crm.leads.dlx"
	QueueName    = "crm.leads.work"
	DLQName      = "crm.leads.work.dlq"
)

// workBindings are the routing patterns the work queue receives.
var workBindings = []string{"lead.*", "scoring.*"}

// Broker owns the AMQP connection and channel.
type Broker struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

// Dial connects to url and declares the exchange, work queue and dead
// letter queue.
func Dial(url string) (*Broker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare topology: %w", err)
	}

	return &Broker{Conn: conn, Ch: ch}, nil
}

func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(DLQName, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(DLQName, "", DLXName, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	args := amqp.Table{"x-dead-letter-exchange": DLXName}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, args); err != nil {
		return err
	}
	for _, key := range workBindings {
		if err := ch.QueueBind(QueueName, key, ExchangeName, false, nil); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the channel and the connection.
func (b *Broker) Close() error {
	if b.Ch != nil {
		b.Ch.Close()
	}
	if b.Conn != nil {
		return b.Conn.Close()
	}
	return nil
}

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitPublisher publishes events as persistent JSON messages.
type RabbitPublisher struct {
	mu     sync.Mutex // amqp channels are not safe for concurrent publishing
	ch     channel
	closer func() error
}

// NewRabbitPublisher publishes on the broker's channel and closes the broker
// on Close.
func NewRabbitPublisher(b *Broker) *RabbitPublisher {
	return &RabbitPublisher{ch: b.Ch, closer: b.Close}
}

func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		ExchangeName,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID.String(),
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

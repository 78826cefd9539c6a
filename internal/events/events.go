// Package events publishes job status changes to interested consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/ivlev/frameforge/internal/config"
)

// JobEvent describes one status transition of an export or batch job.
type JobEvent struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"` // "export" or "batch"
	Status    string    `json:"status"`
	Progress  float64   `json:"progress"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, ev JobEvent) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, JobEvent) error { return nil }

// RabbitPublisher sends events as persistent JSON messages to a topic
// exchange.
type RabbitPublisher struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	exchange   string
	routingKey string
	log        zerolog.Logger

	mu sync.Mutex
}

func NewRabbitPublisher(cfg config.RabbitMQConfig, log zerolog.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info().Str("exchange", cfg.Exchange).Msg("rabbitmq publisher ready")
	return &RabbitPublisher{
		conn:       conn,
		ch:         ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
	}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, ev JobEvent) error {
	msg, err := message(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,                   // exchange
		RoutingKey(p.routingKey, ev), // routing key
		false,                        // mandatory
		false,                        // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.log.Debug().Str("job", ev.JobID).Str("status", ev.Status).Msg("event published")
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// RoutingKey appends the job kind and status to base, e.g.
// "export.status.export.completed", so consumers can bind narrowly.
func RoutingKey(base string, ev JobEvent) string {
	key := base
	for _, part := range []string{ev.Kind, ev.Status} {
		if part == "" {
			continue
		}
		if key != "" {
			key += "."
		}
		key += part
	}
	return key
}

func message(ev JobEvent) (amqp.Publishing, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.Timestamp,
		MessageId:    ev.JobID,
	}, nil
}

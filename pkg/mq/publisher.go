package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"habittracker/pkg/metrics"
	"habittracker/pkg/trace"

	"github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	mu      sync.Mutex
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed()
}

// Publish sends payload as a persistent JSON message with the given routing
// key. The trace id in ctx, if any, travels as the correlation id.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:   "application/json",
			Body:          body,
			DeliveryMode:  amqp091.Persistent,
			CorrelationId: trace.FromContext(ctx),
			Timestamp:     time.Now().UTC(),
		},
	)
	if err != nil {
		metrics.IncrementEventPublished(routingKey, "failed")
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	metrics.IncrementEventPublished(routingKey, "sent")
	return nil
}

// Discard is a publisher that drops every event; used when no broker is
// configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }

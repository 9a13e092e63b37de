package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"taskboard/pkg/metrics"
)

// Publisher wraps a broker connection for the producing side. Connect must be
// called before Publish; a lost connection is re-established on the next
// publish attempt. Safe for concurrent use: the outbox dispatcher and HTTP
// handlers publish on the same instance.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Connect establishes the broker link, retrying with backoff. It logs each
// failure and returns the last error once attempts are exhausted so the host
// process can keep running without the broker.
func (p *Publisher) Connect(ctx context.Context, attempts int) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		p.mu.Lock()
		err := p.dialLocked()
		p.mu.Unlock()
		if err != nil {
			lastErr = err
			p.logger.Error("Broker connect failed",
				zap.Int("attempt", i+1),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * time.Second):
			}
			continue
		}
		p.logger.Info("Broker connection established", zap.String("exchange", ExchangeName))
		return nil
	}
	return lastErr
}

// dialLocked replaces conn and channel; p.mu must be held.
func (p *Publisher) dialLocked() error {
	conn, err := NewConnection(p.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	p.conn = conn
	p.channel = ch
	return nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectedLocked()
}

func (p *Publisher) connectedLocked() bool {
	return p.conn != nil && p.channel != nil && !p.conn.IsClosed()
}

// PublishWithContext publishes an event to the exchange with the given
// routing key as a persistent JSON message, re-dialing first when the
// connection is gone.
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	if !p.connectedLocked() {
		if err := p.dialLocked(); err != nil {
			p.mu.Unlock()
			metrics.EventsPublished.WithLabelValues(routingKey, "failed").Inc()
			return fmt.Errorf("broker not connected: %w", err)
		}
	}
	ch := p.channel
	p.mu.Unlock()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// amqp091 channels serialize their own writes, so publishing on the
	// captured channel outside the lock is fine even if a concurrent
	// re-dial swaps it out underneath us.
	err = ch.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if err != nil {
		metrics.EventsPublished.WithLabelValues(routingKey, "failed").Inc()
		return err
	}

	metrics.EventsPublished.WithLabelValues(routingKey, "success").Inc()
	return nil
}

package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"taskboard/pkg/metrics"
	"taskboard/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// ackAction is the outcome of one delivery attempt.
type ackAction int

const (
	actionAck ackAction = iota
	actionRequeue
	actionDeadLetter
)

// decideAck maps a handler result onto the acknowledgement policy:
// success acks; permanent failures go straight to the DLQ; retryable
// failures get exactly one broker redelivery before the DLQ.
func decideAck(err error, redelivered bool) (ackAction, string) {
	if err == nil {
		return actionAck, ""
	}

	retryable, errType := util.IsRetryableError(err)
	if !retryable {
		return actionDeadLetter, errType
	}
	if redelivered {
		return actionDeadLetter, errType
	}
	return actionRequeue, errType
}

// Consumer reads one durable queue bound to multiple routing keys on the
// tasks exchange and dispatches each delivery to the handler registered for
// its routing key.
type Consumer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	queue    amqp091.Queue
	handlers map[string]MessageHandler
	logger   *zap.Logger
	done     chan struct{}
}

// NewConsumer declares the queue, binds the routing keys, and applies the
// prefetch limit. Prefetch bounds unacknowledged messages in flight, which is
// the upstream backpressure signal.
func NewConsumer(url, queueName string, routingKeys []string, prefetch int, logger *zap.Logger) (*Consumer, error) {
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

	if err := DeclareDLQExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	if _, err := DeclareDLQQueue(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("queue", q.Name),
		zap.Strings("routing_keys", routingKeys),
		zap.Int("prefetch", prefetch),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:     conn,
		channel:  ch,
		queue:    q,
		handlers: make(map[string]MessageHandler),
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Register installs the handler for one routing key.
func (c *Consumer) Register(routingKey string, h MessageHandler) {
	c.handlers[routingKey] = h
}

func (c *Consumer) IsConnected() bool {
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Consumer) Close() {
	close(c.done)
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be
// called in a goroutine. Every delivery ends in exactly one of ack, requeue,
// or dead-letter; the consumer itself never crash-loops on a poison message.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"notification-worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages", zap.String("queue", c.queue.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, msg)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, msg amqp091.Delivery) {
	began := time.Now()

	handler, ok := c.handlers[msg.RoutingKey]
	if !ok {
		c.logger.Warn("No handler for routing key, dropping",
			zap.String("routing_key", msg.RoutingKey),
		)
		_ = msg.Ack(false)
		return
	}

	var handlerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Handler panic recovered",
					zap.String("routing_key", msg.RoutingKey),
					zap.Any("panic", r),
				)
				handlerErr = fmt.Errorf("handler panic: %v", r)
			}
		}()
		handlerErr = handler(ctx, msg.Body)
	}()

	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(began))

	action, errType := decideAck(handlerErr, msg.Redelivered)
	switch action {
	case actionAck:
		if err := msg.Ack(false); err != nil {
			c.logger.Error("Failed to ack message",
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err),
			)
		}

	case actionRequeue:
		c.logger.Warn("Handler failed, requeueing for one redelivery",
			zap.String("routing_key", msg.RoutingKey),
			zap.String("error_type", errType),
			zap.Error(handlerErr),
		)
		if err := msg.Nack(false, true); err != nil {
			c.logger.Error("Failed to nack message",
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err),
			)
		}

	case actionDeadLetter:
		c.logger.Error("Handler failed permanently, routing to DLQ",
			zap.String("routing_key", msg.RoutingKey),
			zap.String("error_type", errType),
			zap.Bool("redelivered", msg.Redelivered),
			zap.Error(handlerErr),
		)
		metrics.EventsDeadLettered.WithLabelValues(msg.RoutingKey, errType).Inc()
		if err := publishToDLQ(c.channel, msg.RoutingKey, msg.Body, handlerErr.Error(), c.queue.Name); err != nil {
			c.logger.Error("Failed to publish to DLQ, requeueing instead",
				zap.String("routing_key", msg.RoutingKey),
				zap.Error(err),
			)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
	}
}

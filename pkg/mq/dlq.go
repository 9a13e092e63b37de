package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "tasks.dlx"
	DLQQueueName    = "tasks.dlq"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares the dead letter queue and binds it to every
// routing key on the DLQ exchange.
func DeclareDLQQueue(ch *amqp091.Channel) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		DLQQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "#", DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// publishToDLQ parks a message on the dead letter exchange with the original
// error recorded in headers for manual inspection.
func publishToDLQ(ch *amqp091.Channel, routingKey string, body []byte, originalError, failedQueue string) error {
	headers := amqp091.Table{
		"x-original-error": originalError,
		"x-failed-queue":   failedQueue,
		"x-failed-at":      time.Now().UTC().Format(time.RFC3339),
	}

	return ch.Publish(
		DLQExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Headers:      headers,
		},
	)
}

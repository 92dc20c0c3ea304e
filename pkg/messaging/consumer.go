package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// MaxDeliveryAttempts is how many times a failing message is handled before it
// is dead-lettered.
const MaxDeliveryAttempts = 3

// headerRetryCount counts redeliveries made by this consumer. A plain Nack with
// requeue does not add x-death, so the count travels in our own header.
const headerRetryCount = "x-retry-count"

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
	requeue   func(ctx context.Context, msg amqp.Publishing) error
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
	c.requeue = func(ctx context.Context, msg amqp.Publishing) error {
		// The default exchange routes by queue name.
		return rmq.Channel().PublishWithContext(ctx, "", queueName, false, false, msg)
	}
	return c, nil
}

// NewTestConsumer builds a consumer without a broker. requeue receives every
// message scheduled for another attempt.
func NewTestConsumer(queueName string, log *logger.Logger, requeue func(ctx context.Context, msg amqp.Publishing) error) *Consumer {
	return &Consumer{
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
		requeue:   requeue,
	}
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue. A dropped connection is
// re-established and consumption resumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					if ctx.Err() != nil {
						return
					}
					c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed, reconnecting")
					if msgs, err = c.resume(ctx); err != nil {
						c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer gave up")
						return
					}
					continue
				}
				c.HandleDelivery(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

// resume reconnects and consumes again; the durable queue and its bindings survive.
func (c *Consumer) resume(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := c.rmq.Reconnect(ctx); err != nil {
		return nil, err
	}
	msgs, err := c.consume()
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("queue", c.queueName).Msg("consumer resumed")
	return msgs, nil
}

// HandleDelivery dispatches one delivery to its handler and settles it.
// Handler success or an unknown event type acks. A handler error schedules a
// new attempt until MaxDeliveryAttempts is reached, then the message is
// rejected into the dead letter exchange.
func (c *Consumer) HandleDelivery(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		_ = msg.Ack(false)
		return
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	err := handler(ctx, &event)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	attempt := RetryCount(msg) + 1
	c.logger.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("attempt", attempt).
		Msg("failed to process event")

	if attempt >= MaxDeliveryAttempts {
		c.logger.Warn().
			Str("event_id", event.ID).
			Int("attempt", attempt).
			Msg("max retries exceeded, sending to DLQ")
		_ = msg.Reject(false)
		return
	}

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[headerRetryCount] = int32(attempt)

	if rqErr := c.requeue(ctx, amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		Body:          msg.Body,
	}); rqErr != nil {
		// Let the broker redeliver the original instead.
		c.logger.Error().Err(rqErr).Str("event_id", event.ID).Msg("failed to requeue event")
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// RetryCount returns how many attempts have already failed for msg.
func RetryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	switch v := msg.Headers[headerRetryCount].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}

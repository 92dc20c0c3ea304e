package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stockflow/inventory-backend/pkg/config"
	"github.com/stockflow/inventory-backend/pkg/logger"
)

// DeadLetterExchange receives every message a consumer gives up on.
const DeadLetterExchange = "dlx.events"

// declaration is one piece of broker topology. Declarations are recorded so a
// reconnect can restore exchanges, queues and bindings before consuming again.
type declaration struct {
	name  string
	apply func(ch *amqp.Channel) error
}

// RabbitMQ owns one connection and channel shared by the service's publishers
// and consumers.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	config   *config.RabbitMQConfig
	logger   *logger.Logger
	mu       sync.RWMutex
	closed   bool
	topology []declaration
}

// New creates a new RabbitMQ connection
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	return rmq, nil
}

// connect dials, opens the channel and replays the recorded topology.
// Callers hold mu, or own r exclusively.
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	for _, d := range r.topology {
		if err := d.apply(ch); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to restore %s: %w", d.name, err)
		}
	}

	r.conn, r.channel = conn, ch
	r.logger.Info().Int("declarations", len(r.topology)).Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// declare applies d on the live channel and records it for reconnects.
func (r *RabbitMQ) declare(name string, apply func(ch *amqp.Channel) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := apply(r.channel); err != nil {
		return err
	}
	r.topology = append(r.topology, declaration{name: name, apply: apply})
	return nil
}

// Close closes the RabbitMQ connection
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.declare("exchange "+name, func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
	})
}

// DeclareQueue declares a durable queue that dead-letters into DeadLetterExchange.
func (r *RabbitMQ) DeclareQueue(name string) error {
	return r.declare("queue "+name, func(ch *amqp.Channel) error {
		_, err := ch.QueueDeclare(
			name,  // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			amqp.Table{"x-dead-letter-exchange": DeadLetterExchange},
		)
		return err
	})
}

// DeclareDeadLetterQueue declares the dead letter exchange and the service's
// dlq.<service> queue catching every routing key.
func (r *RabbitMQ) DeclareDeadLetterQueue(serviceName string) error {
	queueName := "dlq." + serviceName
	return r.declare("dead letter queue "+queueName, func(ch *amqp.Channel) error {
		if err := ch.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare DLX exchange: %w", err)
		}
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare DLQ queue: %w", err)
		}
		if err := ch.QueueBind(queueName, "#", DeadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind DLQ: %w", err)
		}
		return nil
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.declare(fmt.Sprintf("binding %s->%s (%s)", exchange, queueName, routingKey), func(ch *amqp.Channel) error {
		return ch.QueueBind(queueName, routingKey, exchange, false, nil)
	})
}

// Reconnect replaces a dropped connection, retrying up to MaxRetries times
// ReconnectDelay apart. A connection that is still open is kept.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}
	if r.conn != nil && !r.conn.IsClosed() && r.channel != nil && !r.channel.IsClosed() {
		return nil
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}

	for attempt := 1; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info().Int("attempt", attempt).Msg("attempting to reconnect to RabbitMQ")

		err := r.connect()
		if err == nil {
			return nil
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnection attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReconnectDelay):
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", r.config.MaxRetries)
}

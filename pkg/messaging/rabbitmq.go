package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/medflow/timesheet-service/pkg/config"
	"github.com/medflow/timesheet-service/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterExchange receives messages rejected by consumers.
const DeadLetterExchange = "dlx.events"

// RabbitMQ owns one connection and one channel shared by the publisher and
// the consumer of this service.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
}

// New dials the broker, retrying up to MaxRetries times ReconnectDelay apart.
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	attempts := cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = rmq.connect(); err == nil {
			return rmq, nil
		}
		if i < attempts {
			rmq.logger.Warn().Err(err).Int("attempt", i).Dur("retry_in", cfg.ReconnectDelay).Msg("RabbitMQ not reachable")
			time.Sleep(cfg.ReconnectDelay)
		}
	}
	return nil, err
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.mu.Lock()
	r.conn, r.channel = conn, ch
	r.mu.Unlock()

	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

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

// Health reports "up" while the connection is open.
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.conn == nil || r.conn.IsClosed() {
		return map[string]string{"status": "down", "error": "connection closed"}
	}
	return map[string]string{"status": "up"}
}

// DeclareExchange declares a durable topic exchange.
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeclareQueue declares a durable queue whose rejected messages end up in
// dlq.<name> through DeadLetterExchange.
func (r *RabbitMQ) DeclareQueue(name string) (amqp.Queue, error) {
	ch := r.Channel()

	if err := r.DeclareExchange(DeadLetterExchange); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}
	dlq := "dlq." + name
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare %s: %w", dlq, err)
	}
	if err := ch.QueueBind(dlq, name, DeadLetterExchange, false, nil); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to bind %s: %w", dlq, err)
	}

	return ch.QueueDeclare(name, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": name,
	})
}

// BindQueue binds a queue to an exchange with a routing key pattern
func (r *RabbitMQ) BindQueue(queueName, exchange, routingKey string) error {
	return r.Channel().QueueBind(queueName, routingKey, exchange, false, nil)
}

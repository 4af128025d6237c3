package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ms-resale/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

var _ Publisher = (*RabbitPublisher)(nil)

// RabbitPublisher publishes persistent JSON messages to a durable topic
// exchange, using the topic as routing key.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   *logger.Logger
}

func NewRabbitPublisher(url, exchange string, log *logger.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare failed: %w", err)
	}

	return &RabbitPublisher{conn: conn, ch: ch, exchange: exchange, logger: log}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    key,
		Timestamp:    time.Now().UTC(),
		Body:         value,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, topic, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("RABBITMQ", fmt.Sprintf("channel close: %v", err))
	}
	return p.conn.Close()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// LifecycleQueue durable queue for session lifecycle events
const LifecycleQueue = "session.lifecycle"

const dialTimeout = 5 * time.Second

// AMQPPublisher publishes lifecycle events to RabbitMQ. Errors are logged and
// returned so the caller can ignore them without interrupting termination.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger
}

// NewAMQPPublisher creates a publisher for the given broker URL
func NewAMQPPublisher(url string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		url:    url,
		queue:  LifecycleQueue,
		logger: logger,
	}
}

// PublishLifecycle sends one persistent message to the lifecycle queue
func (p *AMQPPublisher) PublishLifecycle(ctx context.Context, event LifecycleEvent) error {
	body, err := Encode(event)
	if err != nil {
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		p.logger.Warn("RabbitMQ dial failed", zap.Error(err))
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("RabbitMQ channel open failed", zap.Error(err))
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Очередь durable, чтобы события переживали рестарт брокера
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("RabbitMQ queue declare failed", zap.Error(err))
		return fmt.Errorf("declare queue: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Warn("RabbitMQ publish failed",
			zap.Int64("booking_id", event.BookingID),
			zap.Error(err),
		)
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}

// Encode serializes an event the way it goes on the wire
func Encode(event LifecycleEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

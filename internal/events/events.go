// Package events publishes reservation lifecycle notifications to RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Routing keys.
const (
	ReservationCreated  = "reservation.created"
	ReservationReturned = "reservation.returned"
	ReservationRemoved  = "reservation.removed"
)

// ReservationEvent is the payload of every reservation routing key.
type ReservationEvent struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	ClientID      uuid.UUID `json:"client_id"`
	BookID        uuid.UUID `json:"book_id"`
	Status        string    `json:"status"`
	FineTotal     string    `json:"fine_total,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher is the interface implemented by event publishers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// LogPublisher is used when no broker is configured. It only logs.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p *LogPublisher) Publish(_ context.Context, routingKey string, body any) error {
	if p.Logger != nil {
		p.Logger.Debug("event not published, no broker configured",
			zap.String("routing_key", routingKey), zap.Any("body", body))
	}
	return nil
}

func (p *LogPublisher) Close() {}

// AMQPPublisher holds the RabbitMQ connection and channel.
type AMQPPublisher struct {
	exchange string
	conn     *amqp091.Connection
	channel  *amqp091.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPPublisher dials the broker and declares a durable topic exchange.
func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{exchange: exchange, conn: conn, channel: ch}, nil
}

// Publish sends body as JSON with the given routing key.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel not initialized")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         payload,
		Timestamp:    time.Now(),
	})
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

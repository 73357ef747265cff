package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"listing_ingest/internal/domain"
)

const (
	ActionCreated   = "created"
	ActionSeenAgain = "seen_again"
)

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ publishes listing events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	now        func() time.Time
	logger     *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		now:        time.Now,
		logger:     logger.With("component", "publisher"),
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

type ListingMessage struct {
	Action    string                  `json:"action"`
	Listing   domain.CanonicalListing `json:"listing"`
	Timestamp time.Time               `json:"timestamp"`
}

func actionFor(isNew bool) string {
	if isNew {
		return ActionCreated
	}
	return ActionSeenAgain
}

// NewPublishing encodes a listing event as a persistent JSON message.
func NewPublishing(listing *domain.CanonicalListing, isNew bool, at time.Time) (amqp.Publishing, error) {
	msg := ListingMessage{
		Action:    actionFor(isNew),
		Listing:   *listing,
		Timestamp: at.UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Type:         msg.Action,
		Body:         body,
		Timestamp:    at,
	}, nil
}

func (r *RabbitMQ) Publish(ctx context.Context, listing *domain.CanonicalListing, isNew bool) error {
	publishing, err := NewPublishing(listing, isNew, r.now())
	if err != nil {
		return err
	}

	err = r.channel.PublishWithContext(ctx, r.exchange, r.routingKey, false, false, publishing)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published listing",
		"listing_id", listing.ID,
		"fingerprint", listing.Fingerprint,
		"action", publishing.Type,
		"message_id", publishing.MessageId,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

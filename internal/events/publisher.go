package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/middleware"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
)

// EventType represents the type of pricing event.
type EventType string

const (
	EventTypeQuoteComputed EventType = "quote.computed"
	EventTypeCartUpdated   EventType = "cart.updated"
)

// QuoteEvent is the envelope published for quote lifecycle events.
type QuoteEvent struct {
	ID            string            `json:"id"`
	Type          EventType         `json:"type"`
	QuoteID       string            `json:"quote_id"`
	CartID        string            `json:"cart_id"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
}

// messageWriter is the subset of *kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes quote events to Kafka.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaPublisher creates a new Kafka-based event publisher.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.QuotesTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaPublisher(writer, cfg.QuotesTopic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.Named("quote-publisher"),
	}
}

// PublishQuoteComputed publishes a quote computed event.
func (p *KafkaPublisher) PublishQuoteComputed(ctx context.Context, quote *models.Quote) error {
	p.logger.Debug("Publishing quote computed event", zap.String("quote_id", quote.ID))

	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}

	event := p.createEvent(ctx, EventTypeQuoteComputed, quote, data)
	return p.publish(ctx, event)
}

func (p *KafkaPublisher) createEvent(ctx context.Context, eventType EventType, quote *models.Quote, data []byte) *QuoteEvent {
	return &QuoteEvent{
		ID:      generateEventID(),
		Type:    eventType,
		QuoteID: quote.ID,
		CartID:  quote.CartID,
		Data:    data,
		Metadata: map[string]string{
			"currency":    quote.Currency,
			"grand_total": quote.Totals.GrandTotal.StringFixed(2),
		},
		Timestamp:     time.Now().UTC(),
		CorrelationID: middleware.RequestIDFrom(ctx),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, event *QuoteEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Keyed by cart so a cart's quotes stay ordered within one partition.
	msg := kafka.Message{
		Key:   []byte(event.CartID),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("quote_id", event.QuoteID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("quote_id", event.QuoteID),
	)

	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

func generateEventID() string {
	return "evt_" + uuid.NewString()
}

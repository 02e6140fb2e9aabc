package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

// CartEvent is a cart change published by the carts service.
type CartEvent struct {
	ID        string                `json:"id"`
	Type      EventType             `json:"type"`
	CartID    string                `json:"cart_id"`
	Currency  string                `json:"currency,omitempty"`
	Items     []pricing.LineItem    `json:"items"`
	Discount  *pricing.DiscountSpec `json:"discount,omitempty"`
	Shipping  *pricing.ShippingSpec `json:"shipping,omitempty"`
	Tax       *pricing.TaxSpec      `json:"tax,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// QuoteCreator creates quotes from pricing requests.
type QuoteCreator interface {
	CreateQuote(ctx context.Context, req *models.QuoteRequest) (*models.Quote, error)
}

// KafkaConsumer prices carts as cart.updated events arrive.
type KafkaConsumer struct {
	reader   *kafka.Reader
	quoter   QuoteCreator
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a new Kafka-based cart event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, quoter QuoteCreator, logger *zap.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.CartsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &KafkaConsumer{
		reader: reader,
		quoter: quoter,
		logger: logger.Named("cart-consumer"),
		stopCh: make(chan struct{}),
	}
}

// Start begins consuming events. It blocks until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if errors.Is(err, io.EOF) {
					return nil
				}
				c.logger.Error("Failed to read message", zap.Error(err))
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		err = c.reader.Close()
	})
	return err
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)

	var event CartEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	switch event.Type {
	case EventTypeCartUpdated:
		c.handleCartUpdated(ctx, &event)
	default:
		c.logger.Debug("Ignoring unknown event type", zap.String("type", string(event.Type)))
	}
}

func (c *KafkaConsumer) handleCartUpdated(ctx context.Context, event *CartEvent) {
	c.logger.Info("Handling cart updated event",
		zap.String("event_id", event.ID),
		zap.String("cart_id", event.CartID),
	)

	quote, err := c.quoter.CreateQuote(ctx, &models.QuoteRequest{
		CartID:   event.CartID,
		Currency: event.Currency,
		Items:    event.Items,
		Discount: event.Discount,
		Shipping: event.Shipping,
		Tax:      event.Tax,
	})
	if err != nil {
		// Invalid carts are skipped; redelivery would fail the same way.
		c.logger.Error("Failed to price cart",
			zap.String("cart_id", event.CartID),
			zap.String("kind", pricing.KindName(err)),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("Cart priced",
		zap.String("cart_id", event.CartID),
		zap.String("quote_id", quote.ID),
	)
}

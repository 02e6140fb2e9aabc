package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Features    FeatureFlags
	StorePolicy StorePolicyConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	QuotesTopic   string
	CartsTopic    string
	ConsumerGroup string
}

type FeatureFlags struct {
	EnableQuoteCaching bool
	EnableQuoteEvents  bool
	EnableCartConsumer bool
	EnableStorePolicy  bool
}

// StorePolicyConfig holds the storefront's default tax and shipping rules,
// applied to requests that carry no spec of their own.
type StorePolicyConfig struct {
	Currency          string
	TaxRate           float64
	TaxAppliesTo      string
	BaseShippingFee   float64
	FreeShippingAbove float64
}

// TaxSpec returns the policy tax rule, or nil when the rate is zero.
func (p StorePolicyConfig) TaxSpec() *pricing.TaxSpec {
	if p.TaxRate == 0 {
		return nil
	}
	return &pricing.TaxSpec{Rate: p.TaxRate, AppliesTo: pricing.TaxBase(p.TaxAppliesTo)}
}

// ShippingSpec returns the policy shipping rule, or nil when there is no fee.
// A zero threshold disables free shipping.
func (p StorePolicyConfig) ShippingSpec() *pricing.ShippingSpec {
	if p.BaseShippingFee == 0 {
		return nil
	}
	spec := &pricing.ShippingSpec{BaseFee: pricing.Float64(p.BaseShippingFee)}
	if p.FreeShippingAbove > 0 {
		spec.FreeAbove = pricing.Float64(p.FreeShippingAbove)
	}
	return spec
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8085),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_pricing"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			QuotesTopic:   getEnvString("KAFKA_QUOTES_TOPIC", "pricing.quotes"),
			CartsTopic:    getEnvString("KAFKA_CARTS_TOPIC", "carts.events"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "pricing-service"),
		},
		Features: FeatureFlags{
			EnableQuoteCaching: getEnvBool("ENABLE_QUOTE_CACHING", true),
			EnableQuoteEvents:  getEnvBool("ENABLE_QUOTE_EVENTS", true),
			EnableCartConsumer: getEnvBool("ENABLE_CART_CONSUMER", false),
			EnableStorePolicy:  getEnvBool("ENABLE_STORE_POLICY", false),
		},
		StorePolicy: StorePolicyConfig{
			Currency:          strings.ToUpper(getEnvString("STORE_CURRENCY", "USD")),
			TaxRate:           getEnvFloat("STORE_TAX_RATE", 0),
			TaxAppliesTo:      getEnvString("STORE_TAX_APPLIES_TO", string(pricing.TaxBaseAfterDiscount)),
			BaseShippingFee:   getEnvFloat("STORE_SHIPPING_FEE", 0),
			FreeShippingAbove: getEnvFloat("STORE_FREE_SHIPPING_ABOVE", 0),
		},
	}
}

// Validate reports configuration that cannot produce a working service.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Features.EnableQuoteEvents || c.Features.EnableCartConsumer {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers required when quote events or cart consumer are enabled")
		}
	}
	if len(c.StorePolicy.Currency) != 3 {
		return fmt.Errorf("store currency must be a 3-letter code, got %q", c.StorePolicy.Currency)
	}

	// The policy specs go through the same validation as request specs.
	if _, err := pricing.ComputeTotals(nil, nil, c.StorePolicy.ShippingSpec(), c.StorePolicy.TaxSpec()); err != nil {
		return fmt.Errorf("invalid store policy: %w", err)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsNaN(f) {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Label generation
	DefaultCourier   string        `envconfig:"DEFAULT_COURIER" default:"shipx"`
	MaxLabelAttempts int           `envconfig:"MAX_LABEL_ATTEMPTS" default:"3"`
	LockTimeout      time.Duration `envconfig:"LOCK_TIMEOUT" default:"2s"`
	CarrierTimeout   time.Duration `envconfig:"CARRIER_TIMEOUT" default:"10s"`

	// Tracking freshness
	TrackingTTL time.Duration `envconfig:"TRACKING_TTL" default:"15m"`

	// ShipX
	ShipXAPIKey  string `envconfig:"SHIPX_API_KEY"`
	ShipXBaseURL string `envconfig:"SHIPX_BASE_URL" default:"https://api.shipx.example"`
	ShipXUseMock bool   `envconfig:"SHIPX_USE_MOCK" default:"false"`

	// Storage
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"` // memory | postgres
	PostgresDSN  string `envconfig:"POSTGRES_DSN"`

	// Tracking cache
	CacheBackend  string `envconfig:"CACHE_BACKEND" default:"memory"` // memory | redis
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Shipment events
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"shipment.events"`

	// Auth: opaque bearer token -> user id, e.g. "tok1:alice,tok2:bob"
	AdminTokens map[string]string `envconfig:"ADMIN_TOKENS"`
	UserTokens  map[string]string `envconfig:"USER_TOKENS"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"swiftcart-fulfillment"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.String("store.backend", c.StoreBackend),
		attribute.String("cache.backend", c.CacheBackend),
		attribute.Bool("shipx.mock", c.ShipXUseMock),
	}
}

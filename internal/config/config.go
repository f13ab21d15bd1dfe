package config

import "time"

// Config bundles every environment-tunable knob the server needs at
// startup. Fields mirror the teacher's per-service Config struct, widened
// to cover the pipeline's own backends instead of Consul/gRPC addresses.
type Config struct {
	ServiceName string
	HTTPAddr    string

	InventoryFile string

	RabbitMQUser string
	RabbitMQPass string
	RabbitMQHost string
	RabbitMQPort string

	RedisAddr string

	OTLPEndpoint string

	BrokerDialTimeout time.Duration
}

// Load builds a Config from the environment, applying the same
// demonstration defaults as the original service.
func Load() Config {
	return Config{
		ServiceName:   GetEnv("SERVICE_NAME", "purchase-pipeline"),
		HTTPAddr:      GetEnv("HTTP_ADDR", "0.0.0.0:8080"),
		InventoryFile: GetEnv("INVENTORY_FILE", "productos_data.json"),

		RabbitMQUser: GetEnv("RABBITMQ_USER", "guest"),
		RabbitMQPass: GetEnv("RABBITMQ_PASS", "guest"),
		RabbitMQHost: GetEnv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort: GetEnv("RABBITMQ_PORT", "5672"),

		RedisAddr: GetEnv("REDIS_ADDR", "localhost:6379"),

		OTLPEndpoint: GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		BrokerDialTimeout: 5 * time.Second,
	}
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `yaml:"serviceName"  envconfig:"SERVICE_NAME"`
	HTTPPort     string   `yaml:"httpPort"     envconfig:"HTTP_PORT"`
	PostgresDSN  string   `yaml:"postgresDSN"  envconfig:"POSTGRES_DSN"`
	KafkaBrokers []string `yaml:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`

	WorkerPollInterval time.Duration `yaml:"workerPollInterval" envconfig:"WORKER_POLL_INTERVAL"`
	OutboxBatchSize    int           `yaml:"outboxBatchSize"    envconfig:"OUTBOX_BATCH_SIZE"`
	ExpirerBatchSize   int           `yaml:"expirerBatchSize"   envconfig:"EXPIRER_BATCH_SIZE"`
	IdempotencyTTL     time.Duration `yaml:"idempotencyTTL"     envconfig:"IDEMPOTENCY_TTL"`

	EnableBallotExpirer bool `yaml:"enableBallotExpirer" envconfig:"ENABLE_BALLOT_EXPIRER"`
	EnableAuditConsumer bool `yaml:"enableAuditConsumer" envconfig:"ENABLE_AUDIT_CONSUMER"`
	EnableMetrics       bool `yaml:"enableMetrics"       envconfig:"ENABLE_METRICS"`
}

func defaults() Config {
	return Config{
		ServiceName:         "agora",
		HTTPPort:            "8080",
		KafkaBrokers:        []string{"localhost:9092"},
		WorkerPollInterval:  2 * time.Second,
		OutboxBatchSize:     100,
		ExpirerBatchSize:    50,
		IdempotencyTTL:      7 * 24 * time.Hour,
		EnableBallotExpirer: true,
		EnableAuditConsumer: true,
		EnableMetrics:       true,
	}
}

// Load resolves configuration in three layers: baked-in defaults, then a
// YAML overlay when AGORA_CONFIG names a file, then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("AGORA_CONFIG")); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	cfg.ServiceName = strings.TrimSpace(cfg.ServiceName)
	if cfg.ServiceName == "" {
		cfg.ServiceName = "agora"
	}
	cfg.HTTPPort = strings.TrimSpace(cfg.HTTPPort)
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}

	brokers := make([]string, 0, len(cfg.KafkaBrokers))
	for _, value := range cfg.KafkaBrokers {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	cfg.KafkaBrokers = brokers

	if cfg.WorkerPollInterval <= 0 {
		cfg.WorkerPollInterval = 2 * time.Second
	}
	if cfg.OutboxBatchSize <= 0 {
		cfg.OutboxBatchSize = 100
	}
	if cfg.ExpirerBatchSize <= 0 {
		cfg.ExpirerBatchSize = 50
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}

	return cfg, nil
}

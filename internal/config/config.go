package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads .env and binds the environment variables every component reads
// through viper. Missing files are not fatal; defaults apply.
func Load() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	bindings := map[string]string{
		"database.host":     "DATABASE_HOST",
		"database.port":     "DATABASE_PORT",
		"database.user":     "DATABASE_USER",
		"database.password": "DATABASE_PASSWORD",
		"database.name":     "DATABASE_NAME",
		"database.ssl_mode": "DATABASE_SSL_MODE",
		"database.migrate":  "DATABASE_MIGRATE",

		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		"vault.master_key": "VAULT_MASTER_KEY",
		"vault.salt":       "VAULT_SALT",
		"jwt.secret_key":   "JWT_SECRET_KEY",

		"payments.environment":       "PAYMENTS_ENVIRONMENT",
		"payments.platform_api_key":  "STRIPE_SECRET_KEY",
		"payments.webhook_secret":    "STRIPE_WEBHOOK_SECRET",
		"payments.processor_url":     "STRIPE_API_URL",
		"payments.processor_timeout": "PAYMENTS_PROCESSOR_TIMEOUT",
		"payments.frontend_base_url": "FRONTEND_BASE_URL",
		"payments.lock_ttl":          "PAYMENTS_LOCK_TTL",

		"kafka.brokers": "KAFKA_BROKERS",
		"kafka.topic":   "KAFKA_TOPIC",

		"notify.url":     "NOTIFY_URL",
		"notify.token":   "NOTIFY_TOKEN",
		"notify.timeout": "NOTIFY_TIMEOUT",

		"argon2.time":        "ARGON2_TIME",
		"argon2.memory":      "ARGON2_MEMORY",
		"argon2.threads":     "ARGON2_THREADS",
		"argon2.key_length":  "ARGON2_KEY_LENGTH",
		"argon2.salt_length": "ARGON2_SALT_LENGTH",
	}
	for key, env := range bindings {
		viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

// PaymentsConfig configures the processor adapter and the reconciler.
type PaymentsConfig struct {
	Environment      string
	PlatformAPIKey   string
	WebhookSecret    string
	ProcessorURL     string
	ProcessorTimeout time.Duration
	FrontendBaseURL  string
	LockTTL          time.Duration
}

func GetPaymentsConfig() *PaymentsConfig {
	viper.SetDefault("payments.environment", "test")
	viper.SetDefault("payments.processor_timeout", 15*time.Second)
	viper.SetDefault("payments.frontend_base_url", "http://localhost:3000")
	viper.SetDefault("payments.lock_ttl", 30*time.Second)

	return &PaymentsConfig{
		Environment:      viper.GetString("payments.environment"),
		PlatformAPIKey:   viper.GetString("payments.platform_api_key"),
		WebhookSecret:    viper.GetString("payments.webhook_secret"),
		ProcessorURL:     viper.GetString("payments.processor_url"),
		ProcessorTimeout: viper.GetDuration("payments.processor_timeout"),
		FrontendBaseURL:  strings.TrimRight(viper.GetString("payments.frontend_base_url"), "/"),
		LockTTL:          viper.GetDuration("payments.lock_ttl"),
	}
}

type VaultConfig struct {
	MasterKey string
	Salt      []byte
}

func GetVaultConfig() *VaultConfig {
	return &VaultConfig{
		MasterKey: viper.GetString("vault.master_key"),
		Salt:      []byte(viper.GetString("vault.salt")),
	}
}

// KafkaConfig is optional; with no brokers, domain events stay in process.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func GetKafkaConfig() *KafkaConfig {
	viper.SetDefault("kafka.topic", "payments.events")

	var brokers []string
	for _, b := range strings.Split(viper.GetString("kafka.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &KafkaConfig{
		Brokers: brokers,
		Topic:   viper.GetString("kafka.topic"),
	}
}

type NotifyConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

func GetNotifyConfig() *NotifyConfig {
	viper.SetDefault("notify.timeout", 10*time.Second)

	return &NotifyConfig{
		URL:     viper.GetString("notify.url"),
		Token:   viper.GetString("notify.token"),
		Timeout: viper.GetDuration("notify.timeout"),
	}
}

// Argon2Config tunes temporary credential hashing.
type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

func GetArgon2Config() *Argon2Config {
	viper.SetDefault("argon2.time", 3)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 2)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	return &Argon2Config{
		Time:       viper.GetUint32("argon2.time"),
		Memory:     viper.GetUint32("argon2.memory"),
		Threads:    uint8(viper.GetUint("argon2.threads")),
		KeyLength:  viper.GetUint32("argon2.key_length"),
		SaltLength: viper.GetUint32("argon2.salt_length"),
	}
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/akmmp241/catalog-gateway/shared"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string `validate:"required"`
	GrpcPort string `validate:"required"`

	SyscomAPIURL   string `validate:"required,url"`
	SyscomTokenURL string `validate:"required,url"`
	ClientID       string `validate:"required"`
	ClientSecret   string `validate:"required"`

	MongoURL string `validate:"required"`
	MongoDB  string `validate:"required"`

	Kafka         shared.KafkaConfig
	KafkaServer   string `validate:"required"`
	KafkaTopic    string `validate:"required"`
	KafkaGroupID  string `validate:"required"`
	SASLMechanism string `validate:"oneof=PLAIN SCRAM-SHA-256 SCRAM-SHA-512"`
	KafkaProtocol string `validate:"oneof=PLAINTEXT SSL SASL_PLAINTEXT SASL_SSL"`

	StreamConsume   bool
	ConsumerEnabled bool
	MaxResults      int `validate:"gte=1"`

	HTTPClientTimeout time.Duration `validate:"gt=0"`
	StoreTimeout      time.Duration `validate:"gt=0"`
	PublishTimeout    time.Duration `validate:"gt=0"`
	ShutdownTimeout   time.Duration `validate:"gt=0"`

	RedisHost string
	RedisPort string
	LedgerTTL time.Duration `validate:"gt=0"`

	ServiceJWTSecret string
	AppEnv           string
	LogLevel         string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("GRPC_PORT", "5001")
	v.SetDefault("KAFKA_PROTOCOL", "PLAINTEXT")
	v.SetDefault("SASL_MECHANISM", "PLAIN")
	v.SetDefault("KAFKA_TOPIC", "business-notifications")
	v.SetDefault("KAFKA_GROUP_ID", "catalog-gateway-consumer")
	v.SetDefault("STREAM_CONSUME", false)
	v.SetDefault("CONSUMER_ENABLED", true)
	v.SetDefault("MAX_RESULTS", 1000)
	v.SetDefault("HTTP_CLIENT_TIMEOUT_MS", 10000)
	v.SetDefault("STORE_TIMEOUT_MS", 5000)
	v.SetDefault("PUBLISH_TIMEOUT_MS", 2000)
	v.SetDefault("SHUTDOWN_TIMEOUT_MS", 5000)
	v.SetDefault("LEDGER_TTL_MINUTES", 1440)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	return v
}

// LoadConfig reads the environment, optionally seeded by the dotenv file
// named in CONFIG_FILE. Environment values win over the file.
func LoadConfig(validate *validator.Validate) (*Config, error) {
	v := newViper()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := configFromViper(v)
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, shared.NewFailedValidationError(verrs)
		}
		return nil, err
	}

	return cfg, nil
}

func millis(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}

func configFromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Port:              v.GetString("PORT"),
		GrpcPort:          v.GetString("GRPC_PORT"),
		SyscomAPIURL:      v.GetString("SYSCOM_API_URL"),
		SyscomTokenURL:    v.GetString("SYSCOM_TOKEN_URL"),
		ClientID:          v.GetString("CLIENT_ID"),
		ClientSecret:      v.GetString("CLIENT_SECRET"),
		MongoURL:          v.GetString("MONGODB_URL"),
		MongoDB:           v.GetString("MONGO_DB"),
		KafkaServer:       v.GetString("KAFKA_SERVER"),
		KafkaTopic:        v.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      v.GetString("KAFKA_GROUP_ID"),
		SASLMechanism:     v.GetString("SASL_MECHANISM"),
		KafkaProtocol:     v.GetString("KAFKA_PROTOCOL"),
		StreamConsume:     v.GetBool("STREAM_CONSUME"),
		ConsumerEnabled:   v.GetBool("CONSUMER_ENABLED"),
		MaxResults:        v.GetInt("MAX_RESULTS"),
		HTTPClientTimeout: millis(v, "HTTP_CLIENT_TIMEOUT_MS"),
		StoreTimeout:      millis(v, "STORE_TIMEOUT_MS"),
		PublishTimeout:    millis(v, "PUBLISH_TIMEOUT_MS"),
		ShutdownTimeout:   millis(v, "SHUTDOWN_TIMEOUT_MS"),
		RedisHost:         v.GetString("REDIS_HOST"),
		RedisPort:         v.GetString("REDIS_PORT"),
		LedgerTTL:         time.Duration(v.GetInt64("LEDGER_TTL_MINUTES")) * time.Minute,
		ServiceJWTSecret:  v.GetString("SERVICE_JWT_SECRET_KEY"),
		AppEnv:            v.GetString("APP_ENV"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}

	cfg.Kafka = shared.KafkaConfig{
		Brokers:   shared.SplitBrokers(cfg.KafkaServer),
		Protocol:  cfg.KafkaProtocol,
		Mechanism: cfg.SASLMechanism,
		Username:  v.GetString("SASL_USERNAME"),
		Password:  v.GetString("SASL_PASS"),
	}
	return cfg
}

func (c *Config) CatalogClientConfig() CatalogClientConfig {
	return CatalogClientConfig{
		APIURL:       c.SyscomAPIURL,
		TokenURL:     c.SyscomTokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Timeout:      c.HTTPClientTimeout,
		MaxResults:   c.MaxResults,
	}
}

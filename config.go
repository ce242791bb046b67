package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	awspkg "marketplace-service/pkg/aws"
)

const (
	StoreMongo    = "mongo"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"

	EventBusSNS   = "sns"
	EventBusKafka = "kafka"
	EventBusNone  = "none"
)

// Config holds all configuration for the marketplace service.
type Config struct {
	Port           string
	Env            string
	RequestTimeout time.Duration
	AllowedOrigins []string

	StoreBackend      string
	MongoURL          string
	MongoDBName       string
	DDBTableUsers     string
	DDBTableSellers   string
	DDBTableBanners   string
	RedisURL          string
	BestSellersTTL    time.Duration
	IdempotencyTTL    time.Duration
	JWTSecret         string
	TokenTTL          time.Duration
	SellerSecretKey   string
	BcryptCost        int
	EventBus          string
	CheckoutTopicARN  string
	KafkaBrokers      string
	CheckoutTopic     string
	CheckoutQueueURL  string
	S3Bucket          string
	S3Prefix          string
	S3Endpoint        string
	CloudFrontDomain  string
	CloudWatchEnabled bool
}

// LoadConfig reads configuration from environment variables with optional
// Secrets Manager override.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("APP_ENV", "development"),
		RequestTimeout:    getDuration("REQUEST_TIMEOUT", 30*time.Second),
		AllowedOrigins:    strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		StoreBackend:      getEnv("STORE_BACKEND", StoreMongo),
		MongoURL:          getEnv("MONGO_URL", "mongodb://localhost:27017"),
		MongoDBName:       getEnv("MONGO_DB_NAME", "artcraft"),
		DDBTableUsers:     getEnv("DDB_TABLE_USERS", "Users"),
		DDBTableSellers:   getEnv("DDB_TABLE_SELLERS", "Sellers"),
		DDBTableBanners:   getEnv("DDB_TABLE_BANNERS", "Banners"),
		RedisURL:          os.Getenv("REDIS_URL"),
		BestSellersTTL:    getDuration("BEST_SELLERS_CACHE_TTL", time.Minute),
		IdempotencyTTL:    getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          getDuration("TOKEN_TTL", 24*time.Hour),
		SellerSecretKey:   os.Getenv("SELLER_SECRET_KEY"),
		BcryptCost:        getInt("BCRYPT_COST", 10),
		EventBus:          getEnv("EVENT_BUS", EventBusNone),
		CheckoutTopicARN:  os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),
		KafkaBrokers:      os.Getenv("KAFKA_BROKERS"),
		CheckoutTopic:     getEnv("CHECKOUT_TOPIC", "checkout-completed"),
		CheckoutQueueURL:  os.Getenv("CHECKOUT_QUEUE_URL"),
		S3Bucket:          os.Getenv("AWS_S3_BUCKET"),
		S3Prefix:          getEnv("AWS_S3_PREFIX", "uploads"),
		S3Endpoint:        firstEnv("AWS_S3_ENDPOINT", "AWS_ENDPOINT"),
		CloudFrontDomain:  os.Getenv("AWS_CLOUDFRONT_DOMAIN"),
		CloudWatchEnabled: os.Getenv("CLOUDWATCH_ENABLED") == "true",
	}

	// Override secrets from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		if awsCfg, err := awspkg.LoadAWSConfig(context.Background()); err == nil {
			sm := awspkg.NewSecretsClient(awsCfg)
			if v, err := sm.GetSecret(context.Background(), "marketplace/JWT_SECRET"); err == nil && v != "" {
				cfg.JWTSecret = v
			} else if err != nil {
				zap.L().Warn("failed to read JWT secret from Secrets Manager", zap.Error(err))
			}
			if v, err := sm.GetSecret(context.Background(), "marketplace/SELLER_SECRET_KEY"); err == nil && v != "" {
				cfg.SellerSecretKey = v
			}
		} else {
			zap.L().Warn("failed to load AWS config for Secrets Manager", zap.Error(err))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case StoreMongo, StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.EventBus {
	case EventBusSNS:
		if c.CheckoutTopicARN == "" {
			return fmt.Errorf("CHECKOUT_SNS_TOPIC_ARN is required when EVENT_BUS=sns")
		}
	case EventBusKafka:
		if c.KafkaBrokers == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	case EventBusNone, "":
	default:
		return fmt.Errorf("unknown EVENT_BUS %q", c.EventBus)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		zap.L().Warn("invalid duration, using default", zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

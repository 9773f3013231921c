package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type MongoDBConfig struct {
	URI    string
	DBHost string
	DBPort string
	DBName string
}

// ConnectionURI returns URI when set and otherwise builds one from host and port.
func (c MongoDBConfig) ConnectionURI() string {
	if c.URI != "" {
		return c.URI
	}
	return fmt.Sprintf("mongodb://%s:%s", c.DBHost, c.DBPort)
}

type KafkaConfig struct {
	BrokerAddress string
	BrokerTopic   string
	ConsumerTopic string
	ConsumerGroup string
}

type TracingConfig struct {
	CollectorHost string
}

type BlobStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

type MailConfig struct {
	SMTPHost       string
	SMTPPort       int
	Sender         string
	Password       string
	AlertRecipient string
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration
}

type Config struct {
	ServicePort     string
	MetricsPort     string
	MongoDBConfig   MongoDBConfig
	KafkaConfig     KafkaConfig
	JWTSecret       string
	TracingConfig   TracingConfig
	BlobStoreConfig BlobStoreConfig
	MailConfig      MailConfig
	SchedulerConfig SchedulerConfig
}

func CreateNewConfig() *Config {
	godotenv.Load(".env")

	conf := Config{
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		MetricsPort: getEnv("METRICS_PORT", "8081"),
		MongoDBConfig: MongoDBConfig{
			URI:    os.Getenv("DB_URI"),
			DBHost: os.Getenv("DB_HOST"),
			DBPort: os.Getenv("DB_PORT"),
			DBName: getEnv("DB_NAME", "catalog_service"),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		KafkaConfig: KafkaConfig{
			BrokerAddress: os.Getenv("BROKER_ADDRESS"),
			BrokerTopic:   os.Getenv("BROKER_TOPIC"),
			ConsumerTopic: getEnv("CONSUMER_TOPIC", os.Getenv("BROKER_TOPIC")),
			ConsumerGroup: getEnv("CONSUMER_GROUP", "catalog-service"),
		},
		TracingConfig: TracingConfig{
			CollectorHost: os.Getenv("COLLECTOR_HOST"),
		},
		BlobStoreConfig: BlobStoreConfig{
			Endpoint:        os.Getenv("BLOB_ENDPOINT"),
			Region:          getEnv("BLOB_REGION", "us-east-1"),
			Bucket:          os.Getenv("BLOB_BUCKET"),
			AccessKeyID:     os.Getenv("BLOB_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("BLOB_SECRET_ACCESS_KEY"),
			PublicBaseURL:   os.Getenv("BLOB_PUBLIC_BASE_URL"),
		},
		MailConfig: MailConfig{
			SMTPHost:       os.Getenv("SMTP_HOST"),
			SMTPPort:       getEnvInt("SMTP_PORT", 587),
			Sender:         os.Getenv("SMTP_SENDER"),
			Password:       os.Getenv("SMTP_PASSWORD"),
			AlertRecipient: os.Getenv("STOCK_ALERT_RECIPIENT"),
		},
		SchedulerConfig: SchedulerConfig{
			ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),
		},
	}

	return &conf
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

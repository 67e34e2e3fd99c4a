package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion          string
	SQSCommandQueueURL string
	SQSReplyQueueURL   string
	IoTDisplayTopic    string
	SESFromEmail       string
	SESFromName        string

	TotalSpots int

	SweepInterval          time.Duration
	DisplayPublishInterval time.Duration
	DefaultParkingDuration time.Duration
	ExtensionDuration      time.Duration
	FulfillGrace           time.Duration
	StoreTimeout           time.Duration
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "parking"),
		DBPassword: getEnv("DB_PASSWORD", "parking"),
		DBName:     getEnv("DB_NAME", "parking_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:          getEnv("AWS_REGION", "eu-central-1"),
		SQSCommandQueueURL: getEnv("SQS_COMMAND_QUEUE_URL", ""),
		SQSReplyQueueURL:   getEnv("SQS_REPLY_QUEUE_URL", ""),
		IoTDisplayTopic:    getEnv("IOT_DISPLAY_TOPIC", ""),
		SESFromEmail:       getEnv("SES_FROM_EMAIL", ""),
		SESFromName:        getEnv("SES_FROM_NAME", "BPark Parking"),

		TotalSpots: getEnvInt("TOTAL_SPOTS", 10),

		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", time.Minute),
		DisplayPublishInterval: getEnvDuration("DISPLAY_PUBLISH_INTERVAL", 30*time.Second),
		DefaultParkingDuration: getEnvDuration("DEFAULT_PARKING_DURATION", 4*time.Hour),
		ExtensionDuration:      getEnvDuration("EXTENSION_DURATION", 4*time.Hour),
		FulfillGrace:           getEnvDuration("FULFILL_GRACE", 15*time.Minute),
		StoreTimeout:           getEnvDuration("STORE_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("warning: %s is not an integer ('%s'), using %d", key, raw, fallback)
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("warning: %s is not a duration ('%s'), using %s", key, raw, fallback)
		return fallback
	}
	return value
}

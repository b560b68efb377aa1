/**
 * Configuration for PlanParse Worker
 *
 * Loads configuration from environment variables matching .env.planparse
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL    string
	QueueDriver string // "redis" (Node-compatible LIST queue) or "asynq"
	QueueName   string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// API Keys
	VoyageAPIKey string

	// Service URLs
	ModelGatewayURL string
	PageTextURL     string
	EstimateAPIURL  string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int

	// Parse pipeline tuning
	MaxDeepParsePages int
	ClassifyTextLimit int
	ClassifySampleLimit int
	MinSheetText      int

	// Tesseract configuration
	TesseractPath string

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://bidright-redis:6379"),
		QueueDriver:         getEnvOrDefault("QUEUE_DRIVER", "redis"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "planparse:jobs"),
		DatabaseURL:         getEnvOrThrow("DATABASE_URL"),
		QdrantURL:           getEnvOrDefault("QDRANT_URL", "bidright-qdrant:6334"),
		QdrantCollection:    getEnvOrDefault("QDRANT_COLLECTION", "planparse_summaries"),
		VoyageAPIKey:        getEnvOrThrow("VOYAGE_API_KEY"),
		ModelGatewayURL:     getEnvOrDefault("MODEL_GATEWAY_URL", "http://bidright-modelgateway:8080"),
		PageTextURL:         getEnvOrDefault("PAGETEXT_URL", "http://bidright-pagetext:8090"),
		EstimateAPIURL:      getEnvOrDefault("ESTIMATE_API_URL", "http://bidright-estimate-api:8096"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		MaxDeepParsePages:   getEnvAsIntOrDefault("MAX_DEEP_PARSE_PAGES", 12),
		ClassifyTextLimit:   getEnvAsIntOrDefault("CLASSIFY_TEXT_LIMIT", 1200),
		ClassifySampleLimit: getEnvAsIntOrDefault("CLASSIFY_SAMPLE_LIMIT", 60),
		MinSheetText:        getEnvAsIntOrDefault("MIN_SHEET_TEXT", 20),
		TesseractPath:       getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		NodeEnv:             getEnvOrDefault("NODE_ENV", "development"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.VoyageAPIKey == "" {
		return fmt.Errorf("VOYAGE_API_KEY is required")
	}

	if c.ModelGatewayURL == "" {
		return fmt.Errorf("MODEL_GATEWAY_URL is required")
	}

	if c.QueueDriver != "redis" && c.QueueDriver != "asynq" {
		return fmt.Errorf("QUEUE_DRIVER must be \"redis\" or \"asynq\", got %q", c.QueueDriver)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxDeepParsePages < 1 || c.MaxDeepParsePages > 100 {
		return fmt.Errorf("MAX_DEEP_PARSE_PAGES must be between 1 and 100, got %d", c.MaxDeepParsePages)
	}

	if c.ClassifySampleLimit < 1 {
		return fmt.Errorf("CLASSIFY_SAMPLE_LIMIT must be positive, got %d", c.ClassifySampleLimit)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

/**
 * Configuration for the DocExtract service
 *
 * Loads configuration from environment variables. A .env file, when present,
 * is read by the CLI before this runs.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds service configuration
type Config struct {
	// Model configuration
	ModelName    string
	ModelVersion string
	InferenceURL string
	Device       string

	// OCR configuration
	OCREngine    string
	OCRLanguages []string
	EasyOCRURL   string

	// Pipeline configuration
	ConfidenceThreshold float64
	MaxImageSize        int
	PDFDPI              int

	// API configuration
	APIHost     string
	APIPort     int
	MaxUploadMB int

	// Worker configuration
	RedisURL          string
	QueueName         string
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds

	// PostgreSQL configuration (optional; worker persistence)
	DatabaseURL string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ModelName:           getEnvOrDefault("MODEL_NAME", "nielsr/layoutlmv3-finetuned-funsd"),
		ModelVersion:        getEnvOrDefault("MODEL_VERSION", "layoutlmv3-funsd-v1"),
		InferenceURL:        getEnvOrDefault("INFERENCE_URL", "http://localhost:8501"),
		Device:              getEnvOrDefault("DEVICE", "auto"),
		OCREngine:           getEnvOrDefault("OCR_ENGINE", "tesseract"),
		OCRLanguages:        splitCSV(getEnvOrDefault("OCR_LANGUAGES", "en")),
		EasyOCRURL:          getEnvOrDefault("EASYOCR_URL", "http://localhost:8502"),
		ConfidenceThreshold: getEnvAsFloatOrDefault("CONFIDENCE_THRESHOLD", 0.5),
		MaxImageSize:        getEnvAsIntOrDefault("MAX_IMAGE_SIZE", 2000),
		PDFDPI:              getEnvAsIntOrDefault("PDF_DPI", 200),
		APIHost:             getEnvOrDefault("API_HOST", "0.0.0.0"),
		APIPort:             getEnvAsIntOrDefault("API_PORT", 8000),
		MaxUploadMB:         getEnvAsIntOrDefault("MAX_UPLOAD_MB", 32),
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:           getEnvOrDefault("QUEUE_NAME", "docextract"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 2),
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT_MS", 300000), // 5 minutes
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}

	if c.InferenceURL == "" {
		return fmt.Errorf("INFERENCE_URL is required")
	}

	if c.OCREngine == "" {
		return fmt.Errorf("OCR_ENGINE is required")
	}

	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be between 0.0 and 1.0, got %g", c.ConfidenceThreshold)
	}

	if c.MaxImageSize < 100 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be at least 100, got %d", c.MaxImageSize)
	}

	if c.PDFDPI < 36 || c.PDFDPI > 600 {
		return fmt.Errorf("PDF_DPI must be between 36 and 600, got %d", c.PDFDPI)
	}

	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be between 1 and 65535, got %d", c.APIPort)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT_MS must be at least 1000, got %d", c.ProcessingTimeout)
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

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty items.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

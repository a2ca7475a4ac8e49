package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GokhanYmn/NakitAkisGrafana/src/models"
	"github.com/GokhanYmn/NakitAkisGrafana/src/security/validation"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// AppConfig holds all configuration for the application.
// It is loaded once at startup and handed to constructors.
type AppConfig struct {
	// Core settings
	Port     string
	LogLevel string

	// Record store
	DatabaseDriver string
	DatabaseURL    string
	DatabasePath   string
	AutoMigrate    bool
	QueryTimeout   time.Duration

	// Reconciliation defaults
	DefaultRate        decimal.Decimal
	DefaultModelRate   decimal.Decimal
	DefaultInstitution string
	FallbackRules      []models.FallbackRule

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	GrafanaLookback    time.Duration
}

const defaultFallbackRules = "ZBJ=0.48"

// DSN is the data source name for the configured driver.
func (c *AppConfig) DSN() string {
	if c.DatabaseDriver == "pgx" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() (*AppConfig, error) {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables.")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite"))
	if driver == "postgres" || driver == "postgresql" {
		driver = "pgx"
	}
	if driver != "sqlite" && driver != "pgx" {
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite or pgx, got %q", driver)
	}

	defaultRate, err := getEnvAsRate("DEFAULT_RATE", "0.45")
	if err != nil {
		return nil, err
	}
	defaultModelRate, err := getEnvAsRate("DEFAULT_MODEL_RATE", defaultRate.String())
	if err != nil {
		return nil, err
	}
	rules, err := ParseFallbackRules(getEnv("FALLBACK_RATE_RULES", defaultFallbackRules))
	if err != nil {
		return nil, fmt.Errorf("FALLBACK_RATE_RULES: %w", err)
	}

	cfg := &AppConfig{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: driver,
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DatabasePath:   getEnv("DATABASE_PATH", "./nakitakis.db"),
		AutoMigrate:    getEnvAsBool("AUTO_MIGRATE", true),
		QueryTimeout:   getEnvAsDuration("QUERY_TIMEOUT", 30*time.Second),

		DefaultRate:        defaultRate,
		DefaultModelRate:   defaultModelRate,
		DefaultInstitution: getEnv("DEFAULT_INSTITUTION", "FİBABANKA"),
		FallbackRules:      rules,

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "*"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 30),
		GrafanaLookback:    getEnvAsDuration("GRAFANA_LOOKBACK", 90*24*time.Hour),
	}

	if cfg.DatabaseDriver == "pgx" && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=pgx")
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, Driver=%s, DefaultRate=%s, Rules=%d",
		cfg.Port, cfg.LogLevel, cfg.DatabaseDriver, cfg.DefaultRate, len(cfg.FallbackRules))
	return cfg, nil
}

// ParseFallbackRules reads "PATTERN=RATE" pairs separated by commas or
// semicolons. Rates follow the same unit rules as every other rate input.
func ParseFallbackRules(s string) ([]models.FallbackRule, error) {
	rules := []models.FallbackRule{}
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pattern, rateStr, ok := strings.Cut(part, "=")
		pattern = strings.TrimSpace(pattern)
		if !ok || pattern == "" {
			return nil, fmt.Errorf("invalid rule %q, want PATTERN=RATE", part)
		}
		rate, err := validation.ParseRate(rateStr, pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", pattern, err)
		}
		rules = append(rules, models.FallbackRule{Pattern: pattern, Rate: rate})
	}
	return rules, nil
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsRate(key, fallback string) (decimal.Decimal, error) {
	return validation.ParseRate(getEnv(key, fallback), key)
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid number for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsList retrieves and parses a comma-separated list.
func getEnvAsList(key, fallback string) []string {
	out := []string{}
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

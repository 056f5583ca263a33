package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers string

	// API Configuration
	APIPort string
	APIHost string

	// CORS
	CORSOrigins string

	// Shopify
	ShopifyStoreURL      string
	ShopifyAccessToken   string
	ShopifyAPIVersion    string
	ShopifyWebhookSecret string
	ShopifyShopDomain    string

	// Cin7
	Cin7Target         string // "omni" or "core"
	Cin7BaseURL        string
	Cin7Username       string
	Cin7APIKey         string
	Cin7AccountID      string
	Cin7ApplicationKey string

	// Mapping defaults
	DefaultCurrency string
	DefaultTaxRate  float64
	BranchID        int

	// Dispatch
	RatePerSecond int
	RatePerMinute int
	MaxAttempts   int

	// Feature toggles
	DryRun  bool
	Verbose bool

	// Environment
	Env      string
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:          getEnv("DATABASE_URL", "sqlite://quoting.db"),
		KafkaBrokers:         getEnv("KAFKA_BROKERS", "localhost:9092"),
		APIPort:              getEnv("API_PORT", "8080"),
		APIHost:              getEnv("API_HOST", "0.0.0.0"),
		CORSOrigins:          getEnv("CORS_ORIGINS", "*"),
		ShopifyStoreURL:      getEnv("SHOPIFY_STORE_URL", ""),
		ShopifyAccessToken:   getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:    getEnv("SHOPIFY_API_VERSION", "2024-01"),
		ShopifyWebhookSecret: getEnv("SHOPIFY_WEBHOOK_SECRET", ""),
		ShopifyShopDomain:    getEnv("SHOPIFY_SHOP_DOMAIN", ""),
		Cin7Target:           getEnv("CIN7_TARGET", "omni"),
		Cin7BaseURL:          getEnv("CIN7_API_BASE_URL", ""),
		Cin7Username:         getEnv("CIN7_API_USERNAME", ""),
		Cin7APIKey:           getEnv("CIN7_API_KEY", ""),
		Cin7AccountID:        getEnv("CIN7_ACCOUNT_ID", ""),
		Cin7ApplicationKey:   getEnv("CIN7_APPLICATION_KEY", ""),
		DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "AUD"),
		DefaultTaxRate:       getEnvAsFloat("DEFAULT_TAX_RATE", 0.10),
		BranchID:             getEnvAsInt("CIN7_BRANCH_ID", 0),
		RatePerSecond:        getEnvAsInt("CIN7_RATE_PER_SECOND", 3),
		RatePerMinute:        getEnvAsInt("CIN7_RATE_PER_MINUTE", 60),
		MaxAttempts:          getEnvAsInt("CIN7_MAX_ATTEMPTS", 4),
		DryRun:               getEnvAsBool("DRY_RUN", false),
		Verbose:              getEnvAsBool("VERBOSE_LOGGING", false),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate fails fast on credential misconfiguration. Dry-run mode skips the
// downstream credential checks so the service can run against nothing.
func (c *Config) Validate() error {
	if c.ShopifyWebhookSecret == "" {
		return fmt.Errorf("SHOPIFY_WEBHOOK_SECRET is required")
	}
	if c.DryRun {
		return nil
	}
	switch c.Cin7Target {
	case "omni":
		if c.Cin7BaseURL == "" || c.Cin7Username == "" || c.Cin7APIKey == "" {
			return fmt.Errorf("CIN7_API_BASE_URL, CIN7_API_USERNAME and CIN7_API_KEY are required for the omni target")
		}
	case "core":
		if c.Cin7BaseURL == "" || c.Cin7AccountID == "" || c.Cin7ApplicationKey == "" {
			return fmt.Errorf("CIN7_API_BASE_URL, CIN7_ACCOUNT_ID and CIN7_APPLICATION_KEY are required for the core target")
		}
	default:
		return fmt.Errorf("CIN7_TARGET must be omni or core, got %q", c.Cin7Target)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

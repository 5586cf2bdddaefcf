// Package config provides configuration management for the portfolio tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "github.com/portfolio-tracker/internal/errors"
)

// SupportedFiats is the closed set of accepted base fiat currencies.
var SupportedFiats = []string{"USD", "EUR", "GBP"}

// SupportedCryptos is the closed set of accepted crypto numeraires.
var SupportedCryptos = []string{"BTC", "ETH"}

// DefaultReferenceSource is used to price address-type holdings when no
// reference source is configured explicitly.
const DefaultReferenceSource = "kraken"

// Config holds all application configuration
type Config struct {
	Portfolio PortfolioConfig
	HTTP      HTTPConfig
	Cache     CacheConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

// PortfolioConfig holds the aggregation configuration
type PortfolioConfig struct {
	BaseFiat             string
	BaseCrypto           string // optional, empty when no crypto numeraire
	ReferenceSource      string
	Sources              []SourceConfig
	SignificantThreshold float64
}

// SourceConfig identifies one configured balance source
type SourceConfig struct {
	Name           string
	CredentialPath string
	Address        string // on-chain address for address-type sources
	RPCURL         string // RPC endpoint for node-backed sources
}

// HTTPConfig holds outbound HTTP client configuration
type HTTPConfig struct {
	Timeout       time.Duration
	RetryAttempts int
	RatePerSecond float64
}

// CacheConfig holds price cache configuration
type CacheConfig struct {
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	PriceTTL      time.Duration
	HistoryTTL    time.Duration
}

// RedisEnabled reports whether a Redis backend is configured.
func (c *CacheConfig) RedisEnabled() bool {
	return c.RedisHost != ""
}

// ServerConfig holds API server configuration
type ServerConfig struct {
	Host string
	Port string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Portfolio: PortfolioConfig{
			BaseFiat:             strings.ToUpper(getEnv("BASE_FIAT", "USD")),
			BaseCrypto:           strings.ToUpper(getEnv("BASE_CRYPTO", "")),
			ReferenceSource:      strings.ToLower(getEnv("REFERENCE_SOURCE", "")),
			Sources:              loadSourceConfigs(),
			SignificantThreshold: getEnvAsFloat("SIGNIFICANT_THRESHOLD", 0.01),
		},
		HTTP: HTTPConfig{
			Timeout:       getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
			RetryAttempts: getEnvAsInt("HTTP_RETRY_ATTEMPTS", 2),
			RatePerSecond: getEnvAsFloat("HTTP_RATE_PER_SECOND", 3),
		},
		Cache: CacheConfig{
			RedisHost:     getEnv("REDIS_HOST", ""),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			PriceTTL:      getEnvAsDuration("PRICE_CACHE_TTL", 60*time.Second),
			HistoryTTL:    getEnvAsDuration("HISTORY_CACHE_TTL", 6*time.Hour),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Portfolio.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// loadSourceConfigs reads the configured source list and per-source settings.
// SOURCES is a comma list of source names; each source reads its own
// <NAME>_KEY_FILE, <NAME>_ADDRESS and <NAME>_RPC_URL variables.
func loadSourceConfigs() []SourceConfig {
	names := strings.Split(getEnv("SOURCES", "kraken"), ",")

	var sources []SourceConfig
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		prefix := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		sources = append(sources, SourceConfig{
			Name:           name,
			CredentialPath: getEnv(prefix+"_KEY_FILE", ""),
			Address:        getEnv(prefix+"_ADDRESS", ""),
			RPCURL:         getEnv(prefix+"_RPC_URL", ""),
		})
	}

	return sources
}

// Validate checks the portfolio configuration against the supported sets.
// Reference-source defaulting happens here, once, so the field is never
// mutated after construction.
func (p *PortfolioConfig) Validate() error {
	if !containsString(SupportedFiats, p.BaseFiat) {
		return apperrors.NewConfigurationError(fmt.Sprintf(
			"unsupported base fiat %q (supported: %s)", p.BaseFiat, strings.Join(SupportedFiats, ", ")))
	}

	if p.BaseCrypto != "" && !containsString(SupportedCryptos, p.BaseCrypto) {
		return apperrors.NewConfigurationError(fmt.Sprintf(
			"unsupported base crypto %q (supported: %s)", p.BaseCrypto, strings.Join(SupportedCryptos, ", ")))
	}

	if len(p.Sources) == 0 {
		return apperrors.NewConfigurationError("no sources configured")
	}

	seen := make(map[string]bool, len(p.Sources))
	for _, s := range p.Sources {
		if seen[s.Name] {
			return apperrors.NewConfigurationError(fmt.Sprintf("duplicate source %q", s.Name))
		}
		seen[s.Name] = true
	}

	if p.ReferenceSource == "" {
		p.ReferenceSource = DefaultReferenceSource
	}

	if p.SignificantThreshold < 0 {
		return apperrors.NewConfigurationError("significant threshold must be non-negative")
	}

	return nil
}

// Source returns the configuration for the named source, if present.
func (p *PortfolioConfig) Source(name string) (SourceConfig, bool) {
	for _, s := range p.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
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

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
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

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

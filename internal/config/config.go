package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Victor-armando18/product-configurator/internal/infrastructure/yaml"
)

const (
	defaultCatalogDir       = "catalogs"
	defaultSessionTTL       = 30 * time.Minute
	defaultMaxRulePasses    = 10
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultMetricsNamespace = "configurator"
	envCatalogDir           = "CONFIGURATOR_CATALOG_DIR"
	envRedisURL             = "REDIS_URL"
	envSessionTTL           = "CONFIGURATOR_SESSION_TTL"
	envMaxRulePasses        = "CONFIGURATOR_MAX_RULE_PASSES"
	envTaxRates             = "CONFIGURATOR_TAX_RATES"
	envJurisdiction         = "CONFIGURATOR_JURISDICTION"
	envLogLevel             = "LOG_LEVEL"
	envLogFormat            = "LOG_FORMAT"
	envMetricsNamespace     = "METRICS_NAMESPACE"
)

// Config holds runtime configuration for the configurator service and CLI.
type Config struct {
	CatalogDir       string
	RedisURL         string // empty selects the in-memory session store
	SessionTTL       time.Duration
	MaxRulePasses    int
	TaxRatesPath     string
	Jurisdiction     string
	LogLevel         string
	LogFormat        string
	MetricsNamespace string
}

// Load returns configuration using environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		CatalogDir:       getenv(envCatalogDir, defaultCatalogDir),
		RedisURL:         os.Getenv(envRedisURL),
		SessionTTL:       defaultSessionTTL,
		MaxRulePasses:    defaultMaxRulePasses,
		TaxRatesPath:     os.Getenv(envTaxRates),
		Jurisdiction:     os.Getenv(envJurisdiction),
		LogLevel:         getenv(envLogLevel, defaultLogLevel),
		LogFormat:        getenv(envLogFormat, defaultLogFormat),
		MetricsNamespace: getenv(envMetricsNamespace, defaultMetricsNamespace),
	}

	if raw := os.Getenv(envSessionTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid %s %q", envSessionTTL, raw)
		}
		cfg.SessionTTL = ttl
	}
	if raw := os.Getenv(envMaxRulePasses); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid %s %q", envMaxRulePasses, raw)
		}
		cfg.MaxRulePasses = n
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid %s %q (want json or console)", envLogFormat, cfg.LogFormat)
	}
	return cfg, nil
}

// TaxRates is the file format behind CONFIGURATOR_TAX_RATES.
type TaxRates struct {
	Rates map[string]int64 `yaml:"rates"`
}

// LoadTaxRates reads jurisdiction rates in basis points from a YAML file.
func LoadTaxRates(path string) (map[string]int64, error) {
	var doc TaxRates
	if err := yaml.LoadFile(path, &doc); err != nil {
		return nil, fmt.Errorf("load tax rates: %w", err)
	}
	if doc.Rates == nil {
		doc.Rates = map[string]int64{}
	}
	return doc.Rates, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

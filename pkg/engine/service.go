package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Victor-armando18/product-configurator/internal/config"
	"github.com/Victor-armando18/product-configurator/internal/domain/catalog"
	domainengine "github.com/Victor-armando18/product-configurator/internal/domain/engine"
	"github.com/Victor-armando18/product-configurator/internal/domain/pricing"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/metrics"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/store"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/tax"
	"github.com/Victor-armando18/product-configurator/internal/interfaces"
	"github.com/Victor-armando18/product-configurator/internal/usecase"
)

// Service is a ready to use session facade together with the resources it
// owns.
type Service struct {
	*usecase.SessionService
	closers []func() error
}

// NewService wires catalogs, expressions, tax, session storage and metrics
// from cfg. Sessions go to Redis when cfg.RedisURL is set, to memory
// otherwise.
func NewService(cfg *config.Config, log zerolog.Logger) (*Service, error) {
	pipeline, err := NewPipeline(cfg)
	if err != nil {
		return nil, err
	}

	svc := &Service{}
	var sessions interfaces.SessionStore
	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		sessions = rs
		svc.closers = append(svc.closers, rs.Close)
	} else {
		sessions = store.NewMemory(cfg.SessionTTL)
	}

	svc.SessionService = usecase.NewSessionService(NewCatalogLoader(cfg.CatalogDir), sessions, pipeline,
		usecase.WithLogger(log),
		usecase.WithMetrics(metrics.NewProm(cfg.MetricsNamespace, nil)),
		usecase.WithDefaultJurisdiction(cfg.Jurisdiction),
	)
	log.Info().
		Str("catalog_dir", cfg.CatalogDir).
		Bool("redis", cfg.RedisURL != "").
		Dur("session_ttl", cfg.SessionTTL).
		Msg("configurator service ready")
	return svc, nil
}

// NewCatalogLoader returns a file loader with JsonLogic expressions enabled.
func NewCatalogLoader(dir string) *infrastructure.FileCatalogLoader {
	return infrastructure.NewFileCatalogLoader(dir, catalog.WithExpressionEvaluator(infrastructure.NewJsonLogicExecutor()))
}

// NewPipeline builds the rules, validation and pricing pipeline described by
// cfg. A missing tax-rate file leaves every session untaxed.
func NewPipeline(cfg *config.Config) (*domainengine.Pipeline, error) {
	var calc pricing.TaxCalculator
	if cfg.TaxRatesPath != "" {
		rates, err := config.LoadTaxRates(cfg.TaxRatesPath)
		if err != nil {
			return nil, err
		}
		flat, err := tax.NewFlatRate(rates)
		if err != nil {
			return nil, fmt.Errorf("tax rates %s: %w", cfg.TaxRatesPath, err)
		}
		calc = flat
	}
	rules := domainengine.New(
		domainengine.WithMaxPasses(cfg.MaxRulePasses),
		domainengine.WithExpressionEvaluator(infrastructure.NewJsonLogicExecutor()),
	)
	return domainengine.NewPipeline(rules, pricing.NewCalculator(calc)), nil
}

// Close releases the session store connection, if any.
func (s *Service) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Package app wires configuration, storage, clients and services into
// the running application.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/folioapp/folio/internal/clients/daum"
	"github.com/folioapp/folio/internal/clients/exchangerate"
	"github.com/folioapp/folio/internal/clients/naver"
	"github.com/folioapp/folio/internal/clients/yahoo"
	"github.com/folioapp/folio/internal/common"
	"github.com/folioapp/folio/internal/interfaces"
	"github.com/folioapp/folio/internal/market"
	"github.com/folioapp/folio/internal/services/portfolio"
	"github.com/folioapp/folio/internal/services/quote"
	"github.com/folioapp/folio/internal/services/rates"
	"github.com/folioapp/folio/internal/storage"
)

// App holds all initialized services and clients. It is the shared core
// used by cmd/folio-server.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	QuoteService     interfaces.QuoteService
	PortfolioService interfaces.PortfolioService
	RateService      *rates.Service
	StartupTime      time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients and services from configuration.
// configPath may be empty, in which case the default resolution logic
// is used: FOLIO_CONFIG, then folio.toml beside the binary, then the
// development fallback.
func NewApp(configPath string) (*App, error) {
	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLogger(config.Logging.Level)

	store, err := storage.NewManager(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	classifier := market.NewClassifier(config.ExtraKosdaqCodes...)
	calendar := market.NewCalendar()

	sources := []interfaces.QuoteSource{
		naver.NewClient(
			naver.WithBaseURL(config.Clients.Naver.BaseURL),
			naver.WithLogger(logger),
			naver.WithRateLimit(config.Clients.Naver.RateLimit),
			naver.WithTimeout(config.Clients.Naver.GetTimeout()),
		),
		daum.NewClient(
			daum.WithBaseURL(config.Clients.Daum.BaseURL),
			daum.WithLogger(logger),
			daum.WithRateLimit(config.Clients.Daum.RateLimit),
			daum.WithTimeout(config.Clients.Daum.GetTimeout()),
		),
		yahoo.NewClient(
			yahoo.WithBaseURL(config.Clients.Yahoo.BaseURL),
			yahoo.WithLogger(logger),
			yahoo.WithRateLimit(config.Clients.Yahoo.RateLimit),
			yahoo.WithTimeout(config.Clients.Yahoo.GetTimeout()),
		),
	}

	quoteService := quote.NewService(classifier, calendar, sources, logger,
		quote.WithTTL(config.Quotes.GetCacheTTL()),
		quote.WithIdleEviction(config.Quotes.GetIdleEviction()),
		quote.WithBatchWorkers(config.Quotes.BatchWorkers),
	)

	rateClient := exchangerate.NewClient(
		exchangerate.WithBaseURL(config.Clients.ExchangeRate.BaseURL),
		exchangerate.WithLogger(logger),
		exchangerate.WithRateLimit(config.Clients.ExchangeRate.RateLimit),
		exchangerate.WithTimeout(config.Clients.ExchangeRate.GetTimeout()),
	)
	rateOpts := []rates.ServiceOption{
		rates.WithRefreshInterval(config.Rates.GetRefreshInterval()),
	}
	if config.ReportingCurrency == "KRW" && config.Rates.FallbackUSDKRW > 0 {
		rateOpts = append(rateOpts, rates.WithStaticFallback("USD", config.Rates.FallbackUSDKRW))
	}
	rateService := rates.NewService(rateClient, store.RateStorage(), config.ReportingCurrency, logger, rateOpts...)

	portfolioService := portfolio.NewService(store.HoldingStorage(), quoteService, rateService, config.ReportingCurrency, logger)

	logger.Info().
		Str("environment", config.Environment).
		Str("reporting_currency", config.ReportingCurrency).
		Str("storage", config.Storage.Path).
		Msg("Application initialized")

	return &App{
		Config:           config,
		Logger:           logger,
		Storage:          store,
		QuoteService:     quoteService,
		PortfolioService: portfolioService,
		RateService:      rateService,
		StartupTime:      time.Now(),
	}, nil
}

// Close stops background work and releases resources.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
}

// Package app assembles the extraction engine from configuration.
package app

import (
	"fmt"
	"net/url"

	"github.com/JustJay7/ecourts-extractor/internal/cache"
	"github.com/JustJay7/ecourts-extractor/internal/captcha"
	"github.com/JustJay7/ecourts-extractor/internal/config"
	"github.com/JustJay7/ecourts-extractor/internal/extractor"
	"github.com/JustJay7/ecourts-extractor/internal/identity"
	"github.com/JustJay7/ecourts-extractor/internal/portal"
	"github.com/JustJay7/ecourts-extractor/internal/scraper"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
)

// App holds the wired engine and the resources that must be released.
type App struct {
	Engine    *extractor.Orchestrator
	Cache     *cache.ResultCache
	Documents *scraper.Downloader
	Identity  *identity.Pool
	Portals   []portal.Config

	browser *scraper.BrowserTransport
	logger  *logger.Logger
}

// New builds every component described by cfg.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	portals, err := portalConfigs(cfg)
	if err != nil {
		return nil, err
	}
	adapters, err := portal.Build(portals, log)
	if err != nil {
		return nil, err
	}

	pool, err := identity.FromConfig(cfg.UserAgents, cfg.ProxyURLs, cfg.IdentityWeights, cfg.IdentityPolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity pool: %w", err)
	}

	a := &App{Identity: pool, Portals: portals, logger: log}

	var tr scraper.Transport
	if cfg.BrowserMode {
		a.browser, err = scraper.NewBrowserTransport(scraper.BrowserOptions{
			Headless:    cfg.HeadlessMode,
			BrowserPath: cfg.BrowserPath,
			Timeout:     cfg.RequestTimeout,
			Debug:       cfg.LogLevel == "debug",
		}, log)
		if err != nil {
			return nil, err
		}
		tr = a.browser
	} else {
		httpTr := scraper.NewHTTPTransport(cfg.RequestTimeout, cfg.RequestsPerSecond, log)
		for _, p := range portals {
			if p.RequestsPerSecond <= 0 {
				continue
			}
			if u, err := url.Parse(p.BaseURL); err == nil && u.Host != "" {
				httpTr.SetHostRate(u.Host, p.RequestsPerSecond)
			}
		}
		tr = httpTr
	}

	ocr := captcha.NewTesseract(cfg.TesseractPath, captcha.CharsFor(cfg.CaptchaCharset), captcha.NewExecRunner(log))
	solver := captcha.NewSolver(ocr, captcha.Options{
		Charset: cfg.CaptchaCharset,
		MinLen:  cfg.CaptchaMinLen,
		MaxLen:  cfg.CaptchaMaxLen,
		Timeout: cfg.CaptchaTimeout,
	}, log)

	a.Cache = cache.New(cfg.CacheSize, 0)
	a.Engine = extractor.New(adapters, tr, pool, solver, a.Cache, extractor.Options{
		CaseTTL:              cfg.CaseCacheTTL,
		PastCauseListTTL:     cfg.PastCauseListTTL,
		Location:             cfg.CourtTimezone,
		QueryTimeout:         cfg.QueryTimeout,
		MaxAttempts:          cfg.MaxAttempts,
		Backoff:              extractor.NewBackoff(cfg.BackoffBase, cfg.BackoffCap, cfg.BackoffJitter),
		MaxConcurrent:        cfg.MaxConcurrentExtractions,
		AggregateCaseSources: cfg.AggregateCaseSources,
	}, log)

	baseURLs := make([]string, 0, len(portals))
	for _, p := range portals {
		baseURLs = append(baseURLs, p.BaseURL)
	}
	a.Documents = scraper.NewDownloader(baseURLs, cfg.RequestTimeout, log)

	log.Info("Extraction engine ready",
		"adapters", a.Engine.Adapters(),
		"identities", pool.Size(),
		"browser", cfg.BrowserMode,
	)
	return a, nil
}

// Close shuts down the browser when one was launched.
func (a *App) Close() error {
	if a.browser == nil {
		return nil
	}
	return a.browser.Close()
}

func portalConfigs(cfg *config.Config) ([]portal.Config, error) {
	if cfg.PortalsFile != "" {
		return portal.LoadConfigs(cfg.PortalsFile)
	}
	portals := portal.DefaultConfigs(cfg.HighCourtBaseURL, cfg.DistrictCourtBaseURL, cfg.SupremeCourtBaseURL)
	if len(portals) == 0 {
		return nil, fmt.Errorf("no portals configured")
	}
	return portals, nil
}

// Package app wires the kitscout components from a Config. Both the server
// and the operator CLI build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/fortuna/kitscout/internal/ai"
	"github.com/fortuna/kitscout/internal/api/rest"
	"github.com/fortuna/kitscout/internal/cache"
	"github.com/fortuna/kitscout/internal/campaign"
	"github.com/fortuna/kitscout/internal/config"
	"github.com/fortuna/kitscout/internal/ingest"
	"github.com/fortuna/kitscout/internal/ingest/source"
	"github.com/fortuna/kitscout/internal/leads"
	"github.com/fortuna/kitscout/internal/logger"
	"github.com/fortuna/kitscout/internal/outreach"
	"github.com/fortuna/kitscout/internal/publisher"
	"github.com/fortuna/kitscout/internal/reconciliation"
	"github.com/fortuna/kitscout/internal/segmentation"
	"github.com/fortuna/kitscout/internal/store"
	"github.com/fortuna/kitscout/internal/store/repository"
	"github.com/fortuna/kitscout/internal/transport"
	"github.com/fortuna/kitscout/internal/validation"
	"go.uber.org/zap"
)

const (
	redisAttempts   = 5
	redisRetryDelay = 2 * time.Second
	mxCacheTTL      = 24 * time.Hour
)

// App holds every wired component.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	DB        *store.Database
	Cache     *cache.RedisCache
	Publisher publisher.Publisher

	Validator  *validation.Validator
	Classifier *segmentation.Classifier
	Generator  *outreach.Generator
	Dispatcher *outreach.Dispatcher
	Ingester   *ingest.Ingester
	Leads      *leads.Service
	Campaigns  *campaign.Manager

	LeadRepo     *repository.LeadRepository
	CampaignRepo *repository.CampaignRepository

	browser *transport.BrowserFetcher
}

// Build opens the database, applies migrations and constructs the
// components. Redis and Gemini are optional; without them MX lookups are
// uncached, events are not published and classification uses the rules.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, observers ...campaign.Observer) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Config: cfg, Log: log, Publisher: publisher.Nop{}}

	db, err := store.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.DB = db
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if cfg.RedisURL != "" {
		rc, err := connectRedis(ctx, cfg.RedisURL, log)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.Cache = rc
		a.Publisher = publisher.NewRedisStreamPublisher(rc.Client())
	}

	var model ai.Model
	if cfg.GeminiAPIKey != "" {
		m, err := ai.NewModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn("AI model unavailable, using rule-based fallbacks", zap.Error(err))
		} else {
			model = m
		}
	}

	client := transport.NewClient(transport.Options{
		RequestsPerSecond: 1,
		Timeout:           cfg.HTTPTimeout,
		Logger:            log,
	})

	var pages transport.Fetcher = client
	if cfg.RenderJS {
		a.browser = transport.NewBrowserFetcher(1, cfg.HTTPTimeout, log)
		pages = a.browser
	}

	deps := source.Deps{PlacesAPIKey: cfg.PlacesAPIKey, Pages: pages, Logger: log}
	var sources []source.Source
	for _, kind := range []source.SourceType{source.SourceMapSearch, source.SourceSinglePage, source.SourceDirectory} {
		src, err := source.New(kind, deps)
		if err != nil {
			a.Close()
			return nil, err
		}
		sources = append(sources, src)
	}

	validatorOpts := []validation.Option{validation.WithLogger(log)}
	if a.Cache != nil {
		validatorOpts = append(validatorOpts, validation.WithCache(a.Cache, mxCacheTTL))
	}
	a.Validator = validation.NewValidator(validatorOpts...)
	a.Classifier = segmentation.NewClassifier(model, log)
	a.Generator = outreach.NewGenerator(model, log)
	a.Dispatcher = outreach.NewDispatcher(log, outreach.ProvidersFromConfig(cfg, client)...)

	a.LeadRepo = repository.NewLeadRepository(db)
	a.CampaignRepo = repository.NewCampaignRepository(db)

	a.Ingester = ingest.NewIngester(sources, reconciliation.NewEngine("", log),
		repository.NewTeamRepository(db), a.LeadRepo, repository.NewScrapeJobRepository(db), a.Publisher, log)
	a.Leads = leads.NewService(a.LeadRepo, a.Validator, a.Classifier, log)

	observers = append([]campaign.Observer{campaign.PublishTo(a.Publisher, log)}, observers...)
	a.Campaigns = campaign.NewManager(a.CampaignRepo, a.LeadRepo, a.Dispatcher,
		campaign.Rates{Email: cfg.Email.RateLimit, SMS: cfg.SMS.RateLimit}, log, observers...)

	return a, nil
}

// RESTDeps returns the components the REST handlers serve.
func (a *App) RESTDeps() rest.Deps {
	checks := map[string]rest.HealthChecker{"database": a.DB}
	if a.Cache != nil {
		checks["redis"] = a.Cache
	}
	return rest.Deps{
		Checks:     checks,
		Ingester:   a.Ingester,
		Leads:      a.Leads,
		Campaigns:  a.Campaigns,
		Validator:  a.Validator,
		Classifier: a.Classifier,
		Generator:  a.Generator,
		Logger:     a.Log,
	}
}

// Close releases the browser, Redis and database.
func (a *App) Close() {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Log.Warn("closing redis", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Log.Warn("closing database", zap.Error(err))
		}
	}
}

// connectRedis retries the initial connection a few times since Redis often
// starts alongside the service.
func connectRedis(ctx context.Context, url string, log *zap.Logger) (*cache.RedisCache, error) {
	var err error
	for i := 0; i < redisAttempts; i++ {
		var rc *cache.RedisCache
		if rc, err = cache.NewRedisCache(url); err == nil {
			log.Info("connected to redis")
			return rc, nil
		}
		if i == redisAttempts-1 {
			break
		}
		log.Warn("redis connection failed, retrying",
			zap.Int("attempt", i+1), zap.Duration("delay", redisRetryDelay), zap.Error(err))
		if err := transport.Sleep(ctx, redisRetryDelay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connecting to redis after %d attempts: %w", redisAttempts, err)
}

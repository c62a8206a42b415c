package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"NordicIngest/internal/classify"
	"NordicIngest/internal/collector"
	"NordicIngest/internal/config"
	"NordicIngest/internal/domain"
	"NordicIngest/internal/escalate"
	"NordicIngest/internal/infrastructure/collectors/aggregator"
	"NordicIngest/internal/infrastructure/collectors/ircalendar"
	"NordicIngest/internal/infrastructure/collectors/rss"
	"NordicIngest/internal/infrastructure/download"
	"NordicIngest/internal/infrastructure/scheduler"
	"NordicIngest/internal/infrastructure/storage"
	"NordicIngest/internal/infrastructure/telegram"
	"NordicIngest/internal/logging"
	"NordicIngest/internal/ports"
	"NordicIngest/internal/resolve"
	"NordicIngest/internal/usecase"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Application wires configuration to the acquisition pipeline and its
// scheduler.
type Application struct {
	cfg          config.Config
	store        *storage.Store
	orchestrator *usecase.Orchestrator
	ticker       *scheduler.Ticker
	logger       *slog.Logger
}

// New builds a runnable application instance: opens the catalog database,
// seeds the configured entities and sources, and assembles the orchestrator.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}

	clock := systemClock{}
	catalog := storage.NewCatalogStore(store, clock)
	calendar := storage.NewCalendarStore(store, clock)
	tasks := storage.NewTaskStore(store)
	sources := storage.NewSourceStore(store, clock)
	entities := storage.NewEntityStore(store)

	if err := seed(context.Background(), cfg, entities, sources); err != nil {
		store.Close()
		return nil, err
	}

	classifier := classify.NewKeywordClassifier()
	extractor := classify.NewEventExtractor()
	resolver := resolve.NewResolver(cfg.DomainEntities())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	registry := collector.NewRegistry()
	registry.Register(aggregator.NewCollector(httpClient, classifier, cfg.Pipeline.UserAgent))
	registry.Register(rss.NewCollector(classifier, cfg.Pipeline.UserAgent, cfg.Pipeline.Lookback, clock))
	registry.Register(ircalendar.NewCollector(httpClient, cfg.Pipeline.UserAgent))

	downloader := download.NewManager(catalog, entities, clock, nil, download.Config{
		StorageRoot: cfg.Storage.Root,
		MaxAttempts: cfg.Pipeline.MaxAttempts,
	}, baseLogger.With("component", "download"))

	escalator := escalate.NewQueue(tasks, clock, baseLogger)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.BotToken != "" {
		notifier = telegram.NewNotifier(
			cfg.Notifications.Telegram.BotToken,
			cfg.Notifications.Telegram.ChatID,
		)
	}

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Collectors: registry,
		Sources:    sources,
		Catalog:    catalog,
		Calendar:   calendar,
		Resolver:   resolver,
		Classifier: classifier,
		Extractor:  extractor,
		Downloader: downloader,
		Escalator:  escalator,
		Notifier:   notifier,
		Clock:      clock,
		Logger:     baseLogger,
		Options: usecase.Options{
			BatchSize:       cfg.Pipeline.BatchSize,
			BatchPause:      cfg.Pipeline.BatchPause,
			DownloadLimit:   cfg.Pipeline.DownloadLimit,
			BrokenThreshold: cfg.Pipeline.BrokenThreshold,
			Lookback:        cfg.Pipeline.Lookback,
			CycleBudget:     cfg.Pipeline.CycleBudget,
		},
	})

	ticker := scheduler.NewTicker()
	ticker.Add(scheduler.Job{
		Name:           "discovery",
		Interval:       cfg.Scheduler.DiscoveryInterval,
		RunImmediately: true,
		Run: func(ctx context.Context, _ time.Time) {
			orchestrator.RunCycle(ctx, domain.KindAggregator, domain.KindRSS)
		},
	})
	ticker.Add(scheduler.Job{
		Name:     "download-sweep",
		Interval: cfg.Scheduler.DownloadInterval,
		Run: func(ctx context.Context, _ time.Time) {
			orchestrator.RunSweep(ctx)
		},
	})
	ticker.Add(scheduler.Job{
		Name:     "calendar-refresh",
		Interval: cfg.Scheduler.CalendarInterval,
		Run: func(ctx context.Context, _ time.Time) {
			orchestrator.RunCycle(ctx, domain.KindIRCalendar)
		},
	})

	return &Application{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		ticker:       ticker,
		logger:       baseLogger.With("component", "app"),
	}, nil
}

// seed persists the configured entities and sources so health tracking and
// runtime state survive restarts.
func seed(ctx context.Context, cfg config.Config, entities ports.EntityStore, sources ports.SourceStore) error {
	for _, e := range cfg.DomainEntities() {
		if err := entities.Save(ctx, e); err != nil {
			return fmt.Errorf("seed entity %s: %w", e.ID, err)
		}
	}
	for _, s := range cfg.DomainSources() {
		if err := sources.Save(ctx, s); err != nil {
			return fmt.Errorf("seed source %s: %w", s.ID, err)
		}
	}
	return nil
}

// RunOnce executes a single full acquisition cycle and returns its report.
func (a *Application) RunOnce(ctx context.Context) domain.RunReport {
	return a.orchestrator.RunCycle(ctx)
}

// Run starts the phase scheduler and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.ticker.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler started",
		"discovery", a.cfg.Scheduler.DiscoveryInterval,
		"download", a.cfg.Scheduler.DownloadInterval,
		"calendar", a.cfg.Scheduler.CalendarInterval)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.ticker.Stop(stopCtx)
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.store.Close()
}

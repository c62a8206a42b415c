package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"NordicIngest/internal/domain"
)

const (
	configPathEnv    = "NORDIC_INGEST_CONFIG"
	databasePathEnv  = "NORDIC_INGEST_DB"
	storageRootEnv   = "NORDIC_INGEST_STORAGE"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	telegramChatEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Storage       StorageConfig      `yaml:"storage"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	Entities      []EntityConfig     `yaml:"entities"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig sets the console log level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig locates the SQLite catalog database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig locates the downloaded document tree.
type StorageConfig struct {
	Root string `yaml:"root"`
}

// PipelineConfig tunes one acquisition cycle.
type PipelineConfig struct {
	BatchSize       int           `yaml:"batchSize"`
	BatchPause      time.Duration `yaml:"batchPause"`
	DownloadLimit   int           `yaml:"downloadLimit"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	BrokenThreshold int           `yaml:"brokenThreshold"`
	Lookback        time.Duration `yaml:"lookback"`
	CycleBudget     time.Duration `yaml:"cycleBudget"`
	UserAgent       string        `yaml:"userAgent"`
}

// SchedulerConfig sets the cadence of each recurring phase.
type SchedulerConfig struct {
	DiscoveryInterval time.Duration `yaml:"discoveryInterval"`
	DownloadInterval  time.Duration `yaml:"downloadInterval"`
	CalendarInterval  time.Duration `yaml:"calendarInterval"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// EntityConfig registers one tracked company.
type EntityConfig struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	Key               string   `yaml:"key"`
	Aliases           []string `yaml:"aliases"`
	Country           string   `yaml:"country"`
	Ticker            string   `yaml:"ticker"`
	ReportingLanguage string   `yaml:"reportingLanguage"`
	IRWebsite         string   `yaml:"irWebsite"`
}

// SourceConfig describes a single collection source with its kind-specific
// settings. Exactly the fields for the declared kind must be set; Validate
// rejects anything else at load time.
type SourceConfig struct {
	ID            string            `yaml:"id"`
	EntityID      string            `yaml:"entityId"`
	Kind          string            `yaml:"kind"`
	Priority      int               `yaml:"priority"`
	RatePerSecond float64           `yaml:"ratePerSecond"`
	Slug          string            `yaml:"slug"`
	BaseURL       string            `yaml:"baseUrl"`
	Limit         int               `yaml:"limit"`
	FeedURLs      []string          `yaml:"feedUrls"`
	CalendarURL   string            `yaml:"calendarUrl"`
	Selectors     map[string]string `yaml:"selectors"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(storageRootEnv); v != "" {
		c.Storage.Root = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// Validate checks the per-source invariants: known kind, required fields for
// the kind, no cross-kind leftovers, and entity references that exist.
func (c Config) Validate() error {
	entityIDs := map[string]struct{}{}
	for i, e := range c.Entities {
		if e.ID == "" || e.Name == "" {
			return fmt.Errorf("entity %d: id and name are required", i)
		}
		if _, ok := entityIDs[e.ID]; ok {
			return fmt.Errorf("entity %s: duplicate id", e.ID)
		}
		entityIDs[e.ID] = struct{}{}
	}

	sourceIDs := map[string]struct{}{}
	for i, s := range c.Sources {
		if s.ID == "" {
			return fmt.Errorf("source %d: id is required", i)
		}
		if _, ok := sourceIDs[s.ID]; ok {
			return fmt.Errorf("source %s: duplicate id", s.ID)
		}
		sourceIDs[s.ID] = struct{}{}

		if s.EntityID == "" {
			return fmt.Errorf("source %s: entityId is required", s.ID)
		}
		if _, ok := entityIDs[s.EntityID]; !ok {
			return fmt.Errorf("source %s: unknown entity %s", s.ID, s.EntityID)
		}

		switch domain.SourceKind(s.Kind) {
		case domain.KindAggregator:
			if s.BaseURL == "" || s.Slug == "" {
				return fmt.Errorf("source %s: aggregator requires baseUrl and slug", s.ID)
			}
			if len(s.FeedURLs) > 0 || s.CalendarURL != "" {
				return fmt.Errorf("source %s: aggregator must not carry feed or calendar settings", s.ID)
			}
		case domain.KindRSS:
			if len(s.FeedURLs) == 0 {
				return fmt.Errorf("source %s: rss requires at least one feed url", s.ID)
			}
			if s.Slug != "" || s.BaseURL != "" || s.CalendarURL != "" {
				return fmt.Errorf("source %s: rss must not carry aggregator or calendar settings", s.ID)
			}
		case domain.KindIRCalendar:
			if s.CalendarURL == "" {
				return fmt.Errorf("source %s: ir_calendar requires calendarUrl", s.ID)
			}
			if s.Slug != "" || s.BaseURL != "" || len(s.FeedURLs) > 0 {
				return fmt.Errorf("source %s: ir_calendar must not carry aggregator or feed settings", s.ID)
			}
		case domain.KindEmail:
			return fmt.Errorf("source %s: kind email is reserved and has no collector", s.ID)
		default:
			return fmt.Errorf("source %s: unknown kind %q", s.ID, s.Kind)
		}
	}

	return nil
}

// DomainEntities converts the configured entities to domain form.
func (c Config) DomainEntities() []domain.Entity {
	out := make([]domain.Entity, 0, len(c.Entities))
	for _, e := range c.Entities {
		out = append(out, domain.Entity{
			ID:                e.ID,
			Name:              e.Name,
			Key:               e.Key,
			Aliases:           e.Aliases,
			Country:           e.Country,
			Ticker:            e.Ticker,
			ReportingLanguage: e.ReportingLanguage,
			IRWebsite:         e.IRWebsite,
		})
	}
	return out
}

// DomainSources converts the configured sources to domain form.
func (c Config) DomainSources() []domain.CollectionSource {
	out := make([]domain.CollectionSource, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, domain.CollectionSource{
			ID:            s.ID,
			EntityID:      s.EntityID,
			Kind:          domain.SourceKind(s.Kind),
			Priority:      s.Priority,
			RatePerSecond: s.RatePerSecond,
			Status:        domain.SourceActive,
			Config: domain.SourceConfig{
				Slug:        s.Slug,
				BaseURL:     s.BaseURL,
				Limit:       s.Limit,
				FeedURLs:    s.FeedURLs,
				CalendarURL: s.CalendarURL,
				Selectors:   s.Selectors,
			},
		})
	}
	return out
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Database.Path != "" {
		base.Database = override.Database
	}
	if override.Storage.Root != "" {
		base.Storage = override.Storage
	}

	if override.Pipeline.BatchSize > 0 {
		base.Pipeline.BatchSize = override.Pipeline.BatchSize
	}
	if override.Pipeline.BatchPause > 0 {
		base.Pipeline.BatchPause = override.Pipeline.BatchPause
	}
	if override.Pipeline.DownloadLimit > 0 {
		base.Pipeline.DownloadLimit = override.Pipeline.DownloadLimit
	}
	if override.Pipeline.MaxAttempts > 0 {
		base.Pipeline.MaxAttempts = override.Pipeline.MaxAttempts
	}
	if override.Pipeline.BrokenThreshold > 0 {
		base.Pipeline.BrokenThreshold = override.Pipeline.BrokenThreshold
	}
	if override.Pipeline.Lookback > 0 {
		base.Pipeline.Lookback = override.Pipeline.Lookback
	}
	if override.Pipeline.CycleBudget > 0 {
		base.Pipeline.CycleBudget = override.Pipeline.CycleBudget
	}
	if override.Pipeline.UserAgent != "" {
		base.Pipeline.UserAgent = override.Pipeline.UserAgent
	}

	if override.Scheduler.DiscoveryInterval > 0 {
		base.Scheduler.DiscoveryInterval = override.Scheduler.DiscoveryInterval
	}
	if override.Scheduler.DownloadInterval > 0 {
		base.Scheduler.DownloadInterval = override.Scheduler.DownloadInterval
	}
	if override.Scheduler.CalendarInterval > 0 {
		base.Scheduler.CalendarInterval = override.Scheduler.CalendarInterval
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if len(override.Entities) > 0 {
		base.Entities = override.Entities
	}
	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Path: "nordicingest.db"},
		Storage:  StorageConfig{Root: "documents"},
		Pipeline: PipelineConfig{
			BatchSize:       3,
			BatchPause:      2 * time.Second,
			DownloadLimit:   20,
			MaxAttempts:     3,
			BrokenThreshold: 5,
			Lookback:        90 * 24 * time.Hour,
			CycleBudget:     30 * time.Minute,
			UserAgent:       "NordicIngest/1.0 (financial document collection)",
		},
		Scheduler: SchedulerConfig{
			DiscoveryInterval: 6 * time.Hour,
			DownloadInterval:  30 * time.Minute,
			CalendarInterval:  24 * time.Hour,
		},
	}
}

// MustLoad is a convenience for main: it exits on invalid configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NordicIngest/internal/domain"
)

func validConfig() Config {
	cfg := defaultConfig()
	cfg.Entities = []EntityConfig{
		{ID: "volvo-group", Name: "Volvo Group", Key: "volvo", Country: "SE"},
	}
	cfg.Sources = []SourceConfig{
		{
			ID:       "mfn-volvo",
			EntityID: "volvo-group",
			Kind:     "aggregator",
			BaseURL:  "https://news.example",
			Slug:     "volvo",
		},
	}
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(databasePathEnv, "")
	t.Setenv(storageRootEnv, "")
	t.Setenv(telegramTokenEnv, "")
	t.Setenv(telegramChatEnv, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "nordicingest.db", cfg.Database.Path)
	assert.Equal(t, "documents", cfg.Storage.Root)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.Equal(t, 20, cfg.Pipeline.DownloadLimit)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.DiscoveryInterval)
	assert.Equal(t, 30*time.Minute, cfg.Scheduler.DownloadInterval)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	yaml := `
logging:
  level: debug
database:
  path: /var/lib/ingest/catalog.db
pipeline:
  batchSize: 5
  downloadLimit: 50
entities:
  - id: volvo-group
    name: Volvo Group
    key: volvo
sources:
  - id: rss-volvo
    entityId: volvo-group
    kind: rss
    feedUrls:
      - https://ir.example.se/rss
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(databasePathEnv, "/tmp/override.db")
	t.Setenv(storageRootEnv, "")
	t.Setenv(telegramTokenEnv, "123:abc")
	t.Setenv(telegramChatEnv, "-100123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	// the file sets no format, so the default survives the merge
	assert.Equal(t, "text", cfg.Logging.Format)
	// env wins over the file
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 50, cfg.Pipeline.DownloadLimit)
	// untouched fields keep their defaults
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "123:abc", cfg.Notifications.Telegram.BotToken)
	assert.Equal(t, "-100123", cfg.Notifications.Telegram.ChatID)

	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "rss", cfg.Sources[0].Kind)
}

func TestValidateSourceRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "missing source id",
			mutate: func(c *Config) {
				c.Sources[0].ID = ""
			},
			wantErr: "id is required",
		},
		{
			name: "missing entity reference",
			mutate: func(c *Config) {
				c.Sources[0].EntityID = ""
			},
			wantErr: "entityId is required",
		},
		{
			name: "unknown entity reference",
			mutate: func(c *Config) {
				c.Sources[0].EntityID = "nokia"
			},
			wantErr: "unknown entity",
		},
		{
			name: "aggregator without slug",
			mutate: func(c *Config) {
				c.Sources[0].Slug = ""
			},
			wantErr: "requires baseUrl and slug",
		},
		{
			name: "aggregator with feed urls",
			mutate: func(c *Config) {
				c.Sources[0].FeedURLs = []string{"https://x/rss"}
			},
			wantErr: "must not carry",
		},
		{
			name: "rss without feeds",
			mutate: func(c *Config) {
				c.Sources[0] = SourceConfig{ID: "rss-volvo", EntityID: "volvo-group", Kind: "rss"}
			},
			wantErr: "at least one feed url",
		},
		{
			name: "ir_calendar without url",
			mutate: func(c *Config) {
				c.Sources[0] = SourceConfig{ID: "cal-volvo", EntityID: "volvo-group", Kind: "ir_calendar"}
			},
			wantErr: "requires calendarUrl",
		},
		{
			name: "email kind is reserved",
			mutate: func(c *Config) {
				c.Sources[0] = SourceConfig{ID: "mail-volvo", EntityID: "volvo-group", Kind: "email"}
			},
			wantErr: "reserved",
		},
		{
			name: "unknown kind",
			mutate: func(c *Config) {
				c.Sources[0].Kind = "carrier_pigeon"
			},
			wantErr: "unknown kind",
		},
		{
			name: "duplicate source ids",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, c.Sources[0])
			},
			wantErr: "duplicate id",
		},
		{
			name: "duplicate entity ids",
			mutate: func(c *Config) {
				c.Entities = append(c.Entities, c.Entities[0])
			},
			wantErr: "duplicate id",
		},
		{
			name: "entity without name",
			mutate: func(c *Config) {
				c.Entities[0].Name = ""
			},
			wantErr: "id and name are required",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDomainConversions(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Sources[0].RatePerSecond = 0.5

	entities := cfg.DomainEntities()
	require.Len(t, entities, 1)
	assert.Equal(t, "volvo-group", entities[0].ID)
	assert.Equal(t, "volvo", entities[0].Key)

	sources := cfg.DomainSources()
	require.Len(t, sources, 1)
	assert.Equal(t, domain.KindAggregator, sources[0].Kind)
	assert.Equal(t, domain.SourceActive, sources[0].Status)
	assert.Equal(t, 0.5, sources[0].RatePerSecond)
	assert.Equal(t, "volvo", sources[0].Config.Slug)
}

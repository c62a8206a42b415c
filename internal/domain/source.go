package domain

import "time"

// SourceKind identifies a collector implementation.
type SourceKind string

const (
	KindAggregator SourceKind = "aggregator"
	KindRSS        SourceKind = "rss"
	KindIRCalendar SourceKind = "ir_calendar"
	// KindEmail is reserved; no collector is registered for it yet.
	KindEmail SourceKind = "email"
)

// SourceStatus is the health of a collection source.
type SourceStatus string

const (
	SourceActive      SourceStatus = "active"
	SourceBroken      SourceStatus = "broken"
	SourceRateLimited SourceStatus = "rate_limited"
)

// SourceConfig carries the per-kind collector settings. Exactly the fields
// for the source's kind are populated; Validate in the config package
// enforces that at load time.
type SourceConfig struct {
	// Aggregator
	Slug    string
	BaseURL string
	Limit   int
	// RSS
	FeedURLs []string
	// IR calendar
	CalendarURL string
	Selectors   map[string]string
}

// CollectionSource is one configured collector instance for one entity.
// The orchestrator owns Status, LastSuccess and FailureCount.
type CollectionSource struct {
	ID            string
	EntityID      string
	Kind          SourceKind
	Priority      int
	Config        SourceConfig
	Status        SourceStatus
	LastSuccess   time.Time
	FailureCount  int
	RatePerSecond float64
	Notes         string
	UpdatedAt     time.Time
}

package ports

import (
	"context"
	"time"

	"NordicIngest/internal/domain"
)

// CatalogStore is the deduplicating catalog of discovered documents. It is
// the only resource concurrent collectors and downloads may mutate; every
// mutation goes through an atomic admission or transition statement.
type CatalogStore interface {
	// Admit creates an entry in status catalogued for the candidate's
	// fingerprint, or returns the existing entry with created=false.
	Admit(ctx context.Context, entityID string, cand domain.CandidateDocument) (domain.CatalogEntry, bool, error)

	// MarkForDownload moves catalogued entries to pending.
	MarkForDownload(ctx context.Context, ids []string) (int, error)

	// BeginDownload moves pending to downloading. Exactly one concurrent
	// caller wins; the rest get domain.ErrIllegalTransition.
	BeginDownload(ctx context.Context, id string) error

	// CompleteDownload moves downloading to downloaded and records the
	// storage fields in the same statement.
	CompleteDownload(ctx context.Context, id, storagePath, contentHash string, sizeBytes int64) error

	// FailDownload moves downloading to failed, keeping the last error.
	FailDownload(ctx context.Context, id, lastError string) error

	// Requeue is the explicit operator transition failed|downloaded -> pending.
	Requeue(ctx context.Context, id string) error

	Get(ctx context.Context, id string) (domain.CatalogEntry, error)
	ListByStatus(ctx context.Context, status domain.ProcessingStatus, limit, offset int) ([]domain.CatalogEntry, error)
	ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.CatalogEntry, error)
	ListByType(ctx context.Context, docType domain.DocumentType, limit, offset int) ([]domain.CatalogEntry, error)
	CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error)
}

// CalendarStore persists extracted calendar events, unique per
// (entity, type, date). Confirmed events overwrite inferred ones.
type CalendarStore interface {
	Upsert(ctx context.Context, event domain.CalendarEvent) (bool, error)
	ListByEntity(ctx context.Context, entityID string, from time.Time) ([]domain.CalendarEvent, error)
}

// TaskStore persists manual escalation tasks.
type TaskStore interface {
	Create(ctx context.Context, task domain.ManualTask) error
	Update(ctx context.Context, task domain.ManualTask) error
	Get(ctx context.Context, id string) (domain.ManualTask, error)
	FindOpenByEntry(ctx context.Context, catalogEntryID string) (domain.ManualTask, bool, error)
	ListOpen(ctx context.Context, limit, offset int) ([]domain.ManualTask, error)
}

// SourceStore persists collection source configuration and health.
type SourceStore interface {
	Save(ctx context.Context, src domain.CollectionSource) error
	ListActive(ctx context.Context, kinds ...domain.SourceKind) ([]domain.CollectionSource, error)
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string, brokenThreshold int) error
}

// EntityStore holds the registered entities the resolver matches against.
type EntityStore interface {
	Save(ctx context.Context, entity domain.Entity) error
	Get(ctx context.Context, id string) (domain.Entity, error)
	All(ctx context.Context) ([]domain.Entity, error)
}

// EntityResolver maps collector entity hints to registered entities. It is
// the single source of truth for entity keys used in storage paths.
type EntityResolver interface {
	Resolve(hint string) (domain.Entity, error)
}

// Classifier assigns a document type from title and text. Kept behind an
// interface so the pipeline does not depend on any one heuristic.
type Classifier interface {
	Classify(title, text string) domain.DocumentType
}

// EventExtractor derives calendar events from free text. Implementations
// must not emit dividend events without a parsed ex-dividend date.
type EventExtractor interface {
	ExtractEvents(entityID, text, sourceURL string, now time.Time) (events []domain.CandidateEvent, skips []string)
}

// Downloader turns a pending catalog entry into bytes on durable storage or
// a terminal failed status.
type Downloader interface {
	Download(ctx context.Context, entry domain.CatalogEntry) domain.DownloadResult
}

// Escalator converts exhausted entries into manual tasks.
type Escalator interface {
	Escalate(ctx context.Context, entry domain.CatalogEntry, attempted []string, reason string) (domain.ManualTask, error)
}

// Notifier delivers run reports to an operations channel.
type Notifier interface {
	PublishReport(ctx context.Context, report domain.RunReport) error
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// CatalogStore implements admission control and the processing state
// machine over SQLite. Admission relies on the fingerprint unique index, so
// a race between two collectors resolves to exactly one created row.
type CatalogStore struct {
	store *Store
	clock ports.Clock
}

var _ ports.CatalogStore = (*CatalogStore)(nil)

// NewCatalogStore wires the shared store.
func NewCatalogStore(store *Store, clock ports.Clock) *CatalogStore {
	return &CatalogStore{store: store, clock: clock}
}

// Fingerprint derives the stable dedup identifier from the artifact URL.
func Fingerprint(artifactURL string) string {
	sum := sha256.Sum256([]byte(artifactURL))
	return hex.EncodeToString(sum[:])
}

// Admit inserts the candidate as a catalogued entry, or returns the existing
// entry for its fingerprint with created=false.
func (c *CatalogStore) Admit(ctx context.Context, entityID string, cand domain.CandidateDocument) (domain.CatalogEntry, bool, error) {
	now := c.clock.Now()
	entry := domain.CatalogEntry{
		ID:           uuid.NewString(),
		Fingerprint:  Fingerprint(cand.ArtifactURL),
		EntityID:     entityID,
		DocumentType: cand.DocumentType,
		Title:        cand.Title,
		ArtifactURL:  cand.ArtifactURL,
		PageURL:      cand.PageURL,
		Language:     cand.Language,
		Period:       cand.Period,
		Status:       domain.StatusCatalogued,
		DiscoveredAt: now,
		UpdatedAt:    now,
	}

	query, args, err := c.store.sb.
		Insert("catalog_entries").
		Columns("id", "fingerprint", "entity_id", "document_type", "title",
			"artifact_url", "page_url", "language", "period", "status",
			"discovered_at", "updated_at").
		Values(entry.ID, entry.Fingerprint, entry.EntityID, string(entry.DocumentType),
			entry.Title, entry.ArtifactURL, entry.PageURL, entry.Language, entry.Period,
			string(entry.Status), formatTime(now), formatTime(now)).
		Suffix("ON CONFLICT(fingerprint) DO NOTHING").
		ToSql()
	if err != nil {
		return domain.CatalogEntry{}, false, fmt.Errorf("build admit: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.CatalogEntry{}, false, fmt.Errorf("admit candidate: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return domain.CatalogEntry{}, false, fmt.Errorf("admit rows: %w", err)
	}
	if rows == 1 {
		return entry, true, nil
	}

	existing, err := c.getBy(ctx, sq.Eq{"fingerprint": entry.Fingerprint})
	if err != nil {
		return domain.CatalogEntry{}, false, fmt.Errorf("load duplicate: %w", err)
	}
	return existing, false, nil
}

// MarkForDownload queues catalogued entries for the download manager.
func (c *CatalogStore) MarkForDownload(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query, args, err := c.store.sb.
		Update("catalog_entries").
		Set("status", string(domain.StatusPending)).
		Set("updated_at", formatTime(c.clock.Now())).
		Where(sq.Eq{"id": ids, "status": string(domain.StatusCatalogued)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build mark for download: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark for download: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// BeginDownload claims a pending entry. The conditional update doubles as
// the per-entry download lock.
func (c *CatalogStore) BeginDownload(ctx context.Context, id string) error {
	return c.transition(ctx, id, []domain.ProcessingStatus{domain.StatusPending}, domain.StatusDownloading, nil)
}

// CompleteDownload records the storage fields together with the final
// transition so a crash never leaves a downloaded entry without them.
func (c *CatalogStore) CompleteDownload(ctx context.Context, id, storagePath, contentHash string, sizeBytes int64) error {
	return c.transition(ctx, id, []domain.ProcessingStatus{domain.StatusDownloading}, domain.StatusDownloaded,
		map[string]any{
			"storage_path": storagePath,
			"content_hash": contentHash,
			"size_bytes":   sizeBytes,
			"last_error":   "",
		})
}

// FailDownload moves a downloading entry to the terminal failed status.
func (c *CatalogStore) FailDownload(ctx context.Context, id, lastError string) error {
	return c.transition(ctx, id, []domain.ProcessingStatus{domain.StatusDownloading}, domain.StatusFailed,
		map[string]any{"last_error": lastError})
}

// Requeue is the explicit operator retry transition.
func (c *CatalogStore) Requeue(ctx context.Context, id string) error {
	return c.transition(ctx, id,
		[]domain.ProcessingStatus{domain.StatusFailed, domain.StatusDownloaded},
		domain.StatusPending,
		map[string]any{
			"storage_path": nil,
			"content_hash": nil,
			"size_bytes":   nil,
			"last_error":   "",
		})
}

func (c *CatalogStore) transition(ctx context.Context, id string, from []domain.ProcessingStatus, to domain.ProcessingStatus, extra map[string]any) error {
	fromValues := make([]string, len(from))
	for i, s := range from {
		fromValues[i] = string(s)
	}

	builder := c.store.sb.
		Update("catalog_entries").
		Set("status", string(to)).
		Set("updated_at", formatTime(c.clock.Now())).
		Where(sq.Eq{"id": id, "status": fromValues})
	for column, value := range extra {
		builder = builder.Set(column, value)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build transition: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows: %w", err)
	}
	if rows == 0 {
		if _, err := c.Get(ctx, id); errors.Is(err, domain.ErrEntryNotFound) {
			return err
		}
		return fmt.Errorf("entry %s to %s: %w", id, to, domain.ErrIllegalTransition)
	}
	return nil
}

// Get loads one entry by id.
func (c *CatalogStore) Get(ctx context.Context, id string) (domain.CatalogEntry, error) {
	return c.getBy(ctx, sq.Eq{"id": id})
}

// ListByStatus pages through entries in one processing status, oldest first.
func (c *CatalogStore) ListByStatus(ctx context.Context, status domain.ProcessingStatus, limit, offset int) ([]domain.CatalogEntry, error) {
	return c.list(ctx, sq.Eq{"status": string(status)}, limit, offset)
}

// ListByEntity pages through one entity's entries.
func (c *CatalogStore) ListByEntity(ctx context.Context, entityID string, limit, offset int) ([]domain.CatalogEntry, error) {
	return c.list(ctx, sq.Eq{"entity_id": entityID}, limit, offset)
}

// ListByType pages through entries of one document type.
func (c *CatalogStore) ListByType(ctx context.Context, docType domain.DocumentType, limit, offset int) ([]domain.CatalogEntry, error) {
	return c.list(ctx, sq.Eq{"document_type": string(docType)}, limit, offset)
}

// CountByStatus summarizes the catalog for reporting.
func (c *CatalogStore) CountByStatus(ctx context.Context) (map[domain.ProcessingStatus]int, error) {
	query, args, err := c.store.sb.
		Select("status", "COUNT(*)").
		From("catalog_entries").
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[domain.ProcessingStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[domain.ProcessingStatus(status)] = n
	}
	return counts, rows.Err()
}

const catalogColumns = "id, fingerprint, entity_id, document_type, title, artifact_url, page_url, language, period, status, storage_path, content_hash, size_bytes, last_error, discovered_at, updated_at"

func (c *CatalogStore) getBy(ctx context.Context, pred sq.Eq) (domain.CatalogEntry, error) {
	query, args, err := c.store.sb.
		Select(catalogColumns).
		From("catalog_entries").
		Where(pred).
		ToSql()
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("build get: %w", err)
	}

	entry, err := scanEntry(c.store.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CatalogEntry{}, domain.ErrEntryNotFound
	}
	return entry, err
}

func (c *CatalogStore) list(ctx context.Context, pred sq.Eq, limit, offset int) ([]domain.CatalogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := c.store.sb.
		Select(catalogColumns).
		From("catalog_entries").
		Where(pred).
		OrderBy("discovered_at ASC", "id ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CatalogEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.CatalogEntry, error) {
	var (
		entry                    domain.CatalogEntry
		docType, status          string
		storagePath, contentHash sql.NullString
		sizeBytes                sql.NullInt64
		discoveredAt, updatedAt  string
	)
	err := row.Scan(&entry.ID, &entry.Fingerprint, &entry.EntityID, &docType,
		&entry.Title, &entry.ArtifactURL, &entry.PageURL, &entry.Language,
		&entry.Period, &status, &storagePath, &contentHash, &sizeBytes,
		&entry.LastError, &discoveredAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CatalogEntry{}, err
		}
		return domain.CatalogEntry{}, fmt.Errorf("scan entry: %w", err)
	}

	entry.DocumentType = domain.DocumentType(docType)
	entry.Status = domain.ProcessingStatus(status)
	entry.StoragePath = storagePath.String
	entry.ContentHash = contentHash.String
	entry.SizeBytes = sizeBytes.Int64
	entry.DiscoveredAt = parseTime(discoveredAt)
	entry.UpdatedAt = parseTime(updatedAt)
	return entry, nil
}

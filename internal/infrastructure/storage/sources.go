package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// SourceStore persists collection source configuration and health. The
// orchestrator records success/failure after every pass; crossing the broken
// threshold retires a source until an operator resets it.
type SourceStore struct {
	store *Store
	clock ports.Clock
}

var _ ports.SourceStore = (*SourceStore)(nil)

// NewSourceStore wires the shared store.
func NewSourceStore(store *Store, clock ports.Clock) *SourceStore {
	return &SourceStore{store: store, clock: clock}
}

// Save upserts a source row, preserving health fields on conflict so that a
// config reload does not reset failure history.
func (s *SourceStore) Save(ctx context.Context, src domain.CollectionSource) error {
	cfg, err := json.Marshal(src.Config)
	if err != nil {
		return fmt.Errorf("marshal source config: %w", err)
	}

	query, args, err := s.store.sb.
		Insert("collection_sources").
		Columns("id", "entity_id", "kind", "priority", "config", "status",
			"last_success", "failure_count", "rate_per_second", "notes", "updated_at").
		Values(src.ID, src.EntityID, string(src.Kind), src.Priority, string(cfg),
			string(src.Status), formatNullableTime(src.LastSuccess), src.FailureCount,
			src.RatePerSecond, src.Notes, formatTime(s.clock.Now())).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			priority = excluded.priority,
			config = excluded.config,
			rate_per_second = excluded.rate_per_second,
			notes = excluded.notes,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save source: %w", err)
	}

	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save source: %w", err)
	}
	return nil
}

// ListActive returns active sources, optionally restricted to kinds, in
// priority order.
func (s *SourceStore) ListActive(ctx context.Context, kinds ...domain.SourceKind) ([]domain.CollectionSource, error) {
	builder := s.store.sb.
		Select("id", "entity_id", "kind", "priority", "config", "status",
			"last_success", "failure_count", "rate_per_second", "notes", "updated_at").
		From("collection_sources").
		Where(sq.Eq{"status": string(domain.SourceActive)}).
		OrderBy("priority ASC", "id ASC")
	if len(kinds) > 0 {
		values := make([]string, len(kinds))
		for i, k := range kinds {
			values[i] = string(k)
		}
		builder = builder.Where(sq.Eq{"kind": values})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sources: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.CollectionSource
	for rows.Next() {
		var (
			src          domain.CollectionSource
			kind, status string
			cfg          string
			lastSuccess  sql.NullString
			updatedAt    string
		)
		if err := rows.Scan(&src.ID, &src.EntityID, &kind, &src.Priority, &cfg,
			&status, &lastSuccess, &src.FailureCount, &src.RatePerSecond,
			&src.Notes, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		if err := json.Unmarshal([]byte(cfg), &src.Config); err != nil {
			return nil, fmt.Errorf("decode source config: %w", err)
		}
		src.Kind = domain.SourceKind(kind)
		src.Status = domain.SourceStatus(status)
		src.LastSuccess = parseNullableTime(lastSuccess)
		src.UpdatedAt = parseTime(updatedAt)
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// RecordSuccess resets the failure count and stamps last_success.
func (s *SourceStore) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.store.sb.
		Update("collection_sources").
		Set("last_success", formatTime(at)).
		Set("failure_count", 0).
		Set("status", string(domain.SourceActive)).
		Set("updated_at", formatTime(s.clock.Now())).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record success: %w", err)
	}
	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure count; at brokenThreshold the source
// status flips to broken and the orchestrator stops scheduling it.
func (s *SourceStore) RecordFailure(ctx context.Context, id string, brokenThreshold int) error {
	if brokenThreshold <= 0 {
		brokenThreshold = 5
	}

	now := formatTime(s.clock.Now())
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE collection_sources
		SET failure_count = failure_count + 1,
		    status = CASE WHEN failure_count + 1 >= ? THEN ? ELSE status END,
		    updated_at = ?
		WHERE id = ?`,
		brokenThreshold, string(domain.SourceBroken), now, id)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// EntityStore persists the entity registry the resolver matches against.
type EntityStore struct {
	store *Store
}

var _ ports.EntityStore = (*EntityStore)(nil)

// NewEntityStore wires the shared store.
func NewEntityStore(store *Store) *EntityStore {
	return &EntityStore{store: store}
}

// Save upserts an entity by id.
func (e *EntityStore) Save(ctx context.Context, entity domain.Entity) error {
	aliases, err := json.Marshal(entity.Aliases)
	if err != nil {
		return fmt.Errorf("marshal aliases: %w", err)
	}

	query, args, err := e.store.sb.
		Insert("entities").
		Columns("id", "name", "key", "aliases", "country", "ticker",
			"reporting_language", "ir_website").
		Values(entity.ID, entity.Name, entity.Key, string(aliases), entity.Country,
			entity.Ticker, entity.ReportingLanguage, entity.IRWebsite).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			key = excluded.key,
			aliases = excluded.aliases,
			country = excluded.country,
			ticker = excluded.ticker,
			reporting_language = excluded.reporting_language,
			ir_website = excluded.ir_website`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build save entity: %w", err)
	}

	if _, err := e.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save entity: %w", err)
	}
	return nil
}

// Get loads one entity by id.
func (e *EntityStore) Get(ctx context.Context, id string) (domain.Entity, error) {
	query, args, err := e.store.sb.
		Select("id", "name", "key", "aliases", "country", "ticker",
			"reporting_language", "ir_website").
		From("entities").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("build get entity: %w", err)
	}

	var entity domain.Entity
	var aliases string
	err = e.store.db.QueryRowContext(ctx, query, args...).Scan(&entity.ID,
		&entity.Name, &entity.Key, &aliases, &entity.Country, &entity.Ticker,
		&entity.ReportingLanguage, &entity.IRWebsite)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	if err != nil {
		return domain.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	if err := json.Unmarshal([]byte(aliases), &entity.Aliases); err != nil {
		return domain.Entity{}, fmt.Errorf("decode aliases: %w", err)
	}
	return entity, nil
}

// All returns every registered entity.
func (e *EntityStore) All(ctx context.Context) ([]domain.Entity, error) {
	query, args, err := e.store.sb.
		Select("id", "name", "key", "aliases", "country", "ticker",
			"reporting_language", "ir_website").
		From("entities").
		OrderBy("name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list entities: %w", err)
	}

	rows, err := e.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.Entity
	for rows.Next() {
		var entity domain.Entity
		var aliases string
		if err := rows.Scan(&entity.ID, &entity.Name, &entity.Key, &aliases,
			&entity.Country, &entity.Ticker, &entity.ReportingLanguage,
			&entity.IRWebsite); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		if err := json.Unmarshal([]byte(aliases), &entity.Aliases); err != nil {
			return nil, fmt.Errorf("decode aliases: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

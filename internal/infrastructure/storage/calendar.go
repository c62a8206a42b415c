package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// CalendarStore persists calendar events, unique per (entity, type, date).
type CalendarStore struct {
	store *Store
	clock ports.Clock
}

var _ ports.CalendarStore = (*CalendarStore)(nil)

// NewCalendarStore wires the shared store.
func NewCalendarStore(store *Store, clock ports.Clock) *CalendarStore {
	return &CalendarStore{store: store, clock: clock}
}

// Upsert inserts the event or refreshes the existing row for its
// (entity, type, date) triple. Confirmed rows are never downgraded by an
// inferred event. Returns true when a new row was created.
func (c *CalendarStore) Upsert(ctx context.Context, event domain.CalendarEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	query, args, err := c.store.sb.
		Insert("calendar_events").
		Columns("id", "entity_id", "event_type", "event_date", "event_time",
			"title", "amount", "currency", "record_date", "payment_date",
			"webcast_url", "source_url", "confirmed", "created_at").
		Values(event.ID, event.EntityID, string(event.EventType),
			event.EventDate.UTC().Format("2006-01-02"), event.EventTime,
			event.Title, event.Amount, event.Currency,
			formatNullableTime(event.RecordDate), formatNullableTime(event.PaymentDate),
			event.WebcastURL, event.SourceURL, boolToInt(event.Confirmed),
			formatTime(c.clock.Now())).
		Suffix(`ON CONFLICT(entity_id, event_type, event_date) DO UPDATE SET
			title = excluded.title,
			amount = excluded.amount,
			currency = excluded.currency,
			record_date = COALESCE(excluded.record_date, calendar_events.record_date),
			payment_date = COALESCE(excluded.payment_date, calendar_events.payment_date),
			webcast_url = excluded.webcast_url,
			source_url = excluded.source_url,
			confirmed = MAX(calendar_events.confirmed, excluded.confirmed)
			WHERE excluded.confirmed >= calendar_events.confirmed`).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build upsert event: %w", err)
	}

	before, err := c.exists(ctx, event)
	if err != nil {
		return false, err
	}

	if _, err := c.store.db.ExecContext(ctx, query, args...); err != nil {
		return false, fmt.Errorf("upsert event: %w", err)
	}
	return !before, nil
}

func (c *CalendarStore) exists(ctx context.Context, event domain.CalendarEvent) (bool, error) {
	query, args, err := c.store.sb.
		Select("COUNT(*)").
		From("calendar_events").
		Where(sq.Eq{
			"entity_id":  event.EntityID,
			"event_type": string(event.EventType),
			"event_date": event.EventDate.UTC().Format("2006-01-02"),
		}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build event lookup: %w", err)
	}

	var n int
	if err := c.store.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("event lookup: %w", err)
	}
	return n > 0, nil
}

// ListByEntity returns one entity's events on or after from, soonest first.
func (c *CalendarStore) ListByEntity(ctx context.Context, entityID string, from time.Time) ([]domain.CalendarEvent, error) {
	query, args, err := c.store.sb.
		Select("id", "entity_id", "event_type", "event_date", "event_time",
			"title", "amount", "currency", "record_date", "payment_date",
			"webcast_url", "source_url", "confirmed", "created_at").
		From("calendar_events").
		Where(sq.Eq{"entity_id": entityID}).
		Where(sq.GtOrEq{"event_date": from.UTC().Format("2006-01-02")}).
		OrderBy("event_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list events: %w", err)
	}

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.CalendarEvent
	for rows.Next() {
		var (
			event                   domain.CalendarEvent
			eventType, eventDate    string
			recordDate, paymentDate sql.NullString
			confirmed               int
			createdAt               string
		)
		if err := rows.Scan(&event.ID, &event.EntityID, &eventType, &eventDate,
			&event.EventTime, &event.Title, &event.Amount, &event.Currency,
			&recordDate, &paymentDate, &event.WebcastURL, &event.SourceURL,
			&confirmed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventType = domain.EventType(eventType)
		if d, err := time.Parse("2006-01-02", eventDate); err == nil {
			event.EventDate = d
		}
		event.RecordDate = parseNullableTime(recordDate)
		event.PaymentDate = parseNullableTime(paymentDate)
		event.Confirmed = confirmed != 0
		event.CreatedAt = parseTime(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

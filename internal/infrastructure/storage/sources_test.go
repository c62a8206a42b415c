package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NordicIngest/internal/domain"
)

func testSource(id, entityID string, kind domain.SourceKind) domain.CollectionSource {
	return domain.CollectionSource{
		ID:       id,
		EntityID: entityID,
		Kind:     kind,
		Priority: 1,
		Status:   domain.SourceActive,
		Config: domain.SourceConfig{
			Slug:    "volvo",
			BaseURL: "https://mfn.example/all/a",
		},
	}
}

func TestSourceSavePreservesHealth(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedEntity(t, store, "e1")
	sources := NewSourceStore(store, fixedClock{now: time.Now()})
	ctx := context.Background()

	src := testSource("s1", "e1", domain.KindAggregator)
	require.NoError(t, sources.Save(ctx, src))

	require.NoError(t, sources.RecordFailure(ctx, "s1", 5))
	require.NoError(t, sources.RecordFailure(ctx, "s1", 5))

	// a config reload must not reset failure history
	src.Priority = 2
	require.NoError(t, sources.Save(ctx, src))

	active, err := sources.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, 2, active[0].FailureCount)
	require.Equal(t, 2, active[0].Priority)
	require.Equal(t, "volvo", active[0].Config.Slug)
}

func TestRecordFailureFlipsBrokenAtThreshold(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedEntity(t, store, "e1")
	sources := NewSourceStore(store, fixedClock{now: time.Now()})
	ctx := context.Background()

	require.NoError(t, sources.Save(ctx, testSource("s1", "e1", domain.KindAggregator)))

	for i := 0; i < 4; i++ {
		require.NoError(t, sources.RecordFailure(ctx, "s1", 5))
	}
	active, err := sources.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, sources.RecordFailure(ctx, "s1", 5))
	active, err = sources.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestRecordSuccessResetsFailures(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedEntity(t, store, "e1")
	sources := NewSourceStore(store, fixedClock{now: time.Now()})
	ctx := context.Background()

	require.NoError(t, sources.Save(ctx, testSource("s1", "e1", domain.KindAggregator)))
	require.NoError(t, sources.RecordFailure(ctx, "s1", 5))
	require.NoError(t, sources.RecordFailure(ctx, "s1", 5))

	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, sources.RecordSuccess(ctx, "s1", at))

	active, err := sources.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Zero(t, active[0].FailureCount)
	require.Equal(t, at, active[0].LastSuccess)
}

func TestListActiveFiltersByKind(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	seedEntity(t, store, "e1")
	sources := NewSourceStore(store, fixedClock{now: time.Now()})
	ctx := context.Background()

	require.NoError(t, sources.Save(ctx, testSource("agg", "e1", domain.KindAggregator)))

	feed := testSource("feed", "e1", domain.KindRSS)
	feed.Config = domain.SourceConfig{FeedURLs: []string{"https://example.se/rss"}}
	require.NoError(t, sources.Save(ctx, feed))

	cal := testSource("cal", "e1", domain.KindIRCalendar)
	cal.Config = domain.SourceConfig{CalendarURL: "https://example.se/calendar"}
	require.NoError(t, sources.Save(ctx, cal))

	all, err := sources.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	discovery, err := sources.ListActive(ctx, domain.KindAggregator, domain.KindRSS)
	require.NoError(t, err)
	require.Len(t, discovery, 2)

	calendars, err := sources.ListActive(ctx, domain.KindIRCalendar)
	require.NoError(t, err)
	require.Len(t, calendars, 1)
	require.Equal(t, "cal", calendars[0].ID)
}

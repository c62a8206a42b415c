package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NordicIngest/internal/domain"
)

func TestEntityRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entities := NewEntityStore(store)
	ctx := context.Background()

	volvo := domain.Entity{
		ID:                "volvo-group",
		Name:              "Volvo Group",
		Key:               "volvo",
		Aliases:           []string{"AB Volvo", "Volvokoncernen"},
		Country:           "SE",
		Ticker:            "VOLV-B",
		ReportingLanguage: "sv",
		IRWebsite:         "https://www.volvogroup.com/investors",
	}
	require.NoError(t, entities.Save(ctx, volvo))

	got, err := entities.Get(ctx, "volvo-group")
	require.NoError(t, err)
	assert.Equal(t, volvo, got)

	_, err = entities.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestEntitySaveUpserts(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entities := NewEntityStore(store)
	ctx := context.Background()

	require.NoError(t, entities.Save(ctx, domain.Entity{ID: "hm", Name: "Hennes & Mauritz"}))
	require.NoError(t, entities.Save(ctx, domain.Entity{
		ID:      "hm",
		Name:    "H&M Hennes & Mauritz AB",
		Aliases: []string{"H&M"},
		Country: "SE",
	}))

	got, err := entities.Get(ctx, "hm")
	require.NoError(t, err)
	assert.Equal(t, "H&M Hennes & Mauritz AB", got.Name)
	assert.Equal(t, []string{"H&M"}, got.Aliases)
}

func TestEntityAllOrdersByName(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	entities := NewEntityStore(store)
	ctx := context.Background()

	require.NoError(t, entities.Save(ctx, domain.Entity{ID: "volvo", Name: "Volvo Group"}))
	require.NoError(t, entities.Save(ctx, domain.Entity{ID: "atlas", Name: "Atlas Copco"}))

	all, err := entities.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Atlas Copco", all[0].Name)
	assert.Equal(t, "Volvo Group", all[1].Name)
}

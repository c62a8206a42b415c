package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NordicIngest/internal/domain"
)

var extractNow = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestExtractDividendEvent(t *testing.T) {
	t.Parallel()

	text := `Styrelsen föreslår en utdelning om 7,50 SEK per aktie.
Ex-dag: 2025-04-03. Avstämningsdag: 2025-04-04. Utbetalningsdag: 2025-04-09.`

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("volvo-group", text, "https://example.se/pr", extractNow)
	require.Empty(t, skips)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "volvo-group", ev.EntityID)
	assert.Equal(t, domain.EventDividend, ev.EventType)
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), ev.EventDate)
	assert.Equal(t, time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC), ev.RecordDate)
	assert.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), ev.PaymentDate)
	assert.InDelta(t, 7.50, ev.Amount, 0.001)
	assert.Equal(t, "SEK", ev.Currency)
	assert.Equal(t, "Dividend 7.50 SEK", ev.Title)
	assert.Equal(t, "https://example.se/pr", ev.SourceURL)
}

func TestExtractEnglishDividend(t *testing.T) {
	t.Parallel()

	text := `The board proposes a dividend of 2.30 EUR per share.
Ex-dividend date: 15 April 2025.`

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("nokia", text, "https://example.fi/pr", extractNow)
	require.Empty(t, skips)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), events[0].EventDate)
	assert.InDelta(t, 2.30, events[0].Amount, 0.001)
	assert.Equal(t, "EUR", events[0].Currency)
}

func TestExtractNormalizesKronor(t *testing.T) {
	t.Parallel()

	text := "Utdelning: 4,25 kr per aktie. Ex-dag 2025-05-02."

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("e1", text, "", extractNow)
	require.Empty(t, skips)
	require.Len(t, events, 1)
	assert.Equal(t, "SEK", events[0].Currency)
}

func TestExtractSkipsWithoutExDate(t *testing.T) {
	t.Parallel()

	// an amount alone never produces an event with a guessed date
	text := "Styrelsen föreslår en utdelning om 7,50 SEK per aktie för 2024."

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("e1", text, "", extractNow)
	assert.Empty(t, events)
	require.Len(t, skips, 1)
	assert.Contains(t, skips[0], "ex-dividend date")
}

func TestExtractSkipsWithoutAmount(t *testing.T) {
	t.Parallel()

	text := "Styrelsen återkommer med besked om utdelning senare i vår."

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("e1", text, "", extractNow)
	assert.Empty(t, events)
	require.Len(t, skips, 1)
	assert.Contains(t, skips[0], "amount")
}

func TestExtractSkipsFarFutureExDate(t *testing.T) {
	t.Parallel()

	text := "Dividend of 1.00 SEK per share. Ex-dividend date: 2027-04-03."

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("e1", text, "", extractNow)
	assert.Empty(t, events)
	require.Len(t, skips, 1)
	assert.Contains(t, skips[0], "more than a year out")
}

func TestExtractIgnoresUnrelatedText(t *testing.T) {
	t.Parallel()

	e := NewEventExtractor()
	events, skips := e.ExtractEvents("e1", "Interim report for the second quarter.", "", extractNow)
	assert.Empty(t, events)
	assert.Empty(t, skips)
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2025-01-15", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15 januari 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15 January 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15/1/2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"15.1.2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"31.2.2025", time.Time{}, false},
		{"15 frimaire 2025", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := ParseDate(tc.raw)
		assert.Equal(t, tc.ok, ok, "input %q", tc.raw)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.raw)
		}
	}
}

func TestSearchDateInFreeText(t *testing.T) {
	t.Parallel()

	got, ok := SearchDate("Delårsrapport publiceras den 24 april 2025 kl 07.30")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 24, 0, 0, 0, 0, time.UTC), got)

	got, ok = SearchDate("Q1 report | 2025-04-24 | 08:00 CET")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 24, 0, 0, 0, 0, time.UTC), got)

	_, ok = SearchDate("Kapitalmarknadsdag under hösten")
	assert.False(t, ok)
}

package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NordicIngest/internal/classify"
	"NordicIngest/internal/domain"
)

const companyPage = `<!DOCTYPE html>
<html><body>
<article>
  <h2>Volvo Group: Interim report Q2 2025</h2>
  <time datetime="2025-07-17">17 juli 2025</time>
  <p>Net sales increased during the second quarter.</p>
  <a href="/files/volvo-q2-2025.pdf">Report (PDF)</a>
  <a href="/images/chart.png">Chart</a>
</article>
<article>
  <h2>Volvo Group completes acquisition</h2>
  <time datetime="2025-07-10">10 juli 2025</time>
  <p>The acquisition of the battery plant is complete.</p>
  <img src="https://mb.cision.com/Public/img/banner.jpg">
  <div data-raw='https://mb.cision.com/Main/45/12345/release.pdf'></div>
</article>
<article>
  <h2>Old news from last year</h2>
  <time datetime="2024-02-01">1 februari 2024</time>
  <a href="/files/old.pdf">Old report</a>
</article>
<article>
  <h2>Press photo gallery</h2>
  <time datetime="2025-07-01">1 juli 2025</time>
  <p>No attachments here.</p>
</article>
</body></html>`

func testSource(baseURL string) domain.CollectionSource {
	return domain.CollectionSource{
		ID:       "mfn-volvo",
		EntityID: "volvo-group",
		Kind:     domain.KindAggregator,
		Config: domain.SourceConfig{
			BaseURL: baseURL,
			Slug:    "volvo",
		},
	}
}

func TestCollectExtractsPDFCandidates(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, companyPage)
	}))
	t.Cleanup(srv.Close)

	c := NewCollector(srv.Client(), classify.NewKeywordClassifier(), "test-agent")
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	result, err := c.Collect(context.Background(), testSource(srv.URL), since)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	assert.Equal(t, "/volvo", gotPath)
	assert.Equal(t, "limit=50", gotQuery)

	first := result.Candidates[0]
	assert.Equal(t, "volvo", first.EntityHint)
	assert.Equal(t, "Volvo Group: Interim report Q2 2025", first.Title)
	assert.Equal(t, srv.URL+"/files/volvo-q2-2025.pdf", first.ArtifactURL)
	assert.Equal(t, domain.TypeQuarterlyReport, first.DocumentType)
	assert.Equal(t, "sv", first.Language)
	assert.Equal(t, time.Date(2025, 7, 17, 0, 0, 0, 0, time.UTC), first.PublishedAt)
	assert.Contains(t, first.CalendarHint, "second quarter")

	second := result.Candidates[1]
	assert.Equal(t, "https://mb.cision.com/Main/45/12345/release.pdf", second.ArtifactURL)
	assert.Equal(t, domain.TypeCorporateAction, second.DocumentType)
}

func TestCollectSkipsItemsBeforeSince(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, companyPage)
	}))
	t.Cleanup(srv.Close)

	c := NewCollector(srv.Client(), classify.NewKeywordClassifier(), "test-agent")
	since := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)

	result, err := c.Collect(context.Background(), testSource(srv.URL), since)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.Contains(t, result.Candidates[0].Title, "Interim report")
}

func TestCollectRequiresBaseURLAndSlug(t *testing.T) {
	t.Parallel()

	c := NewCollector(nil, nil, "test-agent")

	src := testSource("https://news.example")
	src.Config.Slug = ""
	_, err := c.Collect(context.Background(), src, time.Time{})
	assert.Error(t, err)

	src = testSource("")
	_, err = c.Collect(context.Background(), src, time.Time{})
	assert.Error(t, err)
}

func TestCollectPropagatesHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c := NewCollector(srv.Client(), nil, "test-agent")
	_, err := c.Collect(context.Background(), testSource(srv.URL), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestCollectHonoursConfiguredLimit(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "<html><body></body></html>")
	}))
	t.Cleanup(srv.Close)

	c := NewCollector(srv.Client(), nil, "test-agent")
	src := testSource(srv.URL)
	src.Config.Limit = 10

	_, err := c.Collect(context.Background(), src, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "limit=10", gotQuery)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	t.Parallel()

	// Swedish headlines are full of å, ä and ö; a byte-index cut near the
	// limit must not leave a torn rune at the end
	long := strings.Repeat("ä", 150)
	got := truncate(long, 199)
	assert.Equal(t, strings.Repeat("ä", 99), got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "abc", truncate("abc", 200))
	assert.Equal(t, "ab", truncate("abcd", 2))
	assert.Empty(t, truncate("ä", 1))
}

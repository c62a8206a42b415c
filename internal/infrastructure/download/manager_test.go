package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/infrastructure/storage"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func pdfBody() []byte {
	body := []byte("%PDF-1.4\n")
	return append(body, bytes.Repeat([]byte("0123456789abcdef"), 128)...)
}

type env struct {
	catalog  *storage.CatalogStore
	entities *storage.EntityStore
	root     string
	clock    fixedClock
}

func newEnv(t *testing.T) env {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "dl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	entities := storage.NewEntityStore(store)
	require.NoError(t, entities.Save(context.Background(), domain.Entity{
		ID:      "e1",
		Name:    "Volvo Group",
		Key:     "volvo",
		Country: "SE",
	}))

	return env{
		catalog:  storage.NewCatalogStore(store, clock),
		entities: entities,
		root:     t.TempDir(),
		clock:    clock,
	}
}

func (e env) pendingEntry(t *testing.T, artifactURL string) domain.CatalogEntry {
	t.Helper()
	ctx := context.Background()
	entry, _, err := e.catalog.Admit(ctx, "e1", domain.CandidateDocument{
		Title:        "Delårsrapport Q2 2025",
		ArtifactURL:  artifactURL,
		DocumentType: domain.TypeQuarterlyReport,
	})
	require.NoError(t, err)
	_, err = e.catalog.MarkForDownload(ctx, []string{entry.ID})
	require.NoError(t, err)
	entry.Status = domain.StatusPending
	return entry
}

func (e env) manager(cfg Config) *Manager {
	cfg.StorageRoot = e.root
	return NewManager(e.catalog, e.entities, e.clock, nil, cfg, nil)
}

func TestDownloadSuccess(t *testing.T) {
	t.Parallel()

	body := pdfBody()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer srv.Close()

	e := newEnv(t)
	entry := e.pendingEntry(t, srv.URL+"/q2-2025.pdf")
	m := e.manager(Config{})

	result := m.Download(context.Background(), entry)
	require.NoError(t, result.Err)
	require.Equal(t, domain.StatusDownloaded, result.Status)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, int32(1), requests.Load())

	wantHash := sha256.Sum256(body)
	require.Equal(t, hex.EncodeToString(wantHash[:]), result.ContentHash)
	require.Equal(t, int64(len(body)), result.SizeBytes)

	// bytes land at the deterministic path
	require.Equal(t, filepath.Join(e.root, "se", "v", "volvo", "2025", "quarterlyreport", "q2-2025-quarterlyreport.pdf"), result.StoragePath)
	onDisk, err := os.ReadFile(result.StoragePath)
	require.NoError(t, err)
	require.Equal(t, body, onDisk)

	got, err := e.catalog.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDownloaded, got.Status)
	require.Equal(t, result.ContentHash, got.ContentHash)
}

func TestDownloadHTMLNotRetried(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>Please verify you are human</body></html>"))
	}))
	defer srv.Close()

	e := newEnv(t)
	entry := e.pendingEntry(t, srv.URL+"/blocked.pdf")
	m := e.manager(Config{BaseBackoff: time.Millisecond})

	result := m.Download(context.Background(), entry)
	require.Equal(t, domain.StatusFailed, result.Status)
	require.ErrorIs(t, result.Err, domain.ErrContentInvalid)

	// a content-validation failure aborts without retrying
	require.Equal(t, int32(1), requests.Load())

	got, err := e.catalog.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, got.Status)
	require.NotEmpty(t, got.LastError)
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	body := pdfBody()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer srv.Close()

	e := newEnv(t)
	entry := e.pendingEntry(t, srv.URL+"/flaky.pdf")
	m := e.manager(Config{BaseBackoff: time.Millisecond})

	result := m.Download(context.Background(), entry)
	require.NoError(t, result.Err)
	require.Equal(t, domain.StatusDownloaded, result.Status)
	require.Equal(t, 3, result.Attempts)
}

func TestDownloadExhaustsRetries(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newEnv(t)
	entry := e.pendingEntry(t, srv.URL+"/down.pdf")
	m := e.manager(Config{BaseBackoff: time.Millisecond})

	result := m.Download(context.Background(), entry)
	require.Equal(t, domain.StatusFailed, result.Status)
	require.ErrorIs(t, result.Err, domain.ErrRetriesExhausted)
	require.Equal(t, int32(3), requests.Load())
}

func TestDownloadRejectsStubAndNonPDF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "too small",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write([]byte("%PDF-1.4 stub"))
			},
		},
		{
			name: "missing magic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/pdf")
				w.Write(bytes.Repeat([]byte("not a pdf at all "), 100))
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			e := newEnv(t)
			entry := e.pendingEntry(t, srv.URL+"/bad.pdf")
			m := e.manager(Config{BaseBackoff: time.Millisecond})

			result := m.Download(context.Background(), entry)
			require.Equal(t, domain.StatusFailed, result.Status)
			require.ErrorIs(t, result.Err, domain.ErrContentInvalid)
		})
	}
}

func TestDownloadedEntryIsIdempotent(t *testing.T) {
	t.Parallel()

	body := pdfBody()
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(body)
	}))
	defer srv.Close()

	e := newEnv(t)
	entry := e.pendingEntry(t, srv.URL+"/once.pdf")
	m := e.manager(Config{})
	ctx := context.Background()

	first := m.Download(ctx, entry)
	require.Equal(t, domain.StatusDownloaded, first.Status)

	got, err := e.catalog.Get(ctx, entry.ID)
	require.NoError(t, err)

	second := m.Download(ctx, got)
	require.NoError(t, second.Err)
	require.Equal(t, domain.StatusDownloaded, second.Status)
	require.Equal(t, first.StoragePath, second.StoragePath)
	require.Equal(t, first.ContentHash, second.ContentHash)

	// the second call performed no fetch
	require.Equal(t, int32(1), requests.Load())
}

package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
	"NordicIngest/internal/storagepath"
)

const userAgent = "NordicIngest/1.0 (financial document collection)"

// Config bounds the retry loop and validation thresholds. The defaults
// mirror polite-crawling practice; treat them as policy, not constants.
type Config struct {
	StorageRoot string
	MaxAttempts int
	BaseBackoff time.Duration
	MinBytes    int64
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Manager turns pending catalog entries into validated bytes at their
// deterministic storage path, or a terminal failed status. All catalog
// mutations go through the store's transition statements; winning the
// pending-to-downloading transition is what licenses a fetch.
type Manager struct {
	catalog  ports.CatalogStore
	entities ports.EntityStore
	clock    ports.Clock
	client   *http.Client
	cfg      Config
	logger   *slog.Logger
}

var _ ports.Downloader = (*Manager)(nil)

// NewManager builds a download manager. A nil client gets a default with
// the configured timeout.
func NewManager(catalog ports.CatalogStore, entities ports.EntityStore, clock ports.Clock, client *http.Client, cfg Config, logger *slog.Logger) *Manager {
	cfg = cfg.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		catalog:  catalog,
		entities: entities,
		clock:    clock,
		client:   client,
		cfg:      cfg,
		logger:   logger,
	}
}

// Download acquires one entry. Already-downloaded entries return the stored
// result without any network traffic.
func (m *Manager) Download(ctx context.Context, entry domain.CatalogEntry) domain.DownloadResult {
	if entry.Status == domain.StatusDownloaded {
		return domain.DownloadResult{
			EntryID:     entry.ID,
			Status:      domain.StatusDownloaded,
			StoragePath: entry.StoragePath,
			ContentHash: entry.ContentHash,
			SizeBytes:   entry.SizeBytes,
		}
	}

	if err := m.catalog.BeginDownload(ctx, entry.ID); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			// Someone else holds the entry, or it is not pending; report the
			// current state instead of double-fetching.
			if current, getErr := m.catalog.Get(ctx, entry.ID); getErr == nil {
				return domain.DownloadResult{
					EntryID:     current.ID,
					Status:      current.Status,
					StoragePath: current.StoragePath,
					ContentHash: current.ContentHash,
					SizeBytes:   current.SizeBytes,
				}
			}
		}
		return domain.DownloadResult{EntryID: entry.ID, Status: entry.Status, Err: err}
	}

	entity, err := m.entities.Get(ctx, entry.EntityID)
	if err != nil {
		return m.fail(ctx, entry, 0, fmt.Errorf("load entity: %w", err))
	}

	body, attempts, err := m.fetch(ctx, entry.ArtifactURL)
	if err != nil {
		return m.fail(ctx, entry, attempts, err)
	}

	if err := validatePDF(body); err != nil {
		// A structurally invalid payload after a clean fetch would come back
		// identical on retry, so it escalates immediately.
		return m.fail(ctx, entry, attempts, fmt.Errorf("%w: %v", domain.ErrContentInvalid, err))
	}

	sum := sha256.Sum256(body)
	contentHash := hex.EncodeToString(sum[:])
	path := storagepath.Build(m.cfg.StorageRoot, entity, entry, m.clock.Now())

	if err := writeFile(path, body); err != nil {
		return m.fail(ctx, entry, attempts, fmt.Errorf("persist bytes: %w", err))
	}

	if err := m.catalog.CompleteDownload(ctx, entry.ID, path, contentHash, int64(len(body))); err != nil {
		return domain.DownloadResult{EntryID: entry.ID, Status: domain.StatusDownloading, Attempts: attempts, Err: err}
	}

	m.logger.Info("downloaded document",
		"entry", entry.ID, "path", path, "bytes", len(body), "attempts", attempts)

	return domain.DownloadResult{
		EntryID:     entry.ID,
		Status:      domain.StatusDownloaded,
		StoragePath: path,
		ContentHash: contentHash,
		SizeBytes:   int64(len(body)),
		Attempts:    attempts,
	}
}

// fetch runs the bounded retry loop. Transient failures (non-200, network,
// timeout) are retried with exponential backoff; an HTML payload is the
// geo-block/anti-bot signature and aborts without retrying.
func (m *Manager) fetch(ctx context.Context, url string) ([]byte, int, error) {
	var lastErr error

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := m.cfg.BaseBackoff << (attempt - 2)
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := m.fetchOnce(ctx, url)
		if err == nil {
			return body, attempt, nil
		}
		if errors.Is(err, domain.ErrContentInvalid) {
			return nil, attempt, err
		}
		lastErr = err
		m.logger.Debug("download attempt failed", "url", url, "attempt", attempt, "error", err)
	}

	return nil, m.cfg.MaxAttempts, fmt.Errorf("%w after %d attempts: %v", domain.ErrRetriesExhausted, m.cfg.MaxAttempts, lastErr)
}

func (m *Manager) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/pdf,application/octet-stream,*/*")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "text/html") {
		return nil, fmt.Errorf("%w: got HTML instead of a document (content-type %q)", domain.ErrContentInvalid, contentType)
	}
	if contentType != "" && !strings.Contains(contentType, "pdf") && !strings.Contains(contentType, "octet-stream") {
		return nil, fmt.Errorf("%w: unexpected content-type %q", domain.ErrContentInvalid, contentType)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) < m.cfg.MinBytes {
		return nil, fmt.Errorf("%w: stub response of %d bytes", domain.ErrContentInvalid, len(body))
	}
	return body, nil
}

func (m *Manager) fail(ctx context.Context, entry domain.CatalogEntry, attempts int, cause error) domain.DownloadResult {
	if err := m.catalog.FailDownload(ctx, entry.ID, cause.Error()); err != nil {
		m.logger.Error("record download failure", "entry", entry.ID, "error", err)
	}
	m.logger.Warn("download failed", "entry", entry.ID, "url", entry.ArtifactURL, "error", cause)
	return domain.DownloadResult{
		EntryID:  entry.ID,
		Status:   domain.StatusFailed,
		Attempts: attempts,
		Err:      cause,
	}
}

var pdfMagic = []byte("%PDF-")

func validatePDF(body []byte) error {
	if !bytes.HasPrefix(body, pdfMagic) {
		return errors.New("missing PDF header")
	}
	return nil
}

// writeFile lands bytes via a temp file and rename so concurrent cycles
// never observe a partial document at the final path.
func writeFile(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

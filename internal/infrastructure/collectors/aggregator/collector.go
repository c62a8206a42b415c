package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"NordicIngest/internal/collector"
	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

const defaultLimit = 50

// cdnPDFExpr catches direct distribution-network links embedded in raw
// article HTML that are not wrapped in anchors.
var cdnPDFExpr = regexp.MustCompile(`https://mb\.cision\.com/[^"'>\s]+\.pdf`)

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".svg"}

// Collector scrapes a financial news aggregator's per-company pages. Each
// company has a stable slug; the page lists press releases with direct PDF
// links to the underlying reports.
type Collector struct {
	client     *http.Client
	classifier ports.Classifier
	userAgent  string
}

var _ collector.Collector = (*Collector)(nil)

// NewCollector wires an HTTP client; a nil client gets a 30s-timeout default.
func NewCollector(client *http.Client, classifier ports.Classifier, userAgent string) *Collector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Collector{client: client, classifier: classifier, userAgent: userAgent}
}

// Kind identifies the strategy inside the registry.
func (c *Collector) Kind() domain.SourceKind {
	return domain.KindAggregator
}

// Collect fetches the company page and extracts PDF-backed candidates.
func (c *Collector) Collect(ctx context.Context, src domain.CollectionSource, since time.Time) (collector.Result, error) {
	if src.Config.BaseURL == "" || src.Config.Slug == "" {
		return collector.Result{}, fmt.Errorf("aggregator source %s: base url and slug are required", src.ID)
	}

	limit := src.Config.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	pageURL, err := buildPageURL(src.Config.BaseURL, src.Config.Slug, limit)
	if err != nil {
		return collector.Result{}, err
	}

	doc, err := c.fetchDocument(ctx, pageURL)
	if err != nil {
		return collector.Result{}, err
	}

	hint := src.Config.Slug
	candidates := c.extractCandidates(doc, hint, pageURL, since)
	return collector.Result{Candidates: candidates}, nil
}

func (c *Collector) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "sv-SE,sv;q=0.9,en;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

func (c *Collector) extractCandidates(doc *goquery.Document, hint, pageURL string, since time.Time) []domain.CandidateDocument {
	base, _ := url.Parse(pageURL)
	var candidates []domain.CandidateDocument
	seen := map[string]struct{}{}

	items := doc.Find("article")
	if items.Length() == 0 {
		// Some page variants list releases as generic blocks.
		items = doc.Find("div.news-item, div.item, div.post")
	}
	if items.Length() == 0 {
		items = doc.Selection
	}

	items.Each(func(_ int, item *goquery.Selection) {
		pdfs := pdfLinks(item, base)
		if len(pdfs) == 0 {
			return
		}

		title := itemTitle(item)
		published := itemDate(item)
		if !published.IsZero() && published.Before(since) {
			return
		}

		text := strings.TrimSpace(item.Find("p").First().Text())
		docType := domain.TypeUnknown
		if c.classifier != nil {
			docType = c.classifier.Classify(title, text)
		}

		for _, pdf := range pdfs {
			if _, ok := seen[pdf]; ok {
				continue
			}
			seen[pdf] = struct{}{}
			candidates = append(candidates, domain.CandidateDocument{
				EntityHint:   hint,
				Title:        title,
				ArtifactURL:  pdf,
				PageURL:      pageURL,
				DocumentType: docType,
				Language:     "sv",
				PublishedAt:  published,
				CalendarHint: title + " " + text,
			})
		}
	})

	return candidates
}

// pdfLinks gathers every link that really ends in .pdf, resolving relative
// hrefs against the page and adding raw CDN links from the item HTML.
func pdfLinks(item *goquery.Selection, base *url.URL) []string {
	var links []string

	item.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".pdf") {
			return
		}
		if strings.HasPrefix(href, "http") {
			links = append(links, href)
			return
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				links = append(links, resolved.String())
			}
		}
	})

	if html, err := goquery.OuterHtml(item); err == nil {
		links = append(links, cdnPDFExpr.FindAllString(html, -1)...)
	}

	out := links[:0]
	for _, link := range links {
		if isImage(link) {
			continue
		}
		out = append(out, link)
	}
	return dedupe(out)
}

func itemTitle(item *goquery.Selection) string {
	if h := strings.TrimSpace(item.Find("h1, h2, h3, h4").First().Text()); h != "" {
		return truncate(h, 200)
	}
	if t, ok := item.Find("a[title]").First().Attr("title"); ok && strings.TrimSpace(t) != "" {
		return truncate(strings.TrimSpace(t), 200)
	}
	if a := strings.TrimSpace(item.Find("a").First().Text()); a != "" {
		return truncate(a, 200)
	}
	return "Financial Document"
}

func itemDate(item *goquery.Selection) time.Time {
	elem := item.Find("time, .date, .published").First()
	raw, ok := elem.Attr("datetime")
	if !ok {
		raw = strings.TrimSpace(elem.Text())
	}
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func buildPageURL(baseURL, slug string, limit int) (string, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/" + slug)
	if err != nil {
		return "", fmt.Errorf("invalid aggregator url %s: %w", baseURL, err)
	}
	query := parsed.Query()
	query.Set("limit", strconv.Itoa(limit))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func isImage(link string) bool {
	lower := strings.ToLower(link)
	for _, ext := range imageExts {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

func dedupe(links []string) []string {
	seen := make(map[string]struct{}, len(links))
	out := make([]string, 0, len(links))
	for _, l := range links {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

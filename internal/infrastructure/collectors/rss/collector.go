package rss

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"NordicIngest/internal/collector"
	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

const defaultCutoff = 90 * 24 * time.Hour

// financialKeywords marks feed items worth cataloguing. Swedish terms first;
// the companies publish bilingual feeds.
var financialKeywords = []string{
	"delårsrapport", "kvartalsrapport", "interim report", "quarterly report",
	"första kvartalet", "andra kvartalet", "tredje kvartalet", "fjärde kvartalet",
	"q1", "q2", "q3", "q4",
	"årsredovisning", "annual report", "årsbokslut", "helårsrapport", "full year",
	"pressmeddelande", "press release", "börsmeddelande",
	"resultat", "earnings", "omsättning", "revenue",
	"utdelning", "dividend",
	"investerare", "investor relations", "finansiell", "financial",
}

var hrefPDFExpr = regexp.MustCompile(`(?i)href=["']([^"']*\.pdf[^"']*)["']`)

// Collector monitors company RSS feeds for financial publications.
type Collector struct {
	parser     *gofeed.Parser
	classifier ports.Classifier
	cutoff     time.Duration
	clock      ports.Clock
}

var _ collector.Collector = (*Collector)(nil)

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewCollector builds the feed collector. cutoff bounds how far back feed
// items are considered; zero means the 90-day default. A nil clock falls
// back to wall time.
func NewCollector(classifier ports.Classifier, userAgent string, cutoff time.Duration, clock ports.Clock) *Collector {
	parser := gofeed.NewParser()
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	if cutoff <= 0 {
		cutoff = defaultCutoff
	}
	if clock == nil {
		clock = wallClock{}
	}
	return &Collector{parser: parser, classifier: classifier, cutoff: cutoff, clock: clock}
}

func (c *Collector) Kind() domain.SourceKind {
	return domain.KindRSS
}

// Collect parses every configured feed. A broken feed fails the whole
// source; the orchestrator tracks that in the source's health record.
func (c *Collector) Collect(ctx context.Context, src domain.CollectionSource, since time.Time) (collector.Result, error) {
	if len(src.Config.FeedURLs) == 0 {
		return collector.Result{}, fmt.Errorf("rss source %s: no feed urls configured", src.ID)
	}

	cutoff := c.clock.Now().Add(-c.cutoff)
	if since.After(cutoff) {
		cutoff = since
	}

	var result collector.Result
	for _, feedURL := range src.Config.FeedURLs {
		feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			return collector.Result{}, fmt.Errorf("parse feed %s: %w", feedURL, err)
		}

		for _, item := range feed.Items {
			cand, ok := c.candidateFromItem(src, item, cutoff)
			if !ok {
				continue
			}
			result.Candidates = append(result.Candidates, cand)
		}
	}
	return result, nil
}

func (c *Collector) candidateFromItem(src domain.CollectionSource, item *gofeed.Item, cutoff time.Time) (domain.CandidateDocument, bool) {
	published := c.clock.Now()
	if item.PublishedParsed != nil {
		published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		published = *item.UpdatedParsed
	}
	if published.Before(cutoff) {
		return domain.CandidateDocument{}, false
	}

	if !relevant(item.Title, item.Description) {
		return domain.CandidateDocument{}, false
	}

	pdfs := extractPDFURLs(item.Description, item.Link)
	if len(pdfs) == 0 {
		return domain.CandidateDocument{}, false
	}

	docType := domain.TypeUnknown
	if c.classifier != nil {
		docType = c.classifier.Classify(item.Title, item.Description)
	}

	return domain.CandidateDocument{
		EntityHint:   src.EntityID,
		Title:        strings.TrimSpace(item.Title),
		ArtifactURL:  pdfs[0],
		PageURL:      item.Link,
		DocumentType: docType,
		Language:     "sv",
		PublishedAt:  published,
		CalendarHint: item.Title + " " + stripTags(item.Description),
	}, true
}

func relevant(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, kw := range financialKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// extractPDFURLs pulls PDF hrefs out of the item description HTML, resolving
// relative links against the item page. A feed item linking to a PDF
// directly counts as well.
func extractPDFURLs(description, itemLink string) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(link string) {
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		out = append(out, link)
	}

	base, _ := url.Parse(itemLink)
	for _, match := range hrefPDFExpr.FindAllStringSubmatch(description, -1) {
		href := match[1]
		if strings.HasPrefix(href, "http") {
			add(href)
			continue
		}
		if base != nil {
			if resolved, err := base.Parse(href); err == nil {
				add(resolved.String())
			}
		}
	}

	if len(out) == 0 && strings.HasSuffix(strings.ToLower(itemLink), ".pdf") {
		add(itemLink)
	}
	return out
}

var tagExpr = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return strings.TrimSpace(tagExpr.ReplaceAllString(html, " "))
}

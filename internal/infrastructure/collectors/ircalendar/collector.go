package ircalendar

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NordicIngest/internal/classify"
	"NordicIngest/internal/collector"
	"NordicIngest/internal/domain"
)

const horizon = 365 * 24 * time.Hour

// Default selectors cover the common IR page builders; per-source selectors
// in the config override them.
const (
	defaultEventSelector = ".calendar-event, .event-item, .ir-event"
	defaultDateSelector  = ".date, .event-date, .datum"
	defaultTitleSelector = ".title, .event-title, .rubrik"
)

// fallbackSelectors are tried in order when the configured event selector
// matches nothing on a page.
var fallbackSelectors = []string{
	"tr.event-row",
	".event-list li",
	".calendar-item",
	".ir-calendar-event",
	"table tbody tr",
	".timeline-item",
}

// Collector scrapes company IR calendar pages for upcoming events. The IR
// page is authoritative for its own company, so every parsed event is
// emitted confirmed.
type Collector struct {
	client    *http.Client
	userAgent string
}

var _ collector.Collector = (*Collector)(nil)

func NewCollector(client *http.Client, userAgent string) *Collector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Collector{client: client, userAgent: userAgent}
}

func (c *Collector) Kind() domain.SourceKind {
	return domain.KindIRCalendar
}

// Collect fetches the configured calendar page and extracts events within
// the coming year.
func (c *Collector) Collect(ctx context.Context, src domain.CollectionSource, _ time.Time) (collector.Result, error) {
	if src.Config.CalendarURL == "" {
		return collector.Result{}, fmt.Errorf("ir_calendar source %s: calendar url is required", src.ID)
	}

	doc, err := c.fetchDocument(ctx, src.Config.CalendarURL)
	if err != nil {
		return collector.Result{}, err
	}

	events := c.extractEvents(doc, src)
	return collector.Result{Events: events}, nil
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
		return nil, fmt.Errorf("request calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	return doc, nil
}

func (c *Collector) extractEvents(doc *goquery.Document, src domain.CollectionSource) []domain.CandidateEvent {
	eventSel := selectorOr(src.Config.Selectors, "events", defaultEventSelector)
	dateSel := selectorOr(src.Config.Selectors, "date", defaultDateSelector)
	titleSel := selectorOr(src.Config.Selectors, "title", defaultTitleSelector)

	items := doc.Find(eventSel)
	if items.Length() == 0 {
		for _, sel := range fallbackSelectors {
			if items = doc.Find(sel); items.Length() > 0 {
				break
			}
		}
	}

	today := time.Now().Truncate(24 * time.Hour)
	var events []domain.CandidateEvent

	items.Each(func(_ int, item *goquery.Selection) {
		dateText := strings.TrimSpace(item.Find(dateSel).First().Text())
		eventDate, ok := classify.ParseDate(dateText)
		if !ok {
			eventDate, ok = classify.SearchDate(item.Text())
		}
		if !ok {
			return
		}
		if eventDate.Before(today) || eventDate.After(today.Add(horizon)) {
			return
		}

		title := strings.TrimSpace(item.Find(titleSel).First().Text())
		if title == "" {
			title = strings.TrimSpace(item.Text())
		}
		if title == "" {
			return
		}

		events = append(events, domain.CandidateEvent{
			EntityID:   src.EntityID,
			EventType:  classifyEvent(title),
			EventDate:  eventDate,
			Title:      title,
			WebcastURL: webcastURL(item),
			SourceURL:  src.Config.CalendarURL,
			Confirmed:  true,
		})
	})

	return events
}

func classifyEvent(title string) domain.EventType {
	text := strings.ToLower(title)
	switch {
	case containsAny(text, "q1", "första kvartalet", "first quarter"):
		return domain.EventQ1Report
	case containsAny(text, "q2", "andra kvartalet", "second quarter", "halvår", "half year"):
		return domain.EventQ2Report
	case containsAny(text, "q3", "tredje kvartalet", "third quarter"):
		return domain.EventQ3Report
	case containsAny(text, "q4", "fjärde kvartalet", "fourth quarter", "bokslutskommuniké"):
		return domain.EventQ4Report
	case containsAny(text, "delårsrapport", "kvartalsrapport", "interim"):
		return domain.EventQ2Report
	case containsAny(text, "årsredovisning", "annual report", "årsbokslut", "helårsrapport"):
		return domain.EventAnnualReport
	case containsAny(text, "årsstämma", "agm", "annual general meeting", "bolagsstämma"):
		return domain.EventAGM
	case containsAny(text, "resultatkonferens", "earnings", "telefonkonferens", "webcast"):
		return domain.EventEarningsCall
	case containsAny(text, "utdelning", "dividend"):
		return domain.EventDividend
	default:
		return domain.EventOther
	}
}

func webcastURL(item *goquery.Selection) string {
	link := item.Find(`a[href*="webcast"], a[href*="stream"], .webcast-link`).First()
	href, _ := link.Attr("href")
	return href
}

func selectorOr(selectors map[string]string, key, fallback string) string {
	if s, ok := selectors[key]; ok && strings.TrimSpace(s) != "" {
		return s
	}
	return fallback
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

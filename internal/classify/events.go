package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// EventExtractor derives dividend calendar events from announcement text.
// An event is emitted only when a source-verified ex-dividend date parses;
// a dividend amount without a date produces a skip, never an event with a
// guessed date.
type EventExtractor struct{}

var _ ports.EventExtractor = (*EventExtractor)(nil)

// NewEventExtractor returns the default extractor.
func NewEventExtractor() *EventExtractor {
	return &EventExtractor{}
}

var (
	dividendAmountExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:utdelning|dividend)\D{0,40}?(\d+[.,]\d+)\s*(SEK|EUR|USD|NOK|DKK|kr|kronor)\s*(?:per|/)\s*(?:aktie|share)`),
		regexp.MustCompile(`(?i)(?:utdelning|dividend)\D{0,40}?(\d+[.,]\d+)\s*(SEK|EUR|USD|NOK|DKK|kr|kronor)`),
		regexp.MustCompile(`(?i)(\d+[.,]\d+)\s*(SEK|EUR|USD|NOK|DKK|kr|kronor)\s*(?:per|/)\s*(?:aktie|share)`),
	}
	exDateExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ex[-\s]?(?:dag|dividend)(?:\s+date)?[\s:]*(\d{1,2}[-/.]\d{1,2}[-/.]\d{4})`),
		regexp.MustCompile(`(?i)ex[-\s]?(?:dag|dividend)(?:\s+date)?[\s:]*(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?i)ex[-\s]?(?:dag|dividend)(?:\s+date)?[\s:]*(\d{1,2}\s+\p{L}+\s+\d{4})`),
	}
	recordDateExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:avstämningsdag|record\s+date)[\s:]*(\d{1,2}[-/.]\d{1,2}[-/.]\d{4})`),
		regexp.MustCompile(`(?i)(?:avstämningsdag|record\s+date)[\s:]*(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?i)(?:avstämningsdag|record\s+date)[\s:]*(\d{1,2}\s+\p{L}+\s+\d{4})`),
	}
	paymentDateExprs = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:utbetalning(?:sdag)?|payment\s+date)[\s:]*(\d{1,2}[-/.]\d{1,2}[-/.]\d{4})`),
		regexp.MustCompile(`(?i)(?:utbetalning(?:sdag)?|payment\s+date)[\s:]*(\d{4}-\d{2}-\d{2})`),
		regexp.MustCompile(`(?i)(?:utbetalning(?:sdag)?|payment\s+date)[\s:]*(\d{1,2}\s+\p{L}+\s+\d{4})`),
	}
)

// ExtractEvents scans text for dividend announcements.
func (e *EventExtractor) ExtractEvents(entityID, text, sourceURL string, now time.Time) ([]domain.CandidateEvent, []string) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "dividend") && !strings.Contains(lower, "utdelning") {
		return nil, nil
	}

	amount, currency, ok := parseDividendAmount(text)
	if !ok {
		return nil, []string{"dividend mention without a parseable amount"}
	}

	exDate, ok := findDate(text, exDateExprs)
	if !ok {
		return nil, []string{"dividend amount without a parseable ex-dividend date"}
	}
	if exDate.After(now.AddDate(1, 0, 0)) {
		return nil, []string{fmt.Sprintf("ex-dividend date %s more than a year out", exDate.Format("2006-01-02"))}
	}

	event := domain.CandidateEvent{
		EntityID:  entityID,
		EventType: domain.EventDividend,
		EventDate: exDate,
		Title:     fmt.Sprintf("Dividend %.2f %s", amount, currency),
		Amount:    amount,
		Currency:  currency,
		SourceURL: sourceURL,
	}
	if d, ok := findDate(text, recordDateExprs); ok {
		event.RecordDate = d
	}
	if d, ok := findDate(text, paymentDateExprs); ok {
		event.PaymentDate = d
	}
	return []domain.CandidateEvent{event}, nil
}

func parseDividendAmount(text string) (float64, string, bool) {
	for _, expr := range dividendAmountExprs {
		m := expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", ".")
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		currency := strings.ToUpper(m[2])
		if currency == "KR" || currency == "KRONOR" {
			currency = "SEK"
		}
		return amount, currency, true
	}
	return 0, "", false
}

func findDate(text string, exprs []*regexp.Regexp) (time.Time, bool) {
	for _, expr := range exprs {
		m := expr.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d, ok := ParseDate(m[1]); ok {
			return d, true
		}
	}
	return time.Time{}, false
}

var swedishMonths = map[string]time.Month{
	"januari": time.January, "februari": time.February, "mars": time.March,
	"april": time.April, "maj": time.May, "juni": time.June,
	"juli": time.July, "augusti": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "december": time.December,
}

var englishMonths = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

var (
	namedDateExpr   = regexp.MustCompile(`(?i)^(\d{1,2})\s+(\p{L}+)\s+(\d{4})$`)
	isoDateExpr     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numericDateExpr = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})$`)
)

// ParseDate parses the date formats seen on Swedish IR pages: "15 januari
// 2025" (Swedish or English month names), "2025-01-15", "15/1/2025",
// "15.1.2025".
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(strings.ToLower(raw))

	if m := namedDateExpr.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month, ok := swedishMonths[m[2]]; ok {
			return makeDate(year, month, day)
		}
		if month, ok := englishMonths[m[2]]; ok {
			return makeDate(year, month, day)
		}
		return time.Time{}, false
	}

	if m := isoDateExpr.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return makeDate(year, time.Month(month), day)
	}

	// Day-first numeric formats.
	if m := numericDateExpr.FindStringSubmatch(raw); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return makeDate(year, time.Month(month), day)
	}

	return time.Time{}, false
}

var looseDateExprs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d{1,2}\s+\p{L}+\s+\d{4}`),
	regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
	regexp.MustCompile(`\d{1,2}[/.]\d{1,2}[/.]\d{4}`),
}

// SearchDate finds the first parseable date anywhere in free text.
func SearchDate(text string) (time.Time, bool) {
	for _, expr := range looseDateExprs {
		for _, m := range expr.FindAllString(text, -1) {
			if d, ok := ParseDate(m); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflows like 31 February.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

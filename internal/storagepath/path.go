package storagepath

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/resolve"
)

// Layout: {root}/{country}/{bucketLetter}/{entityKey}/{year}/{docType}/{period}-{docType}.{ext}
// Every segment is lower-cased and restricted to [a-z0-9-]. The same logical
// document must land at the same path across runs and restarts, so nothing
// here may depend on wall-clock time except the final year fallback.

var (
	segmentExpr = regexp.MustCompile(`[^a-z0-9-]+`)
	dashExpr    = regexp.MustCompile(`-+`)
	yearExpr    = regexp.MustCompile(`\b(20\d{2})\b`)
	quarterExpr = regexp.MustCompile(`(?i)\b(q[1-4])\b`)
)

// quarterPhrases is ordered; when a title mentions several quarters the one
// appearing earliest in the text wins, so the derived period is stable.
var quarterPhrases = []struct {
	phrase  string
	quarter string
}{
	{"första kvartalet", "q1"},
	{"andra kvartalet", "q2"},
	{"tredje kvartalet", "q3"},
	{"fjärde kvartalet", "q4"},
	{"first quarter", "q1"},
	{"second quarter", "q2"},
	{"third quarter", "q3"},
	{"fourth quarter", "q4"},
}

// Build computes the deterministic storage path for a catalog entry. The
// entity key comes from the resolver's canonical mapping; period and year
// fall back from the entry's explicit period, to the title, to the published
// year, to now.
func Build(root string, entity domain.Entity, entry domain.CatalogEntry, now time.Time) string {
	country := sanitize(entity.Country)
	if country == "" {
		country = "xx"
	}

	key := resolve.EntityKey(entity)
	bucket := "u"
	if key != "" {
		bucket = key[:1]
	}

	docType := sanitize(string(entry.DocumentType))
	if docType == "" {
		docType = "unknown"
	}

	period, year := derivePeriod(entry, now)

	return filepath.Join(root, country, bucket, key, year, docType, period+"-"+docType+".pdf")
}

// derivePeriod returns the filename period segment and the year directory.
func derivePeriod(entry domain.CatalogEntry, now time.Time) (period, year string) {
	if p := sanitize(strings.ReplaceAll(entry.Period, "_", "-")); p != "" && p != "unknown" {
		if m := yearExpr.FindString(p); m != "" {
			return p, m
		}
		return p, fallbackYear(entry, now)
	}

	title := strings.ToLower(entry.Title)
	quarter := ""
	first := -1
	for _, p := range quarterPhrases {
		if idx := strings.Index(title, p.phrase); idx >= 0 && (first < 0 || idx < first) {
			first = idx
			quarter = p.quarter
		}
	}
	if quarter == "" {
		if m := quarterExpr.FindString(title); m != "" {
			quarter = strings.ToLower(m)
		}
	}
	year = fallbackYear(entry, now)
	if quarter != "" {
		return quarter + "-" + year, year
	}
	return year, year
}

func fallbackYear(entry domain.CatalogEntry, now time.Time) string {
	if m := yearExpr.FindString(entry.Title); m != "" {
		return m
	}
	if !entry.DiscoveredAt.IsZero() {
		return entry.DiscoveredAt.UTC().Format("2006")
	}
	return now.UTC().Format("2006")
}

func sanitize(segment string) string {
	segment = strings.ToLower(strings.TrimSpace(segment))
	segment = strings.ReplaceAll(segment, " ", "-")
	segment = segmentExpr.ReplaceAllString(segment, "")
	segment = dashExpr.ReplaceAllString(segment, "-")
	return strings.Trim(segment, "-")
}

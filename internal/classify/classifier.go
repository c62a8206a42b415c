package classify

import (
	"strings"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// KeywordClassifier assigns document types from Swedish and English
// financial vocabulary. It is deliberately narrow; anything smarter plugs in
// behind the same interface.
type KeywordClassifier struct{}

var _ ports.Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier returns the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

var (
	quarterlyKeywords = []string{
		"q1", "q2", "q3", "q4", "quarterly", "interim", "quarter",
		"kvartal", "kvartalet", "delårsrapport", "kvartalsrapport",
	}
	annualKeywords = []string{
		"annual report", "full year", "year-end", "yearly",
		"årsredovisning", "årsrapport", "helår", "årsbokslut",
	}
	corporateKeywords = []string{
		"acquisition", "acqui", "merger", "divest", "invests", "investment",
		"förvärv", "köper", "investering", "avyttring", "fusion",
	}
	governanceKeywords = []string{
		"board", "agm", "voting", "governance", "directors", "nomination",
		"styrelse", "bolagsstämma", "röstning", "valberedning", "ledning",
	}
)

// Classify inspects title and text. Quarterly beats annual beats corporate
// action beats governance; everything else is a press release.
func (c *KeywordClassifier) Classify(title, text string) domain.DocumentType {
	haystack := strings.ToLower(title + " " + text)

	if containsAny(haystack, quarterlyKeywords) {
		return domain.TypeQuarterlyReport
	}
	if containsAny(haystack, annualKeywords) {
		return domain.TypeAnnualReport
	}
	if containsAny(haystack, corporateKeywords) {
		return domain.TypeCorporateAction
	}
	if containsAny(haystack, governanceKeywords) {
		return domain.TypeGovernance
	}
	return domain.TypePressRelease
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

package domain

// Entity is a registered company or organization whose documents we track.
// Key is the canonical filesystem/URL slug; the resolver is the only
// component allowed to derive it from free-text hints.
type Entity struct {
	ID                string
	Name              string
	Key               string
	Aliases           []string
	Country           string
	Ticker            string
	ReportingLanguage string
	IRWebsite         string
}

package domain

import "time"

// EventType classifies a calendar event.
type EventType string

const (
	EventQ1Report     EventType = "q1_report"
	EventQ2Report     EventType = "q2_report"
	EventQ3Report     EventType = "q3_report"
	EventQ4Report     EventType = "q4_report"
	EventAnnualReport EventType = "annual_report"
	EventAGM          EventType = "agm"
	EventEarningsCall EventType = "earnings_call"
	EventDividend     EventType = "dividend"
	EventOther        EventType = "other"
)

// CalendarEvent is a company-wide scheduled or historical event. A dividend
// event always carries a source-parsed ex-dividend date as EventDate;
// extraction code must never fill it with a guessed or default date.
type CalendarEvent struct {
	ID          string
	EntityID    string
	EventType   EventType
	EventDate   time.Time
	EventTime   string
	Title       string
	Amount      float64
	Currency    string
	RecordDate  time.Time
	PaymentDate time.Time
	WebcastURL  string
	SourceURL   string
	Confirmed   bool
	CreatedAt   time.Time
}

// CandidateEvent is a collector's or extractor's proposed calendar event
// before persistence.
type CandidateEvent struct {
	EntityHint  string
	EntityID    string
	EventType   EventType
	EventDate   time.Time
	EventTime   string
	Title       string
	Amount      float64
	Currency    string
	RecordDate  time.Time
	PaymentDate time.Time
	WebcastURL  string
	SourceURL   string
	Confirmed   bool
}

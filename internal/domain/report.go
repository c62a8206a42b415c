package domain

import "time"

// SourceReport is the per-source slice of a run report.
type SourceReport struct {
	SourceID string
	Kind     SourceKind
	Found    int
	Events   int
	Err      string
}

// RunReport aggregates the outcome of one orchestrator cycle.
type RunReport struct {
	StartedAt          time.Time
	FinishedAt         time.Time
	Sources            []SourceReport
	Found              int
	Duplicates         int
	Unresolved         int
	DownloadsAttempted int
	DownloadsSucceeded int
	DownloadsFailed    int
	ManualTasksCreated int
	EventsStored       int
	EventsSkipped      int
	Errors             []string
}

// Duration is the wall-clock time the cycle took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

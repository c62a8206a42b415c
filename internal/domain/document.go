package domain

import "time"

// DocumentType classifies a discovered financial document.
type DocumentType string

const (
	TypeQuarterlyReport DocumentType = "quarterly_report"
	TypeAnnualReport    DocumentType = "annual_report"
	TypePressRelease    DocumentType = "press_release"
	TypeCorporateAction DocumentType = "corporate_action"
	TypeGovernance      DocumentType = "governance"
	TypeMixed           DocumentType = "mixed"
	TypeUnknown         DocumentType = "unknown"
)

// ProcessingStatus tracks a catalog entry through the acquisition pipeline.
type ProcessingStatus string

const (
	StatusCatalogued  ProcessingStatus = "catalogued"
	StatusPending     ProcessingStatus = "pending"
	StatusDownloading ProcessingStatus = "downloading"
	StatusDownloaded  ProcessingStatus = "downloaded"
	StatusFailed      ProcessingStatus = "failed"
)

// CandidateDocument is a collector's raw discovery output. The entity is
// referenced by hint only; resolution to a registered entity happens in the
// orchestrator before admission.
type CandidateDocument struct {
	EntityHint   string
	Title        string
	ArtifactURL  string
	PageURL      string
	DocumentType DocumentType
	Language     string
	Period       string
	PublishedAt  time.Time
	CalendarHint string
}

// CatalogEntry is a discovered document tracked by the catalog store.
// Fingerprint is derived from the artifact URL and is unique across all
// entries; ContentHash is the SHA-256 of the downloaded bytes and is set,
// together with StoragePath and SizeBytes, only once Status is downloaded.
type CatalogEntry struct {
	ID           string
	Fingerprint  string
	EntityID     string
	DocumentType DocumentType
	Title        string
	ArtifactURL  string
	PageURL      string
	Language     string
	Period       string
	Status       ProcessingStatus
	StoragePath  string
	ContentHash  string
	SizeBytes    int64
	LastError    string
	DiscoveredAt time.Time
	UpdatedAt    time.Time
}

// DownloadResult summarizes one download manager invocation.
type DownloadResult struct {
	EntryID     string
	Status      ProcessingStatus
	StoragePath string
	ContentHash string
	SizeBytes   int64
	Attempts    int
	Err         error
}

package domain

import "time"

// TaskPriority orders manual tasks for operators.
type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// TaskStatus tracks a manual task's lifecycle. Only operator actions move a
// task to completed or failed.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ManualTask records a document acquisition that exhausted automated
// retries and needs human follow-up.
type ManualTask struct {
	ID               string
	CatalogEntryID   string
	EntityID         string
	DocumentType     DocumentType
	FailureReason    string
	AttemptedMethods []string
	Priority         TaskPriority
	Status           TaskStatus
	Deadline         time.Time
	CompletedBy      string
	CompletionNotes  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      time.Time
}

// Open reports whether the task still needs operator attention.
func (t ManualTask) Open() bool {
	return t.Status == TaskPending || t.Status == TaskInProgress
}

// Overdue reports whether an open task has passed its deadline.
func (t ManualTask) Overdue(now time.Time) bool {
	if t.Deadline.IsZero() || !t.Open() {
		return false
	}
	return now.After(t.Deadline)
}

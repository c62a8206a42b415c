package escalate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

const (
	reportDeadline  = 7 * 24 * time.Hour
	defaultDeadline = 14 * 24 * time.Hour
	urgentWindow    = 48 * time.Hour
)

// Queue maintains at most one open manual task per catalog entry and lets
// operators close tasks out.
type Queue struct {
	tasks  ports.TaskStore
	clock  ports.Clock
	logger *slog.Logger
}

var _ ports.Escalator = (*Queue)(nil)

func NewQueue(tasks ports.TaskStore, clock ports.Clock, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{tasks: tasks, clock: clock, logger: logger.With("component", "escalate")}
}

// Escalate records a failed acquisition for human follow-up. Re-escalating
// an entry with an open task appends the attempted methods and refreshes the
// failure reason instead of creating a duplicate.
func (q *Queue) Escalate(ctx context.Context, entry domain.CatalogEntry, attempted []string, reason string) (domain.ManualTask, error) {
	now := q.clock.Now()

	existing, found, err := q.tasks.FindOpenByEntry(ctx, entry.ID)
	if err != nil {
		return domain.ManualTask{}, fmt.Errorf("find open task: %w", err)
	}
	if found {
		existing.AttemptedMethods = mergeMethods(existing.AttemptedMethods, attempted)
		existing.FailureReason = reason
		existing.Priority = bumpNearDeadline(priorityFor(entry.DocumentType), existing.Deadline, now)
		existing.UpdatedAt = now
		if err := q.tasks.Update(ctx, existing); err != nil {
			return domain.ManualTask{}, fmt.Errorf("update task: %w", err)
		}
		q.logger.Info("escalation refreshed", "task", existing.ID, "entry", entry.ID, "reason", reason)
		return existing, nil
	}

	task := domain.ManualTask{
		ID:               uuid.NewString(),
		CatalogEntryID:   entry.ID,
		EntityID:         entry.EntityID,
		DocumentType:     entry.DocumentType,
		FailureReason:    reason,
		AttemptedMethods: mergeMethods(nil, attempted),
		Priority:         priorityFor(entry.DocumentType),
		Status:           domain.TaskPending,
		Deadline:         now.Add(deadlineFor(entry.DocumentType)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	task.Priority = bumpNearDeadline(task.Priority, task.Deadline, now)

	if err := q.tasks.Create(ctx, task); err != nil {
		return domain.ManualTask{}, fmt.Errorf("create task: %w", err)
	}
	q.logger.Info("escalation created",
		"task", task.ID, "entry", entry.ID, "priority", task.Priority, "reason", reason)
	return task, nil
}

// MarkCompleted closes a task as resolved by an operator.
func (q *Queue) MarkCompleted(ctx context.Context, id, by, notes string) error {
	task, err := q.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	now := q.clock.Now()
	task.Status = domain.TaskCompleted
	task.CompletedBy = by
	task.CompletionNotes = notes
	task.CompletedAt = now
	task.UpdatedAt = now
	return q.tasks.Update(ctx, task)
}

// MarkFailed closes a task as unresolvable, keeping the operator's reason.
func (q *Queue) MarkFailed(ctx context.Context, id, reason string) error {
	task, err := q.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	now := q.clock.Now()
	task.Status = domain.TaskFailed
	task.CompletionNotes = reason
	task.CompletedAt = now
	task.UpdatedAt = now
	return q.tasks.Update(ctx, task)
}

// ListOpen returns open tasks for an operator dashboard.
func (q *Queue) ListOpen(ctx context.Context, limit, offset int) ([]domain.ManualTask, error) {
	return q.tasks.ListOpen(ctx, limit, offset)
}

// ListOverdue filters open tasks past their deadline.
func (q *Queue) ListOverdue(ctx context.Context, limit, offset int) ([]domain.ManualTask, error) {
	open, err := q.tasks.ListOpen(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	now := q.clock.Now()
	overdue := make([]domain.ManualTask, 0, len(open))
	for _, t := range open {
		if t.Overdue(now) {
			overdue = append(overdue, t)
		}
	}
	return overdue, nil
}

func priorityFor(dt domain.DocumentType) domain.TaskPriority {
	switch dt {
	case domain.TypeQuarterlyReport, domain.TypeAnnualReport:
		return domain.PriorityHigh
	case domain.TypeCorporateAction, domain.TypeGovernance:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

func deadlineFor(dt domain.DocumentType) time.Duration {
	switch dt {
	case domain.TypeQuarterlyReport, domain.TypeAnnualReport:
		return reportDeadline
	default:
		return defaultDeadline
	}
}

// bumpNearDeadline promotes high-priority tasks to urgent inside the final
// response window.
func bumpNearDeadline(p domain.TaskPriority, deadline, now time.Time) domain.TaskPriority {
	if p == domain.PriorityHigh && deadline.Sub(now) <= urgentWindow {
		return domain.PriorityUrgent
	}
	return p
}

// mergeMethods appends new attempt methods preserving order and uniqueness.
func mergeMethods(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, lists := range [][]string{existing, incoming} {
		for _, m := range lists {
			if m == "" {
				continue
			}
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

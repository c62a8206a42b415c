package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"NordicIngest/internal/domain"
	"NordicIngest/internal/ports"
)

// TaskStore persists manual escalation tasks.
type TaskStore struct {
	store *Store
}

var _ ports.TaskStore = (*TaskStore)(nil)

// NewTaskStore wires the shared store.
func NewTaskStore(store *Store) *TaskStore {
	return &TaskStore{store: store}
}

const taskColumns = "id, catalog_entry_id, entity_id, document_type, failure_reason, attempted_methods, priority, status, deadline, completed_by, completion_notes, created_at, updated_at, completed_at"

// Create inserts a new task.
func (t *TaskStore) Create(ctx context.Context, task domain.ManualTask) error {
	methods, err := json.Marshal(task.AttemptedMethods)
	if err != nil {
		return fmt.Errorf("marshal methods: %w", err)
	}

	query, args, err := t.store.sb.
		Insert("manual_tasks").
		Columns("id", "catalog_entry_id", "entity_id", "document_type",
			"failure_reason", "attempted_methods", "priority", "status",
			"deadline", "completed_by", "completion_notes",
			"created_at", "updated_at", "completed_at").
		Values(task.ID, task.CatalogEntryID, task.EntityID, string(task.DocumentType),
			task.FailureReason, string(methods), string(task.Priority), string(task.Status),
			formatNullableTime(task.Deadline), task.CompletedBy, task.CompletionNotes,
			formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
			formatNullableTime(task.CompletedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create task: %w", err)
	}

	if _, err := t.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// Update rewrites a task row.
func (t *TaskStore) Update(ctx context.Context, task domain.ManualTask) error {
	methods, err := json.Marshal(task.AttemptedMethods)
	if err != nil {
		return fmt.Errorf("marshal methods: %w", err)
	}

	query, args, err := t.store.sb.
		Update("manual_tasks").
		Set("failure_reason", task.FailureReason).
		Set("attempted_methods", string(methods)).
		Set("priority", string(task.Priority)).
		Set("status", string(task.Status)).
		Set("deadline", formatNullableTime(task.Deadline)).
		Set("completed_by", task.CompletedBy).
		Set("completion_notes", task.CompletionNotes).
		Set("updated_at", formatTime(task.UpdatedAt)).
		Set("completed_at", formatNullableTime(task.CompletedAt)).
		Where(sq.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update task: %w", err)
	}

	res, err := t.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

// Get loads one task by id.
func (t *TaskStore) Get(ctx context.Context, id string) (domain.ManualTask, error) {
	query, args, err := t.store.sb.
		Select(taskColumns).
		From("manual_tasks").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ManualTask{}, fmt.Errorf("build get task: %w", err)
	}

	task, err := scanTask(t.store.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ManualTask{}, domain.ErrTaskNotFound
	}
	return task, err
}

// FindOpenByEntry returns the open task for a catalog entry, if any.
// Escalation dedup hangs off this lookup.
func (t *TaskStore) FindOpenByEntry(ctx context.Context, catalogEntryID string) (domain.ManualTask, bool, error) {
	query, args, err := t.store.sb.
		Select(taskColumns).
		From("manual_tasks").
		Where(sq.Eq{
			"catalog_entry_id": catalogEntryID,
			"status":           []string{string(domain.TaskPending), string(domain.TaskInProgress)},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.ManualTask{}, false, fmt.Errorf("build find open task: %w", err)
	}

	task, err := scanTask(t.store.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ManualTask{}, false, nil
	}
	if err != nil {
		return domain.ManualTask{}, false, err
	}
	return task, true, nil
}

// ListOpen pages through pending and in-progress tasks, oldest first.
func (t *TaskStore) ListOpen(ctx context.Context, limit, offset int) ([]domain.ManualTask, error) {
	if limit <= 0 {
		limit = 100
	}

	query, args, err := t.store.sb.
		Select(taskColumns).
		From("manual_tasks").
		Where(sq.Eq{"status": []string{string(domain.TaskPending), string(domain.TaskInProgress)}}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks: %w", err)
	}

	rows, err := t.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ManualTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (domain.ManualTask, error) {
	var (
		task                  domain.ManualTask
		docType, prio, status string
		methods               string
		deadline, completedAt sql.NullString
		createdAt, updatedAt  string
	)
	err := row.Scan(&task.ID, &task.CatalogEntryID, &task.EntityID, &docType,
		&task.FailureReason, &methods, &prio, &status, &deadline,
		&task.CompletedBy, &task.CompletionNotes, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ManualTask{}, err
		}
		return domain.ManualTask{}, fmt.Errorf("scan task: %w", err)
	}

	if err := json.Unmarshal([]byte(methods), &task.AttemptedMethods); err != nil {
		return domain.ManualTask{}, fmt.Errorf("decode methods: %w", err)
	}
	task.DocumentType = domain.DocumentType(docType)
	task.Priority = domain.TaskPriority(prio)
	task.Status = domain.TaskStatus(status)
	task.Deadline = parseNullableTime(deadline)
	task.CreatedAt = parseTime(createdAt)
	task.UpdatedAt = parseTime(updatedAt)
	task.CompletedAt = parseNullableTime(completedAt)
	return task, nil
}

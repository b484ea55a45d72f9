package fold

import "context"

// Repository records fold tasks for reporting.
type Repository interface {
	// Save persists a task. If the task already exists, it is updated.
	Save(ctx context.Context, task *Task) error

	// List returns all tasks ordered by fold.
	List(ctx context.Context) ([]*Task, error)
}

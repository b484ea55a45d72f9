package fold

import (
	"context"
	"sort"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewMemoryRepository creates a new in-memory task repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*Task),
	}
}

// Save stores a clone of the task to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.ID] = task.Clone()
	return nil
}

// List returns clones of all tasks ordered by fold, then ID.
func (r *MemoryRepository) List(_ context.Context) ([]*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		result = append(result, task.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Fold != result[j].Fold {
			return result[i].Fold < result[j].Fold
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

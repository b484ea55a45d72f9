// Package fold turns one fold directory of clips into an index-aligned batch
// of feature tensors and class ids. It includes the Task entity with its
// state machine and repository interfaces used for reporting.
package fold

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Status represents the current state of a Task.
type Status string

const (
	// StatusPending indicates the task has been created but not started.
	StatusPending Status = "PENDING"
	// StatusScanning indicates the fold directory is being listed.
	StatusScanning Status = "SCANNING"
	// StatusExtracting indicates clips are being turned into tensors.
	StatusExtracting Status = "EXTRACTING"
	// StatusAssembling indicates tensors are being stacked and persisted.
	StatusAssembling Status = "ASSEMBLING"
	// StatusDone indicates the fold's artifacts were written.
	StatusDone Status = "DONE"
	// StatusFailed indicates the fold produced no artifacts.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusScanning, StatusFailed},
	StatusScanning:   {StatusExtracting, StatusFailed},
	StatusExtracting: {StatusAssembling, StatusFailed},
	StatusAssembling: {StatusDone, StatusFailed},
	StatusDone:       {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SkipReason names why a clip was left out of its fold's batch.
type SkipReason string

const (
	// SkipDecode marks files that could not be decoded as audio.
	SkipDecode SkipReason = "decode"
	// SkipEmpty marks files that decoded to zero samples.
	SkipEmpty SkipReason = "empty"
	// SkipTooShort marks clips shorter than one analysis window.
	SkipTooShort SkipReason = "too_short"
	// SkipLabel marks files whose name does not yield a class id.
	SkipLabel SkipReason = "label"
)

// Task tracks the extraction of a single fold.
type Task struct {
	mu sync.RWMutex

	// ID is "<run id>/fold<k>".
	ID string
	// Fold is the fold number k.
	Fold int
	// Dir is the fold directory being scanned.
	Dir string
	// Status is the current task state.
	Status Status
	// Total is the number of candidate files found by the scan.
	Total int
	// Processed is the number of clips that produced a tensor.
	Processed int
	// Skipped counts dropped clips by reason.
	Skipped map[SkipReason]int
	// Error contains the failure cause if the task failed.
	Error string
	// CreatedAt is when the task was created.
	CreatedAt time.Time
	// UpdatedAt is when the task was last updated.
	UpdatedAt time.Time
	// StartedAt is when scanning started.
	StartedAt time.Time
	// CompletedAt is when the task reached a terminal state.
	CompletedAt time.Time
}

// NewTask creates a pending task for fold k read from dir.
func NewTask(runID string, k int, dir string) *Task {
	now := time.Now()
	return &Task{
		ID:        fmt.Sprintf("%s/fold%d", runID, k),
		Fold:      k,
		Dir:       dir,
		Status:    StatusPending,
		Skipped:   make(map[SkipReason]int),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the task status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (t *Task) TransitionTo(status Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(status)
}

func (t *Task) transitionLocked(status Status) error {
	if !canTransition(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	switch status {
	case StatusScanning:
		t.StartedAt = t.UpdatedAt
	case StatusDone, StatusFailed:
		t.CompletedAt = t.UpdatedAt
	}
	return nil
}

// Start transitions the task from PENDING to SCANNING.
func (t *Task) Start() error {
	return t.TransitionTo(StatusScanning)
}

// BeginExtract records the scan result and moves to EXTRACTING.
func (t *Task) BeginExtract(total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusExtracting); err != nil {
		return err
	}
	t.Total = total
	return nil
}

// BeginAssemble moves the task to ASSEMBLING.
func (t *Task) BeginAssemble() error {
	return t.TransitionTo(StatusAssembling)
}

// Complete transitions the task to DONE.
func (t *Task) Complete() error {
	return t.TransitionTo(StatusDone)
}

// Fail transitions the task to FAILED with an error message.
func (t *Task) Fail(errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusFailed); err != nil {
		return err
	}
	t.Error = errMsg
	return nil
}

// RecordProcessed counts one clip that produced a tensor.
func (t *Task) RecordProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Processed++
	t.UpdatedAt = time.Now()
}

// RecordSkip counts one dropped clip.
func (t *Task) RecordSkip(reason SkipReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Skipped[reason]++
	t.UpdatedAt = time.Now()
}

// SkippedTotal returns the number of dropped clips across all reasons.
func (t *Task) SkippedTotal() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, c := range t.Skipped {
		n += c
	}
	return n
}

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// Clone creates a deep copy of the task for safe reads.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:          t.ID,
		Fold:        t.Fold,
		Dir:         t.Dir,
		Status:      t.Status,
		Total:       t.Total,
		Processed:   t.Processed,
		Skipped:     maps.Clone(t.Skipped),
		Error:       t.Error,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
	}
}

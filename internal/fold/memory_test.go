package fold

import (
	"context"
	"testing"
)

func TestMemoryRepository_SaveAndList(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask("run", 1, "dir")

	if err := repo.Save(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tasks, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("expected [%s], got %v", task.ID, tasks)
	}
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask("run", 1, "dir")

	_ = repo.Save(ctx, task)

	_ = task.Start()
	task.RecordProcessed()
	_ = repo.Save(ctx, task)

	tasks, _ := repo.List(ctx)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task after update, got %d", len(tasks))
	}
	if tasks[0].Status != StatusScanning {
		t.Errorf("expected status %s, got %s", StatusScanning, tasks[0].Status)
	}
	if tasks[0].Processed != 1 {
		t.Errorf("expected processed 1, got %d", tasks[0].Processed)
	}
}

func TestMemoryRepository_ReturnsClones(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	task := NewTask("run", 1, "dir")
	_ = repo.Save(ctx, task)

	task.RecordSkip(SkipDecode)

	tasks, _ := repo.List(ctx)
	if tasks[0].SkippedTotal() != 0 {
		t.Error("stored task changed after Save")
	}

	tasks[0].RecordSkip(SkipLabel)
	again, _ := repo.List(ctx)
	if again[0].SkippedTotal() != 0 {
		t.Error("stored task changed through a listed copy")
	}
}

func TestMemoryRepository_List_OrderedByFold(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, k := range []int{3, 1, 10, 2} {
		_ = repo.Save(ctx, NewTask("run", k, "dir"))
	}

	tasks, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []int{1, 2, 3, 10}
	if len(tasks) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(tasks))
	}
	for i, k := range want {
		if tasks[i].Fold != k {
			t.Errorf("tasks[%d].Fold = %d, want %d", i, tasks[i].Fold, k)
		}
	}
}

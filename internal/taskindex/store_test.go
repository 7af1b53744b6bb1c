package taskindex

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskgraph/taskgraph/internal/models"
)

func sampleTask(id string, status models.Status) models.Task {
	return models.Task{
		ParentTaskID:   id,
		UserTaskString: "investigate " + id,
		Mode:           models.ModeExecuteFullPlan,
		Status:         status,
		CreatedAt:      time.Unix(1000, 0).UTC(),
		UpdatedAt:      time.Unix(2000, 0).UTC(),
	}
}

func TestUpsert_InsertThenUpdateSameRow(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	task := sampleTask("task-1", models.StatusPlanGenerated)
	require.NoError(t, store.Upsert(ctx, task, "/tasks/task-1"))

	task.Status = models.StatusCompleted
	task.UpdatedAt = time.Unix(3000, 0).UTC()
	require.NoError(t, store.Upsert(ctx, task, "/tasks/task-1"))

	rows, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.StatusCompleted, rows[0].Status)
}

func TestList_FiltersByStatus(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, sampleTask("a", models.StatusCompleted), "/a"))
	require.NoError(t, store.Upsert(ctx, sampleTask("b", models.StatusFailedExecution), "/b"))

	rows, err := store.List(ctx, models.StatusFailedExecution)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "b", rows[0].ParentTaskID)
}

func TestRebuild_ReconstructsCatalogFromTaskStateFiles(t *testing.T) {
	base := t.TempDir()

	for _, id := range []string{"task-a", "task-b"} {
		dir := filepath.Join(base, id)
		require.NoError(t, os.MkdirAll(dir, 0755))
		data, err := json.Marshal(sampleTask(id, models.StatusCompleted))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "task_state.json"), data, 0644))
	}

	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	count, err := store.Rebuild(ctx, base)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	rows, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestRebuild_ClearsStaleEntriesNoLongerOnDisk(t *testing.T) {
	base := t.TempDir()
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, sampleTask("ghost", models.StatusCompleted), "/ghost"))

	count, err := store.Rebuild(ctx, base)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	rows, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestOpen_CreatesParentDirectoryForFileBackedDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Dir(path))
	require.NoError(t, err)
}

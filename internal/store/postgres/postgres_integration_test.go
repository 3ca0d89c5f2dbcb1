package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow-labs/task-tracker/internal/logging"
	"github.com/todoflow-labs/task-tracker/internal/task"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set (integration test)")
	}

	ctx := context.Background()
	s, err := Connect(ctx, dsn, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.db.Exec(ctx, `TRUNCATE tasks RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	d, err := task.NewDraft("New task", "Details", "2024-06-01")
	require.NoError(t, err)
	created, err := s.Create(ctx, d)
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "New task", got.Title)
	assert.Equal(t, "Details", got.Description)
	assert.False(t, got.IsCompleted)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), *got.DueDate)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestListFiltersAndOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older, err := s.Create(ctx, task.Draft{Title: "Older"})
	require.NoError(t, err)
	newer, err := s.Create(ctx, task.Draft{Title: "Newer", Description: "shopping list"})
	require.NoError(t, err)
	newer, err = s.Toggle(ctx, newer.ID)
	require.NoError(t, err)

	all, err := s.List(ctx, task.ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, older.ID, all[1].ID)

	active, err := s.List(ctx, task.ListQuery{Filter: task.FilterActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, older.ID, active[0].ID)

	completed, err := s.List(ctx, task.ListQuery{Filter: task.FilterCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, newer.ID, completed[0].ID)

	found, err := s.List(ctx, task.ListQuery{Search: "SHOPPING"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, newer.ID, found[0].ID)
}

func TestToggleAndDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, task.Draft{Title: "Toggle me"})
	require.NoError(t, err)

	toggled, err := s.Toggle(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, toggled.IsCompleted)
	assert.True(t, toggled.UpdatedAt.After(created.UpdatedAt))

	require.NoError(t, s.Delete(ctx, created.ID))
	assert.ErrorIs(t, s.Delete(ctx, created.ID), task.ErrNotFound)
	_, err = s.Toggle(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)
}

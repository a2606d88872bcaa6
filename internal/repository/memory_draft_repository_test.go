package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

func TestMemoryDraftRepositoryRoundTripIsolated(t *testing.T) {
	repo := NewMemoryDraftRepository()
	ctx := context.Background()

	draft := &models.TeacherDraft{ID: "d1", State: models.DraftEditing, Classes: models.AssignedClassSet{"10A"}}
	require.NoError(t, repo.Save(ctx, draft, time.Hour))

	draft.Classes[0] = "1A"
	loaded, err := repo.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, models.AssignedClassSet{"10A"}, loaded.Classes)

	require.NoError(t, repo.Delete(ctx, "d1"))
	_, err = repo.Get(ctx, "d1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestMemoryDraftRepositoryExpiry(t *testing.T) {
	repo := NewMemoryDraftRepository()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, &models.TeacherDraft{ID: "d1"}, time.Minute))
	now = now.Add(2 * time.Minute)
	_, err := repo.Get(ctx, "d1")
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestMemoryDraftRepositoryLock(t *testing.T) {
	repo := NewMemoryDraftRepository()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	first, ok, err := repo.AcquireLock(ctx, "d1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, first)

	_, ok, err = repo.AcquireLock(ctx, "d1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = repo.AcquireLock(ctx, "d2", 30*time.Second)
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	held, err := repo.RefreshLock(ctx, "d1", first, 30*time.Second)
	require.NoError(t, err)
	assert.True(t, held)

	now = now.Add(20 * time.Second)
	_, ok, _ = repo.AcquireLock(ctx, "d1", 30*time.Second)
	assert.False(t, ok, "refreshed lock must still be held")

	require.NoError(t, repo.ReleaseLock(ctx, "d1", first))
	_, ok, _ = repo.AcquireLock(ctx, "d1", 30*time.Second)
	assert.True(t, ok)
}

func TestMemoryDraftRepositoryExpiredLockBelongsToNewHolder(t *testing.T) {
	repo := NewMemoryDraftRepository()
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	stale, ok, err := repo.AcquireLock(ctx, "d1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	current, ok, err := repo.AcquireLock(ctx, "d1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	held, err := repo.RefreshLock(ctx, "d1", stale, time.Minute)
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, repo.ReleaseLock(ctx, "d1", stale))
	_, ok, _ = repo.AcquireLock(ctx, "d1", time.Minute)
	assert.False(t, ok, "stale holder must not release the new lock")

	require.NoError(t, repo.ReleaseLock(ctx, "d1", current))
	_, ok, _ = repo.AcquireLock(ctx, "d1", time.Minute)
	assert.True(t, ok)
}

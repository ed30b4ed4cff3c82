package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/inspectmedia/internal/progress"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	job.Filename = "walkaround.mp4"

	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, saved.ID)
	assert.Equal(t, "walkaround.mp4", saved.Filename)
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, job.Start())
	job.UpdateProgress(progress.PhaseProcessing, 50)
	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, saved.Status)
	assert.Equal(t, float64(50), saved.Progress)
	assert.Equal(t, progress.PhaseProcessing, saved.Phase)
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	_, err := NewMemoryRepository().FindByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	require.NoError(t, repo.Save(ctx, job))

	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	found.UpdateProgress(progress.PhaseReading, 99)
	require.NoError(t, found.Start())

	original, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, original.Progress)
	assert.Equal(t, StatusInQueue, original.Status)
}

func TestMemoryRepository_List_NewestFirst(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	base := time.Now()
	for i, name := range []string{"old", "mid", "new"} {
		j := NewWithID(name)
		j.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Save(ctx, j))
	}

	jobs, err = repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})

	jobs[0].UpdateProgress("", 99)
	again, err := repo.FindByID(ctx, "new")
	require.NoError(t, err)
	assert.Zero(t, again.Progress)
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, repo.Delete(ctx, job.ID))
	_, err := repo.FindByID(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "nonexistent"), ErrJobNotFound)
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = repo.Save(ctx, New())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = repo.List(ctx)
		}
	}()
	wg.Wait()

	jobs, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 100)
}

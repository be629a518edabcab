package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/jobqueue"
	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

func newWorkerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Job{}, &types.Design{}, &types.ImportSource{}))
	return db
}

func TestUpdateProgressForcesUpdateOnLargePercentageJump(t *testing.T) {
	db := newWorkerTestDB(t)
	queue := jobqueue.New(db, nil, nil)

	job, err := queue.Enqueue(context.Background(), types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	claimed, err := queue.Dequeue(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)

	r := NewRunner("r1", &countingWorker{jobType: types.JobDownloadDesign}, queue, time.Second)
	r.currentJob = claimed
	r.lastProgress = time.Now()
	r.lastPercentage = 10

	// Within the 1s window, but a 30 percentage-point jump must still go through.
	r.UpdateProgress(context.Background(), 40, 100, nil, false)

	updated, err := queue.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, updated.ProgressCurrent)
	assert.Equal(t, 40, r.lastPercentage)
}

func TestUpdateProgressThrottlesSmallDeltaWithinInterval(t *testing.T) {
	db := newWorkerTestDB(t)
	queue := jobqueue.New(db, nil, nil)

	job, err := queue.Enqueue(context.Background(), types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	_, err = queue.Dequeue(context.Background(), nil)
	require.NoError(t, err)

	r := NewRunner("r1", &countingWorker{jobType: types.JobDownloadDesign}, queue, time.Second)
	r.currentJob = job
	r.lastProgress = time.Now()
	r.lastPercentage = 10

	r.UpdateProgress(context.Background(), 11, 100, nil, false)

	updated, err := queue.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.ProgressCurrent)
	assert.Equal(t, 10, r.lastPercentage)
}

func TestCPUPoolRunsInlineWhenNil(t *testing.T) {
	var pool *CPUPool
	called := false
	err := pool.Run(context.Background(), func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestCPUPoolRunPropagatesError(t *testing.T) {
	pool, err := NewCPUPool(1)
	require.NoError(t, err)
	defer pool.Release()

	wantErr := errors.New("boom")
	err = pool.Run(context.Background(), func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

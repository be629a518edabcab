package jobqueue

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/polyforge/polyforge/internal/types"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Job{}, &types.Design{}))
	return New(db, nil, nil)
}

func TestEnqueueDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	t.Run("claims highest priority first", func(t *testing.T) {
		low, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{Priority: 0})
		require.NoError(t, err)
		high, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{Priority: 10})
		require.NoError(t, err)

		claimed, err := q.Dequeue(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, high.ID, claimed.ID)
		assert.Equal(t, types.JobRunning, claimed.Status)
		assert.Equal(t, 1, claimed.Attempts)

		claimed2, err := q.Dequeue(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, claimed2)
		assert.Equal(t, low.ID, claimed2.ID)
	})

	t.Run("empty queue returns nil", func(t *testing.T) {
		q := newTestQueue(t)
		job, err := q.Dequeue(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("filters by job type", func(t *testing.T) {
		q := newTestQueue(t)
		_, err := q.Enqueue(ctx, types.JobAIAnalyze, interfaces.EnqueueOptions{})
		require.NoError(t, err)

		job, err := q.Dequeue(ctx, []types.JobType{types.JobDownloadDesign})
		require.NoError(t, err)
		assert.Nil(t, job)
	})
}

func TestRetryCap(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{MaxAttempts: 3})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		claimed, err := q.Dequeue(ctx, nil)
		require.NoError(t, err)
		require.NotNil(t, claimed, "attempt %d should claim a job", i+1)
		assert.Equal(t, job.ID, claimed.ID)

		completed, err := q.Complete(ctx, claimed.ID, false, "boom", true, nil)
		require.NoError(t, err)

		if i < 2 {
			assert.Equal(t, types.JobQueued, completed.Status, "attempt %d should requeue", i+1)
			require.NotNil(t, completed.ReadyAt)
			// force the backoff window open so the test doesn't sleep
			require.NoError(t, q.db.Model(&types.Job{}).Where("id = ?", job.ID).
				Update("ready_at", time.Now().UTC().Add(-time.Second)).Error)
		} else {
			assert.Equal(t, types.JobFailed, completed.Status, "final attempt should fail terminally")
		}
	}

	final, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, final.Status)
	assert.Equal(t, 3, final.Attempts)
}

func TestCompleteSuccess(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobGenerateRender, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, nil)
	require.NoError(t, err)

	completed, err := q.Complete(ctx, job.ID, true, "", false, map[string]string{"preview_id": "abc"})
	require.NoError(t, err)
	assert.Equal(t, types.JobSuccess, completed.Status)
	assert.NotEmpty(t, completed.ResultJSON)
}

func TestCompleteNonRetryableFailsImmediately(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{MaxAttempts: 5})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, nil)
	require.NoError(t, err)

	completed, err := q.Complete(ctx, job.ID, false, "bad archive password", false, nil)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, completed.Status, "non-retryable failure must not requeue despite remaining attempts")
	assert.Equal(t, 1, completed.Attempts)
}

func TestCancel(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	designID := "design-1"
	require.NoError(t, q.db.Create(&types.Design{ID: designID, Status: types.DesignDownloading}).Error)

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{DesignID: designID})
	require.NoError(t, err)

	canceled, err := q.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCanceled, canceled.Status)

	var design types.Design
	require.NoError(t, q.db.First(&design, "id = ?", designID).Error)
	assert.Equal(t, types.DesignDiscovered, design.Status, "canceling a design job resets the design")
}

func TestUpdatePriority(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{Priority: 0})
	require.NoError(t, err)

	updated, err := q.UpdatePriority(ctx, job.ID, 9)
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, 9, updated.Priority)

	var reloaded types.Job
	require.NoError(t, q.db.First(&reloaded, "id = ?", job.ID).Error)
	assert.Equal(t, 9, reloaded.Priority)
}

func TestUpdatePriorityIgnoresNonQueuedJob(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, nil)
	require.NoError(t, err)

	updated, err := q.UpdatePriority(ctx, job.ID, 9)
	require.NoError(t, err)
	assert.Nil(t, updated)
}

func TestRecoverOrphaned(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, nil)
	require.NoError(t, err)

	count, err := q.RecoverOrphaned(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recovered, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobQueued, recovered.Status)
	assert.Nil(t, recovered.StartedAt)
}

func TestRequeueStale(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, nil)
	require.NoError(t, err)

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, q.db.Model(&types.Job{}).Where("id = ?", job.ID).Update("started_at", old).Error)

	count, err := q.RequeueStale(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteOrphanedJobs(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	orphan, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	require.NoError(t, q.db.Model(&types.Job{}).Where("id = ?", orphan.ID).Update("status", types.JobFailed).Error)

	linked, err := q.Enqueue(ctx, types.JobDownloadDesign, interfaces.EnqueueOptions{DesignID: "design-1"})
	require.NoError(t, err)

	count, err := q.DeleteOrphanedJobs(ctx, []types.JobType{types.JobDownloadDesign})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	deleted, err := q.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Nil(t, deleted)
	still, err := q.Get(ctx, linked.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
}

func TestRequeueTransientFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	transient, err := q.Enqueue(ctx, types.JobDownloadImportRecord, interfaces.EnqueueOptions{})
	require.NoError(t, err)
	permanent, err := q.Enqueue(ctx, types.JobDownloadImportRecord, interfaces.EnqueueOptions{})
	require.NoError(t, err)

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, q.db.Model(&types.Job{}).Where("id = ?", transient.ID).
		Updates(map[string]any{"status": types.JobFailed, "finished_at": old, "last_error": "connection timed out"}).Error)
	require.NoError(t, q.db.Model(&types.Job{}).Where("id = ?", permanent.ID).
		Updates(map[string]any{"status": types.JobFailed, "finished_at": old, "last_error": "password protected archive"}).Error)

	count, err := q.RequeueTransientFailed(ctx, types.JobDownloadImportRecord, 30*time.Minute, []string{"timeout", "timed out", "connection"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	reRequeued, err := q.Get(ctx, transient.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobQueued, reRequeued.Status)

	stillFailed, err := q.Get(ctx, permanent.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, stillFailed.Status)
}

func TestBackoffFormula(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{7, 3600 * time.Second}, // 30*2^7 = 3840, capped at 3600
		{20, 3600 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoffFor(tt.attempts))
	}
}

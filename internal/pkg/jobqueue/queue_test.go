package jobqueue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ripple-social/ripple/app/models"
)

type fakeJobRepo struct {
	nextID    uint
	jobs      map[uint]*models.BackgroundJob
	completed []uint
	requeued  []uint
	failed    []uint
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{nextID: 1, jobs: map[uint]*models.BackgroundJob{}}
}

func (f *fakeJobRepo) Enqueue(job *models.BackgroundJob) error {
	job.ID = f.nextID
	f.nextID++
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobRepo) GetByID(id uint) (*models.BackgroundJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) ClaimBatch(workerID string, limit int, lease time.Duration) ([]models.BackgroundJob, error) {
	var out []models.BackgroundJob
	now := time.Now()
	for _, job := range f.jobs {
		if len(out) >= limit {
			break
		}
		claimable := job.Status == models.JobStatusPending ||
			(job.Status == models.JobStatusProcessing && job.LeaseExpiresAt != nil && job.LeaseExpiresAt.Before(now))
		if !claimable {
			continue
		}
		job.Status = models.JobStatusProcessing
		job.WorkerID = workerID
		exp := now.Add(lease)
		job.LeaseExpiresAt = &exp
		out = append(out, *job)
	}
	return out, nil
}

func (f *fakeJobRepo) MarkCompleted(id uint) error {
	f.completed = append(f.completed, id)
	f.jobs[id].Status = models.JobStatusCompleted
	return nil
}

func (f *fakeJobRepo) Requeue(id uint, attempts int, lastError string) error {
	f.requeued = append(f.requeued, id)
	job := f.jobs[id]
	job.Status = models.JobStatusPending
	job.Attempts = attempts
	job.LastError = lastError
	job.WorkerID = ""
	job.LeaseExpiresAt = nil
	return nil
}

func (f *fakeJobRepo) MarkFailed(id uint, attempts int, lastError string) error {
	f.failed = append(f.failed, id)
	job := f.jobs[id]
	job.Status = models.JobStatusFailed
	job.Attempts = attempts
	job.LastError = lastError
	return nil
}

func (f *fakeJobRepo) CountByStatus() (map[string]int64, error) {
	counts := map[string]int64{}
	for _, job := range f.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func TestEnqueueJob(t *testing.T) {
	repo := newFakeJobRepo()
	q := NewQueue(repo, nil, 1)

	job, err := q.EnqueueJob(models.JobTypeRefreshEntitlements, map[string]interface{}{"user_id": uint(7)})
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.JobDefaultMaxAttempts, job.MaxAttempts)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(job.PayloadJSON), &payload))
	assert.Equal(t, float64(7), payload["user_id"])
}

func TestProcessJob_Success(t *testing.T) {
	repo := newFakeJobRepo()
	q := NewQueue(repo, func(job *models.BackgroundJob) error { return nil }, 1)
	job, _ := q.EnqueueJob(models.JobTypeUnlockContent, map[string]interface{}{"user_id": uint(1)})

	claimed, err := repo.ClaimBatch(q.workerID, 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	q.processJob(0, &claimed[0])

	assert.Equal(t, []uint{job.ID}, repo.completed)
	assert.Empty(t, repo.requeued)
}

func TestProcessJob_RetriesThenDeadLetters(t *testing.T) {
	repo := newFakeJobRepo()
	handlerErr := errors.New("provider unavailable")
	q := NewQueue(repo, func(job *models.BackgroundJob) error { return handlerErr }, 1)
	job, _ := q.EnqueueJob(models.JobTypeRecheckAndLock, map[string]interface{}{"user_id": uint(1)})

	// Attempts 1 and 2 requeue, attempt 3 dead-letters.
	for i := 0; i < models.JobDefaultMaxAttempts; i++ {
		claimed, err := repo.ClaimBatch(q.workerID, 1, time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "attempt %d should find a claimable job", i+1)
		q.processJob(0, &claimed[0])
	}

	assert.Len(t, repo.requeued, models.JobDefaultMaxAttempts-1)
	assert.Equal(t, []uint{job.ID}, repo.failed)

	stored, _ := repo.GetByID(job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, models.JobDefaultMaxAttempts, stored.Attempts)
	assert.Contains(t, stored.LastError, "provider unavailable")

	// Dead-lettered jobs are never claimed again.
	claimed, err := repo.ClaimBatch(q.workerID, 1, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestProcessJob_HandlerPanicIsARetry(t *testing.T) {
	repo := newFakeJobRepo()
	q := NewQueue(repo, func(job *models.BackgroundJob) error { panic("boom") }, 1)
	_, _ = q.EnqueueJob(models.JobTypeNotification, map[string]interface{}{"user_id": uint(1)})

	claimed, _ := repo.ClaimBatch(q.workerID, 1, time.Minute)
	require.Len(t, claimed, 1)
	q.processJob(0, &claimed[0])

	require.Len(t, repo.requeued, 1)
	stored, _ := repo.GetByID(claimed[0].ID)
	assert.Contains(t, stored.LastError, "panic")
}

func TestClaimBatch_ExpiredLeaseIsReclaimable(t *testing.T) {
	repo := newFakeJobRepo()
	q := NewQueue(repo, nil, 1)
	job, _ := q.EnqueueJob(models.JobTypeEndOfSubscription, map[string]interface{}{"subscription_id": uint(5), "user_id": uint(1)})

	// First worker claims and crashes; lease runs out.
	claimed, _ := repo.ClaimBatch("worker-a", 1, -time.Minute)
	require.Len(t, claimed, 1)

	reclaimed, err := repo.ClaimBatch("worker-b", 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, reclaimed, 1)
	assert.Equal(t, job.ID, reclaimed[0].ID)

	stored, _ := repo.GetByID(job.ID)
	assert.Equal(t, "worker-b", stored.WorkerID)
}

func TestQueue_StartStopStart(t *testing.T) {
	repo := newFakeJobRepo()
	q := NewQueue(repo, func(job *models.BackgroundJob) error { return nil }, 2)

	// Stop closes the job channel to drain the workers; a restart must not
	// panic on the closed channel.
	q.Start()
	q.Stop()

	require.NotPanics(t, func() {
		q.Start()
	})
	q.Stop()
}

func TestPayloadRoundTrips(t *testing.T) {
	t.Run("webhook", func(t *testing.T) {
		in := &WebhookPayload{WebhookLogID: 3, Event: "subscription.charged", RawBody: `{"event":"subscription.charged"}`}
		out, err := WebhookPayloadFromMap(jsonRoundTrip(t, in.ToMap()))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("webhook missing body", func(t *testing.T) {
		_, err := WebhookPayloadFromMap(map[string]interface{}{"webhook_log_id": float64(3)})
		assert.Error(t, err)
	})

	t.Run("quota", func(t *testing.T) {
		in := &QuotaPayload{UserID: 9, Reason: "downgrade"}
		out, err := QuotaPayloadFromMap(jsonRoundTrip(t, in.ToMap()))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("user missing id", func(t *testing.T) {
		_, err := UserPayloadFromMap(map[string]interface{}{})
		assert.Error(t, err)
	})
}

// jsonRoundTrip simulates the payload's trip through the job row.
func jsonRoundTrip(t *testing.T, in map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// Package jobqueue runs durable background jobs from the database. Jobs
// survive restarts, are claimed with a lease so a crashed worker's work is
// retried, and dead-letter after exhausting their attempts.
package jobqueue

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/ripple-social/ripple/app/models"
	"github.com/ripple-social/ripple/app/repository"
)

const (
	// DefaultLease bounds how long a claimed job stays invisible to other
	// workers before it is considered abandoned.
	DefaultLease = 5 * time.Minute

	// PollInterval is how often idle workers check for new jobs.
	PollInterval = 2 * time.Second

	// ClaimBatchSize caps how many jobs one poll claims.
	ClaimBatchSize = 10
)

// Handler processes one claimed job. A nil error completes the job; an error
// requeues it until its attempts are exhausted.
type Handler func(job *models.BackgroundJob) error

// Queue claims and executes background jobs with a worker pool.
type Queue struct {
	jobs     repository.JobRepository
	handler  Handler
	workers  int
	workerID string
	lease    time.Duration

	jobCh   chan models.BackgroundJob
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueue creates a job queue with the given worker count.
func NewQueue(jobs repository.JobRepository, handler Handler, workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	host, _ := os.Hostname()
	return &Queue{
		jobs:     jobs,
		handler:  handler,
		workers:  workers,
		workerID: fmt.Sprintf("%s-%s", host, uuid.New().String()[:8]),
		lease:    DefaultLease,
		jobCh:    make(chan models.BackgroundJob, workers),
	}
}

// SetHandler replaces the job handler. Must be called before Start.
func (q *Queue) SetHandler(handler Handler) {
	q.handler = handler
}

// Start launches the poll loop and worker pool.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	// Both channels are recreated per start cycle: the previous stop closed
	// jobCh to drain the workers.
	q.stopCh = make(chan struct{})
	q.jobCh = make(chan models.BackgroundJob, q.workers)
	q.running = true
	log.Infof("[JobQueue] Starting %d workers (worker id %s)", q.workers, q.workerID)

	q.wg.Add(1)
	go q.pollLoop()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop signals all workers and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.mu.Unlock()

	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// EnqueueJob persists a new pending job. The job is picked up by the next
// poll; enqueue and pickup are decoupled so callers never block on workers.
func (q *Queue) EnqueueJob(jobType string, payload map[string]interface{}) (*models.BackgroundJob, error) {
	job := &models.BackgroundJob{
		Type:        jobType,
		Status:      models.JobStatusPending,
		MaxAttempts: models.JobDefaultMaxAttempts,
	}
	if err := job.SetPayload(payload); err != nil {
		return nil, err
	}
	if err := q.jobs.Enqueue(job); err != nil {
		return nil, err
	}
	log.Debugf("[JobQueue] Enqueued job %d (type=%s)", job.ID, job.Type)
	return job, nil
}

// Stats returns job counts per status for the health endpoint.
func (q *Queue) Stats() (map[string]int64, error) {
	return q.jobs.CountByStatus()
}

// pollLoop claims batches of due jobs and feeds them to the workers.
func (q *Queue) pollLoop() {
	defer q.wg.Done()
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			close(q.jobCh)
			return
		case <-ticker.C:
			claimed, err := q.jobs.ClaimBatch(q.workerID, ClaimBatchSize, q.lease)
			if err != nil {
				log.Errorf("[JobQueue] Claim error: %v", err)
				continue
			}
			for _, job := range claimed {
				select {
				case q.jobCh <- job:
				case <-q.stopCh:
					// Claimed but undispatched jobs are picked up again once
					// their lease expires.
					close(q.jobCh)
					return
				}
			}
		}
	}
}

// worker executes claimed jobs until the channel drains on shutdown.
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[JobQueue] Worker %d started", id)

	for job := range q.jobCh {
		q.processJob(id, &job)
	}
	log.Infof("[JobQueue] Worker %d stopping", id)
}

func (q *Queue) processJob(workerNum int, job *models.BackgroundJob) {
	log.Infof("[JobQueue] Worker %d processing job %d (type=%s, attempt=%d/%d)",
		workerNum, job.ID, job.Type, job.Attempts+1, job.MaxAttempts)

	err := q.runHandler(job)
	if err == nil {
		if merr := q.jobs.MarkCompleted(job.ID); merr != nil {
			log.Errorf("[JobQueue] Could not mark job %d completed: %v", job.ID, merr)
		}
		return
	}

	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		log.Errorf("[JobQueue] Job %d (type=%s) dead-lettered after %d attempts: %v",
			job.ID, job.Type, attempts, err)
		if merr := q.jobs.MarkFailed(job.ID, attempts, err.Error()); merr != nil {
			log.Errorf("[JobQueue] Could not mark job %d failed: %v", job.ID, merr)
		}
		return
	}

	log.Warnf("[JobQueue] Job %d (type=%s) failed attempt %d/%d, requeuing: %v",
		job.ID, job.Type, attempts, job.MaxAttempts, err)
	if merr := q.jobs.Requeue(job.ID, attempts, err.Error()); merr != nil {
		log.Errorf("[JobQueue] Could not requeue job %d: %v", job.ID, merr)
	}
}

// runHandler isolates handler panics so one bad job cannot kill a worker.
func (q *Queue) runHandler(job *models.BackgroundJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	if q.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	return q.handler(job)
}

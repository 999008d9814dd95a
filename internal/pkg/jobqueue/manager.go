package jobqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/ripple-social/ripple/app/repository"
	"github.com/ripple-social/ripple/internal/pkg/database"
	"github.com/ripple-social/ripple/internal/pkg/env"
)

// Manager manages the global job queue and the reconciliation tickers.
type Manager struct {
	queue          *Queue
	sweepTicker    *time.Ticker
	reminderTicker *time.Ticker
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool

	sweeper Sweeper
}

// Sweeper is the slice of the lifecycle service the reconciliation tickers
// drive.
type Sweeper interface {
	SweepExpired() (int, error)
	SweepGraceEnded() (int, error)
	SweepScheduledChanges() (int, error)
	SweepReminders() (int, error)
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton). The handler
// and sweeper are wired afterwards via Configure, before Start.
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := 5
		if v, err := strconv.Atoi(env.GetEnv("JOB_QUEUE_WORKERS", "")); err == nil && v > 0 {
			workerCount = v
		}
		globalManager = &Manager{
			queue:  NewQueue(repository.NewJobRepository(database.GetDB()), nil, workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// Configure attaches the processor and the lifecycle sweeper. Must be called
// before Start.
func (m *Manager) Configure(processor *Processor, sweeper Sweeper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue.SetHandler(processor.Handle)
	m.sweeper = sweeper
}

// GetQueue returns the managed job queue.
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and the reconciliation tickers.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and reconciliation sweeps")

	m.queue.Start()

	sweepInterval := 15 * time.Minute
	if v, err := strconv.Atoi(env.GetEnv("SWEEP_INTERVAL_MINUTES", "")); err == nil && v > 0 {
		sweepInterval = time.Duration(v) * time.Minute
	}
	m.sweepTicker = time.NewTicker(sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker()

	reminderInterval := 6 * time.Hour
	if v, err := strconv.Atoi(env.GetEnv("REMINDER_INTERVAL_HOURS", "")); err == nil && v > 0 {
		reminderInterval = time.Duration(v) * time.Hour
	}
	m.reminderTicker = time.NewTicker(reminderInterval)
	m.wg.Add(1)
	go m.reminderWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and the tickers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and reconciliation sweeps...")

	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	if m.reminderTicker != nil {
		m.reminderTicker.Stop()
	}

	// The closed channel stays in place until Start recreates it; a worker
	// mid-sweep must not observe a nil stop channel.
	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	m.queue.Stop()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// sweepWorker runs the lifecycle reconciliation sweep periodically.
func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			if err := m.RunSweepOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Sweep error: %v", err)
			}
		}
	}
}

// reminderWorker sends upcoming-expiry reminders periodically.
func (m *Manager) reminderWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reminder worker stopping")
			return
		case <-m.reminderTicker.C:
			if m.sweeper == nil {
				continue
			}
			if n, err := m.sweeper.SweepReminders(); err != nil {
				log.Errorf("[JobQueue Manager] Reminder sweep error: %v", err)
			} else if n > 0 {
				log.Infof("[JobQueue Manager] Sent %d expiry reminder(s)", n)
			}
		}
	}
}

// RunSweepOnce executes one full reconciliation pass. Also exposed as a
// manual trigger for admin use.
func (m *Manager) RunSweepOnce() error {
	if m.sweeper == nil {
		return nil
	}
	if _, err := m.sweeper.SweepScheduledChanges(); err != nil {
		return err
	}
	if _, err := m.sweeper.SweepExpired(); err != nil {
		return err
	}
	if _, err := m.sweeper.SweepGraceEnded(); err != nil {
		return err
	}
	return nil
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}


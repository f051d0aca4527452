package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// NextRunTime returns the first activation of schedule after from.
func NextRunTime(schedule string, from time.Time) (time.Time, error) {
	sched, err := scheduleParser.Parse(schedule)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(from), nil
}

// TaskEnqueuer saves a task to the background queue.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
}

// AuditCleanupScheduler periodically enqueues the audit retention task.
type AuditCleanupScheduler struct {
	schedule string
	task     backlite.Task
	queue    TaskEnqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
	lastTaskID string
}

// NewAuditCleanupScheduler creates a new scheduler instance
func NewAuditCleanupScheduler(schedule string, task backlite.Task, queue TaskEnqueuer) *AuditCleanupScheduler {
	return &AuditCleanupScheduler{
		schedule: schedule,
		task:     task,
		queue:    queue,
		cron:     cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start begins the scheduler. It stops by itself when ctx is cancelled.
func (s *AuditCleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule == "" {
		log.Printf("Audit cleanup scheduler: no schedule configured, skipping")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueue(cancelCtx)
	})
	if err != nil {
		s.cancelFunc()
		return fmt.Errorf("failed to schedule audit cleanup: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := NextRunTime(s.schedule, time.Now())
	log.Printf("Audit cleanup scheduler: started with schedule '%s'. Next run: %v", s.schedule, nextRun)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler
func (s *AuditCleanupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	entryID := s.entryID
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	// A running job takes s.mu, so wait for it without holding the lock.
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(entryID)

	if cancel != nil {
		cancel()
	}

	log.Printf("Audit cleanup scheduler: stopped")
}

// RunNow enqueues the cleanup task immediately and returns its id.
func (s *AuditCleanupScheduler) RunNow(ctx context.Context) (string, error) {
	return s.enqueueTask(ctx)
}

// IsRunning returns whether the scheduler is active
func (s *AuditCleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastTaskID returns the id of the most recently enqueued task.
func (s *AuditCleanupScheduler) LastTaskID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTaskID
}

// GetNextRunTime returns when the next cleanup will be enqueued
func (s *AuditCleanupScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *AuditCleanupScheduler) enqueue(ctx context.Context) {
	if _, err := s.enqueueTask(ctx); err != nil {
		log.Printf("Audit cleanup scheduler: failed to enqueue task: %v", err)
	}
}

func (s *AuditCleanupScheduler) enqueueTask(ctx context.Context) (string, error) {
	id, err := s.queue.Enqueue(ctx, s.task)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.lastTaskID = id
	s.mu.Unlock()

	log.Printf("Audit cleanup scheduler: enqueued task %s", id)
	return id, nil
}

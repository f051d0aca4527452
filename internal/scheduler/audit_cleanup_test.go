package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/dancecoach/internal/tasks"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []backlite.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return "task-1", nil
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("0 3 * * *"))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("every day"))
	assert.Error(t, ValidateSchedule("0 0 3 * * *"), "seconds field is not accepted")
}

func TestNextRunTime(t *testing.T) {
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	next, err := NextRunTime("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestAuditCleanupScheduler_StartStop(t *testing.T) {
	queue := &recordingQueue{}
	s := NewAuditCleanupScheduler("0 3 * * *", tasks.CleanupAuditEventsTask{RetentionDays: 30}, queue)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.NotNil(t, s.GetNextRunTime())

	// Starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.GetNextRunTime())
}

func TestAuditCleanupScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewAuditCleanupScheduler("0 3 * * *", tasks.CleanupAuditEventsTask{}, &recordingQueue{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestAuditCleanupScheduler_InvalidSchedule(t *testing.T) {
	s := NewAuditCleanupScheduler("not a schedule", tasks.CleanupAuditEventsTask{}, &recordingQueue{})
	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestAuditCleanupScheduler_EmptyScheduleDisabled(t *testing.T) {
	s := NewAuditCleanupScheduler("", tasks.CleanupAuditEventsTask{}, &recordingQueue{})
	assert.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestAuditCleanupScheduler_RunNow(t *testing.T) {
	queue := &recordingQueue{}
	task := tasks.CleanupAuditEventsTask{RetentionDays: 14}
	s := NewAuditCleanupScheduler("0 3 * * *", task, queue)

	id, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, "task-1", s.LastTaskID())
	require.Len(t, queue.tasks, 1)
	assert.Equal(t, task, queue.tasks[0])

	queue.err = errors.New("queue closed")
	_, err = s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "task-1", s.LastTaskID())
}

package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/dancecoach/internal/tasks"
)

const taskStatusTimeout = 5 * time.Second

// TaskStatusReader reports the state of an enqueued task.
type TaskStatusReader interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// CleanupTrigger enqueues an audit cleanup outside its schedule.
type CleanupTrigger interface {
	RunNow(ctx context.Context) (string, error)
}

// TasksController handles task queue management endpoints.
type TasksController struct {
	client  TaskStatusReader
	cleanup CleanupTrigger
}

// NewTasksController creates a new TasksController.
func NewTasksController(client TaskStatusReader, cleanup CleanupTrigger) *TasksController {
	return &TasksController{client: client, cleanup: cleanup}
}

// TaskTypeInfo describes an available task type.
type TaskTypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Queue       string `json:"queue"`
}

// ListTaskTypes handles GET /tasks/types
func (tc *TasksController) ListTaskTypes(c *gin.Context) {
	queue := tasks.CleanupAuditEventsTask{}.Config().Name
	c.JSON(http.StatusOK, gin.H{
		"task_types": []TaskTypeInfo{
			{
				Type:        "cleanup_audit_events",
				Description: "Delete audit events older than the retention period",
				Queue:       queue,
			},
		},
	})
}

// GetTaskStatus handles GET /tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")
	if taskID == "" {
		respondBadRequest(c, "invalid_task_id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), taskStatusTimeout)
	defer cancel()

	status, err := tc.client.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}
	if status == backlite.TaskStatusNotFound {
		respondNotFound(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}

// RunAuditCleanup handles POST /tasks/cleanup_audit_events/run
func (tc *TasksController) RunAuditCleanup(c *gin.Context) {
	id, err := tc.cleanup.RunNow(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "enqueue audit cleanup")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": id,
		"type":    "cleanup_audit_events",
		"message": "task enqueued",
	})
}

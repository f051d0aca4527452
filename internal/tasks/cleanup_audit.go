package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/dancecoach/internal/audit"
)

const defaultAuditRetentionDays = 90

var ErrPurgerNotConfigured = errors.New("audit purger not configured")

// AuditPurger deletes expired audit events, archiving them first when
// archiver is not nil.
type AuditPurger interface {
	PurgeExpired(ctx context.Context, retention time.Duration, archiver *audit.Archiver) (int64, error)
}

// CleanupAuditEventsTask removes audit events older than the configured retention period.
type CleanupAuditEventsTask struct {
	RetentionDays int    `json:"retention_days"`
	ArchiveDir    string `json:"archive_dir,omitempty"`
}

// Config returns the queue configuration for audit cleanup tasks.
func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
func CleanupAuditEventsProcessor(purger AuditPurger) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if purger == nil {
			return ErrPurgerNotConfigured
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = defaultAuditRetentionDays
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		var archiver *audit.Archiver
		if task.ArchiveDir != "" {
			archiver = audit.NewArchiver(task.ArchiveDir)
		}

		deleted, err := purger.PurgeExpired(ctx, retention, archiver)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewCleanupAuditEventsQueue creates a backlite queue for audit cleanup tasks.
func NewCleanupAuditEventsQueue(purger AuditPurger) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(purger))
}

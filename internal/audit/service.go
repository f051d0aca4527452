package audit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/dancecoach/internal/auth"
	"github.com/mrlokans/dancecoach/internal/database/audit"
	"github.com/mrlokans/dancecoach/internal/entities"
)

const asyncWriteTimeout = 5 * time.Second

var _ auth.AuditLogger = (*Service)(nil)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		defer cancel()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			log.Printf("[AUDIT] Failed to log audit event %s: %v", event.Action, err)
		}
	}()
}

// Wait blocks until every pending asynchronous write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogAuth records an authentication event. The attempted username goes into
// the description so failures against unknown accounts stay traceable.
func (s *Service) LogAuth(accountID uint, username, action, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		AccountID:   accountID,
		EventType:   entities.AuditEventAuth,
		Action:      action,
		Description: truncate(fmt.Sprintf("%s as %q", action, username), 500),
		IPAddress:   ipAddr,
		UserAgent:   truncate(userAgent, 500),
		Status:      entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
		event.Description = truncate(fmt.Sprintf("failed %s as %q", action, username), 500)
	}

	s.LogAsync(event)
}

// LogAccount records a change made by actorID to the account targetID.
func (s *Service) LogAccount(actorID, targetID uint, action, description string, err error) {
	event := &entities.AuditEvent{
		AccountID:   actorID,
		EventType:   entities.AuditEventAccount,
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	}
	if targetID > 0 {
		event.TargetID = &targetID
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, filter, limit, offset)
}

// GetEvent retrieves one audit event.
func (s *Service) GetEvent(ctx context.Context, id uint) (*entities.AuditEvent, error) {
	return s.repo.GetEventByID(ctx, id)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

// PurgeExpired deletes events older than retention. When archiver is not
// nil the events are written to it first and nothing is deleted if that
// write fails.
func (s *Service) PurgeExpired(ctx context.Context, retention time.Duration, archiver *Archiver) (int64, error) {
	cutoff := time.Now().Add(-retention)

	if archiver != nil {
		events, err := s.repo.GetOldEvents(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to load expired events: %w", err)
		}
		if len(events) == 0 {
			return 0, nil
		}
		if _, err := archiver.Save(cutoff, events); err != nil {
			return 0, err
		}
	}

	return s.repo.DeleteOldEvents(ctx, cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

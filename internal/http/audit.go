package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	auditrepo "github.com/mrlokans/dancecoach/internal/database/audit"
	"github.com/mrlokans/dancecoach/internal/entities"
)

// AuditReader lists recorded security events.
type AuditReader interface {
	GetEvents(ctx context.Context, filter auditrepo.Filter, limit, offset int) ([]entities.AuditEvent, int64, error)
	GetEvent(ctx context.Context, id uint) (*entities.AuditEvent, error)
}

type AuditController struct {
	auditService AuditReader
}

func NewAuditController(auditService AuditReader) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /audit?account_id=&type=&status=&limit=&offset=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	limit, offset := parsePagination(c)

	var filter auditrepo.Filter
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid_account_id")
			return
		}
		filter.AccountID = uint(id)
	}
	if raw := c.Query("type"); raw != "" {
		eventType := entities.AuditEventType(raw)
		if eventType != entities.AuditEventAuth && eventType != entities.AuditEventAccount {
			respondBadRequest(c, "invalid_type")
			return
		}
		filter.EventType = eventType
	}
	if raw := c.Query("status"); raw != "" {
		status := entities.AuditStatus(raw)
		if status != entities.AuditStatusSuccess && status != entities.AuditStatusFailed {
			respondBadRequest(c, "invalid_status")
			return
		}
		filter.Status = status
	}

	events, total, err := ac.auditService.GetEvents(c.Request.Context(), filter, limit, offset)
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}

	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}

// GetAuditEvent returns one audit event
// GET /audit/:id
func (ac *AuditController) GetAuditEvent(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	event, err := ac.auditService.GetEvent(c.Request.Context(), id)
	if errors.Is(err, auditrepo.ErrNotFound) {
		respondNotFound(c)
		return
	}
	if err != nil {
		respondInternalError(c, err, "get audit event")
		return
	}
	c.JSON(http.StatusOK, event)
}

package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/dancecoach/internal/auth"
	"github.com/mrlokans/dancecoach/internal/database/accounts"
	"github.com/mrlokans/dancecoach/internal/entities"
)

// CodeCannotModifySelf rejects an administrator disabling, demoting or
// deleting their own account.
const CodeCannotModifySelf = "cannot_modify_self"

type resetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UsersController serves the administrator account management API.
type UsersController struct {
	service   *auth.Service
	directory AccountDirectory
	audit     auth.AuditLogger
}

// NewUsersController creates a new UsersController. audit may be nil.
func NewUsersController(service *auth.Service, directory AccountDirectory, audit auth.AuditLogger) *UsersController {
	return &UsersController{
		service:   service,
		directory: directory,
		audit:     audit,
	}
}

// List handles GET /users
func (uc *UsersController) List(c *gin.Context) {
	limit, offset := parsePagination(c)

	list, total, err := uc.directory.List(c.Request.Context(), limit, offset)
	if err != nil {
		respondInternalError(c, err, "list accounts")
		return
	}

	views := make([]entities.AccountView, 0, len(list))
	for i := range list {
		views = append(views, list[i].Public())
	}
	c.JSON(http.StatusOK, newPaginatedResponse(views, total, limit, offset))
}

// Get handles GET /users/:id
func (uc *UsersController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	account, err := uc.directory.FindAccountByID(c.Request.Context(), id)
	if errors.Is(err, accounts.ErrNotFound) {
		respondNotFound(c)
		return
	}
	if err != nil {
		respondInternalError(c, err, "get account")
		return
	}
	c.JSON(http.StatusOK, account.Public())
}

// Activate handles PATCH /users/:id/activate
func (uc *UsersController) Activate(c *gin.Context) {
	uc.setActive(c, true)
}

// Deactivate handles PATCH /users/:id/deactivate
func (uc *UsersController) Deactivate(c *gin.Context) {
	uc.setActive(c, false)
}

func (uc *UsersController) setActive(c *gin.Context, active bool) {
	id, ok := uc.targetID(c, !active)
	if !ok {
		return
	}

	account, err := uc.service.SetActive(auth.RequestContext(c), id, active)
	if err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, account.Public())
}

// ResetPassword handles PUT /users/:id/password
func (uc *UsersController) ResetPassword(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, auth.CodeInvalidRequest)
		return
	}

	if err := uc.service.ResetPassword(auth.RequestContext(c), id, req.NewPassword); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password reset"})
}

// SetRole handles PUT /users/:id/role
func (uc *UsersController) SetRole(c *gin.Context) {
	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, auth.CodeInvalidRequest)
		return
	}
	role, valid := entities.ParseRole(req.Role)
	if !valid {
		auth.WriteError(c, auth.ErrInvalidRole)
		return
	}

	id, ok := uc.targetID(c, role != entities.RoleAdmin)
	if !ok {
		return
	}

	account, err := uc.service.SetRole(auth.RequestContext(c), id, role)
	if err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, account.Public())
}

// Delete handles DELETE /users/:id
func (uc *UsersController) Delete(c *gin.Context) {
	id, ok := uc.targetID(c, true)
	if !ok {
		return
	}

	ctx := auth.RequestContext(c)
	err := uc.directory.Delete(ctx, id)
	if uc.audit != nil {
		uc.audit.LogAccount(auth.RequestMetaFrom(ctx).ActorID, id, "delete", "Account deleted", err)
	}
	if errors.Is(err, accounts.ErrNotFound) {
		respondNotFound(c)
		return
	}
	if err != nil {
		respondInternalError(c, err, "delete account")
		return
	}
	c.Status(http.StatusNoContent)
}

// targetID parses the :id parameter. When selfForbidden is set, an
// administrator targeting their own account is rejected.
func (uc *UsersController) targetID(c *gin.Context, selfForbidden bool) (uint, bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return 0, false
	}
	if selfForbidden {
		if current := auth.CurrentAccount(c); current != nil && current.ID == id {
			respondBadRequest(c, CodeCannotModifySelf)
			return 0, false
		}
	}
	return id, true
}

// StaffPing handles GET /staff/ping, reachable by teachers and administrators.
func StaffPing(c *gin.Context) {
	account := auth.CurrentAccount(c)
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"role":    account.Role,
	})
}

package rbac

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/internal/users"
	"github.com/civicore/backend/pkg/response"
)

// UserLoader loads grant targets; satisfied by the users repository.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Handler handles permission HTTP endpoints.
type Handler struct {
	resolver *Resolver
	loader   UserLoader
	logger   *zap.Logger
}

// NewHandler creates an rbac handler.
func NewHandler(resolver *Resolver, loader UserLoader, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, loader: loader, logger: logger}
}

// GrantRequest is the body for POST /users/:id/permissions.
type GrantRequest struct {
	Code string `json:"code" binding:"required"`
}

// ListCatalog handles GET /permissions.
func (h *Handler) ListCatalog(c *gin.Context) {
	list, err := h.resolver.ListCatalog(c.Request.Context())
	if err != nil {
		h.logger.Error("list catalog", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// ListGrants handles GET /users/:id/permissions.
func (h *Handler) ListGrants(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	list, err := h.resolver.ListGrants(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("list grants", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// Grant handles POST /users/:id/permissions. Idempotent: re-granting a
// held code succeeds without effect.
func (h *Handler) Grant(c *gin.Context) {
	p, target, ok := h.loadActorAndTarget(c)
	if !ok {
		return
	}
	var req GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	if err := h.resolver.Grant(c.Request.Context(), target, req.Code, p.User); err != nil {
		h.writeGrantError(c, p, req.Code, err)
		return
	}
	response.NoContent(c)
}

// RevokeGrant handles DELETE /users/:id/permissions/:code. Idempotent.
func (h *Handler) RevokeGrant(c *gin.Context) {
	p, target, ok := h.loadActorAndTarget(c)
	if !ok {
		return
	}
	code := c.Param("code")
	if err := h.resolver.Revoke(c.Request.Context(), target, code, p.User); err != nil {
		h.writeGrantError(c, p, code, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) loadActorAndTarget(c *gin.Context) (*middleware.Principal, *models.User, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return nil, nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return nil, nil, false
	}
	target, err := h.loader.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			response.NotFound(c, response.CodeNotFound)
		} else {
			h.logger.Error("load grant target", zap.Error(err))
			response.Internal(c)
		}
		return nil, nil, false
	}
	return p, target, true
}

func (h *Handler) writeGrantError(c *gin.Context, p *middleware.Principal, code string, err error) {
	switch {
	case errors.Is(err, ErrUnknownPermission):
		response.BadRequest(c, response.CodeValidation)
	case errors.Is(err, ErrNotAuthorized):
		response.Forbidden(c, response.CodeInsufficientPerms, PermPermissionsManage, string(p.User.Role))
	default:
		h.logger.Error("permission change", zap.Error(err), zap.String("code", code))
		response.Internal(c)
	}
}

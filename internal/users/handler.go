package users

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/audit"
	"github.com/civicore/backend/internal/middleware"
	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/pkg/response"
)

// Store is the persistence surface the user handlers need; satisfied
// by Repository.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.UserPublic, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, fullName string) (*models.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.UserStatus) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
}

// PermissionResolver is the slice of the permission resolver the user
// handlers consult for management authority.
type PermissionResolver interface {
	CanManageUser(manager, target *models.User) bool
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

// Handler handles user HTTP endpoints.
type Handler struct {
	store    Store
	resolver PermissionResolver
	sink     audit.Sink
	logger   *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(store Store, resolver PermissionResolver, sink audit.Sink, logger *zap.Logger) *Handler {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Handler{store: store, resolver: resolver, sink: sink, logger: logger}
}

// UpdateProfileRequest is the body for PATCH /users/me.
type UpdateProfileRequest struct {
	FullName string `json:"full_name" binding:"required"`
}

// UpdateStatusRequest is the body for PATCH /users/:id/status.
type UpdateStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

// UpdateRoleRequest is the body for PATCH /users/:id/role.
type UpdateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// ListByTenant handles GET /tenants/:id/users. Tenant scoping is
// enforced by the route guards.
func (h *Handler) ListByTenant(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	list, err := h.store.ListByTenant(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// Get handles GET /users/:id. A user may read itself; anyone else needs
// management authority over the target.
func (h *Handler) Get(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	target, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if target.ID != p.User.ID && !h.resolver.CanManageUser(p.User, target) {
		h.deny(c, p, target, response.CodeAccessDenied, "users.read")
		return
	}
	response.OK(c, target.ToPublic())
}

// UpdateMe handles PATCH /users/me.
func (h *Handler) UpdateMe(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	user, err := h.store.UpdateProfile(c.Request.Context(), p.User.ID, req.FullName)
	if err != nil {
		h.logger.Error("update profile", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, user.ToPublic())
}

// UpdateStatus handles PATCH /users/:id/status. The soft status change
// replaces deletion; sessions and grants keep their references.
func (h *Handler) UpdateStatus(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	target, ok := h.loadTarget(c)
	if !ok {
		return
	}
	if !h.resolver.CanManageUser(p.User, target) {
		h.deny(c, p, target, response.CodeAccessDenied, "users.update")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	user, err := h.store.UpdateStatus(c.Request.Context(), target.ID, req.Status)
	if err != nil {
		h.logger.Error("update user status", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, user.ToPublic())
}

// UpdateRole handles PATCH /users/:id/role. The actor must outrank both
// the target and the role being assigned; super_admin is exempt.
func (h *Handler) UpdateRole(c *gin.Context) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		response.Unauthorized(c, response.CodeTokenMissing)
		return
	}
	target, ok := h.loadTarget(c)
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Role.Valid() {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	if !h.resolver.CanManageUser(p.User, target) {
		h.deny(c, p, target, response.CodeAccessDenied, "users.update")
		return
	}
	if !p.User.IsSuperAdmin() && !p.User.Role.Outranks(req.Role) {
		h.deny(c, p, target, response.CodeInsufficientPerms, string(req.Role))
		return
	}
	user, err := h.store.UpdateRole(c.Request.Context(), target.ID, req.Role)
	if err != nil {
		h.logger.Error("update user role", zap.Error(err))
		response.Internal(c)
		return
	}
	// Role changes shift the implied set; cached grants must not linger.
	h.resolver.InvalidateUser(c.Request.Context(), target.ID)
	response.OK(c, user.ToPublic())
}

// deny audits the authorization failure and writes the 403. Every
// denial reaches the sink, not just the ones the route guards catch.
func (h *Handler) deny(c *gin.Context, p *middleware.Principal, target *models.User, code, required string) {
	h.sink.Record(audit.Event{
		Action:    audit.ActionDenied,
		ActorID:   p.User.ID.String(),
		ActorRole: string(p.User.Role),
		TargetID:  target.ID.String(),
		Required:  required,
		Detail:    c.FullPath(),
	})
	response.Forbidden(c, code, required, string(p.User.Role))
}

func (h *Handler) loadTarget(c *gin.Context) (*models.User, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return nil, false
	}
	target, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, response.CodeNotFound)
			return nil, false
		}
		h.logger.Error("load user", zap.Error(err))
		response.Internal(c)
		return nil, false
	}
	return target, true
}

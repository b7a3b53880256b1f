package tenants

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicore/backend/internal/models"
	"github.com/civicore/backend/pkg/response"
)

// Code must be lowercase alphanumeric and hyphens only, 2-64 chars.
var codeRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Handler handles tenant HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a tenants handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// CreateTenantRequest is the body for POST /tenants.
type CreateTenantRequest struct {
	Code string `json:"code" binding:"required"`
	Name string `json:"name" binding:"required"`
	Plan string `json:"plan"`
}

// UpdateStatusRequest is the body for PATCH /tenants/:id/status.
type UpdateStatusRequest struct {
	Status models.TenantStatus `json:"status" binding:"required"`
}

// Create handles POST /tenants (super_admin only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	req.Code = strings.ToLower(strings.TrimSpace(req.Code))
	if !codeRegex.MatchString(req.Code) {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		plan = "standard"
	}
	tenant := &models.Tenant{
		ID:     uuid.New(),
		Code:   req.Code,
		Name:   strings.TrimSpace(req.Name),
		Plan:   plan,
		Status: models.TenantActive,
	}
	if err := h.repo.Create(c.Request.Context(), tenant); err != nil {
		if errors.Is(err, ErrCodeTaken) {
			response.Conflict(c, response.CodeValidation)
			return
		}
		h.logger.Error("create tenant", zap.Error(err))
		response.Internal(c)
		return
	}
	response.Created(c, tenant)
}

// List handles GET /tenants (super_admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list tenants", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, list)
}

// Get handles GET /tenants/:id (tenant-scoped).
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	tenant, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, response.CodeNotFound)
			return
		}
		h.logger.Error("get tenant", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, tenant)
}

// UpdateStatus handles PATCH /tenants/:id/status (super_admin only).
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		response.BadRequest(c, response.CodeValidation)
		return
	}
	tenant, err := h.repo.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, response.CodeNotFound)
			return
		}
		h.logger.Error("update tenant status", zap.Error(err))
		response.Internal(c)
		return
	}
	response.OK(c, tenant)
}
